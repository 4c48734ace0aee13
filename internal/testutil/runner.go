package testutil

import (
	"context"
	"io"
	"sync"
)

// ConsoleRunner runs console commands. *app.App is the production runner;
// tests can use MockRunner.
type ConsoleRunner interface {
	Run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int
}

// CommandCall records a single command invocation.
type CommandCall struct {
	Args  []string
	Input []byte
}

// MockRunner records and simulates command execution for testing.
type MockRunner struct {
	mu sync.Mutex

	// RecordedCalls contains all commands that were invoked.
	RecordedCalls []CommandCall

	// MockOutput is written to out by Run.
	MockOutput string

	// MockCode is returned by Run.
	MockCode int

	// RunFunc allows dynamic behavior based on the command.
	// If set, this is called instead of returning MockOutput and MockCode.
	RunFunc func(args []string, input []byte) (int, string)
}

// NewMockRunner creates a mock with configurable static behavior.
func NewMockRunner(output string, code int) *MockRunner {
	return &MockRunner{MockOutput: output, MockCode: code}
}

// NewMockRunnerFunc creates a mock with dynamic behavior based on the command.
func NewMockRunnerFunc(fn func(args []string, input []byte) (int, string)) *MockRunner {
	return &MockRunner{RunFunc: fn}
}

// Run records the call and returns the configured exit code.
func (m *MockRunner) Run(_ context.Context, args []string, in io.Reader, out, _ io.Writer) int {
	var input []byte
	if in != nil {
		input, _ = io.ReadAll(in)
	}
	m.mu.Lock()
	m.RecordedCalls = append(m.RecordedCalls, CommandCall{Args: append([]string(nil), args...), Input: input})
	m.mu.Unlock()

	code, output := m.MockCode, m.MockOutput
	if m.RunFunc != nil {
		code, output = m.RunFunc(args, input)
	}
	if out != nil {
		_, _ = io.WriteString(out, output)
	}
	return code
}

// CallCount returns the number of recorded calls.
func (m *MockRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordedCalls)
}

// LastCall returns the most recent command call, or nil if none.
func (m *MockRunner) LastCall() *CommandCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.RecordedCalls) == 0 {
		return nil
	}
	// Return a copy to avoid race conditions
	call := m.RecordedCalls[len(m.RecordedCalls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordedCalls = nil
}

// WasCalledWith returns true if a command with exactly args was invoked.
func (m *MockRunner) WasCalledWith(args ...string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, call := range m.RecordedCalls {
		if argsMatch(call.Args, args) {
			return true
		}
	}
	return false
}

// argsMatch checks if two arg slices are equal.
func argsMatch(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
