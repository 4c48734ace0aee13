package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Dicklesworthstone/quill/internal/utils"
)

// Install prompts, asked in this order.
const (
	PromptEmail    = "Enter an email:"
	PromptPassword = "Enter a password:"
	PromptConfirm  = "Confirm the password:"
)

// prompter reads answers line by line. Hidden answers are read without echo
// when in is a terminal.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, reader: bufio.NewReader(in), out: out}
}

func (p *prompter) ask(question string, hidden bool) (string, error) {
	fmt.Fprint(p.out, question+" ")

	if f, ok := p.in.(*os.File); ok && hidden && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading answer to %q: %w", question, err)
		}
		return utils.SanitizeInput(string(b)), nil
	}

	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("no answer for %q", question)
		}
		return "", fmt.Errorf("reading answer to %q: %w", question, err)
	}
	if hidden {
		fmt.Fprintln(p.out)
	} else {
		fmt.Fprintln(p.out, strings.TrimSpace(line))
	}
	return utils.SanitizeInput(strings.TrimRight(line, "\r\n")), nil
}
