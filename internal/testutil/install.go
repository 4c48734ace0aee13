package testutil

import (
	"bytes"
	"context"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/mattn/go-shellwords"

	"github.com/Dicklesworthstone/quill/internal/db"
)

// SuperAdmin returns the test identity, creating it on first use. With force
// a new identity replaces the current one; pointers handed out earlier keep
// describing the old identity.
func (h *Harness) SuperAdmin(force bool) *SuperAdmin {
	if h.admin == nil || force {
		h.admin = newSuperAdmin(h.Faker)
	}
	return h.admin
}

// Install empties the admin user table and runs the install command,
// answering its prompts with the super admin's email and password. The
// persisted user is then read back into the super admin.
func (h *Harness) Install() *SuperAdmin {
	h.T.Helper()

	if err := h.App.DB.TruncateUsers(); err != nil && !db.IsMissingTable(err) {
		h.T.Fatalf("truncate admin users: %v", err)
	}

	admin := h.SuperAdmin(false)
	answers := installAnswers(admin)
	args := []string{"install", "--name", admin.Name}
	code, out := h.run(args, answers)
	if code != 0 {
		h.T.Fatalf("%s exited with code %d:\n%s", commandLine(args), code, out)
	}

	u, err := h.App.DB.GetUserByEmail(admin.Email)
	RequireNoError(h.T, err, "load installed super admin")
	admin.ID = u.ID
	admin.Name = u.Name
	admin.PasswordHash = u.PasswordHash
	return admin
}

// installAnswers are the replies to the install prompts, in prompt order.
func installAnswers(admin *SuperAdmin) string {
	return strings.Join([]string{admin.Email, admin.UnencryptedPassword, admin.UnencryptedPassword}, "\n") + "\n"
}

// Command runs a console command line, feeding answers to its prompts, and
// returns the exit code and combined output.
func (h *Harness) Command(line string, answers ...string) (int, string) {
	h.T.Helper()
	args, err := shellwords.Parse(line)
	RequireNoError(h.T, err, "parse command line")

	var input string
	if len(answers) > 0 {
		input = strings.Join(answers, "\n") + "\n"
	}
	return h.run(args, input)
}

func (h *Harness) run(args []string, input string) (int, string) {
	h.T.Logf("%s", commandLine(args))
	var out bytes.Buffer
	code := h.Runner.Run(context.Background(), args, strings.NewReader(input), &out, &out)
	return code, out.String()
}

// commandLine renders args as a shell-pasteable quill invocation.
func commandLine(args []string) string {
	return "quill " + shellescape.QuoteCommand(args)
}
