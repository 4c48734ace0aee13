package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Catppuccin Mocha color palette
var (
	colorMauve   = lipgloss.Color("#cba6f7") // Title
	colorBlue    = lipgloss.Color("#89b4fa") // Section headers
	colorGreen   = lipgloss.Color("#a6e3a1") // Commands
	colorOverlay = lipgloss.Color("#6c7086") // Muted text
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorMauve).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			MarginTop(1)

	commandStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorOverlay)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBlue).
			Padding(1, 2)
)

var quickReference = []struct {
	section string
	entries [][2]string
}{
	{"Setup", [][2]string{
		{"quill install [preset]", "migrate and create the super admin"},
		{"quill migrate", "apply pending SQL migrations"},
		{"quill db:seed", "insert starter content"},
	}},
	{"Inspect", [][2]string{
		{"quill users -o json", "list admin users"},
		{"quill preset:list", "list bundled presets"},
		{"quill version", "print build information"},
	}},
	{"Run", [][2]string{
		{"quill serve --addr :8080", "serve the admin console and site"},
	}},
}

func showQuickReference(w io.Writer, appName string) {
	if appName == "" {
		appName = "Quill"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(appName + " quick reference"))
	for _, sec := range quickReference {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render(sec.section))
		for _, e := range sec.entries {
			fmt.Fprintf(&b, "\n  %-28s %s", commandStyle.Render(e[0]), mutedStyle.Render(e[1]))
		}
	}
	fmt.Fprintln(w, boxStyle.Render(b.String()))
}
