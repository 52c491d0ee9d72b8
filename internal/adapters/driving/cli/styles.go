package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	channelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	keywordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("32"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9E2AF"))
)

// painter applies styles only when writing to a terminal.
type painter struct {
	enabled bool
}

// newPainter styles output written to an interactive terminal.
func newPainter(w io.Writer) painter {
	f, ok := w.(*os.File)
	return painter{enabled: ok && term.IsTerminal(int(f.Fd()))}
}

func (p painter) render(style lipgloss.Style, s string) string {
	if !p.enabled || s == "" {
		return s
	}
	return style.Render(s)
}

func (p painter) title(s string) string   { return p.render(titleStyle, s) }
func (p painter) channel(s string) string { return p.render(channelStyle, s) }
func (p painter) meta(s string) string    { return p.render(metaStyle, s) }
func (p painter) keyword(s string) string { return p.render(keywordStyle, s) }
func (p painter) link(s string) string    { return p.render(linkStyle, s) }
func (p painter) warn(s string) string    { return p.render(warnStyle, s) }
