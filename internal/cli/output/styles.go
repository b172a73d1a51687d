package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles bundles the lipgloss styles used across command output.
// Plain renderers carry zero-value styles so Render is a no-op.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	// Pre-rendered status glyphs.
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
}

const (
	colorHeader  = lipgloss.Color("12") // bright blue
	colorMuted   = lipgloss.Color("8")  // bright black
	colorSuccess = lipgloss.Color("10") // bright green
	colorWarning = lipgloss.Color("11") // bright yellow
	colorError   = lipgloss.Color("9")  // bright red
	colorInfo    = lipgloss.Color("14") // bright cyan
)

// newStyles builds the style set. Colors are applied only when the caller
// wants them and the terminal advertises color support; NO_COLOR and
// CLICOLOR are honored through termenv's profile detection.
func newStyles(colored bool) *Styles {
	if colored && termenv.EnvColorProfile() == termenv.Ascii {
		colored = false
	}
	if !colored {
		return &Styles{
			StatusSuccess: lipgloss.NewStyle().SetString("✓"),
			StatusFailed:  lipgloss.NewStyle().SetString("✗"),
		}
	}
	return &Styles{
		Header1:       lipgloss.NewStyle().Bold(true).Foreground(colorHeader),
		Header2:       lipgloss.NewStyle().Bold(true),
		Bold:          lipgloss.NewStyle().Bold(true),
		Muted:         lipgloss.NewStyle().Foreground(colorMuted),
		Success:       lipgloss.NewStyle().Foreground(colorSuccess),
		Warning:       lipgloss.NewStyle().Foreground(colorWarning),
		Error:         lipgloss.NewStyle().Foreground(colorError),
		Info:          lipgloss.NewStyle().Foreground(colorInfo),
		StatusSuccess: lipgloss.NewStyle().SetString("✓").Foreground(colorSuccess),
		StatusFailed:  lipgloss.NewStyle().SetString("✗").Foreground(colorError),
	}
}
