// Package output provides terminal-aware rendering for compass commands.
//
// A Renderer writes in one of four modes: text (styled, for TTYs),
// markdown (plain, for pipes), json (machine-readable), or auto (resolve
// at construction time based on whether stdout is a terminal). Commands
// ask the renderer for its effective mode and branch on it, so the same
// command produces colored tables interactively and clean markdown when
// piped into another program.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Mode selects how a Renderer formats its output.
type Mode string

// OutputMode is an alias kept for callers that predate the shorter name.
type OutputMode = Mode

// Supported output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// ParseMode normalizes a user-supplied mode string. Unknown values fall
// back to auto so a typo degrades gracefully instead of failing the run.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeText:
		return ModeText
	case ModeMarkdown:
		return ModeMarkdown
	case ModeJSON:
		return ModeJSON
	default:
		return ModeAuto
	}
}

// Renderer writes command output in a consistent style.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, detecting TTY state from the output
// writer. Auto mode resolves to text on a terminal and markdown otherwise.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, detectTTY(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
// Tests use this to exercise both styled and plain rendering paths.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	r := &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
	}
	// Styling only makes sense on a terminal rendering text; everywhere
	// else emit plain strings so piped output stays free of escape codes.
	r.styles = newStyles(isTTY && r.EffectiveMode() == ModeText)
	return r
}

func detectTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// EffectiveMode returns the resolved mode: auto becomes text on a TTY
// and markdown otherwise.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto && r.mode != "" {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether the renderer believes stdout is a terminal.
func (r *Renderer) IsTTY() bool {
	return r.isTTY
}

// Styles returns the style set matching the renderer's mode.
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// Writer returns the underlying output writer, for callers that render
// directly (tables, REPL echo).
func (r *Renderer) Writer() io.Writer {
	return r.out
}

// ErrWriter returns the underlying error writer.
func (r *Renderer) ErrWriter() io.Writer {
	return r.errOut
}

// Println writes a line to the output writer.
func (r *Renderer) Println(a ...any) {
	fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to the output writer.
func (r *Renderer) Printf(format string, a ...any) {
	fmt.Fprintf(r.out, format, a...)
}

// JSON writes v as indented JSON to the output writer.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

// Header writes a section header. Text mode styles it; markdown mode
// emits an ATX heading of the given level.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeText {
		style := r.styles.Header2
		if level <= 1 {
			style = r.styles.Header1
		}
		fmt.Fprintln(r.out, style.Render(text))
		return
	}
	fmt.Fprintln(r.out, FormatHeader(level, text))
	fmt.Fprintln(r.out)
}

// Success writes a success message with a leading glyph.
func (r *Renderer) Success(msg string) {
	fmt.Fprintf(r.out, "%s %s\n", r.styles.StatusSuccess.String(), msg)
}

// Warning writes a warning message to the error writer.
func (r *Renderer) Warning(msg string) {
	fmt.Fprintf(r.errOut, "%s %s\n", r.styles.Warning.Render("!"), msg)
}

// Error writes an error message to the error writer.
func (r *Renderer) Error(msg string) {
	fmt.Fprintf(r.errOut, "%s %s\n", r.styles.StatusFailed.String(), msg)
}

// Muted writes de-emphasized detail text.
func (r *Renderer) Muted(msg string) {
	fmt.Fprintln(r.out, r.styles.Muted.Render(msg))
}

// StatusLine writes a name with a status glyph and optional detail:
//
//	✓ compass.yaml
//	✗ warehouse  connection refused
func (r *Renderer) StatusLine(name, status, detail string) {
	var glyph string
	switch status {
	case "success", "pass", "ok":
		glyph = r.styles.StatusSuccess.String()
	case "failed", "error":
		glyph = r.styles.StatusFailed.String()
	case "warning", "warn":
		glyph = r.styles.Warning.Render("!")
	default:
		glyph = r.styles.Muted.Render("-")
	}
	if detail != "" {
		fmt.Fprintf(r.out, "%s %s  %s\n", glyph, name, r.styles.Muted.Render(detail))
		return
	}
	fmt.Fprintf(r.out, "%s %s\n", glyph, name)
}
