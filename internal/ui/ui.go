// Package ui provides terminal detection and styled CLI output.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Writer renders styled CLI output. Styles collapse to plain text when the
// destination is not a terminal or NO_COLOR is set.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a Writer for out, auto-detecting color support.
func New(out io.Writer) *Writer {
	noColor := DetectNoColor() || !IsTTY(out)
	return &Writer{out: out, styles: GetStyles(noColor)}
}

// NewPlain creates a Writer that never emits color.
func NewPlain(out io.Writer) *Writer {
	return &Writer{out: out, styles: NoColorStyles()}
}

// Styles exposes the active style set.
func (w *Writer) Styles() Styles {
	return w.styles
}

// Header prints a bold section header.
func (w *Writer) Header(text string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(text))
}

// Line prints plain text followed by a newline.
func (w *Writer) Line(text string) {
	_, _ = fmt.Fprintln(w.out, text)
}

// Linef prints formatted plain text followed by a newline.
func (w *Writer) Linef(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

// Label prints a "label: value" row with a dimmed label.
func (w *Writer) Label(label, value string) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.Label.Render(label+":"), value)
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Warning.Render("warning: ")+msg)
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Error.Render("error: ")+msg)
}

// Separator prints a dimmed horizontal rule.
func (w *Writer) Separator() {
	_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render(strings.Repeat("-", 60)))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}
