package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	barFillStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	barRestStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// ProgressStep is one step of a multi-step operation
type ProgressStep struct {
	Message string
	Fn      func(ctx context.Context) error
}

// Printer writes status lines, with symbols and color when attached to a terminal
type Printer struct {
	Out    io.Writer
	Err    io.Writer
	Styled bool
}

// NewPrinter returns a printer for stdout/stderr, styled when stdout is a terminal
func NewPrinter() *Printer {
	return NewPrinterFor(os.Stdout, os.Stderr)
}

// NewPrinterFor returns a printer over out and errOut, styled when out is a terminal
func NewPrinterFor(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut, Styled: isTerminal(out)}
}

// IsTerminal reports whether w is a character device
func IsTerminal(w io.Writer) bool {
	return isTerminal(w)
}

// Success prints a success line
func (p *Printer) Success(format string, args ...interface{}) {
	p.line(p.Out, successStyle, "✓", "", format, args...)
}

// Info prints an informational line
func (p *Printer) Info(format string, args ...interface{}) {
	p.line(p.Out, progressStyle, "ℹ", "", format, args...)
}

// Warning prints a warning line on the error stream
func (p *Printer) Warning(format string, args ...interface{}) {
	p.line(p.Err, warningStyle, "⚠", "WARNING: ", format, args...)
}

// Error prints an error line on the error stream
func (p *Printer) Error(format string, args ...interface{}) {
	p.line(p.Err, errorStyle, "✗", "", format, args...)
}

func (p *Printer) line(w io.Writer, style lipgloss.Style, symbol, plainPrefix, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if p.Styled {
		fmt.Fprintf(w, "%s %s\n", style.Render(symbol), msg)
		return
	}
	fmt.Fprintf(w, "%s%s\n", plainPrefix, msg)
}

// RunWithSpinner runs fn while animating a spinner on the error stream. Without
// a terminal the message is logged once instead.
func (p *Printer) RunWithSpinner(ctx context.Context, message string, fn func(ctx context.Context) error) error {
	if !p.Styled {
		LogInfo("%s", message)
		return fn(ctx)
	}

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case err := <-done:
			if err != nil {
				fmt.Fprintf(p.Err, "\r%s %s\n", errorStyle.Render("✗"), message)
				return err
			}
			fmt.Fprintf(p.Err, "\r%s %s\n", successStyle.Render("✓"), message)
			return nil
		case <-ctx.Done():
			fmt.Fprintf(p.Err, "\r%s %s\n", errorStyle.Render("✗"), message)
			return ctx.Err()
		case <-ticker.C:
			frame := spinnerFrames[i%len(spinnerFrames)]
			fmt.Fprintf(p.Err, "\r%s %s", progressStyle.Render(frame), message)
		}
	}
}

// RunSteps runs steps in order, numbering them, and stops at the first failure
func (p *Printer) RunSteps(ctx context.Context, steps []ProgressStep) error {
	for i, step := range steps {
		msg := fmt.Sprintf("[%d/%d] %s", i+1, len(steps), step.Message)
		if err := p.RunWithSpinner(ctx, msg, step.Fn); err != nil {
			return fmt.Errorf("%s: %w", step.Message, err)
		}
	}
	return nil
}

// ProgressBar renders pct (0-100) as a bar of width cells followed by the percentage
func (p *Printer) ProgressBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if width < 1 {
		width = 1
	}
	filled := int(pct / 100 * float64(width))
	bar, rest := strings.Repeat("█", filled), strings.Repeat("░", width-filled)
	if p.Styled {
		bar, rest = barFillStyle.Render(bar), barRestStyle.Render(rest)
	}
	return fmt.Sprintf("%s%s %3.0f%%", bar, rest, pct)
}

// isTerminal checks if the writer is a terminal
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) != 0
	}
	return false
}
