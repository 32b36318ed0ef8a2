// Package console renders agent messages for the operator and collects
// answers from them.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"autogippity/pkg/proto"
)

// ANSI palette shared by every printer.
//
//nolint:gochecknoglobals // palette
var (
	ColorPosition = lipgloss.Color("2") // Green
	ColorAICall   = lipgloss.Color("6") // Cyan
	ColorUnitTest = lipgloss.Color("5") // Magenta
	ColorIssue    = lipgloss.Color("1") // Red
	ColorQuestion = lipgloss.Color("4") // Blue
)

// Printer writes coloured agent messages. It implements proto.Notifier and is
// safe for concurrent use.
type Printer struct {
	out      io.Writer
	position lipgloss.Style
	aiCall   lipgloss.Style
	unitTest lipgloss.Style
	issue    lipgloss.Style
	question lipgloss.Style
	mu       sync.Mutex
}

// NewPrinter creates a printer for w. Colour is only emitted when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	r := lipgloss.NewRenderer(w)
	return &Printer{
		out:      w,
		position: r.NewStyle().Foreground(ColorPosition),
		aiCall:   r.NewStyle().Foreground(ColorAICall),
		unitTest: r.NewStyle().Foreground(ColorUnitTest),
		issue:    r.NewStyle().Foreground(ColorIssue).Bold(true),
		question: r.NewStyle().Foreground(ColorQuestion),
	}
}

func (p *Printer) style(kind proto.MessageKind) lipgloss.Style {
	switch kind {
	case proto.MessageUnitTest:
		return p.unitTest
	case proto.MessageIssue:
		return p.issue
	default:
		return p.aiCall
	}
}

// Format renders one message without writing it.
func (p *Printer) Format(msg proto.AgentMessage) string {
	return p.position.Render("Agent: "+msg.Position) + ": " + p.style(msg.Kind).Render(msg.Statement)
}

// Notify prints msg on its own line.
func (p *Printer) Notify(msg proto.AgentMessage) {
	line := p.Format(msg)
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, line)
}

// Println writes a plain line.
func (p *Printer) Println(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, format+"\n", args...)
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}
