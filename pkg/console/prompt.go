package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// DefaultConfirmAttempts bounds how many invalid answers ConfirmSafeCode accepts.
const DefaultConfirmAttempts = 5

var (
	// ErrNoAnswer is returned when input ends before an answer is read.
	ErrNoAnswer = errors.New("no answer: input closed")

	// ErrTooManyAttempts is returned when every confirmation answer was invalid.
	ErrTooManyAttempts = errors.New("too many invalid answers")
)

// Prompter asks the operator questions.
type Prompter struct {
	printer     *Printer
	in          *bufio.Reader
	file        *os.File
	maxAttempts int
}

// NewPrompter reads answers from in and prints questions through printer.
func NewPrompter(in io.Reader, printer *Printer) *Prompter {
	if in == nil {
		in = os.Stdin
	}
	if printer == nil {
		printer = NewPrinter(os.Stdout)
	}
	f, _ := in.(*os.File)
	return &Prompter{
		printer:     printer,
		in:          bufio.NewReader(in),
		file:        f,
		maxAttempts: DefaultConfirmAttempts,
	}
}

// WithMaxAttempts changes the confirmation retry cap. Values below one are ignored.
func (p *Prompter) WithMaxAttempts(n int) *Prompter {
	if n > 0 {
		p.maxAttempts = n
	}
	return p
}

func (p *Prompter) ask(question string) {
	p.printer.mu.Lock()
	defer p.printer.mu.Unlock()
	text := strings.TrimRight(question, " ")
	_, _ = fmt.Fprint(p.printer.out, p.printer.question.Render(text)+question[len(text):])
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoAnswer
		}
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Ask prints question and returns the trimmed answer.
func (p *Prompter) Ask(question string) (string, error) {
	p.ask(question)
	return p.readLine()
}

// AskSecret reads an answer without echo when input is a terminal.
func (p *Prompter) AskSecret(question string) (string, error) {
	if p.file == nil || !IsInteractive(p.file) {
		return p.Ask(question)
	}
	p.ask(question)
	b, err := term.ReadPassword(int(p.file.Fd()))
	p.printer.Println("")
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// ConfirmSafeCode asks whether generated code may be executed. Invalid
// answers are re-asked up to the attempt cap.
func (p *Prompter) ConfirmSafeCode() (bool, error) {
	for range p.maxAttempts {
		answer, err := p.Ask("Are you sure the code is safe to execute? (y/n): ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		p.printer.Println("Invalid input. Please enter 'y' or 'n'.")
	}
	return false, fmt.Errorf("%w: gave up after %d", ErrTooManyAttempts, p.maxAttempts)
}
