package prompter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"golang.org/x/term"
)

// Prompter reads answers from in and writes questions to out
type Prompter struct {
	in     *bufio.Reader
	out    io.Writer
	stdinF *os.File
}

// New creates a prompter on arbitrary streams. Passwords are read as
// plain lines.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Stdio creates a prompter on the terminal
func Stdio() *Prompter {
	return &Prompter{in: bufio.NewReader(os.Stdin), out: os.Stderr, stdinF: os.Stdin}
}

func (p *Prompter) line() (string, error) {
	input, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimRight(input, "\r\n"), nil
}

// String prompts for a single line of input
func (p *Prompter) String(label string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := p.line()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// Password prompts for a secret. Input is not echoed when reading from
// a terminal.
func (p *Prompter) Password(label string) (string, error) {
	fmt.Fprint(p.out, label)

	if p.stdinF != nil && term.IsTerminal(int(p.stdinF.Fd())) {
		b, err := term.ReadPassword(int(p.stdinF.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return p.line()
}

// Confirm prompts for yes/no
func (p *Prompter) Confirm(label string) (bool, error) {
	fmt.Fprint(p.out, label+" (y/n) ")
	s, err := p.line()
	if err != nil {
		return false, err
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "y" || s == "yes", nil
}

// Select prompts for one of options and returns its index
func (p *Prompter) Select(label string, options []string) (int, error) {
	fmt.Fprintln(p.out, label)
	for i, opt := range options {
		fmt.Fprintf(p.out, "%d) %s\n", i+1, opt)
	}

	fmt.Fprint(p.out, "Select option: ")
	s, err := p.line()
	if err != nil {
		return -1, err
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > len(options) {
		return -1, clierrors.ValidationError("selection", fmt.Sprintf("choose a number between 1 and %d", len(options)))
	}
	return n - 1, nil
}

// Multiline reads lines until an empty line, EOF or maxLines
func (p *Prompter) Multiline(label string, maxLines int) (string, error) {
	fmt.Fprintf(p.out, "%s (empty line to finish):\n", label)

	var lines []string
	for len(lines) < maxLines {
		s, err := p.line()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if s == "" {
			break
		}
		lines = append(lines, s)
	}
	return strings.Join(lines, "\n"), nil
}
