// Package prompter reads interactive answers from the terminal
package prompter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Prompter asks questions on Out and reads answers from In
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

// New returns a prompter reading from in and writing to out. Passwords are
// read without echo only when in is a terminal.
func New(in io.Reader, out io.Writer) *Prompter {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &Prompter{in: bufio.NewReader(in), out: out, fd: fd}
}

// Default prompts on the process's stdin and stdout
func Default() *Prompter {
	return New(os.Stdin, color.Output)
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// String prompts for one line of input
func (p *Prompter) String(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// StringDefault prompts for a line, returning def when the answer is empty
func (p *Prompter) StringDefault(prompt, def string) (string, error) {
	if def != "" {
		prompt = fmt.Sprintf("%s[%s] ", prompt, def)
	}
	answer, err := p.String(prompt)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Password prompts for a secret without echoing it
func (p *Prompter) Password(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	if p.fd < 0 {
		return p.readLine()
	}
	secret, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

// Confirm asks a yes/no question, defaulting to no
func (p *Prompter) Confirm(prompt string) (bool, error) {
	answer, err := p.String(prompt + " (y/N): ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// Multiline reads lines until one containing only "." or EOF
func (p *Prompter) Multiline(prompt string) (string, error) {
	fmt.Fprintln(p.out, prompt)
	color.New(color.Faint).Fprintln(p.out, "(finish with a line containing only \".\")")

	var lines []string
	for {
		line, err := p.in.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "." {
			break
		}
		if trimmed != "" || err == nil {
			lines = append(lines, trimmed)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
