package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iksnae/insight-dash/internal"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

// errAborted is returned when the user aborts a prompt with Ctrl-C
var errAborted = errors.New("aborted")

// prompter reads one line at a time from the user
type prompter interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// newPrompter uses liner on an interactive terminal and plain line reads otherwise
func newPrompter(cmd *cobra.Command) prompter {
	in := cmd.InOrStdin()
	if in == os.Stdin && internal.IsTerminal(os.Stdin) {
		line := liner.NewLiner()
		line.SetCtrlCAborts(true)
		return &linerPrompter{State: line}
	}
	return &linePrompter{in: bufio.NewReader(in), out: cmd.OutOrStdout()}
}

type linerPrompter struct {
	*liner.State
}

func (p *linerPrompter) Prompt(prompt string) (string, error) {
	s, err := p.State.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", errAborted
	}
	return s, err
}

func (p *linerPrompter) PasswordPrompt(prompt string) (string, error) {
	s, err := p.State.PasswordPrompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", errAborted
	}
	return s, err
}

// linePrompter reads piped input
type linePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *linePrompter) Prompt(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *linePrompter) PasswordPrompt(prompt string) (string, error) {
	return p.Prompt(prompt)
}

func (p *linePrompter) AppendHistory(string) {}

func (p *linePrompter) Close() error { return nil }

// promptDefault asks for a value, keeping current when the answer is empty
func promptDefault(p prompter, label, current string) (string, error) {
	prompt := label + ": "
	if current != "" {
		prompt = fmt.Sprintf("%s [%s]: ", label, current)
	}
	v, err := p.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if v = strings.TrimSpace(v); v == "" {
		return current, nil
	}
	return v, nil
}
