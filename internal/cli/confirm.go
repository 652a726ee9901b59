package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// terminalConfirmer asks yes/no questions on the controlling terminal.
type terminalConfirmer struct {
	in  io.Reader
	out io.Writer
}

func newTerminalConfirmer() *terminalConfirmer {
	return &terminalConfirmer{in: os.Stdin, out: os.Stderr}
}

// Confirm prints the prompt and reads a y/n answer. Anything other than an
// explicit yes counts as no.
func (c *terminalConfirmer) Confirm(prompt string) bool {
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)
	answer, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// Prompt asks the operator for a value and returns the trimmed answer.
func (c *terminalConfirmer) Prompt(prompt string) string {
	fmt.Fprintf(c.out, "%s: ", prompt)
	answer, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(answer)
}

// ConfirmPhrase requires the operator to type an exact phrase, used before
// destructive operations.
func (c *terminalConfirmer) ConfirmPhrase(prompt, phrase string) bool {
	fmt.Fprintf(c.out, "%s (type %q to confirm): ", prompt, phrase)
	answer, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), phrase)
}
