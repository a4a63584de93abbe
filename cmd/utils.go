package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/greyhoundforty/blueterm/internal/ui"
)

// readAPIKey prompts for a secret. Piped input is read as one line; a
// terminal gets the masked prompt, or a plain no-echo read with plain set.
func readAPIKey(prompt string, plain bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	if !plain {
		return ui.GetInput(prompt, "", true)
	}

	fmt.Fprint(os.Stderr, prompt+": ")
	b, err := term.ReadPassword(fd)
	fmt.Fprint(os.Stderr, "\r\n")
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
