package util

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// PromptSecret asks for a secret on the controlling terminal without
// echoing it.  It fails when stdin is not a terminal.
func PromptSecret(label string) (string, error) {
	return promptSecret(os.Stdin, os.Stderr, label)
}

func promptSecret(in *os.File, out io.Writer, label string) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for %s: stdin is not a terminal", label)
	}
	fmt.Fprintf(out, "%s: ", label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", label, err)
	}
	return string(b), nil
}
