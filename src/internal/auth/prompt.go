// FILE: synctrack/src/internal/auth/prompt.go
package auth

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrNotTerminal is returned when stdin cannot be prompted
var ErrNotTerminal = errors.New("stdin is not a terminal")

// PromptPassword reads a password from the terminal without echo
func PromptPassword(prompt string, errOut io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNotTerminal
	}

	fmt.Fprint(errOut, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(errOut)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
