package setup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/eternalab/hop-wallet/internal/constants"
)

const minPasswordLen = 8

var errNoTerminal = errors.New("no terminal available for the password prompt")

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// openTTY returns the controlling terminal. stdin belongs to the native
// messaging stream while serving, so prompts never read from it.
func openTTY() (*os.File, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, errNoTerminal
	}
	if !term.IsTerminal(int(tty.Fd())) {
		_ = tty.Close()
		return nil, errNoTerminal
	}
	return tty, nil
}

func promptPassword(tty *os.File, prompt string) ([]byte, error) {
	_, _ = fmt.Fprint(tty, prompt)

	pw, err := term.ReadPassword(int(tty.Fd()))
	_, _ = fmt.Fprintln(tty)

	if err != nil {
		zero(pw)
		return nil, fmt.Errorf("password input failed: %w", err)
	}
	if len(pw) == 0 {
		return nil, fmt.Errorf("password cannot be empty")
	}
	return pw, nil
}

// promptNewPassword asks twice and enforces the minimum length.
func promptNewPassword(tty *os.File) ([]byte, error) {
	pw, err := promptPassword(tty, "New keystore password: ")
	if err != nil {
		return nil, err
	}
	if len(pw) < minPasswordLen {
		zero(pw)
		return nil, fmt.Errorf("password must be at least %d characters long", minPasswordLen)
	}
	again, err := promptPassword(tty, "Repeat password: ")
	if err != nil {
		zero(pw)
		return nil, err
	}
	defer zero(again)
	if string(pw) != string(again) {
		zero(pw)
		return nil, errors.New("passwords do not match")
	}
	return pw, nil
}

// passwordFromEnv reads HOP_KEYSTORE_PASSWORD and clears it from the
// environment.
func passwordFromEnv() []byte {
	v, ok := os.LookupEnv(constants.PasswordEnvVar)
	if !ok || v == "" {
		return nil
	}
	_ = os.Unsetenv(constants.PasswordEnvVar)
	return []byte(v)
}

func promptYesNo(r io.Reader, w io.Writer, msg string) (bool, error) {
	_, _ = fmt.Fprint(w, msg)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	s := strings.TrimSpace(strings.ToLower(line))
	return s == "y" || s == "yes", nil
}
