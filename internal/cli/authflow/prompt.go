package authflow

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ReadCredentials collects a username and password interactively.
// The username defaults to defaultUsername when the user enters
// nothing. When the input is a terminal the password is read without
// echo; otherwise it is read as a plain line, which keeps the prompt
// scriptable in tests and pipes.
func ReadCredentials(r io.Reader, w io.Writer, defaultUsername string) (Credentials, error) {
	reader := bufio.NewReader(r)

	if defaultUsername != "" {
		fmt.Fprintf(w, "Username [%s]: ", defaultUsername)
	} else {
		fmt.Fprint(w, "Username: ")
	}

	username, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return Credentials{}, fmt.Errorf("read username: %w", err)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = defaultUsername
	}

	fmt.Fprint(w, "Password: ")

	password, err := readPassword(r, reader)
	if err != nil {
		return Credentials{}, fmt.Errorf("read password: %w", err)
	}
	fmt.Fprintln(w)

	return Credentials{Username: username, Password: password}, nil
}

// readPassword reads the password without echo when r is a terminal.
func readPassword(r io.Reader, reader *bufio.Reader) (string, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
