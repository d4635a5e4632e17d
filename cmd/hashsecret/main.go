package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"file-uploader/internal/auth"
)

const minSecretLength = 6

// secretReader reads one secret without echoing it.
type secretReader func() ([]byte, error)

func readTerminal() ([]byte, error) {
	return term.ReadPassword(int(syscall.Stdin))
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	// Pick up the same .env the server reads, if any.
	_ = godotenv.Load()

	var ok bool
	switch command := os.Args[1]; command {
	case "hash":
		ok = hashSecret(readTerminal, os.Stdout, os.Stderr)
	case "check":
		ok = checkSecret(readTerminal, os.Getenv("ALLOWED_PASSWORDS"), os.Stdout, os.Stderr)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(os.Stdout)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

// sanitizeCommand replaces anything outside [a-zA-Z0-9_-] with '_' so
// arbitrary input is never echoed to the terminal.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "File Uploader Secret Management")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: hashsecret <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  hash    - Print a bcrypt hash for ALLOWED_PASSWORDS")
	fmt.Fprintln(w, "  check   - Test a secret against ALLOWED_PASSWORDS")
}

func prompt(read secretReader, out io.Writer, label string) ([]byte, error) {
	fmt.Fprint(out, label)
	secret, err := read()
	fmt.Fprintln(out)
	if err != nil {
		return nil, fmt.Errorf("reading secret: %w", err)
	}
	return secret, nil
}

func hashSecret(read secretReader, out, errOut io.Writer) bool {
	secret, err := prompt(read, out, "Secret: ")
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return false
	}
	confirm, err := prompt(read, out, "Confirm Secret: ")
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return false
	}

	if !bytes.Equal(secret, confirm) {
		fmt.Fprintln(errOut, "Error: Secrets do not match")
		return false
	}
	if len(secret) < minSecretLength {
		fmt.Fprintf(errOut, "Error: Secret must be at least %d characters\n", minSecretLength)
		return false
	}
	if bytes.ContainsRune(secret, ',') {
		fmt.Fprintln(errOut, "Error: Secret must not contain a comma")
		return false
	}

	hash, err := auth.HashSecret(string(secret))
	if err != nil {
		fmt.Fprintf(errOut, "Error: Failed to hash secret: %v\n", err)
		return false
	}

	fmt.Fprintln(out, hash)
	return true
}

func checkSecret(read secretReader, allowList string, out, errOut io.Writer) bool {
	gate := auth.NewGate(allowList)
	if gate.Open() {
		fmt.Fprintln(out, "Status: Authorization is disabled (ALLOWED_PASSWORDS=open)")
		return true
	}
	if gate.Size() == 0 {
		fmt.Fprintln(errOut, "Error: ALLOWED_PASSWORDS is empty, every upload will be rejected")
		return false
	}

	secret, err := prompt(read, out, "Secret: ")
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return false
	}

	if err := gate.Check(string(secret)); err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			fmt.Fprintln(out, "Status: Secret is NOT accepted")
		} else {
			fmt.Fprintf(errOut, "Error: %v\n", err)
		}
		return false
	}
	fmt.Fprintln(out, "Status: Secret is accepted")
	return true
}
