package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves a keystore passphrase from an environment variable or
// by prompting the operator. The value is cached after the first successful
// retrieval so repeated calls reuse the same secret.
type Source struct {
	envVar string
	label  string
	prompt func(label string) (string, error)

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a passphrase source that checks envVar before
// interactively prompting on the terminal. label names the key in prompts.
func NewSource(envVar, label string) *Source {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "keystore"
	}
	return &Source{envVar: strings.TrimSpace(envVar), label: label, prompt: promptTerminal}
}

// WithPrompt replaces the terminal prompt.
func (s *Source) WithPrompt(prompt func(label string) (string, error)) *Source {
	if prompt != nil {
		s.prompt = prompt
	}
	return s
}

// Get returns the cached passphrase or resolves it if this is the first call.
// Whitespace-only passphrases are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}

		passphrase, err := s.prompt(s.label)
		if err != nil {
			if s.envVar != "" {
				s.err = fmt.Errorf("%s passphrase required; set %s or run interactively: %w", s.label, s.envVar, err)
			} else {
				s.err = err
			}
			return
		}
		if strings.TrimSpace(passphrase) == "" {
			s.err = fmt.Errorf("%s passphrase cannot be empty", s.label)
			return
		}
		s.value = passphrase
	})

	return s.value, s.err
}

var errNoTerminal = errors.New("no terminal available")

func promptTerminal(label string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errNoTerminal
	}
	return readPassword(os.Stderr, label)
}

func readPassword(out io.Writer, label string) (string, error) {
	fmt.Fprintf(out, "Enter %s passphrase: ", label)
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(bytes), nil
}
