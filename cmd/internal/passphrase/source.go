package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrNoTerminal is returned when the passphrase is not in the environment and
// stdin cannot be prompted.
var ErrNoTerminal = errors.New("passphrase: stdin is not a terminal")

const promptText = "Owner keystore passphrase: "

// Prompter reads a secret from the operator.
type Prompter func(prompt string) ([]byte, error)

// Source hands market-deploy the owner keystore passphrase. The environment
// variable is consulted first, then the terminal. The first answer, success
// or failure, is kept for the life of the process.
type Source struct {
	envVar string
	lookup func(string) (string, bool)
	prompt Prompter

	once  sync.Once
	value string
	err   error
}

// NewSource reads envVar, falling back to a terminal prompt on stderr.
func NewSource(envVar string) *Source {
	return &Source{
		envVar: strings.TrimSpace(envVar),
		lookup: os.LookupEnv,
		prompt: terminalPrompt,
	}
}

// WithPrompter swaps the interactive reader.
func (s *Source) WithPrompter(p Prompter) *Source {
	if p != nil {
		s.prompt = p
	}
	return s
}

// Get resolves the passphrase. Blank values are refused wherever they come
// from.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := s.lookup(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("passphrase: %s is blank", s.envVar)
			}
			return value, nil
		}
	}
	raw, err := s.prompt(promptText)
	if errors.Is(err, ErrNoTerminal) && s.envVar != "" {
		return "", fmt.Errorf("%w: export %s", err, s.envVar)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", errors.New("passphrase: empty answer at prompt")
	}
	return string(raw), nil
}

func terminalPrompt(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNoTerminal
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("passphrase: read terminal: %w", err)
	}
	return raw, nil
}
