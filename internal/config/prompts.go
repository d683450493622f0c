package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Prompts holds the assistant's instructions and user-facing messages.
type Prompts struct {
	SystemPrompt  string        `yaml:"system_prompt"`
	ErrorMessages ErrorMessages `yaml:"error_messages"`
}

// ErrorMessages are shown to the user when something goes wrong.
type ErrorMessages struct {
	APIError string `yaml:"api_error"`
}

// DefaultPrompts is used when no prompts file exists.
func DefaultPrompts() Prompts {
	return Prompts{
		SystemPrompt: `You are a geographic visualization assistant.
Answer with one fenced ` + "```go" + ` block of Go code that renders an HTML map.
The code runs in a persistent interpreter: fmt, math, os, path/filepath,
strings, time and host are already imported. Do not declare a package or a
main function. Write the result with host.WriteArtifact(name, html), which
stores it as ` + "`map_output/temp_map_<name>.html`" + `.`,
		ErrorMessages: ErrorMessages{
			APIError: "Failed to get a response from the model.",
		},
	}
}

// LoadPrompts reads prompts from path. Missing fields keep their defaults.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return DefaultPrompts(), fmt.Errorf("parsing %s: %w", path, err)
	}
	return p, nil
}

// PromptStore holds the current prompts and reloads them on demand.
type PromptStore struct {
	path string

	mu      sync.RWMutex
	prompts Prompts
}

// NewPromptStore loads path into a store. A missing file yields the defaults.
func NewPromptStore(path string) (*PromptStore, error) {
	s := &PromptStore{path: path, prompts: DefaultPrompts()}
	if err := s.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return s, nil
}

// Path returns the file the store loads from.
func (s *PromptStore) Path() string { return s.path }

// Get returns the current prompts.
func (s *PromptStore) Get() Prompts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompts
}

// Reload re-reads the file. On error the previous prompts are kept.
func (s *PromptStore) Reload() error {
	p, err := LoadPrompts(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.prompts = p
	s.mu.Unlock()
	return nil
}
