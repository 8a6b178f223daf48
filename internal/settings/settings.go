// Package settings holds the operator-editable runtime settings. They are
// seeded from the environment and overlaid by a YAML file that the admin API
// rewrites on every update.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"authentik-admin/internal/config"
	"authentik-admin/internal/domain"

	"gopkg.in/yaml.v3"
)

// Mask replaces secrets on read. Updates carrying Mask keep the stored secret.
const Mask = "****"

const (
	EventUserCreated   = domain.EventUserCreated
	EventPasswordReset = domain.EventPasswordReset
)

type Settings struct {
	WebhookEnabled bool            `yaml:"webhook_enabled" json:"webhook_enabled"`
	Webhooks       map[string]bool `yaml:"webhooks" json:"webhooks"`
	WebhookURL     string          `yaml:"webhook_url" json:"webhook_url"`
	WebhookSecret  string          `yaml:"webhook_secret" json:"webhook_secret"`
	PageTitle      string          `yaml:"page_title" json:"page_title"`
}

// FromConfig builds the defaults from environment configuration.
func FromConfig(cfg config.Config) Settings {
	return Settings{
		WebhookEnabled: cfg.WebhookEnabled,
		Webhooks: map[string]bool{
			EventUserCreated:   cfg.WebhookUserCreated,
			EventPasswordReset: cfg.WebhookPasswordReset,
		},
		WebhookURL:    cfg.WebhookURL,
		WebhookSecret: cfg.WebhookSecret,
		PageTitle:     cfg.PageTitle,
	}
}

func (s Settings) clone() Settings {
	out := s
	out.Webhooks = make(map[string]bool, len(s.Webhooks))
	for k, v := range s.Webhooks {
		out.Webhooks[k] = v
	}
	return out
}

// Masked returns a copy safe to show to operators.
func (s Settings) Masked() Settings {
	out := s.clone()
	if out.WebhookSecret != "" {
		out.WebhookSecret = Mask
	}
	return out
}

// Store guards the current settings and their file.
type Store struct {
	path string

	mu      sync.RWMutex
	current Settings
}

func NewStore(path string, defaults Settings) *Store {
	return &Store{path: path, current: defaults.clone()}
}

// Load overlays the settings file on the defaults. A missing file is not an error.
func (s *Store) Load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.clone()
	if err := yaml.Unmarshal(raw, &next); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	if next.Webhooks == nil {
		next.Webhooks = map[string]bool{}
	}
	s.current = next
	return nil
}

// Get returns the unmasked settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// EventEnabled reports whether webhooks for event should be dispatched.
func (s *Store) EventEnabled(event string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.WebhookEnabled && s.current.WebhookURL != "" && s.current.Webhooks[event]
}

// Update stores next and writes the file. The in-memory settings change only
// when the write succeeds. The masked result is returned.
func (s *Store) Update(next Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next = next.clone()
	if next.WebhookSecret == Mask {
		next.WebhookSecret = s.current.WebhookSecret
	}
	for event, enabled := range s.current.Webhooks {
		if _, ok := next.Webhooks[event]; !ok {
			next.Webhooks[event] = enabled
		}
	}

	if err := s.write(next); err != nil {
		return Settings{}, err
	}
	s.current = next
	return next.Masked(), nil
}

func (s *Store) write(v Settings) error {
	raw, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
