package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SessionMarker is the persisted "someone is signed in" record.
type SessionMarker struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// SessionStore persists at most one SessionMarker. Load returns (nil, nil)
// when nothing is stored.
type SessionStore interface {
	Load(ctx context.Context) (*SessionMarker, error)
	Save(ctx context.Context, m SessionMarker) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the marker in memory.
type MemoryStore struct {
	mu     sync.Mutex
	marker *SessionMarker
}

func (s *MemoryStore) Load(context.Context) (*SessionMarker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marker == nil {
		return nil, nil
	}
	m := *s.marker
	return &m, nil
}

func (s *MemoryStore) Save(_ context.Context, m SessionMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = &m
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = nil
	return nil
}

// FileStore keeps the marker as JSON in a file readable only by its owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(context.Context) (*SessionMarker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session store: reading %s: %w", s.path, err)
	}

	var m SessionMarker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("session store: decoding %s: %w", s.path, err)
	}
	if m.UID == "" || m.IDToken == "" {
		return nil, nil
	}
	return &m, nil
}

// Save writes through a temp file and rename so a crash never leaves a
// half-written marker.
func (s *FileStore) Save(_ context.Context, m SessionMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("session store: encoding: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session store: creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("session store: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("session store: writing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session store: writing: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("session store: replacing %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session store: removing %s: %w", s.path, err)
	}
	return nil
}
