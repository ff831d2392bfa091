package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ideahatch/booking-bot/internal/domain"
)

// FileRecordStore keeps one JSON file per ticket under a data directory.
// Put writes to a staging file and publishes by rename, so a reader never
// observes a half-written record.
type FileRecordStore struct {
	dir string
}

// NewFileRecordStore creates the data directory if needed.
func NewFileRecordStore(dir string) (*FileRecordStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileRecordStore{dir: dir}, nil
}

func (s *FileRecordStore) path(ticketID string) string {
	// ticket ids are discord snowflakes; reject anything that could escape
	// the data directory
	return filepath.Join(s.dir, sanitizeKey(ticketID)+".json")
}

// Get loads the record for ticketID.
func (s *FileRecordStore) Get(ctx context.Context, ticketID string) (*domain.TicketRecord, error) {
	raw, err := os.ReadFile(s.path(ticketID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rec domain.TicketRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode ticket %s: %w", ticketID, err)
	}
	return &rec, nil
}

// Put replaces the whole record atomically.
func (s *FileRecordStore) Put(ctx context.Context, rec *domain.TicketRecord) error {
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.path(rec.ID), raw)
}

// Delete removes the record. Deleting an absent record reports ErrNotFound.
func (s *FileRecordStore) Delete(ctx context.Context, ticketID string) error {
	if err := os.Remove(s.path(ticketID)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// FileGuildConfigStore keeps all guild configs in a single JSON document,
// matching the one-file layout the booking panel always used. The internal
// mutex only protects the read-modify-write of the whole document; callers
// may use it concurrently.
type FileGuildConfigStore struct {
	mu   sync.Mutex
	path string
}

// NewFileGuildConfigStore stores configs at path (e.g. data/config.json).
func NewFileGuildConfigStore(path string) (*FileGuildConfigStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	return &FileGuildConfigStore{path: path}, nil
}

// Get returns the config for guildID.
func (s *FileGuildConfigStore) Get(ctx context.Context, guildID string) (*domain.GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	cfg, ok := all[guildID]
	if !ok {
		return nil, ErrNotFound
	}
	return &cfg, nil
}

// Set overwrites the config for guildID.
func (s *FileGuildConfigStore) Set(ctx context.Context, guildID string, cfg *domain.GuildConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return err
	}
	all[guildID] = *cfg
	raw, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.path, raw)
}

func (s *FileGuildConfigStore) load() (map[string]domain.GuildConfig, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]domain.GuildConfig{}, nil
		}
		return nil, err
	}
	all := map[string]domain.GuildConfig{}
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("decode guild config: %w", err)
	}
	return all, nil
}

func atomicWrite(path string, raw []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
			return r
		}
		return '_'
	}, key)
}
