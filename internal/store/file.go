package store

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ZhangSihui999/PsPM/internal/channel"
)

//go:embed session-v1.schema.json
var sessionSchemaSrc string

var sessionSchema = jsonschema.MustCompileString("session-v1.schema.json", sessionSchemaSrc)

// FileBackend persists the session as a single JSON document. Saves go
// through a temporary file in the same directory followed by a rename,
// so a crashed or failed save never leaves a partial file behind.
type FileBackend struct {
	path string
	reg  *channel.Registry
}

// NewFileBackend creates a JSON file backend at path.
func NewFileBackend(path string, reg *channel.Registry) *FileBackend {
	return &FileBackend{path: path, reg: reg}
}

// Path returns the backing file path.
func (b *FileBackend) Path() string { return b.path }

// Load reads, schema-validates and decodes the session. A missing file
// yields an empty session.
func (b *FileBackend) Load() (*Session, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return NewSession(b.reg), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	// Validate the raw document before trusting its shape.
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("parse session file %s: %w", b.path, err)
	}
	if err := sessionSchema.Validate(instance); err != nil {
		return nil, fmt.Errorf("session file %s failed validation: %w", b.path, err)
	}

	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode session file %s: %w", b.path, err)
	}
	return sessionFromFile(&f, b.reg)
}

// Save atomically rewrites the whole session file.
func (b *FileBackend) Save(s *Session) error {
	data, err := json.MarshalIndent(s.toFile(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (b *FileBackend) Close() error { return nil }
