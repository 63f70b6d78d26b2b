// Package localstore provides the file-backed credential store.
//
// It is the durable local key/value analog of the browser storage the
// session layer was designed around: one small JSON file holding four flat
// keys per identity slot plus a schema version marker. Writes are atomic
// (write-tmp-fsync-rename), guarded by an in-process mutex and a
// cross-process flock, with a .bak backup of the previous contents.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/miradorhq/sessiond/internal/domain/session"
)

// Flat key names per slot, kept compatible with the original storage layout.
var slotKeys = map[session.Slot]map[string]string{
	session.SlotAdmin: {
		session.KeyToken:          "adminToken",
		session.KeyPrincipal:      "adminUserData",
		session.KeyAbsoluteExpiry: "adminSessionTimeout",
		session.KeyLastActivity:   "adminLastActivity",
	},
	session.SlotUser: {
		session.KeyToken:          "userToken",
		session.KeyPrincipal:      "userUserData",
		session.KeyAbsoluteExpiry: "userSessionTimeout",
		session.KeyLastActivity:   "userLastActivity",
	},
}

// Store implements session.Store on a single JSON file.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a file-backed store at the given path. The file is created
// lazily on first save.
func New(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
	}
}

// Load reads a slot's record from the file.
func (s *Store) Load(_ context.Context, slot session.Slot) (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.readFile()
	if err != nil {
		return nil, err
	}

	if version, ok := values[session.SchemaVersionKey]; ok && version != session.SchemaVersion {
		return nil, fmt.Errorf("%w: unknown schema version %q", session.ErrCorruptedRecord, version)
	}

	keys := slotKeys[slot]
	generic := make(map[string]string, 4)
	for genericKey, flatKey := range keys {
		if v, ok := values[flatKey]; ok {
			generic[genericKey] = v
		}
	}
	return session.DecodeRecord(generic)
}

// Save writes a slot's complete record. All four keys land in one atomic
// file write so no partial record is ever visible.
func (s *Store) Save(_ context.Context, slot session.Slot, record *session.Record) error {
	encoded, err := session.EncodeRecord(record)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.readFileLenient()
	if err != nil {
		return err
	}

	keys := slotKeys[slot]
	for genericKey, flatKey := range keys {
		values[flatKey] = encoded[genericKey]
	}
	values[session.SchemaVersionKey] = session.SchemaVersion

	return s.writeFile(values)
}

// TouchActivity updates only the slot's last-activity key. No-op when the
// slot holds no token.
func (s *Store) TouchActivity(_ context.Context, slot session.Slot, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.readFileLenient()
	if err != nil {
		return err
	}

	keys := slotKeys[slot]
	if _, ok := values[keys[session.KeyToken]]; !ok {
		return nil
	}
	values[keys[session.KeyLastActivity]] = strconv.FormatInt(at.UnixMilli(), 10)

	return s.writeFile(values)
}

// Clear removes all of a slot's keys. Idempotent; an unreadable file is
// reset rather than preserved, since clear is the self-heal path.
func (s *Store) Clear(_ context.Context, slot session.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.readFileLenient()
	if err != nil {
		return err
	}

	for _, flatKey := range slotKeys[slot] {
		delete(values, flatKey)
	}
	values[session.SchemaVersionKey] = session.SchemaVersion

	return s.writeFile(values)
}

// Close is a no-op: the file is opened per operation.
func (s *Store) Close() error {
	return nil
}

// Path returns the configured file path.
func (s *Store) Path() string {
	return s.path
}

// readFile parses the store file. A missing file yields an empty map.
// Unparsable contents map to ErrCorruptedRecord so the resolver self-heals.
func (s *Store) readFile() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}

	// Warn if the file is readable by group/other; it holds session tokens.
	if runtime.GOOS != "windows" {
		if info, statErr := os.Stat(s.path); statErr == nil {
			mode := info.Mode().Perm()
			if mode&0077 != 0 {
				s.logger.Warn("store file has too-open permissions, should be 0600",
					"path", s.path, "current_mode", fmt.Sprintf("%04o", mode))
			}
		}
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: unparsable store file: %v", session.ErrCorruptedRecord, err)
	}
	if values == nil {
		values = map[string]string{}
	}
	return values, nil
}

// readFileLenient is readFile for write paths: corruption yields an empty
// map instead of an error, so clears and overwrites can recover the file.
func (s *Store) readFileLenient() (map[string]string, error) {
	values, err := s.readFile()
	if err != nil {
		if errors.Is(err, session.ErrCorruptedRecord) {
			s.logger.Warn("resetting unparsable store file", "path", s.path)
			return map[string]string{}, nil
		}
		return nil, err
	}
	return values, nil
}

// writeFile persists the key set atomically under a cross-process lock.
//
// The write sequence is:
//  1. Acquire flock on path+".lock"
//  2. Copy current file to path+".bak" (skipped if no current file)
//  3. Marshal as indented JSON
//  4. Write to path+".tmp" with 0600 permissions, fsync, rename over path
//  5. Release flock
func (s *Store) writeFile(values map[string]string) error {
	lockPath := s.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = lockFile.Close() }()

	if err := flockLock(lockFile.Fd()); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer flockUnlock(lockFile.Fd()) //nolint:errcheck

	if currentData, readErr := os.ReadFile(s.path); readErr == nil {
		bakPath := s.path + ".bak"
		if writeErr := os.WriteFile(bakPath, currentData, 0600); writeErr != nil {
			s.logger.Warn("failed to create backup", "error", writeErr)
		}
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	data = append(data, '\n')

	if err := s.writeAtomic(data); err != nil {
		return err
	}

	// Ensure 0600 after rename as a safety net.
	if err := os.Chmod(s.path, 0600); err != nil {
		s.logger.Warn("failed to set permissions on store file", "error", err)
	}

	s.logger.Debug("store saved", "path", s.path)
	return nil
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it over
// the target path. On any error the temp file is cleaned up.
func (s *Store) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to store: %w", err)
	}
	return nil
}

// Compile-time interface verification.
var _ session.Store = (*Store)(nil)
