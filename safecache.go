package safecache

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/galtl/safecache/pkg/fs"
)

// Store is the caller-facing entry point. It wires a [RecordValidator],
// [BackupManager], and [AtomicWriter] together per call, with the [Config]
// the caller supplies for that call.
//
// A Store is cheap and safe to share; all mutable state lives on disk and
// in the process-wide per-path locks.
type Store struct {
	fs  fs.FS
	log logrus.FieldLogger
}

// New creates a Store on the given filesystem. Panics if fsys is nil.
// A nil log falls back to the logrus standard logger.
func New(fsys fs.FS, log logrus.FieldLogger) *Store {
	if fsys == nil {
		panic("fsys is nil")
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Store{fs: fsys, log: log}
}

// NewDefault creates a Store on the real filesystem with the standard
// logger.
func NewDefault() *Store {
	return New(fs.NewReal(), nil)
}

// Save encodes records and writes them to path according to cfg.
//
// With cfg.Enabled the write goes through the atomic staging sequence;
// otherwise it falls back to a plain overwrite with byte-identical output
// (see [Store.SaveSimple]).
func (s *Store) Save(ctx context.Context, records []Record, path string, cfg Config) error {
	data, err := EncodeRecords(records)
	if err != nil {
		return err
	}

	return s.SaveBytes(ctx, data, path, cfg)
}

// SaveBytes writes already-encoded cache content to path according to cfg.
func (s *Store) SaveBytes(ctx context.Context, content []byte, path string, cfg Config) error {
	if !cfg.Enabled {
		return s.writeSimple(path, content)
	}

	check := NewRecordValidator(s.fs, s.log)
	backups := NewBackupManager(s.fs, cfg, check, s.log)
	writer := NewAtomicWriter(s.fs, cfg, check, backups, s.log)

	return writer.Write(ctx, path, content)
}

// SaveSimple writes records to path with a plain truncate-and-write: no
// staging, no validation, no snapshot. The encoded bytes are identical to
// what [Store.Save] produces.
func (s *Store) SaveSimple(records []Record, path string) error {
	data, err := EncodeRecords(records)
	if err != nil {
		return err
	}

	return s.writeSimple(path, data)
}

func (s *Store) writeSimple(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, cacheDirPerm); err != nil {
		return fmt.Errorf("create dir %q: %w", dir, err)
	}

	if err := s.fs.WriteFile(path, content, cacheFilePerm); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}

	s.log.WithFields(logrus.Fields{"path": path, "bytes": len(content)}).
		Debug("simple write complete")

	return nil
}

// Backup snapshots the current content of path. Returns the snapshot path,
// or ("", nil) when backups are disabled or path does not exist.
func (s *Store) Backup(path string, cfg Config) (string, error) {
	backups := NewBackupManager(s.fs, cfg, NewRecordValidator(s.fs, s.log), s.log)

	return backups.Create(path)
}

// Restore overwrites path with the newest valid snapshot. Returns false -
// with the cause logged - when no snapshot exists, the newest one is
// invalid, or the copy fails; path is untouched in every false case.
func (s *Store) Restore(path string, cfg Config) bool {
	backups := NewBackupManager(s.fs, cfg, NewRecordValidator(s.fs, s.log), s.log)

	if err := backups.Restore(path); err != nil {
		s.log.WithError(err).WithField("path", path).Error("restore failed")

		return false
	}

	return true
}

// Prune deletes snapshots of path beyond cfg.RetentionCount, oldest first.
// Returns how many were removed.
func (s *Store) Prune(path string, cfg Config) (int, error) {
	backups := NewBackupManager(s.fs, cfg, nil, s.log)

	return backups.Prune(path)
}

// Validate reports whether the file at path is a structurally valid cache
// file. The cause of a false result is logged at debug level.
func (s *Store) Validate(path string) bool {
	err := NewRecordValidator(s.fs, s.log).Validate(path)
	if err != nil {
		s.log.WithError(err).Debug("validation failed")

		return false
	}

	return true
}
