package safecache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/galtl/safecache/pkg/fs"
)

const (
	cacheFilePerm = 0o644
	cacheDirPerm  = 0o755

	// Retries for the O_EXCL staged-file create. Collisions need two
	// writes to the same stem within one microsecond, so one retry
	// already covers it in practice.
	stagedMaxAttempts = 100
)

// AtomicWriter replaces a target file's content atomically.
//
// One Write call stages the new content in a hidden temp file next to the
// target, fsyncs it, optionally validates it, optionally snapshots the
// existing target, then renames the temp file over the target. The rename
// is the only step that touches the target, so any failure before it leaves
// the previous version intact.
//
// Write sequences for the same target path serialize process-wide; writes
// to different paths run independently. There is no cross-process
// exclusion.
type AtomicWriter struct {
	fs      fs.FS
	cfg     Config
	check   Validator      // nil disables validation
	backups *BackupManager // nil disables snapshots
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewAtomicWriter creates an AtomicWriter. Panics if fsys is nil. check and
// backups may be nil to disable the respective step. A nil log falls back
// to the logrus standard logger.
func NewAtomicWriter(fsys fs.FS, cfg Config, check Validator, backups *BackupManager, log logrus.FieldLogger) *AtomicWriter {
	if fsys == nil {
		panic("fsys is nil")
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	return &AtomicWriter{
		fs:      fsys,
		cfg:     cfg,
		check:   check,
		backups: backups,
		log:     log,
		now:     time.Now,
	}
}

// Write atomically replaces the file at path with content.
//
// Returned errors wrap one of [ErrStaging], [ErrValidation], [ErrBackup]
// (only when [Config.BackupFailureIsFatal]), [ErrReplace], [ErrTimeout],
// or [ErrDisabled].
// In every error case the target file still holds its previous content (or
// still does not exist).
//
// [Config.WriteTimeout] is layered onto ctx; expiry or cancellation aborts
// at the next step boundary and surfaces as [ErrTimeout].
func (w *AtomicWriter) Write(ctx context.Context, path string, content []byte) error {
	if path == "" {
		return fmt.Errorf("%w: path is empty", ErrStaging)
	}

	if !w.cfg.Enabled {
		return ErrDisabled
	}

	if w.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.WriteTimeout)

		defer cancel()
	}

	lock := targetLocks.get(path)
	lock.Lock()
	defer lock.Unlock()

	return w.writeLocked(ctx, path, content)
}

func (w *AtomicWriter) writeLocked(ctx context.Context, path string, content []byte) error {
	if err := stepDeadline(ctx); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := w.fs.MkdirAll(dir, cacheDirPerm); err != nil {
		return fmt.Errorf("%w: create dir %q: %v", ErrStaging, dir, err)
	}

	stagedPath, err := w.stage(path, content)
	if err != nil {
		return err
	}

	// Any failure from here on must remove the staged file before
	// surfacing the primary error.
	fail := func(err error) error {
		w.cleanupStaged(stagedPath)

		return err
	}

	if err := stepDeadline(ctx); err != nil {
		return fail(err)
	}

	if w.cfg.VerifyOnWrite && w.check != nil {
		if err := w.check.Validate(stagedPath); err != nil {
			return fail(err)
		}
	}

	if err := stepDeadline(ctx); err != nil {
		return fail(err)
	}

	if w.backups != nil {
		_, backupErr := w.backups.Create(path)
		if backupErr != nil {
			if w.cfg.BackupFailureIsFatal {
				return fail(backupErr)
			}

			w.log.WithError(backupErr).WithField("path", path).
				Warn("snapshot failed, write continues")
		}
	}

	if err := stepDeadline(ctx); err != nil {
		return fail(err)
	}

	if err := w.fs.Rename(stagedPath, path); err != nil {
		return fail(fmt.Errorf("%w: rename %q over %q: %v", ErrReplace, stagedPath, path, err))
	}

	w.log.WithFields(logrus.Fields{"path": path, "bytes": len(content)}).
		Debug("atomic write complete")

	return nil
}

// stage creates the staged temp file next to path, writes content, and
// syncs it to storage. On any failure the partial file is removed and an
// [ErrStaging] error is returned.
func (w *AtomicWriter) stage(path string, content []byte) (string, error) {
	file, stagedPath, err := w.createStaged(path)
	if err != nil {
		return "", err
	}

	_, writeErr := file.Write(content)
	if writeErr != nil {
		return "", errors.Join(
			fmt.Errorf("%w: write %q: %v", ErrStaging, stagedPath, writeErr),
			w.discardStaged(file, stagedPath),
		)
	}

	// Content is not considered staged until it is on storage.
	syncErr := file.Sync()
	if syncErr != nil {
		return "", errors.Join(
			fmt.Errorf("%w: sync %q: %v", ErrStaging, stagedPath, syncErr),
			w.discardStaged(file, stagedPath),
		)
	}

	closeErr := file.Close()
	if closeErr != nil {
		w.cleanupStaged(stagedPath)

		return "", fmt.Errorf("%w: close %q: %v", ErrStaging, stagedPath, closeErr)
	}

	w.log.WithFields(logrus.Fields{"staged": stagedPath, "bytes": len(content)}).
		Debug("content staged")

	return stagedPath, nil
}

// createStaged opens a fresh staged file for path using a microsecond
// timestamp name, retrying on collision.
func (w *AtomicWriter) createStaged(path string) (fs.File, string, error) {
	dir, stem, ext := splitTarget(path)

	for attempt := 0; attempt < stagedMaxAttempts; attempt++ {
		name := fmt.Sprintf(".%s_%d_tmp%s", stem, w.now().UnixMicro(), ext)
		stagedPath := filepath.Join(dir, name)

		file, err := w.fs.OpenFile(stagedPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, cacheFilePerm)
		if err == nil {
			return file, stagedPath, nil
		}

		if os.IsExist(err) {
			continue
		}

		return nil, "", fmt.Errorf("%w: create staged file %q: %v", ErrStaging, stagedPath, err)
	}

	return nil, "", fmt.Errorf("%w: exhausted staged file attempts in %q", ErrStaging, dir)
}

// discardStaged closes and removes a staged file after a failure mid-write.
// Always returns nil; problems are logged, never surfaced, so they cannot
// mask the primary error.
func (w *AtomicWriter) discardStaged(file fs.File, stagedPath string) error {
	if err := file.Close(); err != nil {
		w.log.WithError(err).WithField("staged", stagedPath).
			Warn("closing staged file failed")
	}

	w.cleanupStaged(stagedPath)

	return nil
}

// cleanupStaged removes a leftover staged file, best-effort.
func (w *AtomicWriter) cleanupStaged(stagedPath string) {
	if !w.cfg.CleanupTempOnExit {
		return
	}

	err := w.fs.Remove(stagedPath)
	if err != nil && !os.IsNotExist(err) {
		w.log.WithError(err).WithField("staged", stagedPath).
			Warn("removing staged file failed")

		return
	}

	w.log.WithField("staged", stagedPath).Debug("staged file removed")
}

// stepDeadline aborts the sequence at a step boundary once ctx is done.
// Cancellation and deadline expiry both surface as [ErrTimeout]: either
// way the sequence was cut short before the replace.
func stepDeadline(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	default:
		return nil
	}
}

// splitTarget splits a target path into directory, stem, and extension.
// Staged and snapshot names are both derived from these parts.
func splitTarget(path string) (dir, stem, ext string) {
	dir = filepath.Dir(path)
	base := filepath.Base(path)
	ext = filepath.Ext(base)
	stem = strings.TrimSuffix(base, ext)

	return dir, stem, ext
}
