package safecache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/galtl/safecache/pkg/fs"
)

// snapshotTimeFormat is the timestamp embedded in snapshot names.
// One-second resolution; mtime orders snapshots, the name is for humans.
const snapshotTimeFormat = "20060102_150405"

// BackupManager snapshots cache files before they are overwritten and
// restores them from the newest snapshot.
//
// A snapshot of /x/cache.json is a sibling file named
// "cache_{YYYYMMDD_HHMMSS}_backup.json" holding a byte-for-byte copy.
// Retention is enforced per target: after every Create, only the
// [Config.RetentionCount] newest snapshots (by modification time) survive.
type BackupManager struct {
	fs    fs.FS
	cfg   Config
	check Validator // nil skips snapshot validation on restore
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewBackupManager creates a BackupManager. Panics if fsys is nil. A nil
// check skips validation of snapshots during restore; a nil log falls back
// to the logrus standard logger.
func NewBackupManager(fsys fs.FS, cfg Config, check Validator, log logrus.FieldLogger) *BackupManager {
	if fsys == nil {
		panic("fsys is nil")
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	return &BackupManager{
		fs:    fsys,
		cfg:   cfg,
		check: check,
		log:   log,
		now:   time.Now,
	}
}

// Create snapshots the current content of path and prunes old snapshots.
//
// Returns ("", nil) without touching the disk when backups are disabled or
// path does not exist. On failure the returned error wraps [ErrBackup];
// callers decide whether that is fatal (see [Config.BackupFailureIsFatal]).
func (m *BackupManager) Create(path string) (string, error) {
	if !m.cfg.BackupEnabled {
		return "", nil
	}

	exists, err := m.fs.Exists(path)
	if err != nil {
		return "", fmt.Errorf("%w: stat %q: %v", ErrBackup, path, err)
	}

	if !exists {
		m.log.WithField("path", path).Debug("no file to snapshot")

		return "", nil
	}

	data, err := m.fs.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %q: %v", ErrBackup, path, err)
	}

	snapPath := m.snapshotPath(path)

	if err := m.fs.WriteFileAtomic(snapPath, data, cacheFilePerm); err != nil {
		return "", fmt.Errorf("%w: write %q: %v", ErrBackup, snapPath, err)
	}

	m.log.WithFields(logrus.Fields{"path": path, "snapshot": snapPath, "bytes": len(data)}).
		Debug("snapshot created")

	m.Prune(path)

	return snapPath, nil
}

// Restore overwrites path with the newest valid snapshot's content.
//
// The newest snapshot (by modification time, name as tie-break) is
// validated before the copy; an invalid snapshot fails the restore rather
// than falling back to an older one. The snapshot itself is not consumed.
// On failure the returned error wraps [ErrRestore] and path is untouched.
func (m *BackupManager) Restore(path string) error {
	snaps, err := m.listSnapshots(path)
	if err != nil {
		return fmt.Errorf("%w: list snapshots for %q: %v", ErrRestore, path, err)
	}

	if len(snaps) == 0 {
		return fmt.Errorf("%w: no snapshot found for %q", ErrRestore, path)
	}

	latest := snaps[0]

	if m.check != nil {
		if err := m.check.Validate(latest.path); err != nil {
			return fmt.Errorf("%w: snapshot %q: %v", ErrRestore, latest.path, err)
		}
	}

	data, err := m.fs.ReadFile(latest.path)
	if err != nil {
		return fmt.Errorf("%w: read snapshot %q: %v", ErrRestore, latest.path, err)
	}

	if err := m.fs.WriteFileAtomic(path, data, cacheFilePerm); err != nil {
		return fmt.Errorf("%w: write %q: %v", ErrRestore, path, err)
	}

	m.log.WithFields(logrus.Fields{"path": path, "snapshot": latest.path}).
		Info("restored from snapshot")

	return nil
}

// Prune deletes every snapshot of path beyond the retention count, oldest
// first. Individual deletion failures are logged and skipped so one stuck
// file cannot protect the rest of the excess. Returns how many snapshots
// were removed; the error is only for a failed directory listing.
func (m *BackupManager) Prune(path string) (int, error) {
	snaps, err := m.listSnapshots(path)
	if err != nil {
		return 0, fmt.Errorf("%w: list snapshots for %q: %v", ErrBackup, path, err)
	}

	if len(snaps) <= m.cfg.RetentionCount {
		return 0, nil
	}

	removed := 0

	for _, snap := range snaps[m.cfg.RetentionCount:] {
		if err := m.fs.Remove(snap.path); err != nil {
			m.log.WithError(err).WithField("snapshot", snap.path).
				Warn("removing snapshot failed")

			continue
		}

		removed++

		m.log.WithField("snapshot", snap.path).Debug("snapshot pruned")
	}

	return removed, nil
}

// snapshot is one backup file of a target.
type snapshot struct {
	path    string
	modTime time.Time
}

// snapshotPath derives the snapshot name for path at the current time.
func (m *BackupManager) snapshotPath(path string) string {
	dir, stem, ext := splitTarget(path)
	name := fmt.Sprintf("%s_%s_backup%s", stem, m.now().Format(snapshotTimeFormat), ext)

	return filepath.Join(dir, name)
}

// listSnapshots returns every snapshot of path, newest first.
//
// Restore and Prune both go through this single helper so their notion of
// "the snapshots of path" can never drift apart. Ordering is modification
// time descending with the (timestamped) name as tie-break, which keeps
// ordering deterministic when two snapshots land in the same mtime
// granule.
func (m *BackupManager) listSnapshots(path string) ([]snapshot, error) {
	dir, stem, ext := splitTarget(path)
	prefix := stem + "_"
	suffix := "_backup" + ext

	entries, err := m.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	var snaps []snapshot

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isSnapshotName(name, prefix, suffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			m.log.WithError(err).WithField("snapshot", name).
				Warn("stat snapshot failed, skipping")

			continue
		}

		snaps = append(snaps, snapshot{
			path:    filepath.Join(dir, name),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].modTime.Equal(snaps[j].modTime) {
			return snaps[i].modTime.After(snaps[j].modTime)
		}

		return snaps[i].path > snaps[j].path
	})

	return snaps, nil
}

// isSnapshotName matches "{stem}_{timestamp}_backup{ext}" with a non-empty
// timestamp part.
func isSnapshotName(name, prefix, suffix string) bool {
	return len(name) > len(prefix)+len(suffix) &&
		strings.HasPrefix(name, prefix) &&
		strings.HasSuffix(name, suffix)
}
