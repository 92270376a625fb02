package safecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/galtl/safecache/pkg/fs"
)

var errBoom = errors.New("boom")

// failingValidator rejects every file.
type failingValidator struct{}

func (failingValidator) Validate(path string) error {
	return fmt.Errorf("%w: %q rejected", ErrValidation, path)
}

// TestAtomicWriter_WritesFreshTarget verifies a write to a nonexistent path
// creates the file with exactly the staged content.
func TestAtomicWriter_WritesFreshTarget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "cache.json")
	content := mustEncode(t, sampleRecords(3))

	writer := newTestWriter(fs.NewReal(), NewConfig())

	if err := writer.Write(context.Background(), target, content); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if got := mustReadFile(t, target); !bytes.Equal(got, content) {
		t.Fatalf("content=%q, want %q", got, content)
	}

	if staged := stagedLeftovers(t, dir); len(staged) != 0 {
		t.Fatalf("staged leftovers: %v", staged)
	}
}

// TestAtomicWriter_CreatesMissingParentDirs verifies parent directories are
// created recursively.
func TestAtomicWriter_CreatesMissingParentDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "a", "b", "cache.json")

	writer := newTestWriter(fs.NewReal(), NewConfig())

	if err := writer.Write(context.Background(), target, mustEncode(t, sampleRecords(1))); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("target missing: %v", err)
	}
}

// TestAtomicWriter_ValidationFailureLeavesTargetAbsent verifies the
// validation gate: a rejected staged file never becomes the target, and no
// staged file is left behind.
func TestAtomicWriter_ValidationFailureLeavesTargetAbsent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "cache.json")

	writer := NewAtomicWriter(fs.NewReal(), NewConfig(), failingValidator{}, nil, quietLogger())

	err := writer.Write(context.Background(), target, []byte("[]"))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v, want ErrValidation", err)
	}

	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Fatalf("target exists after rejected write: %v", statErr)
	}

	if staged := stagedLeftovers(t, dir); len(staged) != 0 {
		t.Fatalf("staged leftovers: %v", staged)
	}
}

// TestAtomicWriter_InvalidContentRejectedByRecordValidator verifies the
// stock validator guards the write end to end.
func TestAtomicWriter_InvalidContentRejectedByRecordValidator(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "cache.json")
	previous := mustEncode(t, sampleRecords(2))
	mustWriteFile(t, target, previous)

	writer := newTestWriter(fs.NewReal(), NewConfig())

	err := writer.Write(context.Background(), target, []byte(`{"not":"an array"}`))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v, want ErrValidation", err)
	}

	if got := mustReadFile(t, target); !bytes.Equal(got, previous) {
		t.Fatalf("target changed after rejected write")
	}
}

// TestAtomicWriter_StagingFailureLeavesTargetUntouched verifies a sync
// failure aborts before the target is touched and cleans up the staged
// file.
func TestAtomicWriter_StagingFailureLeavesTargetUntouched(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "cache.json")
	previous := mustEncode(t, sampleRecords(2))
	mustWriteFile(t, target, previous)

	faulty := fs.NewFaulty(fs.NewReal())
	faulty.FailSync = func(_ string) error { return errBoom }

	writer := newTestWriter(faulty, NewConfig())

	err := writer.Write(context.Background(), target, mustEncode(t, sampleRecords(5)))
	if !errors.Is(err, ErrStaging) {
		t.Fatalf("err=%v, want ErrStaging", err)
	}

	if got := mustReadFile(t, target); !bytes.Equal(got, previous) {
		t.Fatalf("target changed after staging failure")
	}

	if staged := stagedLeftovers(t, dir); len(staged) != 0 {
		t.Fatalf("staged leftovers: %v", staged)
	}
}

// TestAtomicWriter_ReplaceFailureLeavesTargetUntouched verifies a rename
// failure surfaces as ErrReplace and preserves the previous content.
func TestAtomicWriter_ReplaceFailureLeavesTargetUntouched(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "cache.json")
	previous := mustEncode(t, sampleRecords(2))
	mustWriteFile(t, target, previous)

	faulty := fs.NewFaulty(fs.NewReal())
	faulty.FailRename = func(_, _ string) error { return errBoom }

	writer := newTestWriter(faulty, NewConfig(WithBackups(false)))

	err := writer.Write(context.Background(), target, mustEncode(t, sampleRecords(5)))
	if !errors.Is(err, ErrReplace) {
		t.Fatalf("err=%v, want ErrReplace", err)
	}

	if got := mustReadFile(t, target); !bytes.Equal(got, previous) {
		t.Fatalf("target changed after replace failure")
	}

	if staged := stagedLeftovers(t, dir); len(staged) != 0 {
		t.Fatalf("staged leftovers: %v", staged)
	}
}

// TestAtomicWriter_CanceledContextSurfacesTimeout verifies cancellation
// aborts the sequence with ErrTimeout before the target is touched.
func TestAtomicWriter_CanceledContextSurfacesTimeout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "cache.json")
	previous := mustEncode(t, sampleRecords(2))
	mustWriteFile(t, target, previous)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	writer := newTestWriter(fs.NewReal(), NewConfig())

	err := writer.Write(ctx, target, mustEncode(t, sampleRecords(5)))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err=%v, want ErrTimeout", err)
	}

	if got := mustReadFile(t, target); !bytes.Equal(got, previous) {
		t.Fatalf("target changed after timeout")
	}

	if staged := stagedLeftovers(t, dir); len(staged) != 0 {
		t.Fatalf("staged leftovers: %v", staged)
	}
}

// TestAtomicWriter_SnapshotsExistingTargetBeforeReplace verifies the backup
// step captures the pre-replace bytes.
func TestAtomicWriter_SnapshotsExistingTargetBeforeReplace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "cache.json")
	previous := mustEncode(t, sampleRecords(2))
	mustWriteFile(t, target, previous)

	writer := newTestWriter(fs.NewReal(), NewConfig())

	next := mustEncode(t, sampleRecords(4))
	if err := writer.Write(context.Background(), target, next); err != nil {
		t.Fatalf("Write: %v", err)
	}

	snaps := snapshotFiles(t, dir, "cache", ".json")
	if len(snaps) != 1 {
		t.Fatalf("snapshots=%d, want 1 (%v)", len(snaps), snaps)
	}

	if got := mustReadFile(t, snaps[0]); !bytes.Equal(got, previous) {
		t.Fatalf("snapshot holds %q, want pre-replace content", got)
	}

	if got := mustReadFile(t, target); !bytes.Equal(got, next) {
		t.Fatalf("target holds %q, want new content", got)
	}
}

// TestAtomicWriter_BackupFailureIsNonFatalByDefault verifies a failed
// snapshot is swallowed and the write still lands.
func TestAtomicWriter_BackupFailureIsNonFatalByDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "cache.json")
	mustWriteFile(t, target, mustEncode(t, sampleRecords(2)))

	faulty := fs.NewFaulty(fs.NewReal())
	faulty.FailWriteFileAtomic = func(_ string) error { return errBoom }

	writer := newTestWriter(faulty, NewConfig())

	next := mustEncode(t, sampleRecords(4))
	if err := writer.Write(context.Background(), target, next); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if got := mustReadFile(t, target); !bytes.Equal(got, next) {
		t.Fatalf("target holds %q, want new content", got)
	}
}

// TestAtomicWriter_BackupFailureFatalWhenConfigured verifies the opt-in
// strict mode aborts the write on snapshot failure.
func TestAtomicWriter_BackupFailureFatalWhenConfigured(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "cache.json")
	previous := mustEncode(t, sampleRecords(2))
	mustWriteFile(t, target, previous)

	faulty := fs.NewFaulty(fs.NewReal())
	faulty.FailWriteFileAtomic = func(_ string) error { return errBoom }

	writer := newTestWriter(faulty, NewConfig(WithBackupFailureFatal(true)))

	err := writer.Write(context.Background(), target, mustEncode(t, sampleRecords(4)))
	if !errors.Is(err, ErrBackup) {
		t.Fatalf("err=%v, want ErrBackup", err)
	}

	if got := mustReadFile(t, target); !bytes.Equal(got, previous) {
		t.Fatalf("target changed after fatal backup failure")
	}
}

// TestAtomicWriter_CleanupFailureDoesNotMaskPrimaryError verifies a failing
// staged-file removal never replaces the primary error.
func TestAtomicWriter_CleanupFailureDoesNotMaskPrimaryError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "cache.json")

	faulty := fs.NewFaulty(fs.NewReal())
	faulty.FailRename = func(_, _ string) error { return errBoom }
	faulty.FailRemove = func(_ string) error { return errBoom }

	writer := newTestWriter(faulty, NewConfig(WithBackups(false)))

	err := writer.Write(context.Background(), target, []byte("[]"))
	if !errors.Is(err, ErrReplace) {
		t.Fatalf("err=%v, want ErrReplace even when cleanup fails", err)
	}
}

// TestAtomicWriter_ConcurrentWritersSerializePerPath runs 5 writers against
// one path and verifies the survivor is exactly one writer's payload.
func TestAtomicWriter_ConcurrentWritersSerializePerPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "cache.json")

	const writers = 5

	payloads := make([][]byte, writers)
	for i := 0; i < writers; i++ {
		payloads[i] = mustEncode(t, sampleRecords(i+1))
	}

	var wg sync.WaitGroup

	for i := 0; i < writers; i++ {
		i := i

		wg.Add(1)

		go func() {
			defer wg.Done()

			writer := newTestWriter(fs.NewReal(), NewConfig(WithBackups(false)))
			if err := writer.Write(context.Background(), target, payloads[i]); err != nil {
				t.Errorf("writer %d: %v", i, err)
			}
		}()
	}

	wg.Wait()

	got := mustReadFile(t, target)

	matched := false
	for _, payload := range payloads {
		if bytes.Equal(got, payload) {
			matched = true

			break
		}
	}

	if !matched {
		t.Fatalf("final content matches no writer's payload: %q", got)
	}

	if _, err := checkRecordShape(got); err != nil {
		t.Fatalf("final content is structurally invalid: %v", err)
	}

	if staged := stagedLeftovers(t, dir); len(staged) != 0 {
		t.Fatalf("staged leftovers: %v", staged)
	}
}

// TestAtomicWriter_DisabledConfigRejected verifies the writer refuses a
// config that disables safe writes instead of silently degrading.
func TestAtomicWriter_DisabledConfigRejected(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "cache.json")

	writer := newTestWriter(fs.NewReal(), NewConfig(WithEnabled(false)))

	err := writer.Write(context.Background(), target, []byte("[]"))
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("err=%v, want ErrDisabled", err)
	}

	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Fatalf("target created by disabled writer: %v", statErr)
	}
}

// TestAtomicWriter_EmptyPathRejected verifies the guard on empty targets.
func TestAtomicWriter_EmptyPathRejected(t *testing.T) {
	t.Parallel()

	writer := newTestWriter(fs.NewReal(), NewConfig())

	if err := writer.Write(context.Background(), "", []byte("[]")); !errors.Is(err, ErrStaging) {
		t.Fatalf("err=%v, want ErrStaging", err)
	}
}
