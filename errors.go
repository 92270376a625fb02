package safecache

import "errors"

var (
	// ErrStaging indicates the staged temp file could not be created,
	// written, or synced. The target file is untouched.
	ErrStaging = errors.New("staging failed")

	// ErrValidation indicates the staged content failed structural
	// validation. The target file is untouched.
	ErrValidation = errors.New("validation failed")

	// ErrReplace indicates the atomic rename of the staged file over the
	// target failed (cross-device link, permissions). The target file is
	// untouched.
	ErrReplace = errors.New("replace failed")

	// ErrBackup indicates a snapshot of the existing target could not be
	// created. Non-fatal unless [Config.BackupFailureIsFatal] is set.
	ErrBackup = errors.New("backup failed")

	// ErrRestore indicates a restore could not complete: no snapshot
	// exists, the newest snapshot is invalid, or the copy failed. The
	// target file is untouched.
	ErrRestore = errors.New("restore failed")

	// ErrTimeout indicates the write sequence exceeded
	// [Config.WriteTimeout] or its context was canceled before the
	// replace step. The target file is untouched.
	ErrTimeout = errors.New("write timed out")

	// ErrDisabled indicates [AtomicWriter.Write] was called with a
	// config that disables safe writes. Use [Store.Save], which routes
	// to the plain fallback instead.
	ErrDisabled = errors.New("safe write disabled")
)
