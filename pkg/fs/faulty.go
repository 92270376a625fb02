package fs

import (
	"os"
)

// Faulty wraps an [FS] and injects errors into selected operations.
//
// Each Fail* hook is consulted before the call is forwarded to the wrapped
// filesystem; returning a non-nil error short-circuits the operation. A nil
// hook means the operation passes through untouched.
//
// Faulty exists so error paths (staging failure, rename failure, sync
// failure, cleanup failure) can be exercised deterministically in tests
// without filling a disk or revoking permissions.
type Faulty struct {
	FS

	// FailOpenFile fails OpenFile for the given path.
	FailOpenFile func(path string) error

	// FailSync fails File.Sync on files opened through OpenFile.
	FailSync func(path string) error

	// FailRename fails Rename for the given pair.
	FailRename func(oldpath, newpath string) error

	// FailRemove fails Remove for the given path.
	FailRemove func(path string) error

	// FailWriteFileAtomic fails WriteFileAtomic for the given path.
	FailWriteFileAtomic func(path string) error

	// FailReadFile fails ReadFile for the given path.
	FailReadFile func(path string) error
}

// NewFaulty wraps inner. Panics if inner is nil.
func NewFaulty(inner FS) *Faulty {
	if inner == nil {
		panic("inner fs is nil")
	}

	return &Faulty{FS: inner}
}

func (f *Faulty) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if f.FailOpenFile != nil {
		if err := f.FailOpenFile(path); err != nil {
			return nil, err
		}
	}

	file, err := f.FS.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	if f.FailSync == nil {
		return file, nil
	}

	return &faultyFile{File: file, path: path, failSync: f.FailSync}, nil
}

func (f *Faulty) Rename(oldpath, newpath string) error {
	if f.FailRename != nil {
		if err := f.FailRename(oldpath, newpath); err != nil {
			return err
		}
	}

	return f.FS.Rename(oldpath, newpath)
}

func (f *Faulty) Remove(path string) error {
	if f.FailRemove != nil {
		if err := f.FailRemove(path); err != nil {
			return err
		}
	}

	return f.FS.Remove(path)
}

func (f *Faulty) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if f.FailWriteFileAtomic != nil {
		if err := f.FailWriteFileAtomic(path); err != nil {
			return err
		}
	}

	return f.FS.WriteFileAtomic(path, data, perm)
}

func (f *Faulty) ReadFile(path string) ([]byte, error) {
	if f.FailReadFile != nil {
		if err := f.FailReadFile(path); err != nil {
			return nil, err
		}
	}

	return f.FS.ReadFile(path)
}

// faultyFile intercepts Sync on a file handed out by [Faulty.OpenFile].
type faultyFile struct {
	File

	path     string
	failSync func(path string) error
}

func (f *faultyFile) Sync() error {
	if err := f.failSync(f.path); err != nil {
		return err
	}

	return f.File.Sync()
}

// Compile-time interface checks.
var (
	_ FS   = (*Faulty)(nil)
	_ File = (*faultyFile)(nil)
)
