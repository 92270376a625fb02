package safecache

import (
	"path/filepath"
	"sync"
)

// targetLocks serializes write sequences per target path for the whole
// process. Keeping the registry package-level (rather than per-writer) means
// two independently constructed writers aimed at the same file still
// exclude each other.
//
// Locks are created lazily and never removed; the key space is the set of
// distinct cache paths a process touches, which is small.
var targetLocks = &pathLocks{locks: make(map[string]*sync.Mutex)}

type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// get returns the mutex for path, creating it on first use.
func (p *pathLocks) get(path string) *sync.Mutex {
	key := canonicalPath(path)

	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[key] = lock
	}

	return lock
}

// canonicalPath normalizes a target path so spellings like "./a/b" and
// "a/b" map to the same lock. Symlink aliasing is not resolved; callers
// that address one file through two links bypass the per-path guarantee.
func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	return abs
}
