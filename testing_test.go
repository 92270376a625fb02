package safecache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/galtl/safecache/pkg/fs"
)

// quietLogger returns a logger that swallows all output so tests stay
// silent.
func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logger
}

// sampleRecords returns n well-formed records with sequential indexes.
func sampleRecords(n int) []Record {
	records := make([]Record, 0, n)

	for i := 0; i < n; i++ {
		records = append(records, Record{
			Index:  Index(i),
			Name:   fmt.Sprintf("speaker%d", i),
			PreJP:  fmt.Sprintf("原文%d", i),
			PostJP: fmt.Sprintf("整形%d", i),
			PreZH:  fmt.Sprintf("译文%d", i),
		})
	}

	return records
}

// mustEncode encodes records or fails the test.
func mustEncode(t *testing.T, records []Record) []byte {
	t.Helper()

	data, err := EncodeRecords(records)
	if err != nil {
		t.Fatalf("EncodeRecords: %v", err)
	}

	return data
}

// mustWriteFile creates a file with content or fails the test.
func mustWriteFile(t *testing.T, path string, content []byte) {
	t.Helper()

	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("setup write %q: %v", path, err)
	}
}

// mustReadFile reads a file or fails the test.
func mustReadFile(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("setup read %q: %v", path, err)
	}

	return data
}

// stagedLeftovers lists files in dir matching the staged-file pattern.
func stagedLeftovers(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir %q: %v", dir, err)
	}

	var staged []string

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") && strings.Contains(name, "_tmp") {
			staged = append(staged, name)
		}
	}

	return staged
}

// snapshotFiles lists files in dir matching the snapshot pattern for stem.
func snapshotFiles(t *testing.T, dir, stem, ext string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir %q: %v", dir, err)
	}

	var snaps []string

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, stem+"_") && strings.HasSuffix(name, "_backup"+ext) {
			snaps = append(snaps, filepath.Join(dir, name))
		}
	}

	return snaps
}

// tickingClock hands out strictly increasing timestamps one second apart,
// so snapshot names never collide within a test.
type tickingClock struct {
	mu sync.Mutex
	at time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{at: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.at = c.at.Add(time.Second)

	return c.at
}

// newTestWriter builds an AtomicWriter on fsys with snapshots wired in.
func newTestWriter(fsys fs.FS, cfg Config) *AtomicWriter {
	log := quietLogger()
	check := NewRecordValidator(fsys, log)
	backups := NewBackupManager(fsys, cfg, check, log)
	backups.now = newTickingClock().Now

	return NewAtomicWriter(fsys, cfg, check, backups, log)
}
