package safecache

import "time"

// Default configuration values applied by [NewConfig].
const (
	DefaultRetentionCount = 3
	DefaultWriteTimeout   = 30 * time.Second
)

// Config controls how cache files are written, verified, and backed up.
//
// A Config is an immutable value: build one with [NewConfig] (defaults plus
// options) and pass it by value. Zero-value Config disables everything; use
// NewConfig unless you mean that.
type Config struct {
	// Enabled selects the safe-write path. When false, saves fall back to
	// a plain truncate-and-write with identical byte output.
	Enabled bool

	// VerifyOnWrite validates staged content before it replaces the
	// target.
	VerifyOnWrite bool

	// BackupEnabled snapshots an existing target before it is replaced.
	BackupEnabled bool

	// BackupFailureIsFatal aborts the write when a snapshot cannot be
	// created. Default false: availability of the write is prioritized
	// over backup completeness, and the failure is only logged.
	BackupFailureIsFatal bool

	// RetentionCount bounds how many snapshots are kept per target.
	// Clamped to >= 0 by NewConfig; 0 means keep none.
	RetentionCount int

	// WriteTimeout bounds one whole write sequence. Zero means no
	// timeout.
	WriteTimeout time.Duration

	// CleanupTempOnExit removes the staged file on failure paths. Only
	// ever disabled in tests that inspect staging leftovers.
	CleanupTempOnExit bool
}

// Option overrides one field of a [Config] under construction.
type Option func(*Config)

// NewConfig returns the default configuration with opts applied on top.
func NewConfig(opts ...Option) Config {
	cfg := Config{
		Enabled:           true,
		VerifyOnWrite:     true,
		BackupEnabled:     true,
		RetentionCount:    DefaultRetentionCount,
		WriteTimeout:      DefaultWriteTimeout,
		CleanupTempOnExit: true,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.RetentionCount < 0 {
		cfg.RetentionCount = 0
	}

	return cfg
}

// WithEnabled toggles the safe-write path.
func WithEnabled(v bool) Option {
	return func(c *Config) { c.Enabled = v }
}

// WithVerifyOnWrite toggles staged-content validation.
func WithVerifyOnWrite(v bool) Option {
	return func(c *Config) { c.VerifyOnWrite = v }
}

// WithBackups toggles pre-replace snapshots.
func WithBackups(v bool) Option {
	return func(c *Config) { c.BackupEnabled = v }
}

// WithBackupFailureFatal makes snapshot failures abort the write.
func WithBackupFailureFatal(v bool) Option {
	return func(c *Config) { c.BackupFailureIsFatal = v }
}

// WithRetentionCount sets how many snapshots survive pruning.
// Negative values are clamped to 0 (keep none).
func WithRetentionCount(n int) Option {
	return func(c *Config) { c.RetentionCount = n }
}

// WithWriteTimeout bounds one write sequence. Zero disables the timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) { c.WriteTimeout = d }
}

// WithTempCleanup toggles staged-file removal on failure paths.
func WithTempCleanup(v bool) Option {
	return func(c *Config) { c.CleanupTempOnExit = v }
}
