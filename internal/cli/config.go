package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"

	"github.com/galtl/safecache"
)

// ConfigFileName is the default config file name, looked up in the working
// directory.
const ConfigFileName = ".tlc.json"

// Config holds all tlc configuration options. The file format is JSONC
// (JSON with comments and trailing commas).
//
// Pointer fields distinguish "absent from the file" from an explicit
// false/zero, so the file only overrides what it mentions.
type Config struct {
	SafeWrite           *bool  `json:"safe_write,omitempty"`
	VerifyOnWrite       *bool  `json:"verify_on_write,omitempty"`
	BackupEnabled       *bool  `json:"backup_enabled,omitempty"`
	BackupRetention     *int   `json:"backup_retention,omitempty"`
	WriteTimeoutSeconds *int   `json:"write_timeout_seconds,omitempty"`
	LogLevel            string `json:"log_level,omitempty"`
	LogFile             string `json:"log_file,omitempty"`
}

var errConfigInvalid = errors.New("invalid config file")

// LoadConfig reads the config file at configPath, or workDir/.tlc.json when
// configPath is empty. A missing default config file is not an error; a
// missing explicit one is.
func LoadConfig(workDir, configPath string) (Config, error) {
	explicit := configPath != ""
	if !explicit {
		configPath = filepath.Join(workDir, ConfigFileName)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Config{}, nil
		}

		return Config{}, fmt.Errorf("read config %q: %w", configPath, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w %q: %v", errConfigInvalid, configPath, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w %q: %v", errConfigInvalid, configPath, err)
	}

	return cfg, nil
}

// WriteOptions converts the file config into [safecache.Config] options;
// fields absent from the file keep the library defaults.
func (c Config) WriteOptions() []safecache.Option {
	var opts []safecache.Option

	if c.SafeWrite != nil {
		opts = append(opts, safecache.WithEnabled(*c.SafeWrite))
	}

	if c.VerifyOnWrite != nil {
		opts = append(opts, safecache.WithVerifyOnWrite(*c.VerifyOnWrite))
	}

	if c.BackupEnabled != nil {
		opts = append(opts, safecache.WithBackups(*c.BackupEnabled))
	}

	if c.BackupRetention != nil {
		opts = append(opts, safecache.WithRetentionCount(*c.BackupRetention))
	}

	if c.WriteTimeoutSeconds != nil {
		opts = append(opts, safecache.WithWriteTimeout(time.Duration(*c.WriteTimeoutSeconds)*time.Second))
	}

	return opts
}
