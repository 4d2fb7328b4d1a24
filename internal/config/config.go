// Package config loads settings from an optional YAML file, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/ankitab/internal/paths"
)

// EnvPrefix marks environment variables holding settings, e.g.
// ANKITAB_BACKUP_DIR for backup-dir.
const EnvPrefix = "ANKITAB_"

// Config holds all settings.
type Config struct {
	DB          string   `koanf:"db"`
	User        string   `koanf:"user"`
	SearchPaths []string `koanf:"search-paths" validate:"dive,required"`
	SearchDepth int      `koanf:"search-depth" validate:"gte=0"`
	CacheSize   int      `koanf:"cache-size" validate:"gt=0"`
	BackupDir   string   `koanf:"backup-dir"`
	GitBackup   bool     `koanf:"git-backup"`
	LogLevel    string   `koanf:"log-level" validate:"oneof=debug info warn warning error"`
	LogFormat   string   `koanf:"log-format" validate:"oneof=text json"`
}

// Flags defines every setting as a flag on fs, plus --config naming the
// YAML file.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "YAML configuration file")
	fs.String("db", "", "collection database file, or a directory to search")
	fs.String("user", "", "profile whose collection to use")
	fs.StringSlice("search-paths", nil, "directories to search for a collection")
	fs.Int("search-depth", paths.DefaultMaxDepth, "maximum directory depth of a search, 0 for no limit")
	fs.Int("cache-size", 32, "number of memoized search results")
	fs.String("backup-dir", "", "backup folder, defaults to the collection's own")
	fs.Bool("git-backup", false, "commit every backup to a git repository in the backup folder")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-format", "text", "text or json")
}

// Load reads the configuration. fs must have been set up with Flags and
// parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envValue turns ANKITAB_SEARCH_PATHS into search-paths. List settings are
// comma separated.
func envValue(key, value string) (string, any) {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "_", "-")
	if key == "search-paths" {
		var out []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return key, out
	}
	return key, value
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
