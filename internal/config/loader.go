// Package config loads todosync configuration.
//
// Sources are merged in order, later ones winning: built-in defaults, the
// global ~/.todosync/config.yaml, the project ./.todosync/config.yaml, then
// TODOSYNC_* environment variables. A .env file in the working directory is
// loaded into the environment first.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "TODOSYNC"

// Load loads and merges configuration from global, project and env sources
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	return LoadFrom(home, cwd)
}

// LoadFrom is Load with explicit home and working directories. Either may be
// empty to skip its config file.
func LoadFrom(home, cwd string) (*Config, error) {
	if cwd != "" {
		// Existing environment variables take precedence over .env
		if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	var files []string
	if home != "" {
		files = append(files, GlobalConfigPath(home))
	}
	if cwd != "" {
		files = append(files, ProjectConfigPath(cwd))
	}
	for _, path := range files {
		if err := mergeFile(v, path); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.DataDir = expandHome(cfg.DataDir, home)
	cfg.Log.File = expandHome(cfg.Log.File, home)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// setDefaults registers every leaf of cfg under its mapstructure key, which
// is also what lets AutomaticEnv find nested keys.
func setDefaults(v *viper.Viper, cfg *Config) {
	var walk func(prefix string, rv reflect.Value)
	walk = func(prefix string, rv reflect.Value) {
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			key := rt.Field(i).Tag.Get("mapstructure")
			if prefix != "" {
				key = prefix + "." + key
			}
			field := rv.Field(i)
			if field.Kind() == reflect.Struct {
				walk(key, field)
				continue
			}
			v.SetDefault(key, field.Interface())
		}
	}
	walk("", reflect.ValueOf(cfg).Elem())
}

// expandHome resolves a leading ~. Without a home directory the path is
// taken relative to the working directory.
func expandHome(path, home string) string {
	if path == "~" {
		path = "~/"
	}
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	if home == "" {
		return filepath.Clean(path[2:])
	}
	return filepath.Join(home, path[2:])
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	switch c.Remote.Backend {
	case BackendMirror:
		if c.Remote.URL == "" {
			return fmt.Errorf("remote.url must be set for the mirror backend")
		}
	case BackendFirestore:
		if c.Remote.FirestoreProject == "" {
			return fmt.Errorf("remote.firestore_project must be set for the firestore backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown remote.backend %q (want mirror, firestore or memory)", c.Remote.Backend)
	}
	if c.Worker.Workers <= 0 {
		return fmt.Errorf("worker.workers must be positive, got %d", c.Worker.Workers)
	}
	if c.Worker.MaxAttempts <= 0 {
		return fmt.Errorf("worker.max_attempts must be positive, got %d", c.Worker.MaxAttempts)
	}
	if c.Worker.InitialBackoff <= 0 || c.Worker.MaxBackoff < c.Worker.InitialBackoff {
		return fmt.Errorf("worker backoff must satisfy 0 < initial_backoff <= max_backoff")
	}
	if c.Mirror.Port < 0 || c.Mirror.Port > 65535 {
		return fmt.Errorf("mirror.port out of range: %d", c.Mirror.Port)
	}
	return nil
}

// DBPath returns the local database file path
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "todo.db")
}

// AvatarsDir returns the directory picked avatar images are copied into
func (c *Config) AvatarsDir() string {
	return filepath.Join(c.DataDir, "avatars")
}

// GlobalConfigPath returns the path to the global config file
func GlobalConfigPath(home string) string {
	return filepath.Join(home, ".todosync", "config.yaml")
}

// ProjectConfigPath returns the path to the project config file
func ProjectConfigPath(cwd string) string {
	return filepath.Join(cwd, ".todosync", "config.yaml")
}
