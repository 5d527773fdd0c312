package config

import (
	"os"
	"path/filepath"
	"time"
)

// Remote backends.
const (
	BackendMirror    = "mirror"
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "~/.todosync",
		Remote: RemoteConfig{
			Backend: BackendMirror,
			URL:     "http://127.0.0.1:8089",
			Timeout: 10 * time.Second,
		},
		Worker: WorkerConfig{
			Workers:        2,
			MaxAttempts:    5,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     5 * time.Minute,
			DrainTimeout:   15 * time.Second,
		},
		Netmon: NetmonConfig{
			ProbeInterval: 15 * time.Second,
		},
		Daemon: DaemonConfig{
			Debounce: 100 * time.Millisecond,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Mirror: MirrorConfig{
			Port:   8089,
			DBPath: "mirror.db",
		},
	}
}

// WriteDefault writes a commented default configuration to path
func WriteDefault(path string) error {
	content := `# todosync configuration

# Local database and avatar files
# data_dir: ~/.todosync

# Remote store
remote:
  backend: mirror  # "mirror", "firestore" or "memory"
  url: http://127.0.0.1:8089
  timeout: 10s
  # firestore_project: my-project

# Background uploads
worker:
  workers: 2
  max_attempts: 5
  initial_backoff: 2s
  max_backoff: 5m
  drain_timeout: 15s

netmon:
  probe_interval: 15s

daemon:
  debounce: 100ms

log:
  # file: ~/.todosync/todosync.log
  max_size_mb: 10
  max_backups: 3
  max_age_days: 28
  quiet: false
`
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
