package config

import "time"

// Config represents the full todosync configuration
type Config struct {
	// Directory holding the local database and avatar files
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	Remote RemoteConfig `yaml:"remote" mapstructure:"remote"`
	Worker WorkerConfig `yaml:"worker" mapstructure:"worker"`
	Netmon NetmonConfig `yaml:"netmon" mapstructure:"netmon"`
	Daemon DaemonConfig `yaml:"daemon" mapstructure:"daemon"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Mirror MirrorConfig `yaml:"mirror" mapstructure:"mirror"`
}

// RemoteConfig selects and configures the remote store
type RemoteConfig struct {
	// Backend is one of "mirror", "firestore" or "memory"
	Backend          string        `yaml:"backend" mapstructure:"backend"`
	URL              string        `yaml:"url" mapstructure:"url"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	FirestoreProject string        `yaml:"firestore_project" mapstructure:"firestore_project"`
}

// WorkerConfig configures the upload scheduler
type WorkerConfig struct {
	Workers        int           `yaml:"workers" mapstructure:"workers"`
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	// How long a one-shot command waits for uploads before exiting
	DrainTimeout time.Duration `yaml:"drain_timeout" mapstructure:"drain_timeout"`
}

// NetmonConfig configures connectivity probing
type NetmonConfig struct {
	ProbeInterval time.Duration `yaml:"probe_interval" mapstructure:"probe_interval"`
}

// DaemonConfig configures the sync daemon
type DaemonConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// LogConfig configures log output
type LogConfig struct {
	// File enables size-rotated file output when set
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Quiet      bool   `yaml:"quiet" mapstructure:"quiet"`
}

// MirrorConfig configures the todomirror server
type MirrorConfig struct {
	Port   int    `yaml:"port" mapstructure:"port"`
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}
