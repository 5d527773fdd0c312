// Package netmon tracks whether the remote store is reachable and notifies
// subscribers when that changes. The upload scheduler uses a Monitor as
// its connectivity gate.
package netmon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/BodaDayo/TODO-Mobile/internal/remote"
)

// Config holds monitor configuration.
type Config struct {
	// ProbeInterval is how often the remote is pinged (rounded to seconds)
	ProbeInterval time.Duration

	// ProbeTimeout bounds a single ping
	ProbeTimeout time.Duration

	// Logger for connectivity changes
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ProbeInterval: 15 * time.Second,
		ProbeTimeout:  5 * time.Second,
		Logger:        log.New(os.Stderr, "[netmon] ", log.LstdFlags),
	}
}

// Monitor holds the current connectivity state.
type Monitor struct {
	prober remote.Prober
	config *Config

	mu     sync.Mutex
	online bool
	subs   map[chan bool]struct{}

	cron *cron.Cron
}

// New creates a monitor that probes with prober. A nil prober leaves the
// state under manual control via Set. The monitor starts online.
func New(prober remote.Prober, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultConfig().ProbeTimeout
	}
	return &Monitor{
		prober: prober,
		config: config,
		online: true,
		subs:   make(map[chan bool]struct{}),
	}
}

// Online reports the last known state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe returns a channel that receives each state change. Slow
// subscribers only see the latest state.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 1)

	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, ch)
	}
}

// Set records a new state and notifies subscribers if it changed.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return
	}
	m.online = online
	if online {
		m.config.Logger.Println("Remote reachable")
	} else {
		m.config.Logger.Println("Remote unreachable, holding uploads")
	}

	for ch := range m.subs {
		// Replace any unread state with the newest one.
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
}

// Probe pings the remote once and records the result.
func (m *Monitor) Probe(ctx context.Context) bool {
	if m.prober == nil {
		return m.Online()
	}
	ctx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()

	err := m.prober.Ping(ctx)
	if err != nil {
		m.config.Logger.Printf("Probe failed: %v", err)
	}
	m.Set(err == nil)
	return err == nil
}

// Start probes once, then every ProbeInterval.
func (m *Monitor) Start() error {
	if m.prober == nil {
		return nil
	}
	if m.config.ProbeInterval <= 0 {
		return fmt.Errorf("probe interval must be positive")
	}

	seconds := int(m.config.ProbeInterval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %ds", seconds), func() {
		m.Probe(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule probe: %w", err)
	}

	m.Probe(context.Background())

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()
	c.Start()
	return nil
}

// Stop ends periodic probing and waits for a running probe.
func (m *Monitor) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c != nil {
		ctx := c.Stop()
		<-ctx.Done()
	}
}
