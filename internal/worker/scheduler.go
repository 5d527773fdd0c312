package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"
)

// Handler performs one upload attempt.
type Handler func(ctx context.Context, in Input) error

// Config holds scheduler configuration.
type Config struct {
	// Workers is the number of uploads that may run at once across keys
	Workers int

	// MaxAttempts is the retry ceiling; a job failing this many times is dropped
	MaxAttempts int

	// InitialBackoff is the delay after the first failure; it doubles per attempt
	InitialBackoff time.Duration

	// MaxBackoff caps the retry delay
	MaxBackoff time.Duration

	// JobTimeout bounds a single attempt
	JobTimeout time.Duration

	// Connectivity gates dispatch (default: AlwaysOnline)
	Connectivity Connectivity

	// Logger for scheduler activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers:        2,
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     5 * time.Minute,
		JobTimeout:     30 * time.Second,
		Connectivity:   AlwaysOnline,
		Logger:         log.New(os.Stderr, "[worker] ", log.LstdFlags),
	}
}

type entry struct {
	key       Key
	input     Input
	state     State
	attempts  int
	notBefore time.Time
	seq       uint64

	// pending holds the newest payload that arrived while running.
	pending Input
	// noRetry is set by CancelAll on a running job.
	noRetry bool
}

// Scheduler is an in-process unique-work queue with a worker pool.
type Scheduler struct {
	config   Config
	handlers map[Kind]Handler

	mu      sync.Mutex
	entries map[Key]*entry
	seq     uint64
	changed chan struct{}
	started bool
	stopped bool

	wake chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *log.Logger
}

// New creates a scheduler dispatching each kind to its handler. Start must
// be called before jobs run; Enqueue may be called before Start.
func New(handlers map[Kind]Handler, config *Config) (*Scheduler, error) {
	if len(handlers) == 0 {
		return nil, fmt.Errorf("at least one handler is required")
	}
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	cfg := *config
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaults.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaults.JobTimeout
	}
	if cfg.Connectivity == nil {
		cfg.Connectivity = AlwaysOnline
	}
	if cfg.Logger == nil {
		cfg.Logger = defaults.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	hs := make(map[Kind]Handler, len(handlers))
	for k, h := range handlers {
		hs[k] = h
	}

	return &Scheduler{
		config:   cfg,
		handlers: hs,
		entries:  make(map[Key]*entry),
		changed:  make(chan struct{}),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		logger:   cfg.Logger,
	}, nil
}

// Start launches the worker pool.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	states, unsubscribe := s.config.Connectivity.Subscribe()
	s.wg.Add(1)
	go s.watchConnectivity(states, unsubscribe)

	s.wg.Add(s.config.Workers)
	for i := 0; i < s.config.Workers; i++ {
		go s.workerLoop()
	}
	s.signal()
	s.logger.Printf("Started %d workers", s.config.Workers)
}

// Stop halts dispatch and waits for running attempts to return. Queued jobs
// are discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	dropped := 0
	for _, e := range s.entries {
		if e.state == StateQueued {
			dropped++
		}
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	if dropped > 0 {
		s.logger.Printf("Stopped with %d queued jobs discarded", dropped)
	}
}

// Enqueue schedules an upload. A queued job with the same key has its
// payload replaced; a running one gets the payload queued behind it.
func (s *Scheduler) Enqueue(key Key, in Input) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if _, ok := s.handlers[key.Kind]; !ok {
		return fmt.Errorf("no handler for job kind %q", key.Kind)
	}
	in = in.Clone()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}

	e, ok := s.entries[key]
	switch {
	case !ok:
		s.seq++
		s.entries[key] = &entry{key: key, input: in, state: StateQueued, seq: s.seq}
	case e.state == StateQueued:
		e.input = in
		e.attempts = 0
	default:
		e.pending = in
	}
	s.notifyLocked()
	s.mu.Unlock()

	s.signal()
	return nil
}

// CancelAll drops every queued job. Running attempts finish but are not
// retried, and payloads parked behind them are discarded. It returns the
// number of queued jobs dropped.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, e := range s.entries {
		if e.state == StateQueued {
			delete(s.entries, key)
			dropped++
			continue
		}
		e.noRetry = true
		e.pending = nil
	}
	s.notifyLocked()
	if dropped > 0 {
		s.logger.Printf("Cancelled %d queued jobs", dropped)
	}
	return dropped
}

// Drain blocks until no job is queued or running, or ctx is done.
func (s *Scheduler) Drain(ctx context.Context) error {
	for {
		s.mu.Lock()
		if len(s.entries) == 0 {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Jobs returns the scheduled jobs in enqueue order.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]JobInfo, len(entries))
	for i, e := range entries {
		out[i] = JobInfo{
			Key:       e.key,
			State:     e.state,
			Attempts:  e.attempts,
			NotBefore: e.notBefore,
			Pending:   e.pending != nil,
		}
	}
	return out
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// notifyLocked wakes Drain callers. Callers hold mu.
func (s *Scheduler) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Scheduler) watchConnectivity(states <-chan bool, unsubscribe func()) {
	defer s.wg.Done()
	defer unsubscribe()

	for {
		select {
		case <-s.ctx.Done():
			return
		case online, ok := <-states:
			if !ok {
				return
			}
			if online {
				s.logger.Println("Network available, resuming uploads")
				s.signal()
			}
		}
	}
}

func (s *Scheduler) workerLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}

		for {
			if s.ctx.Err() != nil {
				return
			}
			job, ok := s.take()
			if !ok {
				break
			}
			// Another idle worker may pick up the next ready job.
			s.signal()
			s.run(job)
		}
	}
}

type attempt struct {
	key     Key
	input   Input
	attempt int
}

// take marks the oldest ready job running and returns it.
func (s *Scheduler) take() (attempt, bool) {
	if !s.config.Connectivity.Online() {
		return attempt{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var next *entry
	for _, e := range s.entries {
		if e.state != StateQueued || e.notBefore.After(now) {
			continue
		}
		if next == nil || e.seq < next.seq {
			next = e
		}
	}
	if next == nil {
		return attempt{}, false
	}

	next.state = StateRunning
	next.attempts++
	s.notifyLocked()
	return attempt{key: next.key, input: next.input, attempt: next.attempts}, true
}

func (s *Scheduler) run(job attempt) {
	handler := s.handlers[job.key.Kind]

	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	err := safeCall(ctx, handler, job.input)
	cancel()

	s.finish(job, err)
}

func safeCall(ctx context.Context, h Handler, in Input) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return h(ctx, in)
}

func (s *Scheduler) finish(job attempt, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notifyLocked()

	e, ok := s.entries[job.key]
	if !ok {
		return
	}

	if err == nil {
		s.logger.Printf("Uploaded %s", job.key)
	} else {
		s.logger.Printf("Upload %s failed (attempt %d/%d): %v", job.key, job.attempt, s.config.MaxAttempts, err)
	}

	// A parked payload supersedes whatever just ran, failed or not.
	if e.pending != nil {
		s.seq++
		e.input = e.pending
		e.pending = nil
		e.state = StateQueued
		e.attempts = 0
		e.notBefore = time.Time{}
		e.seq = s.seq
		e.noRetry = false
		s.signal()
		return
	}

	switch {
	case err == nil:
		delete(s.entries, job.key)
	case e.noRetry:
		s.logger.Printf("Dropping %s: cancelled", job.key)
		delete(s.entries, job.key)
	case IsPermanent(err):
		s.logger.Printf("Dropping %s: %v", job.key, err)
		delete(s.entries, job.key)
	case e.attempts >= s.config.MaxAttempts:
		s.logger.Printf("Dropping %s after %d attempts", job.key, e.attempts)
		delete(s.entries, job.key)
	default:
		delay := s.backoff(e.attempts)
		e.state = StateQueued
		e.notBefore = time.Now().Add(delay)
		time.AfterFunc(delay, s.signal)
	}
}

// backoff returns InitialBackoff * 2^(attempts-1), capped at MaxBackoff.
func (s *Scheduler) backoff(attempts int) time.Duration {
	d := s.config.InitialBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= s.config.MaxBackoff {
			return s.config.MaxBackoff
		}
	}
	return d
}
