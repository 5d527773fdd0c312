package db

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

// Snapshot is a full point-in-time copy of every row of one kind, in
// insertion order. Only the slice matching Kind is populated.
type Snapshot struct {
	Kind       schema.Kind
	Version    uint64
	Tasks      []schema.Task
	Users      []schema.User
	Categories []schema.Category

	// Owner is the account signed in when the snapshot was taken, or ""
	// while signed out.
	Owner string
}

// Len returns the number of rows in the snapshot.
func (s Snapshot) Len() int {
	switch s.Kind {
	case schema.KindTasks:
		return len(s.Tasks)
	case schema.KindUsers:
		return len(s.Users)
	case schema.KindCategories:
		return len(s.Categories)
	}
	return 0
}

// JSON serializes the rows of the snapshot as a JSON array.
func (s Snapshot) JSON() ([]byte, error) {
	var v any
	switch s.Kind {
	case schema.KindTasks:
		v = nonNil(s.Tasks)
	case schema.KindUsers:
		v = nonNil(s.Users)
	case schema.KindCategories:
		v = nonNil(s.Categories)
	default:
		return nil, fmt.Errorf("unknown entity kind %q", s.Kind)
	}
	return json.Marshal(v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Subscription receives the latest snapshot of one kind. A new subscription
// gets the current snapshot immediately.
//
// Delivery keeps only the newest pending snapshot: a slow reader skips
// intermediate states but never sees them out of order.
type Subscription struct {
	kind    schema.Kind
	initial uint64
	ch      chan Snapshot
	feed    *feed
	once    sync.Once
}

// C returns the channel snapshots arrive on. It is closed by Close.
func (s *Subscription) C() <-chan Snapshot {
	return s.ch
}

// InitialVersion returns the version of the snapshot delivered on subscribe.
// Snapshots with a higher version carry mutations committed afterwards.
func (s *Subscription) InitialVersion() uint64 {
	return s.initial
}

// Kind returns the entity kind the subscription follows.
func (s *Subscription) Kind() schema.Kind {
	return s.kind
}

// Close unsubscribes and closes the channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.feed.remove(s)
	})
}

// offer replaces any undelivered snapshot with snap. Callers hold feed.mu,
// which makes the publisher the only sender.
func (s *Subscription) offer(snap Snapshot) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

type feed struct {
	mu       sync.Mutex
	subs     map[schema.Kind]map[*Subscription]struct{}
	versions map[schema.Kind]uint64
	lastJSON map[schema.Kind][]byte
	closed   bool
}

func newFeed() *feed {
	return &feed{
		subs:     make(map[schema.Kind]map[*Subscription]struct{}),
		versions: make(map[schema.Kind]uint64),
		lastJSON: make(map[schema.Kind][]byte),
	}
}

func (f *feed) add(kind schema.Kind, current Snapshot) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub := &Subscription{kind: kind, ch: make(chan Snapshot, 1), feed: f}
	if f.closed {
		close(sub.ch)
		return sub
	}
	if f.subs[kind] == nil {
		f.subs[kind] = make(map[*Subscription]struct{})
	}
	f.subs[kind][sub] = struct{}{}

	current.Version = f.versions[kind]
	sub.initial = current.Version
	sub.offer(current)
	return sub
}

func (f *feed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[sub.kind][sub]; ok {
		delete(f.subs[sub.kind], sub)
		close(sub.ch)
	}
}

// publish bumps the kind's version and hands snap to every subscriber.
// With onlyIfChanged set, a snapshot identical to the last published one is
// dropped.
func (f *feed) publish(snap Snapshot, onlyIfChanged bool) bool {
	encoded, err := snap.JSON()
	if err != nil {
		encoded = nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	if onlyIfChanged && encoded != nil && bytes.Equal(f.lastJSON[snap.Kind], encoded) {
		return false
	}
	f.lastJSON[snap.Kind] = encoded
	f.versions[snap.Kind]++
	snap.Version = f.versions[snap.Kind]

	for sub := range f.subs[snap.Kind] {
		sub.offer(snap)
	}
	return true
}

func (f *feed) version(kind schema.Kind) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.versions[kind]
}

// prime records the baseline a later Refresh compares against.
func (f *feed) prime(snap Snapshot) {
	encoded, err := snap.JSON()
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lastJSON[snap.Kind]; !ok {
		f.lastJSON[snap.Kind] = encoded
	}
}

func (f *feed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	for kind, subs := range f.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(f.subs, kind)
	}
}
