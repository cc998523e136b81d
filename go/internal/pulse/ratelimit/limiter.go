package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultPoints is the number of admissions allowed per window
	DefaultPoints = 5
	// DefaultDuration is the trailing window the points apply to
	DefaultDuration = 3 * time.Second

	shardCount = 32
)

// bucket keeps the admission times inside the trailing window, oldest first
type bucket struct {
	mu       sync.Mutex
	admitted []time.Time
	lastSeen time.Time
}

// prune drops admissions older than the window. Caller holds b.mu.
func (b *bucket) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(b.admitted) && !b.admitted[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.admitted = append(b.admitted[:0], b.admitted[i:]...)
	}
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// Limiter is a per-participant sliding window limiter.
// Buckets lock independently so participants never contend on each other.
type Limiter struct {
	points   int
	duration time.Duration
	clock    clockwork.Clock
	shards   [shardCount]*shard
}

// New creates a limiter allowing points admissions per duration
func New(points int, duration time.Duration, clock clockwork.Clock) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	l := &Limiter{
		points:   points,
		duration: duration,
		clock:    clock,
	}
	for i := range l.shards {
		l.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	return l
}

func (l *Limiter) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return l.shards[h.Sum32()%shardCount]
}

func (l *Limiter) bucketFor(id string) *bucket {
	s := l.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[id]
	if !ok {
		b = &bucket{admitted: make([]time.Time, 0, l.points)}
		s.buckets[id] = b
	}
	return b
}

// Admit reports whether id may submit another event now.
// Rejected calls do not consume capacity.
func (l *Limiter) Admit(id string) bool {
	b := l.bucketFor(id)
	now := l.clock.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastSeen = now
	b.prune(now, l.duration)
	if len(b.admitted) >= l.points {
		return false
	}
	b.admitted = append(b.admitted, now)
	return true
}

// Forget drops the bucket for id
func (l *Limiter) Forget(id string) {
	s := l.shardFor(id)
	s.mu.Lock()
	delete(s.buckets, id)
	s.mu.Unlock()
}

// Sweep drops buckets untouched for longer than the window and returns how many were removed
func (l *Limiter) Sweep() int {
	now := l.clock.Now()
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for id, b := range s.buckets {
			b.mu.Lock()
			idle := now.Sub(b.lastSeen) > l.duration
			b.mu.Unlock()
			if idle {
				delete(s.buckets, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked buckets
func (l *Limiter) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.buckets)
		s.mu.Unlock()
	}
	return n
}

// Duration returns the trailing window length
func (l *Limiter) Duration() time.Duration {
	return l.duration
}
