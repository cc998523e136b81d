package session

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultColorCooldown is how long a participant must wait between color changes
const DefaultColorCooldown = 300 * time.Second

const shardCount = 32

var colorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Participant is a read copy of a registered participant
type Participant struct {
	ID                string
	Ordinal           uint64
	Color             string
	JoinedAt          time.Time
	LastPulseAt       time.Time // zero until the first admitted pulse
	LastColorChangeAt time.Time
}

// ValidateColor reports whether color is a #RRGGBB hex string
func ValidateColor(color string) error {
	if !colorRegex.MatchString(color) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	return nil
}

type shard struct {
	mu           sync.RWMutex
	participants map[string]*Participant
}

// Registry owns participant records. It is the only writer of them.
type Registry struct {
	shards   [shardCount]*shard
	ordinal  atomic.Uint64
	count    atomic.Int64
	cooldown time.Duration
	clock    clockwork.Clock
}

// NewRegistry creates an empty registry
func NewRegistry(cooldown time.Duration, clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	r := &Registry{
		cooldown: cooldown,
		clock:    clock,
	}
	for i := range r.shards {
		r.shards[i] = &shard{participants: make(map[string]*Participant)}
	}
	return r
}

func (r *Registry) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return r.shards[h.Sum32()%shardCount]
}

// Join validates the color and registers a new participant with the next ordinal
func (r *Registry) Join(color string) (Participant, error) {
	if err := ValidateColor(color); err != nil {
		return Participant{}, err
	}

	now := r.clock.Now()
	p := &Participant{
		ID:                uuid.New().String(),
		Ordinal:           r.ordinal.Add(1),
		Color:             color,
		JoinedAt:          now,
		LastColorChangeAt: now,
	}

	s := r.shardFor(p.ID)
	s.mu.Lock()
	s.participants[p.ID] = p
	s.mu.Unlock()
	r.count.Add(1)

	return *p, nil
}

// Get returns a copy of the participant registered under id
func (r *Registry) Get(id string) (Participant, bool) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// ChangeColor updates a participant's color once the cooldown has elapsed
func (r *Registry) ChangeColor(id, color string) (Participant, error) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[id]
	if !ok {
		return Participant{}, ErrNotFound
	}
	if err := ValidateColor(color); err != nil {
		return Participant{}, err
	}

	now := r.clock.Now()
	if elapsed := now.Sub(p.LastColorChangeAt); elapsed < r.cooldown {
		return Participant{}, &CooldownError{Remaining: r.cooldown - elapsed}
	}

	p.Color = color
	p.LastColorChangeAt = now
	return *p, nil
}

// TouchPulse records the arrival time of an admitted pulse
func (r *Registry) TouchPulse(id string, at time.Time) error {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[id]
	if !ok {
		return ErrNotFound
	}
	p.LastPulseAt = at
	return nil
}

// Remove drops a participant. Unknown ids are ignored.
func (r *Registry) Remove(id string) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[id]; ok {
		delete(s.participants, id)
		r.count.Add(-1)
	}
}

// Count returns the number of registered participants
func (r *Registry) Count() int {
	return int(r.count.Load())
}

// TotalCreated returns how many participants have ever joined
func (r *Registry) TotalCreated() uint64 {
	return r.ordinal.Load()
}
