package streak

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultWindowDuration is the length of a synchronization window
	DefaultWindowDuration = 600 * time.Millisecond
	// DefaultRequiredContributors is the quorum of distinct participants per window
	DefaultRequiredContributors = 8
)

// Config holds engine settings. They are fixed for the engine's lifetime.
type Config struct {
	WindowDuration       time.Duration
	RequiredContributors int
	// Location decides where calendar days start for BestToday. Defaults to UTC.
	Location *time.Location
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		WindowDuration:       DefaultWindowDuration,
		RequiredContributors: DefaultRequiredContributors,
		Location:             time.UTC,
	}
}

// State is the streak counters
type State struct {
	Current   int `json:"current"`
	Best      int `json:"best"`
	BestToday int `json:"best_today"`
}

// Outcome is the result of feeding one pulse (or tick) to the engine
type Outcome struct {
	Accepted         bool
	StreakIncreased  bool
	StreakBroken     bool
	ContributorCount int
	// ClosedContributors is the distinct contributor count of the window
	// judged by this call, zero when no window closed
	ClosedContributors int
	// Streak is Current after evaluation
	Streak int
}

// Snapshot is a point-in-time copy of the engine state
type Snapshot struct {
	State
	WindowStart          time.Time
	WindowEnd            time.Time
	Contributors         int
	RequiredContributors int
}

type window struct {
	start        time.Time
	end          time.Time
	contributors map[string]struct{}
}

func newWindow(start time.Time, d time.Duration) *window {
	return &window{
		start:        start,
		end:          start.Add(d),
		contributors: make(map[string]struct{}),
	}
}

// Engine tracks the rolling window and the streak. A window is judged lazily,
// when the first pulse (or tick) after its end arrives.
type Engine struct {
	cfg Config

	mu     sync.Mutex
	win    *window
	state  State
	dayKey string
}

// NewEngine creates an engine whose first window opens at the clock's current time
func NewEngine(cfg Config, clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	now := clock.Now()
	return &Engine{
		cfg:    cfg,
		win:    newWindow(now, cfg.WindowDuration),
		dayKey: dayKey(now, cfg.Location),
	}
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// RecordPulse adds participantID's pulse arriving at the given time.
// A pulse exactly at the window end still belongs to that window.
func (e *Engine) RecordPulse(participantID string, at time.Time) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !at.After(e.win.end) {
		e.win.contributors[participantID] = struct{}{}
		return Outcome{
			Accepted:         true,
			ContributorCount: len(e.win.contributors),
			Streak:           e.state.Current,
		}
	}

	out := e.closeWindow(at)
	e.win.contributors[participantID] = struct{}{}
	out.Accepted = true
	out.ContributorCount = len(e.win.contributors)
	return out
}

// Tick judges the current window if it has elapsed by the given time, without
// adding a contributor. The next window starts empty at that time.
func (e *Engine) Tick(at time.Time) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !at.After(e.win.end) {
		return Outcome{ContributorCount: len(e.win.contributors), Streak: e.state.Current}
	}
	return e.closeWindow(at)
}

// closeWindow evaluates the elapsed window and opens a new one at the given time.
// Caller holds e.mu.
func (e *Engine) closeWindow(at time.Time) Outcome {
	e.rollDay(at)

	out := Outcome{ClosedContributors: len(e.win.contributors)}
	switch {
	case out.ClosedContributors >= e.cfg.RequiredContributors:
		e.state.Current++
		e.state.Best = max(e.state.Best, e.state.Current)
		e.state.BestToday = max(e.state.BestToday, e.state.Current)
		out.StreakIncreased = true
	case e.state.Current > 0:
		e.state.Current = 0
		out.StreakBroken = true
	}

	e.win = newWindow(at, e.cfg.WindowDuration)
	e.checkInvariants()

	out.Streak = e.state.Current
	return out
}

// rollDay resets BestToday when at falls on a later calendar day. Caller holds e.mu.
func (e *Engine) rollDay(at time.Time) {
	key := dayKey(at, e.cfg.Location)
	if key > e.dayKey {
		e.dayKey = key
		e.state.BestToday = e.state.Current
	}
}

func (e *Engine) checkInvariants() {
	s := e.state
	if s.Current < 0 || s.Best < s.Current || s.BestToday < s.Current {
		panic(fmt.Sprintf("streak: invariant violated: %+v", s))
	}
}

// Snapshot returns a copy of the streak state and live window metadata
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		State:                e.state,
		WindowStart:          e.win.start,
		WindowEnd:            e.win.end,
		Contributors:         len(e.win.contributors),
		RequiredContributors: e.cfg.RequiredContributors,
	}
}

// State returns a copy of the streak counters
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
