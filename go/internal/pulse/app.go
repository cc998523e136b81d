package pulse

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pulseboard/go/internal/pulse/events"
	"github.com/mcdev12/pulseboard/go/internal/pulse/session"
	"github.com/mcdev12/pulseboard/go/internal/pulse/streak"
)

var (
	// ErrRateLimited is returned when a pulse exceeds the participant's quota
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound is returned when an action references an unknown participant
	ErrNotFound = session.ErrNotFound
)

// Registry defines what the app needs from the session registry
type Registry interface {
	Join(color string) (session.Participant, error)
	Get(id string) (session.Participant, bool)
	ChangeColor(id, color string) (session.Participant, error)
	TouchPulse(id string, at time.Time) error
	Remove(id string)
	Count() int
	TotalCreated() uint64
}

// Limiter defines what the app needs from the rate limiter
type Limiter interface {
	Admit(id string) bool
	Forget(id string)
	Sweep() int
}

// Engine defines what the app needs from the synchronization engine
type Engine interface {
	RecordPulse(participantID string, at time.Time) streak.Outcome
	Tick(at time.Time) streak.Outcome
	Snapshot() streak.Snapshot
}

// JoinResult is the outcome of a successful join
type JoinResult struct {
	Participant session.Participant
	Joined      events.JoinedPayload
}

// PulseResult holds the facts produced by an admitted pulse
type PulseResult struct {
	Pulse events.PulsePayload
	// Burst is set only when the pulse closed a window that met quorum
	Burst *events.BurstPayload
	// StreakBroken is true when the pulse closed a window that ended a streak
	StreakBroken bool
}

// App handles pulse business logic
type App struct {
	registry Registry
	limiter  Limiter
	engine   Engine
	clock    clockwork.Clock
}

// NewApp creates a new pulse App
func NewApp(registry Registry, limiter Limiter, engine Engine, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		registry: registry,
		limiter:  limiter,
		engine:   engine,
		clock:    clock,
	}
}

// Join registers a new participant
func (a *App) Join(color string) (*JoinResult, error) {
	p, err := a.registry.Join(color)
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}

	state := a.engine.Snapshot().State
	log.Info().
		Str("user_id", p.ID).
		Uint64("ordinal", p.Ordinal).
		Str("color", p.Color).
		Msg("user joined")

	return &JoinResult{
		Participant: p,
		Joined: events.JoinedPayload{
			Ordinal:    p.Ordinal,
			Color:      p.Color,
			Streak:     state.Current,
			BestStreak: state.Best,
		},
	}, nil
}

// Pulse admits and records a pulse from the participant
func (a *App) Pulse(id string) (*PulseResult, error) {
	p, ok := a.registry.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if !a.limiter.Admit(id) {
		return nil, ErrRateLimited
	}

	now := a.clock.Now()
	if err := a.registry.TouchPulse(id, now); err != nil {
		// disconnected between lookup and admission
		return nil, err
	}

	out := a.engine.RecordPulse(id, now)
	res := &PulseResult{
		Pulse: events.PulsePayload{
			UserID:  p.ID,
			Color:   p.Color,
			T:       now.UnixMilli(),
			Ordinal: p.Ordinal,
		},
	}
	a.applyOutcome(res, out)
	return res, nil
}

// Tick judges an elapsed window without a pulse. Only the Burst and
// StreakBroken fields of the result are set.
func (a *App) Tick() *PulseResult {
	res := &PulseResult{}
	a.applyOutcome(res, a.engine.Tick(a.clock.Now()))
	return res
}

func (a *App) applyOutcome(res *PulseResult, out streak.Outcome) {
	if out.StreakIncreased {
		// a pulse reports the new window it opened, a tick the window it judged
		contributors := out.ContributorCount
		if !out.Accepted {
			contributors = out.ClosedContributors
		}
		res.Burst = &events.BurstPayload{
			Streak:       out.Streak,
			Contributors: contributors,
		}
		log.Info().Int("streak", out.Streak).Msg("synchronized burst")
	}
	if out.StreakBroken {
		res.StreakBroken = true
		log.Info().Msg("streak broken")
	}
}

// ChangeColor switches the participant's color, subject to the cooldown
func (a *App) ChangeColor(id, color string) (*events.ColorChangedPayload, error) {
	p, err := a.registry.ChangeColor(id, color)
	if err != nil {
		return nil, fmt.Errorf("change color: %w", err)
	}

	log.Info().
		Uint64("ordinal", p.Ordinal).
		Str("color", p.Color).
		Msg("user changed color")

	return &events.ColorChangedPayload{
		UserID:  p.ID,
		Color:   p.Color,
		Ordinal: p.Ordinal,
	}, nil
}

// Disconnect forgets the participant. Closed windows are unaffected.
func (a *App) Disconnect(id string) {
	if p, ok := a.registry.Get(id); ok {
		log.Info().Uint64("ordinal", p.Ordinal).Msg("user disconnected")
	}
	a.registry.Remove(id)
	a.limiter.Forget(id)
}

// SweepLimiter drops rate limiter state for idle participants
func (a *App) SweepLimiter() int {
	return a.limiter.Sweep()
}

// Stats returns the stats surface. connected is the gateway's live connection count.
func (a *App) Stats(connected int) events.StatsPayload {
	snap := a.engine.Snapshot()
	return events.StatsPayload{
		ConnectedUsers:    connected,
		TotalUsersCreated: a.registry.TotalCreated(),
		CurrentStreak:     snap.Current,
		BestStreak:        snap.Best,
		TodayBestStreak:   snap.BestToday,
		WindowEnd:         snap.WindowEnd.UnixMilli(),
		Contributors:      snap.Contributors,
		RequiredUsers:     snap.RequiredContributors,
	}
}

// Registered returns the number of joined participants
func (a *App) Registered() int {
	return a.registry.Count()
}
