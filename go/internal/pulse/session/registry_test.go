package session

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*Registry, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewRegistry(DefaultColorCooldown, clock), clock
}

func TestValidateColor(t *testing.T) {
	valid := []string{"#000000", "#ffffff", "#FFFFFF", "#a1B2c3"}
	for _, c := range valid {
		assert.NoError(t, ValidateColor(c), c)
	}

	invalid := []string{"", "000000", "#fff", "#12345", "#1234567", "#GGGGGG", " #123456", "#123456 "}
	for _, c := range invalid {
		err := ValidateColor(c)
		assert.ErrorIs(t, err, ErrInvalidColor, c)
	}
}

func TestRegistry_Join(t *testing.T) {
	t.Run("assigns ordinals in join order", func(t *testing.T) {
		r, _ := newTestRegistry()

		for want := uint64(1); want <= 5; want++ {
			p, err := r.Join("#ff0000")
			require.NoError(t, err)
			assert.Equal(t, want, p.Ordinal)
		}
		assert.Equal(t, 5, r.Count())
		assert.Equal(t, uint64(5), r.TotalCreated())
	})

	t.Run("never reuses ordinals after disconnect", func(t *testing.T) {
		r, _ := newTestRegistry()

		a, err := r.Join("#ff0000")
		require.NoError(t, err)
		b, err := r.Join("#00ff00")
		require.NoError(t, err)

		r.Remove(a.ID)
		r.Remove(b.ID)

		c, err := r.Join("#0000ff")
		require.NoError(t, err)
		assert.Equal(t, uint64(3), c.Ordinal)
		assert.Equal(t, 1, r.Count())
	})

	t.Run("records timestamps at join", func(t *testing.T) {
		r, clock := newTestRegistry()

		p, err := r.Join("#abcdef")
		require.NoError(t, err)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, clock.Now(), p.JoinedAt)
		assert.Equal(t, clock.Now(), p.LastColorChangeAt)
		assert.True(t, p.LastPulseAt.IsZero())
	})

	t.Run("rejects invalid color without consuming an ordinal", func(t *testing.T) {
		r, _ := newTestRegistry()

		_, err := r.Join("red")
		assert.ErrorIs(t, err, ErrInvalidColor)
		assert.Equal(t, 0, r.Count())

		p, err := r.Join("#123456")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), p.Ordinal)
	})

	t.Run("concurrent joins get unique ordinals", func(t *testing.T) {
		r, _ := newTestRegistry()
		const n = 200

		var wg sync.WaitGroup
		ordinals := make([]uint64, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p, err := r.Join("#010203")
				if err == nil {
					ordinals[i] = p.Ordinal
				}
			}(i)
		}
		wg.Wait()

		sort.Slice(ordinals, func(i, j int) bool { return ordinals[i] < ordinals[j] })
		for i, o := range ordinals {
			assert.Equal(t, uint64(i+1), o)
		}
		assert.Equal(t, n, r.Count())
	})
}

func TestRegistry_ChangeColor(t *testing.T) {
	t.Run("rejected inside the cooldown", func(t *testing.T) {
		r, clock := newTestRegistry()
		p, err := r.Join("#000000")
		require.NoError(t, err)

		clock.Advance(299 * time.Second)
		_, err = r.ChangeColor(p.ID, "#ffffff")

		var cooldown *CooldownError
		require.True(t, errors.As(err, &cooldown))
		assert.Equal(t, time.Second, cooldown.Remaining)
		assert.Equal(t, 1, cooldown.RemainingSeconds())

		got, _ := r.Get(p.ID)
		assert.Equal(t, "#000000", got.Color)
	})

	t.Run("allowed once the cooldown elapsed", func(t *testing.T) {
		r, clock := newTestRegistry()
		p, err := r.Join("#000000")
		require.NoError(t, err)

		clock.Advance(300 * time.Second)
		updated, err := r.ChangeColor(p.ID, "#FFFFFF")
		require.NoError(t, err)
		assert.Equal(t, "#FFFFFF", updated.Color)
		assert.Equal(t, clock.Now(), updated.LastColorChangeAt)

		// the cooldown restarts from the change
		_, err = r.ChangeColor(p.ID, "#111111")
		var cooldown *CooldownError
		require.True(t, errors.As(err, &cooldown))
		assert.Equal(t, 300, cooldown.RemainingSeconds())
	})

	t.Run("unknown participant", func(t *testing.T) {
		r, _ := newTestRegistry()

		_, err := r.ChangeColor("missing", "#ffffff")
		assert.ErrorIs(t, err, ErrNotFound)

		// lookup comes before validation
		_, err = r.ChangeColor("missing", "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid color", func(t *testing.T) {
		r, clock := newTestRegistry()
		p, err := r.Join("#000000")
		require.NoError(t, err)
		clock.Advance(time.Hour)

		_, err = r.ChangeColor(p.ID, "#zzzzzz")
		assert.ErrorIs(t, err, ErrInvalidColor)
	})
}

func TestRegistry_Remove(t *testing.T) {
	r, _ := newTestRegistry()
	p, err := r.Join("#000000")
	require.NoError(t, err)

	r.Remove(p.ID)
	r.Remove(p.ID)
	r.Remove("never-existed")

	assert.Equal(t, 0, r.Count())
	_, ok := r.Get(p.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, r.TouchPulse(p.ID, time.Now()), ErrNotFound)
}

func TestRegistry_TouchPulse(t *testing.T) {
	r, clock := newTestRegistry()
	p, err := r.Join("#000000")
	require.NoError(t, err)

	at := clock.Now().Add(5 * time.Second)
	require.NoError(t, r.TouchPulse(p.ID, at))

	got, ok := r.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, at, got.LastPulseAt)
}

func TestCooldownError_RemainingSeconds(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      int
	}{
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{time.Millisecond, 1},
		{299 * time.Second, 299},
	}
	for _, tt := range tests {
		err := &CooldownError{Remaining: tt.remaining}
		assert.Equal(t, tt.want, err.RemainingSeconds(), tt.remaining.String())
	}
}
