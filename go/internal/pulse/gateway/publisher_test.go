package gateway

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pulseboard/go/internal/pulse/events"
)

type published struct {
	subject string
	data    []byte
}

type fakeNATSConn struct {
	mu       sync.Mutex
	messages []published
	err      error
	drained  bool
}

func (f *fakeNATSConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{subject: subject, data: data})
	return nil
}

func (f *fakeNATSConn) Drain() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drained = true
	return nil
}

func TestNATSPublisher_Publish(t *testing.T) {
	nc := &fakeNATSConn{}
	p := newNATSPublisher(nc, "pulse.events")

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := NewMessage(MessageTypeBurst, events.BurstPayload{Streak: 4, Contributors: 9}, at)
	require.NoError(t, err)
	require.NoError(t, p.Publish(msg))

	require.Len(t, nc.messages, 1)
	assert.Equal(t, "pulse.events.burst", nc.messages[0].subject)

	var got Message
	require.NoError(t, json.Unmarshal(nc.messages[0].data, &got))
	assert.Equal(t, MessageTypeBurst, got.Type)
	assert.True(t, at.Equal(got.Timestamp))

	var payload events.BurstPayload
	require.NoError(t, got.DecodeData(&payload))
	assert.Equal(t, events.BurstPayload{Streak: 4, Contributors: 9}, payload)

	require.NoError(t, p.Close())
	assert.True(t, nc.drained)
}

func TestNATSPublisher_PublishError(t *testing.T) {
	nc := &fakeNATSConn{err: errors.New("connection closed")}
	p := newNATSPublisher(nc, "pulse.events")

	msg, err := NewMessage(MessageTypeStreakBroken, events.StreakBrokenPayload{}, time.Now())
	require.NoError(t, err)

	err = p.Publish(msg)
	assert.ErrorContains(t, err, "publish streak-broken")
}

func TestNATSPublisher_Subject(t *testing.T) {
	p := newNATSPublisher(&fakeNATSConn{}, "board")
	assert.Equal(t, "board.user-count", p.Subject(MessageTypeUserCount))
	assert.Equal(t, "board.color-changed", p.Subject(MessageTypeColorChanged))
}
