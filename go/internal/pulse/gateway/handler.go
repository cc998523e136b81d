package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pulseboard/go/internal/pulse"
	"github.com/mcdev12/pulseboard/go/internal/pulse/events"
	"github.com/mcdev12/pulseboard/go/internal/pulse/session"
)

// Client facing error messages
const (
	errMsgInvalidColor    = "Invalid color format"
	errMsgNotAuthed       = "Not authenticated"
	errMsgUserNotFound    = "User not found"
	errMsgRateLimited     = "Rate limited. Slow down!"
	errMsgAlreadyJoined   = "Already joined"
	errMsgUnknownType     = "Unknown message type"
	errMsgMalformed       = "Malformed message"
	errMsgCooldownPattern = "Color change on cooldown. Wait %ds"
)

// PulseHandler turns client frames into app calls and app results into frames
type PulseHandler struct {
	app       *pulse.App
	cm        *ConnectionManager
	publisher EventPublisher
	clock     clockwork.Clock
}

// NewPulseHandler creates a handler bound to the connection manager
func NewPulseHandler(app *pulse.App, cm *ConnectionManager, publisher EventPublisher, clock clockwork.Clock) *PulseHandler {
	if publisher == nil {
		publisher = NoOpPublisher{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PulseHandler{
		app:       app,
		cm:        cm,
		publisher: publisher,
		clock:     clock,
	}
}

// HandleMessage dispatches a raw client frame
func (h *PulseHandler) HandleMessage(c *Connection, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("malformed client message")
		h.sendError(c, errMsgMalformed)
		return
	}

	switch msg.Type {
	case MessageTypeJoin:
		h.handleJoin(c, &msg)
	case MessageTypePulse:
		h.handlePulse(c)
	case MessageTypeChangeColor:
		h.handleChangeColor(c, &msg)
	default:
		h.sendError(c, errMsgUnknownType)
	}
}

// HandleDisconnect releases the participant bound to the connection
func (h *PulseHandler) HandleDisconnect(c *Connection) {
	if id := c.ParticipantID(); id != "" {
		h.app.Disconnect(id)
	}
	h.BroadcastUserCount()
}

func (h *PulseHandler) handleJoin(c *Connection, msg *Message) {
	var payload events.JoinPayload
	if err := msg.DecodeData(&payload); err != nil {
		h.sendError(c, errMsgInvalidColor)
		return
	}
	if c.ParticipantID() != "" {
		h.sendError(c, errMsgAlreadyJoined)
		return
	}

	res, err := h.app.Join(payload.Color)
	if err != nil {
		h.sendAppError(c, err)
		return
	}
	if !c.BindParticipant(res.Participant.ID) {
		// closed mid-join, or lost a race with a concurrent join
		h.app.Disconnect(res.Participant.ID)
		h.sendError(c, errMsgAlreadyJoined)
		return
	}

	h.send(c, MessageTypeJoined, res.Joined)
	h.BroadcastUserCount()
}

func (h *PulseHandler) handlePulse(c *Connection) {
	id := c.ParticipantID()
	if id == "" {
		h.sendError(c, errMsgNotAuthed)
		return
	}

	res, err := h.app.Pulse(id)
	if err != nil {
		h.sendAppError(c, err)
		return
	}

	h.broadcast(MessageTypePulse, res.Pulse)
	h.broadcastOutcome(res)
}

func (h *PulseHandler) handleChangeColor(c *Connection, msg *Message) {
	id := c.ParticipantID()
	if id == "" {
		h.sendError(c, errMsgNotAuthed)
		return
	}

	var payload events.ChangeColorPayload
	if err := msg.DecodeData(&payload); err != nil {
		h.sendError(c, errMsgInvalidColor)
		return
	}

	changed, err := h.app.ChangeColor(id, payload.Color)
	if err != nil {
		h.sendAppError(c, err)
		return
	}
	h.broadcast(MessageTypeColorChanged, changed)
}

// Tick runs the idle sweep and broadcasts any resulting burst or break
func (h *PulseHandler) Tick() {
	h.broadcastOutcome(h.app.Tick())
}

// BroadcastUserCount sends the live connection count to everyone
func (h *PulseHandler) BroadcastUserCount() {
	h.broadcast(MessageTypeUserCount, events.UserCountPayload{Count: h.cm.ConnectionCount()})
}

func (h *PulseHandler) broadcastOutcome(res *pulse.PulseResult) {
	if res.Burst != nil {
		h.broadcast(MessageTypeBurst, res.Burst)
	}
	if res.StreakBroken {
		h.broadcast(MessageTypeStreakBroken, events.StreakBrokenPayload{})
	}
}

// errorMessage maps an app error to the text shown to the client
func errorMessage(err error) string {
	var cooldown *session.CooldownError
	switch {
	case errors.As(err, &cooldown):
		return fmt.Sprintf(errMsgCooldownPattern, cooldown.RemainingSeconds())
	case errors.Is(err, session.ErrInvalidColor):
		return errMsgInvalidColor
	case errors.Is(err, pulse.ErrNotFound):
		return errMsgUserNotFound
	case errors.Is(err, pulse.ErrRateLimited):
		return errMsgRateLimited
	default:
		return "Internal error"
	}
}

func (h *PulseHandler) sendAppError(c *Connection, err error) {
	log.Debug().
		Err(err).
		Str("connection_id", c.ID).
		Str("user_id", c.ParticipantID()).
		Msg("rejected client action")
	h.sendError(c, errorMessage(err))
}

func (h *PulseHandler) sendError(c *Connection, message string) {
	h.send(c, MessageTypeError, events.ErrorPayload{Message: message})
}

func (h *PulseHandler) send(c *Connection, t MessageType, payload interface{}) {
	msg, err := NewMessage(t, payload, h.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to build message")
		return
	}
	h.cm.SendTo(c, msg)
}

func (h *PulseHandler) broadcast(t MessageType, payload interface{}) {
	msg, err := NewMessage(t, payload, h.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to build message")
		return
	}
	h.cm.Broadcast(msg)
	if err := h.publisher.Publish(msg); err != nil {
		log.Warn().Err(err).Str("event_type", string(t)).Msg("failed to publish event")
	}
}
