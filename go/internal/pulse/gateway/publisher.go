package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// EventPublisher mirrors broadcast facts to an external sink
type EventPublisher interface {
	Publish(msg *Message) error
	Close() error
}

// NoOpPublisher discards everything. Used when no bus is configured.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(*Message) error { return nil }
func (NoOpPublisher) Close() error           { return nil }

// natsConn is the subset of *nats.Conn the publisher uses
type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisherConfig holds configuration for the NATS publisher
type NATSPublisherConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSPublisherConfig returns default NATS publisher configuration
func DefaultNATSPublisherConfig() NATSPublisherConfig {
	return NATSPublisherConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "pulse.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSPublisher publishes facts to <prefix>.<type> subjects
type NATSPublisher struct {
	nc     natsConn
	prefix string
}

// NewNATSPublisher connects to NATS
func NewNATSPublisher(config NATSPublisherConfig) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("pulseboard-gateway"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return newNATSPublisher(nc, config.SubjectPrefix), nil
}

func newNATSPublisher(nc natsConn, prefix string) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: prefix}
}

// Subject returns the subject a message type is published on
func (p *NATSPublisher) Subject(t MessageType) string {
	return fmt.Sprintf("%s.%s", p.prefix, t)
}

// Publish sends the envelope as JSON
func (p *NATSPublisher) Publish(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.nc.Publish(p.Subject(msg.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}
	return nil
}

// Close drains the connection
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
