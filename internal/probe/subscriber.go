package probe

import (
	"NetSentry/internal/config"
	"NetSentry/internal/model"

	"github.com/nats-io/nats.go"
	zlog "github.com/rs/zerolog/log"
)

// PacketHandler processes a received record.
type PacketHandler func(rec *model.PacketRecord)

// Subscriber consumes packet records published by probes. It is the capture source
// of a sentinel running in "nats" mode.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.ProbeConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	zlog.Info().Str("url", cfg.NATSURL).Msg("Connected to NATS server")
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Start subscribes to the configured subject and hands every decoded record to handler.
// Undecodable messages are logged and skipped.
func (s *Subscriber) Start(handler PacketHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		rec, err := Unmarshal(msg.Data)
		if err != nil {
			zlog.Warn().Err(err).Msg("Dropping undecodable packet message")
			return
		}
		handler(rec)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	zlog.Info().Str("subject", s.subject).Msg("Subscribed, waiting for messages")
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		zlog.Info().Msg("NATS connection closed")
	}
}
