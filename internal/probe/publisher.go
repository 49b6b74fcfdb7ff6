package probe

import (
	"NetSentry/internal/config"
	"NetSentry/internal/model"

	"github.com/nats-io/nats.go"
	zlog "github.com/rs/zerolog/log"
)

// Publisher is responsible for publishing packet records to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.ProbeConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	zlog.Info().Str("url", cfg.NATSURL).Msg("Connected to NATS server")
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish serializes a record and publishes it to the configured subject.
func (p *Publisher) Publish(rec *model.PacketRecord) error {
	data, err := Marshal(rec)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		zlog.Info().Msg("NATS connection drained and closed")
	}
}
