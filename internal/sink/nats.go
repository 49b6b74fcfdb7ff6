package sink

import (
	"fmt"

	"NetSentry/internal/model"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// NATSSink publishes every verdict as JSON on a NATS subject.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

// NewNATSSink connects to the NATS server at url.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSink{nc: nc, subject: subject}, nil
}

func (s *NATSSink) Write(v *model.Verdict) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}
	return s.nc.Publish(s.subject, data)
}

// Close drains the connection so buffered verdicts are delivered.
func (s *NATSSink) Close() error {
	return s.nc.Drain()
}
