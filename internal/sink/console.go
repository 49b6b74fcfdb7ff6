package sink

import (
	"fmt"
	"io"
	"sync"

	"NetSentry/internal/model"
)

// ConsoleSink prints verdict lines, prefixing malicious ones with "ALERT:".
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSink creates a sink printing to w.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Write(v *model.Verdict) error {
	line := FormatLine(v)
	if v.IsMalicious() {
		line = "ALERT: " + line
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, line)
	return err
}

func (s *ConsoleSink) Close() error {
	return nil
}
