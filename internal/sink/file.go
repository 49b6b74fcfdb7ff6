package sink

import (
	"fmt"
	"os"
	"sync"

	"NetSentry/internal/model"
)

// FileSink appends malicious and benign verdicts to two separate files.
// Appends are serialized so concurrent workers never interleave lines.
type FileSink struct {
	mu        sync.Mutex
	malicious *os.File
	benign    *os.File
}

// NewFileSink opens (creating if needed) both log files in append mode.
func NewFileSink(maliciousPath, benignPath string) (*FileSink, error) {
	malicious, err := openAppend(maliciousPath)
	if err != nil {
		return nil, err
	}
	benign, err := openAppend(benignPath)
	if err != nil {
		malicious.Close()
		return nil, err
	}
	return &FileSink{malicious: malicious, benign: benign}, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file '%s': %w", path, err)
	}
	return f, nil
}

// Write appends the verdict line to the matching file.
func (s *FileSink) Write(v *model.Verdict) error {
	line := FormatLine(v) + "\n"

	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.benign
	if v.IsMalicious() {
		f = s.malicious
	}
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append to '%s': %w", f.Name(), err)
	}
	return nil
}

// Close closes both files.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err1 := s.malicious.Close()
	err2 := s.benign.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
