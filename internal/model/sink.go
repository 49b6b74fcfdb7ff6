package model

// Sink persists or forwards verdicts. Implementations must be safe for concurrent use.
type Sink interface {
	Write(v *Verdict) error
	Close() error
}
