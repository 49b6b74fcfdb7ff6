package model

// Notifier delivers alert summaries to operators.
type Notifier interface {
	Send(subject, body string) error
}
