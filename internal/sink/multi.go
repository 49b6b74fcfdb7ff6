package sink

import (
	"errors"

	"NetSentry/internal/model"
)

// Multi fans a verdict out to several sinks. Every sink is attempted even if one fails.
type Multi []model.Sink

func (m Multi) Write(v *model.Verdict) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
