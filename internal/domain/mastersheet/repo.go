package mastersheet

import (
	"context"
)

// Sink persists a built master sheet.
type Sink interface {
	Name() string
	Write(ctx context.Context, res *Result) error
}

// WriteAll writes res to every sink in order and stops at the first failure.
func WriteAll(ctx context.Context, res *Result, sinks ...Sink) error {
	for _, s := range sinks {
		if err := s.Write(ctx, res); err != nil {
			return err
		}
	}
	return nil
}
