package mastersheet

import (
	"context"
	"sync"
)

// Store holds the most recent build for readers.
type Store struct {
	mu     sync.RWMutex
	latest *Result
}

func NewStore() *Store { return &Store{} }

// Set replaces the current build.
func (s *Store) Set(res *Result) {
	s.mu.Lock()
	s.latest = res
	s.mu.Unlock()
}

// Latest returns the current build or ErrSheetNotBuilt.
func (s *Store) Latest() (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, ErrSheetNotBuilt
	}
	return s.latest, nil
}

// Rebuilder produces a fresh master sheet.
type Rebuilder interface {
	Build(ctx context.Context) (*Result, error)
}

// Service ties a builder to its sinks and the read store.
type Service struct {
	builder Rebuilder
	sinks   []Sink
	store   *Store
	mu      sync.Mutex
}

func NewService(builder Rebuilder, store *Store, sinks ...Sink) *Service {
	return &Service{builder: builder, store: store, sinks: sinks}
}

// Rebuild builds, persists to every sink and publishes the result. Only one
// rebuild runs at a time; the store keeps the previous build on failure.
func (s *Service) Rebuild(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err := WriteAll(ctx, res, s.sinks...); err != nil {
		return nil, err
	}
	s.store.Set(res)
	return res, nil
}

func (s *Service) Store() *Store { return s.store }
