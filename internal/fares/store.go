package fares

import (
	"context"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// State is the lifecycle position of a Store.
type State int32

const (
	StateEmpty State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "empty"
	}
}

// Query is a caller supplied origin/destination pair.
type Query struct {
	From string `query:"from" json:"from"`
	To   string `query:"to" json:"to"`
}

// Validate reports ErrMissingParameter when either end is blank.
func (q Query) Validate() error {
	if q.From == "" || q.To == "" {
		return ErrMissingParameter
	}
	return nil
}

// Store lazily loads a Matrix from its Source and keeps the first successful
// result for its whole lifetime. Failed loads are not remembered, so the next
// call tries again. Concurrent cold-start callers share one physical load.
type Store struct {
	src    Source
	logger *log.Logger
	onLoad func(context.Context, *Matrix)

	group   singleflight.Group
	current atomic.Pointer[Matrix]
	state   atomic.Int32
	loads   atomic.Int64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *log.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithLoadHook registers fn to run once after the first successful load.
func WithLoadHook(fn func(context.Context, *Matrix)) StoreOption {
	return func(s *Store) { s.onLoad = fn }
}

// NewStore returns an empty Store reading from src.
func NewStore(src Source, opts ...StoreOption) *Store {
	s := &Store{src: src, logger: log.Default()}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

// State reports where the store is in its lifecycle.
func (s *Store) State() State { return State(s.state.Load()) }

// Loads reports how many times the Source has been asked to load.
func (s *Store) Loads() int64 { return s.loads.Load() }

// Load returns the cached Matrix, reading the Source if nothing is cached yet.
// The read is detached from ctx cancellation since other callers may be
// waiting on the same load.
func (s *Store) Load(ctx context.Context) (*Matrix, error) {
	if m := s.current.Load(); m != nil {
		return m, nil
	}
	v, err, shared := s.group.Do("load", func() (any, error) {
		if m := s.current.Load(); m != nil {
			return m, nil
		}
		s.state.Store(int32(StateLoading))
		s.loads.Add(1)
		m, err := s.src.Load(context.WithoutCancel(ctx))
		if err != nil {
			s.state.Store(int32(StateEmpty))
			return nil, err
		}
		s.current.Store(m)
		s.state.Store(int32(StateReady))
		if s.onLoad != nil {
			s.onLoad(context.WithoutCancel(ctx), m)
		}
		return m, nil
	})
	if err != nil {
		s.logger.Error("fare data load failed", "err", err, "shared", shared)
		return nil, err
	}
	return v.(*Matrix), nil
}

// Stops returns the stop names in chart order.
func (s *Store) Stops(ctx context.Context) ([]string, error) {
	m, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return m.Stops(), nil
}

// Fare returns the fare from one stop to another, by first occurrence of each
// name in the chart.
func (s *Store) Fare(ctx context.Context, from, to string) (float64, error) {
	m, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	return m.Fare(from, to)
}
