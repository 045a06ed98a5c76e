package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Do when the named circuit is open. Callers fail
// fast instead of waiting on a dependency that is already known bad.
var ErrOpen = errors.New("circuit breaker open")

// DefaultThreshold is the number of consecutive failures that opens a
// circuit when the Set is built without an explicit threshold.
const DefaultThreshold = 5

// State is the circuit position. There is no half-open probe state: a
// circuit closes again only through RecordSuccess or an explicit Reset,
// which keeps the recovery decision observable.
type State int

const (
	StateClosed State = iota
	StateOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of one circuit.
type Status struct {
	Name        string
	State       State
	Failures    int
	LastFailure time.Time
}

type circuit struct {
	failures    int
	lastFailure time.Time
}

// Set tracks one circuit per named dependency. Circuits are created
// lazily on first use, so callers never pre-register names.
//
// State is purely a function of the consecutive-failure count: a circuit
// is open while failures >= threshold and closed otherwise. One success
// zeroes the count, closing the circuit.
//
// All operations are safe for concurrent use.
type Set struct {
	threshold int
	onOpen    func(name string, failures int)

	mu       sync.Mutex
	circuits map[string]*circuit
}

// Option configures a Set.
type Option func(*Set)

// WithThreshold sets the consecutive-failure count that opens a circuit.
func WithThreshold(n int) Option {
	return func(s *Set) {
		if n > 0 {
			s.threshold = n
		}
	}
}

// WithOnOpen registers a callback invoked once per closed-to-open
// transition. Used for logging and metrics; must not block.
func WithOnOpen(fn func(name string, failures int)) Option {
	return func(s *Set) { s.onOpen = fn }
}

// NewSet returns an empty registry with DefaultThreshold unless overridden.
func NewSet(opts ...Option) *Set {
	s := &Set{
		threshold: DefaultThreshold,
		circuits:  make(map[string]*circuit),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Set) get(name string) *circuit {
	c, ok := s.circuits[name]
	if !ok {
		c = &circuit{}
		s.circuits[name] = c
	}
	return c
}

func (s *Set) stateOf(c *circuit) State {
	if c.failures >= s.threshold {
		return StateOpen
	}
	return StateClosed
}

// IsOpen reports whether the named circuit is open. Unknown names are
// closed: a dependency that has never failed is healthy.
func (s *Set) IsOpen(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.circuits[name]
	return ok && s.stateOf(c) == StateOpen
}

// RecordFailure counts one failure against name; the circuit opens when
// the consecutive count reaches the threshold. Failures recorded while
// already open keep counting.
func (s *Set) RecordFailure(name string) {
	var notify func(string, int)
	var failures int

	s.mu.Lock()
	c := s.get(name)
	c.failures++
	c.lastFailure = time.Now()
	if c.failures == s.threshold {
		notify = s.onOpen
		failures = c.failures
	}
	s.mu.Unlock()

	if notify != nil {
		notify(name, failures)
	}
}

// RecordSuccess zeroes the consecutive-failure count for name, closing
// the circuit if it was open.
func (s *Set) RecordSuccess(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.circuits[name]; ok {
		c.failures = 0
	}
}

// Reset closes the named circuit by zeroing its failure count.
func (s *Set) Reset(name string) {
	s.RecordSuccess(name)
}

// ResetAll closes every circuit in the set.
func (s *Set) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.circuits {
		c.failures = 0
	}
}

// Status returns a snapshot of the named circuit. Unknown names report
// a closed circuit with zero failures.
func (s *Set) Status(name string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Name: name}
	if c, ok := s.circuits[name]; ok {
		st.State = s.stateOf(c)
		st.Failures = c.failures
		st.LastFailure = c.lastFailure
	}
	return st
}

// All returns a snapshot of every circuit the set has seen.
func (s *Set) All() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Status, 0, len(s.circuits))
	for name, c := range s.circuits {
		out = append(out, Status{
			Name:        name,
			State:       s.stateOf(c),
			Failures:    c.failures,
			LastFailure: c.lastFailure,
		})
	}
	return out
}

// Do guards fn with the named circuit: it fails fast with ErrOpen when
// the circuit is open, otherwise runs fn and records the outcome.
func (s *Set) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if s.IsOpen(name) {
		return ErrOpen
	}

	if err := fn(ctx); err != nil {
		s.RecordFailure(name)
		return err
	}
	s.RecordSuccess(name)
	return nil
}
