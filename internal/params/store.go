// Package params holds the authoritative process parameter values of a panel
// session and normalizes operator edits.
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"goldenbatch/internal/types"
)

// ErrUnknownParameter is returned by Set for a name outside the parameter set.
var ErrUnknownParameter = errors.New("unknown parameter")

// Store holds the current ParameterSet. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	values      types.ParameterSet
	bounds      []types.ParameterBounds
	subscribers map[int]func(types.ParameterSet)
	nextID      int
}

// NewStore returns a store initialized with the session defaults.
func NewStore() *Store {
	return &Store{
		values:      types.DefaultParameterSet(),
		bounds:      types.DefaultBounds(),
		subscribers: make(map[int]func(types.ParameterSet)),
	}
}

// Snapshot returns a copy of the current values.
func (s *Store) Snapshot() types.ParameterSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

// Bounds returns the advisory operating ranges for display.
func (s *Store) Bounds() []types.ParameterBounds {
	out := make([]types.ParameterBounds, len(s.bounds))
	copy(out, s.bounds)
	return out
}

// Set coerces raw into a finite float64 and overwrites the named field.
// Input that does not parse as a finite number becomes 0. No range clamping is
// applied. Only an unknown name is an error.
func (s *Store) Set(name types.ParameterName, raw any) (types.ParameterSet, error) {
	if !name.Valid() {
		return s.Snapshot(), fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	value := Coerce(raw)

	s.mu.Lock()
	updated, _ := s.values.With(name, value)
	s.values = updated
	s.mu.Unlock()

	s.notify(updated)
	return updated, nil
}

// Reset restores the session defaults.
func (s *Store) Reset() types.ParameterSet {
	defaults := types.DefaultParameterSet()
	s.mu.Lock()
	s.values = defaults
	s.mu.Unlock()

	s.notify(defaults)
	return defaults
}

// Subscribe registers fn to receive every new snapshot. The returned func
// removes the subscription.
func (s *Store) Subscribe(fn func(types.ParameterSet)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(values types.ParameterSet) {
	s.mu.RLock()
	fns := make([]func(types.ParameterSet), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(values)
	}
}

// Coerce converts an operator input into a finite number. Strings are trimmed
// and must parse as a whole ("12abc" is 0); numeric kinds are converted
// directly. Anything else, and any NaN or infinite result, yields 0.
func Coerce(raw any) float64 {
	var v float64
	switch x := raw.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		v = f
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		v = f
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int8:
		v = float64(x)
	case int16:
		v = float64(x)
	case int32:
		v = float64(x)
	case int64:
		v = float64(x)
	case uint:
		v = float64(x)
	case uint8:
		v = float64(x)
	case uint16:
		v = float64(x)
	case uint32:
		v = float64(x)
	case uint64:
		v = float64(x)
	default:
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
