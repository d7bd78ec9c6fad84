package chain

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

var (
	ErrCallPanicked = errors.New("chain: call panicked")
	ErrNoActiveCall = errors.New("chain: no active call")
	ErrNilMember    = errors.New("chain: nil journaled member")
)

// Journaled is implemented by every stateful component living in an Env.
// Snapshot must return a deep copy; Restore must accept only values
// returned by the same component's Snapshot.
type Journaled interface {
	Snapshot() any
	Restore(snapshot any)
}

// Event is one entry in the environment event log.
type Event struct {
	ID      string            `json:"id"`
	Kind    string            `json:"kind"`
	Emitter Address           `json:"emitter"`
	At      time.Time         `json:"at"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Env serializes calls against its members and rolls failed calls back.
type Env struct {
	mu      sync.Mutex
	clock   Clock
	logger  zerolog.Logger
	members []Journaled
	events  []Event
	nonces  map[Address]uint64
	depth   int
}

type envSnapshot struct {
	members []any
	events  int
}

// NewEnv returns an empty environment reading time from clock.
func NewEnv(clock Clock, logger zerolog.Logger) *Env {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Env{
		clock:  clock,
		logger: logger.With().Str("component", "chain").Logger(),
		nonces: make(map[Address]uint64),
	}
}

// Register adds a member whose state participates in rollback.
func (e *Env) Register(member Journaled) error {
	if member == nil {
		return ErrNilMember
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.members = append(e.members, member)
	return nil
}

// Deploy returns the next component address for deployer.
func (e *Env) Deploy(deployer Address) Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	nonce := e.nonces[deployer]
	e.nonces[deployer] = nonce + 1
	return CreateAddress(deployer, nonce)
}

func (e *Env) Now() time.Time {
	return e.clock.Now()
}

func (e *Env) Clock() Clock {
	return e.clock
}

// Atomic runs fn as one call. Calls never interleave. When fn returns an
// error or panics, every member and the event log are restored to their
// state before the call.
func (e *Env) Atomic(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run(fn)
}

// Try runs fn as a nested call inside the active Atomic call. A failure
// restores only what fn changed; the enclosing call continues.
func (e *Env) Try(fn func() error) error {
	if e.depth == 0 {
		return ErrNoActiveCall
	}
	return e.run(fn)
}

// View runs fn while holding the call lock, so reads never observe a call
// in progress.
func (e *Env) View(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

func (e *Env) run(fn func() error) (err error) {
	snap := e.snapshot()
	e.depth++
	defer func() {
		e.depth--
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCallPanicked, r)
		}
		if err != nil {
			e.restore(snap)
			e.logger.Debug().Err(err).Int("depth", e.depth).Msg("call reverted")
		}
	}()
	return fn()
}

func (e *Env) snapshot() envSnapshot {
	snap := envSnapshot{
		members: make([]any, len(e.members)),
		events:  len(e.events),
	}
	for i, m := range e.members {
		snap.members[i] = m.Snapshot()
	}
	return snap
}

func (e *Env) restore(snap envSnapshot) {
	for i, m := range e.members {
		if i < len(snap.members) {
			m.Restore(snap.members[i])
		}
	}
	e.events = e.events[:snap.events]
}

// Emit appends an event to the log. Events emitted by a reverted call are
// discarded with it.
func (e *Env) Emit(kind string, emitter Address, fields map[string]string) Event {
	evt := Event{
		ID:      xid.New().String(),
		Kind:    kind,
		Emitter: emitter,
		At:      e.clock.Now(),
		Fields:  maps.Clone(fields),
	}
	e.events = append(e.events, evt)
	return evt
}

// Events returns a copy of the whole log.
func (e *Env) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneEvents(e.events)
}

// EventsSince returns events after cursor plus the new cursor.
func (e *Env) EventsSince(cursor int) ([]Event, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cursor < 0 || cursor > len(e.events) {
		cursor = 0
	}
	return cloneEvents(e.events[cursor:]), len(e.events)
}

func cloneEvents(in []Event) []Event {
	out := make([]Event, len(in))
	for i, evt := range in {
		evt.Fields = maps.Clone(evt.Fields)
		out[i] = evt
	}
	return out
}
