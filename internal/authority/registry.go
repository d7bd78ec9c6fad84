// Package authority implements the two-phase controller handoff that gates
// pool-level parameter changes.
//
// A proposal never transfers authority by itself: only the proposed
// address may accept it.
package authority

import (
	"errors"
	"fmt"

	"github.com/danmuck/spikectl/internal/chain"
)

var (
	ErrNotController = errors.New("authority: caller is not the controller")
	ErrNotPending    = errors.New("authority: caller is not the pending controller")
	ErrZeroAddress   = errors.New("authority: zero address")
)

// Registry holds the current and pending controller.
type Registry struct {
	env     *chain.Env
	address chain.Address
	state   registryState
}

type registryState struct {
	controller chain.Address
	pending    chain.Address
}

// New deploys a registry whose first controller is controller.
func New(env *chain.Env, address, controller chain.Address) (*Registry, error) {
	if chain.IsZero(address) || chain.IsZero(controller) {
		return nil, ErrZeroAddress
	}
	r := &Registry{
		env:     env,
		address: address,
		state:   registryState{controller: controller},
	}
	if err := env.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) Address() chain.Address {
	return r.address
}

// Controller returns the current controller.
func (r *Registry) Controller() chain.Address {
	return r.state.controller
}

// PendingController returns the proposed controller, or the zero address.
func (r *Registry) PendingController() chain.Address {
	return r.state.pending
}

// SetController proposes pending. Only the current controller may propose.
func (r *Registry) SetController(caller, pending chain.Address) error {
	if caller != r.state.controller {
		return fmt.Errorf("%w: caller=%s", ErrNotController, caller.Hex())
	}
	if chain.IsZero(pending) {
		return ErrZeroAddress
	}
	r.state.pending = pending
	r.env.Emit("ControllerProposed", r.address, map[string]string{
		"controller": r.state.controller.Hex(),
		"pending":    pending.Hex(),
	})
	return nil
}

// BecomeController promotes the pending controller. Only the pending
// controller may accept.
func (r *Registry) BecomeController(caller chain.Address) error {
	if chain.IsZero(r.state.pending) || caller != r.state.pending {
		return fmt.Errorf("%w: caller=%s", ErrNotPending, caller.Hex())
	}
	previous := r.state.controller
	r.state.controller = caller
	r.state.pending = chain.ZeroAddress
	r.env.Emit("ControllerAccepted", r.address, map[string]string{
		"previous":   previous.Hex(),
		"controller": caller.Hex(),
	})
	return nil
}

// Snapshot implements chain.Journaled.
func (r *Registry) Snapshot() any {
	return r.state
}

// Restore implements chain.Journaled.
func (r *Registry) Restore(snapshot any) {
	r.state = snapshot.(registryState)
}
