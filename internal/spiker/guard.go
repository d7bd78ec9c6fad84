package spiker

import (
	"fmt"

	"github.com/danmuck/spikectl/internal/chain"
	"github.com/holiman/uint256"
)

// controlLease holds the controller role for the span of one call.
// release proposes the original controller back; it only restores the
// proposal, the original controller still has to accept.
type controlLease struct {
	registry Registry
	self     chain.Address
	original chain.Address
}

func acquireControl(registry Registry, self chain.Address) (*controlLease, error) {
	original := registry.Controller()
	if err := registry.BecomeController(self); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotController, err)
	}
	return &controlLease{registry: registry, self: self, original: original}, nil
}

func (l *controlLease) release() error {
	if err := l.registry.SetController(l.self, l.original); err != nil {
		return fmt.Errorf("%w: controller proposal: %w", ErrRestoreFailed, err)
	}
	return nil
}

// basisOverride is a scoped write of the pool basis; restore puts the
// remembered value back.
type basisOverride struct {
	pool     Pool
	self     chain.Address
	previous *uint256.Int
}

func overrideBasis(p Pool, self chain.Address, basis *uint256.Int) (*basisOverride, error) {
	previous := p.Basis()
	if err := p.SetBasis(self, basis); err != nil {
		return nil, err
	}
	return &basisOverride{pool: p, self: self, previous: previous}, nil
}

func (o *basisOverride) restore() error {
	if err := o.pool.SetBasis(o.self, o.previous); err != nil {
		return fmt.Errorf("%w: basis: %w", ErrRestoreFailed, err)
	}
	return nil
}
