// Package pool implements the two-asset resource pool: reserves, the global
// premium basis, and the per-owner append-only note ledger.
package pool

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/spikectl/internal/chain"
	"github.com/holiman/uint256"
)

var (
	ErrArithmeticOverflow    = errors.New("pool: arithmetic overflow")
	ErrInsufficientLiquidity = errors.New("pool: insufficient liquidity")
	ErrNotController         = errors.New("pool: caller is not the controller")
	ErrNoteNotFound          = errors.New("pool: note not found")
	ErrNoteCleared           = errors.New("pool: note already cleared")
	ErrNotMatured            = errors.New("pool: note not matured")
	ErrSlippage              = errors.New("pool: credited amount below minimum")
	ErrZeroAmount            = errors.New("pool: zero amount")
	ErrZeroAddress           = errors.New("pool: zero address")
	ErrInvalidLock           = errors.New("pool: invalid lock duration")
)

// Asset is the token surface the pool moves funds through.
type Asset interface {
	Address() chain.Address
	Transfer(caller, to chain.Address, amount *uint256.Int) error
	TransferFrom(caller, from, to chain.Address, amount *uint256.Int) error
	BalanceOf(owner chain.Address) *uint256.Int
}

// Authority resolves who may change pool-level parameters.
type Authority interface {
	Address() chain.Address
	Controller() chain.Address
}

// Pool holds both reserves, the basis, and the note ledger.
type Pool struct {
	env       *chain.Env
	address   chain.Address
	token0    Asset
	token1    Asset
	authority Authority

	state poolState
}

type poolState struct {
	reserve0 *uint256.Int
	reserve1 *uint256.Int
	basis    *uint256.Int
	notes    map[chain.Address][]Note
}

// Config carries the deploy-time pool parameters.
type Config struct {
	Address   chain.Address
	Token0    Asset
	Token1    Asset
	Authority Authority
	Basis     *uint256.Int
}

// New deploys a pool and registers it for rollback.
func New(env *chain.Env, cfg Config) (*Pool, error) {
	if chain.IsZero(cfg.Address) {
		return nil, ErrZeroAddress
	}
	if cfg.Token0 == nil || cfg.Token1 == nil || cfg.Authority == nil {
		return nil, fmt.Errorf("pool: tokens and authority are required")
	}
	basis := cfg.Basis
	if basis == nil {
		basis = new(uint256.Int)
	}
	p := &Pool{
		env:       env,
		address:   cfg.Address,
		token0:    cfg.Token0,
		token1:    cfg.Token1,
		authority: cfg.Authority,
		state: poolState{
			reserve0: new(uint256.Int),
			reserve1: new(uint256.Int),
			basis:    basis.Clone(),
			notes:    make(map[chain.Address][]Note),
		},
	}
	if err := env.Register(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool) Address() chain.Address { return p.address }
func (p *Pool) Token0() chain.Address  { return p.token0.Address() }
func (p *Pool) Token1() chain.Address  { return p.token1.Address() }

// Factory returns the authority registry that controls this pool.
func (p *Pool) Factory() chain.Address {
	return p.authority.Address()
}

func (p *Pool) Basis() *uint256.Int {
	return p.state.basis.Clone()
}

func (p *Pool) GetReserves() (*uint256.Int, *uint256.Int) {
	return p.state.reserve0.Clone(), p.state.reserve1.Clone()
}

func (p *Pool) NoteCount(owner chain.Address) uint64 {
	return uint64(len(p.state.notes[owner]))
}

// Notes returns a copy of owner's note at index.
func (p *Pool) Notes(owner chain.Address, index uint64) (Note, error) {
	ledger := p.state.notes[owner]
	if index >= uint64(len(ledger)) {
		return Note{}, fmt.Errorf("%w: owner=%s index=%d", ErrNoteNotFound, owner.Hex(), index)
	}
	return ledger[index].Clone(), nil
}

// NotesOf returns a copy of owner's whole ledger in index order.
func (p *Pool) NotesOf(owner chain.Address) []Note {
	ledger := p.state.notes[owner]
	out := make([]Note, len(ledger))
	for i, n := range ledger {
		out[i] = n.Clone()
	}
	return out
}

// SetBasis overwrites the global basis. Controller only.
func (p *Pool) SetBasis(caller chain.Address, basis *uint256.Int) error {
	if err := p.onlyController(caller); err != nil {
		return err
	}
	previous := p.state.basis
	p.state.basis = basis.Clone()
	p.env.Emit("BasisUpdated", p.address, map[string]string{
		"previous": previous.Dec(),
		"basis":    basis.Dec(),
		"caller":   caller.Hex(),
	})
	return nil
}

func (p *Pool) onlyController(caller chain.Address) error {
	if controller := p.authority.Controller(); caller != controller {
		return fmt.Errorf("%w: caller=%s controller=%s", ErrNotController, caller.Hex(), controller.Hex())
	}
	return nil
}

func (p *Pool) now() time.Time {
	return p.env.Now()
}

// Snapshot implements chain.Journaled.
func (p *Pool) Snapshot() any {
	return p.cloneState()
}

// Restore implements chain.Journaled.
func (p *Pool) Restore(snapshot any) {
	snap := snapshot.(poolState)
	p.state = poolState{
		reserve0: snap.reserve0.Clone(),
		reserve1: snap.reserve1.Clone(),
		basis:    snap.basis.Clone(),
		notes:    cloneNotes(snap.notes),
	}
}

func (p *Pool) cloneState() poolState {
	return poolState{
		reserve0: p.state.reserve0.Clone(),
		reserve1: p.state.reserve1.Clone(),
		basis:    p.state.basis.Clone(),
		notes:    cloneNotes(p.state.notes),
	}
}

func cloneNotes(in map[chain.Address][]Note) map[chain.Address][]Note {
	out := make(map[chain.Address][]Note, len(in))
	for owner, ledger := range in {
		cp := make([]Note, len(ledger))
		for i, n := range ledger {
			cp[i] = n.Clone()
		}
		out[owner] = cp
	}
	return out
}
