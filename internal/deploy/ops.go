package deploy

import (
	"time"

	"github.com/danmuck/spikectl/internal/chain"
	"github.com/danmuck/spikectl/internal/pool"
	"github.com/holiman/uint256"
)

// PoolState is a consistent read of the pool and its authority.
type PoolState struct {
	Pool       chain.Address `json:"pool"`
	Registry   chain.Address `json:"registry"`
	Spiker     chain.Address `json:"spiker"`
	Token0     chain.Address `json:"token0"`
	Token1     chain.Address `json:"token1"`
	Basis      *uint256.Int  `json:"basis"`
	Reserve0   *uint256.Int  `json:"reserve0"`
	Reserve1   *uint256.Int  `json:"reserve1"`
	Controller chain.Address `json:"controller"`
	Pending    chain.Address `json:"pending_controller"`
	At         time.Time     `json:"at"`
}

// NoteView is one note with its ledger index.
type NoteView struct {
	Index    uint64       `json:"index"`
	Amount0  *uint256.Int `json:"amount0"`
	Amount1  *uint256.Int `json:"amount1"`
	Maturity time.Time    `json:"maturity"`
	Cleared  bool         `json:"cleared"`
	Matured  bool         `json:"matured"`
}

func (s *Stack) PoolState() PoolState {
	var st PoolState
	s.Env.View(func() {
		r0, r1 := s.Pool.GetReserves()
		st = PoolState{
			Pool:       s.Pool.Address(),
			Registry:   s.Registry.Address(),
			Spiker:     s.Spiker.Address(),
			Token0:     s.Pool.Token0(),
			Token1:     s.Pool.Token1(),
			Basis:      s.Pool.Basis(),
			Reserve0:   r0,
			Reserve1:   r1,
			Controller: s.Registry.Controller(),
			Pending:    s.Registry.PendingController(),
			At:         s.Env.Now(),
		}
	})
	return st
}

func (s *Stack) Notes(owner chain.Address) []NoteView {
	var notes []pool.Note
	s.Env.View(func() {
		notes = s.Pool.NotesOf(owner)
	})
	now := s.Env.Now()
	out := make([]NoteView, len(notes))
	for i, n := range notes {
		out[i] = NoteView{
			Index:    uint64(i),
			Amount0:  n.Amount0,
			Amount1:  n.Amount1,
			Maturity: n.Maturity,
			Cleared:  n.Cleared(),
			Matured:  n.Matured(now),
		}
	}
	return out
}

// ProposeController runs the registry proposal as one call.
func (s *Stack) ProposeController(caller, pending chain.Address) error {
	return s.Env.Atomic(func() error {
		return s.Registry.SetController(caller, pending)
	})
}

// AcceptController runs the registry acceptance as one call.
func (s *Stack) AcceptController(caller chain.Address) error {
	return s.Env.Atomic(func() error {
		return s.Registry.BecomeController(caller)
	})
}

// AddLiquidity tops up reserves from caller as one call.
func (s *Stack) AddLiquidity(caller chain.Address, amount0, amount1 *uint256.Int) error {
	return s.Env.Atomic(func() error {
		return s.Pool.AddLiquidity(caller, amount0, amount1)
	})
}

// Approve sets caller's allowance for spender on both pool assets.
func (s *Stack) Approve(caller, spender chain.Address, amountA, amountB *uint256.Int) error {
	return s.Env.Atomic(func() error {
		if err := s.TokenA.Approve(caller, spender, amountA); err != nil {
			return err
		}
		return s.TokenB.Approve(caller, spender, amountB)
	})
}

// Balances reads who's balance of both pool assets.
func (s *Stack) Balances(who chain.Address) (*uint256.Int, *uint256.Int) {
	var a, b *uint256.Int
	s.Env.View(func() {
		a, b = s.TokenA.BalanceOf(who), s.TokenB.BalanceOf(who)
	})
	return a, b
}
