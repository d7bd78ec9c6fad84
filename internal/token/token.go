// Package token implements the fungible asset ledger used for both pool
// assets and the swap vault assets.
package token

import (
	"errors"
	"fmt"
	"maps"

	"github.com/danmuck/spikectl/internal/chain"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrZeroAddress           = errors.New("token: zero address")
	ErrOverflow              = errors.New("token: arithmetic overflow")
)

// Token is an allowance-based asset ledger living in a chain.Env.
type Token struct {
	env      *chain.Env
	address  chain.Address
	symbol   string
	decimals uint8

	state ledger
}

type ledger struct {
	supply     *uint256.Int
	balances   map[chain.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
}

type allowanceKey struct {
	owner   chain.Address
	spender chain.Address
}

// New deploys a token at address and registers it for rollback.
func New(env *chain.Env, address chain.Address, symbol string, decimals uint8) (*Token, error) {
	if chain.IsZero(address) {
		return nil, ErrZeroAddress
	}
	t := &Token{
		env:      env,
		address:  address,
		symbol:   symbol,
		decimals: decimals,
		state: ledger{
			supply:     new(uint256.Int),
			balances:   make(map[chain.Address]*uint256.Int),
			allowances: make(map[allowanceKey]*uint256.Int),
		},
	}
	if err := env.Register(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Token) Address() chain.Address { return t.address }
func (t *Token) Symbol() string         { return t.symbol }
func (t *Token) Decimals() uint8        { return t.decimals }

func (t *Token) TotalSupply() *uint256.Int {
	return t.state.supply.Clone()
}

func (t *Token) BalanceOf(owner chain.Address) *uint256.Int {
	if bal, ok := t.state.balances[owner]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

func (t *Token) Allowance(owner, spender chain.Address) *uint256.Int {
	if amt, ok := t.state.allowances[allowanceKey{owner, spender}]; ok {
		return amt.Clone()
	}
	return new(uint256.Int)
}

// Mint credits amount to to. Only fixtures and deployment call it.
func (t *Token) Mint(to chain.Address, amount *uint256.Int) error {
	if chain.IsZero(to) {
		return ErrZeroAddress
	}
	supply, overflow := new(uint256.Int).AddOverflow(t.state.supply, amount)
	if overflow {
		return fmt.Errorf("%w: mint %s", ErrOverflow, amount.Dec())
	}
	bal, overflow := new(uint256.Int).AddOverflow(t.BalanceOf(to), amount)
	if overflow {
		return fmt.Errorf("%w: mint %s", ErrOverflow, amount.Dec())
	}
	t.state.supply = supply
	t.state.balances[to] = bal
	t.emitTransfer(chain.ZeroAddress, to, amount)
	return nil
}

// Transfer moves amount from caller to to.
func (t *Token) Transfer(caller, to chain.Address, amount *uint256.Int) error {
	return t.move(caller, to, amount)
}

// Approve sets the allowance spender may pull from caller. It overwrites,
// never adds.
func (t *Token) Approve(caller, spender chain.Address, amount *uint256.Int) error {
	if chain.IsZero(caller) || chain.IsZero(spender) {
		return ErrZeroAddress
	}
	key := allowanceKey{caller, spender}
	if amount.IsZero() {
		delete(t.state.allowances, key)
	} else {
		t.state.allowances[key] = amount.Clone()
	}
	t.env.Emit("Approval", t.address, map[string]string{
		"owner":   caller.Hex(),
		"spender": spender.Hex(),
		"amount":  amount.Dec(),
	})
	return nil
}

// TransferFrom moves amount from from to to, consuming caller's allowance.
func (t *Token) TransferFrom(caller, from, to chain.Address, amount *uint256.Int) error {
	key := allowanceKey{from, caller}
	allowed := t.Allowance(from, caller)
	if allowed.Lt(amount) {
		return fmt.Errorf("%w: spender=%s allowed=%s want=%s",
			ErrInsufficientAllowance, caller.Hex(), allowed.Dec(), amount.Dec())
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	remaining := new(uint256.Int).Sub(allowed, amount)
	if remaining.IsZero() {
		delete(t.state.allowances, key)
	} else {
		t.state.allowances[key] = remaining
	}
	return nil
}

func (t *Token) move(from, to chain.Address, amount *uint256.Int) error {
	if chain.IsZero(from) || chain.IsZero(to) {
		return ErrZeroAddress
	}
	fromBal := t.BalanceOf(from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s %s, want %s",
			ErrInsufficientBalance, from.Hex(), fromBal.Dec(), t.symbol, amount.Dec())
	}
	if from != to {
		toBal, overflow := new(uint256.Int).AddOverflow(t.BalanceOf(to), amount)
		if overflow {
			return fmt.Errorf("%w: credit %s", ErrOverflow, amount.Dec())
		}
		t.state.balances[from] = new(uint256.Int).Sub(fromBal, amount)
		t.state.balances[to] = toBal
	}
	t.emitTransfer(from, to, amount)
	return nil
}

func (t *Token) emitTransfer(from, to chain.Address, amount *uint256.Int) {
	t.env.Emit("Transfer", t.address, map[string]string{
		"from":   from.Hex(),
		"to":     to.Hex(),
		"amount": amount.Dec(),
	})
}

// Snapshot implements chain.Journaled.
func (t *Token) Snapshot() any {
	return ledger{
		supply:     t.state.supply.Clone(),
		balances:   cloneAmounts(t.state.balances),
		allowances: cloneAmounts(t.state.allowances),
	}
}

// Restore implements chain.Journaled.
func (t *Token) Restore(snapshot any) {
	snap := snapshot.(ledger)
	t.state = ledger{
		supply:     snap.supply.Clone(),
		balances:   cloneAmounts(snap.balances),
		allowances: cloneAmounts(snap.allowances),
	}
}

func cloneAmounts[K comparable](in map[K]*uint256.Int) map[K]*uint256.Int {
	out := maps.Clone(in)
	if out == nil {
		out = make(map[K]*uint256.Int)
	}
	for k, v := range out {
		out[k] = v.Clone()
	}
	return out
}
