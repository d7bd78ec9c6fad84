package pool

import (
	"fmt"
	"strconv"
	"time"

	"github.com/danmuck/spikectl/internal/chain"
	"github.com/holiman/uint256"
)

// Deposit0 locks amount of token0 for owner and appends one note.
func (p *Pool) Deposit0(caller, owner chain.Address, amount, minOut *uint256.Int, lockSeconds uint64) (uint64, error) {
	return p.deposit(0, caller, owner, amount, minOut, lockSeconds)
}

// Deposit1 locks amount of token1 for owner and appends one note.
func (p *Pool) Deposit1(caller, owner chain.Address, amount, minOut *uint256.Int, lockSeconds uint64) (uint64, error) {
	return p.deposit(1, caller, owner, amount, minOut, lockSeconds)
}

func (p *Pool) deposit(side int, caller, owner chain.Address, amount, minOut *uint256.Int, lockSeconds uint64) (uint64, error) {
	if amount == nil || amount.IsZero() {
		return 0, ErrZeroAmount
	}
	if chain.IsZero(owner) {
		return 0, ErrZeroAddress
	}
	if lockSeconds == 0 {
		return 0, ErrInvalidLock
	}

	credited, err := Credited(amount, p.state.basis, lockSeconds)
	if err != nil {
		return 0, err
	}
	if minOut != nil && credited.Lt(minOut) {
		return 0, fmt.Errorf("%w: credited=%s min=%s", ErrSlippage, credited.Dec(), minOut.Dec())
	}

	asset, reserve := p.side(side)
	next, overflow := new(uint256.Int).AddOverflow(reserve, amount)
	if overflow {
		return 0, fmt.Errorf("%w: reserve%d=%s amount=%s", ErrArithmeticOverflow, side, reserve.Dec(), amount.Dec())
	}
	if err := asset.TransferFrom(p.address, caller, p.address, amount); err != nil {
		return 0, err
	}
	p.setReserve(side, next)

	note := Note{
		Amount0:  new(uint256.Int),
		Amount1:  new(uint256.Int),
		Maturity: p.now().Add(time.Duration(lockSeconds) * time.Second),
	}
	if side == 0 {
		note.Amount0 = credited
	} else {
		note.Amount1 = credited
	}
	index := uint64(len(p.state.notes[owner]))
	p.state.notes[owner] = append(p.state.notes[owner], note)

	p.env.Emit("Deposit", p.address, map[string]string{
		"caller":   caller.Hex(),
		"owner":    owner.Hex(),
		"side":     strconv.Itoa(side),
		"amount":   amount.Dec(),
		"credited": credited.Dec(),
		"index":    strconv.FormatUint(index, 10),
		"maturity": note.Maturity.Format(time.RFC3339),
	})
	return index, nil
}

// Withdraw redeems caller's note at index to to. Every check runs before any
// state changes, so a failed withdrawal leaves the note and reserves as they
// were.
func (p *Pool) Withdraw(caller chain.Address, index uint64, to chain.Address) (*uint256.Int, *uint256.Int, error) {
	if chain.IsZero(to) {
		return nil, nil, ErrZeroAddress
	}
	ledger := p.state.notes[caller]
	if index >= uint64(len(ledger)) {
		return nil, nil, fmt.Errorf("%w: owner=%s index=%d", ErrNoteNotFound, caller.Hex(), index)
	}
	note := ledger[index]
	if note.Cleared() {
		return nil, nil, fmt.Errorf("%w: owner=%s index=%d", ErrNoteCleared, caller.Hex(), index)
	}
	if !note.Matured(p.now()) {
		return nil, nil, fmt.Errorf("%w: index=%d maturity=%s", ErrNotMatured, index, note.Maturity.Format(time.RFC3339))
	}

	amt0, amt1 := note.amount0().Clone(), note.amount1().Clone()
	if err := p.checkCovered(amt0, amt1); err != nil {
		return nil, nil, fmt.Errorf("%w: index=%d", err, index)
	}
	if err := p.pay(to, amt0, amt1); err != nil {
		return nil, nil, err
	}

	ledger[index] = Note{Amount0: new(uint256.Int), Amount1: new(uint256.Int), Maturity: note.Maturity}
	p.env.Emit("Withdraw", p.address, map[string]string{
		"owner":   caller.Hex(),
		"to":      to.Hex(),
		"index":   strconv.FormatUint(index, 10),
		"amount0": amt0.Dec(),
		"amount1": amt1.Dec(),
	})
	return amt0, amt1, nil
}

// AddLiquidity pulls both amounts from caller into the reserves.
func (p *Pool) AddLiquidity(caller chain.Address, amount0, amount1 *uint256.Int) error {
	next0, overflow0 := new(uint256.Int).AddOverflow(p.state.reserve0, amount0)
	next1, overflow1 := new(uint256.Int).AddOverflow(p.state.reserve1, amount1)
	if overflow0 || overflow1 {
		return fmt.Errorf("%w: add liquidity", ErrArithmeticOverflow)
	}
	if !amount0.IsZero() {
		if err := p.token0.TransferFrom(p.address, caller, p.address, amount0); err != nil {
			return err
		}
	}
	if !amount1.IsZero() {
		if err := p.token1.TransferFrom(p.address, caller, p.address, amount1); err != nil {
			return err
		}
	}
	p.state.reserve0, p.state.reserve1 = next0, next1
	p.env.Emit("LiquidityAdded", p.address, map[string]string{
		"caller":  caller.Hex(),
		"amount0": amount0.Dec(),
		"amount1": amount1.Dec(),
	})
	return nil
}

// RemoveLiquidity pays reserves out to to. Controller only.
func (p *Pool) RemoveLiquidity(caller, to chain.Address, amount0, amount1 *uint256.Int) error {
	if err := p.onlyController(caller); err != nil {
		return err
	}
	if chain.IsZero(to) {
		return ErrZeroAddress
	}
	if err := p.checkCovered(amount0, amount1); err != nil {
		return err
	}
	if err := p.pay(to, amount0, amount1); err != nil {
		return err
	}
	p.env.Emit("LiquidityRemoved", p.address, map[string]string{
		"caller":  caller.Hex(),
		"to":      to.Hex(),
		"amount0": amount0.Dec(),
		"amount1": amount1.Dec(),
	})
	return nil
}

func (p *Pool) checkCovered(amount0, amount1 *uint256.Int) error {
	if p.state.reserve0.Lt(amount0) {
		return fmt.Errorf("%w: reserve0=%s want=%s", ErrInsufficientLiquidity, p.state.reserve0.Dec(), amount0.Dec())
	}
	if p.state.reserve1.Lt(amount1) {
		return fmt.Errorf("%w: reserve1=%s want=%s", ErrInsufficientLiquidity, p.state.reserve1.Dec(), amount1.Dec())
	}
	if p.token0.BalanceOf(p.address).Lt(amount0) || p.token1.BalanceOf(p.address).Lt(amount1) {
		return fmt.Errorf("%w: pool balance below reserves", ErrInsufficientLiquidity)
	}
	return nil
}

// pay assumes checkCovered passed.
func (p *Pool) pay(to chain.Address, amount0, amount1 *uint256.Int) error {
	if !amount0.IsZero() {
		if err := p.token0.Transfer(p.address, to, amount0); err != nil {
			return err
		}
	}
	if !amount1.IsZero() {
		if err := p.token1.Transfer(p.address, to, amount1); err != nil {
			return err
		}
	}
	p.state.reserve0 = new(uint256.Int).Sub(p.state.reserve0, amount0)
	p.state.reserve1 = new(uint256.Int).Sub(p.state.reserve1, amount1)
	return nil
}

func (p *Pool) side(side int) (Asset, *uint256.Int) {
	if side == 0 {
		return p.token0, p.state.reserve0
	}
	return p.token1, p.state.reserve1
}

func (p *Pool) setReserve(side int, value *uint256.Int) {
	if side == 0 {
		p.state.reserve0 = value
	} else {
		p.state.reserve1 = value
	}
}
