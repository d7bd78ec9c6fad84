package pool

import (
	"time"

	"github.com/holiman/uint256"
)

// Note is one locked deposit in an owner's ledger. A note is live while
// either amount is nonzero and cleared once both are zero. Clearing keeps
// the maturity as a dead value.
type Note struct {
	Amount0  *uint256.Int
	Amount1  *uint256.Int
	Maturity time.Time
}

func (n Note) Live() bool {
	return !n.amount0().IsZero() || !n.amount1().IsZero()
}

func (n Note) Cleared() bool {
	return !n.Live()
}

// Clone returns a note that shares no memory with n.
func (n Note) Clone() Note {
	return Note{
		Amount0:  n.amount0().Clone(),
		Amount1:  n.amount1().Clone(),
		Maturity: n.Maturity,
	}
}

// Equal reports whether both notes hold identical amounts and maturity.
func (n Note) Equal(other Note) bool {
	return n.amount0().Eq(other.amount0()) &&
		n.amount1().Eq(other.amount1()) &&
		n.Maturity.Equal(other.Maturity)
}

// Matured reports whether the note may be withdrawn at now.
func (n Note) Matured(now time.Time) bool {
	return !now.Before(n.Maturity)
}

func (n Note) amount0() *uint256.Int {
	if n.Amount0 == nil {
		return new(uint256.Int)
	}
	return n.Amount0
}

func (n Note) amount1() *uint256.Int {
	if n.Amount1 == nil {
		return new(uint256.Int)
	}
	return n.Amount1
}
