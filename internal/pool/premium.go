package pool

import (
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// BasisScale is the denominator of basis: 10_000 means 100% per year.
	BasisScale = 10_000
	// SecondsPerYear is the premium accrual period.
	SecondsPerYear = 365 * 24 * 60 * 60
)

var premiumDenominator = new(uint256.Int).Mul(uint256.NewInt(BasisScale), uint256.NewInt(SecondsPerYear))

// Premium returns amount * basis * lockSeconds / (BasisScale * SecondsPerYear).
// Every multiplication is checked: an intermediate product beyond 256 bits
// fails with ErrArithmeticOverflow instead of wrapping.
func Premium(amount, basis *uint256.Int, lockSeconds uint64) (*uint256.Int, error) {
	scaled, overflow := new(uint256.Int).MulOverflow(amount, basis)
	if overflow {
		return nil, fmt.Errorf("%w: amount=%s basis=%s", ErrArithmeticOverflow, amount.Dec(), basis.Dec())
	}
	scaled, overflow = new(uint256.Int).MulOverflow(scaled, uint256.NewInt(lockSeconds))
	if overflow {
		return nil, fmt.Errorf("%w: amount=%s basis=%s lock=%ds", ErrArithmeticOverflow, amount.Dec(), basis.Dec(), lockSeconds)
	}
	return scaled.Div(scaled, premiumDenominator), nil
}

// Credited returns the note amount for a deposit: amount plus its premium.
func Credited(amount, basis *uint256.Int, lockSeconds uint64) (*uint256.Int, error) {
	premium, err := Premium(amount, basis, lockSeconds)
	if err != nil {
		return nil, err
	}
	credited, overflow := new(uint256.Int).AddOverflow(amount, premium)
	if overflow {
		return nil, fmt.Errorf("%w: amount=%s premium=%s", ErrArithmeticOverflow, amount.Dec(), premium.Dec())
	}
	return credited, nil
}
