package spiker

import (
	"errors"

	"github.com/danmuck/spikectl/internal/authority"
	"github.com/danmuck/spikectl/internal/pool"
	"github.com/danmuck/spikectl/internal/token"
)

var (
	ErrUnauthorized       = errors.New("spiker: unauthorized")
	ErrNoDeposits         = errors.New("spiker: no deposits")
	ErrNotController      = errors.New("spiker: not the pending controller")
	ErrInvalidRecipient   = errors.New("spiker: invalid recipient")
	ErrTotalMismatch      = errors.New("spiker: declared total does not match deposits")
	ErrArithmeticOverflow = errors.New("spiker: arithmetic overflow")
	ErrResidualAllowance  = errors.New("spiker: residual pool allowance")
	ErrRestoreFailed      = errors.New("spiker: state not restored")
	ErrAssetMismatch      = errors.New("spiker: assets do not match pool tokens")
)

// ErrorClass groups failures by how callers should react to them.
type ErrorClass string

const (
	ClassNone          ErrorClass = ""
	ClassAuthorization ErrorClass = "authorization"
	ClassPrecondition  ErrorClass = "precondition"
	ClassArithmetic    ErrorClass = "arithmetic"
	ClassResource      ErrorClass = "resource"
	ClassInternal      ErrorClass = "internal"
)

// Classify maps err onto the failure taxonomy.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrUnauthorized):
		return ClassAuthorization
	case errors.Is(err, ErrNoDeposits),
		errors.Is(err, ErrInvalidRecipient),
		errors.Is(err, ErrNotController),
		errors.Is(err, ErrTotalMismatch),
		errors.Is(err, authority.ErrNotPending),
		errors.Is(err, pool.ErrZeroAmount):
		return ClassPrecondition
	case IsArithmetic(err):
		return ClassArithmetic
	case errors.Is(err, pool.ErrInsufficientLiquidity),
		errors.Is(err, pool.ErrNotMatured),
		errors.Is(err, pool.ErrNoteCleared),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		return ClassResource
	default:
		return ClassInternal
	}
}

// IsArithmetic reports whether err is a checked-arithmetic failure from the
// spiker or any collaborator.
func IsArithmetic(err error) bool {
	return errors.Is(err, ErrArithmeticOverflow) ||
		errors.Is(err, pool.ErrArithmeticOverflow) ||
		errors.Is(err, token.ErrOverflow)
}
