package spiker

import (
	"github.com/danmuck/spikectl/internal/chain"
	"github.com/danmuck/spikectl/internal/pool"
	"github.com/holiman/uint256"
)

//go:generate mockgen -destination "mock_pool_test.go" -package $GOPACKAGE -write_package_comment=false github.com/danmuck/spikectl/internal/spiker Pool

// Registry is the two-phase controller handoff the spiker borrows from.
type Registry interface {
	Address() chain.Address
	Controller() chain.Address
	PendingController() chain.Address
	SetController(caller, pending chain.Address) error
	BecomeController(caller chain.Address) error
}

// Pool is the resource pool surface the spiker drives.
type Pool interface {
	Address() chain.Address
	Token0() chain.Address
	Token1() chain.Address
	Basis() *uint256.Int
	SetBasis(caller chain.Address, basis *uint256.Int) error
	Deposit0(caller, owner chain.Address, amount, minOut *uint256.Int, lockSeconds uint64) (uint64, error)
	Deposit1(caller, owner chain.Address, amount, minOut *uint256.Int, lockSeconds uint64) (uint64, error)
	Withdraw(caller chain.Address, index uint64, to chain.Address) (*uint256.Int, *uint256.Int, error)
	NoteCount(owner chain.Address) uint64
	Notes(owner chain.Address, index uint64) (pool.Note, error)
}

// Asset is the token surface used to fund batches and forward proceeds.
type Asset interface {
	Address() chain.Address
	Transfer(caller, to chain.Address, amount *uint256.Int) error
	TransferFrom(caller, from, to chain.Address, amount *uint256.Int) error
	Approve(caller, spender chain.Address, amount *uint256.Int) error
	Allowance(owner, spender chain.Address) *uint256.Int
}

// Recorder receives call outcomes for metrics.
type Recorder interface {
	ObserveSpike(outcome string, notes int)
	ObserveSettlement(cleared, failed, skipped, unattempted int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSpike(string, int)             {}
func (nopRecorder) ObserveSettlement(int, int, int, int) {}
