package swapvault

import (
	"time"

	"github.com/danmuck/spikectl/internal/chain"
	"github.com/danmuck/spikectl/internal/token"
	"github.com/holiman/uint256"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog/log"
)

// reentrantAsset calls back into the vault while moving funds.
type reentrantAsset struct {
	*token.Token
	vault *Vault
	err   error
}

func (a *reentrantAsset) TransferFrom(caller, from, to chain.Address, amount *uint256.Int) error {
	if _, err := a.vault.Swap(from, amount); err != nil {
		a.err = err
		return err
	}
	return a.Token.TransferFrom(caller, from, to, amount)
}

var _ = Describe("Vault", func() {
	var (
		clock    *chain.ManualClock
		env      *chain.Env
		oldTok   *token.Token
		newTok   *token.Token
		vault    *Vault
		owner    = chain.AccountAddress("vault.owner")
		holder   = chain.AccountAddress("vault.holder")
		treasury = chain.AccountAddress("vault.treasury")
		start    = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	)

	newVault := func(label string, old Asset) *Vault {
		v, err := New(env, Config{
			Address:         chain.AccountAddress(label),
			Owner:           owner,
			OldAsset:        old,
			NewAsset:        newTok,
			RateNumerator:   uint256.NewInt(3),
			RateDenominator: uint256.NewInt(2),
			Start:           start,
			End:             start.Add(7 * 24 * time.Hour),
			Logger:          log.Logger,
		})
		Expect(err).NotTo(HaveOccurred())
		return v
	}

	BeforeEach(func() {
		clock = chain.NewManualClock(start.Add(-time.Hour))
		env = chain.NewEnv(clock, log.Logger)
		var err error
		oldTok, err = token.New(env, chain.AccountAddress("old"), "OLD", 18)
		Expect(err).NotTo(HaveOccurred())
		newTok, err = token.New(env, chain.AccountAddress("new"), "NEW", 18)
		Expect(err).NotTo(HaveOccurred())
		vault = newVault("vault", oldTok)

		Expect(oldTok.Mint(holder, uint256.NewInt(1_000))).To(Succeed())
		Expect(newTok.Mint(vault.Address(), uint256.NewInt(600))).To(Succeed())
		Expect(oldTok.Approve(holder, vault.Address(), uint256.NewInt(1_000))).To(Succeed())
	})

	Describe("construction", func() {
		It("rejects a zero denominator", func() {
			_, err := New(env, Config{
				Address: chain.AccountAddress("v2"), Owner: owner,
				OldAsset: oldTok, NewAsset: newTok,
				RateNumerator: uint256.NewInt(1), RateDenominator: new(uint256.Int),
				Start: start, End: start,
			})
			Expect(err).To(MatchError(ErrInvalidConfig))
		})

		It("rejects an end before the start", func() {
			_, err := New(env, Config{
				Address: chain.AccountAddress("v2"), Owner: owner,
				OldAsset: oldTok, NewAsset: newTok,
				RateNumerator: uint256.NewInt(1), RateDenominator: uint256.NewInt(1),
				Start: start, End: start.Add(-time.Second),
			})
			Expect(err).To(MatchError(ErrInvalidConfig))
		})
	})

	Describe("Swap", func() {
		It("refuses before the window opens", func() {
			_, err := vault.Swap(holder, uint256.NewInt(10))
			Expect(err).To(MatchError(ErrSwapClosed))
		})

		It("credits the floored rate inside the window", func() {
			clock.Set(start)
			out, err := vault.Swap(holder, uint256.NewInt(101))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Uint64()).To(Equal(uint64(151)))
			Expect(newTok.BalanceOf(holder).Uint64()).To(Equal(uint64(151)))
			Expect(oldTok.BalanceOf(vault.Address()).Uint64()).To(Equal(uint64(101)))
		})

		It("accepts a swap exactly at the end", func() {
			clock.Set(vault.End())
			_, err := vault.Swap(holder, uint256.NewInt(2))
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects zero amounts and amounts that quote to nothing", func() {
			clock.Set(start)
			_, err := vault.Swap(holder, new(uint256.Int))
			Expect(err).To(MatchError(ErrZeroAmount))

			third, err := New(env, Config{
				Address: chain.AccountAddress("vault.third"), Owner: owner,
				OldAsset: oldTok, NewAsset: newTok,
				RateNumerator: uint256.NewInt(1), RateDenominator: uint256.NewInt(3),
				Start: start, End: vault.End(),
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = third.Swap(holder, uint256.NewInt(2))
			Expect(err).To(MatchError(ErrZeroAmount))
		})

		It("refuses when the vault cannot pay", func() {
			clock.Set(start)
			_, err := vault.Swap(holder, uint256.NewInt(500))
			Expect(err).To(MatchError(ErrInsufficientFunds))
			Expect(oldTok.BalanceOf(holder).Uint64()).To(Equal(uint64(1_000)))
			Expect(newTok.BalanceOf(vault.Address()).Uint64()).To(Equal(uint64(600)))
		})

		It("rejects reentry from the asset", func() {
			clock.Set(start)
			asset := &reentrantAsset{Token: oldTok}
			guarded := newVault("vault.guarded", asset)
			asset.vault = guarded
			Expect(newTok.Mint(guarded.Address(), uint256.NewInt(100))).To(Succeed())
			Expect(oldTok.Approve(holder, guarded.Address(), uint256.NewInt(100))).To(Succeed())

			_, err := guarded.Swap(holder, uint256.NewInt(10))
			Expect(err).To(MatchError(ErrReentrant))
			Expect(asset.err).To(MatchError(ErrReentrant))
			Expect(newTok.BalanceOf(holder).IsZero()).To(BeTrue())
		})
	})

	Describe("withdrawals", func() {
		BeforeEach(func() {
			clock.Set(start)
			_, err := vault.Swap(holder, uint256.NewInt(100))
			Expect(err).NotTo(HaveOccurred())
		})

		It("are owner only", func() {
			clock.Set(vault.End().Add(time.Second))
			_, err := vault.WithdrawOld(holder, holder)
			Expect(err).To(MatchError(ErrUnauthorized))
		})

		It("wait for the window to end", func() {
			clock.Set(vault.End())
			_, err := vault.WithdrawNew(owner, treasury)
			Expect(err).To(MatchError(ErrNotEnded))
		})

		It("sweep both sides after the end", func() {
			clock.Set(vault.End().Add(time.Second))
			old, err := vault.WithdrawOld(owner, treasury)
			Expect(err).NotTo(HaveOccurred())
			Expect(old.Uint64()).To(Equal(uint64(100)))
			fresh, err := vault.WithdrawNew(owner, treasury)
			Expect(err).NotTo(HaveOccurred())
			Expect(fresh.Uint64()).To(Equal(uint64(450)))
			Expect(oldTok.BalanceOf(vault.Address()).IsZero()).To(BeTrue())
			Expect(newTok.BalanceOf(treasury).Uint64()).To(Equal(uint64(450)))

			again, err := vault.WithdrawOld(owner, treasury)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.IsZero()).To(BeTrue())
		})
	})
})
