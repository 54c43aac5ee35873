package application

import (
	"time"

	"github.com/ark-network/swapd/internal/core/domain"
)

// nextAction derives what the local node has to broadcast given the swap
// state and the current time. Alice funds alpha and redeems beta, Bob funds
// beta and redeems alpha. Redeeming takes precedence over refunding, which
// takes precedence over funding. An incorrectly funded HTLC is never
// redeemed, only refunded once expired.
func (s *service) nextAction(swap *domain.Swap, now time.Time) (*Action, error) {
	if !swap.Communication.IsAccepted() {
		return nil, nil
	}

	fundSide, redeemSide := domain.Alpha, domain.Beta
	if swap.Role == domain.Bob {
		fundSide, redeemSide = domain.Beta, domain.Alpha
	}
	funded := swap.LedgerState(fundSide)
	toRedeem := swap.LedgerState(redeemSide)
	seed := s.rootSeed.SwapSeed(swap.Id)

	if secret, ok := s.redeemSecret(swap, seed); ok && toRedeem.IsFunded() &&
		!swap.ExpiryHasPassed(redeemSide, now) {
		return s.sideAction(swap, redeemSide, func(ledger htlcLedger, params domain.HtlcParams) (*Action, error) {
			return ledger.redeemAction(params, toRedeem, seed, secret)
		})
	}

	if funded.IsSpendable() && swap.ExpiryHasPassed(fundSide, now) {
		return s.sideAction(swap, fundSide, func(ledger htlcLedger, params domain.HtlcParams) (*Action, error) {
			return ledger.refundAction(params, funded, seed)
		})
	}

	// Bob only locks his asset once Alice's is correctly locked, and nobody
	// funds once beta expired.
	if swap.Role == domain.Bob && !swap.AlphaLedgerState.IsFunded() {
		return nil, nil
	}
	if swap.ExpiryHasPassed(domain.Beta, now) {
		return nil, nil
	}
	return s.sideAction(swap, fundSide, func(ledger htlcLedger, params domain.HtlcParams) (*Action, error) {
		return ledger.fundAction(params, funded)
	})
}

// redeemSecret returns the secret the local node can redeem with: Alice
// knows it from the seed once her own HTLC has been funded, even if Bob
// already redeemed it, Bob learns it when Alice redeems beta.
func (s *service) redeemSecret(swap *domain.Swap, seed domain.SwapSeed) (domain.Secret, bool) {
	if swap.Role == domain.Alice {
		if !swap.AlphaLedgerState.HasBeenFunded() {
			return domain.Secret{}, false
		}
		return seed.DeriveSecret(), true
	}
	if swap.BetaLedgerState.Secret.IsZero() {
		return domain.Secret{}, false
	}
	return swap.BetaLedgerState.Secret, true
}

func (s *service) sideAction(
	swap *domain.Swap, side domain.Side,
	build func(ledger htlcLedger, params domain.HtlcParams) (*Action, error),
) (*Action, error) {
	params, err := swap.HtlcParams(side)
	if err != nil {
		return nil, err
	}
	ledger, err := s.htlcLedger(params.Asset)
	if err != nil {
		return nil, err
	}
	action, err := build(ledger, params)
	if err != nil || action == nil {
		return nil, err
	}
	action.Side = side
	return action, nil
}
