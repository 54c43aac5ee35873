package application

import (
	"context"
	"fmt"

	"github.com/ark-network/swapd/internal/core/domain"
)

type swapType struct {
	alpha domain.AssetKind
	beta  domain.AssetKind
}

// supportedSwapTypes lists the (alpha, beta) asset pairs the daemon can
// swap. Each asset kind lives on exactly one ledger kind.
var supportedSwapTypes = map[swapType]struct{}{
	{domain.BitcoinAsset, domain.EtherAsset}: {},
	{domain.BitcoinAsset, domain.Erc20Asset}: {},
	{domain.EtherAsset, domain.BitcoinAsset}: {},
	{domain.Erc20Asset, domain.BitcoinAsset}: {},
}

// ledgerUpdate records on the swap what a watch observed on one side.
type ledgerUpdate func(swap *domain.Swap, side domain.Side) error

// htlcLedger is what the service needs from a ledger to drive one side of a
// swap: building actions and watching the HTLC lifecycle.
type htlcLedger interface {
	identity(seed domain.SwapSeed, refund bool) domain.Identity

	// fundAction returns the action moving the HTLC out of the given state
	// towards Funded, or nil if the ledger needs none.
	fundAction(params domain.HtlcParams, state domain.LedgerState) (*Action, error)
	redeemAction(
		params domain.HtlcParams, state domain.LedgerState,
		identities domain.DeriveIdentities, secret domain.Secret,
	) (*Action, error)
	refundAction(
		params domain.HtlcParams, state domain.LedgerState, identities domain.DeriveIdentities,
	) (*Action, error)

	watchDeployment(ctx context.Context, params domain.HtlcParams, start int64) (ledgerUpdate, error)
	watchFunding(
		ctx context.Context, params domain.HtlcParams, state domain.LedgerState, start int64,
	) (ledgerUpdate, error)
	watchRedeem(
		ctx context.Context, params domain.HtlcParams, state domain.LedgerState, start int64,
	) (ledgerUpdate, error)
	watchRefund(
		ctx context.Context, params domain.HtlcParams, state domain.LedgerState, start int64,
	) (ledgerUpdate, error)
}

func (s *service) checkSwapType(
	alphaLedger, betaLedger domain.Ledger, alphaAsset, betaAsset domain.Asset,
) error {
	if _, ok := supportedSwapTypes[swapType{alphaAsset.Kind, betaAsset.Kind}]; !ok {
		return fmt.Errorf("%w: %s for %s", ErrUnsupportedSwap, alphaAsset.Kind, betaAsset.Kind)
	}
	if alphaAsset.Ledger() != alphaLedger.Kind || betaAsset.Ledger() != betaLedger.Kind {
		return fmt.Errorf("%w: assets do not match ledgers", ErrUnsupportedSwap)
	}
	for _, ledger := range []domain.Ledger{alphaLedger, betaLedger} {
		if err := s.checkLedger(ledger); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) checkLedger(ledger domain.Ledger) error {
	switch ledger.Kind {
	case domain.BitcoinLedger:
		if ledger.Network != s.ledgers.BitcoinNetwork {
			return fmt.Errorf(
				"%w: bitcoin network %s, expected %s",
				ErrUnsupportedSwap, ledger.Network, s.ledgers.BitcoinNetwork,
			)
		}
	case domain.EthereumLedger:
		if ledger.ChainId != s.ledgers.EthereumChainId {
			return fmt.Errorf(
				"%w: ethereum chain id %d, expected %d",
				ErrUnsupportedSwap, ledger.ChainId, s.ledgers.EthereumChainId,
			)
		}
	default:
		return fmt.Errorf("%w: unknown ledger", ErrUnsupportedSwap)
	}
	return nil
}

func (s *service) htlcLedger(asset domain.Asset) (htlcLedger, error) {
	ledger, ok := s.htlcLedgers[asset.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSwap, asset.Kind)
	}
	return ledger, nil
}

// resolveIdentity returns the given identity if any, or the one derived from
// the swap seed. Bitcoin identities are always derived since the node signs
// the HTLC spends with them.
func resolveIdentity(
	ledger htlcLedger, kind domain.LedgerKind, seed domain.SwapSeed,
	refund bool, given domain.Identity,
) (domain.Identity, error) {
	if len(given) > 0 {
		if kind == domain.BitcoinLedger {
			return "", fmt.Errorf("bitcoin identities are derived from the swap seed")
		}
		return given, nil
	}
	return ledger.identity(seed, refund), nil
}
