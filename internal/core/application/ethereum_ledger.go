package application

import (
	"context"
	"fmt"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/ark-network/swapd/internal/ledger/ethereum"
	"github.com/ark-network/swapd/internal/ledger/watcher"
)

// ethereumLedger serves both ether and erc20 HTLCs.
type ethereumLedger struct {
	connector ethereum.Connector
	cfg       watcher.Config
}

func (l *ethereumLedger) identity(seed domain.SwapSeed, refund bool) domain.Identity {
	if refund {
		return ethereum.Identity(seed.DeriveRefundIdentity())
	}
	return ethereum.Identity(seed.DeriveRedeemIdentity())
}

func (l *ethereumLedger) fundAction(
	params domain.HtlcParams, state domain.LedgerState,
) (*Action, error) {
	switch {
	case state.IsNotDeployed():
		tx, err := ethereum.DeployAction(params)
		if err != nil {
			return nil, err
		}
		return &Action{Type: ActionDeploy, Ledger: params.Ledger, Payload: tx}, nil
	case state.IsDeployed() && params.Asset.Kind == domain.Erc20Asset:
		tx, err := ethereum.Erc20FundAction(params, state.Location)
		if err != nil {
			return nil, err
		}
		return &Action{Type: ActionFund, Ledger: params.Ledger, Payload: tx}, nil
	default:
		return nil, nil
	}
}

func (l *ethereumLedger) redeemAction(
	params domain.HtlcParams, state domain.LedgerState,
	_ domain.DeriveIdentities, secret domain.Secret,
) (*Action, error) {
	tx, err := ethereum.RedeemAction(params, state.Location, secret)
	if err != nil {
		return nil, err
	}
	return &Action{Type: ActionRedeem, Ledger: params.Ledger, Payload: tx}, nil
}

func (l *ethereumLedger) refundAction(
	params domain.HtlcParams, state domain.LedgerState, _ domain.DeriveIdentities,
) (*Action, error) {
	tx, err := ethereum.RefundAction(params, state.Location)
	if err != nil {
		return nil, err
	}
	return &Action{Type: ActionRefund, Ledger: params.Ledger, Payload: tx}, nil
}

// watchDeployment observes the contract creation. An ether HTLC is funded
// by the value of the deploy transaction, an erc20 one needs a transfer.
func (l *ethereumLedger) watchDeployment(
	ctx context.Context, params domain.HtlcParams, start int64,
) (ledgerUpdate, error) {
	pattern, err := ethereum.DeployPattern(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}
	match, err := ethereum.MatchingTransaction(ctx, l.connector, pattern, start, l.cfg)
	if err != nil {
		return nil, err
	}
	location, asset, err := ethereum.DeployedContract(match.Transaction, match.Receipt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}
	transaction := domain.Transaction{Id: match.Transaction.Hash().Hex()}
	isErc20 := params.Asset.Kind == domain.Erc20Asset

	return func(swap *domain.Swap, side domain.Side) error {
		if _, err := swap.Deploy(side, location, transaction); err != nil {
			return err
		}
		if isErc20 {
			return nil
		}
		_, err := swap.Fund(side, transaction, asset)
		return err
	}, nil
}

func (l *ethereumLedger) watchFunding(
	ctx context.Context, params domain.HtlcParams, state domain.LedgerState, start int64,
) (ledgerUpdate, error) {
	pattern, err := ethereum.Erc20FundPattern(params, state.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}
	match, err := ethereum.MatchingTransaction(ctx, l.connector, pattern, start, l.cfg)
	if err != nil {
		return nil, err
	}
	asset, err := ethereum.TransferredAmount(match.Receipt, params.Asset.Token, state.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}
	transaction := domain.Transaction{Id: match.Transaction.Hash().Hex()}

	return func(swap *domain.Swap, side domain.Side) error {
		_, err := swap.Fund(side, transaction, asset)
		return err
	}, nil
}

func (l *ethereumLedger) watchRedeem(
	ctx context.Context, params domain.HtlcParams, state domain.LedgerState, start int64,
) (ledgerUpdate, error) {
	pattern, err := ethereum.RedeemPattern(state.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}
	match, err := ethereum.MatchingTransaction(ctx, l.connector, pattern, start, l.cfg)
	if err != nil {
		return nil, err
	}
	secret, err := ethereum.ExtractSecret(match.Receipt, state.Location, params.SecretHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}
	transaction := domain.Transaction{Id: match.Transaction.Hash().Hex()}

	return func(swap *domain.Swap, side domain.Side) error {
		_, err := swap.Redeem(side, transaction, secret)
		return err
	}, nil
}

func (l *ethereumLedger) watchRefund(
	ctx context.Context, _ domain.HtlcParams, state domain.LedgerState, start int64,
) (ledgerUpdate, error) {
	pattern, err := ethereum.RefundPattern(state.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}
	match, err := ethereum.MatchingTransaction(ctx, l.connector, pattern, start, l.cfg)
	if err != nil {
		return nil, err
	}
	transaction := domain.Transaction{Id: match.Transaction.Hash().Hex()}

	return func(swap *domain.Swap, side domain.Side) error {
		_, err := swap.Refund(side, transaction)
		return err
	}, nil
}
