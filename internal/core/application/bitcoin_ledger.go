package application

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/ark-network/swapd/internal/ledger/bitcoin"
	"github.com/ark-network/swapd/internal/ledger/watcher"
	"github.com/btcsuite/btcd/wire"
)

type bitcoinLedger struct {
	connector bitcoin.Connector
	cfg       watcher.Config
}

func (l *bitcoinLedger) identity(seed domain.SwapSeed, refund bool) domain.Identity {
	if refund {
		return bitcoin.Identity(seed.DeriveRefundIdentity())
	}
	return bitcoin.Identity(seed.DeriveRedeemIdentity())
}

func (l *bitcoinLedger) fundAction(
	params domain.HtlcParams, state domain.LedgerState,
) (*Action, error) {
	if !state.IsNotDeployed() {
		return nil, nil
	}
	tx, err := bitcoin.FundAction(params)
	if err != nil {
		return nil, err
	}
	return &Action{Type: ActionFund, Ledger: params.Ledger, Payload: tx}, nil
}

func (l *bitcoinLedger) redeemAction(
	params domain.HtlcParams, state domain.LedgerState,
	identities domain.DeriveIdentities, secret domain.Secret,
) (*Action, error) {
	tx, err := bitcoin.RedeemAction(params, state.Location, identities, secret)
	if err != nil {
		return nil, err
	}
	return &Action{Type: ActionRedeem, Ledger: params.Ledger, Payload: tx}, nil
}

func (l *bitcoinLedger) refundAction(
	params domain.HtlcParams, state domain.LedgerState, identities domain.DeriveIdentities,
) (*Action, error) {
	fundTx, err := decodeBitcoinTx(state.FundTransaction)
	if err != nil {
		return nil, err
	}
	tx, err := bitcoin.RefundAction(params, state.Location, identities, fundTx)
	if err != nil {
		return nil, err
	}
	return &Action{Type: ActionRefund, Ledger: params.Ledger, Payload: tx}, nil
}

// watchDeployment on bitcoin also observes the funding: the HTLC output is
// created and funded by the same transaction.
func (l *bitcoinLedger) watchDeployment(
	ctx context.Context, params domain.HtlcParams, start int64,
) (ledgerUpdate, error) {
	pattern, err := bitcoin.FundPattern(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}
	tx, err := bitcoin.MatchingTransaction(ctx, l.connector, pattern, start, l.cfg)
	if err != nil {
		return nil, err
	}
	location, asset, err := bitcoin.FundedOutput(tx, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}
	transaction, err := encodeBitcoinTx(tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}

	return func(swap *domain.Swap, side domain.Side) error {
		if _, err := swap.Deploy(side, location, transaction); err != nil {
			return err
		}
		_, err := swap.Fund(side, transaction, asset)
		return err
	}, nil
}

func (l *bitcoinLedger) watchFunding(
	context.Context, domain.HtlcParams, domain.LedgerState, int64,
) (ledgerUpdate, error) {
	return nil, fmt.Errorf("%w: bitcoin htlc deployed without funding", watcher.ErrInternal)
}

func (l *bitcoinLedger) watchRedeem(
	ctx context.Context, params domain.HtlcParams, state domain.LedgerState, start int64,
) (ledgerUpdate, error) {
	pattern, err := bitcoin.RedeemPattern(state.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}
	tx, err := bitcoin.MatchingTransaction(ctx, l.connector, pattern, start, l.cfg)
	if err != nil {
		return nil, err
	}
	secret, err := bitcoin.ExtractSecret(tx, state.Location, params.SecretHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}
	transaction := domain.Transaction{Id: tx.TxHash().String()}

	return func(swap *domain.Swap, side domain.Side) error {
		_, err := swap.Redeem(side, transaction, secret)
		return err
	}, nil
}

func (l *bitcoinLedger) watchRefund(
	ctx context.Context, _ domain.HtlcParams, state domain.LedgerState, start int64,
) (ledgerUpdate, error) {
	pattern, err := bitcoin.RefundPattern(state.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}
	tx, err := bitcoin.MatchingTransaction(ctx, l.connector, pattern, start, l.cfg)
	if err != nil {
		return nil, err
	}
	transaction := domain.Transaction{Id: tx.TxHash().String()}

	return func(swap *domain.Swap, side domain.Side) error {
		_, err := swap.Refund(side, transaction)
		return err
	}, nil
}

func encodeBitcoinTx(tx *wire.MsgTx) (domain.Transaction, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return domain.Transaction{}, err
	}
	return domain.Transaction{
		Id:  tx.TxHash().String(),
		Raw: hex.EncodeToString(buf.Bytes()),
	}, nil
}

func decodeBitcoinTx(transaction domain.Transaction) (*wire.MsgTx, error) {
	buf, err := hex.DecodeString(transaction.Raw)
	if err != nil || len(buf) <= 0 {
		return nil, fmt.Errorf("missing raw fund transaction %s", transaction.Id)
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(buf)); err != nil {
		return nil, fmt.Errorf("invalid raw fund transaction %s: %s", transaction.Id, err)
	}
	return tx, nil
}
