package ethereum

import (
	"context"
	"errors"
	"fmt"

	"github.com/ark-network/swapd/internal/ledger/watcher"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	log "github.com/sirupsen/logrus"
)

// Connector is the read-only view over an ethereum node the watcher needs.
type Connector interface {
	LatestBlock(ctx context.Context) (*types.Block, error)
	BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error)
	ReceiptByHash(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Block struct {
	*types.Block
}

func (b Block) Timestamp() int64 { return int64(b.Time()) }

type TransactionAndReceipt struct {
	Transaction *types.Transaction
	Receipt     *types.Receipt
}

type blockSource struct {
	connector Connector
}

func (s blockSource) LatestBlock(ctx context.Context) (Block, error) {
	block, err := s.connector.LatestBlock(ctx)
	if err != nil {
		return Block{}, err
	}
	if block == nil {
		return Block{}, watcher.ErrNotFound
	}
	return Block{block}, nil
}

func (s blockSource) BlockByHash(ctx context.Context, hash common.Hash) (Block, error) {
	block, err := s.connector.BlockByHash(ctx, hash)
	if err != nil {
		return Block{}, err
	}
	if block == nil {
		return Block{}, watcher.ErrNotFound
	}
	return Block{block}, nil
}

func NewWalker(
	connector Connector, startOfSwap int64, cfg watcher.Config,
) *watcher.Walker[common.Hash, Block] {
	return watcher.NewWalker[common.Hash, Block](blockSource{connector}, startOfSwap, cfg)
}

// MatchingTransaction walks the chain until a successful transaction
// matching pattern shows up, and returns it with its receipt. Receipts are
// only fetched for blocks whose bloom filter contains the expected events, or
// for a matching transaction.
func MatchingTransaction(
	ctx context.Context, connector Connector, pattern *TransactionPattern,
	startOfSwap int64, cfg watcher.Config,
) (*TransactionAndReceipt, error) {
	if pattern == nil {
		return nil, errors.New("missing transaction pattern")
	}
	walker := NewWalker(connector, startOfSwap, cfg)
	return watcher.FirstMatch(ctx, walker, func(ctx context.Context, block Block) (*TransactionAndReceipt, bool, error) {
		return checkBlock(ctx, connector, block, pattern)
	})
}

func checkBlock(
	ctx context.Context, connector Connector, block Block, pattern *TransactionPattern,
) (*TransactionAndReceipt, bool, error) {
	needsReceipts := pattern.NeedsReceipts(block.Block)
	log.Debugf(
		"ethereum: bloom filter of block %s suggests receipts needed: %t",
		block.Hash(), needsReceipts,
	)

	for _, tx := range block.Transactions() {
		var receipt *types.Receipt
		if needsReceipts {
			r, err := receiptByHash(ctx, connector, tx.Hash())
			if err != nil {
				return nil, false, err
			}
			receipt = r
		}

		if !pattern.Matches(tx, receipt) {
			continue
		}

		if receipt == nil {
			r, err := receiptByHash(ctx, connector, tx.Hash())
			if err != nil {
				return nil, false, err
			}
			receipt = r
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			log.Debugf("ethereum: skipping failed transaction %s", tx.Hash())
			continue
		}

		log.Debugf("ethereum: transaction %s in block %s matches", tx.Hash(), block.Hash())
		return &TransactionAndReceipt{tx, receipt}, true, nil
	}
	return nil, false, nil
}

func receiptByHash(ctx context.Context, connector Connector, hash common.Hash) (*types.Receipt, error) {
	receipt, err := connector.ReceiptByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, watcher.ErrNotFound) {
			return nil, fmt.Errorf("%w: could not get receipt for transaction %s", watcher.ErrInternal, hash)
		}
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("%w: could not get receipt for transaction %s", watcher.ErrInternal, hash)
	}
	return receipt, nil
}
