package bitcoin

import (
	"context"
	"errors"

	"github.com/ark-network/swapd/internal/ledger/watcher"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
)

type Block struct {
	*wire.MsgBlock
}

func (b Block) Hash() chainhash.Hash       { return b.BlockHash() }
func (b Block) ParentHash() chainhash.Hash { return b.Header.PrevBlock }
func (b Block) Timestamp() int64           { return b.Header.Timestamp.Unix() }

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

func (s blockSource) BlockByHash(ctx context.Context, hash chainhash.Hash) (Block, error) {
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
) *watcher.Walker[chainhash.Hash, Block] {
	return watcher.NewWalker[chainhash.Hash, Block](blockSource{connector}, startOfSwap, cfg)
}

// MatchingTransaction walks the chain until a transaction matching pattern
// shows up in a block. Connector failures are returned as is, inconsistent
// chain data wraps watcher.ErrInternal.
func MatchingTransaction(
	ctx context.Context, connector Connector, pattern *TransactionPattern,
	startOfSwap int64, cfg watcher.Config,
) (*wire.MsgTx, error) {
	if pattern == nil {
		return nil, errors.New("missing transaction pattern")
	}
	walker := NewWalker(connector, startOfSwap, cfg)
	return watcher.FirstMatch(ctx, walker, func(_ context.Context, block Block) (*wire.MsgTx, bool, error) {
		for _, tx := range block.Transactions {
			if pattern.Matches(tx) {
				log.Debugf("bitcoin: transaction %s in block %s matches", tx.TxHash(), block.Hash())
				return tx, true, nil
			}
		}
		return nil, false, nil
	})
}
