package ports

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Connectors are read-only views over a chain. A block or receipt that does
// not exist is reported with watcher.ErrNotFound, any other error is a
// transport failure.

type BitcoinConnector interface {
	LatestBlock(ctx context.Context) (*wire.MsgBlock, error)
	BlockByHash(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error)
}

type EthereumConnector interface {
	LatestBlock(ctx context.Context) (*types.Block, error)
	BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error)
	ReceiptByHash(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}
