package ethrpcconnector

import (
	"context"
	"errors"
	"fmt"

	"github.com/ark-network/swapd/internal/core/ports"
	"github.com/ark-network/swapd/internal/ledger/watcher"
	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

type connector struct {
	client *ethclient.Client
}

func NewConnector(ctx context.Context, url string) (ports.EthereumConnector, error) {
	if len(url) <= 0 {
		return nil, fmt.Errorf("missing ethereum url")
	}
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum node: %s", err)
	}
	return &connector{client}, nil
}

// NewConnectorFromClient wraps an already established rpc client.
func NewConnectorFromClient(client *rpc.Client) ports.EthereumConnector {
	return &connector{ethclient.NewClient(client)}
}

func (c *connector) LatestBlock(ctx context.Context) (*types.Block, error) {
	block, err := c.client.BlockByNumber(ctx, nil)
	if err != nil {
		return nil, notFound(err, "latest block")
	}
	return block, nil
}

func (c *connector) BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error) {
	block, err := c.client.BlockByHash(ctx, hash)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("block %s", hash))
	}
	return block, nil
}

func (c *connector) ReceiptByHash(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := c.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("receipt of %s", txHash))
	}
	return receipt, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, goethereum.NotFound) {
		return fmt.Errorf("%s: %w", what, watcher.ErrNotFound)
	}
	return err
}
