package ethrpcconnector_test

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	ethrpcconnector "github.com/ark-network/swapd/internal/infrastructure/connector/ethrpc"
	"github.com/ark-network/swapd/internal/ledger/watcher"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

// ethService serves the few eth_ methods the connector uses.
type ethService struct {
	header  *types.Header
	receipt *types.Receipt
}

func (s *ethService) block() (map[string]interface{}, error) {
	buf, err := json.Marshal(s.header)
	if err != nil {
		return nil, err
	}
	block := make(map[string]interface{})
	if err := json.Unmarshal(buf, &block); err != nil {
		return nil, err
	}
	block["transactions"] = []interface{}{}
	block["uncles"] = []interface{}{}
	return block, nil
}

func (s *ethService) GetBlockByNumber(_ context.Context, number string, _ bool) (map[string]interface{}, error) {
	if number != "latest" {
		return nil, nil
	}
	return s.block()
}

func (s *ethService) GetBlockByHash(_ context.Context, hash common.Hash, _ bool) (map[string]interface{}, error) {
	if hash != s.header.Hash() {
		return nil, nil
	}
	return s.block()
}

func (s *ethService) GetTransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	if hash != s.receipt.TxHash {
		return nil, nil
	}
	return s.receipt, nil
}

func TestConnector(t *testing.T) {
	header := &types.Header{
		ParentHash:  common.Hash{0x01},
		UncleHash:   types.EmptyUncleHash,
		Root:        types.EmptyRootHash,
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		Difficulty:  big.NewInt(0),
		Number:      big.NewInt(42),
		GasLimit:    30000000,
		Time:        1700000000,
	}
	receipt := &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 21000,
		Logs:              []*types.Log{},
		TxHash:            common.Hash{0x0a},
		ContractAddress:   common.HexToAddress("0x00000000000000000000000000000000000000c1"),
		GasUsed:           21000,
		BlockHash:         header.Hash(),
		BlockNumber:       big.NewInt(42),
	}

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", &ethService{header, receipt}))
	defer server.Stop()

	connector := ethrpcconnector.NewConnectorFromClient(rpc.DialInProc(server))
	ctx := context.Background()

	t.Run("latest block", func(t *testing.T) {
		block, err := connector.LatestBlock(ctx)
		require.NoError(t, err)
		require.Equal(t, header.Hash(), block.Hash())
		require.Equal(t, header.ParentHash, block.ParentHash())
		require.Equal(t, header.Time, block.Time())
	})

	t.Run("block by hash", func(t *testing.T) {
		block, err := connector.BlockByHash(ctx, header.Hash())
		require.NoError(t, err)
		require.Equal(t, uint64(42), block.NumberU64())

		_, err = connector.BlockByHash(ctx, common.Hash{0x02})
		require.ErrorIs(t, err, watcher.ErrNotFound)
	})

	t.Run("receipt", func(t *testing.T) {
		got, err := connector.ReceiptByHash(ctx, receipt.TxHash)
		require.NoError(t, err)
		require.Equal(t, receipt.ContractAddress, got.ContractAddress)
		require.Equal(t, receipt.Status, got.Status)

		_, err = connector.ReceiptByHash(ctx, common.Hash{0x0b})
		require.ErrorIs(t, err, watcher.ErrNotFound)
	})
}
