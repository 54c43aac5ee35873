package application_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ark-network/swapd/internal/ledger/bitcoin"
	"github.com/ark-network/swapd/internal/ledger/ethereum"
	"github.com/ark-network/swapd/internal/ledger/watcher"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// Blocks are timestamped in the future so that every watch started during a
// test rescans the whole chain but the genesis block.
const blockTime = 10

type bitcoinChain struct {
	lock   sync.Mutex
	blocks map[chainhash.Hash]*wire.MsgBlock
	tip    chainhash.Hash
	now    int64
}

func newBitcoinChain() *bitcoinChain {
	c := &bitcoinChain{
		blocks: make(map[chainhash.Hash]*wire.MsgBlock),
		now:    time.Now().Add(-time.Hour).Unix(),
	}
	c.mine()
	c.now = time.Now().Unix()
	return c
}

func (c *bitcoinChain) mine(txs ...*wire.MsgTx) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.now += blockTime
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   2,
			PrevBlock: c.tip,
			Timestamp: time.Unix(c.now, 0),
		},
	}
	coinbase := wire.NewMsgTx(2)
	coinbase.AddTxIn(wire.NewTxIn(
		&wire.OutPoint{Index: wire.MaxPrevOutIndex}, big.NewInt(c.now).Bytes(), nil,
	))
	block.AddTransaction(coinbase)
	for _, tx := range txs {
		block.AddTransaction(tx)
	}
	c.tip = block.BlockHash()
	c.blocks[c.tip] = block
}

func (c *bitcoinChain) LatestBlock(_ context.Context) (*wire.MsgBlock, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.blocks[c.tip], nil
}

func (c *bitcoinChain) BlockByHash(_ context.Context, hash chainhash.Hash) (*wire.MsgBlock, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	block, ok := c.blocks[hash]
	if !ok {
		return nil, watcher.ErrNotFound
	}
	return block, nil
}

// pay mines a transaction paying sats to the given address.
func (c *bitcoinChain) pay(t *testing.T, to string, sats int64) {
	addr, err := btcutil.DecodeAddress(to, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.Hash{0x01}}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{txscript.OP_TRUE}))
	tx.AddTxOut(wire.NewTxOut(sats, pkScript))
	c.mine(tx)
}

// spend mines the transaction spending the given HTLC output.
func (c *bitcoinChain) spend(t *testing.T, output *bitcoin.SpendOutput) {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		make([]byte, 20), &chaincfg.RegressionNetParams,
	)
	require.NoError(t, err)
	tx, err := output.SignedTransaction(addr, 1000)
	require.NoError(t, err)
	c.mine(tx)
}

type ethereumChain struct {
	lock     sync.Mutex
	blocks   map[common.Hash]*types.Block
	receipts map[common.Hash]*types.Receipt
	tip      common.Hash
	height   int64
	now      uint64
	nonce    uint64
}

func newEthereumChain() *ethereumChain {
	c := &ethereumChain{
		blocks:   make(map[common.Hash]*types.Block),
		receipts: make(map[common.Hash]*types.Receipt),
		now:      uint64(time.Now().Add(-time.Hour).Unix()),
	}
	c.mine(nil, nil)
	c.now = uint64(time.Now().Unix())
	return c
}

func (c *ethereumChain) mine(tx *types.Transaction, receipt *types.Receipt) {
	c.lock.Lock()
	defer c.lock.Unlock()

	transactions := make([]*types.Transaction, 0, 1)
	receipts := make(types.Receipts, 0, 1)
	if tx != nil {
		transactions = append(transactions, tx)
		receipt.TxHash = tx.Hash()
		receipts = append(receipts, receipt)
		c.receipts[tx.Hash()] = receipt
	}

	c.now += blockTime
	header := &types.Header{
		ParentHash: c.tip,
		Number:     big.NewInt(c.height),
		Time:       c.now,
		Bloom:      types.CreateBloom(receipts),
	}
	c.height++
	block := types.NewBlockWithHeader(header).WithBody(transactions, nil)
	c.tip = block.Hash()
	c.blocks[c.tip] = block
}

func (c *ethereumChain) LatestBlock(_ context.Context) (*types.Block, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.blocks[c.tip], nil
}

func (c *ethereumChain) BlockByHash(_ context.Context, hash common.Hash) (*types.Block, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	block, ok := c.blocks[hash]
	if !ok {
		return nil, watcher.ErrNotFound
	}
	return block, nil
}

func (c *ethereumChain) ReceiptByHash(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	receipt, ok := c.receipts[hash]
	if !ok {
		return nil, watcher.ErrNotFound
	}
	return receipt, nil
}

func (c *ethereumChain) nextNonce() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.nonce++
	return c.nonce
}

// deploy mines the contract creation and returns the address of the contract.
func (c *ethereumChain) deploy(action *ethereum.DeployContract) common.Address {
	nonce := c.nextNonce()
	contract := common.BigToAddress(new(big.Int).SetUint64(0xc0000 + nonce))
	tx := types.NewContractCreation(
		nonce, action.Amount.Big(), action.GasLimit, big.NewInt(1), action.Data,
	)
	c.mine(tx, &types.Receipt{
		Status:          types.ReceiptStatusSuccessful,
		ContractAddress: contract,
	})
	return contract
}

// call mines the contract call, the receipt carrying the given logs emitted
// by the called contract.
func (c *ethereumChain) call(action *ethereum.CallContract, topic common.Hash, data []byte) {
	tx := types.NewTransaction(
		c.nextNonce(), action.To, big.NewInt(0), action.GasLimit, big.NewInt(1), action.Data,
	)
	c.mine(tx, &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{{
			Address: action.To,
			Topics:  []common.Hash{topic},
			Data:    data,
		}},
	})
}

// transfer mines the token transfer, the receipt carrying the Transfer log
// emitted by the token contract.
func (c *ethereumChain) transfer(action *ethereum.CallContract, to common.Address, amount *big.Int) {
	tx := types.NewTransaction(
		c.nextNonce(), action.To, big.NewInt(0), action.GasLimit, big.NewInt(1), action.Data,
	)
	c.mine(tx, &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{{
			Address: action.To,
			Topics: []common.Hash{
				ethereum.TransferTopic, {}, common.BytesToHash(to.Bytes()),
			},
			Data: common.LeftPadBytes(amount.Bytes(), 32),
		}},
	})
}
