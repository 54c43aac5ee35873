package watcher_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ark-network/swapd/internal/ledger/watcher"
	"github.com/stretchr/testify/require"
)

type block struct {
	hash      string
	parent    string
	timestamp int64
	txs       []string
}

func (b *block) Hash() string       { return b.hash }
func (b *block) ParentHash() string { return b.parent }
func (b *block) Timestamp() int64   { return b.timestamp }

type chain struct {
	lock   sync.Mutex
	blocks map[string]*block
	tip    string
	// failures makes LatestBlock fail that many times.
	failures int
}

func newChain() *chain {
	return &chain{blocks: make(map[string]*block)}
}

func (c *chain) mine(hash, parent string, timestamp int64, txs ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.blocks[hash] = &block{hash, parent, timestamp, txs}
	c.tip = hash
}

func (c *chain) LatestBlock(_ context.Context) (*block, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.failures > 0 {
		c.failures--
		return nil, fmt.Errorf("connection refused")
	}
	b, ok := c.blocks[c.tip]
	if !ok {
		return nil, watcher.ErrNotFound
	}
	return b, nil
}

func (c *chain) BlockByHash(_ context.Context, hash string) (*block, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	b, ok := c.blocks[hash]
	if !ok {
		return nil, watcher.ErrNotFound
	}
	return b, nil
}

var cfg = watcher.Config{PollInterval: time.Millisecond}

func next(t *testing.T, w *watcher.Walker[string, *block]) string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b, err := w.Next(ctx)
	require.NoError(t, err)
	return b.Hash()
}

func nextNone(t *testing.T, w *watcher.Walker[string, *block]) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := w.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// fiveBlocks mines b0..b4 one second apart starting at 100.
func fiveBlocks() *chain {
	c := newChain()
	c.mine("b0", "", 100)
	for i := 1; i < 5; i++ {
		c.mine(fmt.Sprintf("b%d", i), fmt.Sprintf("b%d", i-1), int64(100+i))
	}
	return c
}

func TestWalker(t *testing.T) {
	t.Run("backfill to start of swap", func(t *testing.T) {
		c := fiveBlocks()
		w := watcher.NewWalker[string, *block](c, 102, cfg)

		// b1 is the first block predating the start, b0 is never visited.
		for _, expected := range []string{"b1", "b2", "b3", "b4"} {
			require.Equal(t, expected, next(t, w))
		}
		nextNone(t, w)
	})

	t.Run("no start of swap", func(t *testing.T) {
		c := fiveBlocks()
		w := watcher.NewWalker[string, *block](c, 0, cfg)

		require.Equal(t, "b4", next(t, w))
		nextNone(t, w)

		c.mine("b5", "b4", 105)
		require.Equal(t, "b5", next(t, w))
	})

	t.Run("gap is backfilled", func(t *testing.T) {
		c := fiveBlocks()
		w := watcher.NewWalker[string, *block](c, 0, cfg)
		require.Equal(t, "b4", next(t, w))

		c.mine("b5", "b4", 105)
		c.mine("b6", "b5", 106)
		c.mine("b7", "b6", 107)
		for _, expected := range []string{"b5", "b6", "b7"} {
			require.Equal(t, expected, next(t, w))
		}
	})

	t.Run("reorg", func(t *testing.T) {
		c := fiveBlocks()
		w := watcher.NewWalker[string, *block](c, 101, cfg)
		for _, expected := range []string{"b0", "b1", "b2", "b3", "b4"} {
			require.Equal(t, expected, next(t, w))
		}

		// Fork at height 3: b3' replaces b3 on top of b2.
		c.mine("b3'", "b2", 103)
		c.mine("b4'", "b3'", 104)
		c.mine("b5'", "b4'", 105)
		for _, expected := range []string{"b3'", "b4'", "b5'"} {
			require.Equal(t, expected, next(t, w))
		}
		nextNone(t, w)
	})

	t.Run("seen blocks are bounded", func(t *testing.T) {
		c := fiveBlocks()
		w := watcher.NewWalker[string, *block](
			c, 101, watcher.Config{PollInterval: time.Millisecond, SeenLimit: 2},
		)
		for _, expected := range []string{"b0", "b1", "b2", "b3", "b4"} {
			require.Equal(t, expected, next(t, w))
		}

		// Only b3 and b4 are remembered, so the walk goes back to b0 (the
		// first block predating the start of the swap) instead of stopping at b2.
		c.mine("b3'", "b2", 103)
		c.mine("b4'", "b3'", 104)
		for _, expected := range []string{"b0", "b1", "b2", "b3'", "b4'"} {
			require.Equal(t, expected, next(t, w))
		}
	})

	t.Run("errors", func(t *testing.T) {
		c := fiveBlocks()
		c.failures = 1
		w := watcher.NewWalker[string, *block](c, 0, cfg)
		_, err := w.Next(context.Background())
		require.EqualError(t, err, "connection refused")
		require.False(t, errors.Is(err, watcher.ErrInternal))
		require.Equal(t, "b4", next(t, w))

		c = newChain()
		w = watcher.NewWalker[string, *block](c, 0, cfg)
		_, err = w.Next(context.Background())
		require.ErrorIs(t, err, watcher.ErrInternal)

		c = newChain()
		c.mine("b1", "b0", 101)
		w = watcher.NewWalker[string, *block](c, 100, cfg)
		_, err = w.Next(context.Background())
		require.ErrorIs(t, err, watcher.ErrInternal)
	})
}

func TestFirstMatch(t *testing.T) {
	match := func(txid string) watcher.MatchFunc[string, *block, string] {
		return func(_ context.Context, b *block) (string, bool, error) {
			for _, tx := range b.txs {
				if tx == txid {
					return b.hash, true, nil
				}
			}
			return "", false, nil
		}
	}

	t.Run("idempotent", func(t *testing.T) {
		c := newChain()
		c.mine("b0", "", 100)
		c.mine("b1", "b0", 101, "fund")
		c.mine("b2", "b1", 102)

		for i := 0; i < 2; i++ {
			w := watcher.NewWalker[string, *block](c, 101, cfg)
			found, err := watcher.FirstMatch(context.Background(), w, match("fund"))
			require.NoError(t, err)
			require.Equal(t, "b1", found)
		}
	})

	t.Run("match on new fork", func(t *testing.T) {
		c := fiveBlocks()
		w := watcher.NewWalker[string, *block](c, 101, cfg)
		for i := 0; i < 5; i++ {
			next(t, w)
		}

		c.mine("b3'", "b2", 103)
		c.mine("b4'", "b3'", 104, "fund")
		c.mine("b5'", "b4'", 105)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		found, err := watcher.FirstMatch(ctx, w, match("fund"))
		require.NoError(t, err)
		require.Equal(t, "b4'", found)
	})

	t.Run("cancelled", func(t *testing.T) {
		c := fiveBlocks()
		w := watcher.NewWalker[string, *block](c, 0, cfg)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := watcher.FirstMatch(ctx, w, match("never"))
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
