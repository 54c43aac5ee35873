// Package watcher walks a chain from its tip and hands out every block that
// may contain a transaction relevant to a swap, exactly once, tolerating
// reorgs.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval = 1 * time.Second
	DefaultSeenLimit    = 10000
)

var (
	// ErrNotFound is returned by a Source when the requested block does not
	// exist.
	ErrNotFound = errors.New("not found")
	// ErrInternal marks failures that retrying won't fix, like a block the
	// connector announced but cannot return.
	ErrInternal = errors.New("internal error")
)

type Block[H comparable] interface {
	Hash() H
	ParentHash() H
	Timestamp() int64
}

type Source[H comparable, B Block[H]] interface {
	LatestBlock(ctx context.Context) (B, error)
	BlockByHash(ctx context.Context, hash H) (B, error)
}

type Config struct {
	PollInterval time.Duration
	SeenLimit    int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.SeenLimit <= 0 {
		c.SeenLimit = DefaultSeenLimit
	}
	return c
}

// Walker is an iterator over the blocks of a chain. The first poll backfills
// from the tip down to the first block predating the start of the swap, every
// later poll backfills down to the first already seen block. Backfilled
// blocks are handed out ancestors first, the tip last.
type Walker[H comparable, B Block[H]] struct {
	source      Source[H, B]
	startOfSwap int64
	cfg         Config

	seen    *seenSet[H]
	pending []B
	polled  bool
}

// NewWalker returns a walker over source. startOfSwap is a unix timestamp,
// zero means only blocks mined from now on are relevant.
func NewWalker[H comparable, B Block[H]](
	source Source[H, B], startOfSwap int64, cfg Config,
) *Walker[H, B] {
	cfg = cfg.withDefaults()
	return &Walker[H, B]{
		source:      source,
		startOfSwap: startOfSwap,
		cfg:         cfg,
		seen:        newSeenSet[H](cfg.SeenLimit),
	}
}

// Next blocks until a new block is available or ctx is done.
func (w *Walker[H, B]) Next(ctx context.Context) (B, error) {
	var zero B
	for {
		if len(w.pending) > 0 {
			block := w.pending[0]
			w.pending = w.pending[1:]
			return block, nil
		}

		if err := w.poll(ctx); err != nil {
			return zero, err
		}
		if len(w.pending) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

func (w *Walker[H, B]) poll(ctx context.Context) error {
	head, err := w.source.LatestBlock(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: connector returned no latest block", ErrInternal)
		}
		return err
	}
	if w.seen.has(head.Hash()) {
		return nil
	}

	blocks := []B{head}
	firstPoll := !w.polled
	w.polled = true

	backfill := !firstPoll && !w.seen.has(head.ParentHash())
	if firstPoll && w.startOfSwap > 0 && head.Timestamp() > w.startOfSwap {
		backfill = true
	}

	if backfill {
		var zero H
		hash := head.ParentHash()
		for hash != zero {
			block, err := w.source.BlockByHash(ctx, hash)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return fmt.Errorf("%w: could not fetch block %v", ErrInternal, hash)
				}
				return err
			}
			if w.seen.has(block.Hash()) {
				break
			}
			blocks = append(blocks, block)
			if w.predatesStart(block) {
				break
			}
			hash = block.ParentHash()
		}
	}

	// Walked tip first, emitted ancestors first.
	for i := len(blocks) - 1; i >= 0; i-- {
		w.seen.add(blocks[i].Hash())
		w.pending = append(w.pending, blocks[i])
	}
	log.Debugf("watcher: %d new block(s) up to %v", len(blocks), head.Hash())
	return nil
}

func (w *Walker[H, B]) predatesStart(block B) bool {
	return block.Timestamp() < w.startOfSwap
}

// seenSet remembers the last limit hashes, evicting the oldest first.
type seenSet[H comparable] struct {
	limit int
	set   map[H]struct{}
	order []H
}

func newSeenSet[H comparable](limit int) *seenSet[H] {
	return &seenSet[H]{
		limit: limit,
		set:   make(map[H]struct{}, limit),
		order: make([]H, 0, limit),
	}
}

func (s *seenSet[H]) has(hash H) bool {
	_, ok := s.set[hash]
	return ok
}

func (s *seenSet[H]) add(hash H) {
	if s.has(hash) {
		return
	}
	if len(s.order) >= s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.set, oldest)
	}
	s.set[hash] = struct{}{}
	s.order = append(s.order, hash)
}

// MatchFunc inspects a block and reports the first relevant item it holds.
type MatchFunc[H comparable, B Block[H], M any] func(ctx context.Context, block B) (M, bool, error)

// FirstMatch walks the chain until match reports a hit.
func FirstMatch[H comparable, B Block[H], M any](
	ctx context.Context, walker *Walker[H, B], match MatchFunc[H, B, M],
) (M, error) {
	var zero M
	for {
		block, err := walker.Next(ctx)
		if err != nil {
			return zero, err
		}
		found, ok, err := match(ctx, block)
		if err != nil {
			return zero, err
		}
		if ok {
			return found, nil
		}
	}
}
