package badgerdb

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const swapStoreDir = "swaps"

type swapRepository struct {
	store *badgerhold.Store
}

func NewSwapRepository(config ...interface{}) (domain.SwapRepository, error) {
	baseDir, logger, err := parseConfig(config)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, swapStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open swap store: %s", err)
	}

	return &swapRepository{store}, nil
}

func (r *swapRepository) AddOrUpdateSwap(
	ctx context.Context, swap domain.Swap,
) error {
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxUpsert(tx, swap.Id, swap)
	} else {
		err = r.store.Upsert(swap.Id, swap)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert swap %s: %s", swap.Id, err)
	}
	return nil
}

func (r *swapRepository) GetSwap(
	ctx context.Context, id string,
) (*domain.Swap, error) {
	query := badgerhold.Where("Id").Eq(id)
	swaps, err := r.findSwaps(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(swaps) <= 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrSwapNotFound, id)
	}
	swap := &swaps[0]
	return swap, nil
}

func (r *swapRepository) GetActiveSwaps(
	ctx context.Context,
) ([]domain.Swap, error) {
	query := badgerhold.Where("Communication.Status").
		In(domain.Proposed, domain.Accepted).SortBy("StartingTimestamp")
	swaps, err := r.findSwaps(ctx, query)
	if err != nil {
		return nil, err
	}

	active := make([]domain.Swap, 0, len(swaps))
	for _, swap := range swaps {
		if !swap.IsFinal() {
			active = append(active, swap)
		}
	}
	return active, nil
}

func (r *swapRepository) GetSwapIds(ctx context.Context) ([]string, error) {
	swaps, err := r.findSwaps(ctx, nil)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(swaps, func(i, j int) bool {
		return swaps[i].StartingTimestamp < swaps[j].StartingTimestamp
	})
	ids := make([]string, 0, len(swaps))
	for _, swap := range swaps {
		ids = append(ids, swap.Id)
	}
	return ids, nil
}

func (r *swapRepository) Close() {
	r.store.Close()
}

func (r *swapRepository) findSwaps(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Swap, error) {
	var swaps []domain.Swap
	var err error

	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxFind(tx, &swaps, query)
	} else {
		err = r.store.Find(&swaps, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find swaps: %s", err)
	}

	return swaps, nil
}
