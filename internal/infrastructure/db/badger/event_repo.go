package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const eventStoreDir = "swap-events"

// swapEventDTO is one event of a swap. Events are stored under
// <swap id>/<version> so that a version can only be written once.
type swapEventDTO struct {
	SwapId  string `badgerhold:"index"`
	Version uint
	Data    []byte
}

type eventRepository struct {
	store *badgerhold.Store

	saveLock sync.Mutex

	handlerLock sync.Mutex
	handler     func(swap *domain.Swap)

	queueLock sync.Mutex
	queue     []*domain.Swap
	chNotify  chan struct{}

	done chan struct{}
	wg   sync.WaitGroup
}

func NewSwapEventRepository(config ...interface{}) (domain.SwapEventRepository, error) {
	baseDir, logger, err := parseConfig(config)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, eventStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open swap events store: %s", err)
	}
	repo := &eventRepository{
		store:    store,
		chNotify: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	repo.wg.Add(1)
	go repo.dispatch()
	return repo, nil
}

// Save appends the events to the history of the swap and returns the swap
// rebuilt from the whole history. The projection handler is notified
// asynchronously, in the order swaps were saved.
func (r *eventRepository) Save(
	ctx context.Context, id string, events ...domain.Event,
) (*domain.Swap, error) {
	if len(events) <= 0 {
		return nil, fmt.Errorf("no events to save for swap %s", id)
	}

	r.saveLock.Lock()
	defer r.saveLock.Unlock()

	history, err := r.history(ctx, id)
	if err != nil {
		return nil, err
	}

	dtos := make([]swapEventDTO, 0, len(events))
	for i, event := range events {
		if event.GetSwapId() != id {
			return nil, fmt.Errorf("event of swap %s cannot be saved in swap %s", event.GetSwapId(), id)
		}
		buf, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event of swap %s: %s", id, err)
		}
		dtos = append(dtos, swapEventDTO{
			SwapId:  id,
			Version: uint(len(history) + i + 1),
			Data:    buf,
		})
	}

	if err := r.insert(ctx, dtos); err != nil {
		return nil, err
	}

	swap := domain.NewSwapFromEvents(append(history, events...))
	r.enqueue(swap)
	return swap, nil
}

func (r *eventRepository) Load(
	ctx context.Context, id string,
) (*domain.Swap, error) {
	events, err := r.history(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(events) <= 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrSwapNotFound, id)
	}
	return domain.NewSwapFromEvents(events), nil
}

func (r *eventRepository) RegisterEventsHandler(
	handler func(swap *domain.Swap),
) {
	r.handlerLock.Lock()
	defer r.handlerLock.Unlock()

	r.handler = handler
}

func (r *eventRepository) Close() {
	close(r.done)
	r.wg.Wait()
	r.store.Close()
}

// history returns the events of the swap ordered by version.
func (r *eventRepository) history(
	ctx context.Context, id string,
) ([]domain.Event, error) {
	query := badgerhold.Where("SwapId").Eq(id).Index("SwapId").SortBy("Version")

	var dtos []swapEventDTO
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxFind(tx, &dtos, query)
	} else {
		err = r.store.Find(&dtos, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get events of swap %s: %s", id, err)
	}

	events := make([]domain.Event, 0, len(dtos))
	for i, dto := range dtos {
		if dto.Version != uint(i+1) {
			return nil, fmt.Errorf("swap %s: missing event version %d", id, i+1)
		}
		event, err := deserializeEvent(dto.Data)
		if err != nil {
			return nil, fmt.Errorf("swap %s: invalid event version %d: %s", id, dto.Version, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (r *eventRepository) insert(ctx context.Context, dtos []swapEventDTO) error {
	insertAll := func(tx *badger.Txn) error {
		for _, dto := range dtos {
			if err := r.store.TxInsert(tx, eventKey(dto.SwapId, dto.Version), dto); err != nil {
				if errors.Is(err, badgerhold.ErrKeyExists) {
					return fmt.Errorf(
						"event version %d of swap %s already written", dto.Version, dto.SwapId,
					)
				}
				return err
			}
		}
		return nil
	}

	if ctx.Value("tx") != nil {
		return insertAll(ctx.Value("tx").(*badger.Txn))
	}
	if err := r.store.Badger().Update(insertAll); err != nil {
		return fmt.Errorf("failed to save events: %s", err)
	}
	return nil
}

func (r *eventRepository) enqueue(swap *domain.Swap) {
	r.queueLock.Lock()
	r.queue = append(r.queue, swap)
	r.queueLock.Unlock()

	select {
	case r.chNotify <- struct{}{}:
	default:
	}
}

func (r *eventRepository) dispatch() {
	defer r.wg.Done()

	for {
		select {
		case <-r.done:
			return
		case <-r.chNotify:
		}

		r.queueLock.Lock()
		swaps := r.queue
		r.queue = nil
		r.queueLock.Unlock()

		for _, swap := range swaps {
			r.runHandler(swap)
		}
	}
}

func (r *eventRepository) runHandler(swap *domain.Swap) {
	r.handlerLock.Lock()
	defer r.handlerLock.Unlock()

	if r.handler == nil {
		return
	}
	r.handler(swap)
}

func eventKey(id string, version uint) string {
	return fmt.Sprintf("%s/%010d", id, version)
}
