package redisstatestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/ark-network/swapd/internal/core/ports"
	"github.com/redis/go-redis/v9"
)

const (
	entryPrefix = "swap:"
	idsKey      = "swaps"
)

type stateStore struct {
	rdb          *redis.Client
	numOfRetries int
}

func NewStateStore(rdb *redis.Client, numOfRetries int) ports.StateStore {
	if numOfRetries <= 0 {
		numOfRetries = 1
	}
	return &stateStore{rdb: rdb, numOfRetries: numOfRetries}
}

// NewStateStoreFromURL connects to the redis instance at the given url,
// e.g. redis://localhost:6379/0.
func NewStateStoreFromURL(url string, numOfRetries int) (ports.StateStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewStateStore(rdb, numOfRetries), nil
}

func (s *stateStore) Get(ctx context.Context, swapId string) (*ports.SwapEntry, error) {
	data, err := s.rdb.Get(ctx, key(swapId)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSwapNotFound, swapId)
		}
		return nil, err
	}
	return decode(data)
}

func (s *stateStore) Add(ctx context.Context, entry ports.SwapEntry) error {
	if entry.UpdatedAt == 0 {
		entry.UpdatedAt = time.Now().Unix()
	}
	val, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	ok, err := s.rdb.SetNX(ctx, key(entry.Swap.Id), val, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("swap %s already exists", entry.Swap.Id)
	}
	return s.rdb.SAdd(ctx, idsKey, entry.Swap.Id).Err()
}

func (s *stateStore) Update(
	ctx context.Context, swapId string,
	fn func(entry ports.SwapEntry) (ports.SwapEntry, error),
) (*ports.SwapEntry, error) {
	var updated *ports.SwapEntry
	for attempt := 0; attempt < s.numOfRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key(swapId)).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return fmt.Errorf("%w: %s", domain.ErrSwapNotFound, swapId)
				}
				return err
			}
			entry, err := decode(data)
			if err != nil {
				return err
			}

			next, err := fn(*entry)
			if err != nil {
				return err
			}
			if next.Swap.Id != swapId {
				return fmt.Errorf("cannot change id of swap %s", swapId)
			}
			next.UpdatedAt = time.Now().Unix()
			val, err := json.Marshal(next)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key(swapId), val, 0)
				return nil
			})
			if err != nil {
				return err
			}
			updated = &next
			return nil
		}, key(swapId))
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("update of swap %s failed after %d retries", swapId, s.numOfRetries)
}

func (s *stateStore) Delete(ctx context.Context, swapId string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key(swapId))
		pipe.SRem(ctx, idsKey, swapId)
		return nil
	})
	return err
}

func (s *stateStore) Ids(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, idsKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *stateStore) Close() {
	_ = s.rdb.Close()
}

func key(swapId string) string {
	return entryPrefix + swapId
}

func decode(data []byte) (*ports.SwapEntry, error) {
	var entry ports.SwapEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to deserialize swap entry: %w", err)
	}
	return &entry, nil
}
