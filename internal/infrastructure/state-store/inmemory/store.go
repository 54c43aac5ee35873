package inmemorystatestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/ark-network/swapd/internal/core/ports"
)

type stateStore struct {
	lock    sync.RWMutex
	entries map[string]ports.SwapEntry
}

func NewStateStore() ports.StateStore {
	return &stateStore{
		entries: make(map[string]ports.SwapEntry),
	}
}

func (s *stateStore) Get(_ context.Context, swapId string) (*ports.SwapEntry, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	entry, ok := s.entries[swapId]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSwapNotFound, swapId)
	}
	entry.Swap = *entry.Swap.Clone()
	return &entry, nil
}

func (s *stateStore) Add(_ context.Context, entry ports.SwapEntry) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.entries[entry.Swap.Id]; ok {
		return fmt.Errorf("swap %s already exists", entry.Swap.Id)
	}
	if entry.UpdatedAt == 0 {
		entry.UpdatedAt = time.Now().Unix()
	}
	s.entries[entry.Swap.Id] = entry
	return nil
}

func (s *stateStore) Update(
	_ context.Context, swapId string,
	fn func(entry ports.SwapEntry) (ports.SwapEntry, error),
) (*ports.SwapEntry, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	entry, ok := s.entries[swapId]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSwapNotFound, swapId)
	}
	entry.Swap = *entry.Swap.Clone()
	updated, err := fn(entry)
	if err != nil {
		return nil, err
	}
	if updated.Swap.Id != swapId {
		return nil, fmt.Errorf("cannot change id of swap %s", swapId)
	}
	updated.UpdatedAt = time.Now().Unix()
	s.entries[swapId] = updated

	result := updated
	result.Swap = *updated.Swap.Clone()
	return &result, nil
}

func (s *stateStore) Delete(_ context.Context, swapId string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.entries, swapId)
	return nil
}

func (s *stateStore) Ids(_ context.Context) ([]string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *stateStore) Close() {}
