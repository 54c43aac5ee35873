package application

import (
	"context"
	"sync"
)

// watchesMap keeps the cancel func of the watches of every swap being
// followed on chain.
type watchesMap struct {
	lock    *sync.RWMutex
	watches map[string]context.CancelFunc
}

func newWatchesMap() *watchesMap {
	return &watchesMap{&sync.RWMutex{}, make(map[string]context.CancelFunc)}
}

// push returns a context for the watches of the given swap, or false if the
// swap is already watched.
func (m *watchesMap) push(parent context.Context, swapId string) (context.Context, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.watches[swapId]; ok {
		return nil, false
	}

	ctx, cancel := context.WithCancel(parent)
	m.watches[swapId] = cancel
	return ctx, true
}

func (m *watchesMap) pop(swapId string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if cancel, ok := m.watches[swapId]; ok {
		cancel()
		delete(m.watches, swapId)
	}
}

func (m *watchesMap) popAll() {
	m.lock.Lock()
	defer m.lock.Unlock()

	for id, cancel := range m.watches {
		cancel()
		delete(m.watches, id)
	}
}
