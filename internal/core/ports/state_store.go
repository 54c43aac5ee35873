package ports

import (
	"context"

	"github.com/ark-network/swapd/internal/core/domain"
)

// SwapEntry is the live state of one swap: the aggregate replayed from its
// events plus the health of its watches.
type SwapEntry struct {
	Swap        domain.Swap `json:"swap"`
	Stalled     bool        `json:"stalled"`
	StallReason string      `json:"stall_reason,omitempty"`
	UpdatedAt   int64       `json:"updated_at"`
}

// StateStore owns one entry per swap id. Entries are always replaced
// wholesale, Update serializes concurrent writers of the same entry.
type StateStore interface {
	Get(ctx context.Context, swapId string) (*SwapEntry, error)
	Add(ctx context.Context, entry SwapEntry) error
	Update(
		ctx context.Context, swapId string, fn func(entry SwapEntry) (SwapEntry, error),
	) (*SwapEntry, error)
	Delete(ctx context.Context, swapId string) error
	Ids(ctx context.Context) ([]string, error)
	Close()
}
