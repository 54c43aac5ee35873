package domain

import "context"

type SwapEventRepository interface {
	Save(ctx context.Context, id string, events ...Event) (*Swap, error)
	Load(ctx context.Context, id string) (*Swap, error)
	RegisterEventsHandler(func(swap *Swap))
	Close()
}

type SwapRepository interface {
	AddOrUpdateSwap(ctx context.Context, swap Swap) error
	GetSwap(ctx context.Context, id string) (*Swap, error)
	// GetActiveSwaps returns the accepted or proposed swaps that are not final.
	GetActiveSwaps(ctx context.Context) ([]Swap, error)
	GetSwapIds(ctx context.Context) ([]string, error)
	Close()
}
