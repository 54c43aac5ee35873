package ports

import "github.com/ark-network/swapd/internal/core/domain"

type RepoManager interface {
	Events() domain.SwapEventRepository
	Swaps() domain.SwapRepository
	Close()
}
