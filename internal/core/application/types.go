package application

import (
	"context"
	"errors"
	"time"

	"github.com/ark-network/swapd/internal/core/domain"
)

var (
	ErrUnsupportedSwap = errors.New("unsupported swap type")
	ErrSwapExists      = errors.New("swap already exists")
)

type Service interface {
	Start() error
	Stop()
	Propose(ctx context.Context, req ProposeRequest) (string, error)
	ReceiveProposal(ctx context.Context, req domain.Request) (string, error)
	Accept(ctx context.Context, swapId string, req AcceptRequest) (*domain.Accept, error)
	Decline(ctx context.Context, swapId string, decline domain.Decline) error
	CurrentState(ctx context.Context, swapId string) (*SwapState, error)
	// NextAction returns nil when there is nothing to broadcast.
	NextAction(ctx context.Context, swapId string) (*Action, error)
	GetActionsChannel() <-chan SwapAction
}

// ProposeRequest describes the swap Alice wants to make. The identities are
// derived from the swap seed unless given, which is only allowed for
// ethereum ledgers.
type ProposeRequest struct {
	AlphaLedger               domain.Ledger
	BetaLedger                domain.Ledger
	AlphaAsset                domain.Asset
	BetaAsset                 domain.Asset
	AlphaExpiry               domain.Timestamp
	BetaExpiry                domain.Timestamp
	AlphaLedgerRefundIdentity domain.Identity
	BetaLedgerRedeemIdentity  domain.Identity
}

// AcceptRequest carries Bob's identities. On Bob's node they are optional
// like in ProposeRequest, on Alice's node they are Bob's response and are
// required.
type AcceptRequest struct {
	AlphaLedgerRedeemIdentity domain.Identity
	BetaLedgerRefundIdentity  domain.Identity
}

type SwapState struct {
	SwapId            string
	Role              domain.Role
	StartingTimestamp int64
	Communication     domain.SwapCommunication
	AlphaLedgerState  domain.LedgerState
	BetaLedgerState   domain.LedgerState
	Stalled           bool
	StallReason       string
}

const (
	ActionUndefined ActionType = iota
	ActionFund
	ActionDeploy
	ActionRedeem
	ActionRefund
)

type ActionType int

func (t ActionType) String() string {
	switch t {
	case ActionFund:
		return "fund"
	case ActionDeploy:
		return "deploy"
	case ActionRedeem:
		return "redeem"
	case ActionRefund:
		return "refund"
	default:
		return "undefined"
	}
}

// Action is the next transaction the local node has to broadcast.
type Action struct {
	Type   ActionType
	Side   domain.Side
	Ledger domain.Ledger
	// Payload is one of *bitcoin.SendToAddress, *bitcoin.SpendOutput,
	// *ethereum.DeployContract or *ethereum.CallContract.
	Payload interface{}
}

type SwapAction struct {
	SwapId string
	Action Action
}

type WatchConfig struct {
	PollInterval    time.Duration
	SeenBlocksLimit int
	// RetryTimeout bounds the time spent retrying a failing connector before
	// the swap is marked as stalled.
	RetryTimeout time.Duration
}

// LedgersConfig restricts the swaps to the chains the connectors point at.
type LedgersConfig struct {
	BitcoinNetwork  string
	EthereumChainId uint64
}
