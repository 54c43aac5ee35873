package domain

const SwapTopic = "swap"

type EventType int

const (
	EventTypeUndefined EventType = iota
	EventTypeSwapProposed
	EventTypeSwapAccepted
	EventTypeSwapDeclined
)

const (
	EventTypeHtlcDeployed EventType = iota + 100
	EventTypeHtlcFunded
	EventTypeHtlcRedeemed
	EventTypeHtlcRefunded
)

type Event interface {
	GetTopic() string
	GetType() EventType
	GetSwapId() string
}

type SwapEvent struct {
	Id   string
	Type EventType
}

func (e SwapEvent) GetTopic() string   { return SwapTopic }
func (e SwapEvent) GetType() EventType { return e.Type }
func (e SwapEvent) GetSwapId() string  { return e.Id }

type SwapProposed struct {
	SwapEvent
	Role      Role
	Request   Request
	Timestamp int64
}

type SwapAccepted struct {
	SwapEvent
	Accept    Accept
	Timestamp int64
}

type SwapDeclined struct {
	SwapEvent
	Decline   Decline
	Timestamp int64
}

type HtlcDeployed struct {
	SwapEvent
	Side        Side
	Location    HtlcLocation
	Transaction Transaction
}

// HtlcFunded carries the observed amount, whether it matches the expected
// asset is decided when the event is applied.
type HtlcFunded struct {
	SwapEvent
	Side        Side
	Transaction Transaction
	Asset       Asset
}

type HtlcRedeemed struct {
	SwapEvent
	Side        Side
	Transaction Transaction
	Secret      Secret
}

type HtlcRefunded struct {
	SwapEvent
	Side        Side
	Transaction Transaction
}
