package domain

import (
	"fmt"
	"time"
)

const (
	Alpha Side = iota
	Beta
)

// Side selects one of the two ledgers of a swap.
type Side int

func (s Side) String() string {
	if s == Beta {
		return "beta"
	}
	return "alpha"
}

func (s Side) Other() Side {
	if s == Alpha {
		return Beta
	}
	return Alpha
}

// Swap is the state of one swap as seen by the local node: the negotiation
// and the two HTLC lifecycles. It only changes by applying events.
type Swap struct {
	Id                string
	Role              Role
	StartingTimestamp int64
	Communication     SwapCommunication
	AlphaLedgerState  LedgerState
	BetaLedgerState   LedgerState
	Version           uint
	changes           []Event
}

// NewSwap proposes a new swap with the given role.
func NewSwap(role Role, request Request) (*Swap, error) {
	if role != Alice && role != Bob {
		return nil, fmt.Errorf("invalid role")
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}

	s := &Swap{changes: make([]Event, 0)}
	event := SwapProposed{
		SwapEvent: SwapEvent{Id: request.SwapId, Type: EventTypeSwapProposed},
		Role:      role,
		Request:   request,
		Timestamp: time.Now().Unix(),
	}
	if err := s.raise(event); err != nil {
		return nil, err
	}
	return s, nil
}

func NewSwapFromEvents(events []Event) *Swap {
	s := &Swap{}

	for _, event := range events {
		s.on(event, true)
	}

	s.changes = append([]Event{}, events...)

	return s
}

func (s *Swap) Accept(accept Accept) (Event, error) {
	if !s.Communication.IsProposed() {
		return nil, fmt.Errorf("not in a valid stage to accept swap")
	}
	if err := accept.Validate(); err != nil {
		return nil, err
	}
	accept.SwapId = s.Id

	event := SwapAccepted{
		SwapEvent: SwapEvent{Id: s.Id, Type: EventTypeSwapAccepted},
		Accept:    accept,
		Timestamp: time.Now().Unix(),
	}
	if err := s.raise(event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Swap) Decline(decline Decline) (Event, error) {
	if !s.Communication.IsProposed() {
		return nil, fmt.Errorf("not in a valid stage to decline swap")
	}
	decline.SwapId = s.Id

	event := SwapDeclined{
		SwapEvent: SwapEvent{Id: s.Id, Type: EventTypeSwapDeclined},
		Decline:   decline,
		Timestamp: time.Now().Unix(),
	}
	if err := s.raise(event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Swap) Deploy(side Side, location HtlcLocation, tx Transaction) (Event, error) {
	event := HtlcDeployed{
		SwapEvent:   SwapEvent{Id: s.Id, Type: EventTypeHtlcDeployed},
		Side:        side,
		Location:    location,
		Transaction: tx,
	}
	if err := s.raise(event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Swap) Fund(side Side, tx Transaction, asset Asset) (Event, error) {
	event := HtlcFunded{
		SwapEvent:   SwapEvent{Id: s.Id, Type: EventTypeHtlcFunded},
		Side:        side,
		Transaction: tx,
		Asset:       asset,
	}
	if err := s.raise(event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Swap) Redeem(side Side, tx Transaction, secret Secret) (Event, error) {
	event := HtlcRedeemed{
		SwapEvent:   SwapEvent{Id: s.Id, Type: EventTypeHtlcRedeemed},
		Side:        side,
		Transaction: tx,
		Secret:      secret,
	}
	if err := s.raise(event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Swap) Refund(side Side, tx Transaction) (Event, error) {
	event := HtlcRefunded{
		SwapEvent:   SwapEvent{Id: s.Id, Type: EventTypeHtlcRefunded},
		Side:        side,
		Transaction: tx,
	}
	if err := s.raise(event); err != nil {
		return nil, err
	}
	return event, nil
}

// Apply is the pure reducer of the swap state machine: it returns the state
// resulting from the event, or an error if the event is not allowed in the
// current state. The receiver is left untouched.
func (s Swap) Apply(event Event) (Swap, error) {
	next := s
	next.changes = nil

	if event.GetSwapId() != s.Id && s.Communication.Status != UndefinedCommunication {
		return s, fmt.Errorf("event for swap %s applied to swap %s", event.GetSwapId(), s.Id)
	}

	switch e := event.(type) {
	case SwapProposed:
		if s.Communication.Status != UndefinedCommunication {
			return s, fmt.Errorf("swap %s already proposed", s.Id)
		}
		next.Id = e.Id
		next.Role = e.Role
		next.StartingTimestamp = e.Timestamp
		next.Communication = SwapCommunication{Status: Proposed, Request: e.Request}
		next.AlphaLedgerState = LedgerState{}
		next.BetaLedgerState = LedgerState{}
	case SwapAccepted:
		if !s.Communication.IsProposed() {
			return s, fmt.Errorf("%w: cannot accept %s swap", ErrInvalidTransition, s.Communication.Status)
		}
		accept := e.Accept
		next.Communication = SwapCommunication{
			Status: Accepted, Request: s.Communication.Request, Accept: &accept,
		}
	case SwapDeclined:
		if !s.Communication.IsProposed() {
			return s, fmt.Errorf("%w: cannot decline %s swap", ErrInvalidTransition, s.Communication.Status)
		}
		decline := e.Decline
		next.Communication = SwapCommunication{
			Status: Declined, Request: s.Communication.Request, Decline: &decline,
		}
	case HtlcDeployed:
		state, err := s.ledgerEventAllowed(e.Side)
		if err != nil {
			return s, err
		}
		state, err = state.deploy(e.Location, e.Transaction)
		if err != nil {
			return s, fmt.Errorf("%s ledger: %w", e.Side, err)
		}
		next.setLedgerState(e.Side, state)
	case HtlcFunded:
		state, err := s.ledgerEventAllowed(e.Side)
		if err != nil {
			return s, err
		}
		state, err = state.fund(e.Transaction, e.Asset, s.ExpectedAsset(e.Side))
		if err != nil {
			return s, fmt.Errorf("%s ledger: %w", e.Side, err)
		}
		next.setLedgerState(e.Side, state)
	case HtlcRedeemed:
		state, err := s.ledgerEventAllowed(e.Side)
		if err != nil {
			return s, err
		}
		if !s.Communication.Request.SecretHash.Matches(e.Secret) {
			return s, fmt.Errorf("%s ledger: %w", e.Side, ErrSecretMismatch)
		}
		if !s.LedgerState(e.Side.Other()).HasBeenFunded() {
			return s, fmt.Errorf(
				"%w: %w: %s ledger cannot be redeemed before %s ledger is funded",
				ErrInvalidTransition, ErrLedgerNotFunded, e.Side, e.Side.Other(),
			)
		}
		state, err = state.redeem(e.Transaction, e.Secret)
		if err != nil {
			return s, fmt.Errorf("%s ledger: %w", e.Side, err)
		}
		next.setLedgerState(e.Side, state)
	case HtlcRefunded:
		state, err := s.ledgerEventAllowed(e.Side)
		if err != nil {
			return s, err
		}
		state, err = state.refund(e.Transaction)
		if err != nil {
			return s, fmt.Errorf("%s ledger: %w", e.Side, err)
		}
		next.setLedgerState(e.Side, state)
	default:
		return s, fmt.Errorf("unknown event %T", event)
	}

	return next, nil
}

func (s *Swap) Events() []Event {
	return s.changes
}

// Clone returns a copy of the swap that can be modified without affecting
// the receiver.
func (s *Swap) Clone() *Swap {
	clone := *s
	clone.changes = append([]Event{}, s.changes...)
	return &clone
}

func (s *Swap) LedgerState(side Side) LedgerState {
	if side == Beta {
		return s.BetaLedgerState
	}
	return s.AlphaLedgerState
}

func (s *Swap) ExpectedAsset(side Side) Asset {
	if side == Beta {
		return s.Communication.Request.BetaAsset
	}
	return s.Communication.Request.AlphaAsset
}

func (s *Swap) Ledger(side Side) Ledger {
	if side == Beta {
		return s.Communication.Request.BetaLedger
	}
	return s.Communication.Request.AlphaLedger
}

func (s *Swap) Expiry(side Side) Timestamp {
	if side == Beta {
		return s.Communication.Request.BetaExpiry
	}
	return s.Communication.Request.AlphaExpiry
}

func (s *Swap) HtlcParams(side Side) (HtlcParams, error) {
	if side == Beta {
		return s.Communication.BetaHtlcParams()
	}
	return s.Communication.AlphaHtlcParams()
}

// ExpiryHasPassed tells whether the HTLC on the given side can be refunded.
func (s *Swap) ExpiryHasPassed(side Side, now time.Time) bool {
	return s.Expiry(side).HasPassed(now)
}

// IsFinal returns whether nothing can happen to the swap anymore.
func (s *Swap) IsFinal() bool {
	if s.Communication.IsDeclined() {
		return true
	}
	if !s.Communication.IsAccepted() {
		return false
	}
	alpha, beta := s.AlphaLedgerState, s.BetaLedgerState
	// An HTLC that was never deployed won't be once the other one is closed.
	settled := func(state LedgerState) bool {
		return state.IsClosed() || state.IsNotDeployed()
	}
	return settled(alpha) && settled(beta) && (alpha.IsClosed() || beta.IsClosed())
}

func (s *Swap) ledgerEventAllowed(side Side) (LedgerState, error) {
	switch s.Communication.Status {
	case Accepted:
		return s.LedgerState(side), nil
	case Declined:
		return LedgerState{}, ErrSwapDeclined
	default:
		return LedgerState{}, ErrSwapNotAccepted
	}
}

func (s *Swap) setLedgerState(side Side, state LedgerState) {
	if side == Beta {
		s.BetaLedgerState = state
		return
	}
	s.AlphaLedgerState = state
}

func (s *Swap) on(event Event, replayed bool) {
	next, err := s.Apply(event)
	if err != nil {
		return
	}
	next.changes = s.changes
	*s = next

	if replayed {
		s.Version++
	}
}

func (s *Swap) raise(event Event) error {
	next, err := s.Apply(event)
	if err != nil {
		return err
	}
	next.changes = append(s.changes, event)
	*s = next
	return nil
}
