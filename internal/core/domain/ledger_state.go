package domain

import "fmt"

const (
	NotDeployed HtlcState = iota
	Deployed
	Funded
	Redeemed
	Refunded
	IncorrectlyFunded
)

// HtlcState is the on-chain lifecycle stage of one HTLC.
type HtlcState int

func (s HtlcState) String() string {
	switch s {
	case NotDeployed:
		return "NOT_DEPLOYED"
	case Deployed:
		return "DEPLOYED"
	case Funded:
		return "FUNDED"
	case Redeemed:
		return "REDEEMED"
	case Refunded:
		return "REFUNDED"
	case IncorrectlyFunded:
		return "INCORRECTLY_FUNDED"
	default:
		return "UNKNOWN"
	}
}

// IsFinal returns whether no further transition is possible.
func (s HtlcState) IsFinal() bool {
	return s == Redeemed || s == Refunded || s == IncorrectlyFunded
}

// LedgerState is the lifecycle of the HTLC on one ledger. Fields are filled
// progressively: Location from Deployed on, FundedAmount and FundTransaction
// from Funded (or IncorrectlyFunded) on, Secret only when redeemed.
//
// IncorrectlyFunded is terminal for the swap, yet the locked coins can still
// be spent: the spend is recorded in RedeemTransaction or RefundTransaction
// without leaving the state.
type LedgerState struct {
	State             HtlcState    `json:"state"`
	Location          HtlcLocation `json:"location,omitempty"`
	DeployTransaction Transaction  `json:"deploy_transaction"`
	FundTransaction   Transaction  `json:"fund_transaction"`
	FundedAmount      Asset        `json:"funded_amount"`
	RedeemTransaction Transaction  `json:"redeem_transaction"`
	RefundTransaction Transaction  `json:"refund_transaction"`
	Secret            Secret       `json:"secret"`
}

func (l LedgerState) IsNotDeployed() bool { return l.State == NotDeployed }
func (l LedgerState) IsDeployed() bool    { return l.State == Deployed }
func (l LedgerState) IsFunded() bool      { return l.State == Funded }
func (l LedgerState) IsRedeemed() bool    { return l.State == Redeemed }
func (l LedgerState) IsRefunded() bool    { return l.State == Refunded }

func (l LedgerState) IsIncorrectlyFunded() bool {
	return l.State == IncorrectlyFunded
}

// IsClosed returns whether the HTLC was spent, nothing can be observed on
// it anymore.
func (l LedgerState) IsClosed() bool {
	switch l.State {
	case Redeemed, Refunded:
		return true
	case IncorrectlyFunded:
		return l.isSpent()
	default:
		return false
	}
}

// IsSpendable returns whether the HTLC holds coins that can be redeemed or
// refunded.
func (l LedgerState) IsSpendable() bool {
	return l.State == Funded || (l.State == IncorrectlyFunded && !l.isSpent())
}

func (l LedgerState) isSpent() bool {
	return len(l.RedeemTransaction.Id) > 0 || len(l.RefundTransaction.Id) > 0
}

// HasBeenFunded returns whether correct funding was observed at some point,
// the HTLC may have been spent since.
func (l LedgerState) HasBeenFunded() bool {
	return l.State == Funded || l.State == Redeemed || l.State == Refunded
}

func (l LedgerState) deploy(location HtlcLocation, tx Transaction) (LedgerState, error) {
	if l.State != NotDeployed {
		return l, invalidTransition(l.State, Deployed)
	}
	if len(location) <= 0 {
		return l, fmt.Errorf("missing htlc location")
	}
	next := l
	next.State = Deployed
	next.Location = location
	next.DeployTransaction = tx
	return next, nil
}

// fund moves a deployed HTLC to Funded when the observed asset equals the
// expected one, to IncorrectlyFunded otherwise.
func (l LedgerState) fund(tx Transaction, observed, expected Asset) (LedgerState, error) {
	if l.State != Deployed {
		return l, invalidTransition(l.State, Funded)
	}
	next := l
	next.FundTransaction = tx
	next.FundedAmount = observed
	if observed.Equal(expected) {
		next.State = Funded
	} else {
		next.State = IncorrectlyFunded
	}
	return next, nil
}

func (l LedgerState) redeem(tx Transaction, secret Secret) (LedgerState, error) {
	if !l.IsSpendable() {
		return l, invalidTransition(l.State, Redeemed)
	}
	next := l
	if l.State == Funded {
		next.State = Redeemed
	}
	next.RedeemTransaction = tx
	next.Secret = secret
	return next, nil
}

func (l LedgerState) refund(tx Transaction) (LedgerState, error) {
	if !l.IsSpendable() {
		return l, invalidTransition(l.State, Refunded)
	}
	next := l
	if l.State == Funded {
		next.State = Refunded
	}
	next.RefundTransaction = tx
	return next, nil
}

func invalidTransition(from, to HtlcState) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
