package domain

import (
	"fmt"
	"strings"
)

const (
	UndefinedRole Role = iota
	Alice
	Bob
)

// Role of the local node in a swap: Alice proposes and holds the secret, Bob
// responds to the proposal.
type Role int

func (r Role) String() string {
	switch r {
	case Alice:
		return "alice"
	case Bob:
		return "bob"
	default:
		return "undefined"
	}
}

func (r Role) MarshalText() ([]byte, error) {
	if r == UndefinedRole {
		return []byte{}, nil
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "":
		*r = UndefinedRole
	case "alice":
		*r = Alice
	case "bob":
		*r = Bob
	default:
		return fmt.Errorf("unknown role %q", text)
	}
	return nil
}

// Request is the swap proposal sent by Alice.
type Request struct {
	SwapId                    string     `json:"swap_id"`
	AlphaLedger               Ledger     `json:"alpha_ledger"`
	BetaLedger                Ledger     `json:"beta_ledger"`
	AlphaAsset                Asset      `json:"alpha_asset"`
	BetaAsset                 Asset      `json:"beta_asset"`
	AlphaLedgerRefundIdentity Identity   `json:"alpha_ledger_refund_identity"`
	BetaLedgerRedeemIdentity  Identity   `json:"beta_ledger_redeem_identity"`
	AlphaExpiry               Timestamp  `json:"alpha_expiry"`
	BetaExpiry                Timestamp  `json:"beta_expiry"`
	SecretHash                SecretHash `json:"secret_hash"`
}

func (r Request) Validate() error {
	if len(r.SwapId) <= 0 {
		return fmt.Errorf("missing swap id")
	}
	if err := r.AlphaLedger.Validate(); err != nil {
		return fmt.Errorf("invalid alpha ledger: %s", err)
	}
	if err := r.BetaLedger.Validate(); err != nil {
		return fmt.Errorf("invalid beta ledger: %s", err)
	}
	if err := r.AlphaAsset.Validate(); err != nil {
		return fmt.Errorf("invalid alpha asset: %s", err)
	}
	if err := r.BetaAsset.Validate(); err != nil {
		return fmt.Errorf("invalid beta asset: %s", err)
	}
	if len(r.AlphaLedgerRefundIdentity) <= 0 {
		return fmt.Errorf("missing alpha ledger refund identity")
	}
	if len(r.BetaLedgerRedeemIdentity) <= 0 {
		return fmt.Errorf("missing beta ledger redeem identity")
	}
	if r.AlphaExpiry <= r.BetaExpiry {
		return fmt.Errorf("alpha expiry must be later than beta expiry")
	}
	if r.SecretHash.IsZero() {
		return fmt.Errorf("missing secret hash")
	}
	return nil
}

// Accept is Bob's positive response carrying his HTLC identities.
type Accept struct {
	SwapId                    string   `json:"swap_id"`
	AlphaLedgerRedeemIdentity Identity `json:"alpha_ledger_redeem_identity"`
	BetaLedgerRefundIdentity  Identity `json:"beta_ledger_refund_identity"`
}

func (a Accept) Validate() error {
	if len(a.AlphaLedgerRedeemIdentity) <= 0 {
		return fmt.Errorf("missing alpha ledger redeem identity")
	}
	if len(a.BetaLedgerRefundIdentity) <= 0 {
		return fmt.Errorf("missing beta ledger refund identity")
	}
	return nil
}

// Decline is Bob's negative response.
type Decline struct {
	SwapId string `json:"swap_id"`
	Reason string `json:"reason,omitempty"`
}

const (
	UndefinedCommunication CommunicationStatus = iota
	Proposed
	Accepted
	Declined
)

type CommunicationStatus int

func (s CommunicationStatus) String() string {
	switch s {
	case Proposed:
		return "PROPOSED"
	case Accepted:
		return "ACCEPTED"
	case Declined:
		return "DECLINED"
	default:
		return "UNDEFINED"
	}
}

// SwapCommunication tracks the negotiation phase. Accept is only set when
// Accepted, Decline only when Declined.
type SwapCommunication struct {
	Status  CommunicationStatus `json:"status"`
	Request Request             `json:"request"`
	Accept  *Accept             `json:"accept,omitempty"`
	Decline *Decline            `json:"decline,omitempty"`
}

func (c SwapCommunication) IsProposed() bool {
	return c.Status == Proposed
}

func (c SwapCommunication) IsAccepted() bool {
	return c.Status == Accepted
}

func (c SwapCommunication) IsDeclined() bool {
	return c.Status == Declined
}

// AlphaHtlcParams derives the parameters of the HTLC on the alpha ledger,
// funded by Alice and redeemed by Bob.
func (c SwapCommunication) AlphaHtlcParams() (HtlcParams, error) {
	if !c.IsAccepted() {
		return HtlcParams{}, fmt.Errorf("swap not accepted")
	}
	return HtlcParams{
		Ledger:         c.Request.AlphaLedger,
		Asset:          c.Request.AlphaAsset,
		RedeemIdentity: c.Accept.AlphaLedgerRedeemIdentity,
		RefundIdentity: c.Request.AlphaLedgerRefundIdentity,
		Expiry:         c.Request.AlphaExpiry,
		SecretHash:     c.Request.SecretHash,
	}, nil
}

// BetaHtlcParams derives the parameters of the HTLC on the beta ledger,
// funded by Bob and redeemed by Alice.
func (c SwapCommunication) BetaHtlcParams() (HtlcParams, error) {
	if !c.IsAccepted() {
		return HtlcParams{}, fmt.Errorf("swap not accepted")
	}
	return HtlcParams{
		Ledger:         c.Request.BetaLedger,
		Asset:          c.Request.BetaAsset,
		RedeemIdentity: c.Request.BetaLedgerRedeemIdentity,
		RefundIdentity: c.Accept.BetaLedgerRefundIdentity,
		Expiry:         c.Request.BetaExpiry,
		SecretHash:     c.Request.SecretHash,
	}, nil
}
