package domain

import (
	"fmt"
	"time"
)

// Timestamp is a unix time in seconds, the resolution HTLC expiries are
// enforced with on both chains.
type Timestamp uint32

func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp(t.Unix())
}

func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t), 0)
}

// HasPassed is the only expiry check used to decide between watching for a
// redeem or allowing a refund.
func (t Timestamp) HasPassed(now time.Time) bool {
	return int64(t) < now.Unix()
}

// HtlcParams holds everything needed to compute the HTLC of one side of a
// swap. Both parties derive the same value from the request and the accept.
type HtlcParams struct {
	Ledger         Ledger
	Asset          Asset
	RedeemIdentity Identity
	RefundIdentity Identity
	Expiry         Timestamp
	SecretHash     SecretHash
}

func (p HtlcParams) Validate() error {
	if err := p.Ledger.Validate(); err != nil {
		return err
	}
	if err := p.Asset.Validate(); err != nil {
		return err
	}
	if p.Asset.Ledger() != p.Ledger.Kind {
		return fmt.Errorf("%s asset cannot be locked on %s", p.Asset.Kind, p.Ledger)
	}
	if len(p.RedeemIdentity) <= 0 {
		return fmt.Errorf("missing redeem identity")
	}
	if len(p.RefundIdentity) <= 0 {
		return fmt.Errorf("missing refund identity")
	}
	if p.Expiry == 0 {
		return fmt.Errorf("missing expiry")
	}
	return nil
}
