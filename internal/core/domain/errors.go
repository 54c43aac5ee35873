package domain

import "errors"

var (
	ErrSwapNotFound      = errors.New("swap not found")
	ErrSwapNotAccepted   = errors.New("swap not accepted")
	ErrSwapDeclined      = errors.New("swap declined")
	ErrInvalidTransition = errors.New("invalid ledger state transition")
	ErrSecretMismatch    = errors.New("secret does not match secret hash")
	// ErrLedgerNotFunded is returned, along with ErrInvalidTransition, when
	// an HTLC spend is recorded before the funding of the other HTLC.
	ErrLedgerNotFunded = errors.New("other ledger not funded yet")
)
