package bitcoin

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/btcsuite/btcd/wire"
)

// TransactionPattern selects transactions by the outputs they create, the
// output they spend and the witness items they reveal. Unset fields match
// anything.
type TransactionPattern struct {
	ToPkScript   []byte
	FromOutpoint *wire.OutPoint
	UnlockScript [][]byte
}

func (p TransactionPattern) Matches(tx *wire.MsgTx) bool {
	if len(p.ToPkScript) > 0 {
		if _, ok := findOutput(tx, p.ToPkScript); !ok {
			return false
		}
	}
	if p.FromOutpoint == nil {
		return p.UnlockScript == nil
	}
	for _, in := range tx.TxIn {
		if in.PreviousOutPoint != *p.FromOutpoint {
			continue
		}
		if p.UnlockScript == nil || witnessContains(in.Witness, p.UnlockScript) {
			return true
		}
	}
	return false
}

// FundPattern matches the transaction paying to the HTLC address, which on
// bitcoin both deploys and funds the HTLC.
func FundPattern(params domain.HtlcParams) (*TransactionPattern, error) {
	htlc, err := NewHtlc(params)
	if err != nil {
		return nil, err
	}
	pkScript, err := htlc.PkScript()
	if err != nil {
		return nil, err
	}
	return &TransactionPattern{ToPkScript: pkScript}, nil
}

// RedeemPattern matches a spend of the HTLC output through the secret branch.
func RedeemPattern(location domain.HtlcLocation) (*TransactionPattern, error) {
	outpoint, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	return &TransactionPattern{
		FromOutpoint: outpoint,
		UnlockScript: [][]byte{{0x01}},
	}, nil
}

// RefundPattern matches a spend of the HTLC output through the timeout branch.
func RefundPattern(location domain.HtlcLocation) (*TransactionPattern, error) {
	outpoint, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	return &TransactionPattern{
		FromOutpoint: outpoint,
		UnlockScript: [][]byte{{}},
	}, nil
}

// FundedOutput returns the location and value of the output of a matched
// fund transaction.
func FundedOutput(
	tx *wire.MsgTx, pattern *TransactionPattern,
) (domain.HtlcLocation, domain.Asset, error) {
	vout, ok := findOutput(tx, pattern.ToPkScript)
	if !ok {
		return "", domain.Asset{}, fmt.Errorf("transaction %s does not fund the htlc", tx.TxHash())
	}
	location := Location(wire.OutPoint{Hash: tx.TxHash(), Index: uint32(vout)})
	return location, domain.NewBitcoinAsset(uint64(tx.TxOut[vout].Value)), nil
}

// ExtractSecret looks for the preimage of secretHash among the witness items
// of the input spending the HTLC.
func ExtractSecret(
	tx *wire.MsgTx, location domain.HtlcLocation, secretHash domain.SecretHash,
) (domain.Secret, error) {
	outpoint, err := ParseLocation(location)
	if err != nil {
		return domain.Secret{}, err
	}
	for _, in := range tx.TxIn {
		if in.PreviousOutPoint != *outpoint {
			continue
		}
		for _, item := range in.Witness {
			if len(item) != domain.SecretSize {
				continue
			}
			if sha256.Sum256(item) == [32]byte(secretHash) {
				return domain.NewSecret(item)
			}
		}
	}
	return domain.Secret{}, fmt.Errorf("transaction %s does not reveal the secret", tx.TxHash())
}

func findOutput(tx *wire.MsgTx, pkScript []byte) (int, bool) {
	for i, out := range tx.TxOut {
		if bytes.Equal(out.PkScript, pkScript) {
			return i, true
		}
	}
	return -1, false
}

func witnessContains(witness wire.TxWitness, items [][]byte) bool {
	for _, item := range items {
		found := false
		for _, w := range witness {
			if bytes.Equal(w, item) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
