package bitcoin

import (
	"crypto/sha256"
	"fmt"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// Htlc is the RFC003 bitcoin HTLC, spent through a P2WSH output:
//
//	OP_IF
//	  OP_SIZE 32 OP_EQUALVERIFY OP_SHA256 <secret hash> OP_EQUALVERIFY
//	  OP_DUP OP_HASH160 <redeem pubkey hash>
//	OP_ELSE
//	  <expiry> OP_CHECKLOCKTIMEVERIFY OP_DROP
//	  OP_DUP OP_HASH160 <refund pubkey hash>
//	OP_ENDIF
//	OP_EQUALVERIFY OP_CHECKSIG
type Htlc struct {
	SecretHash         domain.SecretHash
	RedeemIdentityHash []byte
	RefundIdentityHash []byte
	Expiry             domain.Timestamp
	Network            *chaincfg.Params
}

func NewHtlc(params domain.HtlcParams) (*Htlc, error) {
	if params.Ledger.Kind != domain.BitcoinLedger {
		return nil, fmt.Errorf("cannot build bitcoin htlc on %s ledger", params.Ledger)
	}
	network, err := NetworkParams(params.Ledger.Network)
	if err != nil {
		return nil, err
	}
	redeem, err := ParseIdentity(params.RedeemIdentity)
	if err != nil {
		return nil, fmt.Errorf("redeem identity: %w", err)
	}
	refund, err := ParseIdentity(params.RefundIdentity)
	if err != nil {
		return nil, fmt.Errorf("refund identity: %w", err)
	}

	return &Htlc{
		SecretHash:         params.SecretHash,
		RedeemIdentityHash: btcutil.Hash160(redeem.SerializeCompressed()),
		RefundIdentityHash: btcutil.Hash160(refund.SerializeCompressed()),
		Expiry:             params.Expiry,
		Network:            network,
	}, nil
}

func (h *Htlc) Script() ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_IF).
		AddOp(txscript.OP_SIZE).
		AddInt64(32).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_SHA256).
		AddData(h.SecretHash[:]).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(h.RedeemIdentityHash).
		AddOp(txscript.OP_ELSE).
		AddInt64(int64(h.Expiry)).
		AddOp(txscript.OP_CHECKLOCKTIMEVERIFY).
		AddOp(txscript.OP_DROP).
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(h.RefundIdentityHash).
		AddOp(txscript.OP_ENDIF).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

func (h *Htlc) Address() (btcutil.Address, error) {
	script, err := h.Script()
	if err != nil {
		return nil, err
	}
	witnessProgram := sha256.Sum256(script)
	return btcutil.NewAddressWitnessScriptHash(witnessProgram[:], h.Network)
}

func (h *Htlc) PkScript() ([]byte, error) {
	script, err := h.Script()
	if err != nil {
		return nil, err
	}
	return witnessScriptHash(script, h.Network)
}

// ComputeAddress returns the P2WSH address both parties derive from the same
// parameters.
func ComputeAddress(params domain.HtlcParams) (string, error) {
	htlc, err := NewHtlc(params)
	if err != nil {
		return "", err
	}
	addr, err := htlc.Address()
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}
