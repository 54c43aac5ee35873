package bitcoin

import (
	"crypto/sha256"
	"fmt"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// SendToAddress asks the wallet to pay Amount satoshis to To.
type SendToAddress struct {
	To      string
	Amount  int64
	Network string
}

// SpendOutput is a primed HTLC input: everything needed to sign a transaction
// spending the HTLC output except the destination.
type SpendOutput struct {
	Outpoint wire.OutPoint
	Value    int64
	Network  string

	script   []byte
	key      *btcec.PrivateKey
	secret   *domain.Secret
	lockTime uint32
}

func (s SpendOutput) IsRedeem() bool {
	return s.secret != nil
}

// SignedTransaction builds a transaction spending the HTLC output to the
// given address, paying fee satoshis.
func (s SpendOutput) SignedTransaction(to btcutil.Address, fee int64) (*wire.MsgTx, error) {
	if fee < 0 || fee >= s.Value {
		return nil, fmt.Errorf("fee %d not payable by htlc output of %d sats", fee, s.Value)
	}
	pkScript, err := txscript.PayToAddrScript(to)
	if err != nil {
		return nil, fmt.Errorf("invalid destination: %s", err)
	}
	htlcScript, err := s.htlcPkScript()
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(2)
	input := wire.NewTxIn(&s.Outpoint, nil, nil)
	if !s.IsRedeem() {
		input.Sequence = wire.MaxTxInSequenceNum - 1
		tx.LockTime = s.lockTime
	}
	tx.AddTxIn(input)
	tx.AddTxOut(wire.NewTxOut(s.Value-fee, pkScript))

	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(htlcScript, s.Value)
	sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)
	sig, err := txscript.RawTxInWitnessSignature(
		tx, sigHashes, 0, s.Value, s.script, txscript.SigHashAll, s.key,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sign htlc input: %s", err)
	}

	pubkey := s.key.PubKey().SerializeCompressed()
	if s.IsRedeem() {
		secret := s.secret.IntoRawSecret()
		tx.TxIn[0].Witness = wire.TxWitness{sig, pubkey, secret[:], {0x01}, s.script}
	} else {
		tx.TxIn[0].Witness = wire.TxWitness{sig, pubkey, {}, s.script}
	}
	return tx, nil
}

func (s SpendOutput) htlcPkScript() ([]byte, error) {
	network, err := NetworkParams(s.Network)
	if err != nil {
		return nil, err
	}
	return witnessScriptHash(s.script, network)
}

// FundAction pays the exact swap amount to the HTLC address.
func FundAction(params domain.HtlcParams) (*SendToAddress, error) {
	if params.Asset.Kind != domain.BitcoinAsset {
		return nil, fmt.Errorf("cannot fund %s with bitcoin htlc", params.Asset.Kind)
	}
	to, err := ComputeAddress(params)
	if err != nil {
		return nil, err
	}
	return &SendToAddress{
		To:      to,
		Amount:  int64(params.Asset.Quantity.Uint64()),
		Network: params.Ledger.Network,
	}, nil
}

// RedeemAction spends the HTLC output with the secret, the amount being the
// swapped one.
func RedeemAction(
	params domain.HtlcParams, location domain.HtlcLocation,
	identities domain.DeriveIdentities, secret domain.Secret,
) (*SpendOutput, error) {
	htlc, outpoint, err := primeHtlc(params, location)
	if err != nil {
		return nil, err
	}
	script, err := htlc.Script()
	if err != nil {
		return nil, err
	}
	return &SpendOutput{
		Outpoint: *outpoint,
		Value:    int64(params.Asset.Quantity.Uint64()),
		Network:  params.Ledger.Network,
		script:   script,
		key:      identities.DeriveRedeemIdentity(),
		secret:   &secret,
	}, nil
}

// RefundAction spends the HTLC output back after expiry. The amount is read
// from the funding transaction since it is what was actually locked.
func RefundAction(
	params domain.HtlcParams, location domain.HtlcLocation,
	identities domain.DeriveIdentities, fundTx *wire.MsgTx,
) (*SpendOutput, error) {
	htlc, outpoint, err := primeHtlc(params, location)
	if err != nil {
		return nil, err
	}
	if fundTx == nil || fundTx.TxHash() != outpoint.Hash {
		return nil, fmt.Errorf("fund transaction does not match htlc location %s", location)
	}
	if int(outpoint.Index) >= len(fundTx.TxOut) {
		return nil, fmt.Errorf("htlc location %s out of range", location)
	}
	script, err := htlc.Script()
	if err != nil {
		return nil, err
	}
	return &SpendOutput{
		Outpoint: *outpoint,
		Value:    fundTx.TxOut[outpoint.Index].Value,
		Network:  params.Ledger.Network,
		script:   script,
		key:      identities.DeriveRefundIdentity(),
		lockTime: uint32(params.Expiry),
	}, nil
}

func primeHtlc(
	params domain.HtlcParams, location domain.HtlcLocation,
) (*Htlc, *wire.OutPoint, error) {
	htlc, err := NewHtlc(params)
	if err != nil {
		return nil, nil, err
	}
	outpoint, err := ParseLocation(location)
	if err != nil {
		return nil, nil, err
	}
	return htlc, outpoint, nil
}

func witnessScriptHash(script []byte, network *chaincfg.Params) ([]byte, error) {
	witnessProgram := sha256.Sum256(script)
	addr, err := btcutil.NewAddressWitnessScriptHash(witnessProgram[:], network)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}
