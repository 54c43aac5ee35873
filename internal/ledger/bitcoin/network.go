package bitcoin

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Connector is the read-only view over a bitcoin node the watcher needs.
type Connector interface {
	LatestBlock(ctx context.Context) (*wire.MsgBlock, error)
	BlockByHash(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error)
}

func NetworkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported bitcoin network %q", network)
	}
}

// Identity is the hex-encoded compressed public key of the given key.
func Identity(key *btcec.PrivateKey) domain.Identity {
	return domain.Identity(hex.EncodeToString(key.PubKey().SerializeCompressed()))
}

func ParseIdentity(identity domain.Identity) (*btcec.PublicKey, error) {
	buf, err := hex.DecodeString(string(identity))
	if err != nil {
		return nil, fmt.Errorf("invalid bitcoin identity: %s", err)
	}
	key, err := btcec.ParsePubKey(buf)
	if err != nil {
		return nil, fmt.Errorf("invalid bitcoin identity: %s", err)
	}
	return key, nil
}

func ParseLocation(location domain.HtlcLocation) (*wire.OutPoint, error) {
	outpoint, err := wire.NewOutPointFromString(string(location))
	if err != nil {
		return nil, fmt.Errorf("invalid bitcoin htlc location %q: %s", location, err)
	}
	return outpoint, nil
}

func Location(outpoint wire.OutPoint) domain.HtlcLocation {
	return domain.HtlcLocation(outpoint.String())
}
