package domain

import (
	"fmt"
	"strings"
)

const (
	UnknownLedger LedgerKind = iota
	BitcoinLedger
	EthereumLedger
)

type LedgerKind int

func (k LedgerKind) String() string {
	switch k {
	case BitcoinLedger:
		return "bitcoin"
	case EthereumLedger:
		return "ethereum"
	default:
		return "unknown"
	}
}

func (k LedgerKind) MarshalText() ([]byte, error) {
	if k == UnknownLedger {
		return []byte{}, nil
	}
	return []byte(k.String()), nil
}

func (k *LedgerKind) UnmarshalText(text []byte) error {
	if len(text) <= 0 {
		*k = UnknownLedger
		return nil
	}
	kind, err := ParseLedgerKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

func ParseLedgerKind(s string) (LedgerKind, error) {
	switch strings.ToLower(s) {
	case "bitcoin":
		return BitcoinLedger, nil
	case "ethereum":
		return EthereumLedger, nil
	default:
		return UnknownLedger, fmt.Errorf("unknown ledger %q", s)
	}
}

// Ledger identifies one chain together with the network parameters the HTLC
// depends on. Bitcoin ledgers carry a network name, Ethereum ledgers a chain id.
type Ledger struct {
	Kind    LedgerKind `json:"kind"`
	Network string     `json:"network,omitempty"`
	ChainId uint64     `json:"chain_id,omitempty"`
}

func NewBitcoinLedger(network string) Ledger {
	return Ledger{Kind: BitcoinLedger, Network: network}
}

func NewEthereumLedger(chainId uint64) Ledger {
	return Ledger{Kind: EthereumLedger, ChainId: chainId}
}

func (l Ledger) Validate() error {
	switch l.Kind {
	case BitcoinLedger:
		switch l.Network {
		case "mainnet", "testnet", "regtest":
			return nil
		default:
			return fmt.Errorf("unsupported bitcoin network %q", l.Network)
		}
	case EthereumLedger:
		if l.ChainId == 0 {
			return fmt.Errorf("missing ethereum chain id")
		}
		return nil
	default:
		return fmt.Errorf("unknown ledger")
	}
}

func (l Ledger) String() string {
	switch l.Kind {
	case BitcoinLedger:
		return fmt.Sprintf("bitcoin(%s)", l.Network)
	case EthereumLedger:
		return fmt.Sprintf("ethereum(%d)", l.ChainId)
	default:
		return "unknown"
	}
}

// Identity is the ledger specific party identity embedded in an HTLC: a
// hex-encoded compressed public key on Bitcoin, a hex address on Ethereum.
type Identity string

// HtlcLocation points to a deployed HTLC: "txid:vout" on Bitcoin, the
// contract address on Ethereum.
type HtlcLocation string

// Transaction references an on-chain transaction observed by a watcher.
// Raw holds the hex-encoded serialization when the ledger needs it to build
// follow-up actions (e.g. a bitcoin refund needs the funding outputs).
type Transaction struct {
	Id  string `json:"id"`
	Raw string `json:"raw,omitempty"`
}

func (t Transaction) IsEmpty() bool {
	return len(t.Id) <= 0
}
