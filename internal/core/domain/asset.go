package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	UnknownAsset AssetKind = iota
	BitcoinAsset
	EtherAsset
	Erc20Asset

	satoshisPerBitcoin = 8
	weiPerEther        = 18
)

type AssetKind int

func (k AssetKind) String() string {
	switch k {
	case BitcoinAsset:
		return "bitcoin"
	case EtherAsset:
		return "ether"
	case Erc20Asset:
		return "erc20"
	default:
		return "unknown"
	}
}

// Ledger returns the kind of ledger the asset lives on.
func (k AssetKind) Ledger() LedgerKind {
	switch k {
	case BitcoinAsset:
		return BitcoinLedger
	case EtherAsset, Erc20Asset:
		return EthereumLedger
	default:
		return UnknownLedger
	}
}

func (k AssetKind) MarshalText() ([]byte, error) {
	if k == UnknownAsset {
		return []byte{}, nil
	}
	return []byte(k.String()), nil
}

func (k *AssetKind) UnmarshalText(text []byte) error {
	if len(text) <= 0 {
		*k = UnknownAsset
		return nil
	}
	kind, err := ParseAssetKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

func ParseAssetKind(s string) (AssetKind, error) {
	switch strings.ToLower(s) {
	case "bitcoin":
		return BitcoinAsset, nil
	case "ether":
		return EtherAsset, nil
	case "erc20":
		return Erc20Asset, nil
	default:
		return UnknownAsset, fmt.Errorf("unknown asset %q", s)
	}
}

// Quantity is an unsigned 256-bit amount expressed in the asset's smallest
// unit (satoshi, wei or token base unit). The zero value is 0.
type Quantity struct {
	v uint256.Int
}

func NewQuantity(n uint64) Quantity {
	q := Quantity{}
	q.v.SetUint64(n)
	return q
}

func QuantityFromBig(b *big.Int) (Quantity, error) {
	if b == nil || b.Sign() < 0 {
		return Quantity{}, fmt.Errorf("quantity must be a positive integer")
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return Quantity{}, fmt.Errorf("quantity overflows 256 bits")
	}
	return Quantity{*v}, nil
}

func ParseQuantity(s string) (Quantity, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Quantity{}, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	return Quantity{*v}, nil
}

func (q Quantity) Cmp(other Quantity) int {
	return q.v.Cmp(&other.v)
}

func (q Quantity) IsZero() bool {
	return q.v.IsZero()
}

func (q Quantity) IsUint64() bool {
	return q.v.IsUint64()
}

func (q Quantity) Uint64() uint64 {
	return q.v.Uint64()
}

func (q Quantity) Big() *big.Int {
	return q.v.ToBig()
}

// Bytes32 returns the big-endian 32 bytes representation.
func (q Quantity) Bytes32() [32]byte {
	return q.v.Bytes32()
}

func (q Quantity) String() string {
	return q.v.Dec()
}

func (q Quantity) MarshalText() ([]byte, error) {
	return []byte(q.v.Dec()), nil
}

func (q *Quantity) UnmarshalText(text []byte) error {
	parsed, err := ParseQuantity(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

func (q Quantity) MarshalBinary() ([]byte, error) {
	return q.MarshalText()
}

func (q *Quantity) UnmarshalBinary(data []byte) error {
	return q.UnmarshalText(data)
}

// Asset is the closed set of values a swap can exchange. Token is only set
// for Erc20 assets and holds the hex address of the token contract.
type Asset struct {
	Kind     AssetKind `json:"kind"`
	Quantity Quantity  `json:"quantity"`
	Token    string    `json:"token,omitempty"`
}

func NewBitcoinAsset(sats uint64) Asset {
	return Asset{Kind: BitcoinAsset, Quantity: NewQuantity(sats)}
}

func NewEtherAsset(wei Quantity) Asset {
	return Asset{Kind: EtherAsset, Quantity: wei}
}

func NewErc20Asset(token string, quantity Quantity) Asset {
	return Asset{Kind: Erc20Asset, Quantity: quantity, Token: strings.ToLower(token)}
}

// ParseBitcoin parses a decimal amount of bitcoin like "1.5".
func ParseBitcoin(amount string) (Asset, error) {
	q, err := parseDecimal(amount, satoshisPerBitcoin)
	if err != nil {
		return Asset{}, err
	}
	if !q.IsUint64() {
		return Asset{}, fmt.Errorf("bitcoin amount too large")
	}
	return Asset{Kind: BitcoinAsset, Quantity: q}, nil
}

// ParseEther parses a decimal amount of ether like "10" or "0.25".
func ParseEther(amount string) (Asset, error) {
	q, err := parseDecimal(amount, weiPerEther)
	if err != nil {
		return Asset{}, err
	}
	return NewEtherAsset(q), nil
}

func (a Asset) Ledger() LedgerKind {
	return a.Kind.Ledger()
}

// SameKind returns whether both assets are of the same kind (and token).
// Token addresses are compared case-insensitively since checksummed and
// lowercase hex designate the same contract.
func (a Asset) SameKind(other Asset) bool {
	return a.Kind == other.Kind && strings.EqualFold(a.Token, other.Token)
}

// Equal returns whether both assets are the same amount of the same asset.
func (a Asset) Equal(other Asset) bool {
	return a.SameKind(other) && a.Quantity.Cmp(other.Quantity) == 0
}

// Cmp orders assets of the same kind by quantity.
func (a Asset) Cmp(other Asset) (int, error) {
	if !a.SameKind(other) {
		return 0, fmt.Errorf("cannot compare %s with %s", a.Kind, other.Kind)
	}
	return a.Quantity.Cmp(other.Quantity), nil
}

func (a Asset) Validate() error {
	switch a.Kind {
	case BitcoinAsset:
		if !a.Quantity.IsUint64() {
			return fmt.Errorf("bitcoin amount too large")
		}
	case EtherAsset:
	case Erc20Asset:
		if len(a.Token) <= 0 {
			return fmt.Errorf("missing erc20 token contract")
		}
	default:
		return fmt.Errorf("unknown asset")
	}
	if a.Quantity.IsZero() {
		return fmt.Errorf("%s amount must be greater than zero", a.Kind)
	}
	return nil
}

func (a Asset) String() string {
	switch a.Kind {
	case BitcoinAsset:
		return fmt.Sprintf("%s BTC", formatDecimal(a.Quantity, satoshisPerBitcoin))
	case EtherAsset:
		return fmt.Sprintf("%s ETH", formatDecimal(a.Quantity, weiPerEther))
	case Erc20Asset:
		return fmt.Sprintf("%s %s", a.Quantity, a.Token)
	default:
		return "unknown"
	}
}

func parseDecimal(amount string, exp int32) (Quantity, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Quantity{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return Quantity{}, fmt.Errorf("amount must be positive")
	}
	scaled := d.Shift(exp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return Quantity{}, fmt.Errorf("amount %q has too many decimals", amount)
	}
	return QuantityFromBig(scaled.BigInt())
}

func formatDecimal(q Quantity, exp int32) string {
	return decimal.NewFromBigInt(q.Big(), -exp).String()
}
