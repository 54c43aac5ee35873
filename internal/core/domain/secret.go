package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnd/lntypes"
)

const SecretSize = lntypes.PreimageSize

// Secret is the preimage locking both HTLCs of a swap.
type Secret struct {
	raw lntypes.Preimage
}

func NewSecret(raw []byte) (Secret, error) {
	preimage, err := lntypes.MakePreimage(raw)
	if err != nil {
		return Secret{}, fmt.Errorf("invalid secret: %w", err)
	}
	return Secret{preimage}, nil
}

// IntoRawSecret exposes the secret bytes, only to be used when building the
// redeem transaction.
func (s Secret) IntoRawSecret() [SecretSize]byte {
	return s.raw
}

func (s Secret) Hash() SecretHash {
	return SecretHash(s.raw.Hash())
}

func (s Secret) IsZero() bool {
	return s.raw == lntypes.Preimage{}
}

func (s Secret) String() string {
	return "Secret([redacted])"
}

func (s Secret) GoString() string {
	return s.String()
}

func (s Secret) MarshalText() ([]byte, error) {
	if s.IsZero() {
		return []byte{}, nil
	}
	return []byte(hex.EncodeToString(s.raw[:])), nil
}

func (s *Secret) UnmarshalText(text []byte) error {
	if len(text) <= 0 {
		*s = Secret{}
		return nil
	}
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("invalid secret: %w", err)
	}
	secret, err := NewSecret(raw)
	if err != nil {
		return err
	}
	*s = secret
	return nil
}

func (s Secret) MarshalBinary() ([]byte, error) {
	return s.MarshalText()
}

func (s *Secret) UnmarshalBinary(data []byte) error {
	return s.UnmarshalText(data)
}

// SecretHash is the SHA-256 of a Secret, the only value of the commitment
// that ends up on chain.
type SecretHash lntypes.Hash

func ParseSecretHash(s string) (SecretHash, error) {
	hash, err := lntypes.MakeHashFromStr(s)
	if err != nil {
		return SecretHash{}, fmt.Errorf("invalid secret hash: %w", err)
	}
	return SecretHash(hash), nil
}

func (h SecretHash) Matches(secret Secret) bool {
	return secret.Hash() == h
}

func (h SecretHash) IsZero() bool {
	return h == SecretHash{}
}

func (h SecretHash) String() string {
	return lntypes.Hash(h).String()
}

func (h SecretHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *SecretHash) UnmarshalText(text []byte) error {
	hash, err := ParseSecretHash(string(text))
	if err != nil {
		return err
	}
	*h = hash
	return nil
}

// DeriveIdentities gives access to the keys a party uses to redeem or refund
// the HTLCs of one swap.
type DeriveIdentities interface {
	DeriveRedeemIdentity() *btcec.PrivateKey
	DeriveRefundIdentity() *btcec.PrivateKey
}

// RootSeed is the node level seed every swap seed is derived from.
type RootSeed [32]byte

func (r RootSeed) SwapSeed(swapId string) SwapSeed {
	return SwapSeed(sha256.Sum256(append(r[:], []byte(swapId)...)))
}

// SwapSeed deterministically yields the identities and the secret of one swap.
type SwapSeed [32]byte

func (s SwapSeed) DeriveRedeemIdentity() *btcec.PrivateKey {
	key, _ := btcec.PrivKeyFromBytes(s.derive("REDEEM"))
	return key
}

func (s SwapSeed) DeriveRefundIdentity() *btcec.PrivateKey {
	key, _ := btcec.PrivKeyFromBytes(s.derive("REFUND"))
	return key
}

func (s SwapSeed) DeriveSecret() Secret {
	secret, _ := NewSecret(s.derive("SECRET"))
	return secret
}

func (s SwapSeed) String() string {
	return "SwapSeed([redacted])"
}

func (s SwapSeed) derive(tag string) []byte {
	buf := sha256.Sum256(append(s[:], []byte(tag)...))
	return buf[:]
}
