package domain_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestSecret(t *testing.T) {
	t.Run("derivation is deterministic", func(t *testing.T) {
		root := domain.RootSeed{7}

		first := root.SwapSeed("swap-1")
		second := root.SwapSeed("swap-1")
		other := root.SwapSeed("swap-2")

		require.Equal(t, first, second)
		require.NotEqual(t, first, other)
		require.Equal(t, first.DeriveSecret(), second.DeriveSecret())
		require.NotEqual(t, first.DeriveSecret(), other.DeriveSecret())

		redeem := first.DeriveRedeemIdentity()
		refund := first.DeriveRefundIdentity()
		require.True(t, redeem.PubKey().IsEqual(second.DeriveRedeemIdentity().PubKey()))
		require.False(t, redeem.PubKey().IsEqual(refund.PubKey()))
	})

	t.Run("hash", func(t *testing.T) {
		secret := domain.RootSeed{7}.SwapSeed("swap-1").DeriveSecret()
		hash := secret.Hash()
		require.True(t, hash.Matches(secret))

		parsed, err := domain.ParseSecretHash(hash.String())
		require.NoError(t, err)
		require.Equal(t, hash, parsed)

		_, err = domain.ParseSecretHash("zz")
		require.Error(t, err)
	})

	t.Run("redacted", func(t *testing.T) {
		seed := domain.RootSeed{7}.SwapSeed("swap-1")
		secret := seed.DeriveSecret()
		raw := secret.IntoRawSecret()

		for _, out := range []string{
			secret.String(),
			fmt.Sprintf("%v", secret),
			fmt.Sprintf("%#v", secret),
			seed.String(),
		} {
			require.Contains(t, out, "redacted")
			require.False(t, bytes.Contains([]byte(out), []byte(fmt.Sprintf("%x", raw[:]))))
		}
	})

	t.Run("from raw bytes", func(t *testing.T) {
		derived := domain.RootSeed{7}.SwapSeed("swap-1").DeriveSecret()
		raw := derived.IntoRawSecret()

		secret, err := domain.NewSecret(raw[:])
		require.NoError(t, err)
		require.Equal(t, derived, secret)
		require.True(t, derived.Hash().Matches(secret))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := domain.NewSecret(make([]byte, 31))
		require.Error(t, err)

		var secret domain.Secret
		require.Error(t, secret.UnmarshalText([]byte("not hex")))
		require.NoError(t, secret.UnmarshalText([]byte{}))
		require.True(t, secret.IsZero())
	})
}
