package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/stretchr/testify/require"
)

const (
	swapId           = "0d8b4dcb-02a4-4a49-8ba0-b5b1b1f0a6f1"
	aliceBtcIdentity = "03f9c9b7e1eb4b8b6f1d5ad1e6a8a2c54de7c7cfa2dbf3bb5c0c3c3d0a6e0c2c1a"
	bobBtcIdentity   = "02c2e2a4d3b36f7d61b3dc47b65a1a5ee4bfeb0b7f1dba6f2f6c0d91ab4c1a3e5f"
	aliceEthIdentity = "0x9b7b6e3f2a0d7b0f8d2e1c3a4b5c6d7e8f901234"
	bobEthIdentity   = "0x1c2d3e4f5a6b7c8d9e0f1a2b3c4d5e6f7a8b9c0d"
	fundTxid         = "7f0b5e1d1d3c6a3a4b8f3cfd9bd2c1e8b2f9d3c4a5b6c7d8e9f0a1b2c3d4e5f6"
	redeemTxid       = "2b7e6f0c4e9a9d1c8c3b6a5f4e3d2c1b0a9f8e7d6c5b4a3f2e1d0c9b8a7f6e5d"
)

var (
	seed   = domain.RootSeed{1}.SwapSeed(swapId)
	secret = seed.DeriveSecret()

	oneBtc = domain.NewBitcoinAsset(100000000)
	tenEth = mustParseEther("10")
)

func mustParseEther(amount string) domain.Asset {
	asset, err := domain.ParseEther(amount)
	if err != nil {
		panic(err)
	}
	return asset
}

func testRequest() domain.Request {
	now := time.Now()
	return domain.Request{
		SwapId:                    swapId,
		AlphaLedger:               domain.NewBitcoinLedger("regtest"),
		BetaLedger:                domain.NewEthereumLedger(1337),
		AlphaAsset:                oneBtc,
		BetaAsset:                 tenEth,
		AlphaLedgerRefundIdentity: aliceBtcIdentity,
		BetaLedgerRedeemIdentity:  aliceEthIdentity,
		AlphaExpiry:               domain.TimestampFromTime(now.Add(24 * time.Hour)),
		BetaExpiry:                domain.TimestampFromTime(now.Add(12 * time.Hour)),
		SecretHash:                secret.Hash(),
	}
}

func testAccept() domain.Accept {
	return domain.Accept{
		AlphaLedgerRedeemIdentity: bobBtcIdentity,
		BetaLedgerRefundIdentity:  bobEthIdentity,
	}
}

func acceptedSwap(t *testing.T) *domain.Swap {
	swap, err := domain.NewSwap(domain.Alice, testRequest())
	require.NoError(t, err)
	_, err = swap.Accept(testAccept())
	require.NoError(t, err)
	return swap
}

func fundedSwap(t *testing.T) *domain.Swap {
	swap := acceptedSwap(t)
	_, err := swap.Deploy(domain.Alpha, fundTxid+":0", domain.Transaction{Id: fundTxid})
	require.NoError(t, err)
	_, err = swap.Fund(domain.Alpha, domain.Transaction{Id: fundTxid}, oneBtc)
	require.NoError(t, err)
	_, err = swap.Deploy(domain.Beta, aliceEthIdentity, domain.Transaction{Id: "0x01"})
	require.NoError(t, err)
	_, err = swap.Fund(domain.Beta, domain.Transaction{Id: "0x01"}, tenEth)
	require.NoError(t, err)
	return swap
}

func TestSwap(t *testing.T) {
	testProposeSwap(t)

	testAcceptSwap(t)

	testDeclineSwap(t)

	testLedgerLifecycle(t)

	testSwapFromEvents(t)

	testSwapRoundTrip(t)
}

func testProposeSwap(t *testing.T) {
	t.Run("propose", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			swap, err := domain.NewSwap(domain.Alice, testRequest())
			require.NoError(t, err)
			require.NotNil(t, swap)
			require.Equal(t, swapId, swap.Id)
			require.Equal(t, domain.Alice, swap.Role)
			require.True(t, swap.Communication.IsProposed())
			require.True(t, swap.AlphaLedgerState.IsNotDeployed())
			require.True(t, swap.BetaLedgerState.IsNotDeployed())
			require.NotZero(t, swap.StartingTimestamp)
			require.False(t, swap.IsFinal())

			events := swap.Events()
			require.Len(t, events, 1)
			require.Equal(t, domain.EventTypeSwapProposed, events[0].GetType())
			require.Equal(t, domain.SwapTopic, events[0].GetTopic())
		})

		t.Run("invalid", func(t *testing.T) {
			noId := testRequest()
			noId.SwapId = ""
			badExpiries := testRequest()
			badExpiries.BetaExpiry = badExpiries.AlphaExpiry
			noRedeemIdentity := testRequest()
			noRedeemIdentity.BetaLedgerRedeemIdentity = ""
			wrongNetwork := testRequest()
			wrongNetwork.AlphaLedger = domain.NewBitcoinLedger("signet")
			noSecretHash := testRequest()
			noSecretHash.SecretHash = domain.SecretHash{}

			fixtures := []struct {
				role        domain.Role
				request     domain.Request
				expectedErr string
			}{
				{
					role:        domain.UndefinedRole,
					request:     testRequest(),
					expectedErr: "invalid role",
				},
				{
					role:        domain.Alice,
					request:     noId,
					expectedErr: "missing swap id",
				},
				{
					role:        domain.Alice,
					request:     badExpiries,
					expectedErr: "alpha expiry must be later than beta expiry",
				},
				{
					role:        domain.Bob,
					request:     noRedeemIdentity,
					expectedErr: "missing beta ledger redeem identity",
				},
				{
					role:        domain.Bob,
					request:     wrongNetwork,
					expectedErr: "invalid alpha ledger: unsupported bitcoin network \"signet\"",
				},
				{
					role:        domain.Alice,
					request:     noSecretHash,
					expectedErr: "missing secret hash",
				},
			}

			for _, f := range fixtures {
				swap, err := domain.NewSwap(f.role, f.request)
				require.EqualError(t, err, f.expectedErr)
				require.Nil(t, swap)
			}
		})
	})
}

func testAcceptSwap(t *testing.T) {
	t.Run("accept", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			swap, err := domain.NewSwap(domain.Bob, testRequest())
			require.NoError(t, err)

			event, err := swap.Accept(testAccept())
			require.NoError(t, err)
			require.Equal(t, domain.EventTypeSwapAccepted, event.GetType())
			require.True(t, swap.Communication.IsAccepted())
			require.NotNil(t, swap.Communication.Accept)
			require.Equal(t, swapId, swap.Communication.Accept.SwapId)
			require.Len(t, swap.Events(), 2)

			alpha, err := swap.HtlcParams(domain.Alpha)
			require.NoError(t, err)
			require.Equal(t, domain.Identity(bobBtcIdentity), alpha.RedeemIdentity)
			require.Equal(t, domain.Identity(aliceBtcIdentity), alpha.RefundIdentity)
			require.Equal(t, oneBtc, alpha.Asset)
			require.NoError(t, alpha.Validate())

			beta, err := swap.HtlcParams(domain.Beta)
			require.NoError(t, err)
			require.Equal(t, domain.Identity(aliceEthIdentity), beta.RedeemIdentity)
			require.Equal(t, domain.Identity(bobEthIdentity), beta.RefundIdentity)
			require.Equal(t, tenEth, beta.Asset)
			require.Equal(t, alpha.SecretHash, beta.SecretHash)
			require.NoError(t, beta.Validate())
		})

		t.Run("invalid", func(t *testing.T) {
			swap := acceptedSwap(t)
			_, err := swap.Accept(testAccept())
			require.EqualError(t, err, "not in a valid stage to accept swap")

			swap, err = domain.NewSwap(domain.Bob, testRequest())
			require.NoError(t, err)
			_, err = swap.Accept(domain.Accept{AlphaLedgerRedeemIdentity: bobBtcIdentity})
			require.EqualError(t, err, "missing beta ledger refund identity")
			require.True(t, swap.Communication.IsProposed())
		})
	})
}

func testDeclineSwap(t *testing.T) {
	t.Run("decline", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			swap, err := domain.NewSwap(domain.Bob, testRequest())
			require.NoError(t, err)

			event, err := swap.Decline(domain.Decline{Reason: "bad rate"})
			require.NoError(t, err)
			require.Equal(t, domain.EventTypeSwapDeclined, event.GetType())
			require.True(t, swap.Communication.IsDeclined())
			require.Equal(t, "bad rate", swap.Communication.Decline.Reason)
			require.True(t, swap.IsFinal())

			_, err = swap.HtlcParams(domain.Alpha)
			require.Error(t, err)
		})

		t.Run("invalid", func(t *testing.T) {
			swap := acceptedSwap(t)
			_, err := swap.Decline(domain.Decline{})
			require.EqualError(t, err, "not in a valid stage to decline swap")

			swap, err = domain.NewSwap(domain.Bob, testRequest())
			require.NoError(t, err)
			_, err = swap.Decline(domain.Decline{})
			require.NoError(t, err)

			_, err = swap.Deploy(domain.Alpha, fundTxid+":0", domain.Transaction{Id: fundTxid})
			require.ErrorIs(t, err, domain.ErrSwapDeclined)
			_, err = swap.Fund(domain.Alpha, domain.Transaction{Id: fundTxid}, oneBtc)
			require.ErrorIs(t, err, domain.ErrSwapDeclined)
			require.True(t, swap.AlphaLedgerState.IsNotDeployed())
		})
	})
}

func testLedgerLifecycle(t *testing.T) {
	t.Run("ledger lifecycle", func(t *testing.T) {
		t.Run("not accepted", func(t *testing.T) {
			swap, err := domain.NewSwap(domain.Alice, testRequest())
			require.NoError(t, err)
			_, err = swap.Deploy(domain.Alpha, fundTxid+":0", domain.Transaction{Id: fundTxid})
			require.ErrorIs(t, err, domain.ErrSwapNotAccepted)
		})

		t.Run("redeemed", func(t *testing.T) {
			swap := fundedSwap(t)
			require.True(t, swap.AlphaLedgerState.IsFunded())
			require.True(t, swap.BetaLedgerState.IsFunded())
			require.Equal(t, oneBtc, swap.AlphaLedgerState.FundedAmount)
			require.Equal(t, domain.HtlcLocation(fundTxid+":0"), swap.AlphaLedgerState.Location)

			_, err := swap.Redeem(domain.Beta, domain.Transaction{Id: "0x02"}, secret)
			require.NoError(t, err)
			require.True(t, swap.BetaLedgerState.IsRedeemed())
			require.Equal(t, secret, swap.BetaLedgerState.Secret)
			require.False(t, swap.IsFinal())

			_, err = swap.Redeem(domain.Alpha, domain.Transaction{Id: redeemTxid}, secret)
			require.NoError(t, err)
			require.True(t, swap.AlphaLedgerState.IsRedeemed())
			require.True(t, swap.IsFinal())
		})

		t.Run("refunded", func(t *testing.T) {
			swap := acceptedSwap(t)
			_, err := swap.Deploy(domain.Alpha, fundTxid+":0", domain.Transaction{Id: fundTxid})
			require.NoError(t, err)
			_, err = swap.Fund(domain.Alpha, domain.Transaction{Id: fundTxid}, oneBtc)
			require.NoError(t, err)
			_, err = swap.Refund(domain.Alpha, domain.Transaction{Id: redeemTxid})
			require.NoError(t, err)
			require.True(t, swap.AlphaLedgerState.IsRefunded())
			require.True(t, swap.IsFinal())
		})

		t.Run("incorrectly funded", func(t *testing.T) {
			halfBtc := domain.NewBitcoinAsset(50000000)
			twoBtc := domain.NewBitcoinAsset(200000000)

			for _, observed := range []domain.Asset{halfBtc, twoBtc, tenEth} {
				swap := acceptedSwap(t)
				_, err := swap.Deploy(domain.Alpha, fundTxid+":0", domain.Transaction{Id: fundTxid})
				require.NoError(t, err)
				_, err = swap.Fund(domain.Alpha, domain.Transaction{Id: fundTxid}, observed)
				require.NoError(t, err)
				require.True(t, swap.AlphaLedgerState.IsIncorrectlyFunded())
				require.True(t, swap.AlphaLedgerState.IsSpendable())
				require.Equal(t, observed, swap.AlphaLedgerState.FundedAmount)
				require.False(t, swap.IsFinal())

				_, err = swap.Redeem(domain.Alpha, domain.Transaction{Id: redeemTxid}, secret)
				require.ErrorIs(t, err, domain.ErrInvalidTransition)

				_, err = swap.Refund(domain.Alpha, domain.Transaction{Id: redeemTxid})
				require.NoError(t, err)
				require.True(t, swap.AlphaLedgerState.IsIncorrectlyFunded())
				require.Equal(t, redeemTxid, swap.AlphaLedgerState.RefundTransaction.Id)
				require.True(t, swap.AlphaLedgerState.IsClosed())
				require.False(t, swap.AlphaLedgerState.IsSpendable())
				require.True(t, swap.IsFinal())

				_, err = swap.Refund(domain.Alpha, domain.Transaction{Id: redeemTxid})
				require.ErrorIs(t, err, domain.ErrInvalidTransition)
			}
		})

		t.Run("checksummed erc20 token", func(t *testing.T) {
			request := testRequest()
			request.BetaAsset = domain.Asset{
				Kind:     domain.Erc20Asset,
				Quantity: domain.NewQuantity(1000),
				Token:    "0xAbCdEf0000000000000000000000000000000001",
			}
			swap, err := domain.NewSwap(domain.Alice, request)
			require.NoError(t, err)
			_, err = swap.Accept(testAccept())
			require.NoError(t, err)

			_, err = swap.Deploy(domain.Beta, aliceEthIdentity, domain.Transaction{Id: "0x01"})
			require.NoError(t, err)
			observed := domain.NewErc20Asset(request.BetaAsset.Token, domain.NewQuantity(1000))
			_, err = swap.Fund(domain.Beta, domain.Transaction{Id: "0x02"}, observed)
			require.NoError(t, err)
			require.True(t, swap.BetaLedgerState.IsFunded())
		})

		t.Run("redeem recorded before other side funding", func(t *testing.T) {
			swap := acceptedSwap(t)
			_, err := swap.Deploy(domain.Alpha, fundTxid+":0", domain.Transaction{Id: fundTxid})
			require.NoError(t, err)
			_, err = swap.Fund(domain.Alpha, domain.Transaction{Id: fundTxid}, oneBtc)
			require.NoError(t, err)

			_, err = swap.Redeem(domain.Alpha, domain.Transaction{Id: redeemTxid}, secret)
			require.ErrorIs(t, err, domain.ErrInvalidTransition)
			require.ErrorIs(t, err, domain.ErrLedgerNotFunded)
		})

		t.Run("invalid", func(t *testing.T) {
			otherSecret, err := domain.NewSecret(make([]byte, domain.SecretSize))
			require.NoError(t, err)

			fixtures := []struct {
				name  string
				swap  func(t *testing.T) *domain.Swap
				apply func(swap *domain.Swap) error
				err   error
			}{
				{
					name: "fund before deploy",
					swap: acceptedSwap,
					apply: func(swap *domain.Swap) error {
						_, err := swap.Fund(domain.Alpha, domain.Transaction{Id: fundTxid}, oneBtc)
						return err
					},
					err: domain.ErrInvalidTransition,
				},
				{
					name: "deploy twice",
					swap: fundedSwap,
					apply: func(swap *domain.Swap) error {
						_, err := swap.Deploy(domain.Alpha, fundTxid+":1", domain.Transaction{Id: fundTxid})
						return err
					},
					err: domain.ErrInvalidTransition,
				},
				{
					name: "redeem with wrong secret",
					swap: fundedSwap,
					apply: func(swap *domain.Swap) error {
						_, err := swap.Redeem(domain.Beta, domain.Transaction{Id: "0x02"}, otherSecret)
						return err
					},
					err: domain.ErrSecretMismatch,
				},
				{
					name: "redeem before other side funded",
					swap: func(t *testing.T) *domain.Swap {
						swap := acceptedSwap(t)
						_, err := swap.Deploy(domain.Alpha, fundTxid+":0", domain.Transaction{Id: fundTxid})
						require.NoError(t, err)
						_, err = swap.Fund(domain.Alpha, domain.Transaction{Id: fundTxid}, oneBtc)
						require.NoError(t, err)
						return swap
					},
					apply: func(swap *domain.Swap) error {
						_, err := swap.Redeem(domain.Alpha, domain.Transaction{Id: redeemTxid}, secret)
						return err
					},
					err: domain.ErrInvalidTransition,
				},
				{
					name: "fund after refund",
					swap: func(t *testing.T) *domain.Swap {
						swap := fundedSwap(t)
						_, err := swap.Refund(domain.Beta, domain.Transaction{Id: "0x03"})
						require.NoError(t, err)
						return swap
					},
					apply: func(swap *domain.Swap) error {
						_, err := swap.Fund(domain.Beta, domain.Transaction{Id: "0x04"}, tenEth)
						return err
					},
					err: domain.ErrInvalidTransition,
				},
			}

			for _, f := range fixtures {
				t.Run(f.name, func(t *testing.T) {
					swap := f.swap(t)
					before := *swap.Clone()
					err := f.apply(swap)
					require.ErrorIs(t, err, f.err)
					require.Equal(t, before.AlphaLedgerState, swap.AlphaLedgerState)
					require.Equal(t, before.BetaLedgerState, swap.BetaLedgerState)
					require.Len(t, swap.Events(), len(before.Events()))
				})
			}
		})

		t.Run("apply is pure", func(t *testing.T) {
			swap := acceptedSwap(t)
			event := domain.HtlcDeployed{
				SwapEvent: domain.SwapEvent{Id: swapId, Type: domain.EventTypeHtlcDeployed},
				Side:      domain.Alpha,
				Location:  fundTxid + ":0",
			}

			next, err := swap.Apply(event)
			require.NoError(t, err)
			require.True(t, next.AlphaLedgerState.IsDeployed())
			require.True(t, swap.AlphaLedgerState.IsNotDeployed())

			_, err = next.Apply(event)
			require.ErrorIs(t, err, domain.ErrInvalidTransition)
		})
	})
}

func testSwapFromEvents(t *testing.T) {
	t.Run("from events", func(t *testing.T) {
		swap := fundedSwap(t)
		_, err := swap.Redeem(domain.Beta, domain.Transaction{Id: "0x02"}, secret)
		require.NoError(t, err)

		replayed := domain.NewSwapFromEvents(swap.Events())
		require.Equal(t, swap.Id, replayed.Id)
		require.Equal(t, swap.Role, replayed.Role)
		require.Equal(t, swap.Communication, replayed.Communication)
		require.Equal(t, swap.AlphaLedgerState, replayed.AlphaLedgerState)
		require.Equal(t, swap.BetaLedgerState, replayed.BetaLedgerState)
		require.Equal(t, uint(len(swap.Events())), replayed.Version)
	})
}

func testSwapRoundTrip(t *testing.T) {
	t.Run("serialization round trip", func(t *testing.T) {
		proposed, err := domain.NewSwap(domain.Alice, testRequest())
		require.NoError(t, err)

		declined, err := domain.NewSwap(domain.Bob, testRequest())
		require.NoError(t, err)
		_, err = declined.Decline(domain.Decline{Reason: "no liquidity"})
		require.NoError(t, err)

		redeemed := fundedSwap(t)
		_, err = redeemed.Redeem(domain.Beta, domain.Transaction{Id: "0x02", Raw: "f86c"}, secret)
		require.NoError(t, err)

		incorrectlyFunded := acceptedSwap(t)
		_, err = incorrectlyFunded.Deploy(domain.Alpha, fundTxid+":0", domain.Transaction{Id: fundTxid})
		require.NoError(t, err)
		_, err = incorrectlyFunded.Fund(domain.Alpha, domain.Transaction{Id: fundTxid}, domain.NewBitcoinAsset(1))
		require.NoError(t, err)

		for _, swap := range []*domain.Swap{
			proposed, declined, acceptedSwap(t), fundedSwap(t), redeemed, incorrectlyFunded,
		} {
			buf, err := json.Marshal(swap.Communication)
			require.NoError(t, err)
			var communication domain.SwapCommunication
			require.NoError(t, json.Unmarshal(buf, &communication))
			require.Equal(t, swap.Communication, communication)

			for _, state := range []domain.LedgerState{swap.AlphaLedgerState, swap.BetaLedgerState} {
				buf, err := json.Marshal(state)
				require.NoError(t, err)
				var ledgerState domain.LedgerState
				require.NoError(t, json.Unmarshal(buf, &ledgerState))
				require.Equal(t, state, ledgerState)
			}
		}
	})
}
