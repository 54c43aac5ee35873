package ethereum

import (
	"fmt"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
)

const (
	EtherHtlcDeployGasLimit = 121_000
	Erc20HtlcDeployGasLimit = 167_800
	Erc20TransferGasLimit   = 100_000
	HtlcRedeemGasLimit      = 100_000
	HtlcRefundGasLimit      = 100_000
)

// DeployContract creates a contract sending Amount wei along.
type DeployContract struct {
	Data     []byte
	Amount   domain.Quantity
	GasLimit uint64
	ChainId  uint64
}

// CallContract calls To with Data. MinBlockTimestamp, when set, is the first
// block time the call can succeed at.
type CallContract struct {
	To                common.Address
	Data              []byte
	GasLimit          uint64
	ChainId           uint64
	MinBlockTimestamp *int64
}

// DeployAction deploys the HTLC. For ether HTLCs the deploy transaction also
// funds it.
func DeployAction(params domain.HtlcParams) (*DeployContract, error) {
	htlc, err := NewHtlc(params)
	if err != nil {
		return nil, err
	}
	data, err := htlc.DeployData()
	if err != nil {
		return nil, err
	}
	if htlc.IsErc20() {
		return &DeployContract{
			Data:     data,
			GasLimit: Erc20HtlcDeployGasLimit,
			ChainId:  params.Ledger.ChainId,
		}, nil
	}
	return &DeployContract{
		Data:     data,
		Amount:   params.Asset.Quantity,
		GasLimit: EtherHtlcDeployGasLimit,
		ChainId:  params.Ledger.ChainId,
	}, nil
}

// Erc20FundAction transfers the swapped tokens to the deployed HTLC.
func Erc20FundAction(params domain.HtlcParams, location domain.HtlcLocation) (*CallContract, error) {
	if params.Asset.Kind != domain.Erc20Asset {
		return nil, fmt.Errorf("cannot fund %s htlc with erc20 transfer", params.Asset.Kind)
	}
	htlc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	data, err := Erc20.Pack("transfer", htlc, params.Asset.Quantity.Big())
	if err != nil {
		return nil, fmt.Errorf("failed to encode erc20 transfer: %s", err)
	}
	return &CallContract{
		To:       common.HexToAddress(params.Asset.Token),
		Data:     data,
		GasLimit: Erc20TransferGasLimit,
		ChainId:  params.Ledger.ChainId,
	}, nil
}

func RedeemAction(
	params domain.HtlcParams, location domain.HtlcLocation, secret domain.Secret,
) (*CallContract, error) {
	htlc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	raw := secret.IntoRawSecret()
	return &CallContract{
		To:       htlc,
		Data:     raw[:],
		GasLimit: HtlcRedeemGasLimit,
		ChainId:  params.Ledger.ChainId,
	}, nil
}

func RefundAction(params domain.HtlcParams, location domain.HtlcLocation) (*CallContract, error) {
	htlc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	expiry := int64(params.Expiry)
	return &CallContract{
		To:                htlc,
		Data:              []byte{},
		GasLimit:          HtlcRefundGasLimit,
		ChainId:           params.Ledger.ChainId,
		MinBlockTimestamp: &expiry,
	}, nil
}
