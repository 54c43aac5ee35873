package ethereum

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Event matches a log emitted by Address. A nil topic matches any value.
type Event struct {
	Address common.Address
	Topics  []*common.Hash
}

func (e Event) matches(log *types.Log) bool {
	if log.Address != e.Address || len(log.Topics) < len(e.Topics) {
		return false
	}
	for i, topic := range e.Topics {
		if topic != nil && log.Topics[i] != *topic {
			return false
		}
	}
	return true
}

// TransactionPattern selects transactions by their fields and, when Events is
// set, by the logs found in their receipt. Unset fields match anything.
type TransactionPattern struct {
	ToAddress          *common.Address
	IsContractCreation *bool
	TransactionData    []byte
	Events             []Event
}

// NeedsReceipts uses the block bloom filter to tell whether some transaction
// of the block may have emitted the expected events.
func (p TransactionPattern) NeedsReceipts(block *types.Block) bool {
	if len(p.Events) <= 0 {
		return false
	}
	bloom := block.Bloom()
	for _, event := range p.Events {
		if !types.BloomLookup(bloom, event.Address) {
			return false
		}
		for _, topic := range event.Topics {
			if topic != nil && !types.BloomLookup(bloom, topic) {
				return false
			}
		}
	}
	return true
}

// Matches never fails, a pattern with events doesn't match without receipt.
func (p TransactionPattern) Matches(tx *types.Transaction, receipt *types.Receipt) bool {
	if p.IsContractCreation != nil && (tx.To() == nil) != *p.IsContractCreation {
		return false
	}
	if p.ToAddress != nil && (tx.To() == nil || *tx.To() != *p.ToAddress) {
		return false
	}
	if p.TransactionData != nil && !bytes.Equal(tx.Data(), p.TransactionData) {
		return false
	}
	if len(p.Events) <= 0 {
		return true
	}
	if receipt == nil || receipt.Status != types.ReceiptStatusSuccessful {
		return false
	}
	for _, event := range p.Events {
		found := false
		for _, log := range receipt.Logs {
			if event.matches(log) {
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

// DeployPattern matches the creation of the HTLC contract. For ether HTLCs
// the same transaction funds it.
func DeployPattern(params domain.HtlcParams) (*TransactionPattern, error) {
	data, err := ComputeAddress(params)
	if err != nil {
		return nil, err
	}
	isContractCreation := true
	return &TransactionPattern{
		IsContractCreation: &isContractCreation,
		TransactionData:    data,
	}, nil
}

// Erc20FundPattern matches a token transfer to the HTLC contract.
func Erc20FundPattern(params domain.HtlcParams, location domain.HtlcLocation) (*TransactionPattern, error) {
	if params.Asset.Kind != domain.Erc20Asset {
		return nil, fmt.Errorf("cannot fund %s htlc with erc20 transfer", params.Asset.Kind)
	}
	htlc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	to := common.BytesToHash(htlc.Bytes())
	transfer := TransferTopic
	return &TransactionPattern{
		Events: []Event{{
			Address: common.HexToAddress(params.Asset.Token),
			Topics:  []*common.Hash{&transfer, nil, &to},
		}},
	}, nil
}

func RedeemPattern(location domain.HtlcLocation) (*TransactionPattern, error) {
	return htlcEventPattern(location, RedeemedTopic)
}

func RefundPattern(location domain.HtlcLocation) (*TransactionPattern, error) {
	return htlcEventPattern(location, RefundedTopic)
}

func htlcEventPattern(location domain.HtlcLocation, topic common.Hash) (*TransactionPattern, error) {
	htlc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	return &TransactionPattern{
		Events: []Event{{Address: htlc, Topics: []*common.Hash{&topic}}},
	}, nil
}

// DeployedContract returns the HTLC location and, for ether HTLCs, the amount
// locked by the deploy transaction.
func DeployedContract(tx *types.Transaction, receipt *types.Receipt) (domain.HtlcLocation, domain.Asset, error) {
	if receipt == nil || receipt.ContractAddress == (common.Address{}) {
		return "", domain.Asset{}, fmt.Errorf("transaction %s did not create a contract", tx.Hash())
	}
	amount, err := domain.QuantityFromBig(tx.Value())
	if err != nil {
		return "", domain.Asset{}, err
	}
	return Location(receipt.ContractAddress), domain.NewEtherAsset(amount), nil
}

// TransferredAmount sums the tokens transferred to the HTLC in the receipt.
func TransferredAmount(
	receipt *types.Receipt, token string, location domain.HtlcLocation,
) (domain.Asset, error) {
	htlc, err := ParseLocation(location)
	if err != nil {
		return domain.Asset{}, err
	}
	tokenAddress := common.HexToAddress(token)
	to := common.BytesToHash(htlc.Bytes())

	total := new(big.Int)
	for _, log := range receipt.Logs {
		if log.Address != tokenAddress || len(log.Topics) != 3 ||
			log.Topics[0] != TransferTopic || log.Topics[2] != to {
			continue
		}
		total.Add(total, new(big.Int).SetBytes(log.Data))
	}
	amount, err := domain.QuantityFromBig(total)
	if err != nil {
		return domain.Asset{}, err
	}
	return domain.NewErc20Asset(token, amount), nil
}

// ExtractSecret reads the secret out of the Redeemed log of the HTLC.
func ExtractSecret(
	receipt *types.Receipt, location domain.HtlcLocation, secretHash domain.SecretHash,
) (domain.Secret, error) {
	htlc, err := ParseLocation(location)
	if err != nil {
		return domain.Secret{}, err
	}
	for _, log := range receipt.Logs {
		if log.Address != htlc || len(log.Topics) <= 0 || log.Topics[0] != RedeemedTopic {
			continue
		}
		if len(log.Data) != domain.SecretSize || sha256.Sum256(log.Data) != [32]byte(secretHash) {
			continue
		}
		return domain.NewSecret(log.Data)
	}
	return domain.Secret{}, fmt.Errorf("transaction %s does not reveal the secret", receipt.TxHash)
}

func ParseLocation(location domain.HtlcLocation) (common.Address, error) {
	if !common.IsHexAddress(string(location)) {
		return common.Address{}, fmt.Errorf("invalid ethereum htlc location %q", location)
	}
	return common.HexToAddress(string(location)), nil
}

func Location(addr common.Address) domain.HtlcLocation {
	return domain.HtlcLocation(strings.ToLower(addr.Hex()))
}
