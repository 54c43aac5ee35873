package ethereum

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
)

const erc20Abi = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"Transfer","anonymous":false,
	 "inputs":[{"name":"from","type":"address","indexed":true},
	           {"name":"to","type":"address","indexed":true},
	           {"name":"value","type":"uint256","indexed":false}]}
]`

// initCodeSize is the length of the code copying the runtime code in memory
// and returning it.
const initCodeSize = 12

var (
	RedeemedTopic = crypto.Keccak256Hash([]byte("Redeemed()"))
	RefundedTopic = crypto.Keccak256Hash([]byte("Refunded()"))

	Erc20 abi.ABI
	// TransferTopic is the ERC20 Transfer(address,address,uint256) event id.
	TransferTopic common.Hash
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20Abi))
	if err != nil {
		panic(err)
	}
	Erc20 = parsed
	TransferTopic = parsed.Events["Transfer"].ID
}

// Htlc is the RFC003 ethereum HTLC. A call with exactly 32 bytes of data is a
// redeem attempt: if their sha256 matches the secret hash, the contract emits
// Redeemed(secret) and pays the redeem address. A call without data after
// expiry emits Refunded() and pays the refund address. Anything else reverts.
// Ether HTLCs are funded by the deploy transaction itself, ERC20 ones by a
// token transfer to the contract address.
type Htlc struct {
	RedeemAddress common.Address
	RefundAddress common.Address
	SecretHash    domain.SecretHash
	Expiry        domain.Timestamp
	// Token and Amount are only set for ERC20 HTLCs.
	Token  *common.Address
	Amount *big.Int
}

func NewHtlc(params domain.HtlcParams) (*Htlc, error) {
	if params.Ledger.Kind != domain.EthereumLedger {
		return nil, fmt.Errorf("cannot build ethereum htlc on %s ledger", params.Ledger)
	}
	redeem, err := ParseIdentity(params.RedeemIdentity)
	if err != nil {
		return nil, fmt.Errorf("redeem identity: %w", err)
	}
	refund, err := ParseIdentity(params.RefundIdentity)
	if err != nil {
		return nil, fmt.Errorf("refund identity: %w", err)
	}

	htlc := &Htlc{
		RedeemAddress: redeem,
		RefundAddress: refund,
		SecretHash:    params.SecretHash,
		Expiry:        params.Expiry,
	}
	switch params.Asset.Kind {
	case domain.EtherAsset:
	case domain.Erc20Asset:
		if !common.IsHexAddress(params.Asset.Token) {
			return nil, fmt.Errorf("invalid erc20 token contract %q", params.Asset.Token)
		}
		token := common.HexToAddress(params.Asset.Token)
		htlc.Token = &token
		htlc.Amount = params.Asset.Quantity.Big()
	default:
		return nil, fmt.Errorf("cannot lock %s in ethereum htlc", params.Asset.Kind)
	}
	return htlc, nil
}

func (h *Htlc) IsErc20() bool {
	return h.Token != nil
}

// DeployData is the contract creation payload, identical for both parties
// given the same parameters.
func (h *Htlc) DeployData() ([]byte, error) {
	runtime, err := h.runtimeCode()
	if err != nil {
		return nil, err
	}
	if len(runtime) > 0xffff {
		return nil, fmt.Errorf("htlc code too large")
	}

	size := []byte{byte(len(runtime) >> 8), byte(len(runtime))}
	init := newAssembler().
		push(size).
		op(vm.DUP1).
		pushByte(initCodeSize).
		pushByte(0).
		op(vm.CODECOPY).
		pushByte(0).
		op(vm.RETURN)
	initCode, err := init.assemble()
	if err != nil {
		return nil, err
	}
	return append(initCode, runtime...), nil
}

func (h *Htlc) runtimeCode() ([]byte, error) {
	a := newAssembler()

	a.op(vm.CALLDATASIZE).pushByte(0x20).op(vm.EQ).jumpIf("redeem")
	a.op(vm.CALLDATASIZE, vm.ISZERO).jumpIf("refund")
	a.label("revert").pushByte(0).op(vm.DUP1, vm.REVERT)

	a.label("refund")
	a.pushUint32(uint32(h.Expiry)).op(vm.TIMESTAMP, vm.LT).jumpIf("revert")
	h.transfer(a, h.RefundAddress)
	a.push(RefundedTopic.Bytes()).pushByte(0).op(vm.DUP1, vm.LOG1)
	a.push(h.RefundAddress.Bytes()).op(vm.SELFDESTRUCT)

	a.label("redeem")
	// mem[0x00:0x20] = secret
	a.pushByte(0x20).pushByte(0).op(vm.DUP1, vm.CALLDATACOPY)
	// mem[0x20:0x40] = sha256(secret), through the precompile at 0x02
	a.pushByte(0x20).pushByte(0x20).pushByte(0x20).pushByte(0).pushByte(0).pushByte(2).
		op(vm.GAS, vm.CALL, vm.ISZERO).jumpIf("revert")
	a.pushByte(0x20).op(vm.MLOAD).push(h.SecretHash[:]).op(vm.EQ, vm.ISZERO).jumpIf("revert")
	h.transfer(a, h.RedeemAddress)
	a.push(RedeemedTopic.Bytes()).pushByte(0x20).pushByte(0).op(vm.LOG1)
	a.push(h.RedeemAddress.Bytes()).op(vm.SELFDESTRUCT)

	return a.assemble()
}

// transfer emits a call to the token transfer(to, amount), reverting if it
// fails. mem[0x40:0x84] holds the calldata.
func (h *Htlc) transfer(a *assembler, to common.Address) {
	if !h.IsErc20() {
		return
	}
	selector := make([]byte, 32)
	copy(selector, Erc20.Methods["transfer"].ID)
	amount := common.BigToHash(h.Amount)

	a.push(selector).pushByte(0x40).op(vm.MSTORE)
	a.push(to.Bytes()).pushByte(0x44).op(vm.MSTORE)
	a.push(amount.Bytes()).pushByte(0x64).op(vm.MSTORE)
	a.pushByte(0x20).pushByte(0x40).pushByte(0x44).pushByte(0x40).pushByte(0).
		push(h.Token.Bytes()).op(vm.GAS, vm.CALL, vm.ISZERO).jumpIf("revert")
	a.pushByte(0x40).op(vm.MLOAD, vm.ISZERO).jumpIf("revert")
}

// ComputeAddress returns the deploy payload of the HTLC, the ethereum
// counterpart of a bitcoin HTLC address: the contract address itself depends
// on the deployer and is only known from the deploy receipt.
func ComputeAddress(params domain.HtlcParams) ([]byte, error) {
	htlc, err := NewHtlc(params)
	if err != nil {
		return nil, err
	}
	return htlc.DeployData()
}

// Identity is the ethereum address controlled by the given key.
func Identity(key *btcec.PrivateKey) domain.Identity {
	addr := crypto.PubkeyToAddress(key.ToECDSA().PublicKey)
	return domain.Identity(strings.ToLower(addr.Hex()))
}

func ParseIdentity(identity domain.Identity) (common.Address, error) {
	if !common.IsHexAddress(string(identity)) {
		return common.Address{}, fmt.Errorf("invalid ethereum identity %q", identity)
	}
	return common.HexToAddress(string(identity)), nil
}
