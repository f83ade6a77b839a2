package blockchain

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"token-score-engine/internal/domain/entity"
	"token-score-engine/internal/domain/service"
	"token-score-engine/internal/infrastructure/logger"
)

// EIP-1967 storage slots for proxy implementation and admin addresses
const (
	eip1967ImplementationSlot = "0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc"
	eip1967AdminSlot          = "0xb53127684a568b3173ae13b9f8a6016e243e63b6e8ee1178d6a717850b5d6103"
)

// Minimal ERC20 ABI covering the calls the scorer needs
const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"owner","outputs":[{"name":"","type":"address"}],"type":"function"}
]`

var transferEventSig = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// EthereumClient provides blockchain interaction over a JSON-RPC endpoint.
// Bytecode lookups are cached per address since contract-ness never changes
// within a scoring run.
type EthereumClient struct {
	client   *ethclient.Client
	erc20ABI abi.ABI
	logger   *logger.Logger

	mu        sync.RWMutex
	codeCache map[string]bool
}

// NewEthereumClient creates a new Ethereum client connected to the RPC URL
func NewEthereumClient(rpcURL string, logger *logger.Logger) (*EthereumClient, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("chain RPC URL is not configured")
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, &service.NetworkError{Op: "rpc dial", Err: err}
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	return &EthereumClient{
		client:    client,
		erc20ABI:  parsed,
		logger:    logger.WithComponent("ethereum-client"),
		codeCache: make(map[string]bool),
	}, nil
}

// Close releases the underlying RPC connection
func (ec *EthereumClient) Close() {
	ec.client.Close()
}

// LatestBlock returns the current chain head number
func (ec *EthereumClient) LatestBlock(ctx context.Context) (uint64, error) {
	number, err := ec.client.BlockNumber(ctx)
	if err != nil {
		return 0, &service.NetworkError{Op: "eth_blockNumber", Err: err}
	}
	return number, nil
}

// Code returns the deployed bytecode at an address
func (ec *EthereumClient) Code(ctx context.Context, address string) ([]byte, error) {
	code, err := ec.client.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, &service.NetworkError{Op: "eth_getCode", Err: err}
	}
	return code, nil
}

// IsContract checks if address is a contract (has bytecode)
func (ec *EthereumClient) IsContract(ctx context.Context, address string) (bool, error) {
	key := strings.ToLower(address)

	ec.mu.RLock()
	cached, ok := ec.codeCache[key]
	ec.mu.RUnlock()
	if ok {
		return cached, nil
	}

	code, err := ec.Code(ctx, address)
	if err != nil {
		return false, err
	}

	isContract := len(code) > 0
	ec.mu.Lock()
	ec.codeCache[key] = isContract
	ec.mu.Unlock()

	return isContract, nil
}

// TransferEvents returns decoded Transfer logs for a token over an
// inclusive block range. Range-rejection errors from the RPC node pass
// through unwrapped so the caller can detect them and halve the range.
func (ec *EthereumClient) TransferEvents(ctx context.Context, tokenAddress string, fromBlock, toBlock uint64) ([]entity.AccountRecord, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{common.HexToAddress(tokenAddress)},
		Topics:    [][]common.Hash{{transferEventSig}},
	}

	logs, err := ec.client.FilterLogs(ctx, query)
	if err != nil {
		if IsRangeTooLarge(err) {
			return nil, err
		}
		return nil, &service.NetworkError{Op: "eth_getLogs", Err: err}
	}

	records := make([]entity.AccountRecord, 0, len(logs))
	for _, lg := range logs {
		record, ok := decodeTransferLog(lg)
		if !ok {
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// decodeTransferLog extracts the from/to addresses from an indexed
// Transfer log. Non-standard logs with missing topics are skipped.
func decodeTransferLog(lg types.Log) (entity.AccountRecord, bool) {
	if len(lg.Topics) < 3 {
		return entity.AccountRecord{}, false
	}

	return entity.AccountRecord{
		TxHash:      lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
		From:        strings.ToLower(common.HexToAddress(lg.Topics[1].Hex()).Hex()),
		To:          strings.ToLower(common.HexToAddress(lg.Topics[2].Hex()).Hex()),
	}, true
}

// BalanceOf returns the token balance of a holder in raw units
func (ec *EthereumClient) BalanceOf(ctx context.Context, tokenAddress, holder string) (*big.Int, error) {
	data, err := ec.erc20ABI.Pack("balanceOf", common.HexToAddress(holder))
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	output, err := ec.call(ctx, tokenAddress, data)
	if err != nil {
		return nil, err
	}
	if len(output) == 0 {
		return big.NewInt(0), nil
	}

	results, err := ec.erc20ABI.Unpack("balanceOf", output)
	if err != nil || len(results) == 0 {
		return big.NewInt(0), nil
	}

	balance, ok := results[0].(*big.Int)
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// TotalSupply returns the token's total supply in human units. Tokens
// without a readable decimals() are assumed to use 18.
func (ec *EthereumClient) TotalSupply(ctx context.Context, tokenAddress string) (float64, error) {
	data, err := ec.erc20ABI.Pack("totalSupply")
	if err != nil {
		return 0, fmt.Errorf("failed to pack totalSupply call: %w", err)
	}

	output, err := ec.call(ctx, tokenAddress, data)
	if err != nil {
		return 0, err
	}

	var supply *big.Int
	if results, err := ec.erc20ABI.Unpack("totalSupply", output); err == nil && len(results) > 0 {
		supply, _ = results[0].(*big.Int)
	}
	if supply == nil {
		return 0, nil
	}

	decimals := ec.decimals(ctx, tokenAddress)
	supplyFloat, _ := new(big.Float).SetInt(supply).Float64()
	return supplyFloat / math.Pow10(decimals), nil
}

// decimals reads the token's decimals, defaulting to 18 when unreadable
func (ec *EthereumClient) decimals(ctx context.Context, tokenAddress string) int {
	data, err := ec.erc20ABI.Pack("decimals")
	if err != nil {
		return 18
	}

	output, err := ec.call(ctx, tokenAddress, data)
	if err != nil || len(output) == 0 {
		return 18
	}

	results, err := ec.erc20ABI.Unpack("decimals", output)
	if err != nil || len(results) == 0 {
		return 18
	}

	if d, ok := results[0].(uint8); ok {
		return int(d)
	}
	return 18
}

// Owner reads the contract's owner() function. A revert or empty return
// means the function does not exist, which is reported as OwnerAbsent
// rather than an error.
func (ec *EthereumClient) Owner(ctx context.Context, tokenAddress string) (service.OwnerLookup, error) {
	data, err := ec.erc20ABI.Pack("owner")
	if err != nil {
		return service.OwnerLookup{}, fmt.Errorf("failed to pack owner call: %w", err)
	}

	output, err := ec.call(ctx, tokenAddress, data)
	if err != nil {
		if isExecutionRevert(err) {
			return service.OwnerLookup{State: service.OwnerAbsent}, nil
		}
		return service.OwnerLookup{}, err
	}
	if len(output) < 32 {
		return service.OwnerLookup{State: service.OwnerAbsent}, nil
	}

	results, err := ec.erc20ABI.Unpack("owner", output)
	if err != nil || len(results) == 0 {
		return service.OwnerLookup{State: service.OwnerAbsent}, nil
	}

	addr, ok := results[0].(common.Address)
	if !ok {
		return service.OwnerLookup{State: service.OwnerAbsent}, nil
	}

	return service.OwnerLookup{
		State:   service.OwnerPresent,
		Address: strings.ToLower(addr.Hex()),
	}, nil
}

// Proxy reads the EIP-1967 implementation and admin slots. A non-zero
// implementation slot marks the contract as a proxy.
func (ec *EthereumClient) Proxy(ctx context.Context, tokenAddress string) (service.ProxyInfo, error) {
	addr := common.HexToAddress(tokenAddress)
	info := service.ProxyInfo{}

	implSlot, err := ec.client.StorageAt(ctx, addr, common.HexToHash(eip1967ImplementationSlot), nil)
	if err != nil {
		return info, &service.NetworkError{Op: "eth_getStorageAt", Err: err}
	}
	if !isZeroSlot(implSlot) {
		info.IsProxy = true
		info.Implementation = slotAddress(implSlot)
	}

	adminSlot, err := ec.client.StorageAt(ctx, addr, common.HexToHash(eip1967AdminSlot), nil)
	if err != nil {
		return info, &service.NetworkError{Op: "eth_getStorageAt", Err: err}
	}
	if !isZeroSlot(adminSlot) {
		info.Admin = slotAddress(adminSlot)
	}

	return info, nil
}

// call performs eth_call against the token contract
func (ec *EthereumClient) call(ctx context.Context, tokenAddress string, data []byte) ([]byte, error) {
	to := common.HexToAddress(tokenAddress)
	msg := ethereum.CallMsg{To: &to, Data: data}

	output, err := ec.client.CallContract(ctx, msg, nil)
	if err != nil {
		if isExecutionRevert(err) {
			return nil, err
		}
		return nil, &service.NetworkError{Op: "eth_call", Err: err}
	}
	return output, nil
}

// IsRangeTooLarge reports whether an RPC error is the node rejecting a log
// query for spanning too many blocks. Node implementations phrase this
// differently, so matching is by substring.
func IsRangeTooLarge(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "range too large") ||
		strings.Contains(msg, "block range") ||
		strings.Contains(msg, "query returned more than") ||
		strings.Contains(msg, "limit exceeded")
}

func isExecutionRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "revert") ||
		strings.Contains(msg, "invalid opcode")
}

func isZeroSlot(slot []byte) bool {
	for _, b := range slot {
		if b != 0 {
			return false
		}
	}
	return true
}

// slotAddress extracts the address stored in the low 20 bytes of a slot
func slotAddress(slot []byte) string {
	if len(slot) < 20 {
		return ""
	}
	return strings.ToLower(common.BytesToAddress(slot[len(slot)-20:]).Hex())
}
