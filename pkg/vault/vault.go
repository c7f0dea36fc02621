package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/vault-kms-signer/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// VaultMetaData contains the interface of the Vault contract.
var VaultMetaData = &bind.MetaData{
	ABI: "[{\"inputs\":[{\"internalType\":\"address\",\"name\":\"\",\"type\":\"address\"}],\"name\":\"balances\",\"outputs\":[{\"internalType\":\"uint256\",\"name\":\"\",\"type\":\"uint256\"}],\"stateMutability\":\"view\",\"type\":\"function\"},{\"inputs\":[],\"name\":\"deposit\",\"outputs\":[],\"stateMutability\":\"payable\",\"type\":\"function\"},{\"inputs\":[{\"internalType\":\"uint256\",\"name\":\"amount\",\"type\":\"uint256\"}],\"name\":\"withdraw\",\"outputs\":[],\"stateMutability\":\"nonpayable\",\"type\":\"function\"}]",
}

const (
	methodDeposit  = "deposit"
	methodWithdraw = "withdraw"
	methodBalances = "balances"
)

var ErrInvalidAmount = errors.New("amount must be greater than zero")

// Client operates a deployed Vault. Every state-changing call is signed by the
// transaction signer, so with a KMS signer the key never leaves the HSM.
type Client struct {
	address  common.Address
	contract *bind.BoundContract
	signer   transactionSigner.ITransactionSigner
	logger   *zap.Logger
}

// NewClient binds to a Vault already deployed at address.
func NewClient(
	address common.Address,
	signer transactionSigner.ITransactionSigner,
	backend bind.ContractBackend,
	logger *zap.Logger,
) (*Client, error) {
	parsed, err := VaultMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("failed to parse vault abi: %w", err)
	}
	return newClient(address, *parsed, signer, backend, logger), nil
}

func newClient(address common.Address, parsed abi.ABI, signer transactionSigner.ITransactionSigner, backend bind.ContractBackend, logger *zap.Logger) *Client {
	return &Client{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		signer:   signer,
		logger:   logger,
	}
}

// Deploy creates a new Vault from the compiled artifact and waits for it to be mined.
func Deploy(
	ctx context.Context,
	artifact *Artifact,
	signer transactionSigner.ITransactionSigner,
	backend bind.ContractBackend,
	logger *zap.Logger,
) (*Client, *types.Receipt, error) {
	if artifact == nil {
		return nil, nil, fmt.Errorf("artifact cannot be nil")
	}

	opts, err := signer.GetTransactOpts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get transact opts: %w", err)
	}

	_, tx, _, err := bind.DeployContract(opts, artifact.ABI, artifact.Bytecode, backend)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build deployment transaction: %w", err)
	}

	logger.Sugar().Infow("Deploying contract",
		"contract", artifact.ContractName,
		"deployer", signer.GetFromAddress().Hex(),
	)

	receipt, err := signer.SignAndSendTransaction(ctx, tx)
	if err != nil {
		return nil, receipt, fmt.Errorf("failed to deploy %s: %w", artifact.ContractName, err)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return nil, receipt, fmt.Errorf("receipt for %s has no contract address", receipt.TxHash.Hex())
	}

	logger.Sugar().Infow("Vault deployed",
		"address", receipt.ContractAddress.Hex(),
		"txHash", receipt.TxHash.Hex(),
		"blockNumber", receipt.BlockNumber.Uint64(),
	)

	return newClient(receipt.ContractAddress, artifact.ABI, signer, backend, logger), receipt, nil
}

func (c *Client) Address() common.Address {
	return c.address
}

// Deposit sends amount wei to the vault, crediting the signer's balance.
func (c *Client) Deposit(ctx context.Context, amount *big.Int) (*types.Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return c.transact(ctx, amount, methodDeposit)
}

// Withdraw takes amount wei out of the signer's balance.
func (c *Client) Withdraw(ctx context.Context, amount *big.Int) (*types.Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return c.transact(ctx, nil, methodWithdraw, amount)
}

// Balances returns the amount account holds in the vault.
func (c *Client) Balances(ctx context.Context, account common.Address) (*big.Int, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodBalances, account)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", methodBalances, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected %s output length %d", methodBalances, len(out))
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *Client) transact(ctx context.Context, value *big.Int, method string, params ...interface{}) (*types.Receipt, error) {
	opts, err := c.signer.GetTransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transact opts: %w", err)
	}
	opts.Value = value

	tx, err := c.contract.Transact(opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s transaction: %w", method, err)
	}

	c.logger.Sugar().Infow("Sending vault transaction",
		"method", method,
		"vault", c.address.Hex(),
		"value", valueString(value),
	)

	receipt, err := c.signer.SignAndSendTransaction(ctx, tx)
	if err != nil {
		return receipt, fmt.Errorf("%s failed: %w", method, err)
	}
	return receipt, nil
}

func valueString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
