package transactionSigner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"github.com/Layr-Labs/vault-kms-signer/pkg/digestSigner"
	"github.com/Layr-Labs/vault-kms-signer/pkg/ethSignature"
	"github.com/Layr-Labs/vault-kms-signer/pkg/remoteSigner"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// KMSTransactionSigner implements ITransactionSigner with a key held by a
// remote custody service. The private key is never available locally.
type KMSTransactionSigner struct {
	ethClient    IEthBackend
	logger       *zap.Logger
	chainID      *big.Int
	signer       types.Signer
	digestSigner *digestSigner.DigestSigner
	keyInfo      *remoteSigner.KeyInfo
	feeParams    *config.FeeParams
}

var _ ITransactionSigner = (*KMSTransactionSigner)(nil)

func NewKMSTransactionSigner(
	ctx context.Context,
	ds *digestSigner.DigestSigner,
	resolver remoteSigner.IPublicKeyResolver,
	ethClient IEthBackend,
	logger *zap.Logger,
) (*KMSTransactionSigner, error) {
	if ds == nil {
		return nil, fmt.Errorf("digest signer cannot be nil")
	}
	// Ethereum signature hashes are keccak256, anything else would never verify
	if ds.HashFunction() != config.HashFunction_Keccak256 {
		return nil, fmt.Errorf("transaction signing requires %s digests, got %s", config.HashFunction_Keccak256, ds.HashFunction())
	}

	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	keyInfo, err := resolver.GetKeyInfo(ctx, ds.KeyId())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve public key for %s: %w", ds.KeyId(), err)
	}

	chainId := config.ChainId(chainID.Uint64())
	if !config.IsKnownChain(chainId) {
		logger.Sugar().Warnw("Unknown chain, using default fee parameters",
			"chainId", chainID.String(),
			"supported", config.GetSupportedChainIDsString(),
		)
	}

	logger.Sugar().Infow("Using remote signing key",
		"keyId", keyInfo.KeyId,
		"address", keyInfo.Address.Hex(),
		"chainId", chainID.String(),
		"chainName", string(config.GetChainName(chainId)),
	)

	return &KMSTransactionSigner{
		ethClient:    ethClient,
		logger:       logger,
		chainID:      chainID,
		signer:       types.LatestSignerForChainID(chainID),
		digestSigner: ds,
		keyInfo:      keyInfo,
		feeParams:    config.GetFeeParamsForChain(chainId),
	}, nil
}

// GetTransactOpts returns options that build transactions without signing or
// sending them. Signing happens in SignAndSendTransaction.
func (ks *KMSTransactionSigner) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{
		From:    ks.keyInfo.Address,
		Context: ctx,
		NoSend:  true,
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			return tx, nil
		},
	}, nil
}

// GetSigningTransactOpts returns options whose Signer signs through the remote
// key, for bindings that send transactions themselves.
func (ks *KMSTransactionSigner) GetSigningTransactOpts(ctx context.Context) *bind.TransactOpts {
	return &bind.TransactOpts{
		From:    ks.keyInfo.Address,
		Context: ctx,
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if address != ks.keyInfo.Address {
				return nil, bind.ErrNotAuthorized
			}
			return ks.SignTransaction(ctx, tx)
		},
	}
}

func (ks *KMSTransactionSigner) GetFromAddress() common.Address {
	return ks.keyInfo.Address
}

func (ks *KMSTransactionSigner) ChainID() *big.Int {
	return new(big.Int).Set(ks.chainID)
}

// SignTransaction signs tx through the digest signer and checks that the
// resulting sender is the remote key's address.
func (ks *KMSTransactionSigner) SignTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	payload, err := SigningPayload(tx, ks.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build signing payload: %w", err)
	}

	derSig, err := ks.digestSigner.Sign(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	digest := ks.digestSigner.Digest(payload)
	sig, err := ethSignature.RecoverableSignature(derSig, digest.Bytes(), ks.keyInfo.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert remote signature: %w", err)
	}

	signedTx, err := tx.WithSignature(ks.signer, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to attach signature: %w", err)
	}

	sender, err := types.Sender(ks.signer, signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender: %w", err)
	}
	if sender != ks.keyInfo.Address {
		return nil, fmt.Errorf("signed transaction sender %s does not match key address %s", sender.Hex(), ks.keyInfo.Address.Hex())
	}
	return signedTx, nil
}

// PrepareTransaction turns a template transaction (to, value, data) into an
// EIP-1559 transaction with fresh fees, gas limit and nonce.
func (ks *KMSTransactionSigner) PrepareTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	gasTipCap, err := ks.ethClient.SuggestGasTipCap(ctx)
	if err != nil {
		// the backend may not support eth_maxPriorityFeePerGas
		ks.logger.Sugar().Warnw("PrepareTransaction: cannot get gasTipCap, using fallback",
			zap.Error(err),
		)
		gasTipCap = new(big.Int).Set(ks.feeParams.FallbackGasTipCap)
	}

	header, err := ks.ethClient.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest block header: %w", err)
	}
	if header.BaseFee == nil {
		return nil, fmt.Errorf("chain does not support EIP-1559 base fees")
	}

	maxFeePerGas := new(big.Int).Add(
		new(big.Int).Mul(header.BaseFee, big.NewInt(ks.feeParams.BaseFeeMultiplier)),
		gasTipCap,
	)

	gasLimit, err := ks.ethClient.EstimateGas(ctx, ethereum.CallMsg{
		From:      ks.keyInfo.Address,
		To:        tx.To(),
		GasTipCap: gasTipCap,
		GasFeeCap: maxFeePerGas,
		Value:     tx.Value(),
		Data:      tx.Data(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	// The incoming nonce is ignored: 0 is valid and cannot be told apart from "unset"
	nonce, err := ks.ethClient.PendingNonceAt(ctx, ks.keyInfo.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   ks.chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: maxFeePerGas,
		Gas:       addGasBuffer(gasLimit),
		To:        tx.To(),
		Value:     tx.Value(),
		Data:      tx.Data(),
	}), nil
}

// SignAndSendTransaction prepares, signs and sends tx, then waits for it to be
// mined. Nothing is sent unless the remote signature was obtained and verified.
func (ks *KMSTransactionSigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	prepared, err := ks.PrepareTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}

	ks.logger.Info("SignAndSendTransaction: signing transaction",
		zap.String("to", toString(prepared.To())),
		zap.String("maxPriorityFeePerGas", prepared.GasTipCap().String()),
		zap.String("maxFeePerGas", prepared.GasFeeCap().String()),
		zap.Uint64("gasLimit", prepared.Gas()),
		zap.Uint64("nonce", prepared.Nonce()),
	)

	signedTx, err := ks.SignTransaction(ctx, prepared)
	if err != nil {
		return nil, err
	}

	if err := ks.ethClient.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	ks.logger.Info("SignAndSendTransaction: transaction sent",
		zap.String("txHash", signedTx.Hash().Hex()),
	)

	receipt, err := bind.WaitMined(ctx, ks.ethClient, signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction receipt: %w", err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		ks.logger.Error("SignAndSendTransaction: transaction failed",
			zap.String("txHash", receipt.TxHash.Hex()),
			zap.Uint64("status", receipt.Status),
			zap.Uint64("gasUsed", receipt.GasUsed),
		)
		return receipt, fmt.Errorf("transaction %s failed with status %d", receipt.TxHash.Hex(), receipt.Status)
	}

	ks.logger.Info("SignAndSendTransaction: transaction succeeded",
		zap.String("txHash", receipt.TxHash.Hex()),
		zap.Uint64("gasUsed", receipt.GasUsed),
		zap.Uint64("blockNumber", receipt.BlockNumber.Uint64()),
	)

	return receipt, nil
}

// addGasBuffer adds 20% on top of the estimate
func addGasBuffer(gasLimit uint64) uint64 {
	return gasLimit + gasLimit/5
}

func toString(addr *common.Address) string {
	if addr == nil {
		return "contract creation"
	}
	return addr.Hex()
}
