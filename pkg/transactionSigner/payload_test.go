package transactionSigner

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_SigningPayload(t *testing.T) {
	chainID := big.NewInt(11155111)
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	signer := types.LatestSignerForChainID(chainID)

	t.Run("Legacy transaction hash matches the EIP-155 signer", func(t *testing.T) {
		tx := types.NewTx(&types.LegacyTx{
			Nonce:    7,
			GasPrice: big.NewInt(20_000_000_000),
			Gas:      21000,
			To:       &to,
			Value:    big.NewInt(1_000_000_000_000_000_000),
			Data:     []byte("transfer 1 ETH"),
		})

		payload, err := SigningPayload(tx, chainID)
		require.NoError(t, err)
		assert.Equal(t, signer.Hash(tx).Bytes(), crypto.Keccak256(payload))
	})

	t.Run("Dynamic fee transaction hash matches the London signer", func(t *testing.T) {
		tx := types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     3,
			GasTipCap: big.NewInt(1_500_000_000),
			GasFeeCap: big.NewInt(60_000_000_000),
			Gas:       50000,
			To:        &to,
			Value:     big.NewInt(42),
			Data:      common.FromHex("0xd0e30db0"),
			AccessList: types.AccessList{{
				Address:     to,
				StorageKeys: []common.Hash{common.HexToHash("0x01")},
			}},
		})

		payload, err := SigningPayload(tx, chainID)
		require.NoError(t, err)
		assert.Equal(t, byte(types.DynamicFeeTxType), payload[0])
		assert.Equal(t, signer.Hash(tx).Bytes(), crypto.Keccak256(payload))
	})

	t.Run("Contract creation has an empty recipient", func(t *testing.T) {
		tx := types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			GasTipCap: big.NewInt(1),
			GasFeeCap: big.NewInt(2),
			Gas:       100000,
			Data:      common.FromHex("0x600a600c600039600a6000f3602a60005260206000f3"),
		})

		payload, err := SigningPayload(tx, chainID)
		require.NoError(t, err)
		assert.Equal(t, signer.Hash(tx).Bytes(), crypto.Keccak256(payload))
	})

	t.Run("Should reject unsupported transaction types", func(t *testing.T) {
		tx := types.NewTx(&types.AccessListTx{
			ChainID:  chainID,
			GasPrice: big.NewInt(1),
			Gas:      21000,
			To:       &to,
		})
		_, err := SigningPayload(tx, chainID)
		require.Error(t, err)
	})

	t.Run("Should reject a nil chain id", func(t *testing.T) {
		tx := types.NewTx(&types.LegacyTx{To: &to, Gas: 21000, GasPrice: big.NewInt(1)})
		_, err := SigningPayload(tx, nil)
		require.Error(t, err)
	})
}
