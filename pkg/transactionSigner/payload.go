package transactionSigner

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// SigningPayload returns the unsigned transaction bytes whose keccak256 hash
// is the transaction signature hash for chainID.
func SigningPayload(tx *types.Transaction, chainID *big.Int) ([]byte, error) {
	if chainID == nil {
		return nil, fmt.Errorf("chain ID cannot be nil")
	}

	switch tx.Type() {
	case types.LegacyTxType:
		// EIP-155
		return rlp.EncodeToBytes([]interface{}{
			tx.Nonce(),
			tx.GasPrice(),
			tx.Gas(),
			tx.To(),
			tx.Value(),
			tx.Data(),
			chainID,
			uint(0),
			uint(0),
		})
	case types.DynamicFeeTxType:
		body, err := rlp.EncodeToBytes([]interface{}{
			chainID,
			tx.Nonce(),
			tx.GasTipCap(),
			tx.GasFeeCap(),
			tx.Gas(),
			tx.To(),
			tx.Value(),
			tx.Data(),
			tx.AccessList(),
		})
		if err != nil {
			return nil, err
		}
		return append([]byte{types.DynamicFeeTxType}, body...), nil
	default:
		return nil, fmt.Errorf("unsupported transaction type %d", tx.Type())
	}
}
