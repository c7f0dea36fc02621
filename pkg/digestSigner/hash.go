package digestSigner

import (
	"crypto/sha256"
	"fmt"

	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"github.com/ethereum/go-ethereum/crypto"
)

// HashFunc produces the 256-bit digest of a payload.
type HashFunc func(payload []byte) Digest

func Keccak256(payload []byte) Digest {
	return Digest(crypto.Keccak256Hash(payload))
}

func SHA256(payload []byte) Digest {
	return sha256.Sum256(payload)
}

func NewHashFunc(hashFunction config.HashFunction) (HashFunc, error) {
	switch hashFunction {
	case config.HashFunction_Keccak256:
		return Keccak256, nil
	case config.HashFunction_SHA256:
		return SHA256, nil
	default:
		return nil, fmt.Errorf("unsupported hash function: %s", hashFunction)
	}
}
