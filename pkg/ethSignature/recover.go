package ethSignature

import (
	cryptoEcdsa "crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NormalizeS returns the low-S form of s. Ethereum rejects signatures with s
// in the upper half of the curve order.
func NormalizeS(s *big.Int) *big.Int {
	if s.Cmp(secp256k1HalfN) > 0 {
		return new(big.Int).Sub(secp256k1N, s)
	}
	return new(big.Int).Set(s)
}

// RecoverableSignature converts a DER signature over digest into the 65 byte
// [R || S || V] form with V in {0, 1}. The recovery id is picked by checking
// which candidate recovers the expected public key.
func RecoverableSignature(derSig []byte, digest []byte, expected *cryptoEcdsa.PublicKey) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("hash must be exactly 32 bytes, got %d", len(digest))
	}
	if expected == nil {
		return nil, fmt.Errorf("expected public key cannot be nil")
	}

	r, s, err := ParseDERSignature(derSig)
	if err != nil {
		return nil, err
	}
	s = NormalizeS(s)

	signature := make([]byte, crypto.SignatureLength)
	r.FillBytes(signature[0:32])
	s.FillBytes(signature[32:64])

	expectedBytes := crypto.FromECDSAPub(expected)
	for recoveryId := byte(0); recoveryId < 2; recoveryId++ {
		signature[64] = recoveryId

		recovered, err := crypto.Ecrecover(digest, signature)
		if err != nil {
			continue
		}
		if string(recovered) == string(expectedBytes) {
			return signature, nil
		}
	}

	return nil, fmt.Errorf("could not determine valid recovery ID - signature recovery failed")
}

// ToEthereumV returns a copy of sig with V shifted into the 27/28 range used by
// eth_sign style signatures.
func ToEthereumV(sig []byte) ([]byte, error) {
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	out := make([]byte, crypto.SignatureLength)
	copy(out, sig)
	if out[64] < 27 {
		out[64] += 27
	}
	return out, nil
}

// RecoverAddress returns the address that produced sig over digest.
func RecoverAddress(digest []byte, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
