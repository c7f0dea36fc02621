package ethSignature

import (
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// secp256k1 curve order, used for range checks and low-S normalisation
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)

	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1      = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// ECDSA-Sig-Value as returned by KMS
type asn1EcSig struct {
	R *big.Int
	S *big.Int
}

// SubjectPublicKeyInfo as returned by KMS GetPublicKey
type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// ParseDERSignature decodes an ASN.1 DER ECDSA signature into r and s.
func ParseDERSignature(der []byte) (*big.Int, *big.Int, error) {
	var sig asn1EcSig
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse ASN.1 signature: %w", err)
	}
	if len(rest) != 0 {
		return nil, nil, fmt.Errorf("trailing data after ASN.1 signature: %d bytes", len(rest))
	}
	if sig.R == nil || sig.R.Sign() <= 0 || sig.R.Cmp(secp256k1N) >= 0 {
		return nil, nil, fmt.Errorf("signature r is out of range")
	}
	if sig.S == nil || sig.S.Sign() <= 0 || sig.S.Cmp(secp256k1N) >= 0 {
		return nil, nil, fmt.Errorf("signature s is out of range")
	}
	return sig.R, sig.S, nil
}

// EncodeDERSignature encodes r and s as an ASN.1 DER ECDSA signature.
func EncodeDERSignature(r, s *big.Int) ([]byte, error) {
	if r == nil || s == nil {
		return nil, fmt.Errorf("r and s cannot be nil")
	}
	return asn1.Marshal(asn1EcSig{R: r, S: s})
}

// ParseDERPublicKey parses the DER-encoded public key returned by KMS.
func ParseDERPublicKey(der []byte) (*cryptoEcdsa.PublicKey, error) {
	var pub asn1EcPublicKey
	_, err := asn1.Unmarshal(der, &pub)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	if !pub.EcPublicKeyInfo.Parameters.Equal(oidSecp256k1) {
		return nil, fmt.Errorf("public key is not on secp256k1: curve %s", pub.EcPublicKeyInfo.Parameters.String())
	}

	return crypto.UnmarshalPubkey(pub.PublicKey.Bytes)
}

// EncodeDERPublicKey encodes a secp256k1 public key the same way KMS does.
func EncodeDERPublicKey(pub *cryptoEcdsa.PublicKey) ([]byte, error) {
	if pub == nil {
		return nil, fmt.Errorf("public key cannot be nil")
	}
	raw := crypto.FromECDSAPub(pub)
	return asn1.Marshal(asn1EcPublicKey{
		EcPublicKeyInfo: asn1EcPublicKeyInfo{
			Algorithm:  oidPublicKeyECDSA,
			Parameters: oidSecp256k1,
		},
		PublicKey: asn1.BitString{
			Bytes:     raw,
			BitLength: len(raw) * 8,
		},
	})
}
