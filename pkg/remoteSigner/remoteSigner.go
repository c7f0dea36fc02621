package remoteSigner

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"fmt"

	"github.com/Layr-Labs/crypto-libs/pkg/ecdsa"
	"github.com/Layr-Labs/vault-kms-signer/pkg/digestSigner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyInfo describes a remote secp256k1 signing key.
type KeyInfo struct {
	KeyId     string
	PublicKey *cryptoEcdsa.PublicKey
	Address   common.Address
}

func NewKeyInfo(keyId string, pub *cryptoEcdsa.PublicKey) (*KeyInfo, error) {
	if pub == nil {
		return nil, fmt.Errorf("public key is nil")
	}
	pk := &ecdsa.PublicKey{
		X: pub.X,
		Y: pub.Y,
	}
	addr, err := pk.DeriveAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to derive Ethereum address from public key for key %s: %w", keyId, err)
	}
	return &KeyInfo{
		KeyId:     keyId,
		PublicKey: pub,
		Address:   common.HexToAddress(addr.String()),
	}, nil
}

// GetPublicKeyHex returns the uncompressed public key, 0x04 prefix included.
func (ki *KeyInfo) GetPublicKeyHex() string {
	return hexutil.Encode(crypto.FromECDSAPub(ki.PublicKey))
}

// GetPublicKeyHexUnprefixed returns the public key without the 0x04 prefix (64 bytes)
func (ki *KeyInfo) GetPublicKeyHexUnprefixed() string {
	return hexutil.Encode(crypto.FromECDSAPub(ki.PublicKey)[1:])
}

// IPublicKeyResolver looks up the public half of a remote key.
type IPublicKeyResolver interface {
	GetKeyInfo(ctx context.Context, keyId string) (*KeyInfo, error)
}

// IKeyCustodian is a remote signer that can also reveal its public keys.
type IKeyCustodian interface {
	digestSigner.IRemoteSigner
	IPublicKeyResolver
}
