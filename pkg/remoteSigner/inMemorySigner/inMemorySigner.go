package inMemorySigner

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"github.com/Layr-Labs/vault-kms-signer/pkg/digestSigner"
	"github.com/Layr-Labs/vault-kms-signer/pkg/ethSignature"
	"github.com/Layr-Labs/vault-kms-signer/pkg/remoteSigner"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type keyEntry struct {
	privateKey *cryptoEcdsa.PrivateKey
	keyName    string
	aliasName  string
}

// InMemorySigner stands in for the remote key custody service. It answers with
// DER signatures the same way KMS does so callers cannot tell the difference.
// Keys live in process memory only; use it for tests and local chains.
type InMemorySigner struct {
	logger   *zap.Logger
	keyStore map[string]*keyEntry // keyId -> keyEntry
	mu       sync.RWMutex
}

var _ remoteSigner.IKeyCustodian = (*InMemorySigner)(nil)

func NewInMemorySigner(logger *zap.Logger) *InMemorySigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemorySigner{
		logger:   logger,
		keyStore: make(map[string]*keyEntry),
	}
}

// GenerateKey creates a new secp256k1 key and returns its description.
func (s *InMemorySigner) GenerateKey(keyName string, aliasName string) (*remoteSigner.KeyInfo, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	keyId := fmt.Sprintf("local-key-%s", uuid.New().String())
	if err := s.LoadPrivateKey(keyId, privateKey, keyName, aliasName); err != nil {
		return nil, err
	}
	return remoteSigner.NewKeyInfo(keyId, &privateKey.PublicKey)
}

// LoadPrivateKey loads a pre-existing private key into the key store.
func (s *InMemorySigner) LoadPrivateKey(keyId string, privateKey *cryptoEcdsa.PrivateKey, keyName string, aliasName string) error {
	if privateKey == nil {
		return fmt.Errorf("private key cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keyStore[keyId]; exists {
		return fmt.Errorf("key with ID %s already exists", keyId)
	}
	if aliasName != "" {
		for _, entry := range s.keyStore {
			if entry.aliasName == aliasName {
				return fmt.Errorf("alias %s is already in use", aliasName)
			}
		}
	}

	s.keyStore[keyId] = &keyEntry{
		privateKey: privateKey,
		keyName:    keyName,
		aliasName:  aliasName,
	}

	s.logger.Info("Loaded private key into store",
		zap.String("keyId", keyId),
		zap.String("keyName", keyName),
		zap.String("aliasName", aliasName),
		zap.String("address", crypto.PubkeyToAddress(privateKey.PublicKey).Hex()),
	)
	return nil
}

// LoadPrivateKeyFromHex loads a private key from a hex string, with or without 0x.
func (s *InMemorySigner) LoadPrivateKeyFromHex(keyId string, privateKeyHex string, keyName string, aliasName string) error {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return fmt.Errorf("failed to parse private key from hex: %w", err)
	}
	return s.LoadPrivateKey(keyId, privateKey, keyName, aliasName)
}

func (s *InMemorySigner) SignDigest(ctx context.Context, req *digestSigner.SigningRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("signing request cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.MessageType != config.MessageType_Digest {
		return nil, fmt.Errorf("unsupported message type %q, only %s is supported", req.MessageType, config.MessageType_Digest)
	}
	if req.SigningAlgorithm != config.SigningAlgorithm_ECDSA_SHA_256 {
		return nil, fmt.Errorf("unsupported signing algorithm %q", req.SigningAlgorithm)
	}

	entry, err := s.lookup(req.KeyId)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(req.Digest.Bytes(), entry.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest with key %s: %w", req.KeyId, err)
	}

	der, err := ethSignature.EncodeDERSignature(
		new(big.Int).SetBytes(sig[0:32]),
		new(big.Int).SetBytes(sig[32:64]),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signature: %w", err)
	}

	s.logger.Debug("Signed digest with in-memory key",
		zap.String("keyId", req.KeyId),
		zap.String("digest", req.Digest.Hex()),
	)
	return der, nil
}

func (s *InMemorySigner) GetKeyInfo(ctx context.Context, keyId string) (*remoteSigner.KeyInfo, error) {
	entry, err := s.lookup(keyId)
	if err != nil {
		return nil, err
	}
	return remoteSigner.NewKeyInfo(keyId, &entry.privateKey.PublicKey)
}

// GetKeyCount returns the number of keys in the store.
func (s *InMemorySigner) GetKeyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keyStore)
}

// lookup resolves a key id or an "alias/<name>" reference.
func (s *InMemorySigner) lookup(keyId string) (*keyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.keyStore[keyId]; ok {
		return entry, nil
	}
	if alias, ok := strings.CutPrefix(keyId, "alias/"); ok {
		for _, entry := range s.keyStore {
			if entry.aliasName == alias {
				return entry, nil
			}
		}
	}
	return nil, digestSigner.NewRemoteServiceError(
		digestSigner.RemoteErrorKind_KeyNotFound,
		keyId,
		fmt.Errorf("key with ID %s not found", keyId),
	)
}
