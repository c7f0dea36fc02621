package digestSigner

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"go.uber.org/zap"
)

// DigestSigner signs transaction payloads by hashing them locally and asking a
// remote key custody service to sign the digest. It holds no mutable state, so
// Sign may be called concurrently.
type DigestSigner struct {
	keyId            string
	hashFunction     config.HashFunction
	signingAlgorithm string
	hash             HashFunc
	remote           IRemoteSigner
	observers        []ISigningObserver
	logger           *zap.Logger
}

type Option func(*DigestSigner)

// WithObserver registers an observer that is told about every signature.
func WithObserver(observer ISigningObserver) Option {
	return func(ds *DigestSigner) {
		if observer != nil {
			ds.observers = append(ds.observers, observer)
		}
	}
}

func NewDigestSigner(cfg *config.SignerConfig, remote IRemoteSigner, logger *zap.Logger, opts ...Option) (*DigestSigner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("signer config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid signer config: %w", err)
	}
	if remote == nil {
		return nil, fmt.Errorf("remote signer cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hash, err := NewHashFunc(cfg.HashFunction)
	if err != nil {
		return nil, err
	}

	ds := &DigestSigner{
		keyId:            cfg.KeyId,
		hashFunction:     cfg.HashFunction,
		signingAlgorithm: cfg.SigningAlgorithm,
		hash:             hash,
		remote:           remote,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds, nil
}

func (ds *DigestSigner) KeyId() string {
	return ds.keyId
}

func (ds *DigestSigner) HashFunction() config.HashFunction {
	return ds.hashFunction
}

// Digest returns the hash that Sign sends for payload.
func (ds *DigestSigner) Digest(payload []byte) Digest {
	return ds.hash(payload)
}

// BuildSigningRequest hashes payload and wraps the digest in a request that
// tells the remote service not to hash it again.
func (ds *DigestSigner) BuildSigningRequest(payload []byte) (*SigningRequest, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	return &SigningRequest{
		KeyId:            ds.keyId,
		Digest:           ds.hash(payload),
		MessageType:      config.MessageType_Digest,
		SigningAlgorithm: ds.signingAlgorithm,
	}, nil
}

// Sign returns the remote signature over the digest of payload. Any remote
// failure, including an empty signature, is returned as a *RemoteServiceError.
func (ds *DigestSigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := ds.BuildSigningRequest(payload)
	if err != nil {
		return nil, err
	}

	ds.logger.Debug("Requesting remote signature",
		zap.String("keyId", req.KeyId),
		zap.String("digest", req.Digest.Hex()),
		zap.String("hashFunction", ds.hashFunction.String()),
	)

	signature, err := ds.remote.SignDigest(ctx, req)
	if err != nil {
		rse := asRemoteServiceError(req.KeyId, err)
		ds.logger.Warn("Remote signing failed",
			zap.String("keyId", req.KeyId),
			zap.String("kind", string(rse.Kind)),
			zap.Error(err),
		)
		return nil, rse
	}
	if len(signature) == 0 {
		return nil, NewRemoteServiceError(RemoteErrorKind_Malformed, req.KeyId, ErrEmptySignature)
	}

	for _, observer := range ds.observers {
		if err := observer.RecordSignature(ctx, req, signature); err != nil {
			ds.logger.Warn("Signing observer failed",
				zap.String("keyId", req.KeyId),
				zap.Error(err),
			)
		}
	}

	return signature, nil
}
