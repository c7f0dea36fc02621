package auditRecorder

import (
	"context"
	"fmt"
	"time"

	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"github.com/Layr-Labs/vault-kms-signer/pkg/digestSigner"
	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditRecorder writes one SigningRecord per signature returned by the remote key.
type AuditRecorder struct {
	store        persistence.ISignerPersistence
	hashFunction config.HashFunction
	logger       *zap.Logger
	now          func() time.Time
}

var _ digestSigner.ISigningObserver = (*AuditRecorder)(nil)

func NewAuditRecorder(store persistence.ISignerPersistence, hashFunction config.HashFunction, logger *zap.Logger) (*AuditRecorder, error) {
	if store == nil {
		return nil, fmt.Errorf("persistence cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{
		store:        store,
		hashFunction: hashFunction,
		logger:       logger,
		now:          time.Now,
	}, nil
}

func (a *AuditRecorder) RecordSignature(ctx context.Context, req *digestSigner.SigningRequest, signature []byte) error {
	if req == nil {
		return fmt.Errorf("signing request cannot be nil")
	}

	record := &persistence.SigningRecord{
		Id:               uuid.New().String(),
		KeyId:            req.KeyId,
		Digest:           req.Digest.Hex(),
		HashFunction:     a.hashFunction.String(),
		MessageType:      req.MessageType,
		SigningAlgorithm: req.SigningAlgorithm,
		Signature:        hexutil.Encode(signature),
		CreatedAt:        a.now().UnixMilli(),
	}

	if err := a.store.SaveSigningRecord(record); err != nil {
		return fmt.Errorf("failed to save signing record: %w", err)
	}

	a.logger.Debug("Recorded signature",
		zap.String("id", record.Id),
		zap.String("keyId", record.KeyId),
		zap.String("digest", record.Digest),
	)
	return nil
}
