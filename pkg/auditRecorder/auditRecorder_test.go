package auditRecorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"github.com/Layr-Labs/vault-kms-signer/pkg/digestSigner"
	"github.com/Layr-Labs/vault-kms-signer/pkg/logger"
	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence"
	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence/memory"
	"github.com/Layr-Labs/vault-kms-signer/pkg/remoteSigner/inMemorySigner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*memory.MemoryPersistence
}

func (f *failingStore) SaveSigningRecord(*persistence.SigningRecord) error {
	return errors.New("disk full")
}

func Test_AuditRecorder(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	newSigner := func(t *testing.T, store persistence.ISignerPersistence) *digestSigner.DigestSigner {
		custody := inMemorySigner.NewInMemorySigner(l)
		_, err := custody.GenerateKey("audited", "HSM-Key")
		require.NoError(t, err)

		cfg := config.NewDefaultSignerConfig()
		recorder, err := NewAuditRecorder(store, cfg.HashFunction, l)
		require.NoError(t, err)
		recorder.now = func() time.Time { return time.UnixMilli(1700000000000) }

		ds, err := digestSigner.NewDigestSigner(cfg, custody, l, digestSigner.WithObserver(recorder))
		require.NoError(t, err)
		return ds
	}

	t.Run("Should record every signature", func(t *testing.T) {
		store := memory.NewMemoryPersistence()
		ds := newSigner(t, store)

		payload := []byte("transfer 1 ETH")
		sig, err := ds.Sign(context.Background(), payload)
		require.NoError(t, err)

		records, err := store.ListSigningRecords()
		require.NoError(t, err)
		require.Len(t, records, 1)

		record := records[0]
		assert.NotEmpty(t, record.Id)
		assert.Equal(t, "alias/HSM-Key", record.KeyId)
		assert.Equal(t, ds.Digest(payload).Hex(), record.Digest)
		assert.Equal(t, "keccak256", record.HashFunction)
		assert.Equal(t, config.MessageType_Digest, record.MessageType)
		assert.Equal(t, config.SigningAlgorithm_ECDSA_SHA_256, record.SigningAlgorithm)
		assert.Equal(t, int64(1700000000000), record.CreatedAt)
		assert.Len(t, record.Signature, 2+2*len(sig))
		assert.NotContains(t, record.Digest, "transfer")
	})

	t.Run("Should not record failed signatures", func(t *testing.T) {
		store := memory.NewMemoryPersistence()
		ds := newSigner(t, store)

		_, err := ds.Sign(context.Background(), nil)
		require.Error(t, err)

		records, err := store.ListSigningRecords()
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("Storage failures do not fail signing", func(t *testing.T) {
		ds := newSigner(t, &failingStore{MemoryPersistence: memory.NewMemoryPersistence()})

		sig, err := ds.Sign(context.Background(), []byte("transfer 1 ETH"))
		require.NoError(t, err)
		assert.NotEmpty(t, sig)
	})

	t.Run("Should require a store", func(t *testing.T) {
		_, err := NewAuditRecorder(nil, config.HashFunction_Keccak256, l)
		require.Error(t, err)
	})
}
