// Package persistencetest holds the behaviour every ISignerPersistence
// backend must share. Backend packages run it from their own tests.
package persistencetest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty backend for one subtest.
type Factory func(t *testing.T) persistence.ISignerPersistence

func NewRecord(createdAt int64) *persistence.SigningRecord {
	return &persistence.SigningRecord{
		Id:               uuid.New().String(),
		KeyId:            "alias/HSM-Key",
		Digest:           "0x2dbc6b1a8d4ad2c9d8e1f4f6a7b0c3d2e5f60718293a4b5c6d7e8f9012345678",
		HashFunction:     "keccak256",
		MessageType:      "DIGEST",
		SigningAlgorithm: "ECDSA_SHA_256",
		Signature:        "0x3044022001",
		CreatedAt:        createdAt,
	}
}

func RunSuite(t *testing.T, newBackend Factory) {
	t.Run("SaveAndLoadSigningRecord", func(t *testing.T) {
		p := newBackend(t)
		record := NewRecord(time.Now().UnixMilli())

		require.NoError(t, p.SaveSigningRecord(record))

		loaded, err := p.LoadSigningRecord(record.Id)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, record, loaded)
	})

	t.Run("LoadSigningRecord_NotFound", func(t *testing.T) {
		p := newBackend(t)
		loaded, err := p.LoadSigningRecord(uuid.New().String())
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveSigningRecord_Nil", func(t *testing.T) {
		p := newBackend(t)
		require.Error(t, p.SaveSigningRecord(nil))
		require.Error(t, p.SaveSigningRecord(&persistence.SigningRecord{KeyId: "alias/HSM-Key"}))
	})

	t.Run("SaveSigningRecord_Overwrites", func(t *testing.T) {
		p := newBackend(t)
		record := NewRecord(1)
		require.NoError(t, p.SaveSigningRecord(record))

		updated := *record
		updated.Signature = "0x3045"
		require.NoError(t, p.SaveSigningRecord(&updated))

		loaded, err := p.LoadSigningRecord(record.Id)
		require.NoError(t, err)
		assert.Equal(t, "0x3045", loaded.Signature)

		records, err := p.ListSigningRecords()
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("ListSigningRecords_Sorted", func(t *testing.T) {
		p := newBackend(t)

		records, err := p.ListSigningRecords()
		require.NoError(t, err)
		assert.Empty(t, records)

		for _, ts := range []int64{300, 100, 200} {
			require.NoError(t, p.SaveSigningRecord(NewRecord(ts)))
		}

		records, err = p.ListSigningRecords()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, int64(100), records[0].CreatedAt)
		assert.Equal(t, int64(200), records[1].CreatedAt)
		assert.Equal(t, int64(300), records[2].CreatedAt)
	})

	t.Run("ListSigningRecords_IdsMatchingInternalKeys", func(t *testing.T) {
		p := newBackend(t)

		for i, id := range []string{"index", "state", "schema_version"} {
			record := NewRecord(int64(i + 1))
			record.Id = id
			require.NoError(t, p.SaveSigningRecord(record))
		}
		require.NoError(t, p.SaveSigningRecord(NewRecord(10)))

		records, err := p.ListSigningRecords()
		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, "index", records[0].Id)

		loaded, err := p.LoadSigningRecord("index")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, int64(1), loaded.CreatedAt)
	})

	t.Run("DeleteSigningRecord", func(t *testing.T) {
		p := newBackend(t)
		record := NewRecord(1)
		require.NoError(t, p.SaveSigningRecord(record))

		require.NoError(t, p.DeleteSigningRecord(record.Id))
		loaded, err := p.LoadSigningRecord(record.Id)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		records, err := p.ListSigningRecords()
		require.NoError(t, err)
		assert.Empty(t, records)

		// idempotent
		require.NoError(t, p.DeleteSigningRecord(record.Id))
	})

	t.Run("MonitorState", func(t *testing.T) {
		p := newBackend(t)

		state, err := p.LoadMonitorState()
		require.NoError(t, err)
		assert.Nil(t, state)

		require.Error(t, p.SaveMonitorState(nil))

		original := &persistence.MonitorState{ChainId: 1337, LastBlockNumber: 10, LastBlockHash: "0x01", UpdatedAt: 1}
		require.NoError(t, p.SaveMonitorState(original))
		require.NoError(t, p.SaveMonitorState(&persistence.MonitorState{ChainId: 1337, LastBlockNumber: 11, LastBlockHash: "0x02", UpdatedAt: 2}))

		state, err = p.LoadMonitorState()
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, uint64(11), state.LastBlockNumber)
		assert.Equal(t, "0x02", state.LastBlockHash)
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		p := newBackend(t)

		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := p.SaveSigningRecord(NewRecord(int64(i))); err != nil {
					errs <- fmt.Errorf("save %d: %w", i, err)
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		records, err := p.ListSigningRecords()
		require.NoError(t, err)
		assert.Len(t, records, 20)
	})

	t.Run("HealthCheckAndClose", func(t *testing.T) {
		p := newBackend(t)
		require.NoError(t, p.HealthCheck())

		require.NoError(t, p.Close())
		require.NoError(t, p.Close(), "close is idempotent")

		require.Error(t, p.HealthCheck())
		require.Error(t, p.SaveSigningRecord(NewRecord(1)))
		_, err := p.ListSigningRecords()
		require.Error(t, err)
		_, err = p.LoadMonitorState()
		require.Error(t, err)
	})
}
