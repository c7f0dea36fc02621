package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence"
)

// MemoryPersistence is an in-memory implementation of ISignerPersistence.
// This implementation is intended for TESTING and local runs only.
//
// All data is lost when the process exits. Values are copied on the way in
// and out to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Signing records: id -> SigningRecord
	records map[string]*persistence.SigningRecord

	monitorState *persistence.MonitorState

	closed bool
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		records: make(map[string]*persistence.SigningRecord),
	}
}

func (m *MemoryPersistence) SaveSigningRecord(record *persistence.SigningRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil SigningRecord")
	}
	if record.Id == "" {
		return fmt.Errorf("cannot save SigningRecord without id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	cpy := *record
	m.records[record.Id] = &cpy
	return nil
}

func (m *MemoryPersistence) LoadSigningRecord(id string) (*persistence.SigningRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	record, exists := m.records[id]
	if !exists {
		return nil, nil
	}
	cpy := *record
	return &cpy, nil
}

func (m *MemoryPersistence) ListSigningRecords() ([]*persistence.SigningRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	records := make([]*persistence.SigningRecord, 0, len(m.records))
	for _, record := range m.records {
		cpy := *record
		records = append(records, &cpy)
	}
	persistence.SortSigningRecords(records)
	return records, nil
}

func (m *MemoryPersistence) DeleteSigningRecord(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	delete(m.records, id)
	return nil
}

func (m *MemoryPersistence) SaveMonitorState(state *persistence.MonitorState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil MonitorState")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	cpy := *state
	m.monitorState = &cpy
	return nil
}

func (m *MemoryPersistence) LoadMonitorState() (*persistence.MonitorState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	if m.monitorState == nil {
		return nil, nil
	}
	cpy := *m.monitorState
	return &cpy, nil
}

func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	return nil
}
