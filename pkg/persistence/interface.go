package persistence

// ISignerPersistence stores the signing audit trail and the chain monitor
// checkpoint. All implementations must be thread-safe; signatures are produced
// concurrently.
//
// The interface supports:
// - Signing records (save, load, list, delete)
// - Monitor state (last processed block)
// - Lifecycle management (close, health check)
type ISignerPersistence interface {
	// Signing Records

	// SaveSigningRecord persists a record indexed by its Id.
	// Overwrites any existing record with the same Id.
	SaveSigningRecord(record *SigningRecord) error

	// LoadSigningRecord retrieves a record by Id.
	// Returns nil if the record doesn't exist, error only on storage failure.
	LoadSigningRecord(id string) (*SigningRecord, error)

	// ListSigningRecords returns all records sorted by CreatedAt (ascending).
	// Returns empty slice if no records exist, error only on storage failure.
	ListSigningRecords() ([]*SigningRecord, error)

	// DeleteSigningRecord removes a record by Id.
	// Idempotent - returns nil if the record doesn't exist.
	DeleteSigningRecord(id string) error

	// Monitor State

	// SaveMonitorState persists the chain head monitor checkpoint.
	// Overwrites any existing state.
	SaveMonitorState(state *MonitorState) error

	// LoadMonitorState retrieves the monitor checkpoint.
	// Returns nil state if none exists (first run), error only on storage failure.
	LoadMonitorState() (*MonitorState, error)

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	HealthCheck() error
}
