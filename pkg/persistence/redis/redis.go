package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixSigningRecord = "vault-signer:signing:"
	keyMonitorState        = "vault-signer:monitor:state"
	keySchemaVersion       = "vault-signer:metadata:schema_version"
	currentSchemaVersion   = "v1"

	// Sorted set of record ids scored by CreatedAt, used for listing
	keyIndexSigningRecords = "vault-signer:index:signing"

	operationTimeout = 5 * time.Second
)

var errClosed = errors.New("persistence layer is closed")

// RedisPersistence stores state in Redis so several signer processes can share it.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "staging:" gives
	// "staging:vault-signer:signing:<id>".
	KeyPrefix string
}

func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisPersistence) signingRecordKey(id string) string {
	return r.prefixKey(keyPrefixSigningRecord + id)
}

func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	// SETNX keeps concurrent first starts from racing
	if err := r.client.SetNX(ctx, schemaKey, currentSchemaVersion, 0).Err(); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

func (r *RedisPersistence) SaveSigningRecord(record *persistence.SigningRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil SigningRecord")
	}
	if record.Id == "" {
		return fmt.Errorf("cannot save SigningRecord without id")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return errClosed
	}

	data, err := persistence.MarshalSigningRecord(record)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.signingRecordKey(record.Id), data, 0)
		pipe.ZAdd(ctx, r.prefixKey(keyIndexSigningRecords), redis.Z{
			Score:  float64(record.CreatedAt),
			Member: record.Id,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save SigningRecord: %w", err)
	}
	return nil
}

func (r *RedisPersistence) LoadSigningRecord(id string) (*persistence.SigningRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, errClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.signingRecordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load SigningRecord: %w", err)
	}
	return persistence.UnmarshalSigningRecord(data)
}

func (r *RedisPersistence) ListSigningRecords() ([]*persistence.SigningRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, errClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	indexKey := r.prefixKey(keyIndexSigningRecords)
	ids, err := r.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list SigningRecord ids: %w", err)
	}

	records := []*persistence.SigningRecord{}
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.signingRecordKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch SigningRecords: %w", err)
	}

	for i, val := range values {
		if val == nil {
			// in the index but gone, clean up
			r.client.ZRem(ctx, indexKey, ids[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for SigningRecord", "key", keys[i])
			continue
		}

		record, err := persistence.UnmarshalSigningRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal SigningRecord, skipping",
				"key", keys[i], "error", err)
			continue
		}
		records = append(records, record)
	}

	persistence.SortSigningRecords(records)
	return records, nil
}

func (r *RedisPersistence) DeleteSigningRecord(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return errClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.signingRecordKey(id))
		pipe.ZRem(ctx, r.prefixKey(keyIndexSigningRecords), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete SigningRecord: %w", err)
	}
	return nil
}

func (r *RedisPersistence) SaveMonitorState(state *persistence.MonitorState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil MonitorState")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return errClosed
	}

	data, err := persistence.MarshalMonitorState(state)
	if err != nil {
		return fmt.Errorf("failed to marshal MonitorState: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.prefixKey(keyMonitorState), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save MonitorState: %w", err)
	}
	return nil
}

func (r *RedisPersistence) LoadMonitorState() (*persistence.MonitorState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, errClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.prefixKey(keyMonitorState)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load MonitorState: %w", err)
	}
	return persistence.UnmarshalMonitorState(data)
}

func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return errClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	return nil
}
