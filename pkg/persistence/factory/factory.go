package factory

import (
	"fmt"

	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence"
	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence/badger"
	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence/memory"
	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence/redis"
	"go.uber.org/zap"
)

// NewPersistence opens the backend selected by cfg.
func NewPersistence(cfg *config.PersistenceConfig, logger *zap.Logger) (persistence.ISignerPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("persistence config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid persistence config: %w", err)
	}

	switch cfg.Type {
	case config.PersistenceType_Memory:
		logger.Sugar().Warnw("Using in-memory persistence, all data will be lost on exit")
		return memory.NewMemoryPersistence(), nil
	case config.PersistenceType_Badger:
		bp, err := badger.NewBadgerPersistence(cfg.DataDir, logger)
		if err != nil {
			return nil, err
		}
		return bp, nil
	case config.PersistenceType_Redis:
		rp, err := redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		return rp, nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Type)
	}
}
