package headMonitor

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Layr-Labs/vault-kms-signer/pkg/blockHandler"
	"github.com/Layr-Labs/vault-kms-signer/pkg/config"
	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// IHeadSubscriber is the node surface the monitor needs. It requires a
// websocket or in-process connection; plain HTTP cannot subscribe.
type IHeadSubscriber interface {
	ChainID(ctx context.Context) (*big.Int, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

type Config struct {
	// OnBlock is called after each header is logged and checkpointed.
	OnBlock func(header *types.Header)
}

// HeadMonitor follows the chain head and checkpoints the last block it saw.
type HeadMonitor struct {
	client    IHeadSubscriber
	handler   *blockHandler.BlockHandler
	store     persistence.ISignerPersistence
	config    *Config
	logger    *zap.Logger
	chainId   uint64
	lastBlock atomic.Uint64
}

// NewHeadMonitor creates a monitor. store may be nil, in which case nothing is
// checkpointed.
func NewHeadMonitor(client IHeadSubscriber, store persistence.ISignerPersistence, cfg *Config, logger *zap.Logger) *HeadMonitor {
	if cfg == nil {
		cfg = &Config{}
	}
	return &HeadMonitor{
		client:  client,
		handler: blockHandler.NewBlockHandler(logger),
		store:   store,
		config:  cfg,
		logger:  logger,
	}
}

// LastBlock returns the number of the last processed header, 0 before the first.
func (m *HeadMonitor) LastBlock() uint64 {
	return m.lastBlock.Load()
}

// Run subscribes to new heads and processes them until ctx is cancelled, which
// returns nil, or the subscription fails, which returns the subscription error.
func (m *HeadMonitor) Run(ctx context.Context) error {
	chainId, err := m.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %w", err)
	}
	m.chainId = chainId.Uint64()

	if m.store != nil {
		state, err := m.store.LoadMonitorState()
		if err != nil {
			return fmt.Errorf("failed to load monitor state: %w", err)
		}
		if state != nil && state.ChainId == m.chainId {
			m.lastBlock.Store(state.LastBlockNumber)
			m.logger.Sugar().Infow("Resuming head monitor",
				"chainId", m.chainId,
				"lastBlock", state.LastBlockNumber,
			)
		}
	}

	headers := make(chan *types.Header)
	sub, err := m.client.SubscribeNewHead(ctx, headers)
	if err != nil {
		return fmt.Errorf("failed to subscribe to new heads: %w", err)
	}
	defer sub.Unsubscribe()

	listenerCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.handler.ListenToChannel(listenerCtx, m.processHeader)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	m.logger.Sugar().Infow("Watching for new blocks",
		"chainId", m.chainId,
		"chainName", string(config.GetChainName(config.ChainId(m.chainId))),
	)

	for {
		select {
		case err := <-sub.Err():
			if err == nil {
				return fmt.Errorf("head subscription closed")
			}
			return fmt.Errorf("head subscription failed: %w", err)
		case header := <-headers:
			if err := m.handler.HandleBlock(ctx, header); err != nil {
				return err
			}
		case <-ctx.Done():
			m.logger.Sugar().Info("Head monitor stopped")
			return nil
		}
	}
}

func (m *HeadMonitor) processHeader(header *types.Header) {
	m.logger.Sugar().Infof("New block: %s", header.Number.String())
	m.lastBlock.Store(header.Number.Uint64())

	if m.store != nil {
		err := m.store.SaveMonitorState(&persistence.MonitorState{
			ChainId:         m.chainId,
			LastBlockNumber: header.Number.Uint64(),
			LastBlockHash:   header.Hash().Hex(),
			UpdatedAt:       time.Now().Unix(),
		})
		if err != nil {
			m.logger.Sugar().Warnw("Failed to save monitor state",
				"block", header.Number.String(),
				"error", err,
			)
		}
	}

	if m.config.OnBlock != nil {
		m.config.OnBlock(header)
	}
}
