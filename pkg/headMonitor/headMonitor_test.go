package headMonitor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/vault-kms-signer/internal/tests"
	"github.com/Layr-Labs/vault-kms-signer/pkg/logger"
	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence"
	"github.com/Layr-Labs/vault-kms-signer/pkg/persistence/memory"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// brokenSubscriber accepts the subscription and then fails it.
type brokenSubscriber struct {
	subscribeErr error
}

func (b *brokenSubscriber) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(11155111), nil
}

func (b *brokenSubscriber) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		select {
		case ch <- &types.Header{Number: big.NewInt(1)}:
		case <-quit:
			return nil
		}
		return errors.New("websocket: close 1006 (abnormal closure)")
	}), nil
}

func Test_HeadMonitor(t *testing.T) {
	t.Run("Should log and checkpoint new blocks", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		l := zap.New(core)

		chain := tests.NewSimulatedChain(t, 50*time.Millisecond)
		store := memory.NewMemoryPersistence()

		var mu sync.Mutex
		var seen []uint64
		reached := make(chan struct{})
		m := NewHeadMonitor(chain.Client, store, &Config{
			OnBlock: func(header *types.Header) {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, header.Number.Uint64())
				if len(seen) == 3 {
					close(reached)
				}
			},
		}, l)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		runErr := make(chan error, 1)
		go func() { runErr <- m.Run(ctx) }()

		select {
		case <-reached:
		case <-ctx.Done():
			t.Fatal("timed out waiting for blocks")
		}
		cancel()
		require.NoError(t, <-runErr)

		mu.Lock()
		defer mu.Unlock()
		for i := 1; i < len(seen); i++ {
			assert.Greater(t, seen[i], seen[i-1])
		}

		state, err := store.LoadMonitorState()
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, uint64(1337), state.ChainId)
		assert.Equal(t, m.LastBlock(), state.LastBlockNumber)
		assert.GreaterOrEqual(t, state.LastBlockNumber, seen[2])

		assert.GreaterOrEqual(t, logs.FilterMessageSnippet("New block: ").Len(), 3)

		watching := logs.FilterMessage("Watching for new blocks").All()
		require.Len(t, watching, 1)
		assert.Equal(t, "simulated", watching[0].ContextMap()["chainName"])
	})

	t.Run("Should resume from the stored checkpoint", func(t *testing.T) {
		store := memory.NewMemoryPersistence()
		require.NoError(t, store.SaveMonitorState(&persistence.MonitorState{ChainId: 11155111, LastBlockNumber: 77}))

		m := NewHeadMonitor(&brokenSubscriber{subscribeErr: errors.New("notifications not supported")}, store, nil, zap.NewNop())
		err := m.Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, uint64(77), m.LastBlock())
	})

	t.Run("Should ignore a checkpoint from another chain", func(t *testing.T) {
		store := memory.NewMemoryPersistence()
		require.NoError(t, store.SaveMonitorState(&persistence.MonitorState{ChainId: 1, LastBlockNumber: 77}))

		m := NewHeadMonitor(&brokenSubscriber{subscribeErr: errors.New("notifications not supported")}, store, nil, zap.NewNop())
		require.Error(t, m.Run(context.Background()))
		assert.Equal(t, uint64(0), m.LastBlock())
	})

	t.Run("Should return the subscription error", func(t *testing.T) {
		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: true})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		m := NewHeadMonitor(&brokenSubscriber{}, nil, nil, l)
		err = m.Run(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "abnormal closure")
	})
}
