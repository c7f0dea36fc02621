package blockHandler

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func Test_BlockHandler(t *testing.T) {
	t.Run("DeliversBlocksInOrder", func(t *testing.T) {
		logger, _ := zap.NewDevelopment()
		bh := NewBlockHandler(logger)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var receivedBlocks []uint64
		var mu sync.Mutex
		done := make(chan struct{})

		testBlocks := []uint64{1, 2, 5, 10, 15}

		go bh.ListenToChannel(ctx, func(header *types.Header) {
			mu.Lock()
			defer mu.Unlock()
			receivedBlocks = append(receivedBlocks, header.Number.Uint64())
			if len(receivedBlocks) == len(testBlocks) {
				close(done)
			}
		})

		for _, blockNum := range testBlocks {
			err := bh.HandleBlock(ctx, &types.Header{Number: new(big.Int).SetUint64(blockNum)})
			require.NoError(t, err)
		}

		select {
		case <-done:
		case <-ctx.Done():
			t.Fatal("timed out waiting for blocks")
		}

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, testBlocks, receivedBlocks)
	})

	t.Run("DropsBlocksWhenFull", func(t *testing.T) {
		bh := NewBlockHandler(zap.NewNop())
		ctx := context.Background()

		for i := 0; i < cap(bh.BlockChannel)+10; i++ {
			require.NoError(t, bh.HandleBlock(ctx, &types.Header{Number: big.NewInt(int64(i))}))
		}
		assert.Equal(t, cap(bh.BlockChannel), len(bh.BlockChannel))

		first := <-bh.BlockChannel
		assert.Equal(t, uint64(0), first.Number.Uint64())
	})

	t.Run("ListenerExitsOnCancel", func(t *testing.T) {
		bh := NewBlockHandler(zap.NewNop())
		ctx, cancel := context.WithCancel(context.Background())

		exited := make(chan struct{})
		go func() {
			bh.ListenToChannel(ctx, func(*types.Header) {})
			close(exited)
		}()

		cancel()
		select {
		case <-exited:
		case <-time.After(2 * time.Second):
			t.Fatal("listener did not exit")
		}
	})
}
