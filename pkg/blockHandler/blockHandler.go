package blockHandler

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

type IBlockHandler interface {
	HandleBlock(ctx context.Context, header *types.Header) error
	ListenToChannel(ctx context.Context, handleFunc func(*types.Header))
}

// BlockHandler decouples the head subscription from header processing with a
// buffered channel, so a slow handler never blocks the subscription.
type BlockHandler struct {
	BlockChannel chan *types.Header
	logger       *zap.Logger
}

func NewBlockHandler(
	logger *zap.Logger,
) *BlockHandler {
	return &BlockHandler{
		// 100 headers is roughly 20 minutes of mainnet blocks
		BlockChannel: make(chan *types.Header, 100),
		logger:       logger,
	}
}

func (h *BlockHandler) ListenToChannel(ctx context.Context, handleFunc func(*types.Header)) {
	for {
		select {
		case header := <-h.BlockChannel:
			h.logger.Sugar().Debugf("BlockHandler received block %d from channel", header.Number.Uint64())
			handleFunc(header)
		case <-ctx.Done():
			h.logger.Sugar().Debug("BlockHandler channel listener exiting due to context done")
			return
		}
	}
}

func (h *BlockHandler) HandleBlock(ctx context.Context, header *types.Header) error {
	select {
	case h.BlockChannel <- header:
		h.logger.Sugar().Debugf("Block %d sent to channel", header.Number.Uint64())
	case <-ctx.Done():
		h.logger.Sugar().Warnf("Context done before sending block %d to channel", header.Number.Uint64())
	default:
		h.logger.Sugar().Warnf("Block channel is full, dropping block %d", header.Number.Uint64())
	}
	return nil
}
