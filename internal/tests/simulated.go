package tests

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"
)

// SimulatedChain is an in-process chain that mines a block on a fixed interval,
// so code waiting for receipts behaves like it would against a real node.
type SimulatedChain struct {
	Backend *simulated.Backend
	Client  simulated.Client

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// DefaultFunding is the balance each funded account starts with (1000 ETH).
var DefaultFunding = new(big.Int).Mul(big.NewInt(1000), big.NewInt(params.Ether))

// NewSimulatedChain starts a simulated backend where every address in funded
// holds DefaultFunding. The chain is closed when the test ends.
func NewSimulatedChain(t *testing.T, blockInterval time.Duration, funded ...common.Address) *SimulatedChain {
	t.Helper()

	alloc := types.GenesisAlloc{}
	for _, addr := range funded {
		alloc[addr] = types.Account{Balance: new(big.Int).Set(DefaultFunding)}
	}

	backend := simulated.NewBackend(alloc)
	ctx, cancel := context.WithCancel(context.Background())

	sc := &SimulatedChain{
		Backend: backend,
		Client:  backend.Client(),
		cancel:  cancel,
	}

	if blockInterval > 0 {
		sc.wg.Add(1)
		go func() {
			defer sc.wg.Done()
			ticker := time.NewTicker(blockInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					sc.Commit()
				}
			}
		}()
	}

	t.Cleanup(func() {
		cancel()
		sc.wg.Wait()
		require.NoError(t, backend.Close())
	})
	return sc
}

// Commit mines the pending transactions into a new block.
func (sc *SimulatedChain) Commit() common.Hash {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.Backend.Commit()
}

// MustDevKey parses one of the hex dev keys above.
func MustDevKey(t *testing.T, hexKey string) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.HexToECDSA(hexKey)
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}
