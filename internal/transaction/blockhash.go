package transaction

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

const blockhashTTL = 40 * time.Second

// BlockhashSource fetches a fresh block reference.
type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// BlockhashCache shares one recent blockhash across all in-flight trades,
// refetching when the cached value is older than 40 seconds.
type BlockhashCache struct {
	source BlockhashSource

	mu        sync.Mutex
	hash      solana.Hash
	fetchedAt time.Time
}

func NewBlockhashCache(source BlockhashSource) *BlockhashCache {
	return &BlockhashCache{source: source}
}

func (c *BlockhashCache) Get(ctx context.Context) (solana.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hash.IsZero() && time.Since(c.fetchedAt) < blockhashTTL {
		return c.hash, nil
	}

	hash, err := c.source.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Hash{}, err
	}
	c.hash = hash
	c.fetchedAt = time.Now()
	return hash, nil
}
