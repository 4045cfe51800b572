package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rovshanmuradov/trade-engine/internal/store"
)

const (
	tokenSetKey = "jupiter:tokens"
	tokenSetTTL = time.Hour
)

// TokenSet answers whether the aggregator routes a given mint. The
// upstream list is refreshed at most once per hour; between refreshes
// answers come from memory, falling back to the shared store so that
// multiple processes share one upstream fetch.
type TokenSet struct {
	listURL string
	client  *Client
	cache   store.Store
	logger  *zap.Logger
	flight  singleflight.Group

	mu        sync.RWMutex
	mints     map[string]struct{}
	refreshed time.Time
}

func NewTokenSet(listURL string, client *Client, cache store.Store, logger *zap.Logger) *TokenSet {
	return &TokenSet{
		listURL: listURL,
		client:  client,
		cache:   cache,
		logger:  logger.Named("jupiter"),
	}
}

// Supported reports whether the aggregator can route mint. On refresh
// failure the stale set keeps serving and the error is returned only
// when no set has ever loaded. The refresh runs outside the read lock
// so concurrent lookups are never serialized behind the upstream fetch;
// concurrent callers that all find the set stale share one fetch.
func (t *TokenSet) Supported(ctx context.Context, mint solana.PublicKey) (bool, error) {
	t.mu.RLock()
	stale := t.mints == nil || time.Since(t.refreshed) >= tokenSetTTL
	t.mu.RUnlock()

	if stale {
		if _, err, _ := t.flight.Do(tokenSetKey, func() (interface{}, error) {
			return nil, t.refresh(ctx)
		}); err != nil {
			t.mu.RLock()
			loaded := t.mints != nil
			t.mu.RUnlock()
			if !loaded {
				return false, err
			}
			t.logger.Warn("token list refresh failed, serving stale set", zap.Error(err))
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.mints[mint.String()]
	return ok, nil
}

func (t *TokenSet) refresh(ctx context.Context) error {
	t.mu.RLock()
	fresh := t.mints != nil && time.Since(t.refreshed) < tokenSetTTL
	t.mu.RUnlock()
	if fresh {
		return nil
	}

	if raw, ok, err := t.cache.Get(ctx, tokenSetKey); err == nil && ok {
		if set, err := parseMintList([]byte(raw)); err == nil {
			t.swap(set)
			return nil
		}
		_ = t.cache.Delete(ctx, tokenSetKey)
	}

	body, err := t.client.get(ctx, t.listURL)
	if err != nil {
		return fmt.Errorf("fetch token list: %w", err)
	}
	set, err := parseMintList(body)
	if err != nil {
		return fmt.Errorf("parse token list: %w", err)
	}

	if err := t.cache.Set(ctx, tokenSetKey, string(body), tokenSetTTL); err != nil {
		t.logger.Warn("token list cache write failed", zap.Error(err))
	}

	t.swap(set)
	t.logger.Debug("token list refreshed", zap.Int("mints", len(set)))
	return nil
}

// swap replaces the whole set; partial updates are never applied.
func (t *TokenSet) swap(set map[string]struct{}) {
	t.mu.Lock()
	t.mints = set
	t.refreshed = time.Now()
	t.mu.Unlock()
}

// parseMintList accepts both list shapes the API has served: a bare
// array of mint strings and an array of token objects with an address
// field.
func parseMintList(body []byte) (map[string]struct{}, error) {
	var addrs []string
	if err := json.Unmarshal(body, &addrs); err == nil {
		set := make(map[string]struct{}, len(addrs))
		for _, a := range addrs {
			set[a] = struct{}{}
		}
		return set, nil
	}

	var tokens []struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok.Address] = struct{}{}
	}
	return set, nil
}
