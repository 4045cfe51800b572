package dex

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
	"github.com/rovshanmuradov/trade-engine/internal/store"
)

// SPL mint account layout.
const (
	mintAccountSize    = 82
	mintSupplyOffset   = 36
	mintDecimalsOffset = 44
)

// TokenInfo is the metadata the engine needs to scale and describe a mint.
type TokenInfo struct {
	Mint     solana.PublicKey `json:"mint"`
	Symbol   string           `json:"symbol"`
	Name     string           `json:"name"`
	Decimals uint8            `json:"decimals"`
	Supply   uint64           `json:"supply"`
}

// Registry resolves token metadata, preferring the pump.fun frontend API
// and falling back to the on-chain mint account. Results are cached.
type Registry struct {
	reader   ChainReader
	cache    store.Store
	http     *http.Client
	metaURL  string
	logger   *zap.Logger
	cacheTTL time.Duration
}

func NewRegistry(reader ChainReader, cache store.Store, metaURL string, logger *zap.Logger) *Registry {
	return &Registry{
		reader:   reader,
		cache:    cache,
		http:     &http.Client{Timeout: 5 * time.Second},
		metaURL:  metaURL,
		logger:   logger.Named("tokens"),
		cacheTTL: time.Hour,
	}
}

// Lookup returns metadata for mint.
func (r *Registry) Lookup(ctx context.Context, mint solana.PublicKey) (*TokenInfo, error) {
	cacheKey := "token:" + mint.String()
	if raw, ok, err := r.cache.Get(ctx, cacheKey); err == nil && ok {
		var info TokenInfo
		if err := json.Unmarshal([]byte(raw), &info); err == nil {
			return &info, nil
		}
		_ = r.cache.Delete(ctx, cacheKey)
	}

	info, err := r.fromAPI(ctx, mint)
	if err != nil {
		r.logger.Debug("metadata api miss, reading mint account", zap.String("mint", mint.String()), zap.Error(err))
		info, err = r.fromChain(ctx, mint)
		if err != nil {
			return nil, err
		}
	}

	if raw, err := json.Marshal(info); err == nil {
		if err := r.cache.Set(ctx, cacheKey, string(raw), r.cacheTTL); err != nil {
			r.logger.Warn("token cache write failed", zap.Error(err))
		}
	}
	return info, nil
}

func (r *Registry) fromAPI(ctx context.Context, mint solana.PublicKey) (*TokenInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.metaURL+"/coins/"+mint.String(), nil)
	if err != nil {
		return nil, err
	}
	res, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata api returned %d", res.StatusCode)
	}

	var payload struct {
		Symbol      string  `json:"symbol"`
		Name        string  `json:"name"`
		TotalSupply float64 `json:"total_supply"`
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.Symbol == "" {
		return nil, fmt.Errorf("metadata api returned empty symbol")
	}

	return &TokenInfo{
		Mint:     mint,
		Symbol:   payload.Symbol,
		Name:     payload.Name,
		Decimals: 6,
		Supply:   uint64(payload.TotalSupply),
	}, nil
}

func (r *Registry) fromChain(ctx context.Context, mint solana.PublicKey) (*TokenInfo, error) {
	info, err := r.reader.GetAccountInfo(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("fetch mint account: %w", err)
	}
	if info == nil || info.Value == nil {
		return nil, fmt.Errorf("mint account %s missing", mint)
	}
	data := info.Value.Data.GetBinary()
	if len(data) < mintAccountSize {
		return nil, fmt.Errorf("%w: mint account is %d bytes, want %d", model.ErrLayoutMismatch, len(data), mintAccountSize)
	}

	short := mint.String()
	return &TokenInfo{
		Mint:     mint,
		Symbol:   short[:4] + "…" + short[len(short)-4:],
		Name:     short,
		Decimals: data[mintDecimalsOffset],
		Supply:   binary.LittleEndian.Uint64(data[mintSupplyOffset:]),
	}, nil
}
