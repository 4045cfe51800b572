package raydium

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
	"github.com/rovshanmuradov/trade-engine/internal/store"
)

// ChainReader is the slice of RPC surface the pool manager needs.
type ChainReader interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetProgramAccountsWithOpts(ctx context.Context, program solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*rpc.GetTokenAccountBalanceResult, error)
}

// PoolKeys is the full account set needed to build a swap against one pool.
type PoolKeys struct {
	AmmID           solana.PublicKey `json:"amm_id"`
	AmmAuthority    solana.PublicKey `json:"amm_authority"`
	AmmOpenOrders   solana.PublicKey `json:"amm_open_orders"`
	AmmTargetOrders solana.PublicKey `json:"amm_target_orders"`
	PoolCoinVault   solana.PublicKey `json:"pool_coin_vault"`
	PoolPcVault     solana.PublicKey `json:"pool_pc_vault"`
	SerumProgramID  solana.PublicKey `json:"serum_program_id"`
	SerumMarket     solana.PublicKey `json:"serum_market"`
	SerumBids       solana.PublicKey `json:"serum_bids"`
	SerumAsks       solana.PublicKey `json:"serum_asks"`
	SerumEventQueue solana.PublicKey `json:"serum_event_queue"`
	SerumBaseVault  solana.PublicKey `json:"serum_base_vault"`
	SerumQuoteVault solana.PublicKey `json:"serum_quote_vault"`
	SerumVaultOwner solana.PublicKey `json:"serum_vault_owner"`

	CoinMint     solana.PublicKey `json:"coin_mint"`
	PcMint       solana.PublicKey `json:"pc_mint"`
	CoinDecimals uint8            `json:"coin_decimals"`
	PcDecimals   uint8            `json:"pc_decimals"`
}

// BaseIsSOL reports whether the coin side of the pool is wrapped SOL.
func (k *PoolKeys) BaseIsSOL() bool { return k.CoinMint.Equals(WrappedSOLMint) }

// PoolManager discovers SOL pools for a mint and caches the derived key sets.
type PoolManager struct {
	reader ChainReader
	cache  store.Store
	flight singleflight.Group
	logger *zap.Logger
	ttl    time.Duration
}

func NewPoolManager(reader ChainReader, cache store.Store, logger *zap.Logger) *PoolManager {
	return &PoolManager{
		reader: reader,
		cache:  cache,
		logger: logger.Named("raydium"),
		// pool key sets are immutable once derived, so entries never expire
		ttl: 0,
	}
}

// FindPool locates the SOL pool for mint, preferring a cached key set.
// Concurrent callers for the same mint share one discovery pass.
func (m *PoolManager) FindPool(ctx context.Context, mint solana.PublicKey) (*PoolKeys, error) {
	cacheKey := "raydium:pool:" + mint.String()

	if raw, ok, err := m.cache.Get(ctx, cacheKey); err == nil && ok {
		var keys PoolKeys
		if err := json.Unmarshal([]byte(raw), &keys); err == nil {
			return &keys, nil
		}
		// corrupt entry, fall through to rediscovery
		_ = m.cache.Delete(ctx, cacheKey)
	}

	v, err, _ := m.flight.Do(cacheKey, func() (interface{}, error) {
		keys, err := m.discover(ctx, mint)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(keys); err == nil {
			if err := m.cache.Set(ctx, cacheKey, string(raw), m.ttl); err != nil {
				m.logger.Warn("pool cache write failed", zap.Error(err))
			}
		}
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PoolKeys), nil
}

// discover scans the AMM program for a pool pairing mint with wrapped SOL,
// checking both mint orderings concurrently.
func (m *PoolManager) discover(ctx context.Context, mint solana.PublicKey) (*PoolKeys, error) {
	start := time.Now()

	type hit struct {
		ammID solana.PublicKey
		data  []byte
	}
	results := make([]*hit, 2)

	g, gctx := errgroup.WithContext(ctx)
	orderings := []struct {
		coinOffset, pcOffset uint64
		coin, pc             solana.PublicKey
	}{
		{CoinMintOffset, PcMintOffset, mint, WrappedSOLMint},
		{CoinMintOffset, PcMintOffset, WrappedSOLMint, mint},
	}
	for i, ord := range orderings {
		i, ord := i, ord
		g.Go(func() error {
			accounts, err := m.reader.GetProgramAccountsWithOpts(gctx, RaydiumV4ProgramID, &rpc.GetProgramAccountsOpts{
				Commitment: rpc.CommitmentConfirmed,
				Encoding:   solana.EncodingBase64,
				Filters: []rpc.RPCFilter{
					{DataSize: AmmStateSize},
					{Memcmp: &rpc.RPCFilterMemcmp{Offset: ord.coinOffset, Bytes: ord.coin.Bytes()}},
					{Memcmp: &rpc.RPCFilterMemcmp{Offset: ord.pcOffset, Bytes: ord.pc.Bytes()}},
				},
			})
			if err != nil {
				return fmt.Errorf("scan amm program: %w", err)
			}
			if len(accounts) > 0 {
				results[i] = &hit{
					ammID: accounts[0].Pubkey,
					data:  accounts[0].Account.Data.GetBinary(),
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrVenueUnavailable, err)
	}

	var found *hit
	for _, h := range results {
		if h != nil {
			found = h
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no SOL pool for mint %s", model.ErrVenueUnavailable, mint)
	}

	keys, err := m.deriveKeys(ctx, found.ammID, found.data)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("pool discovered",
		zap.String("mint", mint.String()),
		zap.String("amm_id", found.ammID.String()),
		zap.Duration("took", time.Since(start)))
	return keys, nil
}

// deriveKeys completes a PoolKeys set from the AMM state plus the linked
// OpenBook market account.
func (m *PoolManager) deriveKeys(ctx context.Context, ammID solana.PublicKey, ammData []byte) (*PoolKeys, error) {
	amm, err := DecodeAmmState(ammData)
	if err != nil {
		return nil, err
	}

	marketInfo, err := m.reader.GetAccountInfo(ctx, amm.SerumMarket)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch market %s: %v", model.ErrVenueUnavailable, amm.SerumMarket, err)
	}
	if marketInfo == nil || marketInfo.Value == nil {
		return nil, fmt.Errorf("%w: market account %s missing", model.ErrVenueUnavailable, amm.SerumMarket)
	}
	market, err := DecodeMarketState(marketInfo.Value.Data.GetBinary())
	if err != nil {
		return nil, err
	}

	vaultOwner, err := MarketVaultSigner(amm.SerumMarket, market.VaultSignerNonce)
	if err != nil {
		return nil, err
	}

	return &PoolKeys{
		AmmID:           ammID,
		AmmAuthority:    RaydiumAuthorityV4,
		AmmOpenOrders:   amm.AmmOpenOrders,
		AmmTargetOrders: amm.AmmTargetOrders,
		PoolCoinVault:   amm.PoolCoinTokenAccount,
		PoolPcVault:     amm.PoolPcTokenAccount,
		SerumProgramID:  amm.SerumProgramID,
		SerumMarket:     amm.SerumMarket,
		SerumBids:       market.Bids,
		SerumAsks:       market.Asks,
		SerumEventQueue: market.EventQueue,
		SerumBaseVault:  market.BaseVault,
		SerumQuoteVault: market.QuoteVault,
		SerumVaultOwner: vaultOwner,
		CoinMint:        amm.CoinMint,
		PcMint:          amm.PcMint,
		CoinDecimals:    uint8(amm.CoinDecimals),
		PcDecimals:      uint8(amm.PcDecimals),
	}, nil
}

// Reserves fetches the current vault balances for a pool, in raw units.
func (m *PoolManager) Reserves(ctx context.Context, keys *PoolKeys) (coin, pc uint64, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := m.reader.GetTokenAccountBalance(gctx, keys.PoolCoinVault)
		if err != nil {
			return fmt.Errorf("coin vault balance: %w", err)
		}
		coin, err = parseRawAmount(res)
		return err
	})
	g.Go(func() error {
		res, err := m.reader.GetTokenAccountBalance(gctx, keys.PoolPcVault)
		if err != nil {
			return fmt.Errorf("pc vault balance: %w", err)
		}
		pc, err = parseRawAmount(res)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", model.ErrVenueUnavailable, err)
	}
	return coin, pc, nil
}

func parseRawAmount(res *rpc.GetTokenAccountBalanceResult) (uint64, error) {
	if res == nil || res.Value == nil {
		return 0, fmt.Errorf("empty token balance response")
	}
	var amount uint64
	if _, err := fmt.Sscan(res.Value.Amount, &amount); err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", res.Value.Amount, err)
	}
	return amount, nil
}
