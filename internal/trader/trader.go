package trader

import (
	"context"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/trade-engine/internal/dex"
	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
	"github.com/rovshanmuradov/trade-engine/internal/metrics"
	"github.com/rovshanmuradov/trade-engine/internal/transaction"
	"github.com/rovshanmuradov/trade-engine/internal/wallet"
)

// BalanceReader resolves the caller's current token holding for
// percentage sells.
type BalanceReader interface {
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*rpc.GetTokenAccountBalanceResult, error)
}

// Config carries the fee policy the trader applies to every submission.
type Config struct {
	PriorityFeeSOL    float64
	PlatformFeeBps    uint64
	PlatformFeeWallet solana.PublicKey
	// ReferralDiscount multiplies the platform fee; 1 means no discount.
	ReferralDiscount float64
}

// Trader is the application-facing surface of the engine. Its operations
// never return errors: any internal failure degrades to a nil bundle or
// a zero signature, so the calling layer treats "no result" uniformly.
// The surrounding application is responsible for serializing one user's
// sequential operations.
type Trader struct {
	router    *dex.Router
	assembler *transaction.Assembler
	balances  BalanceReader
	wallet    *wallet.Wallet
	cfg       Config
	metrics   *metrics.Collector
	logger    *zap.Logger
}

func New(router *dex.Router, assembler *transaction.Assembler, balances BalanceReader, w *wallet.Wallet, cfg Config, collector *metrics.Collector, logger *zap.Logger) *Trader {
	if cfg.ReferralDiscount <= 0 || cfg.ReferralDiscount > 1 {
		cfg.ReferralDiscount = 1
	}
	return &Trader{
		router:    router,
		assembler: assembler,
		balances:  balances,
		wallet:    w,
		cfg:       cfg,
		metrics:   collector,
		logger:    logger.Named("trader"),
	}
}

// Buy quotes and prepares a purchase of solLamports worth of mint.
// Returns nil when no venue can serve the trade.
func (t *Trader) Buy(ctx context.Context, mint solana.PublicKey, solLamports, slippageBps uint64) *model.Swap {
	start := time.Now()
	swap, err := t.router.BuyQuote(ctx, t.wallet.PublicKey, mint, solLamports, slippageBps)
	if err != nil {
		t.logger.Warn("buy routing failed",
			zap.String("mint", mint.String()),
			zap.Uint64("lamports", solLamports),
			zap.Error(err))
		t.metrics.RecordTrade("buy", "none", time.Since(start), false)
		return nil
	}
	t.metrics.RecordTrade("buy", string(swap.Quote.Venue), time.Since(start), true)
	return swap
}

// Sell quotes and prepares a sale of rawTokens of mint. Returns nil when
// no venue can serve the trade.
func (t *Trader) Sell(ctx context.Context, mint solana.PublicKey, rawTokens, slippageBps uint64) *model.Swap {
	start := time.Now()
	swap, err := t.router.SellQuote(ctx, t.wallet.PublicKey, mint, rawTokens, slippageBps)
	if err != nil {
		t.logger.Warn("sell routing failed",
			zap.String("mint", mint.String()),
			zap.Uint64("tokens", rawTokens),
			zap.Error(err))
		t.metrics.RecordTrade("sell", "none", time.Since(start), false)
		return nil
	}
	t.metrics.RecordTrade("sell", string(swap.Quote.Venue), time.Since(start), true)
	return swap
}

// SellPercentage sells a fraction of the caller's current holding.
// percent is clamped to [1,100]; a full liquidation additionally closes
// the token account to reclaim its rent deposit.
func (t *Trader) SellPercentage(ctx context.Context, mint solana.PublicKey, percent int, slippageBps uint64) *model.Swap {
	if percent < 1 {
		percent = 1
	}
	if percent > 100 {
		percent = 100
	}

	balance, ata, ok := t.tokenBalance(ctx, mint)
	if !ok || balance == 0 {
		t.logger.Warn("no holding to sell", zap.String("mint", mint.String()))
		return nil
	}

	rawTokens := balance * uint64(percent) / 100
	if rawTokens == 0 {
		return nil
	}

	swap := t.Sell(ctx, mint, rawTokens, slippageBps)
	if swap == nil {
		return nil
	}

	if percent == 100 {
		closeIx := token.NewCloseAccountInstruction(ata, t.wallet.PublicKey, t.wallet.PublicKey, nil).Build()
		swap.Set = model.Append(swap.Set, closeIx)
	}
	return swap
}

// Submit assembles, signs, and submits an instruction set. The platform
// fee is sized from tradeLamports by the configured policy. A zero
// signature means the trade did not reach the endpoint; a non-zero
// signature means accepted, not landed.
func (t *Trader) Submit(ctx context.Context, set model.InstructionSet, tradeLamports uint64) solana.Signature {
	tx, err := t.assembler.Assemble(ctx, transaction.Request{
		Set:                 set,
		PriorityFeeSOL:      t.cfg.PriorityFeeSOL,
		PlatformFeeLamports: transaction.PlatformFeeLamports(tradeLamports, t.cfg.PlatformFeeBps, t.cfg.ReferralDiscount),
		PlatformFeeWallet:   t.cfg.PlatformFeeWallet,
	})
	if err != nil {
		t.logger.Warn("assembly failed", zap.Error(err))
		return solana.Signature{}
	}

	sig, err := t.assembler.Submit(ctx, tx)
	if err != nil {
		return solana.Signature{}
	}
	return sig
}

// tokenBalance reads the raw balance of the caller's associated token
// account for mint.
func (t *Trader) tokenBalance(ctx context.Context, mint solana.PublicKey) (uint64, solana.PublicKey, bool) {
	ata, err := t.wallet.GetATA(mint)
	if err != nil {
		t.logger.Warn("token account derivation failed", zap.Error(err))
		return 0, solana.PublicKey{}, false
	}
	res, err := t.balances.GetTokenAccountBalance(ctx, ata)
	if err != nil || res == nil || res.Value == nil {
		t.logger.Debug("token balance read failed", zap.String("mint", mint.String()), zap.Error(err))
		return 0, solana.PublicKey{}, false
	}
	balance, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		t.logger.Warn("unparseable token balance", zap.String("amount", res.Value.Amount))
		return 0, solana.PublicKey{}, false
	}
	return balance, ata, true
}
