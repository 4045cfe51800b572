package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/trade-engine/internal/config"
	"github.com/rovshanmuradov/trade-engine/internal/dex"
	"github.com/rovshanmuradov/trade-engine/internal/dex/jupiter"
	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
	"github.com/rovshanmuradov/trade-engine/internal/dex/pumpfun"
	"github.com/rovshanmuradov/trade-engine/internal/dex/raydium"
	"github.com/rovshanmuradov/trade-engine/internal/export"
	"github.com/rovshanmuradov/trade-engine/internal/logger"
	"github.com/rovshanmuradov/trade-engine/internal/metrics"
	"github.com/rovshanmuradov/trade-engine/internal/position"
	"github.com/rovshanmuradov/trade-engine/internal/store"
	"github.com/rovshanmuradov/trade-engine/internal/trader"
	"github.com/rovshanmuradov/trade-engine/internal/transaction"
	"github.com/rovshanmuradov/trade-engine/internal/wallet"
	solclient "github.com/rovshanmuradov/trade-engine/pkg/blockchain/solana"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err))
	}

	log, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		Development: cfg.DebugLogging,
		MaxSizeMB:   50,
		MaxBackups:  3,
		MaxAgeDays:  14,
	})
	if err != nil {
		zap.NewExample().Fatal("Failed to build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := buildEngine(cfg, log)
	if err != nil {
		log.Fatal("Failed to assemble engine", zap.Error(err))
	}

	log.Info("Trade engine ready",
		zap.Int("rpc_endpoints", len(cfg.RPCList)),
		zap.String("wallet", engine.wallet.String()))

	if cfg.MetricsAddr != "" {
		go metrics.Serve(cfg.MetricsAddr, log)
	}

	engine.runCommandLoop(ctx, os.Stdin)
	log.Info("Shutting down")
	os.Exit(0)
}

// engine bundles the wired components the command loop drives.
type engine struct {
	wallet    *wallet.Wallet
	trader    *trader.Trader
	confirmer *transaction.Confirmer
	rates     position.RateSource
	logger    *zap.Logger

	feeBps   uint64
	discount float64

	mu      sync.Mutex
	records []position.TransactionRecord
}

// runCommandLoop reads trade commands line by line until EOF or shutdown:
//
//	buy <mint> <sol> [slippageBps]
//	sell <mint> <percent> [slippageBps]
//	export <dir> [csv|json]
func (e *engine) runCommandLoop(ctx context.Context, in *os.File) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			if err := e.dispatch(ctx, fields); err != nil {
				e.logger.Warn("command failed",
					zap.String("command", fields[0]),
					zap.Error(err))
			}
		}
	}
}

func (e *engine) dispatch(ctx context.Context, fields []string) error {
	switch fields[0] {
	case "buy":
		if len(fields) < 3 {
			return fmt.Errorf("usage: buy <mint> <sol> [slippageBps]")
		}
		mint, err := solana.PublicKeyFromBase58(fields[1])
		if err != nil {
			return fmt.Errorf("bad mint: %w", err)
		}
		sol, err := strconv.ParseFloat(fields[2], 64)
		if err != nil || sol <= 0 {
			return fmt.Errorf("bad SOL amount %q", fields[2])
		}
		bps := parseBps(fields, 3)
		lamports := uint64(sol * 1e9)

		swap := e.trader.Buy(ctx, mint, lamports, bps)
		if swap == nil {
			return fmt.Errorf("buy quote failed")
		}
		return e.execute(ctx, mint, swap, lamports)

	case "sell":
		if len(fields) < 3 {
			return fmt.Errorf("usage: sell <mint> <percent> [slippageBps]")
		}
		mint, err := solana.PublicKeyFromBase58(fields[1])
		if err != nil {
			return fmt.Errorf("bad mint: %w", err)
		}
		percent, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("bad percent %q", fields[2])
		}
		bps := parseBps(fields, 3)

		swap := e.trader.SellPercentage(ctx, mint, percent, bps)
		if swap == nil {
			return fmt.Errorf("sell quote failed")
		}
		// fee on the expected SOL proceeds
		proceeds := uint64(swap.Quote.MinTokenAmountOut * 1e9)
		return e.execute(ctx, mint, swap, proceeds)

	case "export":
		if len(fields) < 2 {
			return fmt.Errorf("usage: export <dir> [csv|json]")
		}
		format := export.FormatCSV
		if len(fields) > 2 && fields[2] == "json" {
			format = export.FormatJSON
		}
		e.mu.Lock()
		records := append([]position.TransactionRecord(nil), e.records...)
		e.mu.Unlock()
		path, err := export.NewExporter(e.logger).Export(records, export.Options{
			Format:    format,
			OutputDir: fields[1],
		})
		if err != nil {
			return err
		}
		e.logger.Info("records exported", zap.String("path", path))
		return nil

	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

// execute submits the prepared swap and tracks it until it resolves,
// recording the ledger entry on confirmation.
func (e *engine) execute(ctx context.Context, mint solana.PublicKey, swap *model.Swap, tradeLamports uint64) error {
	sig := e.trader.Submit(ctx, swap.Set, tradeLamports)
	if sig == (solana.Signature{}) {
		return fmt.Errorf("submission failed")
	}
	e.logger.Info("transaction submitted",
		zap.String("signature", sig.String()),
		zap.String("venue", string(swap.Quote.Venue)))

	go func() {
		outcome, err := e.confirmer.Wait(ctx, sig)
		if outcome != transaction.OutcomeConfirmed {
			e.logger.Warn("transaction did not confirm",
				zap.String("signature", sig.String()),
				zap.String("outcome", outcome.String()),
				zap.Error(err))
			return
		}

		rate, err := e.rates.SOLUSDRate(ctx)
		if err != nil {
			e.logger.Warn("rate lookup failed, recording at zero", zap.Error(err))
		}
		feeSOL := float64(transaction.PlatformFeeLamports(tradeLamports, e.feeBps, e.discount)) / 1e9
		rec, err := e.confirmer.BuildRecord(ctx, sig, e.wallet.PublicKey, mint, rate, feeSOL)
		if err != nil {
			e.logger.Warn("record build failed", zap.Error(err))
			return
		}
		e.mu.Lock()
		e.records = append(e.records, *rec)
		e.mu.Unlock()
		e.logger.Info("trade recorded",
			zap.String("signature", sig.String()),
			zap.Float64("token_delta", rec.TokenDelta()),
			zap.Float64("sol_delta", rec.SOLDelta()))
	}()
	return nil
}

func parseBps(fields []string, idx int) uint64 {
	if len(fields) <= idx {
		return 100
	}
	bps, err := strconv.ParseUint(fields[idx], 10, 64)
	if err != nil {
		return 100
	}
	return bps
}

func buildEngine(cfg *config.Config, log *zap.Logger) (*engine, error) {
	collector := metrics.NewCollector(nil)

	client, err := solclient.NewClient(cfg.RPCList, cfg.RPCRateLimit, log)
	if err != nil {
		return nil, err
	}
	client.SetMetrics(collector)

	w, err := wallet.NewWallet(cfg.WalletKey)
	if err != nil {
		return nil, err
	}

	var cache store.Store
	if cfg.RedisAddr != "" {
		cache, err = store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "trade-engine")
		if err != nil {
			log.Warn("Redis unreachable, using in-memory cache", zap.Error(err))
			cache = store.NewMemory()
		}
	} else {
		cache = store.NewMemory()
	}

	jup := jupiter.NewClient(cfg.JupiterQuoteURL, log)
	tokens := jupiter.NewTokenSet(cfg.JupiterTokensURL, jup, cache, log)
	curves := pumpfun.NewReader(client)
	pools := raydium.NewPoolManager(client, cache, log)
	quoter := raydium.NewQuoter(pools)
	registry := dex.NewRegistry(client, cache, cfg.PumpFunAPIURL, log)
	router := dex.NewRouter(client, curves, tokens, jup, quoter, registry, log)

	blockhash := transaction.NewBlockhashCache(client)
	assembler := transaction.NewAssembler(blockhash, client, w, log)
	confirmer := transaction.NewConfirmer(client, log)
	confirmer.SetMetrics(collector)

	feeWallet, err := solana.PublicKeyFromBase58(cfg.PlatformFeePubkey)
	if err != nil {
		return nil, err
	}

	t := trader.New(router, assembler, client, w, trader.Config{
		PriorityFeeSOL:    cfg.PriorityFeeSol,
		PlatformFeeBps:    uint64(cfg.PlatformFeeBps),
		PlatformFeeWallet: feeWallet,
		ReferralDiscount:  cfg.ReferralDiscount,
	}, collector, log)

	return &engine{
		wallet:    w,
		trader:    t,
		confirmer: confirmer,
		rates:     position.NewHTTPRateSource(cfg.SolUSDRateURL, log),
		logger:    log.Named("driver"),
		feeBps:    uint64(cfg.PlatformFeeBps),
		discount:  cfg.ReferralDiscount,
	}, nil
}
