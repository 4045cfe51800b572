package dex

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/trade-engine/internal/dex/jupiter"
	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
	"github.com/rovshanmuradov/trade-engine/internal/dex/pumpfun"
	"github.com/rovshanmuradov/trade-engine/internal/dex/raydium"
)

// ChainReader is the slice of RPC surface the router and token registry
// need directly.
type ChainReader interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*rpc.GetTokenAccountBalanceResult, error)
}

// Router picks the venue for a trade. Selection is a strict priority,
// never a cost comparison: an active bonding curve serves its mint
// exclusively; otherwise the aggregator if it indexes the mint, any
// aggregator failure falling through to direct pool discovery.
type Router struct {
	reader   ChainReader
	curves   *pumpfun.Reader
	tokens   *jupiter.TokenSet
	jup      *jupiter.Client
	quoter   *raydium.Quoter
	registry *Registry
	logger   *zap.Logger
}

func NewRouter(reader ChainReader, curves *pumpfun.Reader, tokens *jupiter.TokenSet, jup *jupiter.Client, quoter *raydium.Quoter, registry *Registry, logger *zap.Logger) *Router {
	return &Router{
		reader:   reader,
		curves:   curves,
		tokens:   tokens,
		jup:      jup,
		quoter:   quoter,
		registry: registry,
		logger:   logger.Named("router"),
	}
}

// BuyQuote routes and prices a buy of solLamports worth of mint,
// returning the quote plus the instruction set implementing it.
func (r *Router) BuyQuote(ctx context.Context, owner solana.PublicKey, mint solana.PublicKey, solLamports, slippageBps uint64) (*model.Swap, error) {
	if curve, curveAddr, err := r.curves.Fetch(ctx, mint); err == nil {
		if curve.Complete {
			r.logger.Debug("curve complete, routing off-curve", zap.String("mint", mint.String()))
		} else {
			return r.curveBuy(ctx, owner, mint, curve, curveAddr, solLamports, slippageBps)
		}
	} else if !errors.Is(err, model.ErrVenueUnavailable) {
		return nil, err
	}

	if swap, err := r.aggregatorSwap(ctx, owner, solana.WrappedSol, mint, solLamports, slippageBps, true); err == nil {
		return swap, nil
	} else if !errors.Is(err, model.ErrQuoteFailure) && !errors.Is(err, model.ErrVenueUnavailable) {
		return nil, err
	} else {
		r.logger.Debug("aggregator unavailable, trying pool", zap.String("mint", mint.String()), zap.Error(err))
	}

	return r.poolBuy(ctx, owner, mint, solLamports, slippageBps)
}

// SellQuote routes and prices a sell of rawTokens of mint.
func (r *Router) SellQuote(ctx context.Context, owner solana.PublicKey, mint solana.PublicKey, rawTokens, slippageBps uint64) (*model.Swap, error) {
	if curve, curveAddr, err := r.curves.Fetch(ctx, mint); err == nil {
		if !curve.Complete {
			return r.curveSell(ctx, owner, mint, curve, curveAddr, rawTokens, slippageBps)
		}
	} else if !errors.Is(err, model.ErrVenueUnavailable) {
		return nil, err
	}

	if swap, err := r.aggregatorSwap(ctx, owner, mint, solana.WrappedSol, rawTokens, slippageBps, false); err == nil {
		return swap, nil
	} else if !errors.Is(err, model.ErrQuoteFailure) && !errors.Is(err, model.ErrVenueUnavailable) {
		return nil, err
	} else {
		r.logger.Debug("aggregator unavailable, trying pool", zap.String("mint", mint.String()), zap.Error(err))
	}

	return r.poolSell(ctx, owner, mint, rawTokens, slippageBps)
}

func (r *Router) curveBuy(ctx context.Context, owner, mint solana.PublicKey, curve *pumpfun.BondingCurve, curveAddr solana.PublicKey, solLamports, slippageBps uint64) (*model.Swap, error) {
	quote, err := pumpfun.BuyQuote(curve, solLamports, slippageBps)
	if err != nil {
		return nil, err
	}

	params, setup, err := r.curveParams(ctx, owner, mint, curveAddr, true)
	if err != nil {
		return nil, err
	}

	// The lamport bound is the user's requested spend, exactly; slippage
	// tolerance is expressed by asking for the discounted token amount.
	tokenAmount := uint64(quote.MinTokenAmountOut * 1e6)

	buyIx, err := pumpfun.BuildBuyInstruction(params, tokenAmount, solLamports)
	if err != nil {
		return nil, err
	}

	return &model.Swap{
		Quote: quote,
		Set:   model.NewPrebuilt(model.VenueBondingCurve, append(setup, buyIx)),
	}, nil
}

// BuyOnCurveDirect builds a bonding-curve buy without touching the chain:
// the curve addresses are derived locally and the user's token account is
// created unconditionally. Callers supply the token amount and lamport cap
// they have already decided on, so it suits dispatch paths where a token is
// known to be freshly launched.
func (r *Router) BuyOnCurveDirect(owner, mint solana.PublicKey, rawTokens, maxSolCostLamports uint64) (model.InstructionSet, error) {
	curveAddr, err := pumpfun.CurveAddress(mint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInstructionBuild, err)
	}
	associated, err := pumpfun.AssociatedCurveAddress(curveAddr, mint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInstructionBuild, err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInstructionBuild, err)
	}

	createIx := associatedtokenaccount.NewCreateInstruction(owner, owner, mint).Build()
	buyIx, err := pumpfun.BuildBuyInstruction(pumpfun.TradeParams{
		Mint:            mint,
		Curve:           curveAddr,
		AssociatedCurve: associated,
		UserTokenATA:    ata,
		User:            owner,
	}, rawTokens, maxSolCostLamports)
	if err != nil {
		return nil, err
	}

	return model.NewPrebuilt(model.VenueBondingCurve, []solana.Instruction{createIx, buyIx}), nil
}

func (r *Router) curveSell(ctx context.Context, owner, mint solana.PublicKey, curve *pumpfun.BondingCurve, curveAddr solana.PublicKey, rawTokens, slippageBps uint64) (*model.Swap, error) {
	quote, err := pumpfun.SellQuote(curve, rawTokens, slippageBps)
	if err != nil {
		return nil, err
	}

	params, setup, err := r.curveParams(ctx, owner, mint, curveAddr, false)
	if err != nil {
		return nil, err
	}

	minSolOutput := uint64(quote.MinTokenAmountOut * 1e9)
	sellIx, err := pumpfun.BuildSellInstruction(params, rawTokens, minSolOutput)
	if err != nil {
		return nil, err
	}

	return &model.Swap{
		Quote: quote,
		Set:   model.NewPrebuilt(model.VenueBondingCurve, append(setup, sellIx)),
	}, nil
}

// curveParams resolves the PDA triple and the user's token account for a
// curve trade. A missing user account on a buy gets a create instruction
// prepended; on a sell it is a hard build failure.
func (r *Router) curveParams(ctx context.Context, owner, mint, curveAddr solana.PublicKey, createMissing bool) (pumpfun.TradeParams, []solana.Instruction, error) {
	associated, err := pumpfun.AssociatedCurveAddress(curveAddr, mint)
	if err != nil {
		return pumpfun.TradeParams{}, nil, fmt.Errorf("%w: %v", model.ErrInstructionBuild, err)
	}
	ata, setup, err := r.resolveTokenAccount(ctx, owner, mint, createMissing)
	if err != nil {
		return pumpfun.TradeParams{}, nil, err
	}
	return pumpfun.TradeParams{
		Mint:            mint,
		Curve:           curveAddr,
		AssociatedCurve: associated,
		UserTokenATA:    ata,
		User:            owner,
	}, setup, nil
}

func (r *Router) aggregatorSwap(ctx context.Context, owner, inputMint, outputMint solana.PublicKey, amount, slippageBps uint64, isBuy bool) (*model.Swap, error) {
	tradeMint := outputMint
	if !isBuy {
		tradeMint = inputMint
	}
	supported, err := r.tokens.Supported(ctx, tradeMint)
	if err != nil {
		return nil, fmt.Errorf("%w: token support check: %v", model.ErrVenueUnavailable, err)
	}
	if !supported {
		return nil, fmt.Errorf("%w: aggregator does not index %s", model.ErrVenueUnavailable, tradeMint)
	}

	jq, err := r.jup.Quote(ctx, inputMint, outputMint, amount, slippageBps)
	if err != nil {
		return nil, err
	}

	quote, err := r.normalizeAggregatorQuote(ctx, jq, tradeMint, amount, isBuy)
	if err != nil {
		return nil, err
	}

	return &model.Swap{
		Quote: quote,
		Set:   jupiter.NewSwapSet(r.jup, jq, owner),
	}, nil
}

// normalizeAggregatorQuote maps the aggregator's raw-unit response into
// the venue-shared quote shape. Buys scale output by the mint's
// decimals; sells produce lamports.
func (r *Router) normalizeAggregatorQuote(ctx context.Context, jq *jupiter.QuoteResponse, mint solana.PublicKey, amountIn uint64, isBuy bool) (*model.Quote, error) {
	info, err := r.registry.Lookup(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("%w: token metadata: %v", model.ErrQuoteFailure, err)
	}
	tokenScale := math.Pow10(int(info.Decimals))

	var out, minOut, price float64
	if isBuy {
		out = float64(jq.OutAmount) / tokenScale
		minOut = float64(jq.OtherAmountThreshold) / tokenScale
		price = (float64(amountIn) / 1e9) / out
	} else {
		out = float64(jq.OutAmount) / 1e9
		minOut = float64(jq.OtherAmountThreshold) / 1e9
		price = out / (float64(amountIn) / tokenScale)
	}
	if minOut == 0 {
		minOut = out
	}

	return &model.Quote{
		Venue:             model.VenueAggregator,
		CurrentPrice:      price,
		PriceImpact:       jq.PriceImpactPct / 100,
		TokenAmountOut:    out,
		MinTokenAmountOut: minOut,
	}, nil
}

func (r *Router) poolBuy(ctx context.Context, owner, mint solana.PublicKey, solLamports, slippageBps uint64) (*model.Swap, error) {
	quote, keys, err := r.quoter.BuyQuote(ctx, mint, solLamports, slippageBps)
	if err != nil {
		return nil, err
	}

	destATA, setup, err := r.resolveTokenAccount(ctx, owner, mint, true)
	if err != nil {
		return nil, err
	}

	wsol, err := raydium.NewWSOLAccount()
	if err != nil {
		return nil, err
	}

	tokenScale := math.Pow10(int(r.poolTokenDecimals(keys)))
	swapIx, err := raydium.BuildSwapInstruction(raydium.SwapParams{
		Keys:         keys,
		Owner:        owner,
		Source:       wsol.Pubkey,
		Destination:  destATA,
		AmountIn:     solLamports,
		MinAmountOut: uint64(quote.MinTokenAmountOut * tokenScale),
	})
	if err != nil {
		return nil, err
	}

	var ixs []solana.Instruction
	ixs = append(ixs, wsol.CreateInstructions(owner, solLamports)...)
	ixs = append(ixs, setup...)
	ixs = append(ixs, swapIx, wsol.CloseInstruction(owner))

	return &model.Swap{
		Quote: quote,
		Set:   model.NewPrebuilt(model.VenuePool, ixs, wsol.Keypair),
	}, nil
}

func (r *Router) poolSell(ctx context.Context, owner, mint solana.PublicKey, rawTokens, slippageBps uint64) (*model.Swap, error) {
	quote, keys, err := r.quoter.SellQuote(ctx, mint, rawTokens, slippageBps)
	if err != nil {
		return nil, err
	}

	sourceATA, _, err := r.resolveTokenAccount(ctx, owner, mint, false)
	if err != nil {
		return nil, err
	}

	wsol, err := raydium.NewWSOLAccount()
	if err != nil {
		return nil, err
	}

	swapIx, err := raydium.BuildSwapInstruction(raydium.SwapParams{
		Keys:         keys,
		Owner:        owner,
		Source:       sourceATA,
		Destination:  wsol.Pubkey,
		AmountIn:     rawTokens,
		MinAmountOut: uint64(quote.MinTokenAmountOut * 1e9),
	})
	if err != nil {
		return nil, err
	}

	var ixs []solana.Instruction
	ixs = append(ixs, wsol.CreateInstructions(owner, 0)...)
	ixs = append(ixs, swapIx, wsol.CloseInstruction(owner))

	return &model.Swap{
		Quote: quote,
		Set:   model.NewPrebuilt(model.VenuePool, ixs, wsol.Keypair),
	}, nil
}

func (r *Router) poolTokenDecimals(keys *raydium.PoolKeys) uint8 {
	if keys.BaseIsSOL() {
		return keys.PcDecimals
	}
	return keys.CoinDecimals
}

// resolveTokenAccount derives the owner's associated token account for
// mint. When the account does not exist yet, createMissing selects
// between prepending a create instruction and failing the build.
func (r *Router) resolveTokenAccount(ctx context.Context, owner, mint solana.PublicKey, createMissing bool) (solana.PublicKey, []solana.Instruction, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("%w: derive token account: %v", model.ErrInstructionBuild, err)
	}

	info, err := r.reader.GetAccountInfo(ctx, ata)
	if err == nil && info != nil && info.Value != nil {
		return ata, nil, nil
	}
	if !createMissing {
		return solana.PublicKey{}, nil, fmt.Errorf("%w: no token account for mint %s", model.ErrInstructionBuild, mint)
	}

	createIx := associatedtokenaccount.NewCreateInstruction(owner, owner, mint).Build()
	return ata, []solana.Instruction{createIx}, nil
}
