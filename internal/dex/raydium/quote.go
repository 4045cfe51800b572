package raydium

import (
	"context"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
)

// Quoter prices swaps against a discovered pool using live vault reserves.
type Quoter struct {
	pools *PoolManager
}

func NewQuoter(pools *PoolManager) *Quoter {
	return &Quoter{pools: pools}
}

// BuyQuote prices a SOL -> token swap of solLamports input.
func (q *Quoter) BuyQuote(ctx context.Context, mint solana.PublicKey, solLamports uint64, slippageBps uint64) (*model.Quote, *PoolKeys, error) {
	keys, solReserve, tokenReserve, tokenDecimals, err := q.reserves(ctx, mint)
	if err != nil {
		return nil, nil, err
	}

	out := constantProductOut(solLamports, solReserve, tokenReserve)
	if out == 0 {
		return nil, nil, fmt.Errorf("%w: pool too shallow for %d lamports", model.ErrQuoteFailure, solLamports)
	}

	outUI := float64(out) / math.Pow10(int(tokenDecimals))
	quote := &model.Quote{
		Venue:             model.VenuePool,
		CurrentPrice:      spotPrice(solReserve, tokenReserve, tokenDecimals),
		PriceImpact:       priceImpact(solLamports, solReserve, tokenReserve, out),
		TokenAmountOut:    outUI,
		MinTokenAmountOut: applySlippage(outUI, slippageBps),
	}
	return quote, keys, nil
}

// SellQuote prices a token -> SOL swap of rawTokens input.
func (q *Quoter) SellQuote(ctx context.Context, mint solana.PublicKey, rawTokens uint64, slippageBps uint64) (*model.Quote, *PoolKeys, error) {
	keys, solReserve, tokenReserve, tokenDecimals, err := q.reserves(ctx, mint)
	if err != nil {
		return nil, nil, err
	}

	out := constantProductOut(rawTokens, tokenReserve, solReserve)
	if out == 0 {
		return nil, nil, fmt.Errorf("%w: pool too shallow for %d tokens", model.ErrQuoteFailure, rawTokens)
	}

	outUI := float64(out) / 1e9
	quote := &model.Quote{
		Venue:             model.VenuePool,
		CurrentPrice:      spotPrice(solReserve, tokenReserve, tokenDecimals),
		PriceImpact:       priceImpact(rawTokens, tokenReserve, solReserve, out),
		TokenAmountOut:    outUI,
		MinTokenAmountOut: applySlippage(outUI, slippageBps),
	}
	return quote, keys, nil
}

// reserves resolves the pool and orients the vault balances so the caller
// always sees (solReserve, tokenReserve) regardless of mint ordering.
func (q *Quoter) reserves(ctx context.Context, mint solana.PublicKey) (*PoolKeys, uint64, uint64, uint8, error) {
	keys, err := q.pools.FindPool(ctx, mint)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	coin, pc, err := q.pools.Reserves(ctx, keys)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	if keys.BaseIsSOL() {
		return keys, coin, pc, keys.PcDecimals, nil
	}
	return keys, pc, coin, keys.CoinDecimals, nil
}

// constantProductOut computes the x*y=k output amount.
func constantProductOut(amountIn, reserveIn, reserveOut uint64) uint64 {
	if reserveIn == 0 || reserveOut == 0 {
		return 0
	}
	in := float64(amountIn)
	return uint64(float64(reserveOut) * in / (float64(reserveIn) + in))
}

// spotPrice is SOL per whole token at current reserves.
func spotPrice(solReserve, tokenReserve uint64, tokenDecimals uint8) float64 {
	if tokenReserve == 0 {
		return 0
	}
	return (float64(solReserve) / 1e9) / (float64(tokenReserve) / math.Pow10(int(tokenDecimals)))
}

// priceImpact is the fraction of the zero-size spot output lost to pool
// depth, rounded to four decimal places.
func priceImpact(amountIn, reserveIn, reserveOut, out uint64) float64 {
	if reserveIn == 0 || reserveOut == 0 || amountIn == 0 {
		return 0
	}
	spotOut := float64(amountIn) * float64(reserveOut) / float64(reserveIn)
	if spotOut == 0 {
		return 0
	}
	impact := 1 - float64(out)/spotOut
	return math.Round(impact*10_000) / 10_000
}

// applySlippage derates an output amount by slippageBps.
func applySlippage(out float64, slippageBps uint64) float64 {
	return out / (1 + float64(slippageBps)/10_000)
}
