package pumpfun

import (
	"context"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
)

// ChainReader is the slice of RPC surface the curve reader needs.
type ChainReader interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// BondingCurve mirrors the on-chain curve account, minus the anchor
// discriminator.
type BondingCurve struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

// DecodeBondingCurve parses raw curve account data.
func DecodeBondingCurve(data []byte) (*BondingCurve, error) {
	if len(data) < 49 {
		return nil, fmt.Errorf("%w: curve account is %d bytes, want at least 49", model.ErrLayoutMismatch, len(data))
	}
	var curve BondingCurve
	dec := bin.NewBorshDecoder(data[8:])
	if err := dec.Decode(&curve); err != nil {
		return nil, fmt.Errorf("%w: decode bonding curve: %v", model.ErrLayoutMismatch, err)
	}
	return &curve, nil
}

// CurveAddress derives the bonding-curve PDA for a mint.
func CurveAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("bonding-curve"), mint.Bytes()}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive bonding curve: %w", err)
	}
	return addr, nil
}

// AssociatedCurveAddress is the curve's own token account for the mint.
func AssociatedCurveAddress(curve, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(curve, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated curve account: %w", err)
	}
	return addr, nil
}

// PriceSOL is the spot price in SOL per whole token at the current
// virtual reserves.
func (c *BondingCurve) PriceSOL() float64 {
	if c.VirtualTokenReserves == 0 {
		return 0
	}
	return (float64(c.VirtualSolReserves) / 1e9) / (float64(c.VirtualTokenReserves) / 1e6)
}

// Progress is how far the curve has sold toward graduation, in percent.
func (c *BondingCurve) Progress() float64 {
	sold := initialRealTokenReserves - float64(c.RealTokenReserves)*1e-6
	if sold < 0 {
		sold = 0
	}
	return sold / initialRealTokenReserves * 100
}

// TokensForSol is the curve output for a buy of solLamports, in raw
// token units.
func (c *BondingCurve) TokensForSol(solLamports uint64) uint64 {
	if c.VirtualSolReserves == 0 || c.VirtualTokenReserves == 0 {
		return 0
	}
	in := float64(solLamports)
	out := float64(c.VirtualTokenReserves) * in / (float64(c.VirtualSolReserves) + in)
	if out > float64(c.RealTokenReserves) {
		out = float64(c.RealTokenReserves)
	}
	return uint64(out)
}

// SolForTokens is the curve output for a sell of rawTokens, in lamports.
func (c *BondingCurve) SolForTokens(rawTokens uint64) uint64 {
	if c.VirtualSolReserves == 0 || c.VirtualTokenReserves == 0 {
		return 0
	}
	in := float64(rawTokens)
	return uint64(float64(c.VirtualSolReserves) * in / (float64(c.VirtualTokenReserves) + in))
}

// Reader fetches and prices bonding curves.
type Reader struct {
	chain ChainReader
}

func NewReader(chain ChainReader) *Reader {
	return &Reader{chain: chain}
}

// Fetch loads the curve state for a mint. A missing account, or a curve
// marked complete, means the mint no longer trades on the curve.
func (r *Reader) Fetch(ctx context.Context, mint solana.PublicKey) (*BondingCurve, solana.PublicKey, error) {
	curveAddr, err := CurveAddress(mint)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	info, err := r.chain.GetAccountInfo(ctx, curveAddr)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("%w: fetch curve %s: %v", model.ErrVenueUnavailable, curveAddr, err)
	}
	if info == nil || info.Value == nil {
		return nil, solana.PublicKey{}, fmt.Errorf("%w: no bonding curve for mint %s", model.ErrVenueUnavailable, mint)
	}
	curve, err := DecodeBondingCurve(info.Value.Data.GetBinary())
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	return curve, curveAddr, nil
}

// EffectiveSlippageBps widens a requested slippage to the venue floor.
func EffectiveSlippageBps(requested uint64) uint64 {
	if requested < MinSlippageBps {
		return MinSlippageBps
	}
	return requested
}

// BuyQuote prices a SOL -> token trade against the curve.
func BuyQuote(curve *BondingCurve, solLamports uint64, slippageBps uint64) (*model.Quote, error) {
	if curve.Complete {
		return nil, fmt.Errorf("%w: bonding curve complete", model.ErrVenueUnavailable)
	}
	out := curve.TokensForSol(solLamports)
	if out == 0 {
		return nil, fmt.Errorf("%w: curve returned zero tokens for %d lamports", model.ErrQuoteFailure, solLamports)
	}
	bps := EffectiveSlippageBps(slippageBps)
	outUI := float64(out) / 1e6
	spotOut := float64(solLamports) / 1e9 / curve.PriceSOL()
	return &model.Quote{
		Venue:             model.VenueBondingCurve,
		CurrentPrice:      curve.PriceSOL(),
		PriceImpact:       roundImpact(1 - outUI/spotOut),
		TokenAmountOut:    outUI,
		MinTokenAmountOut: outUI / (1 + float64(bps)/10_000),
	}, nil
}

// SellQuote prices a token -> SOL trade against the curve.
func SellQuote(curve *BondingCurve, rawTokens uint64, slippageBps uint64) (*model.Quote, error) {
	if curve.Complete {
		return nil, fmt.Errorf("%w: bonding curve complete", model.ErrVenueUnavailable)
	}
	out := curve.SolForTokens(rawTokens)
	if out == 0 {
		return nil, fmt.Errorf("%w: curve returned zero lamports for %d tokens", model.ErrQuoteFailure, rawTokens)
	}
	bps := EffectiveSlippageBps(slippageBps)
	outUI := float64(out) / 1e9
	spotOut := float64(rawTokens) / 1e6 * curve.PriceSOL()
	return &model.Quote{
		Venue:             model.VenueBondingCurve,
		CurrentPrice:      curve.PriceSOL(),
		PriceImpact:       roundImpact(1 - outUI/spotOut),
		TokenAmountOut:    outUI,
		MinTokenAmountOut: outUI / (1 + float64(bps)/10_000),
	}, nil
}

func roundImpact(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*10_000) / 10_000
}
