package pumpfun

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
)

func curveBytes(virtualTok, virtualSol, realTok, realSol, supply uint64, complete bool) []byte {
	data := make([]byte, 49)
	binary.LittleEndian.PutUint64(data[8:], virtualTok)
	binary.LittleEndian.PutUint64(data[16:], virtualSol)
	binary.LittleEndian.PutUint64(data[24:], realTok)
	binary.LittleEndian.PutUint64(data[32:], realSol)
	binary.LittleEndian.PutUint64(data[40:], supply)
	if complete {
		data[48] = 1
	}
	return data
}

func TestDecodeBondingCurve(t *testing.T) {
	data := curveBytes(1_000_000_000_000, 30_000_000_000, 800_000_000_000_000, 0, 1_000_000_000_000_000, false)

	curve, err := DecodeBondingCurve(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000_000), curve.VirtualTokenReserves)
	assert.Equal(t, uint64(30_000_000_000), curve.VirtualSolReserves)
	assert.Equal(t, uint64(800_000_000_000_000), curve.RealTokenReserves)
	assert.False(t, curve.Complete)
}

func TestDecodeBondingCurveTooShort(t *testing.T) {
	_, err := DecodeBondingCurve(make([]byte, 20))
	assert.ErrorIs(t, err, model.ErrLayoutMismatch)
}

func TestPriceSOL(t *testing.T) {
	// 30 SOL virtual against 1,000,000 whole tokens virtual
	curve := &BondingCurve{
		VirtualSolReserves:   30_000_000_000,
		VirtualTokenReserves: 1_000_000_000_000,
	}
	assert.InDelta(t, 30.0/1_000_000, curve.PriceSOL(), 1e-15)

	empty := &BondingCurve{}
	assert.Zero(t, empty.PriceSOL())
}

func TestPriceMonotoneInReserves(t *testing.T) {
	// buying drains token reserves and accretes sol reserves; the spot
	// price must never decrease along that path
	curve := &BondingCurve{
		VirtualSolReserves:   30_000_000_000,
		VirtualTokenReserves: 1_073_000_000_000_000,
	}
	prev := curve.PriceSOL()
	for i := 0; i < 50; i++ {
		bought := curve.TokensForSol(1_000_000_000)
		curve.VirtualTokenReserves -= bought
		curve.VirtualSolReserves += 1_000_000_000
		price := curve.PriceSOL()
		assert.GreaterOrEqual(t, price, prev)
		prev = price
	}
}

func TestProgress(t *testing.T) {
	t.Run("untouched curve", func(t *testing.T) {
		curve := &BondingCurve{RealTokenReserves: 800_000_000_000_000}
		assert.InDelta(t, 0, curve.Progress(), 1e-9)
	})

	t.Run("half sold", func(t *testing.T) {
		curve := &BondingCurve{RealTokenReserves: 400_000_000_000_000}
		assert.InDelta(t, 50, curve.Progress(), 1e-9)
	})

	t.Run("sold out", func(t *testing.T) {
		curve := &BondingCurve{RealTokenReserves: 0}
		assert.InDelta(t, 100, curve.Progress(), 1e-9)
	})
}

func TestEffectiveSlippageBps(t *testing.T) {
	assert.Equal(t, uint64(MinSlippageBps), EffectiveSlippageBps(0))
	assert.Equal(t, uint64(MinSlippageBps), EffectiveSlippageBps(100))
	assert.Equal(t, uint64(MinSlippageBps), EffectiveSlippageBps(MinSlippageBps))
	assert.Equal(t, uint64(500), EffectiveSlippageBps(500))
}

func TestBuyQuote(t *testing.T) {
	curve := &BondingCurve{
		VirtualSolReserves:   30_000_000_000,
		VirtualTokenReserves: 1_073_000_000_000_000,
		RealTokenReserves:    800_000_000_000_000,
	}

	quote, err := BuyQuote(curve, 1_000_000_000, 500)
	require.NoError(t, err)

	assert.Equal(t, model.VenueBondingCurve, quote.Venue)
	assert.InDelta(t, curve.PriceSOL(), quote.CurrentPrice, 1e-15)
	assert.Greater(t, quote.TokenAmountOut, 0.0)
	assert.Less(t, quote.MinTokenAmountOut, quote.TokenAmountOut)
	assert.Greater(t, quote.PriceImpact, 0.0)
	assert.Less(t, quote.PriceImpact, 1.0)

	// 1 SOL into 30 SOL of virtual depth loses about 1/31 to impact
	assert.InDelta(t, 1.0/31, quote.PriceImpact, 0.01)
}

func TestBuyQuoteEnforcesSlippageFloor(t *testing.T) {
	curve := &BondingCurve{
		VirtualSolReserves:   30_000_000_000,
		VirtualTokenReserves: 1_073_000_000_000_000,
		RealTokenReserves:    800_000_000_000_000,
	}

	tight, err := BuyQuote(curve, 1_000_000_000, 0)
	require.NoError(t, err)
	floor, err := BuyQuote(curve, 1_000_000_000, MinSlippageBps)
	require.NoError(t, err)

	assert.InDelta(t, floor.MinTokenAmountOut, tight.MinTokenAmountOut, 1e-9,
		"requests below the floor must be widened to it")
}

func TestSellQuote(t *testing.T) {
	curve := &BondingCurve{
		VirtualSolReserves:   30_000_000_000,
		VirtualTokenReserves: 1_073_000_000_000_000,
		RealTokenReserves:    800_000_000_000_000,
	}

	quote, err := SellQuote(curve, 10_000_000_000, 500)
	require.NoError(t, err)
	assert.Equal(t, model.VenueBondingCurve, quote.Venue)
	assert.Greater(t, quote.TokenAmountOut, 0.0)
	assert.Less(t, quote.MinTokenAmountOut, quote.TokenAmountOut)
}

func TestQuoteRejectsCompleteCurve(t *testing.T) {
	curve := &BondingCurve{
		VirtualSolReserves:   30_000_000_000,
		VirtualTokenReserves: 1_073_000_000_000_000,
		Complete:             true,
	}

	_, err := BuyQuote(curve, 1_000_000_000, 500)
	assert.ErrorIs(t, err, model.ErrVenueUnavailable)

	_, err = SellQuote(curve, 1_000_000, 500)
	assert.ErrorIs(t, err, model.ErrVenueUnavailable)
}

func TestCurveAddressDerivation(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	curveAddr, err := CurveAddress(mint)
	require.NoError(t, err)
	assert.False(t, curveAddr.IsZero())

	// deterministic
	again, err := CurveAddress(mint)
	require.NoError(t, err)
	assert.Equal(t, curveAddr, again)

	associated, err := AssociatedCurveAddress(curveAddr, mint)
	require.NoError(t, err)
	assert.False(t, associated.IsZero())
	assert.NotEqual(t, curveAddr, associated)
}
