package raydium

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstantProductOut(t *testing.T) {
	t.Run("documented example", func(t *testing.T) {
		// Rin=1000, Rout=2000, in=100 -> 2000 - 1000*2000/1100 = 181.81...
		out := constantProductOut(100, 1000, 2000)
		assert.Equal(t, uint64(181), out)
	})

	t.Run("zero input yields zero output", func(t *testing.T) {
		assert.Equal(t, uint64(0), constantProductOut(0, 1000, 2000))
	})

	t.Run("empty reserves yield zero output", func(t *testing.T) {
		assert.Equal(t, uint64(0), constantProductOut(100, 0, 2000))
		assert.Equal(t, uint64(0), constantProductOut(100, 1000, 0))
	})

	t.Run("strictly increasing in input", func(t *testing.T) {
		prev := uint64(0)
		for in := uint64(1_000); in <= 100_000; in += 1_000 {
			out := constantProductOut(in, 1_000_000, 2_000_000)
			assert.Greater(t, out, prev, "input %d", in)
			prev = out
		}
	})

	t.Run("output never exceeds reserve", func(t *testing.T) {
		out := constantProductOut(1<<50, 1000, 2000)
		assert.Less(t, out, uint64(2000))
	})
}

func TestPriceImpact(t *testing.T) {
	// in=100 against 1000/2000: spot out is 200, executed out 181
	impact := priceImpact(100, 1000, 2000, 181)
	assert.InDelta(t, 0.095, impact, 0.001)

	assert.Zero(t, priceImpact(0, 1000, 2000, 0))
	assert.Zero(t, priceImpact(100, 0, 2000, 0))
}

func TestApplySlippage(t *testing.T) {
	t.Run("zero slippage keeps full output", func(t *testing.T) {
		assert.Equal(t, 100.0, applySlippage(100, 0))
	})

	t.Run("min out never exceeds quoted out", func(t *testing.T) {
		for _, bps := range []uint64{1, 50, 300, 1_000, 10_000} {
			assert.Less(t, applySlippage(100, bps), 100.0, "bps %d", bps)
		}
	})

	t.Run("100 bps derates by factor 1.01", func(t *testing.T) {
		assert.InDelta(t, 100.0/1.01, applySlippage(100, 100), 1e-9)
	})
}

func TestSpotPrice(t *testing.T) {
	// 10 SOL against 1000 tokens with 6 decimals: 10e9 lamports, 1000e6 raw
	price := spotPrice(10_000_000_000, 1_000_000_000, 6)
	assert.InDelta(t, 0.01, price, 1e-12)

	assert.Zero(t, spotPrice(10_000_000_000, 0, 6))
}
