package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const mint = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

func rec(at time.Time, preSOL, postSOL, preTok, postTok, rate float64) TransactionRecord {
	return TransactionRecord{
		Timestamp:        at,
		Mint:             mint,
		PreSOLBalance:    preSOL,
		PostSOLBalance:   postSOL,
		PreTokenBalance:  preTok,
		PostTokenBalance: postTok,
		SOLUSDRate:       rate,
	}
}

func TestComputeSingleBuy(t *testing.T) {
	t0 := time.Now()
	records := []TransactionRecord{
		// 1 SOL for 100 tokens at 100 USD/SOL
		rec(t0, 10, 9, 0, 100, 100),
	}

	pos := Compute(mint, records, 0, 100)

	assert.Equal(t, 100.0, pos.Balance)
	assert.Equal(t, 1, pos.BuyCount)
	assert.True(t, pos.HasPosition)
	assert.InDelta(t, 0.01, pos.AvgEntrySOL, 1e-12)
	assert.InDelta(t, 1.0, pos.AvgEntryUSD, 1e-12)
	assert.Zero(t, pos.RealizedSOL)
}

func TestComputePartialSellKeepsEntry(t *testing.T) {
	t0 := time.Now()
	records := []TransactionRecord{
		rec(t0, 10, 9, 0, 100, 100),
		// sell 50 tokens for 1 SOL
		rec(t0.Add(time.Minute), 9, 10, 100, 50, 100),
	}

	pos := Compute(mint, records, 0, 100)

	assert.Equal(t, 50.0, pos.Balance)
	assert.Equal(t, 1, pos.SellCount)
	// cost basis shrank by the sold fraction 50/100, so the average
	// entry is unchanged
	assert.True(t, pos.HasPosition)
	assert.InDelta(t, 0.01, pos.AvgEntrySOL, 1e-12)

	// sold 50 tokens for 1 SOL against a 0.5 SOL basis
	assert.InDelta(t, 0.5, pos.RealizedSOL, 1e-12)
	assert.InDelta(t, 100, pos.RealizedPct, 1e-9)
}

func TestComputeFullExitResetsBasis(t *testing.T) {
	t0 := time.Now()
	records := []TransactionRecord{
		rec(t0, 10, 9, 0, 100, 100),
		rec(t0.Add(time.Minute), 9, 11, 100, 0, 100),
	}

	pos := Compute(mint, records, 0, 100)

	assert.Zero(t, pos.Balance)
	assert.False(t, pos.HasPosition)
	// basis consumed: proceeds count fully as realized
	assert.InDelta(t, 2.0, pos.RealizedSOL, 1e-12)
}

func TestComputeFreshEntryAfterExit(t *testing.T) {
	t0 := time.Now()
	records := []TransactionRecord{
		rec(t0, 10, 9, 0, 100, 100),
		rec(t0.Add(time.Minute), 9, 10, 100, 0, 100),
		// new buy at a very different price
		rec(t0.Add(2*time.Minute), 10, 8, 0, 50, 100),
	}

	pos := Compute(mint, records, 0, 100)

	assert.Equal(t, 50.0, pos.Balance)
	assert.True(t, pos.HasPosition)
	// 2 SOL for 50 tokens, independent of the prior round trip
	assert.InDelta(t, 0.04, pos.AvgEntrySOL, 1e-12)
}

func TestComputeUnrealized(t *testing.T) {
	t0 := time.Now()
	records := []TransactionRecord{
		rec(t0, 10, 9, 0, 100, 100),
	}

	pos := Compute(mint, records, 0.02, 100)

	assert.InDelta(t, (0.02-0.01)*100, pos.UnrealizedSOL, 1e-12)
	assert.InDelta(t, 100, pos.UnrealizedPct, 1e-9)
	assert.InDelta(t, (0.02*100-1.0)*100, pos.UnrealizedUSD, 1e-9)
}

func TestComputeOrdersByTimestamp(t *testing.T) {
	t0 := time.Now()
	// records supplied out of order must replay chronologically
	records := []TransactionRecord{
		rec(t0.Add(time.Minute), 9, 10, 100, 50, 100),
		rec(t0, 10, 9, 0, 100, 100),
	}

	pos := Compute(mint, records, 0, 100)
	assert.Equal(t, 50.0, pos.Balance)
	assert.InDelta(t, 0.01, pos.AvgEntrySOL, 1e-12)
}

func TestComputeEmpty(t *testing.T) {
	pos := Compute(mint, nil, 0.5, 100)
	assert.Zero(t, pos.Balance)
	assert.False(t, pos.HasPosition)
	assert.Zero(t, pos.UnrealizedSOL)
}
