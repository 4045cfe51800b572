package position

import "sort"

// totals carries one side of the running accumulation in both
// currencies plus token count.
type totals struct {
	SOL    float64
	USD    float64
	Tokens float64
}

// Position is the derived view over one mint's trade history. It is
// recomputed by full replay, never stored as authoritative state.
type Position struct {
	Mint    string
	Balance float64

	BuyCount  int
	SellCount int

	// Average entry price per token; valid only while HasPosition.
	AvgEntrySOL float64
	AvgEntryUSD float64
	HasPosition bool

	RealizedSOL float64
	RealizedUSD float64
	RealizedPct float64

	UnrealizedSOL float64
	UnrealizedUSD float64
	UnrealizedPct float64
}

// Compute replays a mint's records in time order and derives the
// position. livePriceSOL is the current venue price used for unrealized
// PnL; solUSDRate converts it to USD terms.
//
// Cost basis follows weighted-average-cost: a partial sell shrinks the
// accumulated buy totals by the fraction of the pre-sell balance sold,
// so basis decays geometrically rather than matching discrete lots. A
// sell that empties the balance resets the basis to zero.
func Compute(mint string, records []TransactionRecord, livePriceSOL, solUSDRate float64) Position {
	ordered := make([]TransactionRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	var bought, sold totals
	var balance float64
	var buys, sells int

	for _, rec := range ordered {
		delta := rec.TokenDelta()
		switch {
		case delta > 0:
			buys++
			bought.SOL += rec.SOLDelta()
			bought.USD += rec.SOLDelta() * rec.SOLUSDRate
			bought.Tokens += delta
			balance += delta

		case delta < 0:
			sells++
			soldTokens := -delta
			sold.SOL += rec.SOLDelta()
			sold.USD += rec.SOLDelta() * rec.SOLUSDRate
			sold.Tokens += soldTokens

			balanceBefore := balance
			balance -= soldTokens

			if balance > 0 && balanceBefore > 0 {
				keep := 1 - soldTokens/balanceBefore
				bought.SOL *= keep
				bought.USD *= keep
				bought.Tokens *= keep
			} else {
				bought = totals{}
			}
		}
	}

	pos := Position{
		Mint:      mint,
		Balance:   balance,
		BuyCount:  buys,
		SellCount: sells,
	}

	if bought.Tokens > 0 {
		pos.HasPosition = true
		pos.AvgEntrySOL = bought.SOL / bought.Tokens
		pos.AvgEntryUSD = bought.USD / bought.Tokens
	}

	if sold.Tokens > 0 {
		if pos.HasPosition {
			pos.RealizedSOL = sold.SOL - sold.Tokens*pos.AvgEntrySOL
			pos.RealizedUSD = sold.USD - sold.Tokens*pos.AvgEntryUSD
			avgSell := sold.SOL / sold.Tokens
			if pos.AvgEntrySOL > 0 {
				pos.RealizedPct = (avgSell/pos.AvgEntrySOL - 1) * 100
			}
		} else {
			// basis was consumed by a full exit; proceeds since then
			// are pure realized gain
			pos.RealizedSOL = sold.SOL
			pos.RealizedUSD = sold.USD
		}
	}

	if pos.HasPosition && balance > 0 && livePriceSOL > 0 {
		pos.UnrealizedSOL = (livePriceSOL - pos.AvgEntrySOL) * balance
		pos.UnrealizedUSD = (livePriceSOL*solUSDRate - pos.AvgEntryUSD) * balance
		if pos.AvgEntrySOL > 0 {
			pos.UnrealizedPct = (livePriceSOL/pos.AvgEntrySOL - 1) * 100
		}
	}

	return pos
}
