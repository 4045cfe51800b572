package position

import "time"

// TransactionRecord is the immutable, post-confirmation fact about one
// executed trade. Balances are human-scaled: SOL in whole SOL, tokens in
// whole tokens.
type TransactionRecord struct {
	Timestamp time.Time
	Mint      string

	PreSOLBalance    float64
	PostSOLBalance   float64
	PreTokenBalance  float64
	PostTokenBalance float64

	// SOLUSDRate is the exchange rate observed when the trade executed.
	SOLUSDRate float64

	PlatformFeeSOL float64
}

// TokenDelta is positive for a buy and negative for a sell.
func (r *TransactionRecord) TokenDelta() float64 {
	return r.PostTokenBalance - r.PreTokenBalance
}

// SOLDelta is the absolute native amount the trade moved.
func (r *TransactionRecord) SOLDelta() float64 {
	d := r.PostSOLBalance - r.PreSOLBalance
	if d < 0 {
		return -d
	}
	return d
}
