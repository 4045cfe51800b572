package pumpfun

import "github.com/gagliardetto/solana-go"

var (
	ProgramID      = solana.MPK("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	GlobalAccount  = solana.MPK("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")
	FeeRecipient   = solana.MPK("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	EventAuthority = solana.MPK("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
)

// Anchor instruction discriminators.
const (
	BuyDiscriminator  uint64 = 16927863322537952870
	SellDiscriminator uint64 = 12502976635542562355
)

const (
	// Bonding-curve trades never execute with less than 3% slippage
	// headroom; tighter requests are widened to this floor.
	MinSlippageBps = 300

	// All pump.fun mints use 6 decimals.
	TokenDecimals = 6

	// Tokens reserved for the curve at launch; graduation progress is
	// measured against this.
	initialRealTokenReserves = 800_000_000.0
)
