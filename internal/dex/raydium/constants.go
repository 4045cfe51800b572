package raydium

import "github.com/gagliardetto/solana-go"

// Program IDs
var (
	RaydiumV4ProgramID = solana.MPK("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	RaydiumAuthorityV4 = solana.MPK("5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1")
	OpenBookProgramID  = solana.MPK("srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX")
	WrappedSOLMint     = solana.MPK("So11111111111111111111111111111111111111112")
)

// AMM v4 state layout
const (
	AmmStateSize = 752

	CoinDecimalsOffset  = 32
	PcDecimalsOffset    = 40
	PoolOpenTimeOffset  = 224
	PoolCoinVaultOffset = 336
	PoolPcVaultOffset   = 368
	CoinMintOffset      = 400
	PcMintOffset        = 432
	LpMintOffset        = 464
	AmmOpenOrdersOffset = 496
	SerumMarketOffset   = 528
	SerumProgramOffset  = 560
	AmmTargetOrdsOffset = 592
)

// OpenBook market state layout
const (
	MarketStateSize = 388

	MarketFlagsOffset       = 5
	MarketOwnAddressOffset  = 13
	MarketVaultNonceOffset  = 45
	MarketBaseMintOffset    = 53
	MarketQuoteMintOffset   = 85
	MarketBaseVaultOffset   = 117
	MarketQuoteVaultOffset  = 165
	MarketRequestQueueOff   = 221
	MarketEventQueueOffset  = 253
	MarketBidsOffset        = 285
	MarketAsksOffset        = 317
)

// Market account flag bits
const (
	MarketFlagInitialized = 1 << 0
	MarketFlagMarket      = 1 << 1
)

// Swap instruction
const (
	SwapOpcode byte = 9

	// Lamports needed to keep a freshly created token account rent exempt.
	RentExemptTokenAccountLamports = 2_039_280
	TokenAccountSize               = 165
)
