package raydium

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
)

// AmmState is the subset of the Raydium AMM v4 account we actually use.
type AmmState struct {
	CoinDecimals uint64
	PcDecimals   uint64
	PoolOpenTime uint64

	PoolCoinTokenAccount solana.PublicKey
	PoolPcTokenAccount   solana.PublicKey
	CoinMint             solana.PublicKey
	PcMint               solana.PublicKey
	LpMint               solana.PublicKey
	AmmOpenOrders        solana.PublicKey
	SerumMarket          solana.PublicKey
	SerumProgramID       solana.PublicKey
	AmmTargetOrders      solana.PublicKey
}

// DecodeAmmState parses the raw 752-byte AMM v4 account data.
func DecodeAmmState(data []byte) (*AmmState, error) {
	if len(data) != AmmStateSize {
		return nil, fmt.Errorf("%w: amm state is %d bytes, want %d", model.ErrLayoutMismatch, len(data), AmmStateSize)
	}

	st := &AmmState{
		CoinDecimals: binary.LittleEndian.Uint64(data[CoinDecimalsOffset:]),
		PcDecimals:   binary.LittleEndian.Uint64(data[PcDecimalsOffset:]),
		PoolOpenTime: binary.LittleEndian.Uint64(data[PoolOpenTimeOffset:]),
	}
	st.PoolCoinTokenAccount = solana.PublicKeyFromBytes(data[PoolCoinVaultOffset : PoolCoinVaultOffset+32])
	st.PoolPcTokenAccount = solana.PublicKeyFromBytes(data[PoolPcVaultOffset : PoolPcVaultOffset+32])
	st.CoinMint = solana.PublicKeyFromBytes(data[CoinMintOffset : CoinMintOffset+32])
	st.PcMint = solana.PublicKeyFromBytes(data[PcMintOffset : PcMintOffset+32])
	st.LpMint = solana.PublicKeyFromBytes(data[LpMintOffset : LpMintOffset+32])
	st.AmmOpenOrders = solana.PublicKeyFromBytes(data[AmmOpenOrdersOffset : AmmOpenOrdersOffset+32])
	st.SerumMarket = solana.PublicKeyFromBytes(data[SerumMarketOffset : SerumMarketOffset+32])
	st.SerumProgramID = solana.PublicKeyFromBytes(data[SerumProgramOffset : SerumProgramOffset+32])
	st.AmmTargetOrders = solana.PublicKeyFromBytes(data[AmmTargetOrdsOffset : AmmTargetOrdsOffset+32])
	return st, nil
}

// MarketState is the subset of the OpenBook market account we use to
// assemble swap instruction account lists.
type MarketState struct {
	OwnAddress       solana.PublicKey
	VaultSignerNonce uint64
	BaseMint         solana.PublicKey
	QuoteMint        solana.PublicKey
	BaseVault        solana.PublicKey
	QuoteVault       solana.PublicKey
	RequestQueue     solana.PublicKey
	EventQueue       solana.PublicKey
	Bids             solana.PublicKey
	Asks             solana.PublicKey
}

// DecodeMarketState parses the raw 388-byte OpenBook market account data.
func DecodeMarketState(data []byte) (*MarketState, error) {
	if len(data) != MarketStateSize {
		return nil, fmt.Errorf("%w: market state is %d bytes, want %d", model.ErrLayoutMismatch, len(data), MarketStateSize)
	}

	flags := binary.LittleEndian.Uint64(data[MarketFlagsOffset:])
	if flags&MarketFlagInitialized == 0 || flags&MarketFlagMarket == 0 {
		return nil, fmt.Errorf("%w: market flags 0x%x", model.ErrLayoutMismatch, flags)
	}

	st := &MarketState{
		VaultSignerNonce: binary.LittleEndian.Uint64(data[MarketVaultNonceOffset:]),
	}
	st.OwnAddress = solana.PublicKeyFromBytes(data[MarketOwnAddressOffset : MarketOwnAddressOffset+32])
	st.BaseMint = solana.PublicKeyFromBytes(data[MarketBaseMintOffset : MarketBaseMintOffset+32])
	st.QuoteMint = solana.PublicKeyFromBytes(data[MarketQuoteMintOffset : MarketQuoteMintOffset+32])
	st.BaseVault = solana.PublicKeyFromBytes(data[MarketBaseVaultOffset : MarketBaseVaultOffset+32])
	st.QuoteVault = solana.PublicKeyFromBytes(data[MarketQuoteVaultOffset : MarketQuoteVaultOffset+32])
	st.RequestQueue = solana.PublicKeyFromBytes(data[MarketRequestQueueOff : MarketRequestQueueOff+32])
	st.EventQueue = solana.PublicKeyFromBytes(data[MarketEventQueueOffset : MarketEventQueueOffset+32])
	st.Bids = solana.PublicKeyFromBytes(data[MarketBidsOffset : MarketBidsOffset+32])
	st.Asks = solana.PublicKeyFromBytes(data[MarketAsksOffset : MarketAsksOffset+32])
	return st, nil
}

// MarketVaultSigner derives the market's vault-owner PDA from the market
// address and the stored nonce.
func MarketVaultSigner(market solana.PublicKey, nonce uint64) (solana.PublicKey, error) {
	seeds := [][]byte{
		market.Bytes(),
		{byte(nonce)},
		make([]byte, 7),
	}
	signer, err := solana.CreateProgramAddress(seeds, OpenBookProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive market vault signer: %w", err)
	}
	return signer, nil
}
