package pumpfun

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
)

// TradeParams collects everything needed to assemble one curve trade.
type TradeParams struct {
	Mint            solana.PublicKey
	Curve           solana.PublicKey
	AssociatedCurve solana.PublicKey
	UserTokenATA    solana.PublicKey
	User            solana.PublicKey
}

// BuildBuyInstruction assembles the curve buy: spend up to maxSolCost
// lamports for exactly tokenAmount raw tokens.
func BuildBuyInstruction(p TradeParams, tokenAmount, maxSolCost uint64) (solana.Instruction, error) {
	if tokenAmount == 0 {
		return nil, fmt.Errorf("%w: zero token amount", model.ErrInstructionBuild)
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(GlobalAccount),
		solana.Meta(FeeRecipient).WRITE(),
		solana.Meta(p.Mint),
		solana.Meta(p.Curve).WRITE(),
		solana.Meta(p.AssociatedCurve).WRITE(),
		solana.Meta(p.UserTokenATA).WRITE(),
		solana.Meta(p.User).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SysVarRentPubkey),
		solana.Meta(EventAuthority),
		solana.Meta(ProgramID),
	}
	return solana.NewInstruction(ProgramID, accounts, tradeData(BuyDiscriminator, tokenAmount, maxSolCost)), nil
}

// BuildSellInstruction assembles the curve sell: burn exactly tokenAmount
// raw tokens for at least minSolOutput lamports.
func BuildSellInstruction(p TradeParams, tokenAmount, minSolOutput uint64) (solana.Instruction, error) {
	if tokenAmount == 0 {
		return nil, fmt.Errorf("%w: zero token amount", model.ErrInstructionBuild)
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(GlobalAccount),
		solana.Meta(FeeRecipient).WRITE(),
		solana.Meta(p.Mint),
		solana.Meta(p.Curve).WRITE(),
		solana.Meta(p.AssociatedCurve).WRITE(),
		solana.Meta(p.UserTokenATA).WRITE(),
		solana.Meta(p.User).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SPLAssociatedTokenAccountProgramID),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(EventAuthority),
		solana.Meta(ProgramID),
	}
	return solana.NewInstruction(ProgramID, accounts, tradeData(SellDiscriminator, tokenAmount, minSolOutput)), nil
}

func tradeData(discriminator, amount, limit uint64) []byte {
	data := make([]byte, 24)
	binary.LittleEndian.PutUint64(data[0:8], discriminator)
	binary.LittleEndian.PutUint64(data[8:16], amount)
	binary.LittleEndian.PutUint64(data[16:24], limit)
	return data
}
