package raydium

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
)

// SwapParams collects everything needed to assemble one AMM v4 swap.
type SwapParams struct {
	Keys         *PoolKeys
	Owner        solana.PublicKey
	Source       solana.PublicKey // token account debited
	Destination  solana.PublicKey // token account credited
	AmountIn     uint64
	MinAmountOut uint64
}

// BuildSwapInstruction assembles the 18-account AMM v4 swap-base-in
// instruction.
func BuildSwapInstruction(p SwapParams) (solana.Instruction, error) {
	if p.Keys == nil {
		return nil, fmt.Errorf("%w: missing pool keys", model.ErrInstructionBuild)
	}
	if p.AmountIn == 0 {
		return nil, fmt.Errorf("%w: zero input amount", model.ErrInstructionBuild)
	}

	data := make([]byte, 17)
	data[0] = SwapOpcode
	binary.LittleEndian.PutUint64(data[1:9], p.AmountIn)
	binary.LittleEndian.PutUint64(data[9:17], p.MinAmountOut)

	accounts := solana.AccountMetaSlice{
		solana.Meta(solana.TokenProgramID),
		solana.Meta(p.Keys.AmmID).WRITE(),
		solana.Meta(p.Keys.AmmAuthority),
		solana.Meta(p.Keys.AmmOpenOrders).WRITE(),
		solana.Meta(p.Keys.AmmTargetOrders).WRITE(),
		solana.Meta(p.Keys.PoolCoinVault).WRITE(),
		solana.Meta(p.Keys.PoolPcVault).WRITE(),
		solana.Meta(p.Keys.SerumProgramID),
		solana.Meta(p.Keys.SerumMarket).WRITE(),
		solana.Meta(p.Keys.SerumBids).WRITE(),
		solana.Meta(p.Keys.SerumAsks).WRITE(),
		solana.Meta(p.Keys.SerumEventQueue).WRITE(),
		solana.Meta(p.Keys.SerumBaseVault).WRITE(),
		solana.Meta(p.Keys.SerumQuoteVault).WRITE(),
		solana.Meta(p.Keys.SerumVaultOwner),
		solana.Meta(p.Source).WRITE(),
		solana.Meta(p.Destination).WRITE(),
		solana.Meta(p.Owner).SIGNER(),
	}

	return solana.NewInstruction(RaydiumV4ProgramID, accounts, data), nil
}

// WSOLAccount is an ephemeral wrapped-SOL token account that lives for a
// single transaction.
type WSOLAccount struct {
	Keypair solana.PrivateKey
	Pubkey  solana.PublicKey
}

// NewWSOLAccount generates the keypair for an ephemeral wrapped-SOL account.
func NewWSOLAccount() (*WSOLAccount, error) {
	kp, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: generate wsol keypair: %v", model.ErrInstructionBuild, err)
	}
	return &WSOLAccount{Keypair: kp, Pubkey: kp.PublicKey()}, nil
}

// CreateInstructions funds and initializes the ephemeral account.
// wrapLamports is the SOL being wrapped for a buy; pass 0 when the
// account only receives unwrapped proceeds on a sell.
func (w *WSOLAccount) CreateInstructions(owner solana.PublicKey, wrapLamports uint64) []solana.Instruction {
	return []solana.Instruction{
		system.NewCreateAccountInstruction(
			RentExemptTokenAccountLamports+wrapLamports,
			TokenAccountSize,
			solana.TokenProgramID,
			owner,
			w.Pubkey,
		).Build(),
		token.NewInitializeAccountInstruction(
			w.Pubkey,
			WrappedSOLMint,
			owner,
			solana.SysVarRentPubkey,
		).Build(),
	}
}

// CloseInstruction unwraps any balance back to owner and reclaims rent.
func (w *WSOLAccount) CloseInstruction(owner solana.PublicKey) solana.Instruction {
	return token.NewCloseAccountInstruction(
		w.Pubkey,
		owner,
		owner,
		nil,
	).Build()
}
