package transaction

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
	"github.com/rovshanmuradov/trade-engine/internal/wallet"
)

// Every trade transaction requests the same compute allowance; priority
// is bought through the unit price alone.
const ComputeUnitLimit uint32 = 200_000

// ComputeUnitPrice converts a target total priority fee in SOL into a
// per-unit price in microlamports.
func ComputeUnitPrice(feeSOL float64) uint64 {
	if feeSOL <= 0 {
		return 0
	}
	return uint64(math.Round(feeSOL * 1e15 / float64(ComputeUnitLimit)))
}

// PlatformFeeLamports sizes the platform fee as a fraction of trade
// value, reduced by the caller's referral discount multiplier.
func PlatformFeeLamports(tradeLamports uint64, feeBps uint64, discount float64) uint64 {
	if feeBps == 0 || tradeLamports == 0 {
		return 0
	}
	if discount <= 0 || discount > 1 {
		discount = 1
	}
	return uint64(float64(tradeLamports) * float64(feeBps) / 10_000 * discount)
}

// Submitter accepts a signed transaction for submission.
type Submitter interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Request describes one transaction to assemble and submit.
type Request struct {
	Set            model.InstructionSet
	PriorityFeeSOL float64

	// PlatformFeeLamports of zero means no fee transfer is appended.
	PlatformFeeLamports uint64
	PlatformFeeWallet   solana.PublicKey
}

// Assembler turns instruction sets into signed transactions and submits
// them. Submission acceptance is not confirmation; see Confirmer.
type Assembler struct {
	blockhash *BlockhashCache
	submitter Submitter
	wallet    *wallet.Wallet
	logger    *zap.Logger
}

func NewAssembler(blockhash *BlockhashCache, submitter Submitter, w *wallet.Wallet, logger *zap.Logger) *Assembler {
	return &Assembler{
		blockhash: blockhash,
		submitter: submitter,
		wallet:    w,
		logger:    logger.Named("assembler"),
	}
}

// Assemble materializes the instruction set, frames it with compute
// budget directives and the optional platform fee transfer, and signs.
// Aggregator sets fetch their instructions here, as close to submission
// as possible.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*solana.Transaction, error) {
	body, err := req.Set.Instructions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: materialize instructions: %v", model.ErrInstructionBuild, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty instruction set", model.ErrInstructionBuild)
	}

	ixs := make([]solana.Instruction, 0, len(body)+3)
	if price := ComputeUnitPrice(req.PriorityFeeSOL); price > 0 {
		ixs = append(ixs, computebudget.NewSetComputeUnitPriceInstruction(price).Build())
	}
	ixs = append(ixs, computebudget.NewSetComputeUnitLimitInstruction(ComputeUnitLimit).Build())
	ixs = append(ixs, body...)

	if req.PlatformFeeLamports > 0 {
		if req.PlatformFeeWallet.IsZero() {
			return nil, fmt.Errorf("%w: platform fee without recipient", model.ErrInstructionBuild)
		}
		ixs = append(ixs, system.NewTransferInstruction(
			req.PlatformFeeLamports,
			a.wallet.PublicKey,
			req.PlatformFeeWallet,
		).Build())
	}

	blockhash, err := a.blockhash.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: blockhash: %v", model.ErrSubmissionFailure, err)
	}

	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(a.wallet.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("%w: build transaction: %v", model.ErrInstructionBuild, err)
	}
	if err := a.wallet.SignTransaction(tx, req.Set.Signers()...); err != nil {
		return nil, fmt.Errorf("%w: sign: %v", model.ErrInstructionBuild, err)
	}
	return tx, nil
}

// Submit pushes a signed transaction to the endpoint, retrying transient
// rejections briefly. The returned signature means accepted, not landed.
func (a *Assembler) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	op := func() (solana.Signature, error) {
		sig, err := a.submitter.SendTransaction(ctx, tx)
		if err != nil {
			if ctx.Err() != nil {
				return solana.Signature{}, backoff.Permanent(err)
			}
			return solana.Signature{}, err
		}
		return sig, nil
	}

	sig, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(10*time.Second),
	)
	if err != nil {
		a.logger.Warn("submission failed", zap.Error(err))
		return solana.Signature{}, fmt.Errorf("%w: %v", model.ErrSubmissionFailure, err)
	}

	a.logger.Info("transaction submitted", zap.String("signature", sig.String()))
	return sig, nil
}
