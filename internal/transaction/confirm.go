package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
	"github.com/rovshanmuradov/trade-engine/internal/position"
)

// Outcome is the terminal state of confirmation tracking.
type Outcome int

const (
	// OutcomeConfirmed means the transaction landed and executed.
	OutcomeConfirmed Outcome = iota
	// OutcomeFailed means the transaction landed but errored.
	OutcomeFailed
	// OutcomeUnconfirmed means status stayed unresolved through the
	// whole polling schedule. The transaction may still land later.
	OutcomeUnconfirmed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unconfirmed"
	}
}

// StatusReader is the slice of RPC surface confirmation tracking needs.
type StatusReader interface {
	GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetTransaction(ctx context.Context, sig solana.Signature) (*rpc.GetTransactionResult, error)
}

// Polling waits between status checks. The schedule is fixed: four
// attempts at increasing intervals, then give up.
var pollSchedule = []time.Duration{
	10 * time.Second,
	20 * time.Second,
	30 * time.Second,
	60 * time.Second,
}

// ConfirmationRecorder counts terminal confirmation outcomes.
type ConfirmationRecorder interface {
	RecordConfirmation(outcome string)
}

// Confirmer tracks submitted transactions out-of-band until they
// resolve or the polling schedule is exhausted.
type Confirmer struct {
	reader  StatusReader
	logger  *zap.Logger
	metrics ConfirmationRecorder

	// overridable in tests
	schedule []time.Duration
}

func NewConfirmer(reader StatusReader, logger *zap.Logger) *Confirmer {
	return &Confirmer{
		reader:   reader,
		logger:   logger.Named("confirm"),
		schedule: pollSchedule,
	}
}

// SetMetrics attaches an outcome recorder; call before sharing the confirmer.
func (c *Confirmer) SetMetrics(rec ConfirmationRecorder) {
	c.metrics = rec
}

func (c *Confirmer) record(outcome Outcome) {
	if c.metrics != nil {
		c.metrics.RecordConfirmation(outcome.String())
	}
}

// Wait polls the signature's status on the fixed schedule. Every terminal
// outcome, including giving up, is counted.
func (c *Confirmer) Wait(ctx context.Context, sig solana.Signature) (Outcome, error) {
	for attempt, interval := range c.schedule {
		select {
		case <-ctx.Done():
			return OutcomeUnconfirmed, ctx.Err()
		case <-time.After(interval):
		}

		result, err := c.reader.GetSignatureStatuses(ctx, sig)
		if err != nil {
			c.logger.Debug("status poll failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		if result == nil || len(result.Value) == 0 || result.Value[0] == nil {
			continue
		}

		status := result.Value[0]
		if status.ConfirmationStatus != rpc.ConfirmationStatusConfirmed &&
			status.ConfirmationStatus != rpc.ConfirmationStatusFinalized {
			continue
		}
		if status.Err != nil {
			c.logger.Warn("transaction failed on-ledger",
				zap.String("signature", sig.String()),
				zap.Any("error", status.Err))
			c.record(OutcomeFailed)
			return OutcomeFailed, nil
		}
		c.logger.Info("transaction confirmed",
			zap.String("signature", sig.String()),
			zap.Int("attempt", attempt+1))
		c.record(OutcomeConfirmed)
		return OutcomeConfirmed, nil
	}

	c.record(OutcomeUnconfirmed)
	return OutcomeUnconfirmed, fmt.Errorf("%w: %s unresolved after %d polls", model.ErrConfirmationTimeout, sig, len(c.schedule))
}

// BuildRecord fetches a confirmed transaction and extracts the balance
// movements for one mint into an immutable trade record. owner must be
// the fee payer of the transaction.
func (c *Confirmer) BuildRecord(ctx context.Context, sig solana.Signature, owner solana.PublicKey, mint solana.PublicKey, solUSDRate, platformFeeSOL float64) (*position.TransactionRecord, error) {
	result, err := c.reader.GetTransaction(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction %s: %w", sig, err)
	}
	if result == nil || result.Meta == nil {
		return nil, fmt.Errorf("transaction %s has no meta", sig)
	}
	meta := result.Meta
	if len(meta.PreBalances) == 0 || len(meta.PostBalances) == 0 {
		return nil, fmt.Errorf("transaction %s has empty balance arrays", sig)
	}

	rec := &position.TransactionRecord{
		Mint: mint.String(),
		// fee payer is always account index 0
		PreSOLBalance:  float64(meta.PreBalances[0]) / 1e9,
		PostSOLBalance: float64(meta.PostBalances[0]) / 1e9,
		SOLUSDRate:     solUSDRate,
		PlatformFeeSOL: platformFeeSOL,
	}
	if result.BlockTime != nil {
		rec.Timestamp = result.BlockTime.Time()
	} else {
		rec.Timestamp = time.Now()
	}

	rec.PreTokenBalance = tokenBalanceFor(meta.PreTokenBalances, owner, mint)
	rec.PostTokenBalance = tokenBalanceFor(meta.PostTokenBalances, owner, mint)
	return rec, nil
}

func tokenBalanceFor(balances []rpc.TokenBalance, owner, mint solana.PublicKey) float64 {
	for _, b := range balances {
		if b.Mint.Equals(mint) && b.Owner != nil && b.Owner.Equals(owner) {
			if b.UiTokenAmount != nil && b.UiTokenAmount.UiAmount != nil {
				return *b.UiTokenAmount.UiAmount
			}
		}
	}
	return 0
}
