package transaction

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
)

type mockStatusReader struct {
	mock.Mock
}

func (m *mockStatusReader) GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	args := m.Called(ctx, sigs)
	if res := args.Get(0); res != nil {
		return res.(*rpc.GetSignatureStatusesResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStatusReader) GetTransaction(ctx context.Context, sig solana.Signature) (*rpc.GetTransactionResult, error) {
	args := m.Called(ctx, sig)
	if res := args.Get(0); res != nil {
		return res.(*rpc.GetTransactionResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func fastConfirmer(reader StatusReader) *Confirmer {
	c := NewConfirmer(reader, zap.NewNop())
	c.schedule = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond, time.Millisecond}
	return c
}

func statusResult(status rpc.ConfirmationStatusType, txErr interface{}) *rpc.GetSignatureStatusesResult {
	return &rpc.GetSignatureStatusesResult{
		Value: []*rpc.SignatureStatusesResult{{
			ConfirmationStatus: status,
			Err:                txErr,
		}},
	}
}

func TestWaitConfirmed(t *testing.T) {
	reader := &mockStatusReader{}
	reader.On("GetSignatureStatuses", mock.Anything, mock.Anything).
		Return(statusResult(rpc.ConfirmationStatusConfirmed, nil), nil)

	outcome, err := fastConfirmer(reader).Wait(context.Background(), solana.Signature{1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
}

func TestWaitFailedOnLedger(t *testing.T) {
	reader := &mockStatusReader{}
	reader.On("GetSignatureStatuses", mock.Anything, mock.Anything).
		Return(statusResult(rpc.ConfirmationStatusFinalized, map[string]interface{}{"InstructionError": []interface{}{}}), nil)

	outcome, err := fastConfirmer(reader).Wait(context.Background(), solana.Signature{1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestWaitExhaustsSchedule(t *testing.T) {
	reader := &mockStatusReader{}
	reader.On("GetSignatureStatuses", mock.Anything, mock.Anything).
		Return(&rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil)

	outcome, err := fastConfirmer(reader).Wait(context.Background(), solana.Signature{1})
	assert.ErrorIs(t, err, model.ErrConfirmationTimeout)
	assert.Equal(t, OutcomeUnconfirmed, outcome)
	reader.AssertNumberOfCalls(t, "GetSignatureStatuses", 4)
}

func TestWaitKeepsPollingThroughProcessedStatus(t *testing.T) {
	reader := &mockStatusReader{}
	reader.On("GetSignatureStatuses", mock.Anything, mock.Anything).
		Return(statusResult(rpc.ConfirmationStatusProcessed, nil), nil).Once()
	reader.On("GetSignatureStatuses", mock.Anything, mock.Anything).
		Return(statusResult(rpc.ConfirmationStatusConfirmed, nil), nil)

	outcome, err := fastConfirmer(reader).Wait(context.Background(), solana.Signature{1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
}

func TestBuildRecordExtractsBalanceDiffs(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()
	sig := solana.Signature{7}

	pre := 980.0
	post := 1480.5
	otherAmt := 3.0
	blockTime := solana.UnixTimeSeconds(1_700_000_000)

	result := &rpc.GetTransactionResult{
		BlockTime: &blockTime,
		Meta: &rpc.TransactionMeta{
			PreBalances:  []uint64{2_000_000_000, 5_000},
			PostBalances: []uint64{1_450_000_000, 5_000},
			PreTokenBalances: []rpc.TokenBalance{
				{Mint: mint, Owner: &other, UiTokenAmount: &rpc.UiTokenAmount{UiAmount: &otherAmt}},
				{Mint: mint, Owner: &owner, UiTokenAmount: &rpc.UiTokenAmount{UiAmount: &pre}},
			},
			PostTokenBalances: []rpc.TokenBalance{
				{Mint: mint, Owner: &owner, UiTokenAmount: &rpc.UiTokenAmount{UiAmount: &post}},
			},
		},
	}

	reader := &mockStatusReader{}
	reader.On("GetTransaction", mock.Anything, sig).Return(result, nil)

	rec, err := fastConfirmer(reader).BuildRecord(context.Background(), sig, owner, mint, 150.0, 0.0005)
	require.NoError(t, err)

	assert.Equal(t, mint.String(), rec.Mint)
	assert.InDelta(t, 2.0, rec.PreSOLBalance, 1e-12)
	assert.InDelta(t, 1.45, rec.PostSOLBalance, 1e-12)
	assert.InDelta(t, 980.0, rec.PreTokenBalance, 1e-12)
	assert.InDelta(t, 1480.5, rec.PostTokenBalance, 1e-12)
	assert.InDelta(t, 500.5, rec.TokenDelta(), 1e-9)
	assert.InDelta(t, 0.55, rec.SOLDelta(), 1e-12)
	assert.Equal(t, blockTime.Time().UTC(), rec.Timestamp.UTC())
	assert.Equal(t, 150.0, rec.SOLUSDRate)
}

func TestBuildRecordRejectsMissingMeta(t *testing.T) {
	sig := solana.Signature{9}
	reader := &mockStatusReader{}
	reader.On("GetTransaction", mock.Anything, sig).Return(&rpc.GetTransactionResult{}, nil)

	_, err := fastConfirmer(reader).BuildRecord(context.Background(), sig, solana.PublicKey{}, solana.PublicKey{}, 0, 0)
	assert.Error(t, err)
}

type captureRecorder struct {
	outcomes []string
}

func (c *captureRecorder) RecordConfirmation(outcome string) {
	c.outcomes = append(c.outcomes, outcome)
}

func TestWaitRecordsTerminalOutcomes(t *testing.T) {
	sig := solana.Signature{3}

	confirmed := &mockStatusReader{}
	confirmed.On("GetSignatureStatuses", mock.Anything, []solana.Signature{sig}).
		Return(statusResult(rpc.ConfirmationStatusConfirmed, nil), nil)
	rec := &captureRecorder{}
	c := fastConfirmer(confirmed)
	c.SetMetrics(rec)
	_, err := c.Wait(context.Background(), sig)
	require.NoError(t, err)
	assert.Equal(t, []string{"confirmed"}, rec.outcomes)

	failed := &mockStatusReader{}
	failed.On("GetSignatureStatuses", mock.Anything, []solana.Signature{sig}).
		Return(statusResult(rpc.ConfirmationStatusConfirmed, map[string]interface{}{"InstructionError": []interface{}{}}), nil)
	rec = &captureRecorder{}
	c = fastConfirmer(failed)
	c.SetMetrics(rec)
	_, err = c.Wait(context.Background(), sig)
	require.NoError(t, err)
	assert.Equal(t, []string{"failed"}, rec.outcomes)

	silent := &mockStatusReader{}
	silent.On("GetSignatureStatuses", mock.Anything, []solana.Signature{sig}).
		Return(statusResult(rpc.ConfirmationStatusProcessed, nil), nil)
	rec = &captureRecorder{}
	c = fastConfirmer(silent)
	c.SetMetrics(rec)
	_, err = c.Wait(context.Background(), sig)
	assert.ErrorIs(t, err, model.ErrConfirmationTimeout)
	assert.Equal(t, []string{"unconfirmed"}, rec.outcomes)
}
