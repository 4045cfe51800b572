package trader

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
	"github.com/rovshanmuradov/trade-engine/internal/metrics"
	"github.com/rovshanmuradov/trade-engine/internal/transaction"
	"github.com/rovshanmuradov/trade-engine/internal/wallet"
)

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(solana.Signature), args.Error(1)
}

type mockBalances struct {
	mock.Mock
}

func (m *mockBalances) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*rpc.GetTokenAccountBalanceResult, error) {
	args := m.Called(ctx, account)
	if res := args.Get(0); res != nil {
		return res.(*rpc.GetTokenAccountBalanceResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type staticBlockhash struct{}

func (staticBlockhash) GetLatestBlockhash(context.Context) (solana.Hash, error) {
	return solana.HashFromBytes([]byte("00000000000000000000000000000001")), nil
}

func testTrader(t *testing.T, sub *mockSubmitter, balances *mockBalances) (*Trader, *wallet.Wallet) {
	t.Helper()
	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	assembler := transaction.NewAssembler(
		transaction.NewBlockhashCache(staticBlockhash{}), sub, w, zap.NewNop())

	tr := New(nil, assembler, balances, w, Config{
		PriorityFeeSOL:    0.00007,
		PlatformFeeBps:    50,
		PlatformFeeWallet: solana.NewWallet().PublicKey(),
		ReferralDiscount:  1,
	}, metrics.NewCollector(prometheus.NewRegistry()), zap.NewNop())
	return tr, w
}

func transferSet(w *wallet.Wallet) model.InstructionSet {
	ix := system.NewTransferInstruction(1, w.PublicKey, solana.NewWallet().PublicKey()).Build()
	return model.NewPrebuilt(model.VenuePool, []solana.Instruction{ix})
}

func TestSubmitReturnsSignature(t *testing.T) {
	sub := &mockSubmitter{}
	tr, w := testTrader(t, sub, &mockBalances{})

	want := solana.Signature{7}
	sub.On("SendTransaction", mock.Anything, mock.Anything).Return(want, nil)

	sig := tr.Submit(context.Background(), transferSet(w), 1_000_000_000)
	assert.Equal(t, want, sig)
}

func TestSubmitEndpointRejectionReturnsZero(t *testing.T) {
	sub := &mockSubmitter{}
	tr, w := testTrader(t, sub, &mockBalances{})

	ctx, cancel := context.WithCancel(context.Background())
	sub.On("SendTransaction", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(solana.Signature{}, errors.New("rejected"))

	sig := tr.Submit(ctx, transferSet(w), 1_000_000_000)
	assert.True(t, sig.IsZero(), "rejection must degrade to a zero signature, not an error")
}

func TestSubmitAssemblyFailureReturnsZero(t *testing.T) {
	tr, _ := testTrader(t, &mockSubmitter{}, &mockBalances{})

	sig := tr.Submit(context.Background(), model.NewPrebuilt(model.VenuePool, nil), 0)
	assert.True(t, sig.IsZero())
}

func TestSellPercentageNoHoldingReturnsNil(t *testing.T) {
	balances := &mockBalances{}
	tr, _ := testTrader(t, &mockSubmitter{}, balances)

	balances.On("GetTokenAccountBalance", mock.Anything, mock.Anything).
		Return(nil, errors.New("account not found"))

	swap := tr.SellPercentage(context.Background(), solana.NewWallet().PublicKey(), 100, 100)
	assert.Nil(t, swap)
}

func TestSellPercentageZeroBalanceReturnsNil(t *testing.T) {
	balances := &mockBalances{}
	tr, _ := testTrader(t, &mockSubmitter{}, balances)

	balances.On("GetTokenAccountBalance", mock.Anything, mock.Anything).
		Return(&rpc.GetTokenAccountBalanceResult{Value: &rpc.UiTokenAmount{Amount: "0"}}, nil)

	swap := tr.SellPercentage(context.Background(), solana.NewWallet().PublicKey(), 50, 100)
	assert.Nil(t, swap)
}

func TestReferralDiscountNormalized(t *testing.T) {
	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	tr := New(nil, nil, nil, w, Config{ReferralDiscount: -1}, metrics.NewCollector(prometheus.NewRegistry()), zap.NewNop())
	require.Equal(t, 1.0, tr.cfg.ReferralDiscount)

	tr = New(nil, nil, nil, w, Config{ReferralDiscount: 0.5}, metrics.NewCollector(prometheus.NewRegistry()), zap.NewNop())
	require.Equal(t, 0.5, tr.cfg.ReferralDiscount)
}
