package solana

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureObserver struct {
	calls int
	last  time.Duration
}

func (o *captureObserver) ObserveRPCLatency(d time.Duration) {
	o.calls++
	o.last = d
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(nil, 10, zap.NewNop())
	assert.Error(t, err)

	c, err := NewClient([]string{"http://localhost:8899", "http://localhost:8900"}, 0, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, c.pool.Size())
}

func TestClientObservesRPCLatency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{"context":{"slot":100},"value":1234567},"id":1}`))
	}))
	defer srv.Close()

	c, err := NewClient([]string{srv.URL}, 100, zap.NewNop())
	require.NoError(t, err)

	obs := &captureObserver{}
	c.SetMetrics(obs)

	balance, err := c.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(1234567), balance)
	assert.Equal(t, 1, obs.calls)
	assert.Greater(t, obs.last, time.Duration(0))
}

func TestClientWithoutObserverStillServes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{"context":{"slot":100},"value":42},"id":1}`))
	}))
	defer srv.Close()

	c, err := NewClient([]string{srv.URL}, 100, zap.NewNop())
	require.NoError(t, err)

	balance, err := c.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), balance)
}
