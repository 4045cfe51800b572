package solana

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// LatencyObserver receives the wall time of every upstream RPC call.
type LatencyObserver interface {
	ObserveRPCLatency(d time.Duration)
}

// Client is a thin adapter over solana-go RPC. Every call passes through a
// process-wide leaky-bucket limiter so that all components together stay
// below the provider's request ceiling.
type Client struct {
	pool    *RPCPool
	limiter ratelimit.Limiter
	logger  *zap.Logger
	metrics LatencyObserver
}

// NewClient validates the endpoint list and builds the shared client.
// rps is the aggregate request ceiling across every component.
func NewClient(rpcList []string, rps int, logger *zap.Logger) (*Client, error) {
	if len(rpcList) == 0 {
		return nil, errors.New("empty RPC list")
	}
	for _, rpcURL := range rpcList {
		if _, err := url.Parse(rpcURL); err != nil {
			return nil, errors.New("invalid RPC URL: " + rpcURL)
		}
	}
	if rps <= 0 {
		rps = 10
	}

	return &Client{
		pool:    NewRPCPool(rpcList),
		limiter: ratelimit.New(rps),
		logger:  logger.Named("solana-client"),
	}, nil
}

// SetMetrics attaches a latency observer; call before the client is shared.
func (c *Client) SetMetrics(o LatencyObserver) {
	c.metrics = o
}

func (c *Client) take() *rpc.Client {
	c.limiter.Take()
	return c.pool.GetClient()
}

// observe reports elapsed wall time for one RPC; use as
// `defer c.observe(time.Now())` at the top of each call.
func (c *Client) observe(start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveRPCLatency(time.Since(start))
	}
}

// GetAccountInfo fetches a single account at confirmed commitment.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	defer c.observe(time.Now())
	result, err := c.take().GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// GetProgramAccountsWithOpts scans program-owned accounts with the given filters.
func (c *Client) GetProgramAccountsWithOpts(
	ctx context.Context,
	programID solana.PublicKey,
	opts *rpc.GetProgramAccountsOpts,
) (rpc.GetProgramAccountsResult, error) {
	defer c.observe(time.Now())
	accounts, err := c.take().GetProgramAccountsWithOpts(ctx, programID, opts)
	if err != nil {
		c.logger.Debug("GetProgramAccountsWithOpts error",
			zap.String("program_id", programID.String()),
			zap.Error(err))
		return nil, err
	}
	return accounts, nil
}

// GetTokenAccountsByOwner lists the owner's token accounts, optionally
// narrowed to a single mint.
func (c *Client) GetTokenAccountsByOwner(
	ctx context.Context,
	owner solana.PublicKey,
	conf *rpc.GetTokenAccountsConfig,
) (*rpc.GetTokenAccountsResult, error) {
	defer c.observe(time.Now())
	result, err := c.take().GetTokenAccountsByOwner(ctx, owner, conf, &rpc.GetTokenAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		c.logger.Debug("GetTokenAccountsByOwner error",
			zap.String("owner", owner.String()),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// GetTokenAccountBalance reads a token vault balance at confirmed commitment.
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*rpc.GetTokenAccountBalanceResult, error) {
	defer c.observe(time.Now())
	return c.take().GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
}

// GetBalance reads the lamport balance of an account.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	defer c.observe(time.Now())
	result, err := c.take().GetBalance(ctx, pubkey, rpc.CommitmentConfirmed)
	if err != nil {
		c.logger.Error("GetBalance error", zap.Error(err))
		return 0, err
	}
	return result.Value, nil
}

// GetLatestBlockhash fetches a fresh block reference.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	defer c.observe(time.Now())
	result, err := c.take().GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		c.logger.Error("GetLatestBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// SendTransaction submits a signed transaction with preflight disabled.
// Acceptance by the endpoint is not confirmation.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	defer c.observe(time.Now())
	sig, err := c.take().SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		c.logger.Error("SendTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// GetSignatureStatuses polls submission outcomes, searching the full
// transaction history so older signatures still resolve.
func (c *Client) GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	defer c.observe(time.Now())
	result, err := c.take().GetSignatureStatuses(ctx, true, sigs...)
	if err != nil {
		c.logger.Debug("GetSignatureStatuses error", zap.Error(err))
		return nil, err
	}
	return result, nil
}

// GetTransaction fetches a confirmed transaction with its meta.
func (c *Client) GetTransaction(ctx context.Context, sig solana.Signature) (*rpc.GetTransactionResult, error) {
	defer c.observe(time.Now())
	maxVersion := uint64(0)
	result, err := c.take().GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		c.logger.Debug("GetTransaction error",
			zap.String("signature", sig.String()),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}
