package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
)

// Route count is capped so swaps still fit a legacy transaction.
const maxAccounts = 30

// Client talks to the Jupiter quote API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger.Named("jupiter"),
	}
}

// QuoteResponse keeps the raw API payload alongside the fields we read.
// The raw payload is echoed back verbatim when requesting instructions.
type QuoteResponse struct {
	Raw                  json.RawMessage
	InAmount             uint64
	OutAmount            uint64
	OtherAmountThreshold uint64
	PriceImpactPct       float64
}

// Quote fetches a route for swapping amount raw units of inputMint into
// outputMint.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps uint64) (*QuoteResponse, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint.String())
	q.Set("outputMint", outputMint.String())
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.FormatUint(slippageBps, 10))
	q.Set("maxAccounts", strconv.Itoa(maxAccounts))
	q.Set("asLegacyTransaction", "true")

	body, err := c.get(ctx, c.baseURL+"/quote?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("%w: quote: %v", model.ErrQuoteFailure, err)
	}

	var parsed struct {
		InAmount             string `json:"inAmount"`
		OutAmount            string `json:"outAmount"`
		OtherAmountThreshold string `json:"otherAmountThreshold"`
		PriceImpactPct       string `json:"priceImpactPct"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode quote: %v", model.ErrQuoteFailure, err)
	}

	resp := &QuoteResponse{Raw: body}
	if resp.InAmount, err = strconv.ParseUint(parsed.InAmount, 10, 64); err != nil {
		return nil, fmt.Errorf("%w: inAmount %q: %v", model.ErrQuoteFailure, parsed.InAmount, err)
	}
	if resp.OutAmount, err = strconv.ParseUint(parsed.OutAmount, 10, 64); err != nil {
		return nil, fmt.Errorf("%w: outAmount %q: %v", model.ErrQuoteFailure, parsed.OutAmount, err)
	}
	if parsed.OtherAmountThreshold != "" {
		if resp.OtherAmountThreshold, err = strconv.ParseUint(parsed.OtherAmountThreshold, 10, 64); err != nil {
			return nil, fmt.Errorf("%w: otherAmountThreshold %q: %v", model.ErrQuoteFailure, parsed.OtherAmountThreshold, err)
		}
	}
	if parsed.PriceImpactPct != "" {
		if resp.PriceImpactPct, err = strconv.ParseFloat(parsed.PriceImpactPct, 64); err != nil {
			return nil, fmt.Errorf("%w: priceImpactPct %q: %v", model.ErrQuoteFailure, parsed.PriceImpactPct, err)
		}
	}
	return resp, nil
}

// apiInstruction is the wire form of one instruction in a
// swap-instructions response.
type apiInstruction struct {
	ProgramID string `json:"programId"`
	Accounts  []struct {
		Pubkey     string `json:"pubkey"`
		IsSigner   bool   `json:"isSigner"`
		IsWritable bool   `json:"isWritable"`
	} `json:"accounts"`
	Data string `json:"data"`
}

type swapInstructionsResponse struct {
	SetupInstructions  []apiInstruction `json:"setupInstructions"`
	SwapInstruction    *apiInstruction  `json:"swapInstruction"`
	CleanupInstruction *apiInstruction  `json:"cleanupInstruction"`
}

// SwapInstructions materializes the instruction list for a previously
// fetched quote. Compute-budget instructions are requested off because
// the transaction assembler prepends its own.
func (c *Client) SwapInstructions(ctx context.Context, quote *QuoteResponse, user solana.PublicKey) ([]solana.Instruction, error) {
	reqBody, err := json.Marshal(map[string]interface{}{
		"quoteResponse":       quote.Raw,
		"userPublicKey":       user.String(),
		"wrapAndUnwrapSol":    true,
		"asLegacyTransaction": true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode swap request: %v", model.ErrInstructionBuild, err)
	}

	body, err := c.post(ctx, c.baseURL+"/swap-instructions", reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: swap-instructions: %v", model.ErrInstructionBuild, err)
	}

	var resp swapInstructionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode swap-instructions: %v", model.ErrInstructionBuild, err)
	}
	if resp.SwapInstruction == nil {
		return nil, fmt.Errorf("%w: response missing swap instruction", model.ErrInstructionBuild)
	}

	var out []solana.Instruction
	for _, ix := range resp.SetupInstructions {
		built, err := decodeInstruction(ix)
		if err != nil {
			return nil, err
		}
		out = append(out, built)
	}
	built, err := decodeInstruction(*resp.SwapInstruction)
	if err != nil {
		return nil, err
	}
	out = append(out, built)
	if resp.CleanupInstruction != nil {
		built, err := decodeInstruction(*resp.CleanupInstruction)
		if err != nil {
			return nil, err
		}
		out = append(out, built)
	}
	return out, nil
}

func decodeInstruction(ix apiInstruction) (solana.Instruction, error) {
	program, err := solana.PublicKeyFromBase58(ix.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("%w: program id %q: %v", model.ErrInstructionBuild, ix.ProgramID, err)
	}
	accounts := make(solana.AccountMetaSlice, 0, len(ix.Accounts))
	for _, a := range ix.Accounts {
		pk, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("%w: account %q: %v", model.ErrInstructionBuild, a.Pubkey, err)
		}
		accounts = append(accounts, &solana.AccountMeta{
			PublicKey:  pk,
			IsSigner:   a.IsSigner,
			IsWritable: a.IsWritable,
		})
	}
	data, err := base64.StdEncoding.DecodeString(ix.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: instruction data: %v", model.ErrInstructionBuild, err)
	}
	return solana.NewInstruction(program, accounts, data), nil
}

// get performs a GET with exponential backoff on transient failures.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	})
}

func (c *Client) post(ctx context.Context, rawURL string, body []byte) ([]byte, error) {
	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

func (c *Client) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	op := func() ([]byte, error) {
		req, err := build()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		payload, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
		if err != nil {
			return nil, err
		}
		switch {
		case res.StatusCode == http.StatusOK:
			return payload, nil
		case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500:
			return nil, fmt.Errorf("jupiter returned %d", res.StatusCode)
		default:
			return nil, backoff.Permanent(fmt.Errorf("jupiter returned %d: %s", res.StatusCode, payload))
		}
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying jupiter request", zap.Error(err), zap.Duration("backoff", wait))
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(8*time.Second),
		backoff.WithNotify(notify),
	)
}
