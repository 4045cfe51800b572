package jupiter

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/trade-engine/internal/dex/model"
)

// SwapSet defers instruction building to submission time: aggregator
// routes reference short-lived intermediate accounts, so the account
// list is fetched fresh against the quoted route when the transaction
// is actually assembled.
type SwapSet struct {
	client *Client
	quote  *QuoteResponse
	user   solana.PublicKey
}

func NewSwapSet(client *Client, quote *QuoteResponse, user solana.PublicKey) *SwapSet {
	return &SwapSet{client: client, quote: quote, user: user}
}

func (s *SwapSet) Venue() model.Venue { return model.VenueAggregator }

func (s *SwapSet) Instructions(ctx context.Context) ([]solana.Instruction, error) {
	return s.client.SwapInstructions(ctx, s.quote, s.user)
}

func (s *SwapSet) Signers() []solana.PrivateKey { return nil }
