// Package model holds the venue-independent trade types shared by the
// router, the venue packages and the transaction assembler.
package model

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Venue identifies the liquidity source serving a trade.
type Venue string

const (
	VenueBondingCurve Venue = "pump.fun"
	VenueAggregator   Venue = "jupiter"
	VenuePool         Venue = "raydium"
)

// Quote is the venue-normalized result of pricing a trade. CurrentPrice is
// how many out-tokens one in-token buys at the venue's spot price.
// MinTokenAmountOut ≤ TokenAmountOut always; they are equal only at zero
// requested slippage.
type Quote struct {
	Venue             Venue
	CurrentPrice      float64
	PriceImpact       float64
	TokenAmountOut    float64
	MinTokenAmountOut float64
}

// InstructionSet is the venue-tagged list of instructions implementing a
// quoted trade. Local venues carry prebuilt instructions; the aggregator
// re-materializes them from its API immediately before submission, so
// Instructions may issue remote calls.
type InstructionSet interface {
	Venue() Venue
	Instructions(ctx context.Context) ([]solana.Instruction, error)
	// Signers returns the ephemeral keypairs the set requires beyond the
	// trade owner (e.g. a throwaway wrapped-SOL account).
	Signers() []solana.PrivateKey
}

// Swap bundles everything a caller needs to decide on and then execute a
// trade.
type Swap struct {
	Quote *Quote
	Set   InstructionSet
}

// Prebuilt is an InstructionSet whose instructions were assembled locally
// and do not change between quoting and submission.
type Prebuilt struct {
	venue   Venue
	ixs     []solana.Instruction
	signers []solana.PrivateKey
}

func NewPrebuilt(venue Venue, ixs []solana.Instruction, signers ...solana.PrivateKey) *Prebuilt {
	return &Prebuilt{venue: venue, ixs: ixs, signers: signers}
}

func (p *Prebuilt) Venue() Venue { return p.venue }

func (p *Prebuilt) Instructions(context.Context) ([]solana.Instruction, error) {
	return p.ixs, nil
}

func (p *Prebuilt) Signers() []solana.PrivateKey { return p.signers }

// Append wraps a set so that extra instructions follow the materialized
// list (e.g. closing a fully liquidated token account).
func Append(set InstructionSet, extra ...solana.Instruction) InstructionSet {
	return &appended{inner: set, extra: extra}
}

type appended struct {
	inner InstructionSet
	extra []solana.Instruction
}

func (a *appended) Venue() Venue { return a.inner.Venue() }

func (a *appended) Instructions(ctx context.Context) ([]solana.Instruction, error) {
	ixs, err := a.inner.Instructions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]solana.Instruction, 0, len(ixs)+len(a.extra))
	out = append(out, ixs...)
	out = append(out, a.extra...)
	return out, nil
}

func (a *appended) Signers() []solana.PrivateKey { return a.inner.Signers() }
