package model

import "errors"

// Failure taxonomy shared by the routing, quoting and building layers.
// Internal layers return these wrapped with context; the public trade
// operations collapse them to nil results.
var (
	// ErrLayoutMismatch marks account bytes that do not match the expected
	// on-chain layout. This indicates a protocol or caching bug, not an
	// expected runtime condition.
	ErrLayoutMismatch = errors.New("account layout mismatch")

	// ErrVenueUnavailable means no pool or bonding curve could be
	// discovered for the mint.
	ErrVenueUnavailable = errors.New("no liquidity venue available")

	// ErrQuoteFailure marks an aggregator quote that failed or came back
	// malformed; the router recovers by falling back to the next venue.
	ErrQuoteFailure = errors.New("quote failure")

	// ErrInstructionBuild means a required token account or layout could
	// not be resolved; fatal for the attempt.
	ErrInstructionBuild = errors.New("instruction build failure")

	// ErrSubmissionFailure marks endpoint rejection or timeout.
	ErrSubmissionFailure = errors.New("transaction submission failure")

	// ErrConfirmationTimeout means the status stayed unresolved after
	// bounded polling; distinct from a definite on-chain failure.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)
