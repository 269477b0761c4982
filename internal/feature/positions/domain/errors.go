// Package domain defines domain-level errors for the positions feature.
package domain

import "errors"

// Domain errors for position reads and transaction submission.
var (
	// ErrInvalidAmount indicates user input that cannot be parsed or scaled to the
	// token's fixed-point precision. The triggering action is not submitted.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrTransactionRejected indicates the gateway refused the transaction or it
	// reverted on chain. It is never retried automatically.
	ErrTransactionRejected = errors.New("transaction rejected or failed")

	// ErrTransactionPending indicates an identical action for the same account is
	// still awaiting confirmation.
	ErrTransactionPending = errors.New("transaction already pending")

	// ErrUnknownMarket indicates a market symbol that is not in the registry.
	ErrUnknownMarket = errors.New("unknown market")

	// ErrUnknownToken indicates a collateral token that is not in the registry.
	ErrUnknownToken = errors.New("unknown collateral token")

	// ErrMarketDeprecated indicates an attempt to open exposure in a market that
	// only accepts closes.
	ErrMarketDeprecated = errors.New("market is deprecated")

	// ErrUpstreamUnavailable indicates a failed contract-layer read or submission.
	ErrUpstreamUnavailable = errors.New("contract layer unavailable")
)
