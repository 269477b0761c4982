// Package domain defines domain-level errors for the session feature.
package domain

import "errors"

var (
	// ErrInvalidAccount indicates an account that is not a 0x-prefixed 20-byte address.
	ErrInvalidAccount = errors.New("invalid account address")

	// ErrWrongNetwork indicates a wallet connected to a chain other than the one
	// the contracts are deployed on.
	ErrWrongNetwork = errors.New("wallet is connected to the wrong network")
)
