// Package entity defines the session capability passed to account-scoped operations.
package entity

import "strings"

// Session identifies the connected wallet. It is handed explicitly to every
// operation that needs an account instead of being looked up globally.
type Session struct {
	Account string // 0x-prefixed wallet address
	ChainID int64  // chain the wallet is connected to
}

// Valid reports whether the session carries an account.
func (s Session) Valid() bool { return s.Account != "" }

// SameAccount compares addresses case-insensitively.
func (s Session) SameAccount(addr string) bool { return strings.EqualFold(s.Account, addr) }
