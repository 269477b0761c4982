// Package usecase issues wallet sessions.
package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"futures_dashboard/internal/feature/session/domain"
	"futures_dashboard/internal/feature/session/domain/entity"
)

// TokenIssuer signs a session into a bearer token.
type TokenIssuer interface {
	GenerateToken(s entity.Session) (string, error)
}

// SessionUsecase turns a connected wallet into a session capability.
type SessionUsecase struct {
	tokens   TokenIssuer
	chainID  int64
	validate *validator.Validate
}

// NewSessionUsecase creates a SessionUsecase accepting wallets on chainID only.
func NewSessionUsecase(tokens TokenIssuer, chainID int64) *SessionUsecase {
	return &SessionUsecase{tokens: tokens, chainID: chainID, validate: validator.New()}
}

// Issue validates the wallet and returns a signed token for it.
func (u *SessionUsecase) Issue(ctx context.Context, account string, chainID int64) (string, entity.Session, error) {
	if err := u.validate.Var(account, "required,eth_addr"); err != nil {
		return "", entity.Session{}, fmt.Errorf("%w: %q", domain.ErrInvalidAccount, account)
	}
	if chainID != u.chainID {
		slog.Info("session rejected: wrong network", "account", account, "chain_id", chainID, "want_chain_id", u.chainID)
		return "", entity.Session{}, fmt.Errorf("%w: got chain %d, want %d", domain.ErrWrongNetwork, chainID, u.chainID)
	}

	s := entity.Session{Account: account, ChainID: chainID}
	token, err := u.tokens.GenerateToken(s)
	if err != nil {
		return "", entity.Session{}, fmt.Errorf("generate token: %w", err)
	}
	return token, s, nil
}

// ChainID is the network sessions are issued for.
func (u *SessionUsecase) ChainID() int64 { return u.chainID }
