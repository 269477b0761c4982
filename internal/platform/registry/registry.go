// Package registry is the single lookup table from instrument identity to the
// contract addresses and parameters needed to read and trade it.
package registry

import (
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/sha3"
	"gopkg.in/yaml.v3"
)

//go:embed sepolia.yaml
var defaultFile []byte

var (
	// ErrUnknownMarket is returned when a symbol is not in the registry.
	ErrUnknownMarket = errors.New("unknown market")
	// ErrUnknownToken is returned when a collateral token is not in the registry.
	ErrUnknownToken = errors.New("unknown token")
)

// Market describes one tradable perpetual market.
type Market struct {
	Symbol        string `yaml:"symbol" json:"symbol" validate:"required"`
	DisplayName   string `yaml:"displayName" json:"displayName"`
	BaseAsset     string `yaml:"baseAsset" json:"baseAsset" validate:"required"`
	QuoteAsset    string `yaml:"quoteAsset" json:"quoteAsset" validate:"required"`
	MarketID      string `yaml:"marketId" json:"marketId" validate:"omitempty,hexadecimal,len=66"`
	AMMAddress    string `yaml:"ammAddress" json:"ammAddress" validate:"required,eth_addr"`
	OracleAddress string `yaml:"oracleAddress" json:"oracleAddress" validate:"omitempty,eth_addr"`
	Decimals      int32  `yaml:"decimals" json:"decimals" validate:"gte=0,lte=36"`
	Deprecated    bool   `yaml:"deprecated" json:"deprecated"`
}

// Token is a supported collateral token.
type Token struct {
	Symbol   string `yaml:"symbol" json:"symbol" validate:"required"`
	Name     string `yaml:"name" json:"name"`
	Address  string `yaml:"address" json:"address" validate:"required,eth_addr"`
	Decimals int32  `yaml:"decimals" json:"decimals" validate:"gte=0,lte=36"`
}

// Contracts holds protocol-level addresses.
type Contracts struct {
	ClearingHouse   string `yaml:"clearingHouse" json:"clearingHouse" validate:"required,eth_addr"`
	CollateralVault string `yaml:"collateralVault" json:"collateralVault" validate:"omitempty,eth_addr"`
	MarketRegistry  string `yaml:"marketRegistry" json:"marketRegistry" validate:"omitempty,eth_addr"`
	Oracle          string `yaml:"oracle" json:"oracle" validate:"omitempty,eth_addr"`
}

type file struct {
	ChainID       int64     `yaml:"chainId" validate:"required,gt=0"`
	DefaultMarket string    `yaml:"defaultMarket"`
	Contracts     Contracts `yaml:"contracts"`
	Markets       []Market  `yaml:"markets" validate:"required,min=1,dive"`
	Tokens        []Token   `yaml:"tokens" validate:"dive"`
}

// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	chainID       int64
	defaultMarket string
	contracts     Contracts
	markets       map[string]Market
	order         []string
	tokens        map[string]Token
}

// Default returns the registry bundled with the binary.
func Default() (*Registry, error) {
	return Parse(defaultFile)
}

// Load reads a registry from a YAML file. An empty path loads the bundled default.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes and validates a YAML registry.
func Parse(b []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("validate registry: %w", err)
	}

	r := &Registry{
		chainID:   f.ChainID,
		contracts: f.Contracts,
		markets:   make(map[string]Market, len(f.Markets)),
		tokens:    make(map[string]Token, len(f.Tokens)),
	}
	for _, m := range f.Markets {
		if _, dup := r.markets[m.Symbol]; dup {
			return nil, fmt.Errorf("validate registry: duplicate market %q", m.Symbol)
		}
		if m.MarketID == "" {
			m.MarketID = MarketID(m.Symbol)
		}
		if m.Decimals == 0 {
			m.Decimals = 18
		}
		if m.DisplayName == "" {
			m.DisplayName = m.Symbol
		}
		r.markets[m.Symbol] = m
		r.order = append(r.order, m.Symbol)
	}
	for _, tk := range f.Tokens {
		r.tokens[strings.ToLower(tk.Address)] = tk
	}

	r.defaultMarket = f.DefaultMarket
	if r.defaultMarket == "" {
		r.defaultMarket = r.order[0]
	}
	if _, ok := r.markets[r.defaultMarket]; !ok {
		return nil, fmt.Errorf("validate registry: default market %q: %w", r.defaultMarket, ErrUnknownMarket)
	}
	return r, nil
}

// MarketID is keccak256 of the market symbol, 0x-prefixed.
func MarketID(symbol string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(symbol))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// ChainID is the chain the contracts are deployed on.
func (r *Registry) ChainID() int64 { return r.chainID }

// Contracts returns protocol-level addresses.
func (r *Registry) Contracts() Contracts { return r.contracts }

// DefaultMarket returns the market shown when none is selected.
func (r *Registry) DefaultMarket() Market { return r.markets[r.defaultMarket] }

// Market looks a market up by symbol.
func (r *Registry) Market(symbol string) (Market, error) {
	m, ok := r.markets[symbol]
	if !ok {
		return Market{}, fmt.Errorf("%w: %s", ErrUnknownMarket, symbol)
	}
	return m, nil
}

// Markets returns all markets in file order.
func (r *Registry) Markets() []Market {
	out := make([]Market, 0, len(r.order))
	for _, s := range r.order {
		out = append(out, r.markets[s])
	}
	return out
}

// Token looks a collateral token up by address (case-insensitive).
func (r *Registry) Token(address string) (Token, error) {
	tk, ok := r.tokens[strings.ToLower(address)]
	if !ok {
		return Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, address)
	}
	return tk, nil
}

// Tokens returns all collateral tokens sorted by symbol.
func (r *Registry) Tokens() []Token {
	out := make([]Token, 0, len(r.tokens))
	for _, tk := range r.tokens {
		out = append(out, tk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
