// Package chaingateway is a client for the JSON relay in front of the clearing
// house contracts.
package chaingateway

import (
	"time"

	"futures_dashboard/internal/platform/config"
)

// Config holds configuration for the chain gateway client.
type Config struct {
	BaseURL string        // e.g. "https://gateway.sepolia.internal"
	APIKey  string        // sent as X-API-Key when set
	Timeout time.Duration // per-request timeout
}

// LoadConfig extracts the client settings from the service configuration.
func LoadConfig(g config.GatewayConfig) Config {
	return Config{
		BaseURL: g.BaseURL,
		APIKey:  g.APIKey,
		Timeout: g.Timeout,
	}
}
