// Package di provides dependency injection factories for creating application components.
package di

import (
	"time"

	"futures_dashboard/internal/platform/config"
	"futures_dashboard/internal/platform/externalapi/chaingateway"
	infrahttp "futures_dashboard/internal/platform/http"
	"futures_dashboard/internal/shared/ratelimiter"
)

// NewGateway creates a chain gateway client with a timeout-bounded HTTP client
// and a per-second rate limiter shared by every caller.
func NewGateway(g config.GatewayConfig) *chaingateway.Client {
	cfg := chaingateway.LoadConfig(g)
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
	limiter := ratelimiter.NewRateLimiter("chain-gateway", g.RatePerSecond, time.Second)
	return chaingateway.NewClient(cfg, httpClient, limiter)
}
