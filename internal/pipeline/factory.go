package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tjfontaine/taintpath/internal/pkg/config"
)

// Hop names of the forwarding chain.
const (
	HopForwarder = "forwarder"
	HopAsync     = "async"
)

// NewForwardChainFromConfig builds the long forwarding chain: a synchronous
// forwarder followed by the async hop.
func NewForwardChainFromConfig(cfg config.PipelineConfig, logger *slog.Logger) (*Chain, error) {
	delay := 10 * time.Millisecond // Default
	if cfg.AsyncDelay != "" {
		var err error
		delay, err = time.ParseDuration(cfg.AsyncDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid async_delay %q: %w", cfg.AsyncDelay, err)
		}
	}
	if delay < 0 {
		return nil, fmt.Errorf("invalid async_delay %q: must not be negative", cfg.AsyncDelay)
	}

	return NewChain(ChainConfig{
		Logger: logger,
		Hops: []HopConfig{
			{Name: HopForwarder, Order: 1, Hop: NewRelay(HopForwarder)},
			{Name: HopAsync, Order: 2, Hop: NewAsyncHop(HopAsync, delay)},
		},
	}), nil
}

// NewDirectChain builds a chain with no hops.
func NewDirectChain(logger *slog.Logger) *Chain {
	return NewChain(ChainConfig{Logger: logger})
}
