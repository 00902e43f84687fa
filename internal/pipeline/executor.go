package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tjfontaine/taintpath/internal/core/domain"
	"github.com/tjfontaine/taintpath/internal/core/ports"
)

var tracer = otel.Tracer("github.com/tjfontaine/taintpath/internal/pipeline")

// Chain relays a value through an ordered list of hops.
type Chain struct {
	hops   []ports.Hop
	logger *slog.Logger
}

// ChainConfig configures a chain from hop configurations.
type ChainConfig struct {
	Hops   []HopConfig
	Logger *slog.Logger
}

// HopConfig is the configuration for a single hop.
type HopConfig struct {
	Name  string
	Order int
	Hop   ports.Hop
}

// NewChain creates a chain from configuration. Hops run in ascending Order;
// hops sharing an Order keep their configured sequence.
func NewChain(cfg ChainConfig) *Chain {
	hops := make([]HopConfig, len(cfg.Hops))
	copy(hops, cfg.Hops)

	sort.SliceStable(hops, func(i, j int) bool {
		return hops[i].Order < hops[j].Order
	})

	c := &Chain{hops: make([]ports.Hop, len(hops)), logger: cfg.Logger}
	for i, h := range hops {
		c.hops[i] = h.Hop
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Forward relays v through every hop in order and returns what the last hop
// produced. Any hop failure, including a timeout or cancellation observed at
// a suspension point, ends the chain with a *domain.ChainFailure.
func (c *Chain) Forward(ctx context.Context, v domain.Value) (domain.Value, error) {
	current := v
	for _, hop := range c.hops {
		if err := ctx.Err(); err != nil {
			return domain.Value{}, domain.NewChainFailure(hop.Name(), err)
		}

		out, err := c.forwardHop(ctx, hop, current)
		if err != nil {
			return domain.Value{}, err
		}
		current = out
	}
	return current, nil
}

func (c *Chain) forwardHop(ctx context.Context, hop ports.Hop, v domain.Value) (domain.Value, error) {
	ctx, span := tracer.Start(ctx, "hop."+hop.Name())
	defer span.End()
	span.SetAttributes(attribute.Bool("taint.tainted", v.Tainted))

	out, err := hop.Forward(ctx, v)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "hop failed")
		return domain.Value{}, domain.NewChainFailure(hop.Name(), err)
	}
	if !out.Equal(v) {
		err := &MutationError{HopName: hop.Name()}
		span.RecordError(err)
		span.SetStatus(codes.Error, "hop mutated value")
		return domain.Value{}, domain.NewChainFailure(hop.Name(), err)
	}

	c.logger.DebugContext(ctx, "hop forwarded value", slog.String("hop", hop.Name()))
	return out, nil
}

// Run forwards v through the chain and hands the result to terminal. A
// terminal failure is reported as a chain failure of the named stage.
func (c *Chain) Run(ctx context.Context, v domain.Value, stage string, terminal func(context.Context, domain.Value) (domain.SinkResult, error)) (domain.SinkResult, error) {
	out, err := c.Forward(ctx, v)
	if err != nil {
		return domain.SinkResult{}, err
	}
	res, err := terminal(ctx, out)
	if err != nil {
		return res, domain.NewChainFailure(stage, err)
	}
	return res, nil
}

// Len returns the number of hops in the chain.
func (c *Chain) Len() int {
	return len(c.hops)
}

// Names returns the hop names in execution order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.hops))
	for i, h := range c.hops {
		names[i] = h.Name()
	}
	return names
}

// MutationError is returned when a hop hands back a different value than it
// received. Hops are pass-through only.
type MutationError struct {
	HopName string
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("hop %s altered the forwarded value", e.HopName)
}

// Ensure Chain can itself be used as a hop.
var _ ports.Hop = (*namedChain)(nil)

// namedChain adapts a Chain to ports.Hop so chains can be nested.
type namedChain struct {
	name string
	*Chain
}

func (n *namedChain) Name() string { return n.name }

// AsHop exposes the chain as a single named hop.
func (c *Chain) AsHop(name string) ports.Hop {
	return &namedChain{name: name, Chain: c}
}
