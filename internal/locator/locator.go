// Package locator resolves the reference position a batch measures distances from.
//
// Resolution runs an ordered chain of strategies and the first one that yields a position wins.
// There is no default origin: when every strategy fails the caller gets a *ResolveError.
package locator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/UnknownOlympus/nearby/internal/models"
)

// Strategy is one way of obtaining the reference position.
type Strategy interface {
	Name() string
	Locate(ctx context.Context) (*models.Coordinates, error)
}

// Fix is a resolved reference position and the strategy that produced it.
type Fix struct {
	Position models.Coordinates `json:"position"`
	Source   string             `json:"source"`
}

// Chain tries strategies in order.
type Chain struct {
	strategies []Strategy
	log        *slog.Logger
}

// NewChain creates a chain from strategies in priority order.
func NewChain(log *slog.Logger, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, log: log}
}

// Resolve returns the first successful fix. Context cancellation stops the chain immediately.
func (c *Chain) Resolve(ctx context.Context) (*Fix, error) {
	attempts := make([]Attempt, 0, len(c.strategies))

	for _, strategy := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pos, err := strategy.Locate(ctx)
		if err == nil {
			c.log.InfoContext(ctx, "Reference position resolved",
				"source", strategy.Name(),
				"lng", pos.Longitude,
				"lat", pos.Latitude)
			return &Fix{Position: *pos, Source: strategy.Name()}, nil
		}

		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if errors.Is(err, ErrSkipped) {
			c.log.DebugContext(ctx, "Reference strategy skipped", "source", strategy.Name())
		} else {
			c.log.WarnContext(ctx, "Reference strategy failed, trying next", "source", strategy.Name(), "error", err)
		}
		attempts = append(attempts, Attempt{Strategy: strategy.Name(), Err: err})
	}

	return nil, &ResolveError{Attempts: attempts}
}
