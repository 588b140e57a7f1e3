package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/j0lvera/relaybot/internal/agent"
	"github.com/rs/zerolog"
)

// Refresher renews backend credentials.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RetryQuerier retries a failed query once, renewing the session first
// when there is one.
type RetryQuerier struct {
	next      agent.Querier
	refresher Refresher
	logger    *zerolog.Logger
}

func NewRetryQuerier(next agent.Querier, refresher Refresher, logger *zerolog.Logger) *RetryQuerier {
	return &RetryQuerier{
		next:      next,
		refresher: refresher,
		logger:    logger,
	}
}

// Query implements agent.Querier
func (q *RetryQuerier) Query(ctx context.Context, messages []agent.Message, opts agent.QueryOptions) (agent.QueryResult, error) {
	result, err := q.next.Query(ctx, messages, opts)
	if err == nil || !retryable(ctx, err) {
		return result, err
	}

	q.logger.Warn().Err(err).Msg("ai request failed, retrying once")

	if q.refresher != nil {
		if rerr := q.refresher.Refresh(ctx); rerr != nil {
			return agent.QueryResult{}, fmt.Errorf("unable to refresh session after %w: %w", err, rerr)
		}
	}

	return q.next.Query(ctx, messages, opts)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, agent.ErrNoChoices)
}
