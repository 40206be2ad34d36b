package alerts

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// settleAll fetches every provider's summary concurrently and waits for all
// of them. A provider that returns an error or panics yields a zero-count
// state flagged Error; it never cancels its siblings.
func settleAll(ctx context.Context, farmID string, providers []Provider, limit int, logger *zap.SugaredLogger) []ProviderState {
	states := make([]ProviderState, len(providers))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, p := range providers {
		g.Go(func() error {
			states[i] = settleOne(ctx, farmID, p, logger)
			return nil
		})
	}
	_ = g.Wait()

	return states
}

func settleOne(ctx context.Context, farmID string, p Provider, logger *zap.SugaredLogger) (state ProviderState) {
	key := p.Key()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("alert provider panicked",
				"provider", key,
				"farm", farmID,
				"panic", r,
			)
			state = ProviderState{ProviderKey: key, Error: true}
		}
	}()

	summary, err := p.Summary(ctx, farmID)
	if err != nil {
		logger.Warnw("alert provider failed",
			"provider", key,
			"farm", farmID,
			"error", err,
		)
		return ProviderState{ProviderKey: key, Error: true}
	}
	if summary.Count < 0 {
		summary.Count = 0
	}
	return ProviderState{ProviderKey: key, Summary: summary}
}
