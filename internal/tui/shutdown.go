package tui

import (
	"context"
	"time"
)

// ShutdownManager coordinates graceful shutdown of herd-top components.
type ShutdownManager struct {
	// DrainTimeout bounds how long in-flight API calls may take to finish.
	DrainTimeout time.Duration

	// CancelRequests cancels the context shared by refreshes and submissions.
	CancelRequests context.CancelFunc

	// StopAggregator unsubscribes the alert aggregator from the bus.
	StopAggregator func()

	// Wait blocks until background work has returned or ctx expires.
	Wait func(ctx context.Context) error

	// Cleanup closes the store and flushes the logger.
	Cleanup func()
}

func NewShutdownManager() *ShutdownManager {
	return &ShutdownManager{
		DrainTimeout: 5 * time.Second,
	}
}

// Shutdown stops accepting new work, cancels what is in flight, waits up
// to DrainTimeout for it to return and finally runs Cleanup.
func (sm *ShutdownManager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.DrainTimeout)
	defer cancel()

	if sm.StopAggregator != nil {
		sm.StopAggregator()
	}

	if sm.CancelRequests != nil {
		sm.CancelRequests()
	}

	var err error
	if sm.Wait != nil {
		err = sm.Wait(ctx)
	}

	if sm.Cleanup != nil {
		sm.Cleanup()
	}

	return err
}
