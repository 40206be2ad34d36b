package tui

import (
	"context"
	"testing"
	"time"
)

func TestShutdownManager_Order(t *testing.T) {
	var order []string
	sm := NewShutdownManager()
	sm.StopAggregator = func() { order = append(order, "stop") }
	sm.CancelRequests = func() { order = append(order, "cancel") }
	sm.Wait = func(context.Context) error {
		order = append(order, "wait")
		return nil
	}
	sm.Cleanup = func() { order = append(order, "cleanup") }

	if err := sm.Shutdown(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"stop", "cancel", "wait", "cleanup"}
	if len(order) != len(want) {
		t.Fatalf("order: want %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("step %d: want %s, got %s", i, want[i], order[i])
		}
	}
}

func TestShutdownManager_WaitTimesOut(t *testing.T) {
	sm := NewShutdownManager()
	sm.DrainTimeout = 20 * time.Millisecond
	cleaned := false
	sm.Wait = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	sm.Cleanup = func() { cleaned = true }

	if err := sm.Shutdown(); err == nil {
		t.Error("expected drain timeout error")
	}
	if !cleaned {
		t.Error("cleanup must run even when draining times out")
	}
}

func TestShutdownManager_NilHooks(t *testing.T) {
	if err := NewShutdownManager().Shutdown(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
