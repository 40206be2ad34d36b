package alerts

import (
	"context"
	"errors"
	"sync/atomic"
)

type fakeProvider struct {
	key      string
	label    string
	priority int
	summary  func(ctx context.Context, farmID string) (Summary, error)
	calls    atomic.Int32
}

func (f *fakeProvider) Key() string   { return f.key }
func (f *fakeProvider) Label() string { return f.label }
func (f *fakeProvider) Priority() int { return f.priority }

func (f *fakeProvider) Route(farmID string) string {
	return "/app/goatfarms/" + farmID + "/" + f.key
}

func (f *fakeProvider) Summary(ctx context.Context, farmID string) (Summary, error) {
	f.calls.Add(1)
	if f.summary == nil {
		return Summary{}, nil
	}
	return f.summary(ctx, farmID)
}

func countProvider(key string, priority, count int) *fakeProvider {
	return &fakeProvider{
		key:      key,
		priority: priority,
		summary: func(context.Context, string) (Summary, error) {
			return Summary{Count: count}, nil
		},
	}
}

func failingProvider(key string, priority int) *fakeProvider {
	return &fakeProvider{
		key:      key,
		priority: priority,
		summary: func(context.Context, string) (Summary, error) {
			return Summary{}, errors.New("backend unreachable")
		},
	}
}

func panickingProvider(key string, priority int) *fakeProvider {
	return &fakeProvider{
		key:      key,
		priority: priority,
		summary: func(context.Context, string) (Summary, error) {
			panic("adapter contract violated")
		},
	}
}
