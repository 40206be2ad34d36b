package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRegistryDuplicateKeyIsNoOp(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	reg := NewRegistry(zap.New(core).Sugar())

	first := countProvider("health", 100, 1)
	first.label = "first"
	second := countProvider("health", 10, 9)
	second.label = "second"

	reg.Register(first)
	reg.Register(second)

	providers := reg.Providers()
	require.Len(t, providers, 1)
	assert.Equal(t, "first", providers[0].Label())
	assert.Equal(t, 100, providers[0].Priority())
	assert.Equal(t, 1, logs.FilterMessage("duplicate alert provider ignored").Len())
}

func TestRegistryOrdersByPriorityDescending(t *testing.T) {
	orders := [][]int{
		{100, 80, 10},
		{10, 80, 100},
		{80, 10, 100},
	}

	for _, order := range orders {
		reg := NewRegistry(zap.NewNop().Sugar())
		for _, p := range order {
			reg.Register(countProvider(string(rune('a'+p%26)), p, 0))
		}

		var got []int
		for _, p := range reg.Providers() {
			got = append(got, p.Priority())
		}
		assert.Equal(t, []int{100, 80, 10}, got, "registration order %v", order)
	}
}

func TestRegistryTiesKeepRegistrationOrder(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	reg.Register(countProvider("b", 50, 0))
	reg.Register(countProvider("a", 50, 0))
	reg.Register(countProvider("c", 90, 0))

	var keys []string
	for _, p := range reg.Providers() {
		keys = append(keys, p.Key())
	}
	assert.Equal(t, []string{"c", "b", "a"}, keys)
}

func TestRegistryProvidersReturnsCopy(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	reg.Register(countProvider("health", 100, 0))

	list := reg.Providers()
	list[0] = countProvider("other", 1, 0)

	p, ok := reg.Provider("health")
	require.True(t, ok)
	assert.Equal(t, "health", p.Key())
	assert.Equal(t, "health", reg.Providers()[0].Key())

	_, ok = reg.Provider("missing")
	assert.False(t, ok)
}
