package exporter

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nixlim/herd-top/internal/alerts"
)

type fakeSource struct {
	mu    sync.Mutex
	snaps map[string]alerts.Snapshot
	calls []string
}

func (f *fakeSource) Get(_ context.Context, farmID string) alerts.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, farmID)
	return f.snaps[farmID]
}

func scrape(t *testing.T, s *Server) string {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollector_ExportsPerFarmMetrics(t *testing.T) {
	src := &fakeSource{snaps: map[string]alerts.Snapshot{
		"12": {
			FarmID: "12",
			Total:  5,
			States: []alerts.ProviderState{
				{ProviderKey: "health", Summary: alerts.Summary{Count: 3}},
				{ProviderKey: "reproduction", Summary: alerts.Summary{Count: 2}},
				{ProviderKey: "lactation", Error: true},
			},
		},
		"40": {FarmID: "40", Total: 0},
	}}

	srv, err := NewServer(":0", NewCollector(src, []string{"12", "40"}, time.Second), zap.NewNop().Sugar())
	require.NoError(t, err)

	body := scrape(t, srv)
	assert.Contains(t, body, `herdtop_pending_alerts_total{farm="12"} 5`)
	assert.Contains(t, body, `herdtop_pending_alerts_total{farm="40"} 0`)
	assert.Contains(t, body, `herdtop_pending_alerts{farm="12",provider="health"} 3`)
	assert.Contains(t, body, `herdtop_pending_alerts{farm="12",provider="reproduction"} 2`)
	assert.Contains(t, body, `herdtop_alert_source_up{farm="12",provider="lactation"} 0`)
	assert.Contains(t, body, `herdtop_alert_source_up{farm="12",provider="health"} 1`)
	assert.ElementsMatch(t, []string{"12", "40"}, src.calls)
}

func TestServer_Healthz(t *testing.T) {
	srv, err := NewServer(":0", NewCollector(&fakeSource{}, nil, 0), zap.NewNop().Sugar())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "ok"))
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", NewCollector(&fakeSource{}, nil, 0), zap.NewNop().Sugar())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("exporter did not stop after cancel")
	}
}

func TestCollector_WithHeaderCache(t *testing.T) {
	reg := alerts.NewRegistry(zap.NewNop().Sugar())
	reg.Register(constProvider{key: "health", count: 4})
	cache := alerts.NewHeaderCache(reg, time.Minute, 2, zap.NewNop().Sugar())

	srv, err := NewServer(":0", NewCollector(cache, []string{"7"}, time.Second), zap.NewNop().Sugar())
	require.NoError(t, err)

	body := scrape(t, srv)
	assert.Contains(t, body, `herdtop_pending_alerts_total{farm="7"} 4`)
	assert.Contains(t, body, `herdtop_alert_source_up{farm="7",provider="health"} 1`)
}

type constProvider struct {
	key   string
	count int
}

func (p constProvider) Key() string { return p.key }
func (p constProvider) Label() string { return p.key }
func (p constProvider) Priority() int { return 1 }
func (p constProvider) Route(farmID string) string { return "/farms/" + farmID }
func (p constProvider) Summary(context.Context, string) (alerts.Summary, error) {
	return alerts.Summary{Count: p.count}, nil
}
