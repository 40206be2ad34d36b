package tui

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nixlim/herd-top/internal/activity"
	"github.com/nixlim/herd-top/internal/alerts"
	"github.com/nixlim/herd-top/internal/config"
)

type fakeCenter struct {
	mu        sync.Mutex
	farm      string
	states    []alerts.ProviderState
	providers map[string]alerts.Provider
	loading   bool
	started   bool
	refreshes int
	cycle     uint64
	setFarms  []string
}

func (c *fakeCenter) Start(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	c.cycle++
}

func (c *fakeCenter) FarmID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.farm
}

func (c *fakeCenter) TotalCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, s := range c.states {
		total += s.Summary.Count
	}
	return total
}

func (c *fakeCenter) ProviderStates() []alerts.ProviderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]alerts.ProviderState(nil), c.states...)
}

func (c *fakeCenter) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *fakeCenter) LastUpdate() alerts.Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return alerts.Update{FarmID: c.farm, Cycle: c.cycle, States: append([]alerts.ProviderState(nil), c.states...)}
}

func (c *fakeCenter) RefreshAlerts(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshes++
	c.cycle++
}

func (c *fakeCenter) Rebind(farmID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.farm == farmID {
		return false
	}
	c.farm = farmID
	c.setFarms = append(c.setFarms, farmID)
	return true
}

func (c *fakeCenter) Provider(key string) (alerts.Provider, bool) {
	p, ok := c.providers[key]
	return p, ok
}

type fakeProvider struct {
	key        string
	label      string
	items      []alerts.Item
	listErr    error
	resolveErr error

	mu       sync.Mutex
	resolved []string
}

func (p *fakeProvider) Key() string                { return p.key }
func (p *fakeProvider) Label() string              { return p.label }
func (p *fakeProvider) Priority() int              { return 100 }
func (p *fakeProvider) Route(farmID string) string { return "/farms/" + farmID + "/" + p.key }

func (p *fakeProvider) Summary(context.Context, string) (alerts.Summary, error) {
	return alerts.Summary{Count: len(p.items)}, nil
}

func (p *fakeProvider) List(context.Context, string, alerts.ListParams) ([]alerts.Item, error) {
	return p.items, p.listErr
}

func (p *fakeProvider) Resolve(_ context.Context, _ string, itemID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolved = append(p.resolved, itemID)
	return p.resolveErr
}

// summaryOnly has no List or Resolve.
type summaryOnly struct{ key string }

func (p summaryOnly) Key() string                { return p.key }
func (p summaryOnly) Label() string              { return "Resumo" }
func (p summaryOnly) Priority() int              { return 1 }
func (p summaryOnly) Route(farmID string) string { return "/farms/" + farmID }
func (p summaryOnly) Summary(context.Context, string) (alerts.Summary, error) {
	return alerts.Summary{}, nil
}

type recordingNotifier struct {
	notes []alerts.Notification
}

func (n *recordingNotifier) Notify(note alerts.Notification) { n.notes = append(n.notes, note) }

type recordingEmitter struct {
	farms []string
}

func (e *recordingEmitter) Emit(farmID string) { e.farms = append(e.farms, farmID) }

type staticBadges map[string]int

func (b staticBadges) Get(_ context.Context, farmID string) alerts.Snapshot {
	return alerts.Snapshot{FarmID: farmID, Total: b[farmID]}
}

var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func healthItems() []alerts.Item {
	return []alerts.Item{
		{ID: "1", Title: "Vermifugação", Severity: alerts.SeverityHigh, DaysOverdue: 9, Link: "/farms/12/health"},
		{ID: "2", Title: "Vacina clostridiose", Severity: alerts.SeverityMedium, DaysOverdue: 2},
		{ID: "3", Title: "Casqueamento", Severity: alerts.SeverityLow},
	}
}

type fixture struct {
	center   *fakeCenter
	health   *fakeProvider
	feed     *activity.RingBuffer
	notifier *recordingNotifier
	bus      *recordingEmitter
}

func newFixture() *fixture {
	health := &fakeProvider{key: "health", label: "Agenda sanitária", items: healthItems()}
	return &fixture{
		center: &fakeCenter{
			farm: "12",
			states: []alerts.ProviderState{
				{ProviderKey: "health", Summary: alerts.Summary{Count: 3, Headline: "1 atrasado"}},
				{ProviderKey: "summary", Error: true},
			},
			providers: map[string]alerts.Provider{
				"health":  health,
				"summary": summaryOnly{key: "summary"},
			},
		},
		health:   health,
		feed:     activity.NewRingBuffer(50),
		notifier: &recordingNotifier{},
		bus:      &recordingEmitter{},
	}
}

func (f *fixture) model(cfg config.Config, opts ...ModelOption) Model {
	base := []ModelOption{
		WithAlertCenter(f.center),
		WithActivityFeed(f.feed),
		WithNotifier(f.notifier),
		WithEmitter(f.bus),
		WithClock(func() time.Time { return fixedNow }),
	}
	m := NewModel(cfg, append(base, opts...)...)
	m.width = 120
	m.height = 40
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRefreshDone_NotifiesOnlyWhenTotalRises(t *testing.T) {
	f := newFixture()
	m := f.model(config.DefaultConfig())

	states := func(n int) []alerts.ProviderState {
		return []alerts.ProviderState{{ProviderKey: "health", Summary: alerts.Summary{Count: n}}}
	}

	m, _ = update(t, m, refreshDoneMsg{farmID: "12", states: states(2)})
	assert.Empty(t, f.notifier.notes, "first refresh only records the baseline")

	m, _ = update(t, m, refreshDoneMsg{farmID: "12", states: states(5)})
	require.Len(t, f.notifier.notes, 1)
	assert.Equal(t, alerts.Notification{FarmID: "12", Previous: 2, Total: 5}, f.notifier.notes[0])

	_, _ = update(t, m, refreshDoneMsg{farmID: "12", states: states(3)})
	assert.Len(t, f.notifier.notes, 1)
}

func TestRefreshDone_IgnoresOtherFarm(t *testing.T) {
	f := newFixture()
	m := f.model(config.DefaultConfig())

	_, _ = update(t, m, refreshDoneMsg{farmID: "40", states: f.center.states})
	assert.Equal(t, 0, f.feed.Len())
}

func TestRefreshDone_RecordsCategoryFailure(t *testing.T) {
	f := newFixture()
	m := f.model(config.DefaultConfig())

	_, _ = update(t, m, refreshDoneMsg{farmID: "12", states: f.center.ProviderStates()})

	failed := f.feed.ListByKind(activity.KindCategoryFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Text, "Resumo")
	assert.Len(t, f.feed.ListByKind(activity.KindAlertsRefreshed), 1)
}

func TestInit_StartsCenter(t *testing.T) {
	f := newFixture()
	m := f.model(config.DefaultConfig())

	msg := m.startCmd()()
	done, ok := msg.(refreshDoneMsg)
	require.True(t, ok)
	assert.Equal(t, "12", done.farmID)
	assert.True(t, f.center.started)
}

func TestSelectCategory_LoadsItems(t *testing.T) {
	f := newFixture()
	m := f.model(config.DefaultConfig())

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, "health", m.selectedCategory)
	assert.Equal(t, FocusItems, m.panelFocus)
	assert.True(t, m.itemsLoading)

	m, _ = update(t, m, cmd())
	assert.False(t, m.itemsLoading)
	assert.Len(t, m.items, 3)
	assert.Contains(t, m.View(), "Vermifugação")
	assert.Contains(t, m.View(), "+9 dia(s)")
}

func TestSelectCategory_ListError(t *testing.T) {
	f := newFixture()
	f.health.listErr = errors.New("timeout")
	m := f.model(config.DefaultConfig())

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.itemsErr, "timeout")
	assert.Empty(t, m.items)
}

func TestItemsMsg_StaleFarmIgnored(t *testing.T) {
	f := newFixture()
	m := f.model(config.DefaultConfig())
	m.selectedCategory = "health"
	m.itemsLoading = true

	m, _ = update(t, m, itemsMsg{farmID: "40", providerKey: "health", items: healthItems()})
	assert.True(t, m.itemsLoading)
	assert.Empty(t, m.items)
}

func TestSelectCategory_WithoutListerUsesPreview(t *testing.T) {
	f := newFixture()
	f.center.states[1] = alerts.ProviderState{
		ProviderKey: "summary",
		Summary:     alerts.Summary{Count: 1, PreviewItems: []alerts.Item{{ID: "p1", Title: "Prévia"}}},
	}
	m := f.model(config.DefaultConfig())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	require.Len(t, m.items, 1)
	assert.Equal(t, "Prévia", m.items[0].Title)
}

func loadedItems(t *testing.T, f *fixture) Model {
	t.Helper()
	m := f.model(config.DefaultConfig())
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, cmd())
	return m
}

func TestResolve_EmitsAndRemovesItem(t *testing.T) {
	f := newFixture()
	m := loadedItems(t, f)

	m, cmd := update(t, m, runes("x"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())

	assert.Equal(t, []string{"1"}, f.health.resolved)
	assert.Equal(t, []string{"12"}, f.bus.farms)
	assert.Len(t, m.items, 2)
	assert.Equal(t, "2", m.items[0].ID)

	resolved := f.feed.ListByKind(activity.KindEventResolved)
	require.Len(t, resolved, 1)
	assert.True(t, *resolved[0].Success)
}

func TestResolve_FailureKeepsItem(t *testing.T) {
	f := newFixture()
	f.health.resolveErr = errors.New("HTTP 500")
	m := loadedItems(t, f)

	m, cmd := update(t, m, runes("x"))
	m, _ = update(t, m, cmd())

	assert.Empty(t, f.bus.farms)
	assert.Len(t, m.items, 3)
	assert.Contains(t, m.statusMessage, "HTTP 500")
}

func TestRetryKey_OnlyForFailedCategory(t *testing.T) {
	f := newFixture()
	m := f.model(config.DefaultConfig())

	_, cmd := update(t, m, runes("R"))
	assert.Nil(t, cmd, "health did not fail")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	_, cmd = update(t, m, runes("R"))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, f.center.refreshes)
}

func TestSwitchFarm_CyclesConfiguredFarms(t *testing.T) {
	f := newFixture()
	cfg := config.DefaultConfig()
	cfg.Farm.IDs = []string{"12", "40"}
	m := loadedItems(t, f)
	m.cfg = cfg

	m, cmd := update(t, m, runes("]"))
	require.NotNil(t, cmd)
	assert.Empty(t, m.selectedCategory)
	assert.Nil(t, m.items)
	assert.Equal(t, []string{"40"}, f.center.setFarms, "rebinding happens before the fetch")
	assert.Equal(t, "40", m.currentFarm())

	done, ok := cmd().(refreshDoneMsg)
	require.True(t, ok)
	assert.Equal(t, "40", done.farmID)
	assert.Equal(t, 1, f.center.refreshes)
	assert.Len(t, f.feed.ListByKind(activity.KindFarmSwitched), 1)

	_, cmd = update(t, m, runes("]"))
	require.NotNil(t, cmd)
	assert.Equal(t, []string{"40", "12"}, f.center.setFarms)
}

func TestSwitchFarm_QuickPressesAdvanceEachTime(t *testing.T) {
	f := newFixture()
	cfg := config.DefaultConfig()
	cfg.Farm.IDs = []string{"12", "40", "41"}
	m := f.model(cfg)

	m, _ = update(t, m, runes("]"))
	m, _ = update(t, m, runes("]"))

	assert.Equal(t, []string{"40", "41"}, f.center.setFarms)
	assert.Equal(t, "41", m.currentFarm())
	assert.Equal(t, "41", m.form.farmID)
	assert.Contains(t, m.View(), "41")
}

func TestRefreshDone_IgnoresCyclesAlreadySeen(t *testing.T) {
	f := newFixture()
	m := f.model(config.DefaultConfig())

	u := alerts.Update{FarmID: "12", Cycle: 3, States: f.center.states}
	m, _ = update(t, m, RefreshedMsg(u))
	m, _ = update(t, m, RefreshedMsg(u))
	_, _ = update(t, m, RefreshedMsg(alerts.Update{FarmID: "12", Cycle: 2, States: f.center.states}))

	assert.Len(t, f.feed.ListByKind(activity.KindAlertsRefreshed), 1)
}

func TestSwitchFarm_SingleFarmIsNoop(t *testing.T) {
	f := newFixture()
	m := f.model(config.DefaultConfig())

	_, cmd := update(t, m, runes("]"))
	assert.Nil(t, cmd)
	assert.Empty(t, f.center.setFarms)
}

func TestBadges_OtherFarmsOnly(t *testing.T) {
	f := newFixture()
	cfg := config.DefaultConfig()
	cfg.Farm.IDs = []string{"12", "40", "41"}
	m := f.model(cfg, WithBadgeSource(staticBadges{"12": 99, "40": 3, "41": 0}))

	msg := m.badgesCmd()()
	badges, ok := msg.(badgesMsg)
	require.True(t, ok)
	assert.Equal(t, badgesMsg{"40": 3, "41": 0}, badges)

	m, _ = update(t, m, msg)
	assert.Contains(t, m.renderHeader(), "40:3 41:0")
}

func TestFilterMenu_HidesSeverity(t *testing.T) {
	f := newFixture()
	m := loadedItems(t, f)

	m, _ = update(t, m, runes("f"))
	require.True(t, m.filterMenu.Active)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	visible := m.visibleItems()
	require.Len(t, visible, 2)
	for _, it := range visible {
		assert.NotEqual(t, alerts.SeverityHigh, it.Severity)
	}
	assert.Contains(t, m.View(), "[filtro]")
}

func TestDetailOverlay_ShowsWebLink(t *testing.T) {
	f := newFixture()
	cfg := config.DefaultConfig()
	cfg.API.WebBaseURL = "https://app.example.com/"
	m := f.model(cfg)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, cmd())

	m, _ = update(t, m, runes("d"))
	require.True(t, m.detailOverlay)
	assert.Contains(t, m.detailContent, "https://app.example.com/farms/12/health")
	assert.Contains(t, m.detailContent, "+9 dia(s)")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.detailOverlay)
}

func TestView_Header(t *testing.T) {
	f := newFixture()
	f.center.loading = true
	m := f.model(config.DefaultConfig())

	view := m.View()
	assert.Contains(t, view, "Fazenda 12")
	assert.Contains(t, view, "🔔 3")
	assert.Contains(t, view, "atualizando")
	assert.Contains(t, view, "[Sem persistência]")
	assert.Contains(t, view, "[erro]")

	m = f.model(config.DefaultConfig(), WithPersistenceFlag(true))
	assert.NotContains(t, m.View(), "[Sem persistência]")
}

func TestView_TruncatedToHeight(t *testing.T) {
	f := newFixture()
	m := f.model(config.DefaultConfig())
	m.height = 12

	assert.LessOrEqual(t, len(strings.Split(m.View(), "\n")), 12)
}

func TestQuit_RunsShutdownHook(t *testing.T) {
	f := newFixture()
	called := false
	m := f.model(config.DefaultConfig(), WithOnShutdown(func() { called = true }))

	m, cmd := update(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.True(t, called)
	assert.True(t, m.quitting)
}

// agendaProvider counts its open items, so resolving one lowers the summary.
type agendaProvider struct {
	mu    sync.Mutex
	items []alerts.Item
}

func (p *agendaProvider) Key() string                { return "health" }
func (p *agendaProvider) Label() string              { return "Agenda sanitária" }
func (p *agendaProvider) Priority() int              { return 100 }
func (p *agendaProvider) Route(farmID string) string { return "/farms/" + farmID + "/health" }

func (p *agendaProvider) Summary(context.Context, string) (alerts.Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return alerts.Summary{Count: len(p.items)}, nil
}

func (p *agendaProvider) List(context.Context, string, alerts.ListParams) ([]alerts.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.items), nil
}

func (p *agendaProvider) Resolve(_ context.Context, _ string, itemID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = slices.DeleteFunc(p.items, func(it alerts.Item) bool { return it.ID == itemID })
	return nil
}

func (p *agendaProvider) add(it alerts.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, it)
}

func TestBusRefreshAfterResolveReachesModel(t *testing.T) {
	provider := &agendaProvider{items: healthItems()[:2]}
	reg := alerts.NewRegistry(zap.NewNop().Sugar())
	reg.Register(provider)
	bus := alerts.NewBus()

	updates := make(chan alerts.Update, 8)
	agg := alerts.NewAggregator(reg, bus, "12", alerts.WithOnRefresh(func(u alerts.Update) { updates <- u }))
	defer agg.Stop()

	feed := activity.NewRingBuffer(50)
	notifier := &recordingNotifier{}
	m := NewModel(config.DefaultConfig(),
		WithAlertCenter(agg),
		WithActivityFeed(feed),
		WithNotifier(notifier),
		WithEmitter(bus),
		WithClock(func() time.Time { return fixedNow }),
	)
	m.width, m.height = 120, 40

	next := func() alerts.Update {
		t.Helper()
		select {
		case u := <-updates:
			return u
		case <-time.After(2 * time.Second):
			t.Fatal("no refresh reported")
			return alerts.Update{}
		}
	}

	m, _ = update(t, m, m.startCmd()())
	m, _ = update(t, m, RefreshedMsg(next()))
	assert.Equal(t, 2, m.lastTotals["12"])
	assert.Len(t, feed.ListByKind(activity.KindAlertsRefreshed), 1, "the hook repeats the start cycle")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	m, cmd = update(t, m, runes("x"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())

	m, _ = update(t, m, RefreshedMsg(next()))
	assert.Equal(t, 1, m.lastTotals["12"])
	assert.Len(t, feed.ListByKind(activity.KindAlertsRefreshed), 2)
	assert.Empty(t, notifier.notes)

	provider.add(alerts.Item{ID: "9", Title: "Nova vacina"})
	agg.RefreshAlerts(context.Background())
	_, _ = update(t, m, RefreshedMsg(next()))

	require.Len(t, notifier.notes, 1)
	assert.Equal(t, alerts.Notification{FarmID: "12", Previous: 1, Total: 2}, notifier.notes[0])
}
