package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/herd-top/internal/activity"
	"github.com/nixlim/herd-top/internal/alerts"
	"github.com/nixlim/herd-top/internal/config"
	"github.com/nixlim/herd-top/internal/inventory"
)

type ViewState int

const (
	ViewDashboard ViewState = iota
	ViewInventory
)

type PanelFocus int

const (
	FocusCategories PanelFocus = iota
	FocusItems
	FocusActivity
)

// AlertCenter is the merged alert state of the selected farm.
// *alerts.Aggregator implements it.
type AlertCenter interface {
	Start(ctx context.Context)
	FarmID() string
	TotalCount() int
	ProviderStates() []alerts.ProviderState
	IsLoading() bool
	LastUpdate() alerts.Update
	RefreshAlerts(ctx context.Context)
	Rebind(farmID string) bool
	Provider(key string) (alerts.Provider, bool)
}

// BadgeSource serves totals for farms other than the selected one.
type BadgeSource interface {
	Get(ctx context.Context, farmID string) alerts.Snapshot
}

type ActivityFeed interface {
	Add(e activity.Entry)
	Recent(n int) []activity.Entry
}

// Emitter signals that a farm's alerts changed. *alerts.Bus implements it.
type Emitter interface {
	Emit(farmID string)
}

// DraftFactory returns the inventory form controller for a farm, or nil
// when inventory submissions are unavailable.
type DraftFactory func(farmID string) *inventory.Draft

type (
	tickMsg        time.Time
	refreshTickMsg time.Time

	refreshDoneMsg struct {
		farmID string
		cycle  uint64
		states []alerts.ProviderState
	}

	badgesMsg map[string]int

	itemsMsg struct {
		farmID      string
		providerKey string
		items       []alerts.Item
		err         error
	}

	resolvedMsg struct {
		farmID      string
		providerKey string
		item        alerts.Item
		err         error
	}

	submittedMsg struct {
		farmID string
		result inventory.Result
	}
)

type Model struct {
	view     ViewState
	width    int
	height   int
	keys     KeyMap
	quitting bool

	cfg config.Config
	ctx context.Context
	now func() time.Time

	center   AlertCenter
	badgeSrc BadgeSource
	feed     ActivityFeed
	bus      Emitter
	notifier alerts.Notifier
	newDraft DraftFactory

	panelFocus       PanelFocus
	categoryCursor   int
	selectedCategory string
	items            []alerts.Item
	itemsLoading     bool
	itemsErr         string
	itemCursor       int
	activityCursor   int

	filter     ItemFilter
	filterMenu FilterMenuState

	detailOverlay   bool
	detailTitle     string
	detailContent   string
	detailScrollPos int

	badges        map[string]int
	lastTotals    map[string]int
	lastCycle     uint64
	statusMessage string

	form inventoryForm

	isPersistent    bool
	refreshRate     time.Duration
	refreshInterval time.Duration

	onShutdown func()
}

func NewModel(cfg config.Config, opts ...ModelOption) Model {
	m := Model{
		view:            ViewDashboard,
		keys:            DefaultKeyMap(),
		cfg:             cfg,
		ctx:             context.Background(),
		now:             time.Now,
		filter:          NewItemFilter(),
		filterMenu:      NewFilterMenu(),
		badges:          make(map[string]int),
		lastTotals:      make(map[string]int),
		refreshRate:     time.Duration(cfg.Display.RefreshRateMS) * time.Millisecond,
		refreshInterval: time.Duration(cfg.Alerts.RefreshIntervalSeconds) * time.Second,
	}

	for _, opt := range opts {
		opt(&m)
	}

	m.form = newInventoryForm(m.currentFarm(), m.draftFor(m.currentFarm()))
	return m
}

type ModelOption func(*Model)

func WithContext(ctx context.Context) ModelOption {
	return func(m *Model) { m.ctx = ctx }
}

func WithAlertCenter(c AlertCenter) ModelOption {
	return func(m *Model) { m.center = c }
}

func WithBadgeSource(b BadgeSource) ModelOption {
	return func(m *Model) { m.badgeSrc = b }
}

func WithActivityFeed(f ActivityFeed) ModelOption {
	return func(m *Model) { m.feed = f }
}

func WithEmitter(e Emitter) ModelOption {
	return func(m *Model) { m.bus = e }
}

func WithNotifier(n alerts.Notifier) ModelOption {
	return func(m *Model) { m.notifier = n }
}

func WithDraftFactory(f DraftFactory) ModelOption {
	return func(m *Model) { m.newDraft = f }
}

func WithClock(now func() time.Time) ModelOption {
	return func(m *Model) { m.now = now }
}

func WithStartView(v ViewState) ModelOption {
	return func(m *Model) { m.view = v }
}

func WithOnShutdown(fn func()) ModelOption {
	return func(m *Model) { m.onShutdown = fn }
}

func WithPersistenceFlag(isPersistent bool) ModelOption {
	return func(m *Model) { m.isPersistent = isPersistent }
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tickCmd(),
		m.startCmd(),
		m.badgesCmd(),
		m.refreshTickCmd(),
	)
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refreshTickCmd() tea.Cmd {
	if m.refreshInterval <= 0 {
		return nil
	}
	return tea.Tick(m.refreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, m.tickCmd()

	case refreshTickMsg:
		return m, tea.Batch(m.refreshCmd(), m.badgesCmd(), m.refreshTickCmd())

	case refreshDoneMsg:
		return m.handleRefreshDone(msg)

	case badgesMsg:
		for farm, total := range msg {
			m.badges[farm] = total
		}
		return m, nil

	case itemsMsg:
		return m.handleItems(msg), nil

	case resolvedMsg:
		return m.handleResolved(msg), nil

	case submittedMsg:
		return m.handleSubmitted(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// RefreshedMsg turns a committed aggregator cycle into a message for the
// running program. Cycles already seen are ignored.
func RefreshedMsg(u alerts.Update) tea.Msg {
	return newRefreshDone(u)
}

func newRefreshDone(u alerts.Update) refreshDoneMsg {
	return refreshDoneMsg{farmID: u.FarmID, cycle: u.Cycle, states: u.States}
}

func (m Model) handleRefreshDone(msg refreshDoneMsg) (tea.Model, tea.Cmd) {
	if msg.farmID != m.currentFarm() {
		return m, nil
	}
	if msg.cycle != 0 {
		if msg.cycle <= m.lastCycle {
			return m, nil
		}
		m.lastCycle = msg.cycle
	}

	total := 0
	for _, s := range msg.states {
		total += s.Summary.Count
	}

	at := m.now()
	m.addActivity(activity.AlertsRefreshed(msg.farmID, msg.states, at))
	for _, s := range msg.states {
		if s.Error {
			m.addActivity(activity.CategoryFailed(msg.farmID, m.providerLabel(s.ProviderKey), at))
		}
	}

	if prev, seen := m.lastTotals[msg.farmID]; seen && alerts.ShouldNotify(prev, total) && m.notifier != nil {
		m.notifier.Notify(alerts.Notification{FarmID: msg.farmID, Previous: prev, Total: total})
	}
	m.lastTotals[msg.farmID] = total

	if m.selectedCategory == "" || m.itemsLoading {
		return m, nil
	}
	if cmd := m.listCmd(msg.farmID, m.selectedCategory); cmd != nil {
		m.itemsLoading = true
		return m, cmd
	}
	for _, s := range msg.states {
		if s.ProviderKey == m.selectedCategory {
			m.items = s.Summary.PreviewItems
		}
	}
	return m, nil
}

func (m Model) handleItems(msg itemsMsg) Model {
	if msg.farmID != m.currentFarm() || msg.providerKey != m.selectedCategory {
		return m
	}
	m.itemsLoading = false
	if msg.err != nil {
		m.itemsErr = "Falha ao carregar itens: " + msg.err.Error()
		return m
	}
	m.itemsErr = ""
	m.items = msg.items
	if visible := m.visibleItems(); m.itemCursor >= len(visible) {
		m.itemCursor = max(len(visible)-1, 0)
	}
	return m
}

func (m Model) handleResolved(msg resolvedMsg) Model {
	m.addActivity(activity.EventResolved(msg.farmID, msg.item, msg.err, m.now()))
	if msg.err != nil {
		m.statusMessage = "Erro: " + msg.err.Error()
		return m
	}

	m.statusMessage = fmt.Sprintf("%q marcado como realizado", msg.item.Title)
	if m.bus != nil {
		m.bus.Emit(msg.farmID)
	}

	if msg.farmID == m.currentFarm() && msg.providerKey == m.selectedCategory {
		m.items = slices.DeleteFunc(slices.Clone(m.items), func(it alerts.Item) bool {
			return it.ID == msg.item.ID
		})
		if visible := m.visibleItems(); m.itemCursor >= len(visible) {
			m.itemCursor = max(len(visible)-1, 0)
		}
	}
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	if m.detailOverlay {
		return m.handleDetailOverlayKey(msg)
	}

	if m.filterMenu.Active {
		return m.handleFilterMenuKey(msg)
	}

	if m.view == ViewInventory {
		return m.handleInventoryKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Tab), key.Matches(msg, m.keys.Inventory):
		m.view = ViewInventory
		return m, m.form.focusCmd()

	case key.Matches(msg, m.keys.Refresh):
		m.statusMessage = "Atualizando alertas..."
		return m, m.refreshCmd()

	case key.Matches(msg, m.keys.NextFarm):
		return m.switchFarm(1)

	case key.Matches(msg, m.keys.PrevFarm):
		return m.switchFarm(-1)

	case key.Matches(msg, m.keys.Filter):
		m.filterMenu.Active = true
		m.filterMenu.Cursor = 0
		return m, nil

	case key.Matches(msg, m.keys.FocusItems):
		m.panelFocus = FocusItems
		return m, nil

	case key.Matches(msg, m.keys.FocusFeed):
		m.panelFocus = FocusActivity
		m.activityCursor = 0
		return m, nil
	}

	switch m.panelFocus {
	case FocusItems:
		return m.handleItemsPanelKey(msg)
	case FocusActivity:
		return m.handleActivityPanelKey(msg)
	default:
		return m.handleCategoriesPanelKey(msg)
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.onShutdown != nil {
		m.onShutdown()
	}
	return m, tea.Quit
}

func (m Model) handleCategoriesPanelKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	states := m.providerStates()

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.categoryCursor > 0 {
			m.categoryCursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.categoryCursor < len(states)-1 {
			m.categoryCursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if m.categoryCursor < 0 || m.categoryCursor >= len(states) {
			return m, nil
		}
		return m.selectCategory(states[m.categoryCursor])

	case key.Matches(msg, m.keys.Retry):
		if m.categoryCursor >= 0 && m.categoryCursor < len(states) && states[m.categoryCursor].Error {
			m.statusMessage = "Tentando novamente " + m.providerLabel(states[m.categoryCursor].ProviderKey) + "..."
			return m, m.refreshCmd()
		}
		return m, nil
	}

	return m, nil
}

func (m Model) selectCategory(state alerts.ProviderState) (tea.Model, tea.Cmd) {
	m.selectedCategory = state.ProviderKey
	m.panelFocus = FocusItems
	m.itemCursor = 0
	m.itemsErr = ""

	p, ok := m.provider(state.ProviderKey)
	if !ok {
		return m, nil
	}
	if _, isLister := p.(alerts.Lister); !isLister {
		m.items = state.Summary.PreviewItems
		m.itemsLoading = false
		return m, nil
	}

	m.items = nil
	m.itemsLoading = true
	return m, m.listCmd(m.currentFarm(), state.ProviderKey)
}

func (m Model) handleItemsPanelKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := m.visibleItems()

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.itemCursor > 0 {
			m.itemCursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.itemCursor < len(visible)-1 {
			m.itemCursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter), key.Matches(msg, m.keys.Detail):
		if m.itemCursor >= 0 && m.itemCursor < len(visible) {
			m.openDetail("Detalhe do alerta", m.formatItemDetail(visible[m.itemCursor]))
		}
		return m, nil

	case key.Matches(msg, m.keys.Resolve):
		if m.itemCursor < 0 || m.itemCursor >= len(visible) {
			return m, nil
		}
		p, ok := m.provider(m.selectedCategory)
		if !ok {
			return m, nil
		}
		resolver, ok := p.(alerts.Resolver)
		if !ok {
			m.statusMessage = "Esta categoria não pode ser concluída por aqui"
			return m, nil
		}
		return m, m.resolveCmd(resolver, m.currentFarm(), m.selectedCategory, visible[m.itemCursor])

	case key.Matches(msg, m.keys.Escape):
		m.panelFocus = FocusCategories
		return m, nil
	}

	return m, nil
}

func (m Model) handleActivityPanelKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := m.recentActivity()

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.activityCursor > 0 {
			m.activityCursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.activityCursor < len(entries)-1 {
			m.activityCursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if m.activityCursor >= 0 && m.activityCursor < len(entries) {
			m.openDetail("Atividade", formatActivityDetail(entries[m.activityCursor]))
		}
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.panelFocus = FocusCategories
		return m, nil
	}

	return m, nil
}

func (m *Model) openDetail(title, content string) {
	m.detailOverlay = true
	m.detailTitle = title
	m.detailContent = content
	m.detailScrollPos = 0
}

func (m Model) handleDetailOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Enter):
		m.detailOverlay = false
		m.detailContent = ""
		m.detailTitle = ""
		m.detailScrollPos = 0
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.detailScrollPos > 0 {
			m.detailScrollPos--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.detailScrollPos++
		return m, nil
	}

	return m, nil
}

func (m Model) handleFilterMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.filterMenu.Active = false
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.filterMenu.Cursor > 0 {
			m.filterMenu.Cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.filterMenu.Cursor < len(m.filterMenu.Options)-1 {
			m.filterMenu.Cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if m.filterMenu.Cursor >= 0 && m.filterMenu.Cursor < len(m.filterMenu.Options) {
			opts := slices.Clone(m.filterMenu.Options)
			opts[m.filterMenu.Cursor].Enabled = !opts[m.filterMenu.Cursor].Enabled
			m.filterMenu.Options = opts
			m.filter = m.filterMenu.Filter()
			m.itemCursor = 0
		}
		return m, nil
	}
	return m, nil
}

func (m Model) switchFarm(delta int) (tea.Model, tea.Cmd) {
	farms := m.farms()
	if len(farms) < 2 || m.center == nil {
		return m, nil
	}

	idx := slices.Index(farms, m.currentFarm())
	next := farms[((idx+delta)%len(farms)+len(farms))%len(farms)]

	m.selectedCategory = ""
	m.items = nil
	m.itemsErr = ""
	m.itemsLoading = false
	m.categoryCursor = 0
	m.itemCursor = 0
	m.panelFocus = FocusCategories
	m.statusMessage = ""
	m.form = newInventoryForm(next, m.draftFor(next))
	m.addActivity(activity.FarmSwitched(next, m.now()))

	if !m.center.Rebind(next) {
		return m, nil
	}
	return m, m.refreshCmd()
}

func (m Model) startCmd() tea.Cmd {
	if m.center == nil {
		return nil
	}
	center, ctx := m.center, m.ctx
	return func() tea.Msg {
		center.Start(ctx)
		return newRefreshDone(center.LastUpdate())
	}
}

func (m Model) refreshCmd() tea.Cmd {
	if m.center == nil {
		return nil
	}
	center, ctx := m.center, m.ctx
	return func() tea.Msg {
		center.RefreshAlerts(ctx)
		return newRefreshDone(center.LastUpdate())
	}
}

func (m Model) badgesCmd() tea.Cmd {
	if m.badgeSrc == nil {
		return nil
	}
	var others []string
	for _, f := range m.farms() {
		if f != m.currentFarm() {
			others = append(others, f)
		}
	}
	if len(others) == 0 {
		return nil
	}
	src, ctx := m.badgeSrc, m.ctx
	return func() tea.Msg {
		out := make(badgesMsg, len(others))
		for _, f := range others {
			out[f] = src.Get(ctx, f).Total
		}
		return out
	}
}

func (m Model) listCmd(farmID, providerKey string) tea.Cmd {
	p, ok := m.provider(providerKey)
	if !ok {
		return nil
	}
	lister, ok := p.(alerts.Lister)
	if !ok {
		return nil
	}
	ctx := m.ctx
	size := m.cfg.Alerts.ListPageSize
	return func() tea.Msg {
		items, err := lister.List(ctx, farmID, alerts.ListParams{Page: 0, Size: size})
		return itemsMsg{farmID: farmID, providerKey: providerKey, items: items, err: err}
	}
}

func (m Model) resolveCmd(r alerts.Resolver, farmID, providerKey string, item alerts.Item) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		err := r.Resolve(ctx, farmID, item.ID)
		return resolvedMsg{farmID: farmID, providerKey: providerKey, item: item, err: err}
	}
}

func (m Model) currentFarm() string {
	if m.center == nil {
		return m.cfg.Farm.DefaultID
	}
	return m.center.FarmID()
}

// farms lists the switchable farms, with the selected one first when it is
// not configured.
func (m Model) farms() []string {
	current := m.currentFarm()
	ids := m.cfg.Farm.IDs
	if current != "" && !slices.Contains(ids, current) {
		ids = append([]string{current}, ids...)
	}
	return ids
}

func (m Model) draftFor(farmID string) *inventory.Draft {
	if m.newDraft == nil || farmID == "" {
		return nil
	}
	return m.newDraft(farmID)
}

func (m Model) provider(key string) (alerts.Provider, bool) {
	if m.center == nil {
		return nil, false
	}
	return m.center.Provider(key)
}

func (m Model) providerLabel(key string) string {
	if p, ok := m.provider(key); ok {
		return p.Label()
	}
	return key
}

func (m Model) providerStates() []alerts.ProviderState {
	if m.center == nil {
		return nil
	}
	return m.center.ProviderStates()
}

func (m Model) visibleItems() []alerts.Item {
	return m.filter.Apply(m.items)
}

func (m Model) recentActivity() []activity.Entry {
	if m.feed == nil {
		return nil
	}
	return m.feed.Recent(m.cfg.Display.ActivityBufferSize)
}

func (m Model) addActivity(e activity.Entry) {
	if m.feed != nil {
		m.feed.Add(e)
	}
}

func (m Model) formatItemDetail(it alerts.Item) string {
	var lines []string
	lines = append(lines, "Título:      "+it.Title)
	if it.GoatID != "" {
		lines = append(lines, "Animal:      "+it.GoatID)
	}
	if it.Date != "" {
		lines = append(lines, "Data:        "+it.Date)
	}
	if it.StartDatePregnancy != "" {
		lines = append(lines, "Cobertura:   "+it.StartDatePregnancy)
	}
	if it.DryOffDate != "" {
		lines = append(lines, "Secagem:     "+it.DryOffDate)
	}
	if it.GestationDays > 0 {
		lines = append(lines, fmt.Sprintf("Gestação:    %d dias", it.GestationDays))
	}
	lines = append(lines, "Situação:    "+alerts.FormatOverdue(it.DaysOverdue))
	lines = append(lines, "Severidade:  "+string(it.Severity))
	if it.Link != "" {
		lines = append(lines, "Abrir:       "+alerts.WebLink(m.cfg.API.WebBaseURL, it.Link))
	}
	if it.Description != "" {
		lines = append(lines, "")
		lines = append(lines, it.Description)
	}
	return strings.Join(lines, "\n")
}

func formatActivityDetail(e activity.Entry) string {
	var lines []string
	lines = append(lines, "Tipo:      "+string(e.Kind))
	lines = append(lines, "Fazenda:   "+e.FarmID)
	lines = append(lines, "Horário:   "+e.At.Format("2006-01-02 15:04:05"))
	if e.Success != nil {
		if *e.Success {
			lines = append(lines, "Status:    sucesso")
		} else {
			lines = append(lines, "Status:    falha")
		}
	}
	lines = append(lines, "")
	lines = append(lines, e.Text)
	return strings.Join(lines, "\n")
}

func (m Model) View() string {
	if m.quitting {
		return "Encerrando...\n"
	}

	var output string
	switch m.view {
	case ViewInventory:
		output = m.renderInventory()
	default:
		output = m.renderDashboard()
	}

	if m.height > 0 {
		lines := strings.Split(output, "\n")
		if len(lines) > m.height {
			lines = lines[:m.height]
			output = strings.Join(lines, "\n")
		}
	}

	return output
}
