package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/herd-top/internal/activity"
	"github.com/nixlim/herd-top/internal/alerts"
)

type panelDimensions struct {
	categoriesW, categoriesH int
	itemsW, itemsH           int
	activityW, activityH     int
	headerH                  int
}

const (
	minWidth  = 40
	minHeight = 10

	headerHeight = 1

	activityMinHeight = 5

	activityMaxHeight = 10
)

func computeDimensions(totalW, totalH int) panelDimensions {
	if totalW < minWidth {
		totalW = minWidth
	}
	if totalH < minHeight {
		totalH = minHeight
	}

	d := panelDimensions{
		headerH: headerHeight,
	}

	d.activityW = totalW
	d.activityH = (totalH - headerHeight) * 30 / 100
	if d.activityH < activityMinHeight {
		d.activityH = activityMinHeight
	}
	if d.activityH > activityMaxHeight {
		d.activityH = activityMaxHeight
	}

	usableH := totalH - headerHeight - d.activityH
	if usableH < 4 {
		usableH = 4
	}

	d.categoriesW = totalW * 40 / 100
	if d.categoriesW < 20 {
		d.categoriesW = 20
	}
	if d.categoriesW > totalW-20 {
		d.categoriesW = totalW - 20
	}
	d.categoriesH = usableH

	d.itemsW = totalW - d.categoriesW
	if d.itemsW < 20 {
		d.itemsW = 20
	}
	d.itemsH = usableH

	return d
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("28"))

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("70"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("28"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	alertWarningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("226"))

	alertCriticalStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("196"))

	errorBadgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("160"))

	countBadgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226"))

	filterMenuStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("70")).
			Padding(1, 2)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	focusBorderColor = lipgloss.Color("70")

	detailOverlayStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("70")).
				Padding(1, 2)
)

var severityStyles = map[alerts.Severity]lipgloss.Style{
	alerts.SeverityHigh:   alertCriticalStyle,
	alerts.SeverityMedium: alertWarningStyle,
	alerts.SeverityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
}

func renderBorderedPanel(content string, w, h int) string {
	return renderBorderedPanelStyled(content, w, h, panelBorderStyle)
}

func renderBorderedPanelStyled(content string, w, h int, style lipgloss.Style) string {
	contentH := h - 2
	if contentH < 1 {
		contentH = 1
	}

	lines := strings.Split(content, "\n")
	if len(lines) > contentH {
		lines = lines[:contentH]
		content = strings.Join(lines, "\n")
	}

	return style.
		Width(w - 2).
		Height(contentH).
		Render(content)
}

func (m Model) panelStyle(focus PanelFocus) lipgloss.Style {
	if m.panelFocus == focus {
		return panelBorderStyle.BorderForeground(focusBorderColor)
	}
	return panelBorderStyle
}

func (m Model) renderDashboard() string {
	dims := computeDimensions(m.width, m.height)

	header := m.renderHeader()
	categories := m.renderCategoriesPanel(dims.categoriesW, dims.categoriesH)
	items := m.renderItemsPanel(dims.itemsW, dims.itemsH)
	feed := m.renderActivityPanel(dims.activityW, dims.activityH)

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, categories, items)
	layout := lipgloss.JoinVertical(lipgloss.Left, header, mainContent, feed)

	if m.filterMenu.Active {
		layout = m.overlayFilterMenu(layout)
	}

	if m.detailOverlay {
		layout = m.overlayDetail(layout)
	}

	return layout
}

func (m Model) renderHeader() string {
	title := " herd-top"
	farm := " Fazenda " + truncateID(m.currentFarm(), 12)

	total := 0
	loading := false
	if m.center != nil {
		total = m.center.TotalCount()
		loading = m.center.IsLoading()
	}
	bell := fmt.Sprintf("  🔔 %d", total)
	if loading {
		bell += " (atualizando...)"
	}

	indicators := m.headerIndicators()
	help := m.headerHelp()

	fixed := title + farm + bell + indicators
	padding := m.width - lipgloss.Width(fixed) - lipgloss.Width(help)
	if padding < 0 {
		help = ""
		padding = m.width - lipgloss.Width(fixed)
	}
	if padding < 0 {
		padding = 0
	}

	return headerStyle.Width(m.width).MaxHeight(1).Render(fixed + strings.Repeat(" ", padding) + help)
}

func (m Model) headerIndicators() string {
	var parts []string
	if !m.isPersistent {
		parts = append(parts, "[Sem persistência]")
	}
	if badges := m.farmBadges(); badges != "" {
		parts = append(parts, badges)
	}
	if m.statusMessage != "" {
		parts = append(parts, m.statusMessage)
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

// farmBadges renders the cached totals of the other configured farms,
// e.g. "40:3 41:0".
func (m Model) farmBadges() string {
	if len(m.badges) == 0 {
		return ""
	}
	current := m.currentFarm()
	farms := make([]string, 0, len(m.badges))
	for f := range m.badges {
		if f != current {
			farms = append(farms, f)
		}
	}
	sort.Strings(farms)

	parts := make([]string, 0, len(farms))
	for _, f := range farms {
		parts = append(parts, fmt.Sprintf("%s:%d", truncateID(f, 8), m.badges[f]))
	}
	return strings.Join(parts, " ")
}

func (m Model) headerHelp() string {
	if m.view == ViewInventory {
		return "Esc:Painel  Ctrl+C:Sair "
	}
	switch m.panelFocus {
	case FocusItems:
		return "Enter:Detalhe  x:Concluir  f:Filtro  Esc:Voltar  q:Sair "
	case FocusActivity:
		return "Enter:Detalhe  Esc:Voltar  q:Sair "
	default:
		return "Enter:Abrir  r:Atualizar  [/]:Fazenda  i:Estoque  a:Atividade  q:Sair "
	}
}

func truncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

func (m Model) renderCategoriesPanel(w, h int) string {
	var lines []string
	lines = append(lines, panelTitleStyle.Render("Categorias"))

	states := m.providerStates()
	if len(states) == 0 {
		lines = append(lines, "")
		lines = append(lines, dimStyle.Render("Carregando alertas..."))
		return renderBorderedPanelStyled(strings.Join(lines, "\n"), w, h, m.panelStyle(FocusCategories))
	}

	for i, st := range states {
		lines = append(lines, m.renderCategoryLine(st, i == m.categoryCursor && m.panelFocus == FocusCategories, w-4))
		if st.Summary.Headline != "" {
			lines = append(lines, "   "+dimStyle.Render(st.Summary.Headline))
		}
	}

	return renderBorderedPanelStyled(strings.Join(lines, "\n"), w, h, m.panelStyle(FocusCategories))
}

func (m Model) renderCategoryLine(st alerts.ProviderState, selected bool, maxW int) string {
	cursor := "  "
	if selected {
		cursor = "> "
	}
	label := m.providerLabel(st.ProviderKey)
	count := countBadgeStyle.Render(fmt.Sprintf("%d", st.Summary.Count))
	if st.Summary.Count == 0 {
		count = dimStyle.Render("0")
	}

	line := cursor + label + " " + count
	if st.Loading {
		line += dimStyle.Render(" ...")
	}
	if st.Error {
		line += " " + errorBadgeStyle.Render("[erro]") + dimStyle.Render(" R:tentar")
	}
	if selected {
		return selectedStyle.MaxWidth(maxW).Render(line)
	}
	return lipgloss.NewStyle().MaxWidth(maxW).Render(line)
}

func (m Model) renderItemsPanel(w, h int) string {
	contentW := w - 4
	if contentW < 10 {
		contentW = 10
	}
	contentH := h - 2

	var lines []string
	title := "Itens"
	if m.selectedCategory != "" {
		title += ": " + m.providerLabel(m.selectedCategory)
	}
	title = panelTitleStyle.Render(title)
	if m.filter.Active() {
		title += dimStyle.Render(" [filtro]")
	}
	lines = append(lines, title)

	switch {
	case m.selectedCategory == "":
		lines = append(lines, "", dimStyle.Render("Selecione uma categoria"))
	case m.itemsLoading && len(m.items) == 0:
		lines = append(lines, "", dimStyle.Render("Carregando..."))
	case m.itemsErr != "":
		lines = append(lines, "", alertCriticalStyle.Render(m.itemsErr))
	}

	visible := m.visibleItems()
	if m.selectedCategory != "" && !m.itemsLoading && m.itemsErr == "" && len(visible) == 0 {
		lines = append(lines, "", dimStyle.Render("Nenhuma pendência"))
	}

	rows := contentH - 1
	if rows < 1 {
		rows = 1
	}
	start := 0
	if m.itemCursor >= rows {
		start = m.itemCursor - rows + 1
	}
	end := start + rows
	if end > len(visible) {
		end = len(visible)
	}
	for i := start; i < end; i++ {
		lines = append(lines, renderItemLine(visible[i], i == m.itemCursor && m.panelFocus == FocusItems, contentW))
	}

	return renderBorderedPanelStyled(strings.Join(lines, "\n"), w, h, m.panelStyle(FocusItems))
}

func renderItemLine(it alerts.Item, selected bool, maxW int) string {
	badge := alerts.FormatOverdue(it.DaysOverdue)
	style, ok := severityStyles[it.Severity]
	if !ok {
		style = dimStyle
	}

	text := it.Title
	if it.Date != "" {
		text += " (" + it.Date + ")"
	}
	maxText := maxW - len(badge) - 5
	if len(text) > maxText && maxText > 3 {
		text = text[:maxText-3] + "..."
	}

	line := fmt.Sprintf("%s %s", style.Render("["+badge+"]"), text)
	if selected {
		return selectedStyle.Render("> ") + line
	}
	return "  " + line
}

func (m Model) renderActivityPanel(w, h int) string {
	contentW := w - 4
	if contentW < 10 {
		contentW = 10
	}
	rows := h - 3
	if rows < 1 {
		rows = 1
	}

	var lines []string
	lines = append(lines, panelTitleStyle.Render("Atividade"))

	entries := m.recentActivity()
	if len(entries) == 0 {
		lines = append(lines, dimStyle.Render("Nada ainda"))
		return renderBorderedPanelStyled(strings.Join(lines, "\n"), w, h, m.panelStyle(FocusActivity))
	}

	start := 0
	if m.activityCursor >= rows {
		start = m.activityCursor - rows + 1
	}
	end := start + rows
	if end > len(entries) {
		end = len(entries)
	}
	for i := start; i < end; i++ {
		line := renderActivityLine(entries[i], contentW)
		if i == m.activityCursor && m.panelFocus == FocusActivity {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}

	return renderBorderedPanelStyled(strings.Join(lines, "\n"), w, h, m.panelStyle(FocusActivity))
}

func renderActivityLine(e activity.Entry, maxW int) string {
	text := e.Line()
	if len(text) > maxW && maxW > 3 {
		text = text[:maxW-3] + "..."
	}
	switch {
	case e.Success == nil:
		return dimStyle.Render(text)
	case *e.Success:
		return activeStyle.Render(text)
	default:
		return alertCriticalStyle.Render(text)
	}
}

func (m Model) overlayFilterMenu(base string) string {
	content := panelTitleStyle.Render("Filtro de itens") + "\n\n"
	for i, opt := range m.filterMenu.Options {
		cursor := "  "
		if i == m.filterMenu.Cursor {
			cursor = "> "
		}
		check := "[ ]"
		if opt.Enabled {
			check = "[x]"
		}
		line := cursor + check + " " + opt.Label
		if i == m.filterMenu.Cursor {
			line = selectedStyle.Render(line)
		}
		content += line + "\n"
	}
	content += "\nEnter: Alternar  Esc: Fechar"

	return placeOverlay(filterMenuStyle.Render(content), base)
}

func (m Model) overlayDetail(base string) string {
	overlayW := m.width * 70 / 100
	if overlayW < 40 {
		overlayW = 40
	}
	if m.width > 0 && overlayW > m.width-4 {
		overlayW = m.width - 4
	}
	overlayH := m.height * 60 / 100
	if overlayH < 10 {
		overlayH = 10
	}
	if m.height > 0 && overlayH > m.height-4 {
		overlayH = m.height - 4
	}

	contentW := overlayW - 6
	if contentW < 10 {
		contentW = 10
	}
	contentH := overlayH - 4
	if contentH < 3 {
		contentH = 3
	}

	wrapped := wrapLines(strings.Split(m.detailContent, "\n"), contentW)

	startIdx := m.detailScrollPos
	if startIdx > len(wrapped)-contentH {
		startIdx = len(wrapped) - contentH
	}
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := startIdx + contentH
	if endIdx > len(wrapped) {
		endIdx = len(wrapped)
	}

	body := strings.Join(wrapped[startIdx:endIdx], "\n")

	title := panelTitleStyle.Render(m.detailTitle)
	footer := dimStyle.Render("Esc/Enter: Fechar")
	if len(wrapped) > contentH {
		footer += dimStyle.Render("  ↑/↓: Rolar")
	}

	dialog := detailOverlayStyle.
		Width(overlayW - 2).
		Render(title + "\n\n" + body + "\n\n" + footer)

	return placeOverlay(dialog, base)
}

// wrapLines breaks lines at the last space before width.
func wrapLines(lines []string, width int) []string {
	var wrapped []string
	for _, line := range lines {
		runes := []rune(line)
		for len(runes) > width {
			cutAt := width
			for i := width; i > 0; i-- {
				if runes[i] == ' ' {
					cutAt = i
					break
				}
			}
			wrapped = append(wrapped, string(runes[:cutAt]))
			runes = runes[cutAt:]
			if len(runes) > 0 && runes[0] == ' ' {
				runes = runes[1:]
			}
		}
		wrapped = append(wrapped, string(runes))
	}
	return wrapped
}

func placeOverlay(fg, bg string) string {
	return lipgloss.Place(
		lipgloss.Width(bg),
		lipgloss.Height(bg),
		lipgloss.Center,
		lipgloss.Center,
		fg,
		lipgloss.WithWhitespaceChars(" "),
	)
}
