package tui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nixlim/herd-top/internal/activity"
	"github.com/nixlim/herd-top/internal/inventory"
)

const (
	fieldType = iota
	fieldItem
	fieldLot
	fieldQuantity
	fieldDirection
	fieldReason
	fieldDate
	fieldCount
)

type formField struct {
	label       string
	apiName     string
	placeholder string
	options     []string
}

var formFields = [fieldCount]formField{
	fieldType:      {label: "Tipo", apiName: "type", placeholder: "ENTRY", options: []string{inventory.TypeEntry, inventory.TypeExit, inventory.TypeAdjustment}},
	fieldItem:      {label: "Item", apiName: "itemId", placeholder: "id do item"},
	fieldLot:       {label: "Lote", apiName: "lotId", placeholder: "opcional"},
	fieldQuantity:  {label: "Quantidade", apiName: "quantity", placeholder: "0,0"},
	fieldDirection: {label: "Direção", apiName: "adjustDirection", placeholder: "só para ajuste", options: []string{inventory.DirectionIncrease, inventory.DirectionDecrease}},
	fieldReason:    {label: "Motivo", apiName: "reason", placeholder: "opcional"},
	fieldDate:      {label: "Data", apiName: "movementDate", placeholder: "AAAA-MM-DD"},
}

// inventoryForm binds text inputs to an inventory.Draft. The draft owns the
// idempotency key; the form only mirrors what the user typed.
type inventoryForm struct {
	farmID string
	draft  *inventory.Draft

	inputs []textinput.Model
	focus  int

	pendingSince time.Time
	submitting   bool
	result       *inventory.Result
	message      string
}

func newInventoryForm(farmID string, draft *inventory.Draft) inventoryForm {
	f := inventoryForm{
		farmID: farmID,
		draft:  draft,
		inputs: make([]textinput.Model, fieldCount),
	}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = formFields[i].placeholder
		ti.CharLimit = 64
		ti.Width = 32
		f.inputs[i] = ti
	}
	f.inputs[0].Focus()

	if draft == nil {
		return f
	}
	if snap, ok := draft.Open(); ok {
		f.pendingSince = snap.CreatedAt
	}
	f.fill(draft.Payload())
	return f
}

func (f *inventoryForm) fill(p inventory.Payload) {
	values := [fieldCount]string{
		fieldType:      p.Type,
		fieldItem:      p.ItemID,
		fieldLot:       p.LotID,
		fieldQuantity:  p.Quantity,
		fieldDirection: p.AdjustDirection,
		fieldReason:    p.Reason,
		fieldDate:      p.MovementDate,
	}
	for i, v := range values {
		f.inputs[i].SetValue(v)
	}
}

func (f inventoryForm) payload() inventory.Payload {
	return inventory.Payload{
		Type:            f.inputs[fieldType].Value(),
		ItemID:          f.inputs[fieldItem].Value(),
		LotID:           f.inputs[fieldLot].Value(),
		Quantity:        f.inputs[fieldQuantity].Value(),
		AdjustDirection: f.inputs[fieldDirection].Value(),
		Reason:          f.inputs[fieldReason].Value(),
		MovementDate:    f.inputs[fieldDate].Value(),
	}
}

func (f inventoryForm) focusCmd() tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	return textinput.Blink
}

// setFocus moves focus by delta, wrapping around.
func (f *inventoryForm) setFocus(delta int) tea.Cmd {
	f.inputs = slices.Clone(f.inputs)
	f.inputs[f.focus].Blur()
	f.focus = ((f.focus+delta)%fieldCount + fieldCount) % fieldCount
	return f.inputs[f.focus].Focus()
}

// cycleOption steps an enum field to its next allowed value.
func (f *inventoryForm) cycleOption() {
	opts := formFields[f.focus].options
	if len(opts) == 0 {
		return
	}
	current := strings.ToUpper(strings.TrimSpace(f.inputs[f.focus].Value()))
	next := opts[0]
	if i := slices.Index(opts, current); i >= 0 {
		next = opts[(i+1)%len(opts)]
	}
	f.inputs = slices.Clone(f.inputs)
	f.inputs[f.focus].SetValue(next)
	f.inputs[f.focus].CursorEnd()
}

// sync pushes the typed values into the draft. An edit that changes the
// payload drops a restored retry.
func (f *inventoryForm) sync() {
	if f.draft == nil {
		return
	}
	if f.draft.Edit(f.payload()) && !f.draft.Pending() {
		f.pendingSince = time.Time{}
	}
}

func (m Model) handleInventoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.view = ViewDashboard
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submitMovement()

	case key.Matches(msg, m.keys.NextField):
		return m, m.form.setFocus(1)

	case key.Matches(msg, m.keys.PrevField):
		return m, m.form.setFocus(-1)
	}

	// The draft is frozen until the in-flight submission reports back.
	if m.form.submitting {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Discard):
		if m.form.draft == nil {
			return m, nil
		}
		if err := m.form.draft.Discard(); err != nil {
			m.form.message = "Erro ao descartar: " + err.Error()
			return m, nil
		}
		m.form.inputs = slices.Clone(m.form.inputs)
		m.form.fill(m.form.draft.Payload())
		m.form.pendingSince = time.Time{}
		m.form.result = nil
		m.form.message = "Envio pendente descartado."
		return m, nil

	case key.Matches(msg, m.keys.CycleOption):
		m.form.cycleOption()
		m.form.sync()
		return m, nil
	}

	m.form.inputs = slices.Clone(m.form.inputs)
	var cmd tea.Cmd
	m.form.inputs[m.form.focus], cmd = m.form.inputs[m.form.focus].Update(msg)
	m.form.sync()
	return m, cmd
}

func (m Model) submitMovement() (tea.Model, tea.Cmd) {
	if m.form.draft == nil {
		m.form.message = "Inventário indisponível: nenhuma fazenda selecionada."
		return m, nil
	}
	if m.form.submitting {
		return m, nil
	}

	m.form.sync()
	m.form.submitting = true
	m.form.message = "Enviando..."

	draft, ctx, farmID := m.form.draft, m.ctx, m.form.farmID
	return m, func() tea.Msg {
		return submittedMsg{farmID: farmID, result: draft.Submit(ctx)}
	}
}

func (m Model) handleSubmitted(msg submittedMsg) Model {
	m.addActivity(activity.MovementSubmitted(msg.farmID, msg.result, m.now()))
	if msg.farmID != m.form.farmID {
		return m
	}

	res := msg.result
	m.form.submitting = false
	m.form.result = &res
	m.form.message = res.Message

	switch {
	case res.Outcome.Success():
		m.form.inputs = slices.Clone(m.form.inputs)
		m.form.fill(m.form.draft.Payload())
		m.form.pendingSince = time.Time{}
	case res.Outcome == inventory.OutcomeNetwork:
		if m.form.draft.Pending() {
			m.form.pendingSince = m.now()
		}
	default:
		if !m.form.draft.Pending() {
			m.form.pendingSince = time.Time{}
		}
	}
	return m
}

// outcomeLabel distinguishes a fresh movement from an idempotent replay.
func outcomeLabel(o inventory.Outcome) string {
	switch o {
	case inventory.OutcomeCreated:
		return "[criada]"
	case inventory.OutcomeReplayed:
		return "[repetição idempotente]"
	case inventory.OutcomeNetwork:
		return "[sem resposta]"
	case inventory.OutcomeConflict:
		return "[conflito]"
	case inventory.OutcomeForbidden:
		return "[sem permissão]"
	case inventory.OutcomeValidation:
		return "[inválido]"
	default:
		return "[falha]"
	}
}

func (m Model) renderInventory() string {
	header := m.renderHeader()

	var lines []string
	lines = append(lines, panelTitleStyle.Render("Movimentação de estoque"))
	lines = append(lines, "")

	f := m.form
	if f.draft == nil {
		lines = append(lines, dimStyle.Render("Inventário indisponível: nenhuma fazenda selecionada."))
		return lipgloss.JoinVertical(lipgloss.Left, header, renderBorderedPanel(strings.Join(lines, "\n"), m.width, m.height-1))
	}

	if f.draft.Pending() {
		lines = append(lines, m.retryBanner())
		lines = append(lines, "")
	}

	fieldErrs := map[string]string{}
	if f.result != nil {
		for _, fe := range f.result.FieldErrors {
			fieldErrs[fe.Field] = fe.Message
		}
	}

	for i, ti := range f.inputs {
		label := fmt.Sprintf("%-11s", formFields[i].label)
		cursor := "  "
		if i == f.focus {
			cursor = "> "
			label = selectedStyle.Render(label)
		}
		line := cursor + label + " " + ti.View()
		if msg, ok := fieldErrs[formFields[i].apiName]; ok {
			line += "  " + alertCriticalStyle.Render(msg)
		}
		lines = append(lines, line)
	}

	lines = append(lines, "")
	lines = append(lines, dimStyle.Render("Chave: "+f.draft.Key().Key))

	if f.result != nil {
		style := alertWarningStyle
		if f.result.Outcome.Success() {
			style = activeStyle
		} else if !f.result.Retryable {
			style = alertCriticalStyle
		}
		line := outcomeLabel(f.result.Outcome) + " " + f.message
		if f.result.Movement != nil && f.result.Movement.ID != 0 {
			line += fmt.Sprintf(" #%d", f.result.Movement.ID)
		}
		lines = append(lines, style.Render(line))
	} else if f.message != "" {
		lines = append(lines, dimStyle.Render(f.message))
	}

	lines = append(lines, "")
	lines = append(lines, statusBarStyle.Render("Tab:Campo  Ctrl+T:Opção  Ctrl+S:Enviar  Ctrl+D:Descartar pendente  Esc:Painel"))

	return lipgloss.JoinVertical(lipgloss.Left, header, renderBorderedPanel(strings.Join(lines, "\n"), m.width, m.height-1))
}

func (m Model) retryBanner() string {
	age := "agora"
	if !m.form.pendingSince.IsZero() {
		age = humanize.RelTime(m.form.pendingSince, m.now(), "atrás", "adiante")
	}
	return alertWarningStyle.Render(fmt.Sprintf(
		"Envio pendente (%s). Ctrl+S reenvia com a mesma chave; qualquer alteração gera uma nova.", age))
}
