package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/modoterra/lifedash/pkg/core"
	"github.com/modoterra/lifedash/pkg/dashboard"
	"github.com/modoterra/lifedash/pkg/transport/uds"
)

// editorDateLayout is how event and transaction dates are edited.
const editorDateLayout = "2006/01/02 15:04"

// EditorField is a named text input in the editor form.
type EditorField struct {
	Label string
	Input textinput.Model
}

// EditorModel edits the fields of one existing record.
type EditorModel struct {
	pane      Pane
	id        string
	title     string
	fields    []EditorField
	activeIdx int
	err       string
}

// NewTaskEditor creates an editor pre-filled with a task.
func NewTaskEditor(t core.Task) *EditorModel {
	return newEditor(PaneTasks, t.ID, "Edit Task",
		newField("title", t.Title),
		newField("description", t.Description),
		newField("progress", strconv.Itoa(t.Progress)),
	)
}

// NewEventEditor creates an editor pre-filled with an event.
func NewEventEditor(ev core.Event) *EditorModel {
	return newEditor(PaneCalendar, ev.ID, "Edit Event",
		newField("date", ev.Date.Local().Format(editorDateLayout)),
		newField("title", ev.Title),
		newField("description", ev.Description),
	)
}

// NewTransactionEditor creates an editor pre-filled with a transaction.
func NewTransactionEditor(tx core.Transaction) *EditorModel {
	return newEditor(PaneCashFlow, tx.ID, "Edit Transaction",
		newField("amount", tx.Amount.String()),
		newField("type", string(tx.Type)),
		newField("description", tx.Description),
		newField("date", tx.Date.Local().Format(editorDateLayout)),
	)
}

// NewSubscriptionEditor creates an editor pre-filled with a subscription.
func NewSubscriptionEditor(sub core.Subscription) *EditorModel {
	return newEditor(PaneSubscriptions, sub.ID, "Edit Subscription",
		newField("name", sub.Name),
		newField("amount", sub.Amount.String()),
		newField("info", sub.Info),
	)
}

func newEditor(pane Pane, id, title string, fields ...EditorField) *EditorModel {
	fields[0].Input.Focus()
	return &EditorModel{pane: pane, id: id, title: title, fields: fields}
}

func newField(label, value string) EditorField {
	ti := textinput.New()
	ti.Placeholder = label
	ti.SetValue(value)
	ti.CharLimit = 256
	return EditorField{Label: label, Input: ti}
}

func (e *EditorModel) value(label string) string {
	for _, f := range e.fields {
		if f.Label == label {
			return strings.TrimSpace(f.Input.Value())
		}
	}
	return ""
}

// Request turns the form into an update request for the daemon.
func (e *EditorModel) Request() (method string, payload any, err error) {
	switch e.pane {
	case PaneTasks:
		title, desc := e.value("title"), e.value("description")
		progress, err := strconv.Atoi(e.value("progress"))
		if err != nil {
			return "", nil, fmt.Errorf("progress must be a whole number")
		}
		progress = dashboard.ClampProgress(progress)
		return uds.MethodUpdateTask, uds.UpdateTaskRequest{ID: e.id, TaskUpdate: dashboard.TaskUpdate{
			Title: &title, Description: &desc, Progress: &progress,
		}}, nil

	case PaneCalendar:
		date, err := time.ParseInLocation(editorDateLayout, e.value("date"), time.Local)
		if err != nil {
			return "", nil, fmt.Errorf("date must look like %s", editorDateLayout)
		}
		title, desc := e.value("title"), e.value("description")
		return uds.MethodUpdateEvent, uds.UpdateEventRequest{ID: e.id, EventUpdate: dashboard.EventUpdate{
			Date: &date, Title: &title, Description: &desc,
		}}, nil

	case PaneCashFlow:
		amount, err := decimal.NewFromString(e.value("amount"))
		if err != nil || amount.IsNegative() {
			return "", nil, fmt.Errorf("amount must be a non-negative number")
		}
		typ := core.TxType(strings.ToLower(e.value("type")))
		if typ != core.TxIncome && typ != core.TxExpense {
			return "", nil, fmt.Errorf("type must be income or expense")
		}
		date, err := time.ParseInLocation(editorDateLayout, e.value("date"), time.Local)
		if err != nil {
			return "", nil, fmt.Errorf("date must look like %s", editorDateLayout)
		}
		desc := e.value("description")
		return uds.MethodUpdateTransaction, uds.UpdateTransactionRequest{ID: e.id, TransactionUpdate: dashboard.TransactionUpdate{
			Amount: &amount, Type: &typ, Description: &desc, Date: &date,
		}}, nil

	case PaneSubscriptions:
		amount, err := decimal.NewFromString(e.value("amount"))
		if err != nil || amount.IsNegative() {
			return "", nil, fmt.Errorf("amount must be a non-negative number")
		}
		name, info := e.value("name"), e.value("info")
		return uds.MethodUpdateSubscription, uds.UpdateSubscriptionRequest{ID: e.id, SubscriptionUpdate: dashboard.SubscriptionUpdate{
			Amount: &amount, Name: &name, Info: &info,
		}}, nil
	}
	return "", nil, fmt.Errorf("nothing to edit")
}

// HandleKey processes key events in editor mode.
func (e *EditorModel) HandleKey(a App, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = ModeNormal
		a.editor = nil
		return a, nil

	case "enter":
		method, payload, err := e.Request()
		if err != nil {
			e.err = err.Error()
			return a, nil
		}
		if a.client == nil {
			e.err = "not connected"
			return a, nil
		}
		a.mode = ModeNormal
		a.editor = nil
		a.statusMsg = "saving..."
		return a, mutateCmd(a.client, e.pane, "", method, payload)

	case "tab", "down":
		e.fields[e.activeIdx].Input.Blur()
		e.activeIdx = (e.activeIdx + 1) % len(e.fields)
		e.fields[e.activeIdx].Input.Focus()
		return a, textinput.Blink

	case "shift+tab", "up":
		e.fields[e.activeIdx].Input.Blur()
		e.activeIdx = (e.activeIdx - 1 + len(e.fields)) % len(e.fields)
		e.fields[e.activeIdx].Input.Focus()
		return a, textinput.Blink

	default:
		var cmd tea.Cmd
		e.fields[e.activeIdx].Input, cmd = e.fields[e.activeIdx].Input.Update(msg)
		e.err = ""
		return a, cmd
	}
}

// View renders the editor form.
func (e *EditorModel) View(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(" "+e.title+" ") + "\n\n")
	for i, f := range e.fields {
		prefix := "  "
		if i == e.activeIdx {
			prefix = "▸ "
		}
		b.WriteString(prefix + dimStyle.Render(f.Label+": ") + f.Input.View() + "\n")
	}
	if e.err != "" {
		b.WriteString("\n" + errorStyle.Render("  "+truncate(e.err, max(width-2, 10))) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("  tab:next  shift+tab:prev  enter:save  esc:cancel"))
	return b.String()
}

// parseSubscriptionEntry reads "amount [name]".
func parseSubscriptionEntry(input string) (uds.AddSubscriptionRequest, error) {
	amountText, name, _ := strings.Cut(strings.TrimSpace(input), " ")
	amount, err := decimal.NewFromString(amountText)
	if err != nil || amount.IsNegative() {
		return uds.AddSubscriptionRequest{}, fmt.Errorf("start with the monthly amount, e.g. 9.99 Music")
	}
	return uds.AddSubscriptionRequest{Amount: amount, Name: strings.TrimSpace(name)}, nil
}
