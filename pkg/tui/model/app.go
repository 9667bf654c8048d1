package model

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/lifedash/pkg/assist"
	"github.com/modoterra/lifedash/pkg/core"
	"github.com/modoterra/lifedash/pkg/dashboard"
	"github.com/modoterra/lifedash/pkg/transport/uds"
)

// Pane identifies which widget is focused.
type Pane int

const (
	PaneNotes Pane = iota
	PaneTasks
	PaneCalendar
	PaneCashFlow
	PaneSubscriptions
	PaneRephrase
	paneCount
)

func (p Pane) Title() string {
	switch p {
	case PaneNotes:
		return "Notes"
	case PaneTasks:
		return "Tasks"
	case PaneCalendar:
		return "Calendar"
	case PaneCashFlow:
		return "Cash Flow"
	case PaneSubscriptions:
		return "Subscriptions"
	case PaneRephrase:
		return "Rephrase"
	}
	return "?"
}

// entryPlaceholder is the quick-entry hint for each pane.
func (p Pane) entryPlaceholder() string {
	switch p {
	case PaneNotes:
		return "new note..."
	case PaneTasks:
		return "task title..."
	case PaneCalendar:
		return `[[yyyy/]m/d] hh:mm[:ss] title ["description"]`
	case PaneCashFlow:
		return "+amount or -amount [description]"
	case PaneSubscriptions:
		return "amount [name]"
	case PaneRephrase:
		return "text to rephrase..."
	}
	return ""
}

// Mode identifies the current interaction mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeEntry
	ModeEditor
	ModeConfirmDelete
)

// snapshot is everything the widgets show, fetched in one go.
type snapshot struct {
	notes     []core.Note
	noteStats dashboard.NoteStats
	tasks     []core.Task
	upcoming  []dashboard.DayGroup
	txs       []core.Transaction
	cashFlow  dashboard.CashFlow
	subs      []core.Subscription
}

// App is the root Bubble Tea model.
type App struct {
	// Connection
	client     *uds.Client
	socketPath string
	connected  bool
	dialing    bool
	events     chan uds.Message

	// State
	data     snapshot
	selected [paneCount]int

	// UI
	activePane Pane
	mode       Mode
	entry      textinput.Model
	entryErr   string
	submitting bool
	width      int
	height     int
	now        time.Time
	clock      func() time.Time
	dayBar     progress.Model
	taskBar    progress.Model

	// Editor
	editor *EditorModel

	// Delete confirmation
	deleteTarget string

	// Rephrase
	langIdx    int
	rephrasing bool
	rephrased  string
	output     viewport.Model
	spinner    spinner.Model
	assistCh   chan tea.Msg
	cancel     context.CancelFunc

	// Error display
	statusMsg string
}

// New creates a new TUI app model.
func New(socketPath string) App {
	in := textinput.New()
	in.CharLimit = 512

	day := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	task := progress.New(progress.WithSolidFill("63"), progress.WithoutPercentage())
	task.Width = 12

	return App{
		socketPath: socketPath,
		events:     make(chan uds.Message, 64),
		entry:      in,
		activePane: PaneNotes,
		mode:       ModeNormal,
		clock:      time.Now,
		now:        time.Now(),
		dayBar:     day,
		taskBar:    task,
		output:     viewport.New(0, 0),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

// Init connects to the daemon.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		connectCmd(a.socketPath),
		tickCmd(),
		tea.SetWindowTitle("lifedash"),
	)
}

// tickMsg drives the clock, the day bar and the connection check.
type tickMsg time.Time

// connectedMsg indicates successful daemon connection.
type connectedMsg struct{ client *uds.Client }

// dialFailedMsg reports a failed connection attempt.
type dialFailedMsg struct{ err error }

// pingMsg carries the result of a connection check.
type pingMsg struct{ err error }

// dataMsg carries a fresh snapshot from the daemon.
type dataMsg struct {
	data snapshot
	err  error
}

// eventMsg carries a server-pushed event.
type eventMsg struct{ msg uds.Message }

// mutationMsg carries the outcome of a write. input is the entry text that
// produced it, if any.
type mutationMsg struct {
	pane  Pane
	input string
	m     core.Mutation
	err   error
}

// chunkMsg carries one streamed rephrase fragment.
type chunkMsg struct{ text string }

// rephraseDoneMsg ends a rephrase stream.
type rephraseDoneMsg struct{ err error }

// errorMsg carries an error to display.
type errorMsg struct{ err error }

func connectCmd(socketPath string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		client, err := uds.DialContext(ctx, socketPath)
		if err != nil {
			return dialFailedMsg{err}
		}
		return connectedMsg{client}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func pingCmd(client *uds.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := client.Request(ctx, uds.MethodPing, nil)
		return pingMsg{err}
	}
}

func waitEventCmd(ch <-chan uds.Message) tea.Cmd {
	return func() tea.Msg {
		return eventMsg{<-ch}
	}
}

func fetchCmd(client *uds.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		var s snapshot
		var err error
		load := func(method string, out any) {
			if err != nil {
				return
			}
			var resp uds.Message
			if resp, err = client.Request(ctx, method, nil); err == nil {
				err = resp.Decode(out)
			}
		}
		load(uds.MethodListNotes, &s.notes)
		load(uds.MethodNoteStats, &s.noteStats)
		load(uds.MethodListTasks, &s.tasks)
		load(uds.MethodUpcomingEvents, &s.upcoming)
		load(uds.MethodListTransactions, &s.txs)
		load(uds.MethodCashFlowSummary, &s.cashFlow)
		load(uds.MethodListSubscriptions, &s.subs)
		return dataMsg{data: s, err: err}
	}
}

func mutateCmd(client *uds.Client, pane Pane, input, method string, payload any) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m, err := uds.Call[core.Mutation](ctx, client, method, payload)
		return mutationMsg{pane: pane, input: input, m: m, err: err}
	}
}

func rephraseCmd(ctx context.Context, client *uds.Client, text, lang string, ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			_, err := client.RequestStream(ctx, uds.MethodRephrase, uds.RephraseRequest{Text: text, Lang: lang}, func(m uds.Message) {
				var c uds.AssistChunk
				if m.Decode(&c) != nil {
					return
				}
				select {
				case ch <- chunkMsg{c.Text}:
				case <-ctx.Done():
				}
			})
			ch <- rephraseDoneMsg{err}
		}()
		return <-ch
	}
}

func waitAssistCmd(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.dayBar.Width = max(msg.Width/3, 10)
		a.output.Width = max(msg.Width-6, 10)
		a.output.Height = max(msg.Height-12, 3)
		a.entry.Width = max(msg.Width-8, 10)
		return a, nil

	case tickMsg:
		a.now = time.Time(msg)
		cmds := []tea.Cmd{tickCmd()}
		switch {
		case a.client != nil:
			cmds = append(cmds, pingCmd(a.client))
		case !a.dialing:
			a.dialing = true
			cmds = append(cmds, connectCmd(a.socketPath))
		}
		return a, tea.Batch(cmds...)

	case connectedMsg:
		a.client = msg.client
		a.connected = true
		a.dialing = false
		a.statusMsg = "connected"

		events := a.events
		a.client.OnEvent(func(m uds.Message) {
			select {
			case events <- m:
			default:
			}
		})
		return a, tea.Batch(fetchCmd(a.client), waitEventCmd(a.events))

	case dialFailedMsg:
		a.dialing = false
		a.connected = false
		return a, nil

	case pingMsg:
		a.connected = msg.err == nil
		if msg.err != nil && a.client != nil {
			select {
			case <-a.client.Done():
				a.client = nil
			default:
			}
		}
		return a, nil

	case eventMsg:
		cmds := []tea.Cmd{waitEventCmd(a.events)}
		switch msg.msg.Method {
		case uds.EventRecordsChanged:
			if a.client != nil {
				cmds = append(cmds, fetchCmd(a.client))
			}
		case uds.EventHealthChanged:
			var h uds.HealthEvent
			if msg.msg.Decode(&h) == nil {
				if h.OK {
					a.statusMsg = "store " + h.Store + " healthy"
				} else {
					a.statusMsg = "store " + h.Store + " unhealthy: " + h.Error
				}
			}
		}
		return a, tea.Batch(cmds...)

	case dataMsg:
		if msg.err != nil {
			a.statusMsg = "error: " + msg.err.Error()
			return a, nil
		}
		a.data = msg.data
		for p := Pane(0); p < paneCount; p++ {
			if n := a.itemCount(p); a.selected[p] >= n {
				a.selected[p] = max(0, n-1)
			}
		}
		return a, nil

	case mutationMsg:
		return a.applyMutation(msg)

	case chunkMsg:
		a.rephrased += msg.text
		a.output.SetContent(a.rephrased)
		a.output.GotoBottom()
		return a, waitAssistCmd(a.assistCh)

	case rephraseDoneMsg:
		a.rephrasing = false
		if a.cancel != nil {
			a.cancel()
			a.cancel = nil
		}
		switch {
		case msg.err == nil:
			a.statusMsg = "rephrase done"
		case errors.Is(msg.err, context.Canceled):
			a.statusMsg = "rephrase cancelled"
		default:
			a.statusMsg = "error: " + msg.err.Error()
		}
		return a, nil

	case spinner.TickMsg:
		if !a.rephrasing {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case errorMsg:
		a.statusMsg = "error: " + msg.err.Error()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

// applyMutation settles a write. A failed quick entry keeps its text and
// marks the input as erroneous; a successful one clears it.
func (a App) applyMutation(msg mutationMsg) (tea.Model, tea.Cmd) {
	err := msg.err
	if err == nil {
		err = msg.m.Err()
	}
	fromEntry := msg.input != ""
	if fromEntry {
		a.submitting = false
	}

	if err != nil {
		if fromEntry && a.mode == ModeEntry && a.activePane == msg.pane {
			a.entryErr = err.Error()
			return a, nil
		}
		a.statusMsg = "error: " + err.Error()
		return a, nil
	}

	if fromEntry && a.mode == ModeEntry && a.activePane == msg.pane && a.entry.Value() == msg.input {
		a.closeEntry()
	}
	a.statusMsg = "saved"
	if a.client != nil {
		return a, fetchCmd(a.client)
	}
	return a, nil
}

func (a *App) openEntry() tea.Cmd {
	a.mode = ModeEntry
	a.entryErr = ""
	a.entry.SetValue("")
	a.entry.Placeholder = a.activePane.entryPlaceholder()
	return a.entry.Focus()
}

func (a *App) closeEntry() {
	a.mode = ModeNormal
	a.entryErr = ""
	a.entry.SetValue("")
	a.entry.Blur()
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		if a.cancel != nil {
			a.cancel()
		}
		return a, tea.Quit
	}

	switch a.mode {
	case ModeEntry:
		return a.handleEntryKey(msg)
	case ModeEditor:
		if a.editor != nil {
			return a.editor.HandleKey(a, msg)
		}
		a.mode = ModeNormal
	case ModeConfirmDelete:
		return a.handleDeleteKey(msg)
	}

	switch msg.String() {
	case "q":
		if a.cancel != nil {
			a.cancel()
		}
		return a, tea.Quit

	case "tab", "right":
		a.activePane = (a.activePane + 1) % paneCount
	case "shift+tab", "left":
		a.activePane = (a.activePane - 1 + paneCount) % paneCount

	case "j", "down":
		if n := a.itemCount(a.activePane); n > 0 {
			a.selected[a.activePane] = min(a.selected[a.activePane]+1, n-1)
		} else if a.activePane == PaneRephrase {
			a.output.LineDown(1)
		}
	case "k", "up":
		if a.selected[a.activePane] > 0 {
			a.selected[a.activePane]--
		} else if a.activePane == PaneRephrase {
			a.output.LineUp(1)
		}

	case "a", "i":
		if a.activePane == PaneRephrase && a.rephrasing {
			return a, nil
		}
		return a, a.openEntry()

	case "r":
		if a.client != nil {
			return a, fetchCmd(a.client)
		}

	case "e":
		if ed := a.editorForSelection(); ed != nil {
			a.editor = ed
			a.mode = ModeEditor
			return a, textinput.Blink
		}

	case "d":
		if id, label := a.selectedRecord(); id != "" {
			a.deleteTarget = id
			a.mode = ModeConfirmDelete
			a.statusMsg = "Delete " + label + "? (y/n)"
		}

	case " ":
		if a.activePane == PaneNotes {
			if n, ok := a.selectedNote(); ok {
				return a.mutate("", uds.MethodToggleNoteRead, uds.NoteReadRequest{ID: n.ID, Read: !n.Read})
			}
		}

	case "+", "=":
		return a.bump(1)
	case "-":
		return a.bump(-1)

	case "J", "K":
		if a.activePane == PaneTasks && len(a.data.tasks) > 1 {
			from := a.selected[PaneTasks]
			to := from + 1
			if msg.String() == "K" {
				to = from - 1
			}
			if to < 0 || to >= len(a.data.tasks) {
				return a, nil
			}
			a.selected[PaneTasks] = to
			return a.mutate("", uds.MethodReorderTasks, uds.ReorderTasksRequest{From: from, To: to})
		}

	case "L":
		if a.activePane == PaneRephrase {
			a.langIdx = (a.langIdx + 1) % len(assist.Languages)
		}

	case "esc":
		if a.rephrasing && a.cancel != nil {
			a.cancel()
		}

	case "c":
		if a.activePane == PaneRephrase && !a.rephrasing {
			a.rephrased = ""
			a.output.SetContent("")
		}
	}

	return a, nil
}

func (a App) handleEntryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.closeEntry()
		return a, nil
	case "enter":
		return a.submitEntry()
	default:
		var cmd tea.Cmd
		a.entry, cmd = a.entry.Update(msg)
		a.entryErr = ""
		return a, cmd
	}
}

func (a App) submitEntry() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(a.entry.Value())
	if input == "" || a.submitting {
		return a, nil
	}
	if a.client == nil {
		a.entryErr = "not connected"
		return a, nil
	}

	switch a.activePane {
	case PaneNotes:
		return a.submit(uds.MethodAddNote, uds.AddNoteRequest{Content: input})
	case PaneTasks:
		return a.submit(uds.MethodAddTask, uds.AddTaskRequest{Title: input})
	case PaneCalendar:
		return a.submit(uds.MethodQuickAddEvent, uds.QuickAddRequest{Input: input})
	case PaneCashFlow:
		return a.submit(uds.MethodQuickAddTransaction, uds.QuickAddRequest{Input: input})
	case PaneSubscriptions:
		req, err := parseSubscriptionEntry(input)
		if err != nil {
			a.entryErr = err.Error()
			return a, nil
		}
		return a.submit(uds.MethodAddSubscription, req)
	case PaneRephrase:
		return a.startRephrase(input)
	}
	return a, nil
}

func (a App) submit(method string, payload any) (tea.Model, tea.Cmd) {
	a.submitting = true
	// The raw value lets a late result be matched to the entry.
	return a, mutateCmd(a.client, a.activePane, a.entry.Value(), method, payload)
}

func (a App) mutate(input, method string, payload any) (tea.Model, tea.Cmd) {
	if a.client == nil {
		a.statusMsg = "not connected"
		return a, nil
	}
	return a, mutateCmd(a.client, a.activePane, input, method, payload)
}

func (a App) startRephrase(text string) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.assistCh = make(chan tea.Msg, 256)
	a.rephrasing = true
	a.rephrased = ""
	a.output.SetContent("")
	a.closeEntry()
	a.statusMsg = "rephrasing into " + assist.Languages[a.langIdx] + "..."
	return a, tea.Batch(
		rephraseCmd(ctx, a.client, text, assist.Languages[a.langIdx], a.assistCh),
		a.spinner.Tick,
	)
}

func (a App) handleDeleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := a.deleteTarget
	a.mode = ModeNormal
	a.deleteTarget = ""
	switch msg.String() {
	case "y", "Y":
		method := deleteMethod(a.activePane)
		if method == "" {
			return a, nil
		}
		a.statusMsg = "deleting..."
		return a.mutate("", method, uds.IDRequest{ID: id})
	}
	a.statusMsg = "delete cancelled"
	return a, nil
}

// bump adjusts note priority or task progress of the selection.
func (a App) bump(dir int) (tea.Model, tea.Cmd) {
	switch a.activePane {
	case PaneNotes:
		if n, ok := a.selectedNote(); ok {
			p := n.Priority + dir
			if p < 0 || p > dashboard.MaxPriority {
				return a, nil
			}
			return a.mutate("", uds.MethodSetNotePriority, uds.NotePriorityRequest{ID: n.ID, Priority: p})
		}
	case PaneTasks:
		if i := a.selected[PaneTasks]; i < len(a.data.tasks) {
			t := a.data.tasks[i]
			p := dashboard.ClampProgress(t.Progress + 10*dir)
			return a.mutate("", uds.MethodUpdateTask, uds.UpdateTaskRequest{
				ID:         t.ID,
				TaskUpdate: dashboard.TaskUpdate{Progress: &p},
			})
		}
	}
	return a, nil
}

func deleteMethod(p Pane) string {
	switch p {
	case PaneNotes:
		return uds.MethodDeleteNote
	case PaneTasks:
		return uds.MethodDeleteTask
	case PaneCalendar:
		return uds.MethodDeleteEvent
	case PaneCashFlow:
		return uds.MethodDeleteTransaction
	case PaneSubscriptions:
		return uds.MethodDeleteSubscription
	}
	return ""
}

func (a App) upcomingEvents() []core.Event {
	var evs []core.Event
	for _, g := range a.data.upcoming {
		evs = append(evs, g.Events...)
	}
	return evs
}

func (a App) itemCount(p Pane) int {
	switch p {
	case PaneNotes:
		return len(a.data.notes)
	case PaneTasks:
		return len(a.data.tasks)
	case PaneCalendar:
		return len(a.upcomingEvents())
	case PaneCashFlow:
		return len(a.data.txs)
	case PaneSubscriptions:
		return len(a.data.subs)
	}
	return 0
}

func (a App) selectedNote() (core.Note, bool) {
	if i := a.selected[PaneNotes]; i < len(a.data.notes) {
		return a.data.notes[i], true
	}
	return core.Note{}, false
}

// selectedRecord returns the ID and a short label of the selection in the
// active pane.
func (a App) selectedRecord() (id, label string) {
	i := a.selected[a.activePane]
	switch a.activePane {
	case PaneNotes:
		if i < len(a.data.notes) {
			return a.data.notes[i].ID, truncate(a.data.notes[i].Content, 30)
		}
	case PaneTasks:
		if i < len(a.data.tasks) {
			return a.data.tasks[i].ID, a.data.tasks[i].Title
		}
	case PaneCalendar:
		if evs := a.upcomingEvents(); i < len(evs) {
			return evs[i].ID, evs[i].Title
		}
	case PaneCashFlow:
		if i < len(a.data.txs) {
			return a.data.txs[i].ID, a.data.txs[i].Description
		}
	case PaneSubscriptions:
		if i < len(a.data.subs) {
			return a.data.subs[i].ID, a.data.subs[i].Name
		}
	}
	return "", ""
}

func (a App) editorForSelection() *EditorModel {
	i := a.selected[a.activePane]
	switch a.activePane {
	case PaneTasks:
		if i < len(a.data.tasks) {
			return NewTaskEditor(a.data.tasks[i])
		}
	case PaneCalendar:
		if evs := a.upcomingEvents(); i < len(evs) {
			return NewEventEditor(evs[i])
		}
	case PaneCashFlow:
		if i < len(a.data.txs) {
			return NewTransactionEditor(a.data.txs[i])
		}
	case PaneSubscriptions:
		if i < len(a.data.subs) {
			return NewSubscriptionEditor(a.data.subs[i])
		}
	}
	return nil
}
