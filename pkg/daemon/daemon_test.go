package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/modoterra/lifedash/pkg/assist"
	"github.com/modoterra/lifedash/pkg/core"
	"github.com/modoterra/lifedash/pkg/dashboard"
	"github.com/modoterra/lifedash/pkg/events"
	"github.com/modoterra/lifedash/pkg/store"
	"github.com/modoterra/lifedash/pkg/store/memory"
	"github.com/modoterra/lifedash/pkg/transport/uds"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2026, 10, 17, 10, 45, 12, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type streamProvider struct{ body string }

func (p streamProvider) Name() string { return "fake" }

func (p streamProvider) Stream(context.Context, assist.Request) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(p.body)), nil
}

type recorder struct {
	mu      sync.Mutex
	changes []events.Change
}

func (r *recorder) Publish(_ context.Context, c events.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

type harness struct {
	daemon *Daemon
	client *uds.Client
	pub    *recorder
}

func start(t *testing.T, st store.Store, provider assist.Provider) *harness {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "lifedashd.sock")
	pub := &recorder{}
	d := New(Options{
		Socket:    sock,
		Store:     st,
		Publisher: pub,
		Assist:    assist.NewService(provider, "English", time.Minute, testLogger()),
		Clock:     func() time.Time { return fixedNow },
		Logger:    testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	for i := 0; i < 50; i++ {
		if _, err := os.Stat(sock); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	client, err := uds.Dial(sock)
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		cancel()
		d.Shutdown()
		require.NoError(t, <-errCh)
	})
	return &harness{daemon: d, client: client, pub: pub}
}

func call[T any](t *testing.T, h *harness, method string, data any) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := uds.Call[T](ctx, h.client, method, data)
	require.NoError(t, err, method)
	return out
}

func TestPing(t *testing.T) {
	h := start(t, memory.New(), nil)
	pong := call[uds.PingResponse](t, h, uds.MethodPing, nil)
	assert.True(t, pong.Pong)
	assert.InDelta(t, time.Now().UnixMilli(), pong.TSUnixMS, float64(time.Minute.Milliseconds()))
}

func TestNoteLifecycle(t *testing.T) {
	h := start(t, memory.New(), nil)

	m := call[core.Mutation](t, h, uds.MethodAddNote, uds.AddNoteRequest{Content: "call mum"})
	require.True(t, m.Success, m.Error)
	call[core.Mutation](t, h, uds.MethodAddNote, uds.AddNoteRequest{Content: "buy milk"})

	m = call[core.Mutation](t, h, uds.MethodSetNotePriority, uds.NotePriorityRequest{ID: m.ID, Priority: 5})
	require.True(t, m.Success, m.Error)

	stats := call[dashboard.NoteStats](t, h, uds.MethodNoteStats, nil)
	assert.Equal(t, dashboard.NoteStats{Total: 2, Unread: 2, HighPriority: 1}, stats)

	bad := call[core.Mutation](t, h, uds.MethodSetNotePriority, uds.NotePriorityRequest{ID: m.ID, Priority: 9})
	assert.False(t, bad.Success)

	require.True(t, call[core.Mutation](t, h, uds.MethodToggleNoteRead, uds.NoteReadRequest{ID: m.ID, Read: true}).Success)
	require.True(t, call[core.Mutation](t, h, uds.MethodDeleteNote, uds.IDRequest{ID: m.ID}).Success)

	notes := call[[]core.Note](t, h, uds.MethodListNotes, nil)
	require.Len(t, notes, 1)
	assert.Equal(t, "buy milk", notes[0].Content)

	missing := call[core.Mutation](t, h, uds.MethodDeleteNote, uds.IDRequest{ID: m.ID})
	assert.False(t, missing.Success)
	assert.Contains(t, missing.Error, store.ErrNotFound.Error())
}

func TestQuickAddEventOverSocket(t *testing.T) {
	h := start(t, memory.New(), nil)

	m := call[core.Mutation](t, h, uds.MethodQuickAddEvent, uds.QuickAddRequest{Input: `10/18 15:00 Dentist "bring the x-rays"`})
	require.True(t, m.Success, m.Error)

	groups := call[[]dashboard.DayGroup](t, h, uds.MethodUpcomingEvents, nil)
	require.Len(t, groups, 1)
	assert.Equal(t, "Tomorrow", groups[0].Label)
	require.Len(t, groups[0].Events, 1)
	assert.Equal(t, "Dentist", groups[0].Events[0].Title)
	assert.Equal(t, 15, groups[0].Events[0].Date.Hour())

	rejected := call[core.Mutation](t, h, uds.MethodQuickAddEvent, uds.QuickAddRequest{Input: "Dentist soon"})
	assert.False(t, rejected.Success)
	assert.NotEmpty(t, rejected.Error)

	evs := call[[]core.Event](t, h, uds.MethodListEvents, nil)
	assert.Len(t, evs, 1)
}

func TestCashFlowOverSocket(t *testing.T) {
	h := start(t, memory.New(), nil)

	require.True(t, call[core.Mutation](t, h, uds.MethodQuickAddTransaction, uds.QuickAddRequest{Input: "+1500 salary"}).Success)
	require.True(t, call[core.Mutation](t, h, uds.MethodQuickAddTransaction, uds.QuickAddRequest{Input: "-20.50 lunch"}).Success)
	require.True(t, call[core.Mutation](t, h, uds.MethodAddTransaction, uds.AddTransactionRequest{
		Amount: decimal.NewFromInt(100),
		Type:   core.TxExpense,
		Date:   fixedNow.AddDate(0, 0, -3),
	}).Success)

	bad := call[core.Mutation](t, h, uds.MethodQuickAddTransaction, uds.QuickAddRequest{Input: "1500 salary"})
	assert.False(t, bad.Success)

	cf := call[dashboard.CashFlow](t, h, uds.MethodCashFlowSummary, nil)
	assert.True(t, cf.Balance.Equal(decimal.RequireFromString("1379.5")), cf.Balance.String())
	assert.True(t, cf.TodayIncome.Equal(decimal.NewFromInt(1500)))
	assert.True(t, cf.TodayExpense.Equal(decimal.RequireFromString("20.5")))

	txs := call[[]core.Transaction](t, h, uds.MethodListTransactions, nil)
	require.Len(t, txs, 3)
	assert.Equal(t, "Expense", txs[2].Description)
}

func TestTasksAndSubscriptionsOverSocket(t *testing.T) {
	h := start(t, memory.New(), nil)

	for _, title := range []string{"a", "b", "c"} {
		require.True(t, call[core.Mutation](t, h, uds.MethodAddTask, uds.AddTaskRequest{Title: title}).Success)
	}
	require.True(t, call[core.Mutation](t, h, uds.MethodReorderTasks, uds.ReorderTasksRequest{From: 2, To: 0}).Success)

	tasks := call[[]core.Task](t, h, uds.MethodListTasks, nil)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{tasks[0].Title, tasks[1].Title, tasks[2].Title})

	progress := 140
	m := call[core.Mutation](t, h, uds.MethodUpdateTask, uds.UpdateTaskRequest{
		ID:         tasks[0].ID,
		TaskUpdate: dashboard.TaskUpdate{Progress: &progress},
	})
	require.True(t, m.Success, m.Error)
	tasks = call[[]core.Task](t, h, uds.MethodListTasks, nil)
	assert.Equal(t, 100, tasks[0].Progress)

	m = call[core.Mutation](t, h, uds.MethodAddSubscription, uds.AddSubscriptionRequest{Amount: decimal.NewFromInt(12)})
	require.True(t, m.Success, m.Error)
	name := "Music"
	require.True(t, call[core.Mutation](t, h, uds.MethodUpdateSubscription, uds.UpdateSubscriptionRequest{
		ID:                 m.ID,
		SubscriptionUpdate: dashboard.SubscriptionUpdate{Name: &name},
	}).Success)
	subs := call[[]core.Subscription](t, h, uds.MethodListSubscriptions, nil)
	require.Len(t, subs, 1)
	assert.Equal(t, "Music", subs[0].Name)
	assert.Equal(t, dashboard.DefaultSubscriptionInfo, subs[0].Info)
}

func TestMutationsBroadcastAndPublish(t *testing.T) {
	h := start(t, memory.New(), nil)

	changes := make(chan events.Change, 4)
	h.client.OnEvent(func(msg uds.Message) {
		if msg.Method != uds.EventRecordsChanged {
			return
		}
		var c events.Change
		if err := msg.Decode(&c); err == nil {
			changes <- c
		}
	})

	m := call[core.Mutation](t, h, uds.MethodAddNote, uds.AddNoteRequest{Content: "x"})
	require.True(t, m.Success)

	select {
	case c := <-changes:
		assert.Equal(t, core.KindNote, c.Kind)
		assert.Equal(t, events.OpCreated, c.Op)
		assert.Equal(t, m.ID, c.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no records.changed broadcast")
	}
	assert.Equal(t, 1, h.pub.len())
}

func TestRephraseStreamsChunks(t *testing.T) {
	h := start(t, memory.New(), streamProvider{body: "0:\"1. Halo\"\n0:\"\\n2. Hai\"\nd:{\"finishReason\":\"stop\"}\n"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var text strings.Builder
	resp, err := h.client.RequestStream(ctx, uds.MethodRephrase, uds.RephraseRequest{Text: "hello", Lang: "Indonesian"}, func(msg uds.Message) {
		var c uds.AssistChunk
		if msg.Decode(&c) == nil {
			text.WriteString(c.Text)
		}
	})
	require.NoError(t, err)
	var out uds.RephraseResponse
	require.NoError(t, resp.Decode(&out))
	assert.True(t, out.OK)
	assert.Equal(t, "1. Halo\n2. Hai", text.String())
}

func TestRephraseWithoutProvider(t *testing.T) {
	h := start(t, memory.New(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := h.client.Request(ctx, uds.MethodRephrase, uds.RephraseRequest{Text: "hello"})
	var remote *uds.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, assist.ErrNoProvider.Error(), remote.Message)
}

func TestInvalidPayload(t *testing.T) {
	h := start(t, memory.New(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := h.client.Request(ctx, uds.MethodAddNote, "not an object")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request")
}

type flakyStore struct {
	*memory.Store
	mu  sync.Mutex
	err error
}

func (f *flakyStore) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *flakyStore) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func TestPollLoopReportsTransitions(t *testing.T) {
	st := &flakyStore{Store: memory.New()}
	h := start(t, st, nil)

	health := make(chan uds.HealthEvent, 4)
	h.client.OnEvent(func(msg uds.Message) {
		if msg.Method != uds.EventHealthChanged {
			return
		}
		var e uds.HealthEvent
		if msg.Decode(&e) == nil {
			health <- e
		}
	})
	// Make sure the connection is registered before broadcasting.
	call[uds.PingResponse](t, h, uds.MethodPing, nil)

	var hooks []bool
	pl := NewPollLoop(h.daemon, time.Second, testLogger())
	pl.now = func() time.Time { return fixedNow }
	pl.OnChange(func(e uds.HealthEvent) { hooks = append(hooks, e.OK) })

	ctx := context.Background()
	pl.tick(ctx)
	assert.Empty(t, hooks, "healthy to healthy is not a transition")

	st.setErr(errors.New("disk on fire"))
	pl.tick(ctx)
	pl.tick(ctx)
	assert.Equal(t, []bool{false}, hooks)
	assert.False(t, h.daemon.Health().OK)
	assert.Equal(t, "disk on fire", h.daemon.Health().Error)

	select {
	case e := <-health:
		assert.False(t, e.OK)
		assert.Equal(t, "memory", e.Store)
		assert.True(t, e.CheckedAt.Equal(fixedNow))
	case <-time.After(2 * time.Second):
		t.Fatal("no health.changed broadcast")
	}

	st.setErr(nil)
	pl.tick(ctx)
	assert.Equal(t, []bool{false, true}, hooks)
	assert.True(t, h.daemon.Health().OK)
}
