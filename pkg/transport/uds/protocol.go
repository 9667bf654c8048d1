package uds

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/modoterra/lifedash/pkg/core"
	"github.com/modoterra/lifedash/pkg/dashboard"
)

var reqCounter atomic.Uint64

// MsgType identifies the kind of message.
type MsgType string

const (
	MsgTypeReq MsgType = "req"
	MsgTypeRes MsgType = "res"
	MsgTypeEvt MsgType = "evt"
)

// Message is the NDJSON envelope for all communication.
type Message struct {
	Type   MsgType         `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Method, err)
	}
	return nil
}

func marshalData(data any) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	return json.Marshal(data)
}

// NewRequest creates a new request message with a unique ID.
func NewRequest(method string, data any) (Message, error) {
	raw, err := marshalData(data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:   MsgTypeReq,
		ID:     fmt.Sprintf("req-%d", reqCounter.Add(1)),
		Method: method,
		Data:   raw,
	}, nil
}

// NewResponse creates a response to a request.
func NewResponse(reqID, method string, data any) (Message, error) {
	raw, err := marshalData(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: MsgTypeRes, ID: reqID, Method: method, Data: raw}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(reqID, method, errMsg string) Message {
	return Message{Type: MsgTypeRes, ID: reqID, Method: method, Error: errMsg}
}

// NewEvent creates a server-pushed broadcast event.
func NewEvent(method string, data any) (Message, error) {
	raw, err := marshalData(data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:   MsgTypeEvt,
		ID:     fmt.Sprintf("evt-%d", reqCounter.Add(1)),
		Method: method,
		Data:   raw,
	}, nil
}

// NewStreamEvent creates an event that belongs to the in-flight request
// reqID. It is sent to the requesting connection only.
func NewStreamEvent(reqID, method string, data any) (Message, error) {
	raw, err := marshalData(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: MsgTypeEvt, ID: reqID, Method: method, Data: raw}, nil
}

// Methods
const (
	MethodPing   = "Ping"
	MethodCancel = "Cancel"

	MethodListNotes       = "ListNotes"
	MethodAddNote         = "AddNote"
	MethodToggleNoteRead  = "ToggleNoteRead"
	MethodSetNotePriority = "SetNotePriority"
	MethodDeleteNote      = "DeleteNote"
	MethodNoteStats       = "NoteStats"

	MethodListTasks    = "ListTasks"
	MethodAddTask      = "AddTask"
	MethodUpdateTask   = "UpdateTask"
	MethodDeleteTask   = "DeleteTask"
	MethodReorderTasks = "ReorderTasks"

	MethodListEvents     = "ListEvents"
	MethodUpcomingEvents = "UpcomingEvents"
	MethodAddEvent       = "AddEvent"
	MethodQuickAddEvent  = "QuickAddEvent"
	MethodUpdateEvent    = "UpdateEvent"
	MethodDeleteEvent    = "DeleteEvent"

	MethodListTransactions    = "ListTransactions"
	MethodAddTransaction      = "AddTransaction"
	MethodQuickAddTransaction = "QuickAddTransaction"
	MethodUpdateTransaction   = "UpdateTransaction"
	MethodDeleteTransaction   = "DeleteTransaction"
	MethodCashFlowSummary     = "CashFlowSummary"

	MethodListSubscriptions  = "ListSubscriptions"
	MethodAddSubscription    = "AddSubscription"
	MethodUpdateSubscription = "UpdateSubscription"
	MethodDeleteSubscription = "DeleteSubscription"

	MethodRephrase = "Rephrase"

	EventRecordsChanged = "records.changed"
	EventHealthChanged  = "health.changed"
	EventAssistChunk    = "assist.chunk"
)

// PingResponse is the response to a Ping request.
type PingResponse struct {
	Pong     bool  `json:"pong"`
	TSUnixMS int64 `json:"ts_unix_ms"`
}

// CancelRequest aborts the in-flight request with the given ID on the same
// connection.
type CancelRequest struct {
	ID string `json:"id"`
}

// IDRequest addresses one record.
type IDRequest struct {
	ID string `json:"id"`
}

// QuickAddRequest carries a quick-entry line.
type QuickAddRequest struct {
	Input string `json:"input"`
}

type AddNoteRequest struct {
	Content string `json:"content"`
}

type NoteReadRequest struct {
	ID   string `json:"id"`
	Read bool   `json:"read"`
}

type NotePriorityRequest struct {
	ID       string `json:"id"`
	Priority int    `json:"priority"`
}

type AddTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type UpdateTaskRequest struct {
	ID string `json:"id"`
	dashboard.TaskUpdate
}

// ReorderTasksRequest moves the task at index From to index To.
type ReorderTasksRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type AddEventRequest struct {
	Date        time.Time `json:"date"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
}

type UpdateEventRequest struct {
	ID string `json:"id"`
	dashboard.EventUpdate
}

type AddTransactionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Type        core.TxType     `json:"type"`
	Description string          `json:"description,omitempty"`
	Date        time.Time       `json:"date"`
}

type UpdateTransactionRequest struct {
	ID string `json:"id"`
	dashboard.TransactionUpdate
}

type AddSubscriptionRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Name   string          `json:"name,omitempty"`
	Info   string          `json:"info,omitempty"`
}

type UpdateSubscriptionRequest struct {
	ID string `json:"id"`
	dashboard.SubscriptionUpdate
}

// RephraseRequest asks for variations of Text in Lang. Fragments arrive as
// assist.chunk events before the final RephraseResponse.
type RephraseRequest struct {
	Text string `json:"text"`
	Lang string `json:"lang,omitempty"`
}

type RephraseResponse struct {
	OK bool `json:"ok"`
}

// AssistChunk is one streamed rephrase fragment.
type AssistChunk struct {
	Text string `json:"text"`
}

// HealthEvent reports the daemon's view of its store.
type HealthEvent struct {
	Store     string    `json:"store"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
