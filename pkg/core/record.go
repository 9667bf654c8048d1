package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies a dashboard widget record type.
type Kind string

const (
	KindNote         Kind = "note"
	KindTask         Kind = "task"
	KindEvent        Kind = "event"
	KindTransaction  Kind = "transaction"
	KindSubscription Kind = "subscription"
)

// Kinds lists every record kind in display order.
var Kinds = []Kind{KindNote, KindTask, KindEvent, KindTransaction, KindSubscription}

// Collection returns the document collection that stores records of this kind.
func (k Kind) Collection() string {
	switch k {
	case KindNote:
		return "notes"
	case KindTask:
		return "tasks"
	case KindEvent:
		return "events"
	case KindTransaction:
		return "transactions"
	case KindSubscription:
		return "subscriptions"
	}
	return ""
}

// ParseKind accepts a kind name or its collection name.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if s == string(k) || s == k.Collection() {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

// TxType tags a transaction as money in or money out.
type TxType string

const (
	TxIncome  TxType = "income"
	TxExpense TxType = "expense"
)

// Note is a short free-text reminder.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Read      bool      `json:"is_read"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is a tracked piece of work with a completion percentage.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Progress    int       `json:"progress"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	Order       int       `json:"order"`
}

// Event is a dated calendar entry.
type Event struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
}

// Transaction is a single cash-flow entry. Amount is always non-negative;
// Type carries the direction.
type Transaction struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TxType          `json:"type"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TxExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Subscription is a recurring charge.
type Subscription struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Name   string          `json:"name"`
	Info   string          `json:"info"`
}

// RecordRef constructs a qualified record reference.
// Format: kind:store:native_id
func RecordRef(kind Kind, store, nativeID string) string {
	return fmt.Sprintf("%s:%s:%s", kind, store, nativeID)
}

// ParseRecordRef splits a record reference into kind, store, and native_id.
func ParseRecordRef(ref string) (kind Kind, store, nativeID string, err error) {
	parts := strings.SplitN(ref, ":", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("invalid record ref %q: expected kind:store:native_id", ref)
	}
	return Kind(parts[0]), parts[1], parts[2], nil
}
