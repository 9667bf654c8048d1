package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/modoterra/lifedash/pkg/core"
	"github.com/modoterra/lifedash/pkg/transport/uds"
)

// decoded adapts a typed handler to uds.HandlerFunc.
func decoded[T any](fn func(ctx context.Context, req T) (any, error)) uds.HandlerFunc {
	return func(ctx context.Context, msg uds.Message) (any, error) {
		var req T
		if err := msg.Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
		return fn(ctx, req)
	}
}

// listing adapts a read with no payload.
func listing[T any](fn func(ctx context.Context) (T, error)) uds.HandlerFunc {
	return func(ctx context.Context, _ uds.Message) (any, error) {
		return fn(ctx)
	}
}

// byID adapts a mutation that only needs the record ID.
func byID(fn func(ctx context.Context, id string) core.Mutation) uds.HandlerFunc {
	return decoded(func(ctx context.Context, req uds.IDRequest) (any, error) {
		return fn(ctx, req.ID), nil
	})
}

func (d *Daemon) registerHandlers() {
	s, dash := d.server, d.dash

	s.Handle(uds.MethodPing, d.handlePing)

	s.Handle(uds.MethodListNotes, listing(dash.ListNotes))
	s.Handle(uds.MethodNoteStats, listing(dash.NoteStats))
	s.Handle(uds.MethodAddNote, decoded(func(ctx context.Context, req uds.AddNoteRequest) (any, error) {
		return dash.AddNote(ctx, req.Content), nil
	}))
	s.Handle(uds.MethodToggleNoteRead, decoded(func(ctx context.Context, req uds.NoteReadRequest) (any, error) {
		return dash.ToggleNoteRead(ctx, req.ID, req.Read), nil
	}))
	s.Handle(uds.MethodSetNotePriority, decoded(func(ctx context.Context, req uds.NotePriorityRequest) (any, error) {
		return dash.SetNotePriority(ctx, req.ID, req.Priority), nil
	}))
	s.Handle(uds.MethodDeleteNote, byID(dash.DeleteNote))

	s.Handle(uds.MethodListTasks, listing(dash.ListTasks))
	s.Handle(uds.MethodAddTask, decoded(func(ctx context.Context, req uds.AddTaskRequest) (any, error) {
		return dash.AddTask(ctx, req.Title, req.Description), nil
	}))
	s.Handle(uds.MethodUpdateTask, decoded(func(ctx context.Context, req uds.UpdateTaskRequest) (any, error) {
		return dash.UpdateTask(ctx, req.ID, req.TaskUpdate), nil
	}))
	s.Handle(uds.MethodDeleteTask, byID(dash.DeleteTask))
	s.Handle(uds.MethodReorderTasks, decoded(func(ctx context.Context, req uds.ReorderTasksRequest) (any, error) {
		return dash.ReorderTasks(ctx, req.From, req.To), nil
	}))

	s.Handle(uds.MethodListEvents, listing(dash.ListEvents))
	s.Handle(uds.MethodUpcomingEvents, listing(dash.UpcomingEvents))
	s.Handle(uds.MethodAddEvent, decoded(func(ctx context.Context, req uds.AddEventRequest) (any, error) {
		return dash.AddEvent(ctx, core.Event{Date: req.Date, Title: req.Title, Description: req.Description}), nil
	}))
	s.Handle(uds.MethodQuickAddEvent, decoded(func(ctx context.Context, req uds.QuickAddRequest) (any, error) {
		return dash.QuickAddEvent(ctx, req.Input), nil
	}))
	s.Handle(uds.MethodUpdateEvent, decoded(func(ctx context.Context, req uds.UpdateEventRequest) (any, error) {
		return dash.UpdateEvent(ctx, req.ID, req.EventUpdate), nil
	}))
	s.Handle(uds.MethodDeleteEvent, byID(dash.DeleteEvent))

	s.Handle(uds.MethodListTransactions, listing(dash.ListTransactions))
	s.Handle(uds.MethodCashFlowSummary, listing(dash.CashFlowSummary))
	s.Handle(uds.MethodAddTransaction, decoded(func(ctx context.Context, req uds.AddTransactionRequest) (any, error) {
		return dash.AddTransaction(ctx, core.Transaction{
			Amount:      req.Amount,
			Type:        req.Type,
			Description: req.Description,
			Date:        req.Date,
		}), nil
	}))
	s.Handle(uds.MethodQuickAddTransaction, decoded(func(ctx context.Context, req uds.QuickAddRequest) (any, error) {
		return dash.QuickAddTransaction(ctx, req.Input), nil
	}))
	s.Handle(uds.MethodUpdateTransaction, decoded(func(ctx context.Context, req uds.UpdateTransactionRequest) (any, error) {
		return dash.UpdateTransaction(ctx, req.ID, req.TransactionUpdate), nil
	}))
	s.Handle(uds.MethodDeleteTransaction, byID(dash.DeleteTransaction))

	s.Handle(uds.MethodListSubscriptions, listing(dash.ListSubscriptions))
	s.Handle(uds.MethodAddSubscription, decoded(func(ctx context.Context, req uds.AddSubscriptionRequest) (any, error) {
		return dash.AddSubscription(ctx, core.Subscription{Amount: req.Amount, Name: req.Name, Info: req.Info}), nil
	}))
	s.Handle(uds.MethodUpdateSubscription, decoded(func(ctx context.Context, req uds.UpdateSubscriptionRequest) (any, error) {
		return dash.UpdateSubscription(ctx, req.ID, req.SubscriptionUpdate), nil
	}))
	s.Handle(uds.MethodDeleteSubscription, byID(dash.DeleteSubscription))

	s.HandleStream(uds.MethodRephrase, d.handleRephrase)
}

func (d *Daemon) handlePing(_ context.Context, _ uds.Message) (any, error) {
	return uds.PingResponse{Pong: true, TSUnixMS: time.Now().UnixMilli()}, nil
}

func (d *Daemon) handleRephrase(ctx context.Context, msg uds.Message, send func(string, any) error) (any, error) {
	var req uds.RephraseRequest
	if err := msg.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	err := d.assist.Rephrase(ctx, req.Text, req.Lang, func(frag string) error {
		return send(uds.EventAssistChunk, uds.AssistChunk{Text: frag})
	})
	if err != nil {
		d.logger.Warn("rephrase failed", "err", err)
		return nil, err
	}
	return uds.RephraseResponse{OK: true}, nil
}
