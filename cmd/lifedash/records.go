package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/modoterra/lifedash/pkg/assist"
	"github.com/modoterra/lifedash/pkg/core"
	"github.com/modoterra/lifedash/pkg/dashboard"
	"github.com/modoterra/lifedash/pkg/events"
	"github.com/modoterra/lifedash/pkg/transport/uds"
)

var jsonOut bool

func init() {
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(eventCmd)
	rootCmd.AddCommand(txCmd)
	rootCmd.AddCommand(subCmd)
	rootCmd.AddCommand(rephraseCmd)

	for _, c := range []*cobra.Command{noteListCmd, taskListCmd, eventListCmd, eventUpcomingCmd, txListCmd, txSummaryCmd, subListCmd} {
		c.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// list fetches with method and prints either JSON or the table render gives.
func list[T any](cmd *cobra.Command, method string, render func(io.Writer, T)) error {
	v, err := call[T](method, nil)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), v)
	}
	render(cmd.OutOrStdout(), v)
	return nil
}

func deleteCmd(method, what string) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a " + what,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd.OutOrStdout(), method, uds.IDRequest{ID: args[0]}, "deleted")
		},
	}
}

// --- Notes ---

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <text...>",
	Short: "Add a note",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd.OutOrStdout(), uds.MethodAddNote, uds.AddNoteRequest{Content: strings.Join(args, " ")}, "note added")
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, unread first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return list(cmd, uds.MethodListNotes, func(out io.Writer, notes []core.Note) {
			if len(notes) == 0 {
				fmt.Fprintln(out, "no notes")
				return
			}
			fmt.Fprintf(out, "%-4s %-4s %-16s %-36s %s\n", "READ", "PRI", "CREATED", "ID", "CONTENT")
			for _, n := range notes {
				read := " "
				if n.Read {
					read = "✓"
				}
				fmt.Fprintf(out, "%-4s %-4d %-16s %-36s %s\n", read, n.Priority, n.CreatedAt.Local().Format("2006-01-02 15:04"), n.ID, n.Content)
			}
		})
	},
}

var noteUnread bool

var noteReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a note read (or unread with --unread)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd.OutOrStdout(), uds.MethodToggleNoteRead, uds.NoteReadRequest{ID: args[0], Read: !noteUnread}, "note updated")
	},
}

var notePriorityCmd = &cobra.Command{
	Use:   "priority <id> <0-5>",
	Short: "Set a note's priority",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("priority must be a number between 0 and %d", dashboard.MaxPriority)
		}
		return mutate(cmd.OutOrStdout(), uds.MethodSetNotePriority, uds.NotePriorityRequest{ID: args[0], Priority: p}, "priority set")
	},
}

func init() {
	noteReadCmd.Flags().BoolVar(&noteUnread, "unread", false, "mark as unread instead")
	noteCmd.AddCommand(noteAddCmd, noteListCmd, noteReadCmd, notePriorityCmd, deleteCmd(uds.MethodDeleteNote, "note"))
}

// --- Tasks ---

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskDescription string

var taskAddCmd = &cobra.Command{
	Use:   "add <title...>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := uds.AddTaskRequest{Title: strings.Join(args, " "), Description: taskDescription}
		return mutate(cmd.OutOrStdout(), uds.MethodAddTask, req, "task added")
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks in order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return list(cmd, uds.MethodListTasks, func(out io.Writer, tasks []core.Task) {
			if len(tasks) == 0 {
				fmt.Fprintln(out, "no tasks")
				return
			}
			now := time.Now()
			fmt.Fprintf(out, "%-3s %-5s %-22s %-36s %s\n", "#", "DONE", "STARTED", "ID", "TITLE")
			for i, t := range tasks {
				fmt.Fprintf(out, "%-3d %4d%% %-22s %-36s %s\n", i, t.Progress, dashboard.TaskAge(t.StartDate, now), t.ID, t.Title)
			}
		})
	},
}

var taskProgressCmd = &cobra.Command{
	Use:   "progress <id> <0-100>",
	Short: "Set a task's progress",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := strconv.Atoi(strings.TrimSuffix(args[1], "%"))
		if err != nil {
			return fmt.Errorf("progress must be a whole number")
		}
		req := uds.UpdateTaskRequest{ID: args[0], TaskUpdate: dashboard.TaskUpdate{Progress: &p}}
		return mutate(cmd.OutOrStdout(), uds.MethodUpdateTask, req, "progress set")
	},
}

var taskMoveCmd = &cobra.Command{
	Use:   "move <from> <to>",
	Short: "Move the task at position from to position to",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("from must be a list position")
		}
		to, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("to must be a list position")
		}
		return mutate(cmd.OutOrStdout(), uds.MethodReorderTasks, uds.ReorderTasksRequest{From: from, To: to}, "task moved")
	},
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskDescription, "description", "d", "", "task description")
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskProgressCmd, taskMoveCmd, deleteCmd(uds.MethodDeleteTask, "task"))
}

// --- Events ---

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Manage calendar events",
}

var eventAddCmd = &cobra.Command{
	Use:   `add <[[yyyy/]m/d] hh:mm[:ss] title ["description"]>`,
	Short: "Add an event from a quick-entry line",
	Example: `  lifedash event add 9:30 standup
  lifedash event add 10/18 15:00 Dentist '"bring the x-rays"'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := uds.QuickAddRequest{Input: strings.Join(args, " ")}
		return mutate(cmd.OutOrStdout(), uds.MethodQuickAddEvent, req, "event added")
	},
}

func renderEvents(out io.Writer, evs []core.Event) {
	for _, ev := range evs {
		line := fmt.Sprintf("  %s  %-36s %s", ev.Date.Local().Format("15:04:05"), ev.ID, ev.Title)
		if ev.Description != "" {
			line += " (" + ev.Description + ")"
		}
		fmt.Fprintln(out, line)
	}
}

var eventListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all events",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return list(cmd, uds.MethodListEvents, func(out io.Writer, evs []core.Event) {
			if len(evs) == 0 {
				fmt.Fprintln(out, "no events")
				return
			}
			now := time.Now()
			fmt.Fprintf(out, "%-16s %-12s %-36s %s\n", "DATE", "WHEN", "ID", "TITLE")
			for _, ev := range evs {
				fmt.Fprintf(out, "%-16s %-12s %-36s %s\n", ev.Date.Local().Format("2006-01-02 15:04"), dashboard.RelativeDay(ev.Date, now), ev.ID, ev.Title)
			}
		})
	},
}

var eventUpcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List events from today on, grouped by day",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return list(cmd, uds.MethodUpcomingEvents, func(out io.Writer, groups []dashboard.DayGroup) {
			if len(groups) == 0 {
				fmt.Fprintln(out, "nothing coming up")
				return
			}
			for _, g := range groups {
				fmt.Fprintf(out, "%s · %s\n", g.Label, g.Day.Local().Format("Mon Jan 2"))
				renderEvents(out, g.Events)
			}
		})
	},
}

func init() {
	eventCmd.AddCommand(eventAddCmd, eventListCmd, eventUpcomingCmd, deleteCmd(uds.MethodDeleteEvent, "event"))
}

// --- Transactions ---

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Manage cash-flow transactions",
}

var txAddCmd = &cobra.Command{
	Use:   "add <+amount|-amount> [description...]",
	Short: "Add a transaction from a quick-entry line",
	Long:  "Put -- before an expense so the amount is not read as a flag.",
	Example: `  lifedash tx add +1500 salary
  lifedash tx add -- -12.50 lunch`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := uds.QuickAddRequest{Input: strings.Join(args, " ")}
		return mutate(cmd.OutOrStdout(), uds.MethodQuickAddTransaction, req, "transaction added")
	},
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return list(cmd, uds.MethodListTransactions, func(out io.Writer, txs []core.Transaction) {
			if len(txs) == 0 {
				fmt.Fprintln(out, "no transactions")
				return
			}
			fmt.Fprintf(out, "%-16s %12s %-36s %s\n", "DATE", "AMOUNT", "ID", "DESCRIPTION")
			for _, tx := range txs {
				fmt.Fprintf(out, "%-16s %12s %-36s %s\n", tx.Date.Local().Format("2006-01-02 15:04"), signed(tx), tx.ID, tx.Description)
			}
		})
	},
}

func signed(tx core.Transaction) string {
	if tx.Type == core.TxExpense {
		return "-" + tx.Amount.StringFixed(2)
	}
	return "+" + tx.Amount.StringFixed(2)
}

var txSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show balance and today's income and expense",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return list(cmd, uds.MethodCashFlowSummary, func(out io.Writer, cf dashboard.CashFlow) {
			fmt.Fprintf(out, "balance:        %s\n", cf.Balance.StringFixed(2))
			fmt.Fprintf(out, "today income:  +%s\n", cf.TodayIncome.StringFixed(2))
			fmt.Fprintf(out, "today expense: -%s\n", cf.TodayExpense.StringFixed(2))
		})
	},
}

func init() {
	txCmd.AddCommand(txAddCmd, txListCmd, txSummaryCmd, deleteCmd(uds.MethodDeleteTransaction, "transaction"))
}

// --- Subscriptions ---

var subCmd = &cobra.Command{
	Use:   "sub",
	Short: "Manage subscriptions",
}

var subInfo string

var subAddCmd = &cobra.Command{
	Use:   "add <amount> [name...]",
	Short: "Add a monthly subscription",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := decimal.NewFromString(args[0])
		if err != nil {
			return fmt.Errorf("amount %q is not a number", args[0])
		}
		req := uds.AddSubscriptionRequest{Amount: amount, Name: strings.Join(args[1:], " "), Info: subInfo}
		return mutate(cmd.OutOrStdout(), uds.MethodAddSubscription, req, "subscription added")
	},
}

var subListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscriptions and the monthly total",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return list(cmd, uds.MethodListSubscriptions, func(out io.Writer, subs []core.Subscription) {
			if len(subs) == 0 {
				fmt.Fprintln(out, "no subscriptions")
				return
			}
			fmt.Fprintf(out, "%-24s %10s %-36s %s\n", "NAME", "AMOUNT", "ID", "INFO")
			for _, s := range subs {
				fmt.Fprintf(out, "%-24s %10s %-36s %s\n", s.Name, s.Amount.StringFixed(2), s.ID, s.Info)
			}
			fmt.Fprintf(out, "%-24s %10s\n", "total / month", dashboard.MonthlyTotal(subs).StringFixed(2))
		})
	},
}

func init() {
	subAddCmd.Flags().StringVar(&subInfo, "info", "", "billing note (default \""+dashboard.DefaultSubscriptionInfo+"\")")
	subCmd.AddCommand(subAddCmd, subListCmd, deleteCmd(uds.MethodDeleteSubscription, "subscription"))
}

// --- Rephrase ---

var rephraseLang string

var rephraseCmd = &cobra.Command{
	Use:   "rephrase <text...>",
	Short: "Stream rephrased variations of text from the AI upstream",
	Long:  "Languages: " + strings.Join(assist.Languages, ", ") + ". The daemon's configured language is used when --lang is empty.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialDaemon()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
		defer cancel()

		out := cmd.OutOrStdout()
		req := uds.RephraseRequest{Text: strings.Join(args, " "), Lang: rephraseLang}
		_, err = client.RequestStream(ctx, uds.MethodRephrase, req, func(m uds.Message) {
			var c uds.AssistChunk
			if m.Decode(&c) == nil {
				fmt.Fprint(out, c.Text)
			}
		})
		fmt.Fprintln(out)
		return err
	},
}

func init() {
	rephraseCmd.Flags().StringVarP(&rephraseLang, "lang", "l", "", "target language")
}

// --- Watch / generic delete ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print record and health changes as the daemon announces them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialDaemon()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		client.OnEvent(func(m uds.Message) {
			switch m.Method {
			case uds.EventRecordsChanged:
				var c events.Change
				if m.Decode(&c) == nil {
					fmt.Fprintf(out, "%s %-8s %s\n", c.At.Local().Format("15:04:05"), c.Op, c.Ref)
				}
			case uds.EventHealthChanged:
				var h uds.HealthEvent
				if m.Decode(&h) == nil {
					state := "healthy"
					if !h.OK {
						state = "unhealthy: " + h.Error
					}
					fmt.Fprintf(out, "%s store %s %s\n", h.CheckedAt.Local().Format("15:04:05"), h.Store, state)
				}
			}
		})

		select {
		case <-ctx.Done():
			return nil
		case <-client.Done():
			return fmt.Errorf("daemon closed the connection")
		}
	},
}

var deleteMethods = map[core.Kind]string{
	core.KindNote:         uds.MethodDeleteNote,
	core.KindTask:         uds.MethodDeleteTask,
	core.KindEvent:        uds.MethodDeleteEvent,
	core.KindTransaction:  uds.MethodDeleteTransaction,
	core.KindSubscription: uds.MethodDeleteSubscription,
}

var rmCmd = &cobra.Command{
	Use:   "rm <kind:store:id>",
	Short: "Delete a record by the reference watch prints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kindName, _, id, err := core.ParseRecordRef(args[0])
		if err != nil {
			return err
		}
		kind, err := core.ParseKind(string(kindName))
		if err != nil {
			return err
		}
		return mutate(cmd.OutOrStdout(), deleteMethods[kind], uds.IDRequest{ID: id}, string(kind)+" deleted")
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(rmCmd)
}
