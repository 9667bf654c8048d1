package model

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/modoterra/lifedash/pkg/assist"
	"github.com/modoterra/lifedash/pkg/core"
	"github.com/modoterra/lifedash/pkg/dashboard"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	activeTabStyle = tabStyle.Bold(true).Foreground(lipgloss.Color("205")).Underline(true)

	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	incomeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	expenseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	entryStyle    = paneStyle.BorderForeground(lipgloss.Color("205"))
	entryErrStyle = paneStyle.BorderForeground(lipgloss.Color("196"))

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the TUI.
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "loading..."
	}

	// Editor overlay
	if a.mode == ModeEditor && a.editor != nil {
		editorView := a.editor.View(a.width - 4)
		return paneStyle.Width(a.width - 4).Height(a.height - 2).Render(editorView)
	}

	header := a.renderHeader()
	tabs := a.renderTabs()
	statusBar := a.renderStatusBar()

	var entry string
	if a.mode == ModeEntry {
		entry = a.renderEntry()
	}

	used := lipgloss.Height(header) + lipgloss.Height(tabs) + lipgloss.Height(statusBar) + lipgloss.Height(entry) + 2
	bodyH := max(a.height-used, 3)
	body := paneStyle.Width(a.width - 4).Height(bodyH).Render(a.renderPane(a.width-6, bodyH))

	parts := []string{header, tabs, body}
	if entry != "" {
		parts = append(parts, entry)
	}
	parts = append(parts, statusBar)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (a App) renderHeader() string {
	conn := offlineStyle.Render("○ disconnected")
	if a.connected {
		conn = onlineStyle.Render("● connected")
	}

	p := dashboard.ProgressAt(a.now)
	var day string
	if greeting := p.Greeting(); greeting != "" {
		day = titleStyle.Render(greeting)
	} else {
		day = a.dayBar.ViewAs(p.Fraction) + " " + dimStyle.Render(p.FormatLeft()+" left")
	}

	left := titleStyle.Render("lifedash") + "  " + dimStyle.Render(a.now.Format("Mon Jan 2 15:04:05"))
	right := day + "  " + conn
	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

func (a App) renderTabs() string {
	tabs := make([]string, 0, paneCount)
	for p := Pane(0); p < paneCount; p++ {
		style := tabStyle
		if p == a.activePane {
			style = activeTabStyle
		}
		tabs = append(tabs, style.Render(p.Title()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (a App) renderEntry() string {
	style := entryStyle
	view := a.entry.View()
	if a.entryErr != "" {
		style = entryErrStyle
		view += "\n" + errorStyle.Render(a.entryErr)
	}
	return style.Width(a.width - 4).Render(view)
}

func (a App) renderPane(w, h int) string {
	switch a.activePane {
	case PaneNotes:
		return a.renderNotes(w, h)
	case PaneTasks:
		return a.renderTasks(w, h)
	case PaneCalendar:
		return a.renderCalendar(w, h)
	case PaneCashFlow:
		return a.renderCashFlow(w, h)
	case PaneSubscriptions:
		return a.renderSubscriptions(w, h)
	case PaneRephrase:
		return a.renderRephrase(w)
	}
	return ""
}

// window returns the slice bounds that keep the selection visible.
func window(selected, n, visible int) (int, int) {
	if visible < 1 {
		visible = 1
	}
	start := 0
	if selected >= visible {
		start = selected - visible + 1
	}
	return start, min(n, start+visible)
}

func (a App) line(pane Pane, i, w int, s string) string {
	if i == a.selected[pane] && a.activePane == pane {
		return selectedStyle.Width(w).Render(s)
	}
	return s
}

func (a App) renderNotes(w, h int) string {
	st := a.data.noteStats
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %d total · %d unread · %s\n\n",
		titleStyle.Render("Notes"), st.Total, st.Unread,
		warnStyle.Render(fmt.Sprintf("%d high priority", st.HighPriority)))

	if len(a.data.notes) == 0 {
		b.WriteString(dimStyle.Render("no notes, press a to add one"))
		return b.String()
	}
	start, end := window(a.selected[PaneNotes], len(a.data.notes), h-3)
	for i := start; i < end; i++ {
		n := a.data.notes[i]
		mark := "●"
		if n.Read {
			mark = dimStyle.Render("○")
		}
		stars := strings.Repeat("★", n.Priority) + strings.Repeat("☆", dashboard.MaxPriority-n.Priority)
		if n.Priority >= dashboard.HighPriority && !n.Read {
			stars = warnStyle.Render(stars)
		}
		text := truncate(n.Content, max(w-20, 10))
		b.WriteString(a.line(PaneNotes, i, w, fmt.Sprintf(" %s %s %s", mark, stars, text)) + "\n")
	}
	return b.String()
}

func (a App) renderTasks(w, h int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Tasks") + "\n\n")
	if len(a.data.tasks) == 0 {
		b.WriteString(dimStyle.Render("no tasks, press a to add one"))
		return b.String()
	}
	start, end := window(a.selected[PaneTasks], len(a.data.tasks), h-3)
	for i := start; i < end; i++ {
		t := a.data.tasks[i]
		bar := bandStyle(dashboard.ProgressBand(t.Progress)).Render(a.taskBar.ViewAs(float64(t.Progress) / 100))
		age := dimStyle.Render(dashboard.TaskAge(t.StartDate, a.now))
		title := truncate(t.Title, max(w-40, 10))
		b.WriteString(a.line(PaneTasks, i, w, fmt.Sprintf(" %-*s %s %3d%%  %s", max(w-40, 10), title, bar, t.Progress, age)) + "\n")
	}
	return b.String()
}

func bandStyle(band dashboard.Band) lipgloss.Style {
	switch band {
	case dashboard.BandLow:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	case dashboard.BandFair:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	case dashboard.BandGood:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
}

func (a App) renderCalendar(w, h int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Upcoming") + "\n")
	if len(a.data.upcoming) == 0 {
		b.WriteString("\n" + dimStyle.Render("nothing coming up, press a to add an event"))
		return b.String()
	}
	i, lines := 0, 1
	for _, g := range a.data.upcoming {
		if lines >= h-1 {
			break
		}
		b.WriteString("\n" + warnStyle.Render(g.Label) + dimStyle.Render(" "+g.Day.Format("Mon Jan 2")) + "\n")
		lines += 2
		for _, ev := range g.Events {
			text := ev.Date.Format("15:04") + "  " + ev.Title
			if ev.Description != "" {
				text += dimStyle.Render(" · " + ev.Description)
			}
			b.WriteString(a.line(PaneCalendar, i, w, " "+truncate(text, w-1)) + "\n")
			i++
			lines++
		}
	}
	return b.String()
}

func (a App) renderCashFlow(w, h int) string {
	cf := a.data.cashFlow
	var b strings.Builder
	fmt.Fprintf(&b, "%s  balance %s  today %s %s\n\n",
		titleStyle.Render("Cash Flow"),
		cf.Balance.StringFixed(2),
		incomeStyle.Render("+"+cf.TodayIncome.StringFixed(2)),
		expenseStyle.Render("-"+cf.TodayExpense.StringFixed(2)))

	if len(a.data.txs) == 0 {
		b.WriteString(dimStyle.Render("no transactions, press a and type +amount or -amount"))
		return b.String()
	}
	start, end := window(a.selected[PaneCashFlow], len(a.data.txs), h-3)
	for i := start; i < end; i++ {
		tx := a.data.txs[i]
		amount := incomeStyle.Render(fmt.Sprintf("%12s", "+"+tx.Amount.StringFixed(2)))
		if tx.Type == core.TxExpense {
			amount = expenseStyle.Render(fmt.Sprintf("%12s", "-"+tx.Amount.StringFixed(2)))
		}
		date := dimStyle.Render(tx.Date.Local().Format("Jan 2 15:04"))
		desc := truncate(tx.Description, max(w-32, 10))
		b.WriteString(a.line(PaneCashFlow, i, w, fmt.Sprintf("%s  %-*s %s", amount, max(w-32, 10), desc, date)) + "\n")
	}
	return b.String()
}

func (a App) renderSubscriptions(w, h int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s / month\n\n", titleStyle.Render("Subscriptions"),
		dashboard.MonthlyTotal(a.data.subs).StringFixed(2))

	if len(a.data.subs) == 0 {
		b.WriteString(dimStyle.Render("no subscriptions, press a and type an amount"))
		return b.String()
	}
	start, end := window(a.selected[PaneSubscriptions], len(a.data.subs), h-3)
	for i := start; i < end; i++ {
		s := a.data.subs[i]
		name := truncate(s.Name, max(w/3, 10))
		b.WriteString(a.line(PaneSubscriptions, i, w, fmt.Sprintf(" %-*s %10s  %s",
			max(w/3, 10), name, s.Amount.StringFixed(2), dimStyle.Render(s.Info))) + "\n")
	}
	return b.String()
}

func (a App) renderRephrase(w int) string {
	var b strings.Builder
	lang := assist.Languages[a.langIdx]
	b.WriteString(titleStyle.Render("Rephrase") + "  " + dimStyle.Render("into "+lang))
	if a.rephrasing {
		b.WriteString("  " + a.spinner.View())
	}
	b.WriteString("\n\n")
	if a.rephrased == "" && !a.rephrasing {
		b.WriteString(dimStyle.Render(truncate("press a to enter text, L to change language", w)))
		return b.String()
	}
	b.WriteString(a.output.View())
	return b.String()
}

func (a App) renderStatusBar() string {
	left := a.statusMsg
	right := "tab:widget j/k:nav a:add e:edit d:delete r:refresh q:quit"
	switch {
	case a.mode == ModeEntry:
		right = "enter:save esc:cancel"
	case a.mode == ModeConfirmDelete:
		right = "y:delete n:keep"
	case a.activePane == PaneNotes:
		right = "space:read +/-:priority " + right
	case a.activePane == PaneTasks:
		right = "+/-:progress J/K:move " + right
	case a.activePane == PaneRephrase:
		right = "a:text L:language c:clear esc:stop q:quit"
	}

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return helpStyle.Render(left + strings.Repeat(" ", gap) + right)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:max(maxLen, 0)])
	}
	return string(r[:maxLen-3]) + "..."
}
