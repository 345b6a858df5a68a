package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/taskpulse/taskpulse/internal/analytics"
	"github.com/taskpulse/taskpulse/internal/dashboard"
	"github.com/taskpulse/taskpulse/internal/task"
)

var (
	dim    = color.New(color.Faint)
	bold   = color.New(color.Bold)
	header = color.New(color.FgCyan, color.Bold)
)

func statusLabel(s task.Status) string {
	switch s {
	case task.StatusPending:
		return color.YellowString(string(s))
	case task.StatusInProgress:
		return color.BlueString(string(s))
	case task.StatusCompleted:
		return color.GreenString(string(s))
	default:
		return string(s)
	}
}

func priorityLabel(p task.Priority) string {
	switch p {
	case task.PriorityHigh:
		return color.RedString(string(p))
	case task.PriorityLow:
		return dim.Sprint(string(p))
	default:
		return string(p)
	}
}

func dueLabel(t task.Task) string {
	if t.DueDate == nil {
		return ""
	}
	return dim.Sprintf(" due %s", t.DueDate.Format("2006-01-02"))
}

func printTask(t task.Task) {
	fmt.Printf("%s  %-22s %-17s %s%s\n", dim.Sprint(t.ID), statusLabel(t.Status), priorityLabel(t.Priority), bold.Sprint(t.Title), dueLabel(t))
}

func printList(st dashboard.State) {
	if st.EmptyState != dashboard.EmptyNone {
		fmt.Println(st.EmptyState.Message())
		return
	}
	for _, t := range st.List {
		printTask(t)
	}
}

func printBoard(st dashboard.State) {
	for i, col := range st.Board.Columns {
		if i > 0 {
			fmt.Println()
		}
		header.Printf("%s (%d)\n", col.Title, len(col.Tasks))
		if len(col.Tasks) == 0 {
			dim.Println("  -")
			continue
		}
		for _, t := range col.Tasks {
			fmt.Printf("  %s %s [%s]%s\n", dim.Sprint(t.ID), t.Title, priorityLabel(t.Priority), dueLabel(t))
		}
	}
}

func printStats(s analytics.Stats) {
	fmt.Printf("Total:      %d\n", s.Total)
	fmt.Printf("Completed:  %s (%d%%)\n", color.GreenString("%d", s.Completed), analytics.CompletionRate(s))
	fmt.Printf("Pending:    %s\n", color.YellowString("%d", s.Pending))
	fmt.Printf("Streak:     %d day(s)\n", s.Streak)
}

func printRollup(days []analytics.DayCount) {
	for _, d := range days {
		bar := strings.Repeat("#", d.CompletedCount)
		fmt.Printf("%s %s %s %d\n", d.DayLabel, dim.Sprint(d.Date.String()), color.GreenString(bar), d.CompletedCount)
	}
}
