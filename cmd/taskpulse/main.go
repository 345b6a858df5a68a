package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/taskpulse/taskpulse/internal/analytics"
	"github.com/taskpulse/taskpulse/internal/auth"
	"github.com/taskpulse/taskpulse/internal/board"
	"github.com/taskpulse/taskpulse/internal/client"
	"github.com/taskpulse/taskpulse/internal/config"
	"github.com/taskpulse/taskpulse/internal/dashboard"
	"github.com/taskpulse/taskpulse/internal/eventbus"
	"github.com/taskpulse/taskpulse/internal/filter"
	"github.com/taskpulse/taskpulse/internal/store"
	"github.com/taskpulse/taskpulse/internal/task"
	"github.com/taskpulse/taskpulse/pkg/clog"
)

var (
	app     = kingpin.New("taskpulse", "Personal task tracker")
	verbose = app.Flag("verbose", "Log debug output to stderr").Short('v').Bool()

	listCmd      = app.Command("list", "List tasks").Default()
	listSearch   = listCmd.Flag("search", "Match title, description, status or priority").Short('s').String()
	listStatus   = listCmd.Flag("status", "Only this status").String()
	listPriority = listCmd.Flag("priority", "Only this priority").String()
	listDone     = listCmd.Flag("completed", "Show completed tasks instead of active ones").Short('c').Bool()

	boardCmd    = app.Command("board", "Show tasks as a board")
	boardSearch = boardCmd.Flag("search", "Match title, description, status or priority").Short('s').String()
	boardDone   = boardCmd.Flag("completed", "Show the completed column").Short('c').Bool()

	moveCmd = app.Command("move", "Move a task to another board column")
	moveID  = moveCmd.Arg("id", "Task ID").Required().String()
	moveTo  = moveCmd.Arg("status", "Target column: pending, in-progress or completed").Required().String()

	addCmd         = app.Command("add", "Create a task")
	addTitle       = addCmd.Arg("title", "Task title").Required().String()
	addDescription = addCmd.Arg("description", "Task description").Required().String()
	addStatus      = addCmd.Flag("status", "Initial status").Default("pending").String()
	addPriority    = addCmd.Flag("priority", "Priority: low, medium or high").Default("medium").String()
	addDue         = addCmd.Flag("due", "Due date (YYYY-MM-DD)").String()

	updateCmd         = app.Command("update", "Change fields of a task")
	updateID          = updateCmd.Arg("id", "Task ID").Required().String()
	updateTitle       = updateCmd.Flag("title", "New title").String()
	updateDescription = updateCmd.Flag("description", "New description").String()
	updateStatus      = updateCmd.Flag("status", "New status").String()
	updatePriority    = updateCmd.Flag("priority", "New priority").String()
	updateDue         = updateCmd.Flag("due", "New due date (YYYY-MM-DD)").String()
	updateClearDue    = updateCmd.Flag("clear-due", "Remove the due date").Bool()

	removeCmd = app.Command("rm", "Delete a task")
	removeID  = removeCmd.Arg("id", "Task ID").Required().String()

	statsCmd  = app.Command("stats", "Show completion statistics")
	rollupCmd = app.Command("rollup", "Show completions per day for the last week")

	tokenCmd   = app.Command("token", "Issue a development token (needs TASKPULSE_JWT_SECRET)")
	tokenOwner = tokenCmd.Arg("user", "User ID to issue the token for").Required().String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(clog.NewTextHandler(os.Stderr, clog.WithLevel(level), clog.WithColumns(clog.StoreColumns...)))))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, command); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string) error {
	if command == tokenCmd.FullCommand() {
		return issueToken(*tokenOwner)
	}

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	switch command {
	case listCmd.FullCommand():
		view := s.view(filter.Criteria{
			SearchTerm:     *listSearch,
			StatusFilter:   normalizeStatus(*listStatus),
			PriorityFilter: *listPriority,
			Mode:           modeFor(*listDone),
		})
		printList(view)
	case boardCmd.FullCommand():
		printBoard(s.view(filter.Criteria{SearchTerm: *boardSearch, Mode: modeFor(*boardDone)}))
	case moveCmd.FullCommand():
		current, ok := s.store.Snapshot().Find(*moveID)
		if !ok {
			return task.NotFoundError(*moveID)
		}
		moved, err := board.NewMover(s.store).Transition(ctx, *moveID, string(current.Status), normalizeStatus(*moveTo))
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", moved.ID, statusLabel(moved.Status))
	case addCmd.FullCommand():
		draft, err := s.draft()
		if err != nil {
			return err
		}
		created, err := s.store.Add(ctx, draft)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s\n", created.ID)
	case updateCmd.FullCommand():
		patch, err := s.patch()
		if err != nil {
			return err
		}
		updated, err := s.store.Update(ctx, *updateID, patch)
		if err != nil {
			return err
		}
		printTask(updated)
	case removeCmd.FullCommand():
		if err := s.store.Remove(ctx, *removeID); err != nil {
			return err
		}
		fmt.Println("Task deleted successfully")
	case statsCmd.FullCommand():
		printStats(s.view(filter.Criteria{}).Stats)
	case rollupCmd.FullCommand():
		printRollup(s.view(filter.Criteria{}).Rollup)
	}
	return nil
}

type session struct {
	store *store.Store
	clock analytics.Clock
	close func()
}

func newSession(ctx context.Context) (*session, error) {
	env, err := config.LoadClientEnv()
	if err != nil {
		return nil, err
	}
	if env.Token == "" {
		return nil, fmt.Errorf("TASKPULSE_TOKEN is not set; create one with 'taskpulse token <user>'")
	}
	loc, err := env.Location()
	if err != nil {
		return nil, err
	}
	c := client.NewTaskClient(env.ServerURL, env.Token, client.WithTimeout(env.RequestTimeout))

	s := &session{clock: analytics.SystemClock(loc), close: func() {}}
	opts := []store.Option{store.WithLogger(slog.Default())}
	if *verbose {
		bus := eventbus.New()
		s.close = eventbus.LogEvents(ctx, bus, slog.Default())
		opts = append(opts, store.WithEventBus(bus))
	}
	s.store = store.New(c, opts...)
	return s, nil
}

func (s *session) view(c filter.Criteria) dashboard.State {
	v := dashboard.New(s.store, s.clock)
	defer v.Close()
	return v.SetCriteria(c)
}

func (s *session) draft() (task.Draft, error) {
	status, err := task.ParseStatus(*addStatus)
	if err != nil {
		return task.Draft{}, err
	}
	priority, err := task.ParsePriority(*addPriority)
	if err != nil {
		return task.Draft{}, err
	}
	due, err := parseDue(*addDue, s.clock.Location())
	if err != nil {
		return task.Draft{}, err
	}
	return task.Draft{
		Title:       *addTitle,
		Description: *addDescription,
		Status:      status,
		Priority:    priority,
		DueDate:     due,
	}, nil
}

func (s *session) patch() (task.Patch, error) {
	var p task.Patch
	if *updateTitle != "" {
		p.Title = updateTitle
	}
	if *updateDescription != "" {
		p.Description = updateDescription
	}
	if *updateStatus != "" {
		st, err := task.ParseStatus(*updateStatus)
		if err != nil {
			return p, err
		}
		p.Status = &st
	}
	if *updatePriority != "" {
		pr, err := task.ParsePriority(*updatePriority)
		if err != nil {
			return p, err
		}
		p.Priority = &pr
	}
	due, err := parseDue(*updateDue, s.clock.Location())
	if err != nil {
		return p, err
	}
	p.DueDate = due
	p.ClearDueDate = *updateClearDue
	return p, nil
}

func issueToken(owner string) error {
	env, err := config.LoadAuthEnv()
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(env.JWTSecret, auth.WithTTL(env.TokenTTL))
	if err != nil {
		return err
	}
	token, err := issuer.Issue(owner)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func modeFor(completed bool) filter.Mode {
	if completed {
		return filter.ModeCompletedOnly
	}
	return filter.ModeActive
}

// normalizeStatus accepts "in_progress" and any casing, leaving unknown
// values for the caller to reject.
func normalizeStatus(raw string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-")
}

func parseDue(raw string, loc *time.Location) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	due, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q: want YYYY-MM-DD", raw)
	}
	return &due, nil
}

func printError(err error) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprint(os.Stderr, "error: ")
	fmt.Fprintln(os.Stderr, err)
}
