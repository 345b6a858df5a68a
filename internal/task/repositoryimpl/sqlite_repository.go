package repositoryimpl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/taskpulse/taskpulse/internal/task"
	"github.com/taskpulse/taskpulse/pkg/cerr"
)

// Fixed width so that created_at sorts correctly as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const taskColumns = `id, owner, title, description, status, priority, due_date, created_at, updated_at`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("repositoryimpl: nil db")
	}
	return &SQLiteRepository{db: db}, nil
}

// OpenSQLite opens the database at path and applies pending migrations.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Create(ctx context.Context, t *task.Task) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, t.ID).Scan(&exists)
	switch {
	case err == nil:
		return cerr.NewError(cerr.AlreadyExists, "task already exists", nil)
	case !errors.Is(err, sql.ErrNoRows):
		return dbError("create task", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Owner, t.Title, t.Description, string(t.Status), string(t.Priority),
		nullTime(t.DueDate), mustTime(t.CreatedAt), mustTime(t.UpdatedAt),
	)
	if err != nil {
		return dbError("create task", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, owner, id string) (*task.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.NotFoundError(id)
		}
		return nil, dbError("get task", err)
	}
	if t.Owner != owner {
		return nil, task.ForbiddenError(id)
	}
	return t, nil
}

func (r *SQLiteRepository) List(ctx context.Context, owner string) ([]*task.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE owner = ?
		ORDER BY created_at DESC, id DESC`, owner)
	if err != nil {
		return nil, dbError("list tasks", err)
	}
	defer rows.Close()

	out := make([]*task.Task, 0)
	for rows.Next() {
		t, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, dbError("list tasks", scanErr)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list tasks", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, t *task.Task) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, status = ?, priority = ?, due_date = ?, updated_at = ?
		WHERE id = ? AND owner = ?`,
		t.Title, t.Description, string(t.Status), string(t.Priority),
		nullTime(t.DueDate), mustTime(t.UpdatedAt), t.ID, t.Owner,
	)
	if err != nil {
		return dbError("update task", err)
	}
	return r.checkRowsAffected(ctx, res, t.Owner, t.ID)
}

func (r *SQLiteRepository) Delete(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return dbError("delete task", err)
	}
	return r.checkRowsAffected(ctx, res, owner, id)
}

// checkRowsAffected turns a zero-row write into NotFound or PermissionDenied
// depending on whether the id exists for somebody else.
func (r *SQLiteRepository) checkRowsAffected(ctx context.Context, res sql.Result, owner, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return dbError("rows affected", err)
	}
	if affected > 0 {
		return nil
	}
	_, err = r.Get(ctx, owner, id)
	if err != nil {
		return err
	}
	return task.NotFoundError(id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*task.Task, error) {
	var (
		out      task.Task
		status   string
		priority string
		due      sql.NullString
		created  string
		updated  string
	)
	if err := s.Scan(&out.ID, &out.Owner, &out.Title, &out.Description, &status, &priority, &due, &created, &updated); err != nil {
		return nil, err
	}
	out.Status = task.Status(status)
	out.Priority = task.Priority(priority)

	var err error
	if out.DueDate, err = parseNullableTime(due); err != nil {
		return nil, err
	}
	if out.CreatedAt, err = time.Parse(sqliteTimeLayout, created); err != nil {
		return nil, err
	}
	if out.UpdatedAt, err = time.Parse(sqliteTimeLayout, updated); err != nil {
		return nil, err
	}
	return &out, nil
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(sqliteTimeLayout)
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	tm, err := time.Parse(sqliteTimeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func dbError(op string, err error) error {
	return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("%s: %w", op, err))
}
