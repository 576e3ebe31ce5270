// Package audit provides access to the command_log table: the write-mostly
// history of every host command and its outcome.
//
// The trail is never read back into accessory state.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CommandLog represents a single audit trail entry.
type CommandLog struct {
	ID        string        `json:"id"`
	Accessory string        `json:"accessory"`
	CommandID string        `json:"command_id"`
	Command   string        `json:"command"`
	Value     string        `json:"value,omitempty"` // raw JSON value as sent
	Source    string        `json:"source,omitempty"`
	Status    string        `json:"status"` // completed or failed
	ErrorCode string        `json:"error_code,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Filter controls which entries to return.
type Filter struct {
	Accessory string // optional
	Command   string // optional
	Status    string // optional: completed or failed
	Limit     int    // default 50, max 200
	Offset    int    // pagination offset
}

// ListResult contains the paginated results.
type ListResult struct {
	Logs   []CommandLog `json:"logs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// Repository defines the interface for audit trail operations.
type Repository interface {
	Create(ctx context.Context, entry *CommandLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timestampFormat is fixed-width so created_at sorts lexically.
const timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository stores the audit trail in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new audit repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *CommandLog) error {
	if entry.ID == "" {
		entry.ID = "cmd-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (id, accessory, command_id, command, value, source, status, error_code, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Accessory, entry.CommandID, entry.Command,
		nullableString(entry.Value), nullableString(entry.Source),
		entry.Status,
		nullableString(entry.ErrorCode), nullableString(entry.Error),
		entry.Duration.Milliseconds(),
		entry.CreatedAt.UTC().Format(timestampFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting command log: %w", err)
	}
	return nil
}

// Prune deletes entries created before cutoff and returns how many went.
func (r *SQLiteRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM command_log WHERE created_at < ?`,
		cutoff.UTC().Format(timestampFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning command log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning command log: %w", err)
	}
	return n, nil
}

// nullableString returns nil for empty strings.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Accessory != "" {
		conditions = append(conditions, "accessory = ?")
		args = append(args, filter.Accessory)
	}
	if filter.Command != "" {
		conditions = append(conditions, "command = ?")
		args = append(args, filter.Command)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM command_log %s", where) //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command log: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, accessory, command_id, command, value, source, status, error_code, error, duration_ms, created_at
		 FROM command_log %s ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	logs := []CommandLog{}
	for rows.Next() {
		var entry CommandLog
		var value, source, errorCode, errMsg sql.NullString
		var durationMS int64
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.Accessory, &entry.CommandID, &entry.Command,
			&value, &source, &entry.Status, &errorCode, &errMsg, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command log: %w", err)
		}

		entry.Value = value.String
		entry.Source = source.String
		entry.ErrorCode = errorCode.String
		entry.Error = errMsg.String
		entry.Duration = time.Duration(durationMS) * time.Millisecond

		t, err := time.Parse(timestampFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command log timestamp %q: %w", createdAt, err)
		}
		entry.CreatedAt = t

		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
