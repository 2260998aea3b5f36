package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Pagination limits for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// timeFormat is fixed width so created_at sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// Entry is one recorded lifecycle event.
type Entry struct {
	ID         string         `json:"id"`
	Event      string         `json:"event"`
	DeviceType string         `json:"device_type,omitempty"`
	DeviceID   string         `json:"device_id,omitempty"`
	Host       string         `json:"host,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Event      string // optional: discover, add, remove, stale, unknownDevice, start, stop
	DeviceType string // optional: model tag
	DeviceID   string // optional: device id
	Limit      int    // default 50, max 200
	Offset     int    // pagination offset
}

// ListResult contains one page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Journal reads and writes the device_events table.
//
// Thread Safety: safe for concurrent use; serialisation is left to SQLite.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a journal over an open database with migrations applied.
func New(db *sql.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Record inserts an entry. ID and CreatedAt are generated when empty.
func (j *Journal) Record(ctx context.Context, e *Entry) error {
	if e.Event == "" {
		return ErrNoEvent
	}
	if e.ID == "" {
		e.ID = "evt-" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	details := "{}"
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling event details: %w", err)
		}
		details = string(b)
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO device_events (id, event, device_type, device_id, host, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Event, e.DeviceType, e.DeviceID, e.Host, details,
		e.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting device event: %w", err)
	}
	return nil
}

// List returns entries matching the filter, most recent first.
func (j *Journal) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter = clampFilter(filter)
	where, args := whereClause(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM device_events " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := j.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting device events: %w", err)
	}

	query := "SELECT id, event, device_type, device_id, host, details, created_at FROM device_events " + //nolint:gosec // WHERE built from parameterised conditions
		where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying device events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device events: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// Prune deletes entries older than olderThan and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}
	cutoff := j.now().UTC().Add(-olderThan).Format(timeFormat)

	res, err := j.db.ExecContext(ctx, "DELETE FROM device_events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning device events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned events: %w", err)
	}
	return n, nil
}

func clampFilter(f Filter) Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func whereClause(f Filter) (string, []any) {
	var conditions []string
	var args []any

	if f.Event != "" {
		conditions = append(conditions, "event = ?")
		args = append(args, f.Event)
	}
	if f.DeviceType != "" {
		conditions = append(conditions, "device_type = ?")
		args = append(args, f.DeviceType)
	}
	if f.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, f.DeviceID)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var details, createdAt string

	if err := rows.Scan(&e.ID, &e.Event, &e.DeviceType, &e.DeviceID, &e.Host, &details, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scanning device event: %w", err)
	}

	if details != "" && details != "{}" {
		var m map[string]any
		if json.Unmarshal([]byte(details), &m) == nil {
			e.Details = m
		}
	}

	t, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing device event timestamp %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}
