package journal

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/openpixel/pixood/internal/store"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	// connectionTimeout is the timeout for verifying connectivity.
	connectionTimeout = 5 * time.Second

	// busyTimeoutMS is the SQLite lock wait; events arrive from many
	// goroutines through a single writer connection.
	busyTimeoutMS = 5000
)

// schema is the journal table. Created on open; the journal never
// migrates destructively, old rows are only removed by Prune.
const schema = `
CREATE TABLE IF NOT EXISTS events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    ts          INTEGER NOT NULL,
    type        TEXT    NOT NULL,
    device_id   TEXT    NOT NULL,
    scene       TEXT    NOT NULL DEFAULT '',
    target      TEXT    NOT NULL DEFAULT '',
    generation  INTEGER NOT NULL DEFAULT 0,
    error       TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_device_ts ON events(device_id, ts);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
`

// Journal records state transition events in SQLite so stalls,
// degradations and watchdog actions can be inspected after the fact.
//
// It attaches to the store's event spine via Listener. Recording is
// best effort: a write failure is logged and dropped, never surfaced
// to the emitting component.
type Journal struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// Entry is one recorded event row.
type Entry struct {
	ID         int64     `json:"id"`
	TS         time.Time `json:"timestamp"`
	Type       string    `json:"type"`
	DeviceID   string    `json:"deviceId"`
	Scene      string    `json:"scene,omitempty"`
	Target     string    `json:"target,omitempty"`
	Generation uint64    `json:"generationId"`
	Error      string    `json:"error,omitempty"`
}

// Open creates or opens the journal database at path.
func Open(path string, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", path, busyTimeoutMS)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	// SQLite supports one writer; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying journal connection: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}

	_ = os.Chmod(path, filePermissions)

	return &Journal{db: db, path: path, log: log}, nil
}

// Listener returns a store listener that records every event.
func (j *Journal) Listener() store.Listener {
	return func(ev store.Event) {
		if err := j.Record(ev); err != nil {
			j.log.Warn("journal write failed", "type", string(ev.Type), "error", err)
		}
	}
}

// Record inserts one event row.
func (j *Journal) Record(ev store.Event) error {
	ts := ev.TS
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := j.db.Exec(
		`INSERT INTO events (ts, type, device_id, scene, target, generation, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ts.UnixMilli(), string(ev.Type), ev.DeviceID, ev.Scene, ev.TargetScene, ev.Generation, ev.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// Recent returns the newest events, optionally filtered by device.
// Pass an empty deviceID for all devices.
func (j *Journal) Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, ts, type, device_id, scene, target, generation, error
	          FROM events`
	args := []any{}
	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Type, &e.DeviceID, &e.Scene, &e.Target, &e.Generation, &e.Error); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.TS = time.UnixMilli(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune removes events older than the retention window and returns the
// number of rows deleted.
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	res, err := j.db.ExecContext(ctx, `DELETE FROM events WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning events: %w", err)
	}
	return res.RowsAffected()
}

// HealthCheck verifies the journal connection.
func (j *Journal) HealthCheck(ctx context.Context) error {
	if err := j.db.PingContext(ctx); err != nil {
		return fmt.Errorf("journal unhealthy: %w", err)
	}
	return nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("closing journal: %w", err)
	}
	return nil
}

// Path returns the filesystem path of the journal database.
func (j *Journal) Path() string {
	return j.path
}
