package monitor

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/muurk/opcua-console/internal/relay"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// History stores connection samples in SQLite.
type History struct {
	db *sql.DB
}

// OpenHistory opens (creating if needed) the history database at path and
// runs pending migrations.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &History{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Record appends a sample.
func (h *History) Record(ctx context.Context, s Sample) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO status_samples (broker_id, endpoint, status, message, latency_ms, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.BrokerID, s.Endpoint, string(s.Status), s.Message, s.Latency.Milliseconds(), s.CheckedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record sample: %w", err)
	}
	return nil
}

// Recent returns up to limit samples for a broker, newest first.
func (h *History) Recent(ctx context.Context, brokerID string, limit int) ([]Sample, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT broker_id, endpoint, status, message, latency_ms, checked_at
		 FROM status_samples
		 WHERE broker_id = ?
		 ORDER BY checked_at DESC, id DESC
		 LIMIT ?`, brokerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var samples []Sample
	for rows.Next() {
		var (
			s         Sample
			status    string
			latencyMS int64
			checkedMS int64
		)
		if err := rows.Scan(&s.BrokerID, &s.Endpoint, &status, &s.Message, &latencyMS, &checkedMS); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		s.Status = relay.Status(status)
		s.Latency = time.Duration(latencyMS) * time.Millisecond
		s.CheckedAt = time.UnixMilli(checkedMS)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// UpSince returns the time of the first connected sample after the latest
// non-connected one. ok is false when the broker is not currently up.
func (h *History) UpSince(ctx context.Context, brokerID string) (since time.Time, ok bool, err error) {
	var ms sql.NullInt64
	err = h.db.QueryRowContext(ctx,
		`SELECT MIN(checked_at) FROM status_samples
		 WHERE broker_id = ? AND status = ?
		   AND checked_at > COALESCE(
		       (SELECT MAX(checked_at) FROM status_samples WHERE broker_id = ? AND status != ?), -1)`,
		brokerID, string(relay.StatusConnected), brokerID, string(relay.StatusConnected)).Scan(&ms)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query uptime: %w", err)
	}
	if !ms.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms.Int64), true, nil
}

// Prune deletes samples older than before and returns how many were removed.
func (h *History) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM status_samples WHERE checked_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune samples: %w", err)
	}
	return res.RowsAffected()
}
