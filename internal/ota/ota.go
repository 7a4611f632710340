// Package ota receives firmware update requests from the control topic.
//
// Downloading and applying firmware is outside this node's scope. The
// triggers here acknowledge requests: LogTrigger logs them and Journal also
// records them in SQLite for the update service to pick up.
package ota

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Trigger starts a firmware update.
type Trigger interface {
	// Trigger requests an update from source. An empty source means the
	// default update location.
	Trigger(ctx context.Context, source string) error
}

// Logger is the logging interface used by the triggers.
type Logger interface {
	Info(msg string, args ...any)
}

// LogTrigger logs update requests and does nothing else.
type LogTrigger struct {
	Logger Logger
}

// Trigger logs the request.
func (t LogTrigger) Trigger(_ context.Context, source string) error {
	if t.Logger != nil {
		t.Logger.Info("ota update requested", "source", sourceOrDefault(source))
	}
	return nil
}

// Journal records update requests in the ota_requests table.
type Journal struct {
	db     *sql.DB
	logger Logger
}

// NewJournal creates a journal over an open, migrated database.
// logger may be nil.
func NewJournal(db *sql.DB, logger Logger) *Journal {
	return &Journal{db: db, logger: logger}
}

// Trigger records the request.
func (j *Journal) Trigger(ctx context.Context, source string) error {
	source = sourceOrDefault(source)
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO ota_requests (source, requested_at) VALUES (?, ?)",
		source,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording ota request: %w", err)
	}
	if j.logger != nil {
		j.logger.Info("ota update requested", "source", source)
	}
	return nil
}

// Pending returns the number of recorded requests.
func (j *Journal) Pending(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ota_requests").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting ota requests: %w", err)
	}
	return n, nil
}

func sourceOrDefault(source string) string {
	if source == "" {
		return "default"
	}
	return source
}
