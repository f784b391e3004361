package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/auto-dns/docker-metrics-stream/internal/domain"
	"github.com/rs/zerolog"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name        string
	driver      string
	idColumn    string
	timeType    string
	insertEvent string
	insertSnap  string
	bindvar     func(n int) string
}

var sqliteDialect = dialect{
	name:        "sqlite",
	driver:      "sqlite",
	idColumn:    "INTEGER PRIMARY KEY AUTOINCREMENT",
	timeType:    "DATETIME",
	insertEvent: `INSERT INTO lifecycle_events (occurred_at, status, image) VALUES (?, ?, ?)`,
	insertSnap:  `INSERT INTO workload_snapshots (captured_at, workload_id, app_name, public_port, metrics) VALUES (?, ?, ?, ?, ?)`,
	bindvar:     func(int) string { return "?" },
}

var postgresDialect = dialect{
	name:        "postgres",
	driver:      "pgx",
	idColumn:    "BIGSERIAL PRIMARY KEY",
	timeType:    "TIMESTAMPTZ",
	insertEvent: `INSERT INTO lifecycle_events (occurred_at, status, image) VALUES ($1, $2, $3)`,
	insertSnap:  `INSERT INTO workload_snapshots (captured_at, workload_id, app_name, public_port, metrics) VALUES ($1, $2, $3, $4, $5)`,
	bindvar:     func(n int) string { return fmt.Sprintf("$%d", n) },
}

// selectEvents builds the history query, newest first, with its arguments.
func (d dialect) selectEvents(q EventQuery) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT occurred_at, status, image FROM lifecycle_events`)
	if q.Image != "" {
		args = append(args, q.Image)
		b.WriteString(" WHERE image = " + d.bindvar(len(args)))
	}
	b.WriteString(" ORDER BY occurred_at DESC, id DESC")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		b.WriteString(" LIMIT " + d.bindvar(len(args)))
	}
	return b.String(), args
}

func (d dialect) migrations() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS lifecycle_events (
    id          %s,
    occurred_at %s NOT NULL,
    status      TEXT NOT NULL,
    image       TEXT NOT NULL
)`, d.idColumn, d.timeType),
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_image ON lifecycle_events(image, occurred_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS workload_snapshots (
    id          %s,
    captured_at %s NOT NULL,
    workload_id TEXT NOT NULL,
    app_name    TEXT NOT NULL,
    public_port INTEGER NOT NULL,
    metrics     TEXT NOT NULL
)`, d.idColumn, d.timeType),
		`CREATE INDEX IF NOT EXISTS idx_workload_snapshots_app ON workload_snapshots(app_name, captured_at)`,
	}
}

// SQLStore persists events and snapshots in a relational database (SQLite or PostgreSQL).
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  zerolog.Logger
}

// NewSQLite opens (or creates) the SQLite database at dsn and applies the schema.
func NewSQLite(ctx context.Context, dsn string, logger zerolog.Logger) (*SQLStore, error) {
	db, err := sql.Open(sqliteDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, sqliteDialect, logger)
}

// NewPostgres connects to PostgreSQL through the pgx stdlib driver and applies the schema.
func NewPostgres(ctx context.Context, dsn string, logger zerolog.Logger) (*SQLStore, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	return newSQLStore(ctx, db, postgresDialect, logger)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, logger zerolog.Logger) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", d.name, err)
	}

	s := &SQLStore{db: db, dialect: d, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.migrations() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	s.logger.Info().Str("dialect", s.dialect.name).Msg("SQL schema applied")
	return nil
}

func (s *SQLStore) SaveEvent(ctx context.Context, ev domain.LifecycleEvent) error {
	_, err := s.db.ExecContext(ctx, s.dialect.insertEvent, ev.OccurredAt.UTC(), ev.Status, ev.Image)
	if err != nil {
		return fmt.Errorf("insert lifecycle event: %w", err)
	}
	return nil
}

func (s *SQLStore) Events(ctx context.Context, q EventQuery) ([]domain.LifecycleEvent, error) {
	query, args := s.dialect.selectEvents(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lifecycle events: %w", err)
	}
	defer rows.Close()

	events := []domain.LifecycleEvent{}
	for rows.Next() {
		var ev domain.LifecycleEvent
		if err := rows.Scan(&ev.OccurredAt, &ev.Status, &ev.Image); err != nil {
			return nil, fmt.Errorf("scan lifecycle event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read lifecycle events: %w", err)
	}
	slices.Reverse(events)
	return events, nil
}

// SaveSnapshots stores all snapshots in a single transaction.
func (s *SQLStore) SaveSnapshots(ctx context.Context, snaps []domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, s.dialect.insertSnap)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, snap := range snaps {
		payload, err := json.Marshal(snap.Metrics)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode metrics for %s: %w", snap.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, snap.CapturedAt.UTC(), snap.ID, snap.Name, snap.PublicPort, string(payload)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec insert for %s: %w", snap.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug().Int("snapshots", len(snaps)).Msg("Snapshots persisted")
	return nil
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
