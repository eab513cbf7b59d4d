package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"zoom-kiosk/internal/capture"
)

const sqlitePragmas = "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// SQLiteStore keeps recordings in a SQLite database. The newest recording
// is the current one; saving prunes older rows.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "recordings.db"
	}
	// Pragmas in the DSN are applied to every connection the pool opens.
	db, err := sql.Open("sqlite", dbPath+sqlitePragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMP NOT NULL,
			stopped_at TIMESTAMP NOT NULL,
			degraded INTEGER NOT NULL DEFAULT 0,
			saved_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recording_actions (
			recording_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			button TEXT NOT NULL,
			type TEXT NOT NULL,
			offset_ms INTEGER NOT NULL,
			PRIMARY KEY (recording_id, seq),
			FOREIGN KEY (recording_id) REFERENCES recordings(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recordings_saved_at ON recordings(saved_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec *Recording) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recordings`); err != nil {
		return fmt.Errorf("prune recordings: %w", err)
	}

	degraded := 0
	if rec.Degraded {
		degraded = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recordings (id, started_at, stopped_at, degraded, saved_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC(), rec.StoppedAt.UTC(), degraded, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO recording_actions (recording_id, seq, x, y, button, type, offset_ms) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare action insert: %w", err)
	}
	defer stmt.Close()

	for i, a := range rec.Actions {
		if _, err := stmt.ExecContext(ctx, rec.ID, i, a.X, a.Y, string(a.Button), a.Type, a.OffsetMs); err != nil {
			return fmt.Errorf("insert action %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context) (*Recording, error) {
	var (
		rec      Recording
		degraded int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, stopped_at, degraded FROM recordings ORDER BY saved_at DESC LIMIT 1`,
	).Scan(&rec.ID, &rec.StartedAt, &rec.StoppedAt, &degraded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecording
	}
	if err != nil {
		return nil, fmt.Errorf("query recording: %w", err)
	}
	rec.Degraded = degraded != 0

	rows, err := s.db.QueryContext(ctx,
		`SELECT x, y, button, type, offset_ms FROM recording_actions WHERE recording_id = ? ORDER BY seq`, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	rec.Actions = []Action{}
	for rows.Next() {
		var (
			a      Action
			button string
		)
		if err := rows.Scan(&a.X, &a.Y, &button, &a.Type, &a.OffsetMs); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Button = capture.Button(button)
		rec.Actions = append(rec.Actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) Exists(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recordings`).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Delete(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM recordings`)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
