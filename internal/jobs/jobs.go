// Package jobs keeps a ledger of video requests in SQLite.
package jobs

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("job not found")

type Job struct {
	ID            string
	Character     string
	Input         string
	Output        string
	Status        Status
	Error         string
	AudioDuration float64
	VideoDuration float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Ledger records the lifecycle of a request.
type Ledger interface {
	Start(ctx context.Context, job *Job) error
	Finish(ctx context.Context, id, output string, audioDuration, videoDuration float64) error
	Fail(ctx context.Context, id string, cause error) error
}

type Store struct {
	conn   *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// Open creates or upgrades the database at path. Jobs left running by a
// previous process are marked failed.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	s := &Store{conn: conn, logger: logger, now: time.Now}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if n, err := s.markInterrupted(); err != nil {
		logger.Warn().Err(err).Msg("failed to mark interrupted jobs")
	} else if n > 0 {
		logger.Warn().Int64("jobs", n).Msg("marked interrupted jobs as failed")
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range migrations {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if s.isMigrationApplied(name) {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		s.logger.Debug().Str("name", name).Msg("applied migration")
	}
	return nil
}

func (s *Store) isMigrationApplied(name string) bool {
	var applied int
	err := s.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

func (s *Store) markInterrupted() (int64, error) {
	res, err := s.conn.Exec(
		`UPDATE jobs SET status = ?, error = 'interrupted', updated_at = ? WHERE status = ?`,
		StatusFailed, s.stamp(), StatusRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *Store) Start(ctx context.Context, j *Job) error {
	now := s.now().UTC()
	j.Status = StatusRunning
	j.CreatedAt, j.UpdatedAt = now, now
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO jobs (id, character, input, output, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Character, j.Input, j.Output, j.Status,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	return err
}

func (s *Store) Finish(ctx context.Context, id, output string, audioDuration, videoDuration float64) error {
	return s.update(ctx, `
		UPDATE jobs SET status = ?, output = ?, audio_duration = ?, video_duration = ?, updated_at = ?
		WHERE id = ?
	`, StatusDone, output, audioDuration, videoDuration, s.stamp(), id)
}

func (s *Store) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.update(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, StatusFailed, msg, s.stamp(), id)
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectJob = `
	SELECT id, character, input, output, status, error, audio_duration, video_duration, created_at, updated_at
	FROM jobs`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	var errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.Character, &j.Input, &j.Output, &j.Status, &errMsg,
		&j.AudioDuration, &j.VideoDuration, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &j, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	j, err := scanJob(s.conn.QueryRowContext(ctx, selectJob+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j, err
}

// List returns the most recent jobs first.
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.QueryContext(ctx, selectJob+" ORDER BY rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, j)
	}
	return list, rows.Err()
}
