// Package persistence stores document job records in SQLite.
package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/MimeLyc/seabridge/internal/errs"
	"github.com/MimeLyc/seabridge/internal/jobs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const jobColumns = `id, provider_job_id, message_key, target_lang, source_lang, file_name, status,
	progress, download_url, error, superseded_by, created_at, updated_at, completed_at`

// SQLiteStore implements jobs.Store. A unique partial index keeps at most
// one SUBMITTED or IN_PROGRESS job per message key and target language,
// across processes sharing the database file.
type SQLiteStore struct {
	db *sql.DB
}

var _ jobs.Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job *jobs.DocumentJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		jobArgs(job)...,
	)
	return translateErr(err)
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.DocumentJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider_job_id=excluded.provider_job_id,
			status=excluded.status,
			progress=excluded.progress,
			download_url=excluded.download_url,
			error=excluded.error,
			superseded_by=excluded.superseded_by,
			updated_at=excluded.updated_at,
			completed_at=excluded.completed_at`,
		jobArgs(job)...,
	)
	return translateErr(err)
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*jobs.DocumentJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM document_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.JobNotFound, "job not found").WithContext("job_id", id)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *SQLiteStore) LatestJob(ctx context.Context, messageKey, targetLanguage string) (*jobs.DocumentJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM document_jobs
		 WHERE message_key = ? AND target_lang = ? AND superseded_by = ''
		 ORDER BY created_at DESC
		 LIMIT 1`,
		messageKey, targetLanguage,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func (s *SQLiteStore) ListActiveJobs(ctx context.Context) ([]*jobs.DocumentJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM document_jobs
		 WHERE status IN (?, ?)
		 ORDER BY created_at ASC`,
		string(jobs.StatusSubmitted), string(jobs.StatusInProgress),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.DocumentJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*jobs.DocumentJob, error) {
	var item jobs.DocumentJob
	var status string
	var completedAt sql.NullTime
	if err := row.Scan(
		&item.ID,
		&item.ProviderJobID,
		&item.MessageKey,
		&item.TargetLanguage,
		&item.SourceLanguage,
		&item.FileName,
		&status,
		&item.ProgressPercent,
		&item.DownloadURL,
		&item.ErrorMessage,
		&item.SupersededBy,
		&item.CreatedAt,
		&item.UpdatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	item.Status = jobs.Status(status)
	if completedAt.Valid {
		t := completedAt.Time
		item.CompletedAt = &t
	}
	return &item, nil
}

func jobArgs(job *jobs.DocumentJob) []any {
	var completedAt any
	if job.CompletedAt != nil {
		completedAt = job.CompletedAt.UTC()
	}
	return []any{
		job.ID,
		job.ProviderJobID,
		job.MessageKey,
		job.TargetLanguage,
		job.SourceLanguage,
		job.FileName,
		string(job.Status),
		job.ProgressPercent,
		job.DownloadURL,
		job.ErrorMessage,
		job.SupersededBy,
		job.CreatedAt.UTC(),
		job.UpdatedAt.UTC(),
		completedAt,
	}
}

// translateErr maps a violation of the active-job index onto
// jobs.ErrActiveJobExists.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed: document_jobs.message_key") {
		return jobs.ErrActiveJobExists
	}
	return err
}
