// Package store persists agent host settings, the candidate profile and
// ingested documents in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Job statuses.
const (
	JobPending = "PENDING"
	JobApplied = "APPLIED"
	JobSkipped = "SKIPPED"
)

// Job is a posting the agent found.
type Job struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Company string `json:"company"`
	Status  string `json:"status"`
}

// JobStats counts the job queue.
type JobStats struct {
	Total   int
	Applied int
	Pending int
}

// Document is an ingested file with its extracted text.
type Document struct {
	ID          int64
	Name        string
	ContentType string
	Size        int
	Data        []byte
	Text        string
	CreatedAt   time.Time
}

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	return s, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS profile (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size INTEGER NOT NULL,
		data BLOB NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);

	CREATE TABLE IF NOT EXISTS job_queue (
		url TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		company TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'PENDING',
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_job_queue_status ON job_queue(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetConfig saves or replaces a config value.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_config (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("set config %q: %w", key, err)
	}
	return nil
}

// Config returns a config value.
func (s *Store) Config(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM user_config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get config %q: %w", key, err)
	}
	return value, nil
}

// AllConfig returns every config value.
func (s *Store) AllConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM user_config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list config: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SaveProfile stores v as the single profile row.
func (s *Store) SaveProfile(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profile (id, data, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		string(data))
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// LoadProfile decodes the stored profile into v.
func (s *Store) LoadProfile(ctx context.Context, v any) error {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profile WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	return json.Unmarshal([]byte(data), v)
}

// AddDocument inserts a document and fills in its ID and CreatedAt.
func (s *Store) AddDocument(ctx context.Context, doc *Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.Size = len(doc.Data)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (name, content_type, size, data, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		doc.Name, doc.ContentType, doc.Size, doc.Data, doc.Text, doc.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	doc.ID, err = res.LastInsertId()
	return err
}

// LatestDocument returns the most recently added document.
func (s *Store) LatestDocument(ctx context.Context) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, content_type, size, data, text, created_at
		FROM documents ORDER BY created_at DESC, id DESC LIMIT 1`)

	var doc Document
	var created int64
	err := row.Scan(&doc.ID, &doc.Name, &doc.ContentType, &doc.Size, &doc.Data, &doc.Text, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest document: %w", err)
	}
	doc.CreatedAt = time.UnixMilli(created).UTC()
	return &doc, nil
}

// CountDocuments returns the number of stored documents.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// UpsertJob records a job or updates its status.
func (s *Store) UpsertJob(ctx context.Context, job Job) error {
	if job.URL == "" {
		return fmt.Errorf("job url is required")
	}
	if job.Status == "" {
		job.Status = JobPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_queue (url, title, company, status, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = CASE WHEN excluded.title = '' THEN job_queue.title ELSE excluded.title END,
			company = CASE WHEN excluded.company = '' THEN job_queue.company ELSE excluded.company END,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		job.URL, job.Title, job.Company, job.Status, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// JobStats counts jobs by status.
func (s *Store) JobStats(ctx context.Context) (JobStats, error) {
	var st JobStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM job_queue`, JobApplied, JobPending).Scan(&st.Total, &st.Applied, &st.Pending)
	if err != nil {
		return JobStats{}, fmt.Errorf("job stats: %w", err)
	}
	return st, nil
}
