// Package store provides SQL persistence for registered apps and their API
// keys, generated commit messages, detected refactorings and analysis jobs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// APIKeys is the credential row of a registered app.
type APIKeys struct {
	UUID      string
	GitHub    string
	LLM       string
	CreatedAt time.Time
}

// CommitRecord is a generated commit message.
type CommitRecord struct {
	CommitID string
	URL      string
	Message  string
	Original string
}

// Job is the persisted state of an analysis job.
type Job struct {
	ID          string
	RepoURL     string
	Status      string
	Message     string
	OutputFiles []string
	UpdatedAt   time.Time
}

// dialect captures the SQL differences between the supported drivers.
type dialect struct {
	driver     string
	dollar     bool // $1-style placeholders
	keyType    string
	textType   string
	upsertTmpl string // %s = conflict columns, %s = assignments
	assign     func(col string) string
}

var dialects = map[string]dialect{
	"sqlite": {
		driver:     "sqlite",
		keyType:    "TEXT",
		textType:   "TEXT",
		upsertTmpl: " ON CONFLICT (%s) DO UPDATE SET %s",
		assign:     func(c string) string { return c + " = excluded." + c },
	},
	"postgres": {
		driver:     "pgx",
		dollar:     true,
		keyType:    "VARCHAR(512)",
		textType:   "TEXT",
		upsertTmpl: " ON CONFLICT (%s) DO UPDATE SET %s",
		assign:     func(c string) string { return c + " = EXCLUDED." + c },
	},
	"mysql": {
		driver:     "mysql",
		keyType:    "VARCHAR(191)",
		textType:   "LONGTEXT",
		upsertTmpl: " ON DUPLICATE KEY UPDATE %[2]s",
		assign:     func(c string) string { return c + " = VALUES(" + c + ")" },
	},
}

// Store wraps a SQL database.
type Store struct {
	db *sql.DB
	d  dialect
}

// Drivers lists the accepted driver names.
func Drivers() []string {
	return []string{"sqlite", "postgres", "mysql"}
}

// Open connects to the database named by driver ("sqlite", "postgres" or
// "mysql") and ensures all tables exist. For sqlite, use ":memory:" for an
// in-memory database.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case "", "sqlite3":
		driver = "sqlite"
	case "postgresql", "pgx":
		driver = "postgres"
	}
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unknown store driver %q (want one of %s)", driver, strings.Join(Drivers(), ", "))
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite" {
		// A single connection keeps ":memory:" databases shared and avoids
		// SQLITE_BUSY between writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	s := &Store{db: db, d: d}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// NewStore opens a sqlite database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	return Open(context.Background(), "sqlite", dbPath)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites '?' placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if !s.d.dollar {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *Store) upsert(conflict []string, update []string) string {
	assigns := make([]string, len(update))
	for i, c := range update {
		assigns[i] = s.d.assign(c)
	}
	return fmt.Sprintf(s.d.upsertTmpl, strings.Join(conflict, ", "), strings.Join(assigns, ", "))
}

func (s *Store) createTables(ctx context.Context) error {
	k, txt := s.d.keyType, s.d.textType
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS api_keys (
			uuid               ` + k + ` PRIMARY KEY,
			github_api_key     ` + txt + `,
			openai_llm_api_key ` + txt + `,
			created_at         BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS commit_details (
			url              ` + k + ` NOT NULL,
			commit_id        ` + k + ` NOT NULL,
			commit_message   ` + txt + ` NOT NULL,
			original_message ` + txt + `,
			created_at       BIGINT NOT NULL,
			PRIMARY KEY (url, commit_id)
		)`,
		`CREATE TABLE IF NOT EXISTS commit_refactorings (
			commit_id    ` + k + ` PRIMARY KEY,
			refactorings ` + txt + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS analysis_jobs (
			id           ` + k + ` PRIMARY KEY,
			repo_url     ` + txt + ` NOT NULL,
			status       VARCHAR(16) NOT NULL,
			message      ` + txt + `,
			output_files ` + txt + `,
			updated_at   BIGINT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", strings.Fields(stmt)[5], err)
		}
	}
	return nil
}

// CreateApp inserts a new app row with no keys.
func (s *Store) CreateApp(ctx context.Context, uuid string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO api_keys (uuid, github_api_key, openai_llm_api_key, created_at) VALUES (?, '', '', ?)`),
		uuid, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	return nil
}

// GetKeys returns the keys of an app, or ErrNotFound.
func (s *Store) GetKeys(ctx context.Context, uuid string) (*APIKeys, error) {
	var (
		k       APIKeys
		gh, llm sql.NullString
		created int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT uuid, github_api_key, openai_llm_api_key, created_at FROM api_keys WHERE uuid = ?`), uuid,
	).Scan(&k.UUID, &gh, &llm, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get keys: %w", err)
	}
	k.GitHub, k.LLM = gh.String, llm.String
	k.CreatedAt = time.Unix(created, 0)
	return &k, nil
}

// SetGitHubKey stores the GitHub token of an app. It returns ErrNotFound for
// an unknown uuid.
func (s *Store) SetGitHubKey(ctx context.Context, uuid, key string) error {
	return s.setKey(ctx, "github_api_key", uuid, key)
}

// SetLLMKey stores the LLM API key of an app. It returns ErrNotFound for an
// unknown uuid.
func (s *Store) SetLLMKey(ctx context.Context, uuid, key string) error {
	return s.setKey(ctx, "openai_llm_api_key", uuid, key)
}

func (s *Store) setKey(ctx context.Context, column, uuid, key string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE api_keys SET `+column+` = ? WHERE uuid = ?`), key, uuid)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	// MySQL reports zero affected rows when the value is unchanged, so
	// confirm existence separately.
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	if _, err := s.GetKeys(ctx, uuid); err != nil {
		return err
	}
	return nil
}

// SaveCommit stores a generated message for (url, commitID), replacing any
// earlier one.
func (s *Store) SaveCommit(ctx context.Context, c CommitRecord) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO commit_details (url, commit_id, commit_message, original_message, created_at)
		 VALUES (?, ?, ?, ?, ?)`+s.upsert([]string{"url", "commit_id"}, []string{"commit_message", "original_message", "created_at"})),
		c.URL, c.CommitID, c.Message, c.Original, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save commit: %w", err)
	}
	return nil
}

// GetCommit returns the stored message for (url, commitID), or ErrNotFound.
func (s *Store) GetCommit(ctx context.Context, url, commitID string) (*CommitRecord, error) {
	c := CommitRecord{URL: url, CommitID: commitID}
	var orig sql.NullString
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT commit_message, original_message FROM commit_details WHERE url = ? AND commit_id = ?`),
		url, commitID,
	).Scan(&c.Message, &orig)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get commit: %w", err)
	}
	c.Original = orig.String
	return &c, nil
}

// SaveRefactorings stores the rendered refactoring list of a commit.
func (s *Store) SaveRefactorings(ctx context.Context, commitID, refactorings string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO commit_refactorings (commit_id, refactorings) VALUES (?, ?)`+
			s.upsert([]string{"commit_id"}, []string{"refactorings"})),
		commitID, refactorings,
	)
	if err != nil {
		return fmt.Errorf("save refactorings: %w", err)
	}
	return nil
}

// GetRefactorings returns the stored refactoring list of a commit, or
// ErrNotFound.
func (s *Store) GetRefactorings(ctx context.Context, commitID string) (string, error) {
	var refs string
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT refactorings FROM commit_refactorings WHERE commit_id = ?`), commitID,
	).Scan(&refs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get refactorings: %w", err)
	}
	return refs, nil
}

// SaveJob inserts or replaces an analysis job.
func (s *Store) SaveJob(ctx context.Context, j Job) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO analysis_jobs (id, repo_url, status, message, output_files, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`+
			s.upsert([]string{"id"}, []string{"repo_url", "status", "message", "output_files", "updated_at"})),
		j.ID, j.RepoURL, j.Status, j.Message, strings.Join(j.OutputFiles, "\n"), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// GetJob returns an analysis job by id, or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	var (
		j       Job
		msg     sql.NullString
		files   sql.NullString
		updated int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, repo_url, status, message, output_files, updated_at FROM analysis_jobs WHERE id = ?`), id,
	).Scan(&j.ID, &j.RepoURL, &j.Status, &msg, &files, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	j.Message = msg.String
	if files.String != "" {
		j.OutputFiles = strings.Split(files.String, "\n")
	}
	j.UpdatedAt = time.Unix(updated, 0)
	return &j, nil
}

// ListJobs returns all analysis jobs, most recently updated first.
func (s *Store) ListJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, repo_url, status, message, output_files, updated_at FROM analysis_jobs ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			j          Job
			msg, files sql.NullString
			updated    int64
		)
		if err := rows.Scan(&j.ID, &j.RepoURL, &j.Status, &msg, &files, &updated); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.Message = msg.String
		if files.String != "" {
			j.OutputFiles = strings.Split(files.String, "\n")
		}
		j.UpdatedAt = time.Unix(updated, 0)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
