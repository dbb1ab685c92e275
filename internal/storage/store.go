package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// UsageRecord describes one call to the text-generation service.
type UsageRecord struct {
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	OK           bool
	CreatedAt    time.Time
}

// UsageSummary aggregates the usage ledger.
type UsageSummary struct {
	Calls        int64   `json:"calls"`
	Failures     int64   `json:"failures"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	CostUSD      float64 `json:"costUsd"`
}

// GenerationStore defines the persistence needed by the generation client.
// It holds generated ad copy and usage accounting only; listings themselves
// are never stored.
type GenerationStore interface {
	GetGenerationCache(promptHash string, maxAge time.Duration) (string, bool, error)
	SetGenerationCache(promptHash, text string) error
	RecordUsage(rec UsageRecord) error
	UsageSummary() (*UsageSummary, error)
	Close() error
}

// SQLiteStore implements GenerationStore using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// NewSQLiteStore creates a new SQLite-based store. dbPath may be MemoryPath,
// in which case all data is lost when the process exits.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != MemoryPath {
		// WAL mode and busy timeout for concurrent readers
		dsn = fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == MemoryPath {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Str("path", dbPath).Msg("generation store opened")
	return store, nil
}

func (s *SQLiteStore) init() error {
	cacheQuery := `
	CREATE TABLE IF NOT EXISTS generation_cache (
		prompt_hash TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(cacheQuery); err != nil {
		return fmt.Errorf("failed to create generation_cache table: %w", err)
	}

	usageQuery := `
	CREATE TABLE IF NOT EXISTS generation_usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		model TEXT NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cost_usd REAL NOT NULL DEFAULT 0,
		ok INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(usageQuery); err != nil {
		return fmt.Errorf("failed to create generation_usage table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_generation_usage_created_at ON generation_usage(created_at)"); err != nil {
		return fmt.Errorf("failed to create generation_usage index: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetGenerationCache returns cached text for a prompt hash. Entries older
// than maxAge are treated as missing; maxAge <= 0 disables expiry.
// Returns "", false, nil if no usable entry exists.
func (s *SQLiteStore) GetGenerationCache(promptHash string, maxAge time.Duration) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var text string
	var createdAt int64
	err := s.db.QueryRow(
		"SELECT text, created_at FROM generation_cache WHERE prompt_hash = ?",
		promptHash,
	).Scan(&text, &createdAt)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query generation cache: %w", err)
	}

	if maxAge > 0 && s.now().Sub(time.UnixMilli(createdAt)) > maxAge {
		return "", false, nil
	}

	return text, true, nil
}

// SetGenerationCache stores generated text under a prompt hash.
func (s *SQLiteStore) SetGenerationCache(promptHash, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO generation_cache (prompt_hash, text, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(prompt_hash) DO UPDATE SET
			text = excluded.text,
			created_at = excluded.created_at
	`, promptHash, text, s.now().UnixMilli())

	if err != nil {
		return fmt.Errorf("failed to cache generated text: %w", err)
	}
	return nil
}

// PruneGenerationCache deletes cache entries older than maxAge.
func (s *SQLiteStore) PruneGenerationCache(maxAge time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge).UnixMilli()
	res, err := s.db.Exec("DELETE FROM generation_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune generation cache: %w", err)
	}
	return res.RowsAffected()
}

// RecordUsage appends a row to the usage ledger.
func (s *SQLiteStore) RecordUsage(rec UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	ok := 0
	if rec.OK {
		ok = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO generation_usage (model, input_tokens, output_tokens, cost_usd, ok, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Model, rec.InputTokens, rec.OutputTokens, rec.CostUSD, ok, createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// UsageSummary aggregates all recorded calls.
func (s *SQLiteStore) UsageSummary() (*UsageSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum UsageSummary
	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN ok = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cost_usd), 0)
		FROM generation_usage
	`).Scan(&sum.Calls, &sum.Failures, &sum.InputTokens, &sum.OutputTokens, &sum.CostUSD)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	return &sum, nil
}
