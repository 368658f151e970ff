package costledger

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/noxaudit/noxaudit/internal/domain"
)

// Store implements domain.CostLedger on a SQLite database.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates the database at path if needed and ensures the schema.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cost ledger directory: %w", err)
	}

	dsn := path + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(5000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cost ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: log.With().Str("component", "costledger").Logger()}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cost ledger schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS audit_costs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		repo TEXT NOT NULL,
		focus TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		batch_id TEXT,
		batch INTEGER NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cache_read_tokens INTEGER NOT NULL,
		cache_write_tokens INTEGER NOT NULL,
		cost_usd REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_costs_model ON audit_costs(provider, model);
	CREATE INDEX IF NOT EXISTS idx_audit_costs_timestamp ON audit_costs(timestamp);
	`)
	return err
}

// Record appends one audit's usage.
func (s *Store) Record(ctx context.Context, e domain.CostEntry) error {
	batch := 0
	if e.Batch {
		batch = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_costs (timestamp, repo, focus, provider, model, batch_id, batch,
			input_tokens, output_tokens, cache_read_tokens, cache_write_tokens, cost_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UTC().Unix(), e.Repo, e.Focus, e.Provider, e.Model,
		sql.NullString{String: e.BatchID, Valid: e.BatchID != ""}, batch,
		e.Usage.InputTokens, e.Usage.OutputTokens, e.Usage.CacheReadTokens, e.Usage.CacheWriteTokens,
		e.CostUSD)
	if err != nil {
		return fmt.Errorf("recording cost: %w", err)
	}
	s.log.Debug().Str("repo", e.Repo).Str("focus", e.Focus).Float64("cost_usd", e.CostUSD).Msg("cost recorded")
	return nil
}

// Summary totals usage per provider and model, most expensive first.
func (s *Store) Summary(ctx context.Context) ([]domain.CostSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, model, COUNT(*), SUM(input_tokens), SUM(output_tokens), SUM(cost_usd)
		FROM audit_costs
		GROUP BY provider, model
		ORDER BY SUM(cost_usd) DESC, provider, model`)
	if err != nil {
		return nil, fmt.Errorf("querying cost summary: %w", err)
	}
	defer rows.Close()

	var out []domain.CostSummary
	for rows.Next() {
		var cs domain.CostSummary
		if err := rows.Scan(&cs.Provider, &cs.Model, &cs.Audits, &cs.InputTokens, &cs.OutputTokens, &cs.CostUSD); err != nil {
			return nil, fmt.Errorf("scanning cost summary: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// Recent returns the latest entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.CostEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, repo, focus, provider, model, batch_id, batch,
			input_tokens, output_tokens, cache_read_tokens, cache_write_tokens, cost_usd
		FROM audit_costs
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent costs: %w", err)
	}
	defer rows.Close()

	var out []domain.CostEntry
	for rows.Next() {
		var (
			e       domain.CostEntry
			ts      int64
			batchID sql.NullString
			batch   int
		)
		if err := rows.Scan(&ts, &e.Repo, &e.Focus, &e.Provider, &e.Model, &batchID, &batch,
			&e.Usage.InputTokens, &e.Usage.OutputTokens, &e.Usage.CacheReadTokens, &e.Usage.CacheWriteTokens,
			&e.CostUSD); err != nil {
			return nil, fmt.Errorf("scanning cost entry: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0).UTC()
		e.BatchID = batchID.String
		e.Batch = batch == 1
		out = append(out, e)
	}
	return out, rows.Err()
}
