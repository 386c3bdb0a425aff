package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-navigator/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	attributes TEXT NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS insights (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL,
	insight_id TEXT NOT NULL,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	category   TEXT NOT NULL,
	confidence REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_insights_lead_id ON insights(lead_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// StoreLeads bulk-upserts leads keyed by id. Re-storing a lead fully
// replaces its prior attribute values.
func (s *SQLiteStore) StoreLeads(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin store leads")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, lead := range leads {
		attrs, err := json.Marshal(lead)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal lead %s", lead.ID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO leads (id, attributes, fetched_at) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET attributes = excluded.attributes, fetched_at = excluded.fetched_at`,
			lead.ID, string(attrs), now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert lead %s", lead.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit store leads")
}

// GetAllLeads returns all stored leads in insertion order.
func (s *SQLiteStore) GetAllLeads(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT attributes FROM leads ORDER BY rowid`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get all leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var attrs string
		if err := rows.Scan(&attrs); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		var lead model.Lead
		if err := json.Unmarshal([]byte(attrs), &lead); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal lead")
		}
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

// GetLeadByID returns the stored lead, or (nil, nil) when absent.
func (s *SQLiteStore) GetLeadByID(ctx context.Context, id string) (*model.Lead, error) {
	var attrs string
	err := s.db.QueryRowContext(ctx, `SELECT attributes FROM leads WHERE id = ?`, id).Scan(&attrs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}

	var lead model.Lead
	if err := json.Unmarshal([]byte(attrs), &lead); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal lead %s", id)
	}
	return &lead, nil
}

// StoreInsights replaces the lead's insight set. The delete and inserts run
// in one transaction so readers never observe a partial set.
func (s *SQLiteStore) StoreInsights(ctx context.Context, leadID string, insights []model.Insight) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin store insights")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM insights WHERE lead_id = ?`, leadID); err != nil {
		return eris.Wrapf(err, "sqlite: delete insights for lead %s", leadID)
	}

	now := time.Now().UTC()
	for _, in := range insights {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO insights (id, lead_id, insight_id, title, content, category, confidence, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), leadID, in.ID, in.Title, in.Content, string(in.Category), in.Confidence, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert insight for lead %s", leadID)
		}
	}

	return eris.Wrapf(tx.Commit(), "sqlite: commit insights for lead %s", leadID)
}

// GetInsightsForLead returns the lead's current insight set, empty if none.
func (s *SQLiteStore) GetInsightsForLead(ctx context.Context, leadID string) ([]model.Insight, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT insight_id, title, content, category, confidence FROM insights WHERE lead_id = ? ORDER BY rowid`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get insights for lead %s", leadID)
	}
	defer rows.Close()

	var insights []model.Insight
	for rows.Next() {
		var in model.Insight
		var category string
		if err := rows.Scan(&in.ID, &in.Title, &in.Content, &category, &in.Confidence); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan insight")
		}
		in.Category = model.InsightCategory(category)
		insights = append(insights, in)
	}
	return insights, eris.Wrap(rows.Err(), "sqlite: iterate insights")
}

func (s *SQLiteStore) CountLeads(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count leads")
}

func (s *SQLiteStore) CountInsights(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM insights`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count insights")
}

// ClearAllData wipes both leads and insights.
func (s *SQLiteStore) ClearAllData(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin clear")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM insights`); err != nil {
		return eris.Wrap(err, "sqlite: clear insights")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM leads`); err != nil {
		return eris.Wrap(err, "sqlite: clear leads")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit clear")
}
