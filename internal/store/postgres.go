package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-navigator/internal/db"
	"github.com/sells-group/lead-navigator/internal/model"
)

// PostgresStore implements Store using pgxpool, for deployments where the
// lead cache is shared between machines.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot store operations.
var preparedStatements = map[string]string{
	"upsert_lead":     `INSERT INTO leads (id, attributes, fetched_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET attributes = EXCLUDED.attributes, fetched_at = EXCLUDED.fetched_at`,
	"get_lead":        `SELECT attributes FROM leads WHERE id = $1`,
	"get_insights":    `SELECT insight_id, title, content, category, confidence FROM insights WHERE lead_id = $1 ORDER BY seq`,
	"delete_insights": `DELETE FROM insights WHERE lead_id = $1`,
	"insert_insight":  `INSERT INTO insights (id, lead_id, insight_id, title, content, category, confidence, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	attributes JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	seq        BIGSERIAL
);

CREATE TABLE IF NOT EXISTS insights (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL,
	insight_id TEXT NOT NULL,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	category   TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	seq        BIGSERIAL
);

CREATE INDEX IF NOT EXISTS idx_insights_lead_id ON insights(lead_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) StoreLeads(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin store leads")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	for _, lead := range leads {
		attrs, err := json.Marshal(lead)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal lead %s", lead.ID)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO leads (id, attributes, fetched_at) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET attributes = EXCLUDED.attributes, fetched_at = EXCLUDED.fetched_at`,
			lead.ID, string(attrs), now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert lead %s", lead.ID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit store leads")
}

func (s *PostgresStore) GetAllLeads(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx, `SELECT attributes FROM leads ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get all leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var attrs []byte
		if err := rows.Scan(&attrs); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		var lead model.Lead
		if err := json.Unmarshal(attrs, &lead); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal lead")
		}
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: iterate leads")
}

func (s *PostgresStore) GetLeadByID(ctx context.Context, id string) (*model.Lead, error) {
	var attrs []byte
	err := s.pool.QueryRow(ctx, `SELECT attributes FROM leads WHERE id = $1`, id).Scan(&attrs)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}

	var lead model.Lead
	if err := json.Unmarshal(attrs, &lead); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal lead %s", id)
	}
	return &lead, nil
}

func (s *PostgresStore) StoreInsights(ctx context.Context, leadID string, insights []model.Insight) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin store insights")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM insights WHERE lead_id = $1`, leadID); err != nil {
		return eris.Wrapf(err, "postgres: delete insights for lead %s", leadID)
	}

	now := time.Now().UTC()
	for _, in := range insights {
		_, err := tx.Exec(ctx,
			`INSERT INTO insights (id, lead_id, insight_id, title, content, category, confidence, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New().String(), leadID, in.ID, in.Title, in.Content, string(in.Category), in.Confidence, now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert insight for lead %s", leadID)
		}
	}

	return eris.Wrapf(tx.Commit(ctx), "postgres: commit insights for lead %s", leadID)
}

func (s *PostgresStore) GetInsightsForLead(ctx context.Context, leadID string) ([]model.Insight, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT insight_id, title, content, category, confidence FROM insights WHERE lead_id = $1 ORDER BY seq`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get insights for lead %s", leadID)
	}
	defer rows.Close()

	var insights []model.Insight
	for rows.Next() {
		var in model.Insight
		var category string
		if err := rows.Scan(&in.ID, &in.Title, &in.Content, &category, &in.Confidence); err != nil {
			return nil, eris.Wrap(err, "postgres: scan insight")
		}
		in.Category = model.InsightCategory(category)
		insights = append(insights, in)
	}
	return insights, eris.Wrap(rows.Err(), "postgres: iterate insights")
}

func (s *PostgresStore) CountLeads(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count leads")
}

func (s *PostgresStore) CountInsights(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM insights`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count insights")
}

func (s *PostgresStore) ClearAllData(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin clear")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM insights`); err != nil {
		return eris.Wrap(err, "postgres: clear insights")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM leads`); err != nil {
		return eris.Wrap(err, "postgres: clear leads")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit clear")
}
