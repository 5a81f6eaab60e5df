package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"dealwatch/models"
)

// PostgresStore archives completed analyses for long-term querying. It is
// optional; the daemon runs fine without a DATABASE_URL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_archive (
			id BIGSERIAL PRIMARY KEY,
			monitor_id TEXT,
			keyword TEXT NOT NULL,
			category TEXT,
			total_products INT NOT NULL,
			valid_products INT NOT NULL,
			summary TEXT,
			rankings JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_archive_keyword ON analysis_archive(keyword);
		CREATE INDEX IF NOT EXISTS idx_archive_monitor ON analysis_archive(monitor_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// ArchiveAnalysis stores one completed analysis. monitorID is empty for ad
// hoc searches.
func (s *PostgresStore) ArchiveAnalysis(ctx context.Context, monitorID string, result *models.AnalysisResult) error {
	rankings, err := json.Marshal(map[string][]models.RankedProduct{
		"best_rated":    result.BestRated,
		"best_discount": result.BestDiscount,
		"best_selling":  result.BestSelling,
	})
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO analysis_archive (monitor_id, keyword, category, total_products, valid_products, summary, rankings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		nullable(monitorID), result.Metadata.Keyword, result.Metadata.Category,
		result.Metadata.TotalProducts, result.Metadata.ValidProducts,
		result.Summary, rankings, result.Metadata.Timestamp)
	if err != nil {
		return fmt.Errorf("archive analysis: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
