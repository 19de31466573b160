package memory

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/aschepis/backscratcher/lifelog/llm"
)

// SaveModelConfig upserts the credential for a model. The last write wins.
func (s *Store) SaveModelConfig(ctx context.Context, cfg llm.UserModelConfig) error {
	s.logger.Debug().
		Str("method", "SaveModelConfig").
		Str("model_id", cfg.ModelID).
		Bool("has_base_url", cfg.BaseURL != "").
		Msg("called")
	if cfg.ModelID == "" {
		return fmt.Errorf("model id is required")
	}

	query, args, err := StatementBuilder().
		Insert("model_configs").
		Columns("model_id", "api_key", "base_url", "updated_at").
		Values(cfg.ModelID, cfg.APIKey, cfg.BaseURL, now()).
		Suffix("ON CONFLICT(model_id) DO UPDATE SET api_key = excluded.api_key, base_url = excluded.base_url, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert model config: %w", err)
	}
	return nil
}

// ListModelConfigs returns every stored model config, oldest write first.
func (s *Store) ListModelConfigs(ctx context.Context) ([]llm.UserModelConfig, error) {
	query, args, err := StatementBuilder().
		Select("model_id", "api_key", "base_url").
		From("model_configs").
		OrderBy("updated_at ASC", "model_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select model configs: %w", err)
	}
	defer rows.Close() //nolint:errcheck // no remedy for rows close error

	configs := make([]llm.UserModelConfig, 0)
	for rows.Next() {
		var cfg llm.UserModelConfig
		var baseURL sql.NullString
		if err := rows.Scan(&cfg.ModelID, &cfg.APIKey, &baseURL); err != nil {
			return nil, fmt.Errorf("scan model config: %w", err)
		}
		cfg.BaseURL = baseURL.String
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// DeleteModelConfig removes the credential for a model.
func (s *Store) DeleteModelConfig(ctx context.Context, modelID string) error {
	query, args, err := StatementBuilder().
		Delete("model_configs").
		Where(sq.Eq{"model_id": modelID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete model config: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
