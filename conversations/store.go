// Package conversations persists the ask/answer turns of the memory chat.
package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const defaultListLimit = 50

// Exchange is one persisted chat turn. Answer is stored encoded, with its
// [[ID:x]] citations intact.
type Exchange struct {
	ID        int64     `json:"id"`
	ModelID   string    `json:"model_id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	CitedIDs  []string  `json:"cited_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// Store handles persistence of exchanges.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// Append saves an exchange and returns it with ID and CreatedAt set.
func (s *Store) Append(ctx context.Context, e Exchange) (Exchange, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.CitedIDs == nil {
		e.CitedIDs = []string{}
	}
	cited, err := json.Marshal(e.CitedIDs)
	if err != nil {
		return Exchange{}, fmt.Errorf("marshal cited ids: %w", err)
	}

	queryStr, args, err := builder().Insert("exchanges").
		Columns("model_id", "query", "answer", "cited_ids", "created_at").
		Values(e.ModelID, e.Query, e.Answer, string(cited), e.CreatedAt.UnixMilli()).
		ToSql()
	if err != nil {
		return Exchange{}, fmt.Errorf("build query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, queryStr, args...)
	if err != nil {
		return Exchange{}, fmt.Errorf("insert exchange: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return Exchange{}, fmt.Errorf("last insert id: %w", err)
	}
	return e, nil
}

// List returns the most recent exchanges, newest first. A non-positive limit
// uses the default of 50.
func (s *Store) List(ctx context.Context, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	queryStr, args, err := builder().
		Select("id", "model_id", "query", "answer", "cited_ids", "created_at").
		From("exchanges").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	out := make([]Exchange, 0)
	for rows.Next() {
		var (
			e       Exchange
			cited   string
			created int64
		)
		if err := rows.Scan(&e.ID, &e.ModelID, &e.Query, &e.Answer, &cited, &created); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		if err := json.Unmarshal([]byte(cited), &e.CitedIDs); err != nil {
			return nil, fmt.Errorf("decode cited ids for exchange %d: %w", e.ID, err)
		}
		e.CreatedAt = time.UnixMilli(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear deletes every exchange.
func (s *Store) Clear(ctx context.Context) error {
	queryStr, args, err := builder().Delete("exchanges").ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}
