package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store manages memory persistence. Rows live in SQLite; media payloads
// live in a BlobStore under a per-memory key.
type Store struct {
	db     *sql.DB
	blobs  BlobStore
	logger zerolog.Logger
}

// NewStore creates and returns a Store. A nil blobs uses the media_blobs
// table of db.
func NewStore(db *sql.DB, blobs BlobStore, logger zerolog.Logger) *Store {
	if blobs == nil {
		blobs = NewSQLBlobStore(db)
	}
	logger = logger.With().Str("component", "memory_store").Logger()
	return &Store{db: db, blobs: blobs, logger: logger}
}

func now() int64 { return time.Now().UnixMilli() }

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Save validates and persists a new memory. An empty ID is replaced with a
// UUID and a zero CreatedAt with the current time. The blob is written
// first; if the row insert then fails the blob is removed, so a memory is
// never partially written.
func (s *Store) Save(ctx context.Context, m Memory) (Memory, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.MediaType == "" {
		m.MediaType = MediaTypeText
	}
	s.logger.Debug().
		Str("method", "Save").
		Str("id", m.ID).
		Str("media_type", string(m.MediaType)).
		Str("content", truncateString(m.Content, 40)).
		Msg("called")

	if err := m.Validate(); err != nil {
		return Memory{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	var mediaMIME, mediaKey sql.NullString
	if m.Media != nil {
		// Keys are never reused, so cleanup after a failed insert cannot
		// touch another memory's blob.
		key := uuid.NewString()
		if err := s.blobs.Put(ctx, key, m.Media.MIMEType, m.Media.Data); err != nil {
			return Memory{}, fmt.Errorf("store media: %w", err)
		}
		mediaMIME = sql.NullString{String: m.Media.MIMEType, Valid: true}
		mediaKey = sql.NullString{String: key, Valid: true}
	}

	analysisJSON, err := encodeAnalysis(m.Analysis)
	if err != nil {
		return Memory{}, err
	}

	query, args, err := StatementBuilder().
		Insert("memories").
		Columns("id", "created_at", "content", "media_type", "media_mime", "media_key", "location", "analysis_json", "updated_at").
		Values(m.ID, m.CreatedAt.UnixMilli(), m.Content, string(m.MediaType), mediaMIME, mediaKey, m.Location, analysisJSON, now()).
		ToSql()
	if err != nil {
		return Memory{}, fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if mediaKey.Valid {
			if delErr := s.blobs.Delete(ctx, mediaKey.String); delErr != nil {
				s.logger.Error().Err(delErr).Str("id", m.ID).Msg("failed to remove orphaned media after insert failure")
			}
		}
		return Memory{}, fmt.Errorf("insert memory: %w", err)
	}

	s.logger.Info().Str("id", m.ID).Str("media_type", string(m.MediaType)).Msg("memory saved")
	return m, nil
}

// ListAll returns every memory, newest first. Media bytes are not loaded;
// Media carries only the MIME type.
func (s *Store) ListAll(ctx context.Context) ([]Memory, error) {
	return s.list(ctx, StatementBuilder().
		Select(SelectMemoriesColumns()...).
		From("memories").
		OrderBy("created_at DESC", "id ASC"))
}

// Search returns memories whose content, location, or analysis summary,
// mood or tags contain text, newest first. Matching is case-insensitive for
// ASCII and treats % and _ literally.
func (s *Store) Search(ctx context.Context, text string, limit int) ([]Memory, error) {
	s.logger.Debug().Str("method", "Search").Str("text", text).Int("limit", limit).Msg("called")
	pattern := "%" + likeEscaper.Replace(strings.TrimSpace(text)) + "%"
	q := StatementBuilder().
		Select(SelectMemoriesColumns()...).
		From("memories").
		Where(sq.Or{
			sq.Expr(`content LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`location LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`json_extract(analysis_json, '$.summary') LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`json_extract(analysis_json, '$.mood') LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`EXISTS (SELECT 1 FROM json_each(analysis_json, '$.tags') AS t WHERE t.value LIKE ? ESCAPE '\')`, pattern),
		}).
		OrderBy("created_at DESC", "id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return s.list(ctx, q)
}

// ListUnanalyzed returns up to limit memories without analysis, oldest first.
func (s *Store) ListUnanalyzed(ctx context.Context, limit int) ([]Memory, error) {
	q := StatementBuilder().
		Select(SelectMemoriesColumns()...).
		From("memories").
		Where(sq.Eq{"analysis_json": nil}).
		OrderBy("created_at ASC", "id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return s.list(ctx, q)
}

func (s *Store) list(ctx context.Context, q sq.SelectBuilder) ([]Memory, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select memories: %w", err)
	}
	defer rows.Close() //nolint:errcheck // no remedy for rows close error

	memories := make([]Memory, 0)
	for rows.Next() {
		m, _, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return memories, nil
}

// Get returns one memory with its media bytes loaded. A memory whose blob
// has gone missing is still returned, with media metadata but no bytes.
func (s *Store) Get(ctx context.Context, id string) (Memory, error) {
	m, key, err := s.getRow(ctx, id)
	if err != nil {
		return Memory{}, err
	}
	if key == "" {
		return m, nil
	}

	h, err := s.blobs.Open(ctx, key)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn().Str("id", id).Str("key", key).Msg("media blob missing; returning memory without media bytes")
		return m, nil
	}
	if err != nil {
		return Memory{}, fmt.Errorf("open media for %s: %w", id, err)
	}
	defer h.Close() //nolint:errcheck // read-only handle

	data, err := io.ReadAll(h)
	if err != nil {
		return Memory{}, fmt.Errorf("read media for %s: %w", id, err)
	}
	m.Media = &Media{MIMEType: h.MIMEType, Data: data}
	return m, nil
}

// OpenMedia returns a scoped handle over a memory's media payload.
// The caller must Close it.
func (s *Store) OpenMedia(ctx context.Context, id string) (*MediaHandle, error) {
	_, key, err := s.getRow(ctx, id)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrNotFound
	}
	return s.blobs.Open(ctx, key)
}

func (s *Store) getRow(ctx context.Context, id string) (Memory, string, error) {
	query, args, err := StatementBuilder().
		Select(SelectMemoriesColumns()...).
		From("memories").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return Memory{}, "", fmt.Errorf("build select: %w", err)
	}
	m, key, err := scanMemory(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Memory{}, "", ErrNotFound
	}
	return m, key, err
}

// Delete removes a memory and its media.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.logger.Debug().Str("method", "Delete").Str("id", id).Msg("called")
	_, key, err := s.getRow(ctx, id)
	if err != nil {
		return err
	}

	query, args, err := StatementBuilder().Delete("memories").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}

	if key != "" {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("id", id).Msg("memory deleted but media removal failed")
		}
	}
	return nil
}

// UpdateAnalysis replaces a memory's analysis. Concurrent writers resolve
// last-write-wins.
func (s *Store) UpdateAnalysis(ctx context.Context, id string, analysis AIAnalysis) error {
	s.logger.Debug().
		Str("method", "UpdateAnalysis").
		Str("id", id).
		Str("mood", analysis.Mood).
		Str("model", analysis.AnalyzedByModel).
		Msg("called")
	encoded, err := encodeAnalysis(&analysis)
	if err != nil {
		return err
	}
	return s.setAnalysis(ctx, s.db, id, encoded)
}

// UpdateSummary edits the summary of an existing analysis. AnalyzedByModel
// is left unchanged.
func (s *Store) UpdateSummary(ctx context.Context, id, summary string) (AIAnalysis, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AIAnalysis{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query, args, err := StatementBuilder().
		Select("analysis_json").
		From("memories").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return AIAnalysis{}, fmt.Errorf("build select: %w", err)
	}
	var raw sql.NullString
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AIAnalysis{}, ErrNotFound
		}
		return AIAnalysis{}, fmt.Errorf("select analysis: %w", err)
	}
	analysis, err := decodeAnalysis(raw)
	if err != nil {
		return AIAnalysis{}, err
	}
	if analysis == nil {
		return AIAnalysis{}, ErrNoAnalysis
	}

	analysis.Summary = summary
	encoded, err := encodeAnalysis(analysis)
	if err != nil {
		return AIAnalysis{}, err
	}
	if err := s.setAnalysis(ctx, tx, id, encoded); err != nil {
		return AIAnalysis{}, err
	}
	if err := tx.Commit(); err != nil {
		return AIAnalysis{}, fmt.Errorf("commit: %w", err)
	}
	return *analysis, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) setAnalysis(ctx context.Context, db execer, id string, encoded sql.NullString) error {
	query, args, err := StatementBuilder().
		Update("memories").
		Set("analysis_json", encoded).
		Set("updated_at", now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanMemory reads one row in SelectMemoriesColumns order and returns the
// memory plus its media key.
func scanMemory(row rowScanner) (Memory, string, error) {
	var (
		m            Memory
		createdAt    int64
		mediaType    string
		mediaMIME    sql.NullString
		mediaKey     sql.NullString
		location     sql.NullString
		analysisJSON sql.NullString
	)
	if err := row.Scan(&m.ID, &createdAt, &m.Content, &mediaType, &mediaMIME, &mediaKey, &location, &analysisJSON); err != nil {
		return Memory{}, "", err
	}
	m.CreatedAt = time.UnixMilli(createdAt)
	m.MediaType = MediaType(mediaType)
	m.Location = location.String
	if mediaMIME.Valid {
		m.Media = &Media{MIMEType: mediaMIME.String}
	}
	analysis, err := decodeAnalysis(analysisJSON)
	if err != nil {
		return Memory{}, "", fmt.Errorf("memory %s: %w", m.ID, err)
	}
	m.Analysis = analysis
	return m, mediaKey.String, nil
}

func encodeAnalysis(a *AIAnalysis) (sql.NullString, error) {
	if a == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal analysis: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeAnalysis(raw sql.NullString) (*AIAnalysis, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var a AIAnalysis
	if err := json.Unmarshal([]byte(raw.String), &a); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &a, nil
}

func truncateString(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
