package memory

import (
	sq "github.com/Masterminds/squirrel"
)

// StatementBuilder returns a Squirrel StatementBuilder configured for SQLite.
// SQLite uses '?' as placeholders, which is Squirrel's default.
func StatementBuilder() sq.StatementBuilderType {
	return sq.StatementBuilder
}

// SelectMemoriesColumns returns the standard column list for memories SELECT queries.
func SelectMemoriesColumns() []string {
	return []string{
		"id", "created_at", "content", "media_type", "media_mime",
		"media_key", "location", "analysis_json",
	}
}
