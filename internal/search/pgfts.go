package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search expands the research notes embedded in the owner's story
// documents and ranks them with plainto_tsquery, using ts_headline for
// snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := "st.owner_id = $1"
	args := []any{q.OwnerID, q.Text}
	if q.StoryID != "" {
		where += " AND st.id = $3"
		args = append(args, q.StoryID)
	}

	base := fmt.Sprintf(`
		SELECT st.id AS story_id, st.title AS story_title,
			note->>'id' AS note_id, COALESCE(note->>'topic', '') AS topic,
			ts_headline('english', COALESCE(note->>'content', ''), plainto_tsquery('english', $2), 'MaxFragments=1,MaxWords=30') AS snippet,
			ts_rank(
				to_tsvector('english', COALESCE(note->>'topic', '') || ' ' || COALESCE(note->>'content', '')),
				plainto_tsquery('english', $2)
			) AS rank
		FROM stories st,
			jsonb_array_elements(COALESCE(st.document->'researchNotes', '[]'::jsonb)) AS note
		WHERE %s
			AND to_tsvector('english', COALESCE(note->>'topic', '') || ' ' || COALESCE(note->>'content', ''))
				@@ plainto_tsquery('english', $2)`, where)

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", base)
	dataSQL := fmt.Sprintf(`SELECT story_id, story_title, note_id, topic, snippet
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`, base, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.StoryID, &r.StoryTitle, &r.NoteID, &r.Topic, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every research note for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]NoteRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT st.owner_id, st.id, st.title,
			note->>'id', COALESCE(note->>'topic', ''), COALESCE(note->>'content', ''),
			COALESCE(note->'tags', '[]'::jsonb)
		FROM stories st,
			jsonb_array_elements(COALESCE(st.document->'researchNotes', '[]'::jsonb)) AS note
	`)
	if err != nil {
		return nil, fmt.Errorf("load research notes: %w", err)
	}
	defer rows.Close()

	notes := make([]NoteRecord, 0)
	for rows.Next() {
		var n NoteRecord
		var tags []byte
		if err := rows.Scan(&n.OwnerID, &n.StoryID, &n.StoryTitle, &n.ID, &n.Topic, &n.Content, &tags); err != nil {
			return nil, fmt.Errorf("scan research note: %w", err)
		}
		if err := json.Unmarshal(tags, &n.Tags); err != nil {
			return nil, fmt.Errorf("decode note tags: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate research notes: %w", err)
	}
	return notes, nil
}
