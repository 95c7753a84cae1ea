package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PgFTS implements Searcher using PostgreSQL full-text search as the
// fallback when Meilisearch is absent or down.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search ranks drafts with plainto_tsquery/ts_rank and builds snippets
// with ts_headline.
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	where := `to_tsvector('english', title || ' ' || content) @@ plainto_tsquery('english', $1)`
	args := []any{q.Text}
	if q.OwnerID != "" {
		where += " AND owner_id = $2"
		args = append(args, q.OwnerID)
	}

	countSQL := "SELECT count(*) FROM drafts WHERE " + where
	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT id, title, status,
			ts_headline('english', content, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM drafts
		WHERE %s
		ORDER BY ts_rank(to_tsvector('english', title || ' ' || content), plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, limit)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Status, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords reads every draft for reindexing into Meilisearch.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]DraftRecord, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, owner_id, title, content, status FROM drafts`)
	if err != nil {
		return nil, fmt.Errorf("load drafts for reindex: %w", err)
	}
	defer rows.Close()

	records := make([]DraftRecord, 0)
	for rows.Next() {
		var r DraftRecord
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Title, &r.Content, &r.Status); err != nil {
			return nil, fmt.Errorf("scan draft record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
