package reviews

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
)

// PGVectorSearcher searches the reviews table with pgvector cosine distance.
type PGVectorSearcher struct {
	db       *bun.DB
	embedder Embedder
}

var _ Searcher = (*PGVectorSearcher)(nil)

// NewPGVectorSearcher returns a searcher; embedder may be nil, in which case
// only usefulness ordering is available.
func NewPGVectorSearcher(db *bun.DB, embedder Embedder) *PGVectorSearcher {
	return &PGVectorSearcher{db: db, embedder: embedder}
}

func (s *PGVectorSearcher) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("reviews: create extension: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*Review)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("reviews: create table: %w", err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*Review)(nil)).
		Index("reviews_business_id_idx").
		Column("business_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("reviews: create index: %w", err)
	}
	return nil
}

func (s *PGVectorSearcher) Upsert(ctx context.Context, rows []Review) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (review_id) DO UPDATE").
		Set("stars = EXCLUDED.stars").
		Set("useful = EXCLUDED.useful").
		Set("text = EXCLUDED.text").
		Set("embedding = COALESCE(EXCLUDED.embedding, rv.embedding)").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reviews: upsert %d rows: %w", len(rows), err)
	}
	return nil
}

func (s *PGVectorSearcher) Search(ctx context.Context, q Query) ([]Summary, error) {
	var vec Vector
	if strings.TrimSpace(q.Text) != "" {
		if s.embedder == nil {
			return nil, ErrNoEmbedder
		}
		emb, err := s.embedder.Embed(ctx, q.Text)
		if err != nil {
			return nil, err
		}
		vec = emb
	}

	var rows []Review
	if err := s.searchQuery(q, vec, &rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("reviews: search business_id=%s: %w", q.BusinessID, err)
	}

	log.Debug().
		Str("business_id", q.BusinessID).
		Bool("semantic", vec != nil).
		Int("results", len(rows)).
		Msg("review search")

	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Summary())
	}
	return out, nil
}

func (s *PGVectorSearcher) searchQuery(q Query, vec Vector, dst *[]Review) *bun.SelectQuery {
	sel := s.db.NewSelect().
		Model(dst).
		Column("rv.review_id", "rv.business_id", "rv.stars", "rv.useful", "rv.text", "rv.date").
		Where("rv.business_id = ?", q.BusinessID)
	if q.MinStars > 0 {
		sel = sel.Where("rv.stars >= ?", q.MinStars)
	}
	if vec != nil {
		sel = sel.
			ColumnExpr("1 - (rv.embedding <=> ?::vector) AS score", vec).
			Where("rv.embedding IS NOT NULL").
			OrderExpr("rv.embedding <=> ?::vector", vec)
	} else {
		sel = sel.OrderExpr("rv.useful DESC, rv.date DESC")
	}
	return sel.Limit(q.limit())
}
