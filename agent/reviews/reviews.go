// Package reviews provides semantic search over restaurant reviews.
package reviews

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const (
	DefaultTopK    = 5
	MaxTopK        = 20
	excerptLength  = 280
	EmbeddingModel = "text-embedding-3-small"
	Dimensions     = 1536
)

var ErrNoEmbedder = errors.New("reviews: query text given but no embedder configured")

type Review struct {
	bun.BaseModel `bun:"table:reviews,alias:rv"`

	ReviewID   string    `bun:"review_id,pk" json:"review_id"`
	BusinessID string    `bun:"business_id,notnull" json:"business_id"`
	Stars      float64   `bun:"stars" json:"stars"`
	Useful     int       `bun:"useful" json:"useful"`
	Text       string    `bun:"text" json:"text"`
	Date       time.Time `bun:"date" json:"date"`
	Embedding  Vector    `bun:"embedding,type:vector(1536),nullzero" json:"-"`

	Score float64 `bun:"score,scanonly" json:"-"`
}

// Summary is the shape returned to callers.
type Summary struct {
	ReviewID string  `json:"review_id"`
	Stars    float64 `json:"stars"`
	Date     string  `json:"date,omitempty"`
	Excerpt  string  `json:"excerpt"`
	Score    float64 `json:"score,omitempty"`
}

func (r Review) Summary() Summary {
	s := Summary{
		ReviewID: r.ReviewID,
		Stars:    r.Stars,
		Excerpt:  excerpt(r.Text, excerptLength),
		Score:    r.Score,
	}
	if !r.Date.IsZero() {
		s.Date = r.Date.Format("2006-01-02")
	}
	return s
}

type Query struct {
	BusinessID string
	Text       string
	TopK       int
	MinStars   float64
}

func (q Query) limit() int {
	switch {
	case q.TopK <= 0:
		return DefaultTopK
	case q.TopK > MaxTopK:
		return MaxTopK
	default:
		return q.TopK
	}
}

// Searcher returns the top-k reviews of one restaurant, ranked by similarity
// to Text when given and by usefulness otherwise.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Summary, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Vector is a pgvector value encoded in its text form "[1,2,3]".
type Vector []float64

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	sb.WriteByte(']')
	return sb.String(), nil
}

func (v *Vector) Scan(src any) error {
	var raw string
	switch t := src.(type) {
	case nil:
		*v = nil
		return nil
	case string:
		raw = t
	case []byte:
		raw = string(t)
	default:
		return fmt.Errorf("reviews: cannot scan %T into Vector", src)
	}

	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		*v = Vector{}
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make(Vector, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fmt.Errorf("reviews: parse vector: %w", err)
		}
		out = append(out, f)
	}
	*v = out
	return nil
}

func excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
