package restaurant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
)

// BunRepository is the Postgres backed catalog.
type BunRepository struct {
	db *bun.DB
}

var _ Lookup = (*BunRepository)(nil)

func NewBunRepository(db *bun.DB) *BunRepository {
	return &BunRepository{db: db}
}

func (r *BunRepository) CreateSchema(ctx context.Context) error {
	if _, err := r.db.NewCreateTable().Model((*Restaurant)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create restaurants table: %w", err)
	}
	if _, err := r.db.NewCreateIndex().
		Model((*Restaurant)(nil)).
		Index("restaurants_city_idx").
		IfNotExists().
		ColumnExpr("lower(city)").
		Exec(ctx); err != nil {
		return fmt.Errorf("create restaurants city index: %w", err)
	}
	return nil
}

// Upsert inserts or refreshes restaurants keyed by business id.
func (r *BunRepository) Upsert(ctx context.Context, items []Restaurant) error {
	if len(items) == 0 {
		return nil
	}
	_, err := r.db.NewInsert().
		Model(&items).
		On("CONFLICT (business_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("address = EXCLUDED.address").
		Set("city = EXCLUDED.city").
		Set("state = EXCLUDED.state").
		Set("postal_code = EXCLUDED.postal_code").
		Set("latitude = EXCLUDED.latitude").
		Set("longitude = EXCLUDED.longitude").
		Set("stars = EXCLUDED.stars").
		Set("review_count = EXCLUDED.review_count").
		Set("is_open = EXCLUDED.is_open").
		Set("categories = EXCLUDED.categories").
		Set("attributes = EXCLUDED.attributes").
		Set("hours = EXCLUDED.hours").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert restaurants: %w", err)
	}
	return nil
}

func (r *BunRepository) Search(ctx context.Context, f Filter) ([]Restaurant, error) {
	var out []Restaurant
	if err := r.searchQuery(&out, f).Scan(ctx); err != nil {
		return nil, fmt.Errorf("search restaurants: %w", err)
	}
	return out, nil
}

func (r *BunRepository) GetByID(ctx context.Context, id string) (*Restaurant, error) {
	var out Restaurant
	err := r.db.NewSelect().Model(&out).Where("r.business_id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id=%s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get restaurant by id: %w", err)
	}
	return &out, nil
}

func (r *BunRepository) GetByName(ctx context.Context, name, city string) (*Restaurant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrNotFound)
	}
	var out Restaurant
	err := r.byNameQuery(&out, name, city).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: name=%q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get restaurant by name: %w", err)
	}
	return &out, nil
}

func (r *BunRepository) searchQuery(dest *[]Restaurant, f Filter) *bun.SelectQuery {
	q := r.db.NewSelect().Model(dest)

	if c := strings.TrimSpace(f.Cuisine); c != "" {
		pattern := "%" + c + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("r.categories ILIKE ?", pattern).WhereOr("r.name ILIKE ?", pattern)
		})
	}
	if c := strings.TrimSpace(f.City); c != "" {
		q = q.Where("lower(r.city) = lower(?)", c)
	}
	if s := strings.TrimSpace(f.State); s != "" {
		q = q.Where("upper(r.state) = upper(?)", s)
	}
	if f.MinStars > 0 {
		q = q.Where("r.stars >= ?", f.MinStars)
	}
	if f.MaxPrice > 0 {
		tiers := make([]string, 0, f.MaxPrice)
		for i := 1; i <= f.MaxPrice; i++ {
			tiers = append(tiers, strconv.Itoa(i))
		}
		q = q.Where("r.attributes->>? IN (?)", AttrPriceRange, bun.In(tiers))
	}
	for _, a := range f.Amenities {
		key, ok := amenityAttributes[a]
		if !ok {
			continue
		}
		if a == AmenityWiFi {
			q = q.Where("r.attributes->>? ILIKE '%free%'", key)
			continue
		}
		q = q.Where("r.attributes->>? = 'True'", key)
	}

	return q.OrderExpr("r.stars DESC, r.review_count DESC").Limit(f.limit())
}

func (r *BunRepository) byNameQuery(dest *Restaurant, name, city string) *bun.SelectQuery {
	q := r.db.NewSelect().Model(dest).Where("r.name ILIKE ?", "%"+name+"%")
	if c := strings.TrimSpace(city); c != "" {
		q = q.Where("lower(r.city) = lower(?)", c)
	}
	return q.OrderExpr("r.review_count DESC, r.business_id ASC").Limit(1)
}
