// Package restaurant is the read-only restaurant catalog used by discovery
// and booking.
package restaurant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/uptrace/bun"

	hoursx "github.com/tanpawarit/bitebot/agent/hours"
)

var ErrNotFound = errors.New("restaurant not found")

const (
	AttrReservations = "RestaurantsReservations"
	AttrPriceRange   = "RestaurantsPriceRange2"
)

type Restaurant struct {
	bun.BaseModel `bun:"table:restaurants,alias:r"`

	BusinessID  string         `bun:"business_id,pk" json:"business_id"`
	Name        string         `bun:"name,notnull" json:"name"`
	Address     string         `bun:"address" json:"address"`
	City        string         `bun:"city" json:"city"`
	State       string         `bun:"state" json:"state"`
	PostalCode  string         `bun:"postal_code" json:"postal_code"`
	Latitude    float64        `bun:"latitude" json:"latitude"`
	Longitude   float64        `bun:"longitude" json:"longitude"`
	Stars       float64        `bun:"stars" json:"stars"`
	ReviewCount int            `bun:"review_count" json:"review_count"`
	IsOpen      bool           `bun:"is_open" json:"is_open"`
	Categories  string         `bun:"categories" json:"categories"`
	Attributes  map[string]any `bun:"attributes,type:jsonb" json:"attributes,omitempty"`
	Hours       hoursx.Week    `bun:"hours,type:jsonb" json:"hours,omitempty"`
}

// AcceptsReservations reads the reservation flag from the attributes map.
// A missing flag means reservations are not taken.
func (r *Restaurant) AcceptsReservations() bool {
	return attrTrue(r.Attributes[AttrReservations])
}

// PriceTier returns 1-4, or 0 when unknown.
func (r *Restaurant) PriceTier() int {
	switch v := r.Attributes[AttrPriceRange].(type) {
	case string:
		n, err := strconv.Atoi(strings.Trim(v, "'\" "))
		if err != nil {
			return 0
		}
		return n
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (r *Restaurant) FullAddress() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{r.Address, r.City, strings.TrimSpace(r.State + " " + r.PostalCode)} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

func (r *Restaurant) HasAmenity(a Amenity) bool {
	key, ok := amenityAttributes[a]
	if !ok {
		return false
	}
	v := r.Attributes[key]
	if a == AmenityWiFi {
		s, _ := v.(string)
		return strings.Contains(strings.ToLower(s), "free")
	}
	return attrTrue(v)
}

type Amenity string

const (
	AmenityTakeout        Amenity = "takeout"
	AmenityDelivery       Amenity = "delivery"
	AmenityOutdoorSeating Amenity = "outdoor_seating"
	AmenityWheelchair     Amenity = "wheelchair"
	AmenityKids           Amenity = "kids"
	AmenityWiFi           Amenity = "wifi"
	AmenityReservations   Amenity = "reservations"
	AmenityGroups         Amenity = "groups"
)

var amenityAttributes = map[Amenity]string{
	AmenityTakeout:        "RestaurantsTakeOut",
	AmenityDelivery:       "RestaurantsDelivery",
	AmenityOutdoorSeating: "OutdoorSeating",
	AmenityWheelchair:     "WheelchairAccessible",
	AmenityKids:           "GoodForKids",
	AmenityWiFi:           "WiFi",
	AmenityReservations:   AttrReservations,
	AmenityGroups:         "RestaurantsGoodForGroups",
}

// Amenities lists the supported amenity filters in a stable order.
func Amenities() []Amenity {
	return []Amenity{
		AmenityTakeout, AmenityDelivery, AmenityOutdoorSeating, AmenityWheelchair,
		AmenityKids, AmenityWiFi, AmenityReservations, AmenityGroups,
	}
}

func ParseAmenity(raw string) (Amenity, error) {
	a := Amenity(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := amenityAttributes[a]; !ok {
		return "", fmt.Errorf("unknown amenity %q", raw)
	}
	return a, nil
}

const DefaultSearchLimit = 10

type Filter struct {
	Cuisine   string
	City      string
	State     string
	MinStars  float64
	MaxPrice  int
	Amenities []Amenity
	Limit     int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultSearchLimit
	}
	return f.Limit
}

// Lookup is the query contract of the restaurant catalog. Results of Search
// are ordered by stars, then review count, both descending.
type Lookup interface {
	Search(ctx context.Context, f Filter) ([]Restaurant, error)
	GetByID(ctx context.Context, id string) (*Restaurant, error)
	// GetByName does a case-insensitive substring match on name with an
	// optional exact city match and returns the first hit.
	GetByName(ctx context.Context, name, city string) (*Restaurant, error)
}

func attrTrue(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.Trim(t, "'\" "), "true")
	}
	return false
}
