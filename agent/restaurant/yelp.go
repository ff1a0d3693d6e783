package restaurant

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	hoursx "github.com/tanpawarit/bitebot/agent/hours"
)

// YelpBusiness is one line of the Yelp open dataset business file.
type YelpBusiness struct {
	BusinessID  string         `json:"business_id"`
	Name        string         `json:"name"`
	Address     string         `json:"address"`
	City        string         `json:"city"`
	State       string         `json:"state"`
	PostalCode  string         `json:"postal_code"`
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	Stars       float64        `json:"stars"`
	ReviewCount int            `json:"review_count"`
	IsOpen      int            `json:"is_open"`
	Attributes  map[string]any `json:"attributes"`
	Categories  *string        `json:"categories"`
	Hours       hoursx.Week    `json:"hours"`
}

func (b YelpBusiness) IsRestaurant() bool {
	return b.Categories != nil && strings.Contains(*b.Categories, "Restaurants")
}

func (b YelpBusiness) Restaurant() Restaurant {
	var categories string
	if b.Categories != nil {
		categories = *b.Categories
	}
	return Restaurant{
		BusinessID:  b.BusinessID,
		Name:        b.Name,
		Address:     b.Address,
		City:        b.City,
		State:       b.State,
		PostalCode:  b.PostalCode,
		Latitude:    b.Latitude,
		Longitude:   b.Longitude,
		Stars:       b.Stars,
		ReviewCount: b.ReviewCount,
		IsOpen:      b.IsOpen == 1,
		Categories:  categories,
		Attributes:  b.Attributes,
		Hours:       b.Hours,
	}
}

const maxYelpLineBytes = 4 << 20

// LoadYelpJSONL reads a Yelp business JSONL stream and keeps restaurants only.
func LoadYelpJSONL(r io.Reader) ([]Restaurant, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxYelpLineBytes)

	var out []Restaurant
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var b YelpBusiness
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("decode yelp business line=%d: %w", line, err)
		}
		if !b.IsRestaurant() {
			continue
		}
		out = append(out, b.Restaurant())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read yelp business file: %w", err)
	}
	return out, nil
}
