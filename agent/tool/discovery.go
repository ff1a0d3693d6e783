package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	bookingx "github.com/tanpawarit/bitebot/agent/booking"
	contractx "github.com/tanpawarit/bitebot/agent/contract"
	hoursx "github.com/tanpawarit/bitebot/agent/hours"
	restaurantx "github.com/tanpawarit/bitebot/agent/restaurant"
	reviewsx "github.com/tanpawarit/bitebot/agent/reviews"
)

type searchArgs struct {
	Cuisine   string   `json:"cuisine"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	MinRating float64  `json:"min_rating"`
	MaxPrice  int      `json:"max_price"`
	Amenities []string `json:"amenities"`
	Limit     int      `json:"limit"`
}

type restaurantArgs struct {
	RestaurantName string `json:"restaurant_name"`
	RestaurantID   string `json:"restaurant_id"`
	City           string `json:"city"`
}

func (a restaurantArgs) ref() bookingx.RestaurantRef {
	return bookingx.RestaurantRef{
		BusinessID: strings.TrimSpace(a.RestaurantID),
		Name:       strings.TrimSpace(a.RestaurantName),
		City:       strings.TrimSpace(a.City),
	}
}

type availabilityArgs struct {
	RestaurantName string `json:"restaurant_name"`
	RestaurantID   string `json:"restaurant_id"`
	City           string `json:"city"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	PartySize      int    `json:"party_size"`
}

// reservationArgs accepts date, time and party size only to ignore them: the
// booked slot always comes from the session's availability token.
type reservationArgs struct {
	CustomerName    string `json:"customer_name"`
	RestaurantName  string `json:"restaurant_name"`
	RestaurantID    string `json:"restaurant_id"`
	City            string `json:"city"`
	CustomerPhone   string `json:"customer_phone"`
	SpecialRequests string `json:"special_requests"`

	Date      json.RawMessage `json:"date"`
	Time      json.RawMessage `json:"time"`
	PartySize json.RawMessage `json:"party_size"`
}

func (a reservationArgs) slotSupplied() bool {
	return len(a.Date) > 0 || len(a.Time) > 0 || len(a.PartySize) > 0
}

type reviewArgs struct {
	RestaurantName string  `json:"restaurant_name"`
	RestaurantID   string  `json:"restaurant_id"`
	City           string  `json:"city"`
	Query          string  `json:"query"`
	TopK           int     `json:"top_k"`
	MinStars       float64 `json:"min_stars"`
}

var restaurantParams = map[string]*schema.ParameterInfo{
	"restaurant_name": {Type: schema.String, Desc: "Restaurant name as the user said it"},
	"restaurant_id":   {Type: schema.String, Desc: "Restaurant id from an earlier search result, preferred over the name"},
	"city":            {Type: schema.String, Desc: "City, to disambiguate restaurants with the same name"},
}

func withRestaurantParams(extra map[string]*schema.ParameterInfo) map[string]*schema.ParameterInfo {
	out := make(map[string]*schema.ParameterInfo, len(restaurantParams)+len(extra))
	for k, v := range restaurantParams {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func amenityNames() []string {
	all := restaurantx.Amenities()
	out := make([]string, 0, len(all))
	for _, a := range all {
		out = append(out, string(a))
	}
	return out
}

func (c *Catalog) registerDiscovery() {
	c.register(handler{
		agent: contractx.AgentTypeDiscovery,
		info: &schema.ToolInfo{
			Name: ToolSearchRestaurants,
			Desc: "Search restaurants by cuisine, location, minimum rating, price tier and amenities. Results are sorted by rating.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"cuisine":    {Type: schema.String, Desc: "Cuisine or category, e.g. Italian, sushi, vegan"},
				"city":       {Type: schema.String, Desc: "City name"},
				"state":      {Type: schema.String, Desc: "Two-letter state code"},
				"min_rating": {Type: schema.Number, Desc: "Minimum star rating from 0 to 5"},
				"max_price":  {Type: schema.Integer, Desc: "Maximum price tier from 1 ($) to 4 ($$$$)"},
				"amenities": {
					Type:     schema.Array,
					Desc:     "Required amenities",
					ElemInfo: &schema.ParameterInfo{Type: schema.String, Enum: amenityNames()},
				},
				"limit": {Type: schema.Integer, Desc: "Maximum number of results, default 10"},
			}),
		},
		run: c.searchRestaurants,
	})

	c.register(handler{
		agent: contractx.AgentTypeDiscovery,
		info: &schema.ToolInfo{
			Name:        ToolGetRestaurantDetails,
			Desc:        "Get address, rating, price tier, amenities, reservation policy and weekly opening hours of one restaurant.",
			ParamsOneOf: schema.NewParamsOneOfByParams(withRestaurantParams(nil)),
		},
		run: c.restaurantDetails,
	})

	c.register(handler{
		agent: contractx.AgentTypeDiscovery,
		info: &schema.ToolInfo{
			Name: ToolCheckAvailability,
			Desc: "Check that a restaurant is open and takes reservations for a date, time and party size. Required before make_reservation. Without date and time it reports whether the restaurant is open now.",
			ParamsOneOf: schema.NewParamsOneOfByParams(withRestaurantParams(map[string]*schema.ParameterInfo{
				"date":       {Type: schema.String, Desc: "Date in the user's words, e.g. tomorrow, Friday, next Saturday, 2026-10-16"},
				"time":       {Type: schema.String, Desc: "Time in the user's words, e.g. 7pm, 19:30"},
				"party_size": {Type: schema.Integer, Desc: "Number of guests, default 2"},
			})),
		},
		run: c.checkAvailability,
	})

	c.register(handler{
		agent: contractx.AgentTypeDiscovery,
		info: &schema.ToolInfo{
			Name: ToolMakeReservation,
			Desc: "Book the date, time and party size confirmed by the most recent successful check_availability call.",
			ParamsOneOf: schema.NewParamsOneOfByParams(withRestaurantParams(map[string]*schema.ParameterInfo{
				"customer_name":    {Type: schema.String, Desc: "The customer's real full name", Required: true},
				"customer_phone":   {Type: schema.String, Desc: "Contact phone number"},
				"special_requests": {Type: schema.String, Desc: "Dietary needs, occasion or seating preferences"},
			})),
		},
		hint: "Date, time and party size are taken from the last successful check_availability call; do not pass them",
		run:  c.makeReservation,
	})

	c.register(handler{
		agent: contractx.AgentTypeDiscovery,
		info: &schema.ToolInfo{
			Name: ToolGetRestaurantReviews,
			Desc: "Read diner reviews of a restaurant, optionally the ones most relevant to a topic such as service or desserts.",
			ParamsOneOf: schema.NewParamsOneOfByParams(withRestaurantParams(map[string]*schema.ParameterInfo{
				"query":     {Type: schema.String, Desc: "Topic to look for in reviews"},
				"top_k":     {Type: schema.Integer, Desc: "Number of reviews, default 5"},
				"min_stars": {Type: schema.Number, Desc: "Only reviews with at least this many stars"},
			})),
		},
		run: c.restaurantReviews,
	})
}

func (c *Catalog) searchRestaurants(ctx context.Context, _ string, raw string) (string, error) {
	args, err := decodeArgs[searchArgs](ToolSearchRestaurants, raw)
	if err != nil {
		return "", err
	}
	if args.MinRating < 0 || args.MinRating > 5 {
		return "", fmt.Errorf("%w for %s: min_rating must be between 0 and 5", contractx.ErrToolArguments, ToolSearchRestaurants)
	}
	if args.MaxPrice < 0 || args.MaxPrice > 4 {
		return "", fmt.Errorf("%w for %s: max_price must be between 1 and 4", contractx.ErrToolArguments, ToolSearchRestaurants)
	}
	if args.Limit < 0 || args.Limit > 20 {
		return "", fmt.Errorf("%w for %s: limit must be between 1 and 20", contractx.ErrToolArguments, ToolSearchRestaurants)
	}

	filter := restaurantx.Filter{
		Cuisine:  strings.TrimSpace(args.Cuisine),
		City:     strings.TrimSpace(args.City),
		State:    strings.TrimSpace(args.State),
		MinStars: args.MinRating,
		MaxPrice: args.MaxPrice,
		Limit:    args.Limit,
	}
	for _, raw := range args.Amenities {
		a, err := restaurantx.ParseAmenity(raw)
		if err != nil {
			return "", fmt.Errorf("%w for %s: %v (supported: %s)", contractx.ErrToolArguments, ToolSearchRestaurants, err, strings.Join(amenityNames(), ", "))
		}
		filter.Amenities = append(filter.Amenities, a)
	}

	found, err := c.deps.Restaurants.Search(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("search restaurants: %w", err)
	}
	if len(found) == 0 {
		return "No restaurants matched those criteria. Try a broader cuisine, another city or fewer filters.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d restaurant(s):\n", len(found))
	for i := range found {
		r := &found[i]
		fmt.Fprintf(&sb, "%d. %s (id: %s) - %.1f stars, %d reviews%s\n", i+1, r.Name, r.BusinessID, r.Stars, r.ReviewCount, priceSuffix(r))
		fmt.Fprintf(&sb, "   %s\n", r.FullAddress())
		if r.Categories != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Categories)
		}
		if r.AcceptsReservations() {
			sb.WriteString("   Takes reservations\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (c *Catalog) restaurantDetails(ctx context.Context, _ string, raw string) (string, error) {
	args, err := decodeArgs[restaurantArgs](ToolGetRestaurantDetails, raw)
	if err != nil {
		return "", err
	}
	r, err := bookingx.Resolve(ctx, c.deps.Restaurants, args.ref())
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (id: %s)\n", r.Name, r.BusinessID)
	fmt.Fprintf(&sb, "Address: %s\n", r.FullAddress())
	fmt.Fprintf(&sb, "Rating: %.1f stars from %d reviews\n", r.Stars, r.ReviewCount)
	if tier := r.PriceTier(); tier > 0 {
		fmt.Fprintf(&sb, "Price: %s\n", strings.Repeat("$", tier))
	}
	if r.Categories != "" {
		fmt.Fprintf(&sb, "Categories: %s\n", r.Categories)
	}
	if r.AcceptsReservations() {
		sb.WriteString("Reservations: accepted\n")
	} else {
		sb.WriteString("Reservations: not accepted (walk-in only)\n")
	}

	var amenities []string
	for _, a := range restaurantx.Amenities() {
		if a != restaurantx.AmenityReservations && r.HasAmenity(a) {
			amenities = append(amenities, strings.ReplaceAll(string(a), "_", " "))
		}
	}
	if len(amenities) > 0 {
		fmt.Fprintf(&sb, "Amenities: %s\n", strings.Join(amenities, ", "))
	}
	if !r.IsOpen {
		sb.WriteString("Note: this business is marked as permanently closed.\n")
	}

	_, status := hoursx.IsOpenAt(r.Hours, c.deps.Now())
	fmt.Fprintf(&sb, "Status: %s\n", status)
	sb.WriteString("Hours:\n")
	for _, wd := range weekOrder {
		fmt.Fprintf(&sb, "  %s: %s\n", wd, hoursx.Describe(r.Hours, wd))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (c *Catalog) checkAvailability(ctx context.Context, sessionID string, raw string) (string, error) {
	args, err := decodeArgs[availabilityArgs](ToolCheckAvailability, raw)
	if err != nil {
		return "", err
	}
	ref := restaurantArgs{RestaurantName: args.RestaurantName, RestaurantID: args.RestaurantID, City: args.City}.ref()
	res, err := c.deps.Checker.Check(ctx, sessionID, bookingx.AvailabilityRequest{
		Restaurant: ref,
		Date:       args.Date,
		Time:       args.Time,
		PartySize:  args.PartySize,
	})
	if err != nil {
		return "", err
	}
	return res.Message, nil
}

func (c *Catalog) makeReservation(ctx context.Context, sessionID string, raw string) (string, error) {
	args, err := decodeArgs[reservationArgs](ToolMakeReservation, raw)
	if err != nil {
		return "", err
	}
	if args.slotSupplied() {
		log.Debug().Str("session_id", sessionID).Msg("make_reservation slot arguments ignored")
	}
	ref := restaurantArgs{RestaurantName: args.RestaurantName, RestaurantID: args.RestaurantID, City: args.City}.ref()
	out, err := c.deps.Committer.Commit(ctx, sessionID, bookingx.CommitRequest{
		CustomerName:    args.CustomerName,
		Restaurant:      ref,
		CustomerPhone:   args.CustomerPhone,
		SpecialRequests: args.SpecialRequests,
	})
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Catalog) restaurantReviews(ctx context.Context, _ string, raw string) (string, error) {
	args, err := decodeArgs[reviewArgs](ToolGetRestaurantReviews, raw)
	if err != nil {
		return "", err
	}
	if c.deps.Reviews == nil {
		return "Reviews are not available right now.", nil
	}
	if args.TopK < 0 || args.TopK > reviewsx.MaxTopK {
		return "", fmt.Errorf("%w for %s: top_k must be between 1 and %d", contractx.ErrToolArguments, ToolGetRestaurantReviews, reviewsx.MaxTopK)
	}

	ref := restaurantArgs{RestaurantName: args.RestaurantName, RestaurantID: args.RestaurantID, City: args.City}.ref()
	r, err := bookingx.Resolve(ctx, c.deps.Restaurants, ref)
	if err != nil {
		return "", err
	}

	found, err := c.deps.Reviews.Search(ctx, reviewsx.Query{
		BusinessID: r.BusinessID,
		Text:       strings.TrimSpace(args.Query),
		TopK:       args.TopK,
		MinStars:   args.MinStars,
	})
	if err != nil {
		return "", fmt.Errorf("search reviews: %w", err)
	}
	if len(found) == 0 {
		if args.Query != "" {
			return fmt.Sprintf("No reviews of %s mention %q.", r.Name, args.Query), nil
		}
		return fmt.Sprintf("No reviews found for %s.", r.Name), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Reviews of %s:\n", r.Name)
	for i, rv := range found {
		fmt.Fprintf(&sb, "%d. %.0f stars", i+1, rv.Stars)
		if rv.Date != "" {
			fmt.Fprintf(&sb, " (%s)", rv.Date)
		}
		fmt.Fprintf(&sb, ": %s\n", rv.Excerpt)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func priceSuffix(r *restaurantx.Restaurant) string {
	if tier := r.PriceTier(); tier > 0 {
		return ", " + strings.Repeat("$", tier)
	}
	return ""
}
