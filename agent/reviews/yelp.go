package reviews

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	maxYelpLineBytes = 1 << 20
	yelpDateLayout   = "2006-01-02 15:04:05"
)

// YelpReview is one line of the Yelp open dataset review file.
type YelpReview struct {
	ReviewID   string  `json:"review_id"`
	BusinessID string  `json:"business_id"`
	Stars      float64 `json:"stars"`
	Useful     int     `json:"useful"`
	Text       string  `json:"text"`
	Date       string  `json:"date"`
}

func (y YelpReview) Review() Review {
	r := Review{
		ReviewID:   y.ReviewID,
		BusinessID: y.BusinessID,
		Stars:      y.Stars,
		Useful:     y.Useful,
		Text:       strings.TrimSpace(y.Text),
	}
	if t, err := time.Parse(yelpDateLayout, y.Date); err == nil {
		r.Date = t
	}
	return r
}

// ScanYelpReviews streams the review file in batches. Reviews for which keep
// returns false are skipped; a nil keep accepts everything.
func ScanYelpReviews(r io.Reader, keep func(businessID string) bool, batchSize int, fn func([]Review) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxYelpLineBytes)

	batch := make([]Review, 0, batchSize)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var y YelpReview
		if err := json.Unmarshal([]byte(raw), &y); err != nil {
			return fmt.Errorf("decode yelp review line=%d: %w", line, err)
		}
		if keep != nil && !keep(y.BusinessID) {
			continue
		}
		batch = append(batch, y.Review())
		if len(batch) == batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]Review, 0, batchSize)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read yelp review file: %w", err)
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
