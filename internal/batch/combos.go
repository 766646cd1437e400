package batch

import (
	"fmt"
	"strings"

	"github.com/akontos/redditcorpus/internal/crawler"
)

// Combo is one (listing, timefilter) combination the orchestrator runs.
type Combo struct {
	Listing    string `json:"listing"`
	TimeFilter string `json:"timefilter,omitempty"`
}

// String renders the combo as listing[:timefilter].
func (c Combo) String() string {
	if c.TimeFilter == "" {
		return c.Listing
	}
	return c.Listing + ":" + c.TimeFilter
}

// ParseCombos parses listing[:timefilter] tokens, validating each against
// the closed listing set.
func ParseCombos(tokens []string) ([]Combo, error) {
	combos := make([]Combo, 0, len(tokens))
	for _, token := range tokens {
		listing, tf, _ := strings.Cut(strings.TrimSpace(token), ":")
		l, err := crawler.NewListing(listing, tf)
		if err != nil {
			return nil, fmt.Errorf("combo %q: %w", token, err)
		}
		combos = append(combos, Combo{Listing: l.Name, TimeFilter: l.TimeFilter})
	}
	if len(combos) == 0 {
		return nil, fmt.Errorf("no combinations given")
	}
	return combos, nil
}

// DefaultCombos returns the full coverage set: every windowless listing plus
// top and controversial over every time window.
func DefaultCombos() []Combo {
	combos := []Combo{
		{Listing: crawler.ListingNew},
		{Listing: crawler.ListingHot},
		{Listing: crawler.ListingRising},
		{Listing: crawler.ListingBest},
	}
	windows := []string{"hour", "day", "week", "month", "year", "all"}
	for _, tf := range windows {
		combos = append(combos, Combo{Listing: crawler.ListingTop, TimeFilter: tf})
	}
	for _, tf := range windows {
		combos = append(combos, Combo{Listing: crawler.ListingControversial, TimeFilter: tf})
	}
	return combos
}
