package crawler

import (
	"fmt"
	"sort"
	"strings"
)

// Listing names one strategy from the closed listing set, plus its time
// window for the strategies that take one.
type Listing struct {
	Name       string
	TimeFilter string
}

// The closed set of listing strategies.
const (
	ListingNew           = "new"
	ListingHot           = "hot"
	ListingRising        = "rising"
	ListingBest          = "best"
	ListingTop           = "top"
	ListingControversial = "controversial"
)

// DefaultTimeFilter is applied when a windowed listing is requested without
// an explicit window.
const DefaultTimeFilter = "all"

var timeFilters = map[string]struct{}{
	"hour":  {},
	"day":   {},
	"week":  {},
	"month": {},
	"year":  {},
	"all":   {},
}

// RequiresTimeFilter reports whether the named listing takes a time window.
func RequiresTimeFilter(name string) bool {
	return name == ListingTop || name == ListingControversial
}

// NewListing validates the strategy name and normalizes the time window.
// Windowless listings ignore any supplied filter so that a base config with
// a leftover timefilter still drives, say, a "new" run.
func NewListing(name, timeFilter string) (Listing, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	switch name {
	case ListingNew, ListingHot, ListingRising, ListingBest:
		return Listing{Name: name}, nil
	case ListingTop, ListingControversial:
		tf := strings.TrimSpace(strings.ToLower(timeFilter))
		if tf == "" {
			tf = DefaultTimeFilter
		}
		if _, ok := timeFilters[tf]; !ok {
			return Listing{}, fmt.Errorf("invalid time filter %q for listing %q (want one of %s)",
				timeFilter, name, strings.Join(validTimeFilters(), ", "))
		}
		return Listing{Name: name, TimeFilter: tf}, nil
	default:
		return Listing{}, fmt.Errorf("unknown listing %q", name)
	}
}

func validTimeFilters() []string {
	out := make([]string, 0, len(timeFilters))
	for tf := range timeFilters {
		out = append(out, tf)
	}
	sort.Strings(out)
	return out
}

// String renders the listing as listing[:timefilter].
func (l Listing) String() string {
	if l.TimeFilter == "" {
		return l.Name
	}
	return l.Name + ":" + l.TimeFilter
}
