// Package jobs defines core types shared across the search pipeline.
package jobs

import (
	"fmt"
	"net/url"
	"strings"
)

// SourceName identifies the job board a listing came from.
type SourceName string

// Known job board sources.
const (
	SourceLinkedIn     SourceName = "LinkedIn"
	SourceIndeed       SourceName = "Indeed"
	SourceComputrabajo SourceName = "Computrabajo"
	SourceOCC          SourceName = "OCC Mundial"
)

// UnknownCompany is used when a posting does not expose its employer.
const UnknownCompany = "Empresa confidencial"

// DefaultLocation is applied when a caller does not pass a location.
const DefaultLocation = "México"

// Listing is one discovered job posting. It is treated as an immutable value.
type Listing struct {
	Title    string     `json:"title"`
	Company  string     `json:"company"`
	Location string     `json:"location"`
	Link     string     `json:"link"`
	Source   SourceName `json:"source"`
}

// NewListing validates the required fields and fills placeholders for the rest.
// fallbackLocation is used when location is blank.
func NewListing(title, company, location, link string, source SourceName, fallbackLocation string) (Listing, error) {
	title = cleanText(title)
	link = strings.TrimSpace(link)
	if title == "" {
		return Listing{}, fmt.Errorf("%w: title is required", ErrInvalidListing)
	}
	if link == "" {
		return Listing{}, fmt.Errorf("%w: link is required", ErrInvalidListing)
	}
	u, err := url.Parse(link)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return Listing{}, fmt.Errorf("%w: link %q is not an absolute URL", ErrInvalidListing, link)
	}
	company = cleanText(company)
	if company == "" {
		company = UnknownCompany
	}
	location = cleanText(location)
	if location == "" {
		location = fallbackLocation
	}
	return Listing{
		Title:    title,
		Company:  company,
		Location: location,
		Link:     link,
		Source:   source,
	}, nil
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Query identifies one search request.
type Query struct {
	Career   string `json:"career"`
	Location string `json:"location"`
}

// Career describes a searchable career category.
type Career struct {
	Keywords []string `json:"keywords" mapstructure:"keywords"`
	Icon     string   `json:"icon" mapstructure:"icon"`
}

// PrimaryKeyword returns the keyword that is dispatched to the sources.
// Only the first configured keyword is searched.
func (c Career) PrimaryKeyword() string {
	if len(c.Keywords) == 0 {
		return ""
	}
	return c.Keywords[0]
}

// CacheStats summarizes the cache for the stats endpoint.
type CacheStats struct {
	Entries    int64 `json:"entries"`
	TTLMinutes int   `json:"ttl_minutes"`
}
