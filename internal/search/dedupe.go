package search

import (
	"strings"

	"github.com/JakeFAU/jobscout/internal/jobs"
)

const (
	titleKeyRunes   = 50
	companyKeyRunes = 30
)

type dedupeKey struct {
	title   string
	company string
}

func keyFor(l jobs.Listing) dedupeKey {
	return dedupeKey{
		title:   prefix(strings.ToLower(l.Title), titleKeyRunes),
		company: prefix(strings.ToLower(l.Company), companyKeyRunes),
	}
}

func prefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Dedupe drops listings whose lowercased title and company prefixes were
// already seen. The first occurrence wins and relative order is kept.
func Dedupe(listings []jobs.Listing) []jobs.Listing {
	seen := make(map[dedupeKey]struct{}, len(listings))
	out := make([]jobs.Listing, 0, len(listings))
	for _, l := range listings {
		k := keyFor(l)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, l)
	}
	return out
}
