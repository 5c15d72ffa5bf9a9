package sources

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobscout/internal/jobs"
)

// NewLinkedIn searches LinkedIn's public job listings posted in the last 24 hours.
func NewLinkedIn(fetcher jobs.Fetcher, logger *zap.Logger) *Adapter {
	return newAdapter(site{
		name:   jobs.SourceLinkedIn,
		origin: "https://www.linkedin.com",
		searchURL: func(keyword, location string) string {
			return fmt.Sprintf(
				"https://www.linkedin.com/jobs/search?keywords=%s&location=%s&f_TPR=r86400&position=1&pageNum=0",
				queryEscape(keyword), queryEscape(location),
			)
		},
		selectors: selectors{
			Cards:    []string{"div.base-card", "div.job-search-card", "li.jobs-search-results__list-item"},
			Title:    []string{"h3.base-search-card__title", "h3.job-search-card__title", "a.job-card-list__title"},
			Company:  []string{"h4.base-search-card__subtitle", "h4.job-search-card__subtitle", "a.job-card-container__company-name"},
			Location: []string{"span.job-search-card__location", "span.job-result-card__location"},
			Link:     []string{"a.base-card__full-link", "a.job-search-card__link-wrapper", `a[href*="/jobs/view/"]`},
		},
		stripQuery: true,
	}, fetcher, logger)
}

// NewIndeed searches Indeed México sorted by date, last 7 days.
func NewIndeed(fetcher jobs.Fetcher, logger *zap.Logger) *Adapter {
	return newAdapter(site{
		name:   jobs.SourceIndeed,
		origin: "https://mx.indeed.com",
		searchURL: func(keyword, location string) string {
			return fmt.Sprintf(
				"https://mx.indeed.com/jobs?q=%s&l=%s&sort=date&fromage=7",
				queryEscape(keyword), queryEscape(location),
			)
		},
		selectors: selectors{
			Cards:    []string{"div.job_seen_beacon", "div.jobsearch-ResultsList > div", "td.resultContent"},
			Title:    []string{"h2.jobTitle span[title]", "h2.jobTitle a", "a.jcs-JobTitle"},
			Company:  []string{"span.companyName", `span[data-testid="company-name"]`},
			Location: []string{"div.companyLocation", `div[data-testid="text-location"]`},
			Link:     []string{`a[id^="job_"]`, "a.jcs-JobTitle", "h2.jobTitle a"},
		},
	}, fetcher, logger)
}

// NewComputrabajo searches Computrabajo México. The board only filters by keyword.
func NewComputrabajo(fetcher jobs.Fetcher, logger *zap.Logger) *Adapter {
	return newAdapter(site{
		name:   jobs.SourceComputrabajo,
		origin: "https://www.computrabajo.com.mx",
		searchURL: func(keyword, _ string) string {
			return "https://www.computrabajo.com.mx/trabajo-de-" + slug(keyword)
		},
		selectors: selectors{
			Cards:    []string{"article.box_offer", "div.job_item", "article[data-id]"},
			Title:    []string{"h2 a", "a.js-o-link", "h1.fwB"},
			Company:  []string{"p.fs16.fc_base", "span.enterprise", "a.fc_aux"},
			Location: []string{"span.location", "p.fs13 span"},
			Link:     []string{`a[href*="/ofertas-de-trabajo/"]`, "h2 a"},
		},
	}, fetcher, logger)
}

// NewOCC searches OCC Mundial. The board only filters by keyword.
func NewOCC(fetcher jobs.Fetcher, logger *zap.Logger) *Adapter {
	return newAdapter(site{
		name:   jobs.SourceOCC,
		origin: "https://www.occ.com.mx",
		searchURL: func(keyword, _ string) string {
			return "https://www.occ.com.mx/empleos/de-" + slug(keyword) + "/"
		},
		selectors: selectors{
			Cards:    []string{"div.job-card", "article.job", `div[class*="jobCard"]`},
			Title:    []string{"h2 a", "a.job-title", "h3.title"},
			Company:  []string{"span.company", "div.company-name", "p.company"},
			Location: []string{"span.location", "div.location"},
			Link:     []string{`a[href*="/empleo/"]`},
		},
	}, fetcher, logger)
}
