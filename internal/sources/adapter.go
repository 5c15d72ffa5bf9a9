// Package sources implements one adapter per supported job board.
package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobscout/internal/jobs"
)

// maxCards caps how many result cards are read per page.
const maxCards = 10

// selectors lists CSS alternatives per field. They form one selector group,
// so the element that comes first in the card wins regardless of which
// alternative matched it.
type selectors struct {
	Cards    []string
	Title    []string
	Company  []string
	Location []string
	Link     []string
}

type site struct {
	name       jobs.SourceName
	origin     string
	searchURL  func(keyword, location string) string
	selectors  selectors
	stripQuery bool
}

// Adapter scrapes one job board through a jobs.Fetcher.
type Adapter struct {
	site    site
	fetcher jobs.Fetcher
	logger  *zap.Logger
}

func newAdapter(s site, fetcher jobs.Fetcher, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		site:    s,
		fetcher: fetcher,
		logger:  logger.Named("sources").With(zap.String("source", string(s.name))),
	}
}

// Name returns the board name.
func (a *Adapter) Name() jobs.SourceName {
	return a.site.name
}

// SearchURL returns the page fetched for keyword and location.
func (a *Adapter) SearchURL(keyword, location string) string {
	return a.site.searchURL(keyword, location)
}

// Scrape fetches and parses the board's result page. Retrieval and parse
// failures are logged and yield an empty list. Only a finished context is
// reported as an error.
func (a *Adapter) Scrape(ctx context.Context, keyword, location string) ([]jobs.Listing, error) {
	target := a.SearchURL(keyword, location)
	a.logger.Info("scraping", zap.String("keyword", keyword), zap.String("location", location))

	body, err := a.fetcher.Fetch(ctx, target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", a.site.name, ctxErr)
		}
		a.logger.Warn("could not retrieve page", zap.String("url", target), zap.Error(err))
		return nil, nil
	}

	listings, err := parse(a.site, body, location, a.logger)
	if err != nil {
		a.logger.Error("could not parse page", zap.Error(err))
		return nil, nil
	}
	a.logger.Info("scraped", zap.Int("listings", len(listings)))
	return listings, nil
}

func parse(s site, body []byte, location string, logger *zap.Logger) ([]jobs.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	origin, err := url.Parse(s.origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}

	cards := doc.Find(strings.Join(s.selectors.Cards, ", "))
	listings := make([]jobs.Listing, 0, min(cards.Length(), maxCards))
	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		if i >= maxCards {
			return false
		}
		link := resolveLink(origin, attr(card, s.selectors.Link, "href"), s.stripQuery)
		listing, err := jobs.NewListing(
			text(card, s.selectors.Title),
			text(card, s.selectors.Company),
			text(card, s.selectors.Location),
			link,
			s.name,
			location,
		)
		if err != nil {
			logger.Debug("skipping card", zap.Int("index", i), zap.Error(err))
			return true
		}
		listings = append(listings, listing)
		return true
	})
	return listings, nil
}

// first returns the earliest element in document order that matches any of
// the alternatives.
func first(card *goquery.Selection, alternatives []string) *goquery.Selection {
	if len(alternatives) == 0 {
		return nil
	}
	found := card.Find(strings.Join(alternatives, ", ")).First()
	if found.Length() == 0 {
		return nil
	}
	return found
}

func text(card *goquery.Selection, alternatives []string) string {
	found := first(card, alternatives)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.Text())
}

func attr(card *goquery.Selection, alternatives []string, name string) string {
	found := first(card, alternatives)
	if found == nil {
		return ""
	}
	v, _ := found.Attr(name)
	return strings.TrimSpace(v)
}

func resolveLink(origin *url.URL, href string, stripQuery bool) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := origin.ResolveReference(ref)
	if stripQuery {
		abs.RawQuery = ""
		abs.ForceQuery = false
		abs.Fragment = ""
	}
	return abs.String()
}

// queryEscape encodes spaces as %20 rather than '+'.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func slug(keyword string) string {
	return url.PathEscape(strings.ReplaceAll(strings.TrimSpace(keyword), " ", "-"))
}

// All returns every adapter in dispatch order.
func All(fetcher jobs.Fetcher, logger *zap.Logger) []jobs.Source {
	return []jobs.Source{
		NewLinkedIn(fetcher, logger),
		NewIndeed(fetcher, logger),
		NewComputrabajo(fetcher, logger),
		NewOCC(fetcher, logger),
	}
}
