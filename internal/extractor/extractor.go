// Package extractor turns rendered listing and detail pages into candidates.
package extractor

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jobharvest/harvester/internal/domain"
	"github.com/jobharvest/harvester/pkg/utils"
)

// Rules are the CSS selectors used on every source.
type Rules struct {
	Card        string
	Title       string
	Company     string
	DatePosted  string
	Link        string
	Description string
}

// DefaultRules match the class naming most job boards share.
var DefaultRules = Rules{
	Card:        "div[class*='job'], li[class*='job']",
	Title:       "a[class*='title'], h3",
	Company:     "span[class*='company']",
	DatePosted:  "time",
	Link:        "a[href]",
	Description: "div[class*='description']",
}

// Extractor applies Rules and the title pre-filter.
type Extractor struct {
	rules         Rules
	profile       domain.KeywordProfile
	maxCandidates int
	logger        *zap.Logger
}

// New returns an Extractor yielding at most maxCandidates per listing page.
func New(rules Rules, profile domain.KeywordProfile, maxCandidates int, logger *zap.Logger) *Extractor {
	return &Extractor{
		rules:         rules,
		profile:       profile,
		maxCandidates: maxCandidates,
		logger:        logger,
	}
}

// Listing parses a listing page and returns a lazy, single-use sequence of
// candidates whose title matches a target title and whose link resolves to an
// absolute URL. Ranging over it a second time yields nothing.
func (e *Extractor) Listing(html string, src domain.Source) (iter.Seq[domain.CandidateRef], error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing page for %s: %w", src.Name, err)
	}

	var used atomic.Bool
	return func(yield func(domain.CandidateRef) bool) {
		if used.Swap(true) {
			return
		}

		emitted := 0
		seen := make(map[string]struct{})
		cards := doc.Find(e.rules.Card)
		claimed := cards.Slice(0, 0)
		cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
			if emitted >= e.maxCandidates {
				return false
			}
			// A card inside one that already produced a candidate is part of it.
			if card.ParentsFiltered(e.rules.Card).IsSelection(claimed) {
				return true
			}
			// Wrappers also match the card selector. Defer to inner cards
			// when one of them stands on its own.
			if e.innerCardMatches(card, src) {
				return true
			}

			ref, err := e.candidate(card, src)
			if errors.Is(err, errTitleMismatch) {
				return true
			}
			if err != nil {
				e.logger.Debug("dropping candidate without usable link",
					zap.String("source", src.Name),
					zap.Error(err),
				)
				return true
			}
			claimed = claimed.AddSelection(card)
			if _, dup := seen[ref.URL]; dup {
				return true
			}
			seen[ref.URL] = struct{}{}

			emitted++
			return yield(ref)
		})
	}, nil
}

var errTitleMismatch = errors.New("title matches no target title")

func (e *Extractor) innerCardMatches(card *goquery.Selection, src domain.Source) bool {
	found := false
	card.Find(e.rules.Card).EachWithBreak(func(_ int, inner *goquery.Selection) bool {
		_, err := e.candidate(inner, src)
		found = err == nil
		return !found
	})
	return found
}

func (e *Extractor) candidate(card *goquery.Selection, src domain.Source) (domain.CandidateRef, error) {
	title := cleanText(card.Find(e.rules.Title).First().Text())
	if !e.profile.MatchesTitle(title) {
		return domain.CandidateRef{}, errTitleMismatch
	}

	href, _ := card.Find(e.rules.Link).First().Attr("href")
	abs, err := utils.ResolveHref(src.ListingURL, href)
	if err != nil {
		return domain.CandidateRef{}, fmt.Errorf("card %q: %w", title, err)
	}

	return domain.CandidateRef{
		Title:      title,
		Company:    domain.Optional(cleanText(card.Find(e.rules.Company).First().Text())),
		DatePosted: domain.Optional(cleanText(card.Find(e.rules.DatePosted).First().Text())),
		RawHref:    href,
		URL:        abs,
	}, nil
}

// Description returns the detail page's description text, or nil when the
// page has none.
func (e *Extractor) Description(html string) *string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	sel := doc.Find(e.rules.Description).First()
	sel.Find("script, style").Remove()
	return domain.Optional(cleanText(sel.Text()))
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
