// Package discover fetches listing pages and extracts candidate question
// paper links, tagging each with exam-level and paper hints.
package discover

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"path"
	"strings"

	"pyqbank/internal/classify"
	"pyqbank/internal/fetch"

	"github.com/PuerkitoBio/goquery"
)

// Candidate is one discovered document link. Consumed once by the
// fetch/extract stage; never persisted.
type Candidate struct {
	URL        string
	SourcePage string
	LevelHint  string
	PaperHint  string
}

// docExtensions are the file extensions treated as question paper documents.
var docExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".html": true,
	".htm":  true,
}

// defaultExcludes drops sibling exam families that share UPSC listing pages.
// A link matching an exclusion survives only if it also matches an inclusion
// keyword.
var defaultExcludes = []string{
	"nda", "cds", "capf", "epfo", "stenographer",
	"engineering services", "medical services", "forest service",
	"geo-scientist", "statistical service",
}

var defaultIncludes = []string{
	"civil services", "cse", "csat", "ias", "prelim", "mains", "general studies",
}

type Discoverer struct {
	fetcher  *fetch.Fetcher
	includes []string
	excludes []string
}

func New(fetcher *fetch.Fetcher) *Discoverer {
	return &Discoverer{
		fetcher:  fetcher,
		includes: defaultIncludes,
		excludes: defaultExcludes,
	}
}

// Discover fetches one listing page and returns the candidate documents on it
// plus the number of links dropped by the exam-family filter. A failing
// listing fetch is an error for this page only; callers log it and move on.
func (d *Discoverer) Discover(ctx context.Context, listingURL string) ([]Candidate, int, error) {
	data, err := d.fetcher.Fetch(ctx, listingURL)
	if err != nil {
		return nil, 0, fmt.Errorf("listing fetch %s: %w", listingURL, err)
	}

	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, 0, fmt.Errorf("parse listing url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("parse listing html: %w", err)
	}

	var candidates []Candidate
	excluded := 0
	seen := map[string]bool{}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if !docExtensions[strings.ToLower(path.Ext(abs.Path))] {
			return
		}

		absURL := abs.String()
		if seen[absURL] {
			return
		}
		seen[absURL] = true

		linkText := strings.TrimSpace(sel.Text())
		if !d.inFamily(absURL, linkText) {
			excluded++
			return
		}

		level, paper := Hints(absURL, linkText)
		candidates = append(candidates, Candidate{
			URL:        absURL,
			SourcePage: listingURL,
			LevelHint:  level,
			PaperHint:  paper,
		})
	})

	log.Printf("discover: %s yielded %d candidates (%d out of family)", listingURL, len(candidates), excluded)
	return candidates, excluded, nil
}

// inFamily applies the exclusion keyword filter with inclusion overrides.
func (d *Discoverer) inFamily(docURL, linkText string) bool {
	haystack := strings.ToLower(linkText + " " + docURL)
	for _, inc := range d.includes {
		if strings.Contains(haystack, inc) {
			return true
		}
	}
	for _, exc := range d.excludes {
		if strings.Contains(haystack, exc) {
			return false
		}
	}
	return true
}

// Hints infers the level and paper hints for a document from its URL and
// link text. A "prelim" token means Prelims; everything else defaults to
// Mains. The paper table checks the filename before the link text; when no
// rule matches, the hint stays empty so the classifier can consult each
// question's own text instead.
func Hints(docURL, linkText string) (level, paper string) {
	haystack := strings.ToLower(linkText + " " + docURL)
	level = classify.LevelMains
	if strings.Contains(haystack, "prelim") {
		level = classify.LevelPrelims
	}

	filename := docURL
	if u, err := url.Parse(docURL); err == nil {
		filename = path.Base(u.Path)
	}
	paper = classify.LookupPaper(level, filename, linkText)
	return level, paper
}
