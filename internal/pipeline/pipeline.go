// Package pipeline wires discovery, fetch, extraction, segmentation,
// classification, and persistence into one batch run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"pyqbank/internal/classify"
	"pyqbank/internal/discover"
	"pyqbank/internal/extract"
	"pyqbank/internal/fetch"
	"pyqbank/internal/segment"
	"pyqbank/internal/store"
)

// Skip reasons reported in the run summary.
const (
	SkipNotFound         = "not found"
	SkipFetchFailed      = "fetch failed"
	SkipExtractionFailed = "extraction failed"
	SkipNoQuestions      = "no questions"
	SkipNotInFamily      = "not in exam family"
	SkipListingFailed    = "listing failed"
)

// Options configures one batch run. Exam is mandatory; everything else has
// workable defaults.
type Options struct {
	ListingURLs  []string
	DocumentURLs []string // direct documents, bypass discovery

	Exam         string
	Level        string // override for every document
	Paper        string // override for every document
	FallbackYear int

	Workers int           // documents processed in parallel (default 1)
	Delay   time.Duration // pause after each document, spares fragile hosts
}

// Summary is the end-of-run report.
type Summary struct {
	Discovered int
	Processed  int
	Inserted   int
	Merged     int
	Skipped    map[string]int

	mu sync.Mutex
}

func (s *Summary) skip(reason string) {
	s.mu.Lock()
	s.Skipped[reason]++
	s.mu.Unlock()
}

// String renders the totals plus a skip-reason histogram.
func (s *Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "discovered=%d processed=%d inserted=%d merged=%d",
		s.Discovered, s.Processed, s.Inserted, s.Merged)

	reasons := make([]string, 0, len(s.Skipped))
	for r := range s.Skipped {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(&sb, "\n  skipped (%s): %d", r, s.Skipped[r])
	}
	return sb.String()
}

type Pipeline struct {
	Fetcher    *fetch.Fetcher
	Discoverer *discover.Discoverer
	Chain      *extract.Chain
	Store      *store.Store
}

// Run executes the whole batch: discover candidates, then per document
// fetch → extract → segment → classify → upsert. Every per-document failure
// becomes a skip reason; only configuration errors abort the run.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Exam == "" {
		return nil, errors.New("exam identifier is required")
	}
	if p.Chain == nil || p.Chain.Empty() {
		return nil, extract.ErrNoStrategies
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	summary := &Summary{Skipped: map[string]int{}}

	var candidates []discover.Candidate
	for _, listing := range opts.ListingURLs {
		found, excluded, err := p.Discoverer.Discover(ctx, listing)
		if err != nil {
			log.Printf("pipeline: listing %s failed, moving on: %v", listing, err)
			summary.skip(SkipListingFailed)
			continue
		}
		candidates = append(candidates, found...)
		summary.mu.Lock()
		summary.Skipped[SkipNotInFamily] += excluded
		summary.mu.Unlock()
	}
	for _, docURL := range opts.DocumentURLs {
		level, paper := discover.Hints(docURL, "")
		candidates = append(candidates, discover.Candidate{
			URL:       docURL,
			LevelHint: level,
			PaperHint: paper,
		})
	}
	summary.Discovered = len(candidates)

	// Small worker pool; documents are independent, the store serializes
	// its own upserts.
	sem := make(chan struct{}, opts.Workers)
	var wg sync.WaitGroup
	for _, cand := range candidates {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return summary, ctx.Err()
		}
		wg.Add(1)

		go func(cand discover.Candidate) {
			defer wg.Done()
			defer func() { <-sem }()

			p.processDocument(ctx, cand, opts, summary)
			if opts.Delay > 0 {
				select {
				case <-time.After(opts.Delay):
				case <-ctx.Done():
				}
			}
		}(cand)
	}
	wg.Wait()

	if err := p.Store.Save(); err != nil {
		return summary, fmt.Errorf("save store: %w", err)
	}
	return summary, nil
}

// processDocument runs one candidate end to end and records the outcome.
func (p *Pipeline) processDocument(ctx context.Context, cand discover.Candidate, opts Options, summary *Summary) {
	data, err := p.Fetcher.Fetch(ctx, cand.URL)
	switch {
	case fetch.IsNotFound(err):
		log.Printf("pipeline: %s not found, skipping", cand.URL)
		summary.skip(SkipNotFound)
		return
	case err != nil:
		log.Printf("pipeline: fetch %s failed: %v", cand.URL, err)
		summary.skip(SkipFetchFailed)
		return
	}

	res := p.Chain.Extract(ctx, data, cand.URL)
	if !res.Adequate {
		log.Printf("pipeline: extraction failed for %s (method=%s)", cand.URL, res.Method)
		summary.skip(SkipExtractionFailed)
		return
	}

	questions := segment.Segment(res.Text)
	if len(questions) == 0 {
		log.Printf("pipeline: no questions recovered from %s", cand.URL)
		summary.skip(SkipNoQuestions)
		return
	}

	level := opts.Level
	if level == "" {
		level = cand.LevelHint
	}
	paper := opts.Paper
	if paper == "" {
		paper = cand.PaperHint
	}

	inserted, merged := 0, 0
	for _, q := range questions {
		cls := classify.Classify(classify.Input{
			Question:     q,
			Filename:     filenameOf(cand.URL),
			SourceLink:   cand.URL,
			LevelHint:    level,
			PaperHint:    paper,
			FallbackYear: opts.FallbackYear,
		})

		wasMerge, err := p.Store.Upsert(store.QuestionRecord{
			Exam:       opts.Exam,
			Level:      cls.Level,
			Paper:      cls.Paper,
			Year:       cls.Year,
			Question:   q,
			TopicTags:  cls.Tags,
			Theme:      cls.Theme,
			SourceLink: cand.URL,
			Verified:   cls.Verified,
		})
		if err != nil {
			log.Printf("pipeline: upsert failed for %s: %v", cand.URL, err)
			continue
		}
		if wasMerge {
			merged++
		} else {
			inserted++
		}
	}

	summary.mu.Lock()
	summary.Processed++
	summary.Inserted += inserted
	summary.Merged += merged
	summary.mu.Unlock()
	log.Printf("pipeline: %s → %d questions (%d new, %d merged, method=%s)",
		cand.URL, len(questions), inserted, merged, res.Method)
}

func filenameOf(docURL string) string {
	u, err := url.Parse(docURL)
	if err != nil {
		return docURL
	}
	return path.Base(u.Path)
}
