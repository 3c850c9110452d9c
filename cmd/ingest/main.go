package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pyqbank/internal/discover"
	"pyqbank/internal/extract"
	"pyqbank/internal/fetch"
	"pyqbank/internal/pipeline"
	"pyqbank/internal/store"

	"github.com/joho/godotenv"
)

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

func main() {
	_ = godotenv.Load() // Ignore error if .env doesn't exist, we will check os.Getenv below

	var listings, docs multiFlag
	flag.Var(&listings, "listing", "listing page URL to discover documents from (repeatable)")
	flag.Var(&docs, "doc", "direct document URL, bypasses discovery (repeatable)")
	exam := flag.String("exam", "", "exam identifier, e.g. UPSC-CSE (required)")
	level := flag.String("level", "", "force level for every document (Prelims or Mains)")
	paper := flag.String("paper", "", "force paper for every document, e.g. GS-2")
	year := flag.Int("year", 0, "fallback year when none can be inferred")
	workers := flag.Int("workers", 2, "documents processed in parallel")
	delay := flag.Duration("delay", time.Second, "pause after each document")
	indexPath := flag.String("index", "pyq.bleve", "bleve index directory")
	recordsPath := flag.String("records", "records.json", "record file path")
	insecure := flag.Bool("insecure", false, "skip TLS verification (some exam mirrors have broken certs)")
	flag.Parse()

	if *exam == "" {
		log.Fatal("-exam is required")
	}
	if len(listings) == 0 && len(docs) == 0 {
		log.Fatal("at least one -listing or -doc URL is required")
	}

	st, err := store.Open(*indexPath, *recordsPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	fetcher := fetch.New(fetch.Config{InsecureTLS: *insecure})

	p := &pipeline.Pipeline{
		Fetcher:    fetcher,
		Discoverer: discover.New(fetcher),
		Chain:      buildChain(),
		Store:      st,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	summary, err := p.Run(ctx, pipeline.Options{
		ListingURLs:  listings,
		DocumentURLs: docs,
		Exam:         *exam,
		Level:        *level,
		Paper:        *paper,
		FallbackYear: *year,
		Workers:      *workers,
		Delay:        *delay,
	})
	if err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}

	fmt.Printf("Finished ingestion in %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Println(summary)
}

// buildChain assembles the extraction waterfall from whichever OCR
// credentials are present: Sarvam first, then OpenAI vision, then the
// Hugging Face inference API. Native parsing always runs first.
func buildChain() *extract.Chain {
	var providers []extract.Strategy

	if key := os.Getenv("SARVAM_API_KEY"); key != "" {
		providers = append(providers, extract.NewSarvam(key))
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		model := os.Getenv("OPENAI_VISION_MODEL")
		providers = append(providers, extract.NewVision(key, model))
	}
	if key := os.Getenv("HF_API_KEY"); key != "" {
		providers = append(providers, extract.NewHFOCR(key, os.Getenv("HF_OCR_MODEL")))
	}

	if len(providers) == 0 {
		log.Println("No OCR credentials configured; scanned documents will fall through to native parsing only")
	}
	return extract.NewChain(extract.Native{}, providers...)
}
