package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"pyqbank/internal/store"
)

func main() {
	indexPath := flag.String("index", "pyq.bleve", "bleve index directory")
	recordsPath := flag.String("records", "records.json", "record file path")
	limit := flag.Int("limit", 10, "maximum results")
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		log.Fatal("usage: search [flags] <query terms>")
	}

	st, err := store.Open(*indexPath, *recordsPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	hits, err := st.Search(query, *limit)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}
	if len(hits) == 0 {
		fmt.Println("No matching questions.")
		return
	}

	for i, rec := range hits {
		fmt.Printf("%d. [%s %s %d", i+1, rec.Exam, rec.Level, rec.Year)
		if rec.Paper != "" {
			fmt.Printf(" %s", rec.Paper)
		}
		fmt.Print("]")
		if rec.Verified {
			fmt.Print(" (verified)")
		}
		fmt.Printf("\n   %s\n", rec.Question)
		if rec.Theme != "" || len(rec.TopicTags) > 0 {
			fmt.Printf("   theme: %s  tags: %s\n", rec.Theme, strings.Join(rec.TopicTags, ", "))
		}
		if rec.SourceLink != "" {
			fmt.Printf("   source: %s\n", rec.SourceLink)
		}
	}
}
