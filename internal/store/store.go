// Package store persists QuestionRecords deduplicated by a loose match key
// and serves free-text search over them through a bleve index.
package store

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
)

// QuestionRecord is one previous-year question. Records are only ever
// enriched by the pipeline, never deleted.
type QuestionRecord struct {
	Exam       string    `json:"exam"`
	Level      string    `json:"level"`
	Paper      string    `json:"paper"`
	Year       int       `json:"year"`
	Question   string    `json:"question"`
	TopicTags  []string  `json:"topic_tags,omitempty"`
	Theme      string    `json:"theme,omitempty"`
	SourceLink string    `json:"source_link"`
	Verified   bool      `json:"verified"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store holds records in memory keyed by match key, mirrors them into a
// bleve index for search, and persists them to disk in binary (fast) and
// JSON (fallback) formats.
type Store struct {
	mu          sync.Mutex
	records     map[string]*QuestionRecord
	index       bleve.Index
	recordsPath string
}

// Open creates or reopens the store. indexPath holds the bleve index
// directory, recordsPath the record file ("records.json"; a ".gob" sibling
// is written alongside).
func Open(indexPath, recordsPath string) (*Store, error) {
	var index bleve.Index
	var err error

	if _, statErr := os.Stat(indexPath); os.IsNotExist(statErr) {
		index, err = bleve.New(indexPath, bleve.NewIndexMapping())
	} else {
		index, err = bleve.Open(indexPath)
	}
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	s := &Store{
		records:     make(map[string]*QuestionRecord),
		index:       index,
		recordsPath: recordsPath,
	}
	if err := s.load(); err != nil {
		index.Close()
		return nil, err
	}
	return s, nil
}

// Upsert matches rec against the store and either merges its metadata into
// the existing record or inserts it. The whole match-then-merge-or-insert is
// atomic; concurrent upserts serialize here. Returns true when merged.
func (s *Store) Upsert(rec QuestionRecord) (bool, error) {
	key := MatchKey(rec.Exam, rec.Year, rec.Question)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[key]
	if !ok {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		stored := rec
		stored.TopicTags = dedupeTags(rec.TopicTags)
		s.records[key] = &stored
		return false, s.indexRecord(key, &stored)
	}

	// Merge: fill gaps, never downgrade, union tags.
	if existing.Paper == "" {
		existing.Paper = rec.Paper
	}
	if existing.Theme == "" {
		existing.Theme = rec.Theme
	}
	if existing.Level == "" {
		existing.Level = rec.Level
	}
	if existing.SourceLink == "" {
		existing.SourceLink = rec.SourceLink
	}
	if rec.Verified {
		existing.Verified = true
	}
	existing.TopicTags = dedupeTags(append(existing.TopicTags, rec.TopicTags...))

	return true, s.indexRecord(key, existing)
}

func (s *Store) indexRecord(key string, rec *QuestionRecord) error {
	return s.index.Index(key, map[string]interface{}{
		"exam":     rec.Exam,
		"question": rec.Question,
		"tags":     strings.Join(rec.TopicTags, " "),
		"theme":    rec.Theme,
		"paper":    rec.Paper,
	})
}

// Search runs a free-text query over question text, topic tags, and theme,
// returning up to limit records by relevance.
func (s *Store) Search(query string, limit int) ([]QuestionRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit, 0, false)
	res, err := s.index.Search(req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []QuestionRecord
	for _, hit := range res.Hits {
		if rec, ok := s.records[hit.ID]; ok {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Get returns the record for a match key, if present.
func (s *Store) Get(exam string, year int, question string) (QuestionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[MatchKey(exam, year, question)]
	if !ok {
		return QuestionRecord{}, false
	}
	return *rec, true
}

// recordFile wraps the record map for serialization.
type recordFile struct {
	Records map[string]*QuestionRecord `json:"records"`
}

// Save writes records to disk in both binary (primary) and JSON (fallback)
// formats.
func (s *Store) Save() error {
	s.mu.Lock()
	file := recordFile{Records: s.records}
	data, err := json.Marshal(file)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	gobPath := gobSibling(s.recordsPath)
	if f, err := os.Create(gobPath); err != nil {
		log.Printf("store: failed to save binary records: %v", err)
	} else {
		encErr := gob.NewEncoder(f).Encode(file)
		f.Close()
		if encErr != nil {
			log.Printf("store: failed to encode binary records: %v", encErr)
		}
	}

	return os.WriteFile(s.recordsPath, data, 0644)
}

func (s *Store) load() error {
	gobPath := gobSibling(s.recordsPath)
	if f, err := os.Open(gobPath); err == nil {
		var file recordFile
		decErr := gob.NewDecoder(f).Decode(&file)
		f.Close()
		if decErr == nil && file.Records != nil {
			s.records = file.Records
			return nil
		}
		log.Printf("store: binary load failed, falling back to JSON: %v", decErr)
	}

	data, err := os.ReadFile(s.recordsPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var file recordFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse records: %w", err)
	}
	if file.Records != nil {
		s.records = file.Records
	}
	return nil
}

func gobSibling(path string) string {
	return strings.TrimSuffix(path, ".json") + ".gob"
}

// Close closes the underlying bleve index.
func (s *Store) Close() error {
	return s.index.Close()
}

const matchKeyPrefixLen = 50

var nonAlnumRe = regexp.MustCompile(`[^\p{L}\p{N} ]+`)
var spaceRe = regexp.MustCompile(`\s+`)

// MatchKey builds the loose identity key: exam, year, and a case-insensitive
// prefix of the normalized question. Near-duplicate sightings of the same
// question collide here on purpose. Normalization keeps letters in any
// script (papers come in Hindi too) and the prefix cut is rune-bounded.
func MatchKey(exam string, year int, question string) string {
	norm := strings.ToLower(question)
	norm = nonAlnumRe.ReplaceAllString(norm, "")
	norm = strings.TrimSpace(spaceRe.ReplaceAllString(norm, " "))
	if runes := []rune(norm); len(runes) > matchKeyPrefixLen {
		norm = string(runes[:matchKeyPrefixLen])
	}
	return fmt.Sprintf("%s|%d|%s", strings.ToLower(exam), year, norm)
}

func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
