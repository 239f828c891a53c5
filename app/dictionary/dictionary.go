// Package dictionary implements the persistent bilingual translation
// store: one gzip-compressed JSON file per (source, target) language
// pair, read-through/write-through in front of the in-memory cache.
package dictionary

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const schemaVersion = "1.0"

// Entry is a single persisted translation record.
type Entry struct {
	Original    string  `json:"original"`
	Translation string  `json:"translation"`
	UsageCount  int     `json:"usage_count"`
	Confidence  float64 `json:"confidence"`
	LastUsed    string  `json:"last_used"`
	Engine      string  `json:"engine"`
}

// file is the top-level on-disk document for one language pair.
type file struct {
	Version        string           `json:"version"`
	LastUpdated    string           `json:"last_updated"`
	TotalEntries   int              `json:"total_entries"`
	Compressed     bool             `json:"compressed"`
	SourceLanguage string           `json:"source_language"`
	TargetLanguage string           `json:"target_language"`
	Translations   map[string]Entry `json:"translations"`
	extra          map[string]json.RawMessage
}

// MarshalJSON preserves any unknown top-level fields read in from disk.
func (f file) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage, len(f.extra)+7)
	for k, v := range f.extra {
		m[k] = v
	}
	set := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		m[key] = b
		return nil
	}
	if err := set("version", f.Version); err != nil {
		return nil, err
	}
	if err := set("last_updated", f.LastUpdated); err != nil {
		return nil, err
	}
	if err := set("total_entries", f.TotalEntries); err != nil {
		return nil, err
	}
	if err := set("compressed", f.Compressed); err != nil {
		return nil, err
	}
	if err := set("source_language", f.SourceLanguage); err != nil {
		return nil, err
	}
	if err := set("target_language", f.TargetLanguage); err != nil {
		return nil, err
	}
	if err := set("translations", f.Translations); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// UnmarshalJSON captures unrecognized fields into extra so round-tripping
// a file written by another implementation doesn't drop data.
func (f *file) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.extra = make(map[string]json.RawMessage)
	for k, v := range raw {
		switch k {
		case "version":
			json.Unmarshal(v, &f.Version)
		case "last_updated":
			json.Unmarshal(v, &f.LastUpdated)
		case "total_entries":
			json.Unmarshal(v, &f.TotalEntries)
		case "compressed":
			json.Unmarshal(v, &f.Compressed)
		case "source_language":
			json.Unmarshal(v, &f.SourceLanguage)
		case "target_language":
			json.Unmarshal(v, &f.TargetLanguage)
		case "translations":
			json.Unmarshal(v, &f.Translations)
		default:
			f.extra[k] = v
		}
	}
	if f.Translations == nil {
		f.Translations = make(map[string]Entry)
	}
	return nil
}

// pair is one loaded, dirty-tracked (source, target) dictionary file.
type pair struct {
	mu          sync.Mutex
	path        string
	doc         file
	sinceFlush  int
}

// Store manages one pair per (source, target) language combination, all
// rooted under a single directory.
type Store struct {
	dir            string
	autoFlushEvery int

	mu    sync.Mutex
	pairs map[string]*pair
}

// NewStore constructs a Store rooted at dir, creating it if necessary.
// autoFlushEvery <= 0 defaults to 20 new translations between flushes.
func NewStore(dir string, autoFlushEvery int) (*Store, error) {
	if autoFlushEvery <= 0 {
		autoFlushEvery = 20
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dictionary: creating store directory: %w", err)
	}
	return &Store{dir: dir, autoFlushEvery: autoFlushEvery, pairs: make(map[string]*pair)}, nil
}

func pairKey(src, tgt string) string {
	return strings.ToLower(src) + "_" + strings.ToLower(tgt)
}

func (s *Store) filePath(src, tgt string) string {
	return filepath.Join(s.dir, fmt.Sprintf("learned_dictionary_%s_%s.json.gz", strings.ToLower(src), strings.ToLower(tgt)))
}

func (s *Store) getPair(src, tgt string) *pair {
	key := pairKey(src, tgt)
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pairs[key]; ok {
		return p
	}
	p := &pair{path: s.filePath(src, tgt)}
	if err := p.load(src, tgt); err != nil {
		log.Warn().Str("event", "[DICTIONARY_LOAD_FAILED]").Str("path", p.path).Err(err).Msg("starting with empty dictionary")
	}
	s.pairs[key] = p
	return p
}

func (p *pair) load(src, tgt string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		p.doc = file{Version: schemaVersion, Compressed: true, SourceLanguage: src, TargetLanguage: tgt, Translations: make(map[string]Entry)}
		return nil
	}
	if err != nil {
		return err
	}

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	var doc file
	if err := json.NewDecoder(gz).Decode(&doc); err != nil {
		return fmt.Errorf("decoding dictionary json: %w", err)
	}
	if doc.Translations == nil {
		doc.Translations = make(map[string]Entry)
	}
	p.doc = doc
	return nil
}

// Lookup returns the stored entry for normalizedText, if present.
func (s *Store) Lookup(normalizedText, srcLang, tgtLang string) (Entry, bool) {
	p := s.getPair(srcLang, tgtLang)
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.doc.Translations[normalizedText]
	return e, ok
}

// Upsert merges a new translation observation into the dictionary:
// usage_count increments, confidence keeps the better of the two values,
// and last_used refreshes to now. Flushes to disk every autoFlushEvery
// upserts for this language pair.
func (s *Store) Upsert(normalizedText, original, translation, srcLang, tgtLang, engine string, confidence float64) error {
	p := s.getPair(srcLang, tgtLang)

	p.mu.Lock()
	existing, had := p.doc.Translations[normalizedText]
	entry := Entry{
		Original:    original,
		Translation: translation,
		UsageCount:  1,
		Confidence:  confidence,
		LastUsed:    time.Now().UTC().Format(time.RFC3339),
		Engine:      engine,
	}
	if had {
		entry.UsageCount = existing.UsageCount + 1
		if existing.Confidence > confidence {
			entry.Confidence = existing.Confidence
		}
	}
	p.doc.Translations[normalizedText] = entry
	p.doc.TotalEntries = len(p.doc.Translations)
	p.sinceFlush++
	needsFlush := p.sinceFlush >= s.autoFlushEvery
	if needsFlush {
		p.sinceFlush = 0
	}
	p.mu.Unlock()

	if needsFlush {
		return p.flush()
	}
	return nil
}

// Flush forces a write of every loaded pair, whether or not it has
// pending changes.
func (s *Store) Flush() error {
	s.mu.Lock()
	pairs := make([]*pair, 0, len(s.pairs))
	for _, p := range s.pairs {
		pairs = append(pairs, p)
	}
	s.mu.Unlock()

	var firstErr error
	for _, p := range pairs {
		if err := p.flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *pair) flush() error {
	p.mu.Lock()
	p.doc.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	p.doc.TotalEntries = len(p.doc.Translations)
	doc := p.doc
	path := p.path
	p.mu.Unlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("dictionary: creating temp file: %w", err)
	}

	gz := gzip.NewWriter(f)
	enc := json.NewEncoder(gz)
	if err := enc.Encode(doc); err != nil {
		gz.Close()
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("dictionary: encoding: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("dictionary: closing gzip writer: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("dictionary: renaming temp file: %w", err)
	}
	log.Debug().Str("event", "[DICTIONARY_FLUSHED]").Str("path", path).Int("entries", doc.TotalEntries).Msg("flushed dictionary to disk")
	return nil
}

// EntryCount returns the number of entries currently held for a pair
// (loading it first if not yet loaded).
func (s *Store) EntryCount(srcLang, tgtLang string) int {
	p := s.getPair(srcLang, tgtLang)
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.doc.Translations)
}
