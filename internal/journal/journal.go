// Package journal records documents whose last translation run was
// incomplete so that they can be listed and retried.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileName is the journal file inside its directory.
const FileName = "failures.json"

// Stage is where a run stopped being complete.
type Stage string

const (
	StageRead        Stage = "read"          // source could not be split into pages
	StageTranslation Stage = "translation"   // some paragraphs kept no translation
	StageFallback    Stage = "page_fallback" // some pages were copied untranslated
	StageWrite       Stage = "write"         // output could not be written
	StageAborted     Stage = "aborted"       // run failed or was cancelled
)

// Record describes the last incomplete run of one source document.
type Record struct {
	Source     string    `json:"source"`
	Stage      Stage     `json:"stage"`
	Message    string    `json:"message"`
	Pages      []int     `json:"pages,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
	LastRetry  time.Time `json:"last_retry,omitempty"`
}

// Journal is a JSON-file backed set of Records keyed by source path.
type Journal struct {
	dir     string
	mu      sync.RWMutex
	records map[string]*Record
}

// Open loads the journal stored in dir, creating dir if needed.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	j := &Journal{dir: dir, records: make(map[string]*Record)}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

// Key normalizes a source path into a journal key.
func Key(source string) string {
	if abs, err := filepath.Abs(source); err == nil {
		return abs
	}
	return filepath.Clean(source)
}

// Record stores an incomplete run of source. A source already present
// keeps its retry count, which is incremented.
func (j *Journal) Record(source string, stage Stage, message string, pages []int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	key := Key(source)
	rec := &Record{
		Source:    key,
		Stage:     stage,
		Message:   message,
		Pages:     append([]int(nil), pages...),
		Timestamp: time.Now(),
	}
	if existing, ok := j.records[key]; ok {
		rec.RetryCount = existing.RetryCount + 1
		rec.LastRetry = rec.Timestamp
	}
	j.records[key] = rec
	return j.save()
}

// Remove drops source after a complete run. Removing an unknown source is
// a no-op.
func (j *Journal) Remove(source string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	key := Key(source)
	if _, ok := j.records[key]; !ok {
		return nil
	}
	delete(j.records, key)
	return j.save()
}

// Get returns a copy of the record for source.
func (j *Journal) Get(source string) (*Record, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rec, ok := j.records[Key(source)]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// List returns copies of all records, oldest first.
func (j *Journal) List() []*Record {
	j.mu.RLock()
	defer j.mu.RUnlock()

	records := make([]*Record, 0, len(j.records))
	for _, rec := range j.records {
		cp := *rec
		records = append(records, &cp)
	}
	sort.Slice(records, func(a, b int) bool {
		if records[a].Timestamp.Equal(records[b].Timestamp) {
			return records[a].Source < records[b].Source
		}
		return records[a].Timestamp.Before(records[b].Timestamp)
	})
	return records
}

// Clear removes every record.
func (j *Journal) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.records = make(map[string]*Record)
	return j.save()
}

// ExportSources writes the journaled source paths to path, one per line,
// in List order.
func (j *Journal) ExportSources(path string) error {
	var sb strings.Builder
	for _, rec := range j.List() {
		sb.WriteString(rec.Source)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write source list: %w", err)
	}
	return nil
}

func (j *Journal) path() string {
	return filepath.Join(j.dir, FileName)
}

func (j *Journal) load() error {
	data, err := os.ReadFile(j.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read journal: %w", err)
	}

	var records []*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse journal: %w", err)
	}
	for _, rec := range records {
		j.records[rec.Source] = rec
	}
	return nil
}

func (j *Journal) save() error {
	records := make([]*Record, 0, len(j.records))
	for _, rec := range j.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(a, b int) bool { return records[a].Source < records[b].Source })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}
	if err := os.WriteFile(j.path(), data, 0644); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	return nil
}
