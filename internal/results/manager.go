// Package results keeps metadata about finished translations so that a
// document already translated with the same settings can be recognized.
package results

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// MetadataFile is the per-entry metadata file name.
const MetadataFile = "metadata.json"

// Entry describes one finished translation of a source document.
type Entry struct {
	SourceMD5      string    `json:"source_md5"`
	SourceFileName string    `json:"source_file_name"`
	Source         string    `json:"source"`
	Output         string    `json:"output"`
	TargetLanguage string    `json:"target_language"`
	Spread         bool      `json:"spread"`
	TranslatedAt   time.Time `json:"translated_at"`

	Pages               int   `json:"pages"`
	Paragraphs          int   `json:"paragraphs"`
	Translated          int   `json:"translated"`
	TranslationFailures int   `json:"translation_failures"`
	FallbackPages       []int `json:"fallback_pages,omitempty"`
}

// Complete reports whether every paragraph and page was translated.
func (e *Entry) Complete() bool {
	return e.TranslationFailures == 0 && len(e.FallbackPages) == 0
}

// ResultManager stores one metadata directory per source hash below baseDir.
type ResultManager struct {
	baseDir string
}

// NewResultManager creates baseDir if needed.
func NewResultManager(baseDir string) (*ResultManager, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("results directory is empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &ResultManager{baseDir: baseDir}, nil
}

// GetBaseDir returns the directory holding all entries.
func (m *ResultManager) GetBaseDir() string {
	return m.baseDir
}

func (m *ResultManager) entryDir(sourceMD5 string) string {
	id := sourceMD5
	if len(id) > 16 {
		id = id[:16]
	}
	return filepath.Join(m.baseDir, "md5_"+id)
}

// Save writes e, replacing any entry for the same source hash.
func (m *ResultManager) Save(e *Entry) error {
	if e.SourceMD5 == "" {
		return os.ErrInvalid
	}
	dir := m.entryDir(e.SourceMD5)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, MetadataFile), data, 0644)
}

// Load returns the entry for sourceMD5, or nil when there is none.
func (m *ResultManager) Load(sourceMD5 string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(m.entryDir(sourceMD5), MetadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", MetadataFile, err)
	}
	return &e, nil
}

// List returns all entries, newest first. Unreadable entries are skipped.
func (m *ResultManager) List() ([]*Entry, error) {
	dirs, err := os.ReadDir(m.baseDir)
	if err != nil {
		return nil, err
	}

	var entries []*Entry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.baseDir, d.Name(), MetadataFile))
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		entries = append(entries, &e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TranslatedAt.After(entries[j].TranslatedAt)
	})
	return entries, nil
}

// Delete removes the entry for sourceMD5.
func (m *ResultManager) Delete(sourceMD5 string) error {
	return os.RemoveAll(m.entryDir(sourceMD5))
}

// CalculateFileMD5 hashes the contents of path.
func CalculateFileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FindExisting returns a complete earlier translation of the file at source
// into targetLanguage with the same spread setting whose output still
// exists, or nil.
func (m *ResultManager) FindExisting(source, targetLanguage string, spread bool) (*Entry, error) {
	sum, err := CalculateFileMD5(source)
	if err != nil {
		return nil, err
	}
	e, err := m.Load(sum)
	if err != nil || e == nil {
		return nil, err
	}
	if e.TargetLanguage != targetLanguage || e.Spread != spread || !e.Complete() {
		return nil, nil
	}
	if _, err := os.Stat(e.Output); err != nil {
		return nil, nil
	}
	return e, nil
}
