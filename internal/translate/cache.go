package translate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"pdf-layout-translator/internal/logger"
)

// Cache stores translations keyed by source text.
type Cache interface {
	Get(text string) (string, bool)
	Set(text, translation string)
	// Save persists pending entries.
	Save() error
	Close() error
}

// ComputeHash returns the hex SHA-256 of text.
func ComputeHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// CacheEntry is one cached translation.
type CacheEntry struct {
	Hash        string    `json:"hash"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheFile is the on-disk format of a JSONCache.
type CacheFile struct {
	Version string       `json:"version"`
	Entries []CacheEntry `json:"entries"`
}

// JSONCache keeps translations in memory and persists them as a JSON file.
type JSONCache struct {
	cachePath string
	cache     map[string]CacheEntry
	mu        sync.RWMutex
}

// NewJSONCache creates a cache backed by cachePath and loads existing
// entries. An empty path keeps the cache in memory only.
func NewJSONCache(cachePath string) (*JSONCache, error) {
	c := &JSONCache{cachePath: cachePath, cache: make(map[string]CacheEntry)}
	if err := c.Load(); err != nil {
		return nil, err
	}
	return c, nil
}

// Get implements Cache.
func (c *JSONCache) Get(text string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[ComputeHash(text)]
	if !ok {
		return "", false
	}
	return entry.Translation, true
}

// Set implements Cache.
func (c *JSONCache) Set(text, translation string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := ComputeHash(text)
	c.cache[hash] = CacheEntry{
		Hash:        hash,
		Original:    text,
		Translation: translation,
		CreatedAt:   time.Now(),
	}
}

// Load replaces the in-memory entries with the file's. A missing file is
// an empty cache.
func (c *JSONCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachePath == "" {
		return nil
	}

	data, err := os.ReadFile(c.cachePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	var cacheFile CacheFile
	if err := json.Unmarshal(data, &cacheFile); err != nil {
		return fmt.Errorf("failed to parse cache file: %w", err)
	}

	c.cache = make(map[string]CacheEntry, len(cacheFile.Entries))
	for _, entry := range cacheFile.Entries {
		c.cache[entry.Hash] = entry
	}
	return nil
}

// Save implements Cache.
func (c *JSONCache) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cachePath == "" {
		return nil
	}

	entries := make([]CacheEntry, 0, len(c.cache))
	for _, entry := range c.cache {
		entries = append(entries, entry)
	}

	data, err := json.MarshalIndent(CacheFile{Version: "1.0", Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.cachePath), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(c.cachePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// Size returns the number of cached entries.
func (c *JSONCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Close saves the cache.
func (c *JSONCache) Close() error {
	return c.Save()
}

// SQLiteCache stores translations in a SQLite table. Writes go straight to
// the database.
type SQLiteCache struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS translations (
	hash        TEXT PRIMARY KEY,
	original    TEXT NOT NULL,
	translation TEXT NOT NULL,
	created_at  INTEGER NOT NULL
)`

// OpenSQLiteCache opens or creates the database at path.
func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

// Get implements Cache.
func (c *SQLiteCache) Get(text string) (string, bool) {
	var translation string
	err := c.db.QueryRow(`SELECT translation FROM translations WHERE hash = ?`, ComputeHash(text)).Scan(&translation)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Warn("translation cache lookup failed", logger.Err(err))
		}
		return "", false
	}
	return translation, true
}

// Set implements Cache.
func (c *SQLiteCache) Set(text, translation string) {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO translations (hash, original, translation, created_at) VALUES (?, ?, ?, ?)`,
		ComputeHash(text), text, translation, time.Now().Unix())
	if err != nil {
		logger.Warn("translation cache write failed", logger.Err(err))
	}
}

// Size returns the number of cached entries.
func (c *SQLiteCache) Size() int {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM translations`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Save implements Cache.
func (c *SQLiteCache) Save() error { return nil }

// Close implements Cache.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// CachingTranslator serves repeated paragraphs from a Cache. Keys include
// Namespace so that different language pairs or models do not collide.
type CachingTranslator struct {
	Inner     Translator
	Cache     Cache
	Namespace string
}

// Translate implements Translator. Failures are not cached.
func (c *CachingTranslator) Translate(ctx context.Context, text string) (string, error) {
	key := c.Namespace + "\x00" + text
	if cached, ok := c.Cache.Get(key); ok {
		logger.Debug("translation cache hit", logger.Int("chars", len([]rune(text))))
		return cached, nil
	}

	translated, err := c.Inner.Translate(ctx, text)
	if err != nil {
		return "", err
	}
	c.Cache.Set(key, translated)
	return translated, nil
}
