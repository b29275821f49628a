// Package cache stores token streams on disk keyed by language and content
// digest, so repeated runs over unchanged files skip parsing.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/panbanda/winnow/internal/logging"
	"github.com/panbanda/winnow/pkg/ast"
	"github.com/zeebo/blake3"
)

// Cache is a directory of token stream entries.
// A disabled Cache misses on every Get and ignores every Set.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

// Entry is one cached token stream.
// Token text is not stored; it is sliced from the source on a hit so
// bytes that are not valid UTF-8 survive the round trip.
type Entry struct {
	Language  ast.Language `json:"language"`
	Digest    string       `json:"digest"`
	Timestamp time.Time    `json:"timestamp"`
	Tokens    []ast.Token  `json:"tokens"`
}

// New creates a cache rooted at dir. A ttlHours of 0 keeps entries forever.
func New(dir string, ttlHours int, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
	}, nil
}

// Enabled reports whether the cache reads and writes entries.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Get returns the tokens cached for content in lang.
func (c *Cache) Get(lang ast.Language, content []byte) ([]ast.Token, bool) {
	if !c.Enabled() {
		return nil, false
	}

	digest := HashBytes(content)
	path := c.entryPath(lang, digest)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if entry.Digest != digest || entry.Language != lang {
		return nil, false
	}
	if c.ttl > 0 && time.Since(entry.Timestamp) > c.ttl {
		os.Remove(path)
		return nil, false
	}
	for i := range entry.Tokens {
		tok := &entry.Tokens[i]
		if tok.StartByte < 0 || tok.StartByte > tok.EndByte || tok.EndByte > len(content) {
			return nil, false
		}
		tok.Text = string(content[tok.StartByte:tok.EndByte])
	}
	return entry.Tokens, true
}

// Set stores the tokens of content in lang.
// The entry is written to a temporary file and renamed into place so
// concurrent readers never see a partial entry.
func (c *Cache) Set(lang ast.Language, content []byte, tokens []ast.Token) error {
	if !c.Enabled() {
		return nil
	}

	digest := HashBytes(content)
	stripped := make([]ast.Token, len(tokens))
	for i, tok := range tokens {
		tok.Text = ""
		stripped[i] = tok
	}
	data, err := json.Marshal(Entry{
		Language:  lang,
		Digest:    digest,
		Timestamp: time.Now(),
		Tokens:    stripped,
	})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, "entry-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.entryPath(lang, digest))
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.Enabled() {
		return nil
	}
	if err := os.RemoveAll(c.dir); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}

func (c *Cache) entryPath(lang ast.Language, digest string) string {
	key := blake3.Sum256([]byte(string(lang) + ":" + digest))
	return filepath.Join(c.dir, hex.EncodeToString(key[:16])+".json")
}

// Stats summarizes the entries on disk.
type Stats struct {
	Dir       string        `json:"dir"`
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.Enabled() {
		return &Stats{}, nil
	}

	stats := &Stats{Dir: c.dir}
	var oldest, newest time.Time

	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		modTime := info.ModTime()
		if oldest.IsZero() || modTime.Before(oldest) {
			oldest = modTime
		}
		if newest.IsZero() || modTime.After(newest) {
			newest = modTime
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}
	return stats, nil
}

// Provider wraps an ast.Provider so Tokenize consults the cache first.
type Provider struct {
	ast.Provider
	cache  *Cache
	logger *slog.Logger
}

// Wrap returns p unchanged when c is disabled.
// Failed stores are logged at debug level to logger, which may be nil.
func Wrap(p ast.Provider, c *Cache, logger *slog.Logger) ast.Provider {
	if !c.Enabled() {
		return p
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Provider{Provider: p, cache: c, logger: logger}
}

// Tokenize returns cached tokens for source, tokenizing and storing them on a miss.
// A failed store is logged and otherwise ignored.
func (p *Provider) Tokenize(ctx context.Context, source []byte) ([]ast.Token, error) {
	lang := p.Provider.Language()
	if tokens, ok := p.cache.Get(lang, source); ok {
		return tokens, nil
	}
	tokens, err := p.Provider.Tokenize(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(lang, source, tokens); err != nil {
		p.logger.Debug("cache store failed", "language", lang, "dir", p.cache.Dir(), "error", err)
	}
	return tokens, nil
}
