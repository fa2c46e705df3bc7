// Package cache provides a file cache for GitHub issue pages and for digests
// whose persistence failed.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/issueradar/issueradar/internal/constants"
	"github.com/issueradar/issueradar/internal/log"
)

const (
	pagePrefix    = "issues_"
	pendingPrefix = "pending_"
)

// Cacher defines the interface for caching operations.
// This interface enables mocking the cache in unit tests.
type Cacher interface {
	// Issue pages
	GetPage(key PageKey) (*PageEntry, bool)
	GetStalePage(key PageKey) (*PageEntry, bool)
	SetPage(key PageKey, entry *PageEntry) error
	Clear() error

	// Digests that could not be stored
	SetPendingDigest(d *PendingDigest) error
	GetPendingDigest(id string) (*PendingDigest, bool)
	ListPendingDigests() ([]PendingDigest, error)
	DeletePendingDigest(id string) error

	// Stats
	Stats() (total int, validCount int, err error)
	DetailedStats() (*CacheStats, error)
}

// Ensure Cache implements Cacher interface.
var _ Cacher = (*Cache)(nil)

// Cache stores issue pages and pending digests as JSON files.
type Cache struct {
	dir string
	ttl time.Duration
}

// NewCache creates a cache under the user cache directory. A ttl of zero uses
// the default issue page TTL.
func NewCache(ttl time.Duration) (*Cache, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	return NewCacheAt(filepath.Join(cacheDir, "issueradar"), ttl)
}

// NewCacheAt creates a cache rooted at dir.
func NewCacheAt(dir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if ttl <= 0 {
		ttl = constants.IssuePageCacheTTL
	}
	return &Cache{dir: dir, ttl: ttl}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) pageFileName(key PageKey) string {
	// Replace slashes with underscores to avoid path issues while preserving uniqueness
	safeName := strings.ReplaceAll(key.Repo, "/", "_")
	name := fmt.Sprintf("%s%s_%s_p%d_n%d", pagePrefix, safeName, key.State, key.Page, key.PerPage)
	if !key.Since.IsZero() {
		name += fmt.Sprintf("_s%d", key.Since.Unix())
	}
	return name + ".json"
}

func (c *Cache) readPage(key PageKey) (*PageEntry, bool) {
	if key.Repo == "" {
		return nil, false
	}
	name := c.pageFileName(key)

	data, err := os.ReadFile(filepath.Join(c.dir, name))
	if err != nil {
		return nil, false
	}

	var entry PageEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	// Invalidate if cache version doesn't match (format/schema changed)
	if entry.Version != Version {
		log.Debug("cache version mismatch", "cached", entry.Version, "current", Version, "key", name)
		return nil, false
	}

	return &entry, true
}

// GetPage returns a cached page if it is younger than the TTL.
func (c *Cache) GetPage(key PageKey) (*PageEntry, bool) {
	entry, ok := c.readPage(key)
	if !ok {
		return nil, false
	}
	if time.Since(entry.CachedAt) > c.ttl {
		return nil, false
	}
	return entry, true
}

// GetStalePage returns a cached page regardless of its age.
func (c *Cache) GetStalePage(key PageKey) (*PageEntry, bool) {
	return c.readPage(key)
}

// SetPage caches one page of issues.
func (c *Cache) SetPage(key PageKey, entry *PageEntry) error {
	if key.Repo == "" || entry == nil {
		return nil
	}

	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now()
	}
	entry.Version = Version

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(c.dir, c.pageFileName(key)), data, 0600)
}

// Clear removes all cached issue pages. Pending digests are kept.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), pagePrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

func pendingFileName(id string) string {
	return pendingPrefix + filepath.Base(id) + ".json"
}

// SetPendingDigest records a digest whose text must not be lost.
func (c *Cache) SetPendingDigest(d *PendingDigest) error {
	if d == nil || d.ID == "" {
		return errors.New("pending digest requires an id")
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	d.Version = Version

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, pendingFileName(d.ID)), data, 0600)
}

// GetPendingDigest returns a pending digest by id.
func (c *Cache) GetPendingDigest(id string) (*PendingDigest, bool) {
	data, err := os.ReadFile(filepath.Join(c.dir, pendingFileName(id)))
	if err != nil {
		return nil, false
	}
	var d PendingDigest
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, false
	}
	return &d, true
}

// ListPendingDigests returns all pending digests, oldest first.
func (c *Cache) ListPendingDigests() ([]PendingDigest, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}

	var out []PendingDigest
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, pendingPrefix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, pendingPrefix), ".json")
		if d, ok := c.GetPendingDigest(id); ok {
			out = append(out, *d)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeletePendingDigest removes a pending digest once it has been stored.
func (c *Cache) DeletePendingDigest(id string) error {
	err := os.Remove(filepath.Join(c.dir, pendingFileName(id)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Stats returns cache statistics
func (c *Cache) Stats() (total int, validCount int, err error) {
	stats, err := c.DetailedStats()
	if err != nil {
		return 0, 0, err
	}
	return stats.PageTotal + stats.PendingTotal, stats.PageValid + stats.PendingTotal, nil
}

// DetailedStats returns detailed cache statistics broken down by type
func (c *Cache) DetailedStats() (*CacheStats, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}

	stats := &CacheStats{Dir: c.dir, TTL: c.ttl}
	now := time.Now()

	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasPrefix(name, pagePrefix):
			stats.PageTotal++
			data, err := os.ReadFile(filepath.Join(c.dir, name))
			if err != nil {
				continue
			}
			var page PageEntry
			if err := json.Unmarshal(data, &page); err != nil {
				continue
			}
			if page.Version == Version && now.Sub(page.CachedAt) <= c.ttl {
				stats.PageValid++
			}
		case strings.HasPrefix(name, pendingPrefix):
			stats.PendingTotal++
		}
	}

	return stats, nil
}
