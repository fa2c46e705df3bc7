package cache

import (
	"time"

	"github.com/issueradar/issueradar/internal/model"
)

// Version should be incremented when the cache format changes
const Version = 1

// PageKey identifies one page of a repository's issues.
type PageKey struct {
	Repo    string // owner/name
	State   model.IssueState
	Page    int
	PerPage int
	Since   time.Time
}

// PageEntry is one cached page of issues.
type PageEntry struct {
	Issues   []model.Issue `json:"issues"`
	NextPage int           `json:"nextPage"`
	CachedAt time.Time     `json:"cachedAt"`
	Version  int           `json:"version"`
}

// PendingDigest holds generated digest text that could not be stored.
type PendingDigest struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	ProjectID string    `json:"projectId"`
	Content   string    `json:"content"`
	LastError string    `json:"lastError,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int       `json:"version"`
}

// CacheStats contains detailed cache statistics
type CacheStats struct {
	Dir          string        `json:"dir"`
	TTL          time.Duration `json:"ttl"`
	PageTotal    int           `json:"pageTotal"`
	PageValid    int           `json:"pageValid"`
	PendingTotal int           `json:"pendingTotal"`
}
