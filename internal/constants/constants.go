// Package constants provides a centralized location for the default values
// and magic numbers used throughout issueradar.
package constants

import "time"

// TUI update and display constants
const (
	// TUIEventBuffer is the capacity of the progress event channel.
	TUIEventBuffer = 100

	// TruncationSuffixWidth is the width of the "..." suffix when truncating strings.
	TruncationSuffixWidth = 3
)

// Rate limiting constants
const (
	// RateLimitLowWatermark is the threshold below which rate limit
	// warnings are logged.
	RateLimitLowWatermark = 100

	// DefaultRequestsPerSecond paces the issue page walk.
	DefaultRequestsPerSecond = 2.0

	// DefaultBurst is the number of pages that may be fetched back to back.
	DefaultBurst = 1
)

// Fetch constants
const (
	// DefaultPerPage is the page size requested from the issues endpoint.
	DefaultPerPage = 30

	// MaxPerPage is the largest page size GitHub accepts.
	MaxPerPage = 100

	// DefaultMaxPages bounds how many pages a digest reads.
	DefaultMaxPages = 1

	// DefaultHTTPTimeout bounds a single GitHub request.
	DefaultHTTPTimeout = 30 * time.Second
)

// Cache TTL constants
const (
	// IssuePageCacheTTL is the maximum age of a cached issue page.
	IssuePageCacheTTL = 15 * time.Minute
)

// LLM constants
const (
	// DefaultMaxTokens caps the length of a generated digest.
	DefaultMaxTokens = 1024

	// DefaultTemperature is the sampling temperature for digests.
	DefaultTemperature = 0.7

	// DefaultAnthropicModel is used when llm.model is empty and the provider is anthropic.
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"

	// DefaultGeminiModel is used when llm.model is empty and the provider is gemini.
	DefaultGeminiModel = "gemini-2.5-flash"
)

// Server constants
const (
	// DefaultServerAddr is where `issueradar serve` listens.
	DefaultServerAddr = "127.0.0.1:8080"

	// ShutdownTimeout bounds graceful shutdown of the API server.
	ShutdownTimeout = 10 * time.Second

	// MaxRequestBody caps JSON request bodies.
	MaxRequestBody = 1 << 20
)
