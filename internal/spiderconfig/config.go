// Package spiderconfig defines the crawl configuration knobs spec.md §6
// names, in the same DefaultConfig/Validate/Clone shape as the teacher's
// internal/config/config.go.
package spiderconfig

import (
	"fmt"
	"runtime"
	"time"
)

// JitterRange models RANDOM_DOWNLOAD_DELAY's bool-or-(lo,hi) polymorphism
// (spec.md §6): nil means disabled, DefaultJitter gives the default
// (0.5, 1.5) multiplier range, anything else is a custom range. Both bounds
// must be positive; Validate rejects a zero-value JitterRange.
type JitterRange struct {
	Lo float64
	Hi float64
}

// DefaultJitter returns the framework's default jitter multiplier range.
func DefaultJitter() *JitterRange {
	return &JitterRange{Lo: 0.5, Hi: 1.5}
}

// Config holds all the tunables the crawl engine's components read.
type Config struct {
	// Workers is the fetcher pool size (§4.4). Default 2×CPUs.
	Workers int

	// Timeout is the per-request HTTP timeout (§6 TIMEOUT).
	Timeout time.Duration

	// DownloadDelay is the minimum inter-fetch spacing enforced globally
	// across the whole fetcher pool (§4.6 DOWNLOAD_DELAY). Zero disables
	// rate limiting.
	DownloadDelay time.Duration

	// RandomDelay, when non-nil, jitters DownloadDelay by a uniform
	// multiplier in [Lo, Hi) per fetch (§4.6 RANDOM_DOWNLOAD_DELAY).
	RandomDelay *JitterRange

	// RetryTimes is the per-request retry budget (§6 RETRY_TIMES).
	RetryTimes int

	// RetryCodes are the HTTP status codes that are treated as a
	// retryable download failure (§6 RETRY_CODES).
	RetryCodes map[int]struct{}

	// RetryDelay is the flat delay before a retried request becomes
	// eligible to be re-fetched (§6 RETRY_DELAY; see DESIGN.md Open
	// Question 2 for why this is flat, not exponential).
	RetryDelay time.Duration

	// MaxRequestQueueSize bounds the DelayQueue's FIFO (§6
	// MAX_REQUEST_QUEUE_SIZE, §4.1).
	MaxRequestQueueSize int

	// DefaultHeaders fill in headers the caller has not set on the Request
	// (§3, §6 DEFAULT_HEADERS): seed requests get them at enqueue time, and
	// every request gets them when its HTTP request is built.
	DefaultHeaders map[string]string

	// ReportIgnoredWithoutCause controls the silent-absorb Open Question
	// from spec.md §9: when false (default), a RequestIgnored/
	// ResponseIgnored with no Cause is absorbed at DEBUG rather than
	// reported via OnError.
	ReportIgnoredWithoutCause bool

	// MaxRedirects bounds how many redirects the transport will follow
	// for a single request before giving up.
	MaxRedirects int
}

// Default returns a Config with the defaults spec.md §6 specifies.
func Default() *Config {
	return &Config{
		Workers:       runtime.NumCPU() * 2,
		Timeout:       30 * time.Second,
		DownloadDelay: 0,
		RandomDelay:   DefaultJitter(),
		RetryTimes:    3,
		RetryCodes: map[int]struct{}{
			500: {}, 502: {}, 503: {}, 504: {}, 408: {}, 429: {},
		},
		RetryDelay:          time.Second,
		MaxRequestQueueSize: 256,
		DefaultHeaders: map[string]string{
			"User-Agent":      "cobweb/1.0",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.5",
		},
		MaxRedirects: 10,
	}
}

// Validate checks constraints and returns an error for the first invalid
// value it finds; it does not modify the Config.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("spiderconfig: Workers must be positive, got %d", c.Workers)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("spiderconfig: Timeout must be positive, got %v", c.Timeout)
	}
	if c.DownloadDelay < 0 {
		return fmt.Errorf("spiderconfig: DownloadDelay must be non-negative, got %v", c.DownloadDelay)
	}
	if c.RetryTimes < 0 {
		return fmt.Errorf("spiderconfig: RetryTimes must be non-negative, got %d", c.RetryTimes)
	}
	for code := range c.RetryCodes {
		if code < 400 || code >= 600 {
			return fmt.Errorf("spiderconfig: retry code %d out of [400, 600)", code)
		}
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("spiderconfig: RetryDelay must be non-negative, got %v", c.RetryDelay)
	}
	if c.MaxRequestQueueSize < 1 {
		return fmt.Errorf("spiderconfig: MaxRequestQueueSize must be positive, got %d", c.MaxRequestQueueSize)
	}
	if c.RandomDelay != nil && (c.RandomDelay.Lo <= 0 || c.RandomDelay.Hi <= 0) {
		return fmt.Errorf("spiderconfig: RandomDelay bounds must be positive")
	}
	return nil
}

// IsRetryCode reports whether code is in the configured retry-code set.
func (c *Config) IsRetryCode(code int) bool {
	_, ok := c.RetryCodes[code]
	return ok
}

// Clone returns a deep copy so callers can customize per-spider config
// without mutating a shared default.
func (c *Config) Clone() *Config {
	clone := *c

	clone.RetryCodes = make(map[int]struct{}, len(c.RetryCodes))
	for k := range c.RetryCodes {
		clone.RetryCodes[k] = struct{}{}
	}

	clone.DefaultHeaders = make(map[string]string, len(c.DefaultHeaders))
	for k, v := range c.DefaultHeaders {
		clone.DefaultHeaders[k] = v
	}

	if c.RandomDelay != nil {
		r := *c.RandomDelay
		clone.RandomDelay = &r
	}

	return &clone
}
