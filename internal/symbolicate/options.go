package symbolicate

import (
	"time"

	"github.com/stacksym/stacksym/internal/source"
)

// Option configures a Symbolicator.
type Option func(*Symbolicator)

// WithSource sets where debug info is fetched from when a request does not
// carry any.
func WithSource(src source.Source) Option {
	return func(s *Symbolicator) {
		s.source = src
	}
}

// WithHandleCacheSize sets how many loaded symbol caches are kept in memory.
//
// Default: 16
func WithHandleCacheSize(size int) Option {
	return func(s *Symbolicator) {
		s.handleCacheSize = size
	}
}

// WithMaxConcurrentBuilds bounds the number of symbol caches built at once.
//
// Default: runtime.NumCPU()
func WithMaxConcurrentBuilds(n int) Option {
	return func(s *Symbolicator) {
		s.maxBuilds = int64(n)
	}
}

// WithFetchTimeout bounds each debug info fetch. Zero disables the timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Symbolicator) {
		s.fetchTimeout = d
	}
}
