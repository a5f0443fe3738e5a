// Package symbolicate turns encoded stack traces into symbolicated ones,
// building and caching a symbol cache per release.
package symbolicate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/stacksym/stacksym/internal/source"
	"github.com/stacksym/stacksym/internal/store"
	"github.com/stacksym/stacksym/pkg/stacktrace"
)

const defaultHandleCacheSize = 16

// Resolver converts debug info into symbol cache blobs and loads them.
type Resolver interface {
	Build(debugInfo []byte) ([]byte, error)
	Load(blob []byte) (Handle, error)
}

// Handle is a loaded symbol cache. Resolve returns one location list per
// address, innermost function first; an unknown address yields an empty list.
type Handle interface {
	Resolve(addrs []uint64) [][]stacktrace.FrameLocation
}

// Symbolicator resolves stack traces against per-release symbol caches. It is
// safe for concurrent use. At most one symbol cache is built per key at a time.
type Symbolicator struct {
	store    store.Store
	resolver Resolver
	source   source.Source

	handleCacheSize int
	maxBuilds       int64
	fetchTimeout    time.Duration

	handles *lru.Cache[string, Handle]
	flight  singleflight.Group
	builds  *semaphore.Weighted

	// mu orders handle cache updates against Forget and Purge. gen changes on
	// every Forget or Purge so that loads started before them are not kept.
	mu  sync.Mutex
	gen uint64

	waiting atomic.Int64
}

// New creates a Symbolicator backed by the given store and resolver.
func New(s store.Store, r Resolver, opts ...Option) (*Symbolicator, error) {
	if s == nil || r == nil {
		return nil, fmt.Errorf("store and resolver are required")
	}
	sym := &Symbolicator{
		store:           s,
		resolver:        r,
		handleCacheSize: defaultHandleCacheSize,
		maxBuilds:       int64(runtime.NumCPU()),
	}
	for _, opt := range opts {
		opt(sym)
	}
	if sym.maxBuilds <= 0 {
		sym.maxBuilds = 1
	}
	handles, err := lru.New[string, Handle](max(sym.handleCacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to create handle cache: %w", err)
	}
	sym.handles = handles
	sym.builds = semaphore.NewWeighted(sym.maxBuilds)
	return sym, nil
}

// Symbolicate decodes an encoded trace and symbolicates it. debugInfo is only
// used when no symbol cache exists for the trace's release yet; it may be nil.
func (s *Symbolicator) Symbolicate(ctx context.Context, encoded string, debugInfo []byte) (*stacktrace.SymbolicatedStackTrace, error) {
	st, err := stacktrace.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	return s.SymbolicateTrace(ctx, st, debugInfo)
}

// SymbolicateTrace symbolicates an already decoded trace. The result has one
// frame per address, in order, and carries the trace's header unchanged.
func (s *Symbolicator) SymbolicateTrace(ctx context.Context, st *stacktrace.StackTrace, debugInfo []byte) (*stacktrace.SymbolicatedStackTrace, error) {
	h, err := s.handle(ctx, st.Header, debugInfo)
	if err != nil {
		return nil, err
	}
	resolved := h.Resolve(st.Addrs)
	frames := make([]stacktrace.SymbolicatedFrame, len(st.Addrs))
	for i, addr := range st.Addrs {
		var locs []stacktrace.FrameLocation
		if i < len(resolved) {
			locs = resolved[i]
		}
		if locs == nil {
			locs = []stacktrace.FrameLocation{}
		}
		frames[i] = stacktrace.SymbolicatedFrame{Addr: addr, Locations: locs}
	}
	return &stacktrace.SymbolicatedStackTrace{
		Header: st.Header,
		Frames: frames,
	}, nil
}

// Prime makes sure a symbol cache exists for the header's release, building
// it from debugInfo (or the configured source) when missing.
func (s *Symbolicator) Prime(ctx context.Context, h stacktrace.Header, debugInfo []byte) error {
	_, err := s.handle(ctx, h, debugInfo)
	return err
}

// Keys lists the stored symbol cache keys.
func (s *Symbolicator) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.store.List(ctx)
	if err != nil {
		cacheStoreErrors.Inc()
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return keys, nil
}

// Forget drops the symbol cache for key from memory and from the store.
func (s *Symbolicator) Forget(ctx context.Context, key string) error {
	s.mu.Lock()
	s.gen++
	s.handles.Remove(key)
	s.mu.Unlock()
	s.flight.Forget(key)
	if err := s.store.Delete(ctx, key); err != nil {
		cacheStoreErrors.Inc()
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// Purge drops every symbol cache from memory and from the store.
func (s *Symbolicator) Purge(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	s.handles.Purge()
	s.mu.Unlock()
	if err := s.store.Clear(ctx); err != nil {
		cacheStoreErrors.Inc()
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// handle returns the loaded symbol cache for h. Concurrent callers for the
// same key share one load. The load runs detached from ctx: a caller that
// gives up gets ctx.Err() while the load finishes for everyone else.
//
// A caller that brought debug info and joined a load that found none runs
// its own load with its own debug info.
func (s *Symbolicator) handle(ctx context.Context, h stacktrace.Header, debugInfo []byte) (Handle, error) {
	key := h.CacheKey()
	for {
		if handle, ok := s.handles.Get(key); ok {
			cacheHits.Inc()
			return handle, nil
		}
		handle, err := s.join(ctx, key, h, debugInfo)
		if len(debugInfo) > 0 && errors.Is(err, ErrDebugInfoUnavailable) {
			log.WithField("key", key).Debug("Shared load found no debug info, retrying with the caller's")
			continue
		}
		return handle, err
	}
}

// join waits for the in-flight load of key, starting one if there is none.
func (s *Symbolicator) join(ctx context.Context, key string, h stacktrace.Header, debugInfo []byte) (Handle, error) {
	s.waiting.Add(1)
	cacheWaiters.Inc()
	defer func() {
		s.waiting.Add(-1)
		cacheWaiters.Dec()
	}()

	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (any, error) {
		return s.load(detached, key, h, debugInfo)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Handle), nil
	}
}

func (s *Symbolicator) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Symbolicator) load(ctx context.Context, key string, h stacktrace.Header, debugInfo []byte) (Handle, error) {
	// an earlier flight for this key may have finished since the caller checked
	if handle, ok := s.handles.Get(key); ok {
		cacheHits.Inc()
		return handle, nil
	}
	gen := s.generation()

	blob, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		cacheHits.Inc()
	case errors.Is(err, store.ErrNotFound):
		cacheMisses.Inc()
		if blob, err = s.build(ctx, key, h, debugInfo, gen); err != nil {
			return nil, err
		}
	default:
		cacheStoreErrors.Inc()
		return nil, fmt.Errorf("%w: %s: %w", ErrStorage, key, err)
	}

	handle, err := s.resolver.Load(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolveFailed, key, err)
	}
	s.mu.Lock()
	if s.gen == gen {
		s.handles.Add(key, handle)
	}
	s.mu.Unlock()
	return handle, nil
}

func (s *Symbolicator) build(ctx context.Context, key string, h stacktrace.Header, debugInfo []byte, gen uint64) ([]byte, error) {
	if len(debugInfo) == 0 {
		var err error
		if debugInfo, err = s.fetch(ctx, key, h); err != nil {
			return nil, err
		}
	}

	if err := s.builds.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.builds.Release(1)

	log.WithFields(log.Fields{
		"key":  key,
		"size": len(debugInfo),
	}).Debug("Building symbol cache")
	start := time.Now()
	blob, err := s.resolver.Build(debugInfo)
	cacheBuildSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		cacheBuildFailures.Inc()
		return nil, fmt.Errorf("%w: %s: %w", ErrBuildFailed, key, err)
	}
	cacheBuilds.Inc()

	if s.generation() != gen {
		log.WithField("key", key).Debug("Symbol cache was forgotten while building, not storing it")
		return blob, nil
	}
	if err := s.store.Put(ctx, key, blob); err != nil {
		cacheStoreErrors.Inc()
		log.WithError(err).WithField("key", key).Warn("Failed to store symbol cache")
	}
	return blob, nil
}

func (s *Symbolicator) fetch(ctx context.Context, key string, h stacktrace.Header) ([]byte, error) {
	if s.source == nil {
		return nil, fmt.Errorf("%w: %s", ErrDebugInfoUnavailable, key)
	}
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}
	log.WithField("key", key).Debug("Fetching debug info")
	data, err := s.source.Fetch(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDebugInfoUnavailable, key, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s: empty debug info", ErrDebugInfoUnavailable, key)
	}
	return data, nil
}
