package scrapeengine

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// StageRunner executes one DAG stage (list or detail) across a set of
// URLs, bounded by the plugin's semaphore, with visited-URL dedup on the
// query local and a configurable max depth.
type StageRunner struct {
	gate    *semaphore.Weighted
	visited map[string]struct{}
	mu      sync.Mutex
	maxDepth int
}

func NewStageRunner(gate *semaphore.Weighted, maxDepth int) *StageRunner {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &StageRunner{gate: gate, visited: make(map[string]struct{}), maxDepth: maxDepth}
}

// Run executes fetch(url) for every url not already visited and within
// depth, fanning out in parallel bounded by the shared semaphore.
func (s *StageRunner) Run(ctx context.Context, depth int, urls []string, fetch func(ctx context.Context, url string) error) error {
	if depth > s.maxDepth {
		return nil
	}

	pending := s.markUnvisited(urls)
	if len(pending) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(pending))
	for _, u := range pending {
		u := u
		if err := s.gate.Acquire(ctx, 1); err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.gate.Release(1)
			if err := fetch(ctx, u); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	// A per-URL failure does not abort the stage. Only surface a
	// cancellation, which cannot be recovered from regardless of how many
	// URLs remain.
	for err := range errs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = err
	}
	return nil
}

func (s *StageRunner) markUnvisited(urls []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := s.visited[u]; ok {
			continue
		}
		s.visited[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// MirrorFetch attempts fetch against base, falling back through mirrors in
// order on terminal failure of the current domain; on success, the
// succeeding domain is returned so callers can adopt it for subsequent
// fetches in this run.
func MirrorFetch(ctx context.Context, domains []string, fetch func(ctx context.Context, base string) error) (adoptedBase string, err error) {
	var lastErr error
	for _, base := range domains {
		if err := fetch(ctx, base); err != nil {
			lastErr = err
			continue
		}
		return base, nil
	}
	return "", lastErr
}
