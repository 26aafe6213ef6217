// Package linkvalidator implements the link validator: batched
// HEAD-then-GET reachability filtering bounded by a single concurrency
// semaphore.
package linkvalidator

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/semaphore"
)

type Validator struct {
	client *http.Client
	gate   *semaphore.Weighted
}

func New(client *http.Client, concurrency int64) *Validator {
	if concurrency <= 0 {
		concurrency = 20
	}
	return &Validator{client: client, gate: semaphore.NewWeighted(concurrency)}
}

// Validate checks a single URL for reachability.
func (v *Validator) Validate(ctx context.Context, rawURL string) bool {
	if err := v.gate.Acquire(ctx, 1); err != nil {
		return false
	}
	defer v.gate.Release(1)
	return v.probe(ctx, rawURL)
}

// ValidateBatch checks many URLs in parallel, all probes launched and
// awaited with no early termination.
func (v *Validator) ValidateBatch(ctx context.Context, urls []string) map[string]bool {
	results := make(map[string]bool, len(urls))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, rawURL := range urls {
		rawURL := rawURL
		wg.Add(1)
		go func() {
			defer wg.Done()
			live := v.Validate(ctx, rawURL)
			mu.Lock()
			results[rawURL] = live
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// probe issues HEAD first; on timeout, transport error, or status >= 400
// it falls back to a ranged GET, since some hosters blanket-403 HEAD.
func (v *Validator) probe(ctx context.Context, rawURL string) bool {
	if live, ok := v.headProbe(ctx, rawURL); ok {
		return live
	}
	return v.getProbe(ctx, rawURL)
}

func (v *Validator) headProbe(ctx context.Context, rawURL string) (live bool, decisive bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false, true
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return false, false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return true, true
	}
	return false, false
}

func (v *Validator) getProbe(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := v.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}
