package plugin

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/strob0t/scavengarr/internal/browserpool"
)

// challengeMarkers are known Cloudflare / DDoS-Guard page markers. Tolerant
// substring match against page title/body text is sufficient here; a real
// driver (see browserpool) would expose richer selectors.
var challengeMarkers = []string{
	"Checking your browser",
	"DDoS-Guard",
	"Just a moment...",
	"cf-browser-verification",
}

// HeadlessBase shares a single process-wide browser across requests. Each
// request acquires a fresh context/page from the pool and MUST close it
// on every exit path.
type HeadlessBase struct {
	Pool Pool
	gate *semaphore.Weighted
}

// Pool is an alias of browserpool.Pool, so plugins can name the pool type
// through this package.
type Pool = browserpool.Pool

func NewHeadlessBase(pool Pool, concurrency int64) *HeadlessBase {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &HeadlessBase{Pool: pool, gate: semaphore.NewWeighted(concurrency)}
}

// WithPage acquires a page bounded by the headless concurrency cap,
// guarantees Close on every exit path, and detects unresolved challenge
// pages after navigation.
func (h *HeadlessBase) WithPage(ctx context.Context, navigateURL string, fn func(browserpool.Page) error) error {
	if err := h.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer h.gate.Release(1)

	page, err := h.Pool.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("headless base: acquire page: %w", err)
	}
	defer page.Close()

	if err := page.Navigate(ctx, navigateURL); err != nil {
		return fmt.Errorf("headless base: navigate: %w", err)
	}
	if err := h.detectChallenge(ctx, page); err != nil {
		return err
	}
	return fn(page)
}

func (h *HeadlessBase) detectChallenge(ctx context.Context, page browserpool.Page) error {
	content, err := page.Content(ctx)
	if err != nil {
		// Treat an unreadable page as a potential unresolved challenge
		// rather than a generic transport failure.
		return fmt.Errorf("headless base: %w", browserpool.ErrChallenge)
	}
	for _, marker := range challengeMarkers {
		if strings.Contains(content, marker) {
			return fmt.Errorf("headless base: %w", browserpool.ErrChallenge)
		}
	}
	return nil
}
