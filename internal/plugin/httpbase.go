package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"
	"golang.org/x/text/encoding/charmap"
)

const (
	DefaultDetailConcurrency = 3
	DefaultMaxResults        = 1000
	DefaultRateDelay         = 1500 * time.Millisecond
)

// HTTPBase provides shared lifecycle to HTTP-mode plugins: a dedicated
// client, domain failover, bounded detail-page concurrency, and a safe
// fetch wrapper that never raises across the plugin boundary for expected
// non-success responses.
type HTTPBase struct {
	Client  *http.Client
	Domains []string

	// DetailConcurrency and RateDelay fall back to the package defaults
	// when left zero, so plugins can embed HTTPBase as a bare literal.
	DetailConcurrency int64
	RateDelay         time.Duration

	initOnce   sync.Once
	detailGate *semaphore.Weighted
	rateDelay  time.Duration

	lastFetch   time.Time
	lastFetchMu sync.Mutex

	domainMu   sync.Mutex
	activeBase string
}

func NewHTTPBase(client *http.Client, domains []string, detailConcurrency int64) *HTTPBase {
	return &HTTPBase{
		Client:            client,
		Domains:           domains,
		DetailConcurrency: detailConcurrency,
	}
}

func (b *HTTPBase) init() {
	b.initOnce.Do(func() {
		concurrency := b.DetailConcurrency
		if concurrency <= 0 {
			concurrency = DefaultDetailConcurrency
		}
		b.detailGate = semaphore.NewWeighted(concurrency)
		b.rateDelay = b.RateDelay
		if b.rateDelay <= 0 {
			b.rateDelay = DefaultRateDelay
		}
	})
}

// AcquireDetail bounds detail-page fan-out. Callers MUST release on every
// exit path; prefer `defer base.ReleaseDetail()` immediately after a
// successful acquire.
func (b *HTTPBase) AcquireDetail(ctx context.Context) error {
	b.init()
	return b.detailGate.Acquire(ctx, 1)
}

func (b *HTTPBase) ReleaseDetail() {
	b.init()
	b.detailGate.Release(1)
}

// DetailGate exposes the detail-fan-out semaphore so a plugin can hand it
// to a scrapeengine.StageRunner instead of acquiring/releasing around a
// single sequential loop.
func (b *HTTPBase) DetailGate() *semaphore.Weighted {
	b.init()
	return b.detailGate
}

// BaseURL performs domain failover exactly once per process (plus a
// caller-triggered re-check after sustained failure), probing domains[0],
// domains[1], ... via a HEAD request until one answers below 500.
func (b *HTTPBase) BaseURL(ctx context.Context) (string, error) {
	b.domainMu.Lock()
	defer b.domainMu.Unlock()
	if b.activeBase != "" {
		return b.activeBase, nil
	}
	for _, candidate := range b.Domains {
		if b.probeDomain(ctx, candidate) {
			b.activeBase = candidate
			return candidate, nil
		}
	}
	if len(b.Domains) > 0 {
		// No domain probed reachable; still adopt the primary so callers
		// can attempt a live fetch and surface a precise transport error.
		b.activeBase = b.Domains[0]
		return b.activeBase, nil
	}
	return "", errors.New("plugin: no domains configured")
}

// RecheckDomain forces the next BaseURL call to re-probe, used after
// sustained failure against the currently active domain.
func (b *HTTPBase) RecheckDomain() {
	b.domainMu.Lock()
	defer b.domainMu.Unlock()
	b.activeBase = ""
}

func (b *HTTPBase) probeDomain(ctx context.Context, base string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, base, nil)
	if err != nil {
		return false
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

// Pace enforces the per-request rate delay between stage fetches.
func (b *HTTPBase) Pace(ctx context.Context) error {
	b.init()
	b.lastFetchMu.Lock()
	wait := b.rateDelay - time.Since(b.lastFetch)
	b.lastFetchMu.Unlock()
	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	b.lastFetchMu.Lock()
	b.lastFetch = time.Now()
	b.lastFetchMu.Unlock()
	return nil
}

// FetchResult is the classified outcome of a SafeFetch call.
type FetchResult struct {
	Body []byte
	Kind FailureKind // empty if successful
	Err  error
}

// SafeFetch wraps GET with structured error classification and never
// raises across the plugin boundary for expected non-success responses.
func (b *HTTPBase) SafeFetch(ctx context.Context, url string) FetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{Kind: FailureParse, Err: err}
	}

	resp, err := b.Client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return FetchResult{Kind: FailureCancelled, Err: err}
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return FetchResult{Kind: FailureTimeout, Err: err}
		}
		return FetchResult{Kind: FailureTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return FetchResult{Kind: FailureHTTP5xx, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return FetchResult{Kind: FailureHTTP4xx, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return FetchResult{Kind: FailureParse, Err: err}
	}
	return FetchResult{Body: decodeBody(body)}
}

// decodeBody re-encodes payload to UTF-8 when it isn't already, covering
// the handful of older indexing/hoster sites still serving Windows-1251.
// Every other charmap.Windows1251 byte sequence also happens to be valid
// Latin-1, so an already-UTF-8 payload never reaches the decoder.
func decodeBody(payload []byte) []byte {
	if utf8.Valid(payload) {
		return payload
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(payload)
	if err != nil {
		return payload
	}
	return decoded
}
