package scrapeengine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/strob0t/scavengarr/internal/domain"
	"github.com/strob0t/scavengarr/internal/linkvalidator"
)

// minResultsBeforeExpansion: below this count the engine widens the
// query once before giving up, rather than returning a thin result set
// on the first narrow phrasing.
const minResultsBeforeExpansion = 3

// Plugin is the narrow slice of the plugin contract the engine needs;
// declared locally so this package does not import the plugin package
// (which would create an import cycle, since plugin bases may in turn
// want engine-level helpers in the future).
type Plugin interface {
	Search(ctx context.Context, q domain.Query) ([]domain.SearchResult, error)
}

// Engine runs a plugin's search under bounded retry, then dedups and
// validates the combined result set, promoting alternates over dead
// primaries.
type Engine struct {
	validator *linkvalidator.Validator
	logger    *slog.Logger
	retryCfg  RetryConfig
}

func New(validator *linkvalidator.Validator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{validator: validator, logger: logger, retryCfg: DefaultRetryConfig()}
}

// Search runs the plugin, then applies dedup + validation + promotion.
func (e *Engine) Search(ctx context.Context, p Plugin, q domain.Query) ([]domain.SearchResult, error) {
	var results []domain.SearchResult
	err := RetryWithBackoff(ctx, e.retryCfg, func() error {
		out, runErr := p.Search(ctx, q)
		if runErr != nil {
			return runErr
		}
		results = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	if relaxed, ok := relaxedQuery(q); ok && len(results) < minResultsBeforeExpansion {
		var expanded []domain.SearchResult
		expandErr := RetryWithBackoff(ctx, e.retryCfg, func() error {
			out, runErr := p.Search(ctx, relaxed)
			if runErr != nil {
				return runErr
			}
			expanded = out
			return nil
		})
		if expandErr != nil {
			e.logger.Warn("query expansion retry failed, keeping narrow results",
				slog.String("plugin", q.PluginName), slog.String("error", expandErr.Error()))
		} else {
			e.logger.Info("query expansion retry widened a thin result set",
				slog.String("plugin", q.PluginName), slog.Int("narrow_count", len(results)), slog.Int("expanded_count", len(expanded)))
			results = append(results, expanded...)
		}
	}

	deduped := dedupByTitleAndLink(results)
	validated := e.validateAndPromote(ctx, deduped)
	return validated, nil
}

// relaxedQuery drops the last whitespace-separated token of q.Q, producing
// a broader phrasing for the one-shot expansion retry. Returns ok=false
// when the query has no further token to drop (single-word queries, or
// extended-probe queries with an empty Q).
func relaxedQuery(q domain.Query) (domain.Query, bool) {
	tokens := strings.Fields(q.Q)
	if len(tokens) < 2 {
		return domain.Query{}, false
	}
	relaxed := q
	relaxed.Q = strings.Join(tokens[:len(tokens)-1], " ")
	return relaxed, true
}

// dedupByTitleAndLink dedups by info-hash when a bittorrent-style adapter
// set one (the same release served by two indexers resolves to the same
// info-hash even with different titles/links), falling back to
// (title, download_link) for everything else. Stable order preserved.
func dedupByTitleAndLink(results []domain.SearchResult) []domain.SearchResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		key := r.Title + "\x00" + r.DownloadLink
		if r.InfoHash != "" {
			key = "infohash\x00" + r.InfoHash
		}
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// validateAndPromote calls the validator in batch across the union of
// every result's primary link plus its alternates, then assembles
// validated_links per result, promoting the first live alternate over a
// dead primary and dropping results with zero live links.
func (e *Engine) validateAndPromote(ctx context.Context, results []domain.SearchResult) []domain.SearchResult {
	urlSet := make(map[string]struct{})
	for _, r := range results {
		if r.DownloadLink != "" {
			urlSet[r.DownloadLink] = struct{}{}
		}
		for _, alt := range r.DownloadLinks {
			if alt.URL != "" {
				urlSet[alt.URL] = struct{}{}
			}
		}
	}
	urls := make([]string, 0, len(urlSet))
	for u := range urlSet {
		urls = append(urls, u)
	}
	liveness := e.validator.ValidateBatch(ctx, urls)

	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		candidates := make([]string, 0, 1+len(r.DownloadLinks))
		if r.DownloadLink != "" {
			candidates = append(candidates, r.DownloadLink)
		}
		for _, alt := range r.DownloadLinks {
			if alt.URL != "" && alt.URL != r.DownloadLink {
				candidates = append(candidates, alt.URL)
			}
		}

		var validated []string
		for _, candidate := range candidates {
			if liveness[candidate] {
				validated = append(validated, candidate)
			}
		}
		if len(validated) == 0 {
			e.logger.Warn("dropping result with zero live links",
				slog.String("title", r.Title), slog.String("primary", r.DownloadLink))
			continue
		}
		r.ValidatedLinks = validated
		r.DownloadLink = validated[0]
		out = append(out, r)
	}
	return out
}
