// Package crawljob implements the CrawlJob factory and repository: builds
// the .crawljob packaging entity and TTL-stores it, keyed by UUID.
package crawljob

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/strob0t/scavengarr/internal/domain"
)

var ErrNoValidatedLinks = errors.New("crawljob: result has no validated links")

const DefaultTTL = time.Hour

// Factory builds domain.CrawlJob entities from validated SearchResults.
type Factory struct {
	TTL time.Duration
}

func NewFactory(ttl time.Duration) *Factory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Factory{TTL: ttl}
}

// Build constructs a CrawlJob. It rejects results with empty
// ValidatedLinks: a job packaged with no live links is useless to the
// downstream download client.
func (f *Factory) Build(result domain.SearchResult) (domain.CrawlJob, error) {
	if len(result.ValidatedLinks) == 0 {
		return domain.CrawlJob{}, ErrNoValidatedLinks
	}

	packageName := strings.TrimSpace(result.Title)
	if packageName == "" {
		packageName = "Scavengarr Download"
	}

	comment := joinNonEmpty(" | ",
		result.Description,
		sizeComment(result.Size),
		sourceComment(result.SourceURL),
	)

	now := time.Now()
	job := domain.CrawlJob{
		JobID:                uuid.NewString(),
		Text:                 append([]string(nil), result.ValidatedLinks...),
		PackageName:          packageName,
		Filename:             result.ReleaseName,
		Comment:              comment,
		SourceURL:            result.SourceURL,
		CreatedAt:            now,
		ExpiresAt:            now.Add(f.TTL),
		AutoStart:            domain.TriTrue,
		Enabled:              domain.TriTrue,
		Priority:             domain.PriorityDefault,
	}
	return job, nil
}

func sizeComment(size int64) string {
	if size <= 0 {
		return ""
	}
	return "Size: " + humanSize(size)
}

func sourceComment(sourceURL string) string {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return ""
	}
	return "Source: " + sourceURL
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return strconv.FormatInt(bytes, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := "KMGTPE"
	formatted := strconv.FormatFloat(float64(bytes)/float64(div), 'f', 1, 64)
	formatted = strings.TrimSuffix(formatted, ".0")
	return formatted + " " + string(units[exp]) + "B"
}
