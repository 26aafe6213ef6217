package crawljob

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/strob0t/scavengarr/internal/cachekv"
	"github.com/strob0t/scavengarr/internal/domain"
)

// Repository stores and retrieves CrawlJob entities in the crawljob:
// cache namespace, keyed by job id, with the job's own TTL.
type Repository struct {
	store cachekv.Port
}

func NewRepository(store cachekv.Port) *Repository {
	return &Repository{store: store}
}

func (r *Repository) key(jobID string) string {
	return cachekv.NamespaceCrawlJob + jobID
}

// Save assigns a fresh JobID if unset and persists the job until ExpiresAt.
func (r *Repository) Save(ctx context.Context, job domain.CrawlJob) (domain.CrawlJob, error) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	ttl := time.Until(job.ExpiresAt)
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := r.store.Set(ctx, r.key(job.JobID), Serialize(job), ttl); err != nil {
		return domain.CrawlJob{}, fmt.Errorf("crawljob: save %s: %w", job.JobID, err)
	}
	return job, nil
}

func (r *Repository) Get(ctx context.Context, jobID string) (domain.CrawlJob, bool, error) {
	raw, ok, err := r.store.Get(ctx, r.key(jobID))
	if err != nil {
		return domain.CrawlJob{}, false, fmt.Errorf("crawljob: get %s: %w", jobID, err)
	}
	if !ok {
		return domain.CrawlJob{}, false, nil
	}
	job, err := Parse(raw)
	if err != nil {
		return domain.CrawlJob{}, false, err
	}
	job.JobID = jobID
	return job, true, nil
}

func (r *Repository) Delete(ctx context.Context, jobID string) error {
	return r.store.Delete(ctx, r.key(jobID))
}
