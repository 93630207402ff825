package cache

import (
	"context"
	"time"

	"bioxpos/internal/report"
)

// SummaryCache shields the store from repeated dashboard reads. Entries are
// short-lived report summaries keyed by window.
type SummaryCache interface {
	Get(ctx context.Context, key string) (*report.Summary, bool, error)
	Set(ctx context.Context, key string, value *report.Summary, ttl time.Duration) error
}

type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(_ context.Context, _ string) (*report.Summary, bool, error) {
	return nil, false, nil
}

func (NoopSummaryCache) Set(_ context.Context, _ string, _ *report.Summary, _ time.Duration) error {
	return nil
}
