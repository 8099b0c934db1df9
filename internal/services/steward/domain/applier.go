package domain

import (
	"context"
	"log"

	"github.com/lrdigital/pmax-steward/internal/pmax"
	"github.com/lrdigital/pmax-steward/internal/services/steward/storage"
)

// DryRunApplier logs due changes instead of writing them to the live
// account. It is the default applier until an Ads-write collaborator is
// wired in.
type DryRunApplier struct {
	logger *log.Logger
}

// NewDryRunApplier creates a dry-run applier. A nil logger uses the default
// standard logger.
func NewDryRunApplier(logger *log.Logger) *DryRunApplier {
	if logger == nil {
		logger = log.Default()
	}
	return &DryRunApplier{logger: logger}
}

// Apply logs the change and reports success without touching the account.
func (a *DryRunApplier) Apply(ctx context.Context, change storage.PendingChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.logger.Printf("dry-run: would apply %s change %s for campaign %s",
		change.Change.Kind(), change.ID, change.CampaignID)
	return nil
}

var _ ChangeApplier = (*DryRunApplier)(nil)

// StaticMetricsProvider serves a fixed metrics snapshot. Used by tests and
// single-shot evaluations where the snapshot is already in hand.
type StaticMetricsProvider struct {
	Metrics pmax.Metrics
}

// Snapshot returns the fixed snapshot regardless of campaign id.
func (p StaticMetricsProvider) Snapshot(ctx context.Context, campaignID string) (pmax.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return pmax.Metrics{}, err
	}
	return p.Metrics, nil
}

var _ MetricsProvider = StaticMetricsProvider{}
