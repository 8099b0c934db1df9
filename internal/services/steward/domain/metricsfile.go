package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	apperrors "github.com/lrdigital/pmax-steward/internal/errors"
	"github.com/lrdigital/pmax-steward/internal/pmax"
	"github.com/lrdigital/pmax-steward/internal/pmax/leadquality"
)

// FileMetricsProvider reads campaign metrics snapshots from a JSON file. The
// file holds either a single snapshot or an object keyed by campaign id, and
// each entry may carry a "leads" array of scored lead records. It is re-read
// on every call so an operator can refresh it between ticks.
type FileMetricsProvider struct {
	Path string
}

// Snapshot reads and decodes the metrics file for one campaign.
func (p FileMetricsProvider) Snapshot(ctx context.Context, campaignID string) (pmax.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return pmax.Metrics{}, err
	}
	if strings.TrimSpace(p.Path) == "" {
		return pmax.Metrics{}, fmt.Errorf("metrics file path is required")
	}

	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return pmax.Metrics{}, fmt.Errorf("read metrics file: %w", err)
	}

	// Single-snapshot form: the object has campaign metrics fields at top
	// level.
	var single pmax.Metrics
	if err := json.Unmarshal(raw, &single); err == nil && single.CampaignID != "" {
		if single.CampaignID == campaignID {
			return single, nil
		}
	}

	// Keyed form: campaign id to metrics.
	var keyed map[string]pmax.Metrics
	if err := json.Unmarshal(raw, &keyed); err == nil {
		if metrics, ok := keyed[campaignID]; ok {
			if metrics.CampaignID == "" {
				metrics.CampaignID = campaignID
			}
			return metrics, nil
		}
	}

	return pmax.Metrics{}, apperrors.WithMetadata(apperrors.CodeNotFound,
		"no metrics snapshot for campaign",
		map[string]string{"campaign_id": campaignID, "path": p.Path})
}

// leadDocument is the optional lead-record portion of a metrics file entry.
type leadDocument struct {
	CampaignID string             `json:"campaign_id"`
	Leads      []leadquality.Lead `json:"leads"`
}

// Leads reads the scored lead records stored alongside the metrics snapshot.
// A file without a "leads" array yields an empty period rather than an error.
// The file carries whatever period the operator exported; periodDays is the
// caller's declared window and is not re-filtered here.
func (p FileMetricsProvider) Leads(ctx context.Context, campaignID string, periodDays int) ([]leadquality.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Path) == "" {
		return nil, fmt.Errorf("metrics file path is required")
	}

	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read metrics file: %w", err)
	}

	var single leadDocument
	if err := json.Unmarshal(raw, &single); err == nil && single.CampaignID == campaignID {
		return single.Leads, nil
	}

	var keyed map[string]leadDocument
	if err := json.Unmarshal(raw, &keyed); err == nil {
		if doc, ok := keyed[campaignID]; ok {
			return doc.Leads, nil
		}
	}
	return nil, nil
}

var _ MetricsProvider = FileMetricsProvider{}
var _ LeadProvider = FileMetricsProvider{}
