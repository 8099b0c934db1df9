package domain

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeMetricsFile(t *testing.T, content string) FileMetricsProvider {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metrics.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write metrics file: %v", err)
	}
	return FileMetricsProvider{Path: path}
}

func TestFileMetricsProviderLeads(t *testing.T) {
	t.Run("single snapshot with leads", func(t *testing.T) {
		provider := writeMetricsFile(t, `{
			"campaign_id": "pmax-general",
			"daily_budget": 40,
			"leads": [
				{"id": "lead-1", "lqs": 7, "source": "lead_form"},
				{"id": "lead-2", "lqs": 3}
			]
		}`)

		leads, err := provider.Leads(context.Background(), "pmax-general", 30)
		if err != nil {
			t.Fatalf("read leads: %v", err)
		}
		if len(leads) != 2 || leads[0].ID != "lead-1" || leads[0].LQS != 7 {
			t.Fatalf("unexpected leads: %+v", leads)
		}
	})

	t.Run("keyed snapshot with leads", func(t *testing.T) {
		provider := writeMetricsFile(t, `{
			"pmax-general": {
				"daily_budget": 40,
				"leads": [{"id": "lead-1", "lqs": 6}]
			}
		}`)

		leads, err := provider.Leads(context.Background(), "pmax-general", 30)
		if err != nil {
			t.Fatalf("read leads: %v", err)
		}
		if len(leads) != 1 || leads[0].LQS != 6 {
			t.Fatalf("unexpected leads: %+v", leads)
		}
	})

	t.Run("file without leads yields empty period", func(t *testing.T) {
		provider := writeMetricsFile(t, `{"campaign_id": "pmax-general", "daily_budget": 40}`)

		leads, err := provider.Leads(context.Background(), "pmax-general", 30)
		if err != nil {
			t.Fatalf("read leads: %v", err)
		}
		if len(leads) != 0 {
			t.Fatalf("expected no leads, got %+v", leads)
		}
	})
}
