// Package app wires the steward decision core to its stores and runs the
// periodic evaluation loop.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lrdigital/pmax-steward/internal/pmax/guardrail"
	"github.com/lrdigital/pmax-steward/internal/pmax/phase"
	"github.com/lrdigital/pmax-steward/internal/scheduler"
	"github.com/lrdigital/pmax-steward/internal/services/steward/domain"
	"github.com/lrdigital/pmax-steward/internal/services/steward/notify"
	"github.com/lrdigital/pmax-steward/internal/services/steward/storage/sqlite"
)

const (
	defaultPollInterval   = 5 * time.Minute
	defaultAssessInterval = 6 * time.Hour
	defaultRecapInterval  = 24 * time.Hour
)

// Config holds runtime settings for the steward loop.
type Config struct {
	// CampaignID is the campaign this steward instance manages.
	CampaignID string
	// DBPath is the SQLite database file path.
	DBPath string
	// MetricsPath is the JSON metrics snapshot file path.
	MetricsPath string
	// GuardrailsPath optionally overrides guardrail limits from YAML.
	GuardrailsPath string
	// PollInterval is how often due changes are executed.
	PollInterval time.Duration
	// AssessInterval is how often phase progression is assessed.
	AssessInterval time.Duration
	// RecapInterval is how often the daily recap is sent.
	RecapInterval time.Duration
	// Logger receives loop progress and notifications. Nil uses the
	// default standard logger.
	Logger *log.Logger
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.AssessInterval <= 0 {
		c.AssessInterval = defaultAssessInterval
	}
	if c.RecapInterval <= 0 {
		c.RecapInterval = defaultRecapInterval
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

// Run opens the store, builds the decision core, and ticks until the context
// is cancelled. Due changes execute every PollInterval; phase assessment and
// the daily recap run on their own cadences.
func Run(ctx context.Context, cfg Config) error {
	if strings.TrimSpace(cfg.CampaignID) == "" {
		return fmt.Errorf("campaign id is required")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return fmt.Errorf("db path is required")
	}
	if strings.TrimSpace(cfg.MetricsPath) == "" {
		return fmt.Errorf("metrics path is required")
	}
	cfg.applyDefaults()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open steward store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			cfg.Logger.Printf("close steward store: %v", err)
		}
	}()

	rulebook, err := guardrail.LoadConfig(cfg.GuardrailsPath)
	if err != nil {
		return fmt.Errorf("load guardrail config: %w", err)
	}

	sched := scheduler.New(store, domain.NewDryRunApplier(cfg.Logger))
	provider := domain.FileMetricsProvider{Path: cfg.MetricsPath}
	steward := domain.New(
		guardrail.NewEngine(rulebook),
		phase.NewManager(phase.DefaultConfig()),
		sched,
		provider,
		store,
		store,
		notify.NewLogNotifier(cfg.Logger),
		domain.WithLeadProvider(provider),
	)

	runtime := &runtime{
		cfg:     cfg,
		sched:   sched,
		steward: steward,
		tracer:  otelapi.Tracer("pmax-steward/steward"),
	}
	return runtime.loop(ctx)
}

type runtime struct {
	cfg     Config
	sched   *scheduler.Scheduler
	steward *domain.Steward
	tracer  trace.Tracer
}

func (r *runtime) loop(ctx context.Context) error {
	r.cfg.Logger.Printf("steward started: campaign %s, poll %s, assess %s",
		r.cfg.CampaignID, r.cfg.PollInterval, r.cfg.AssessInterval)

	// First assessment runs immediately so a fresh campaign gets its phase
	// state before the first poll.
	r.assessPass(ctx)

	pollTicker := time.NewTicker(r.cfg.PollInterval)
	defer pollTicker.Stop()
	assessTicker := time.NewTicker(r.cfg.AssessInterval)
	defer assessTicker.Stop()
	recapTicker := time.NewTicker(r.cfg.RecapInterval)
	defer recapTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.cfg.Logger.Printf("steward stopping: %v", ctx.Err())
			return nil
		case <-pollTicker.C:
			r.executePass(ctx)
		case <-assessTicker.C:
			r.assessPass(ctx)
		case <-recapTicker.C:
			r.recapPass(ctx)
		}
	}
}

func (r *runtime) executePass(ctx context.Context) {
	ctx, span := r.startSpan(ctx, "steward.execute_pending")
	defer span.End()

	results, err := r.sched.ExecutePending(ctx, r.cfg.CampaignID, time.Now().UTC())
	if err != nil {
		span.RecordError(err)
		r.cfg.Logger.Printf("execute pending changes: %v", err)
		return
	}
	for _, result := range results {
		if result.FailureMessage != "" {
			r.cfg.Logger.Printf("change %s %s: %s", result.ChangeID, result.Status, result.FailureMessage)
			continue
		}
		r.cfg.Logger.Printf("change %s %s", result.ChangeID, result.Status)
	}
}

func (r *runtime) assessPass(ctx context.Context) {
	ctx, span := r.startSpan(ctx, "steward.assess_phase")
	defer span.End()

	assessment, err := r.steward.AssessPhase(ctx, r.cfg.CampaignID)
	if err != nil {
		span.RecordError(err)
		r.cfg.Logger.Printf("assess phase: %v", err)
		return
	}
	r.cfg.Logger.Printf("phase assessment: %s", assessment.Progress.Message)
}

func (r *runtime) recapPass(ctx context.Context) {
	ctx, span := r.startSpan(ctx, "steward.daily_recap")
	defer span.End()

	if _, err := r.steward.SendDailyRecap(ctx, r.cfg.CampaignID); err != nil {
		span.RecordError(err)
		r.cfg.Logger.Printf("send daily recap: %v", err)
	}
}

func (r *runtime) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("campaign.id", r.cfg.CampaignID),
	))
}
