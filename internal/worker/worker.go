// Package worker provides async message processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/riskgraph/addrrisk/internal/domain"
	"github.com/riskgraph/addrrisk/internal/pipeline"
)

// Worker processes address analysis requests asynchronously from the
// EventBus, the Pro-tier counterpart to the synchronous POST /analyze
// handler.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	pipeline *pipeline.Pipeline

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = one
	// subscription under the "_global" tenant ID)
	TenantIDs []string

	// WorkerCount is accepted as configuration; Start opens one
	// subscription per tenant regardless of its value.
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, pl *pipeline.Pipeline) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		pipeline: pl,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker subscribes under the "_global" tenant ID (for
// testing/dev); it receives only requests published for that tenant ID.
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicAnalysisRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicAnalysisRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processAnalysisRequest(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicAnalysisRequested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processAnalysisRequest(ctx, msg.TenantID, msg)
}

// AnalysisRequest is the message payload for an asynchronous analysis
// request.
type AnalysisRequest struct {
	TraceID string `json:"traceId,omitempty"`
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Asset   string `json:"asset,omitempty"`
}

// processAnalysisRequest runs the analysis pipeline for one requested
// address and publishes the resulting score.
func (w *Worker) processAnalysisRequest(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var req AnalysisRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse analysis request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	slog.Debug("processing analysis request",
		"address", req.Address,
		"chain", req.Chain,
		"tenant_id", tenantID,
	)

	analysis, err := w.pipeline.Analyze(ctx, tenantID, req.Chain, req.Address, req.Asset)
	if err != nil {
		slog.Error("pipeline analysis failed",
			"address", req.Address,
			"error", err,
		)
		return err
	}

	if w.repo != nil {
		if err := w.repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
			slog.Error("failed to save analysis",
				"id", analysis.ID,
				"error", err,
			)
		}
	}

	resultPayload, _ := json.Marshal(analysis.ToResponse())
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, resultPayload); err != nil {
		slog.Error("failed to publish analysis result",
			"id", analysis.ID,
			"error", err,
		)
	}

	if analysis.Score != nil && analysis.Score.Level == domain.RiskLevelCritical {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAnalysisAlert, resultPayload); err != nil {
			slog.Error("failed to publish analysis alert",
				"id", analysis.ID,
				"error", err,
			)
		}
	}

	slog.Info("analysis processed",
		"id", analysis.ID,
		"tenant_id", tenantID,
		"address", req.Address,
		"level", analysis.Score.Level,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
