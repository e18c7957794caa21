// Package worker provides async verdict persistence off the analysis hot path.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// Worker consumes verdict events from the EventBus and persists them.
// Analysis handlers publish and return; the worker absorbs storage latency.
type Worker struct {
	bus  domain.EventBus
	repo domain.Repository

	alertFloor int

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// AlertScoreFloor is the minimum score that triggers an alert event.
	AlertScoreFloor int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cfg Config) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	alertFloor := cfg.AlertScoreFloor
	if alertFloor <= 0 {
		alertFloor = 80
	}

	return &Worker{
		bus:        bus,
		repo:       repo,
		alertFloor: alertFloor,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the verdict topic and begins processing.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicVerdictCreated, w.handleVerdict)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicVerdictCreated,
		"alert_floor", w.alertFloor,
	)

	return nil
}

// handleVerdict persists a verdict event and escalates alerts.
func (w *Worker) handleVerdict(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var event domain.VerdictEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse verdict event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if event.Verdict == nil || event.EvaluationID == "" {
		slog.Warn("verdict event missing verdict or evaluation id",
			"message_id", msg.ID,
		)
		return nil
	}

	slog.Debug("persisting verdict",
		"evaluation_id", event.EvaluationID,
		"record_id", event.Verdict.ID,
	)

	// 1. Persist the verdict
	if w.repo != nil {
		if err := w.repo.SaveVerdict(ctx, event.EvaluationID, event.Verdict); err != nil {
			slog.Error("failed to save verdict",
				"evaluation_id", event.EvaluationID,
				"error", err,
			)
			return err
		}

		// 2. Persist the trace when present
		if event.Explanation != nil {
			if err := w.repo.SaveExplanation(ctx, event.Explanation); err != nil {
				slog.Error("failed to save explanation",
					"evaluation_id", event.EvaluationID,
					"error", err,
				)
			}
		}
	}

	// 3. Escalate high-scoring verdicts to the alert topic
	if event.Verdict.Score >= w.alertFloor {
		if err := w.bus.Publish(ctx, domain.TopicVerdictAlert, msg.Payload); err != nil {
			slog.Error("failed to publish alert",
				"evaluation_id", event.EvaluationID,
				"error", err,
			)
		}
	}

	slog.Info("verdict persisted",
		"evaluation_id", event.EvaluationID,
		"catalogue_id", event.Verdict.CatalogueID,
		"score", event.Verdict.Score,
		"severity", event.Verdict.Severity,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
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

	slog.Info("worker stopped")
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
