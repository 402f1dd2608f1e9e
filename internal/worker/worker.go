// Package worker provides async anomaly detection driven by the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensupply/tradewind/internal/alerts"
	"github.com/opensupply/tradewind/internal/domain"
	"github.com/opensupply/tradewind/internal/variance"
)

// Worker re-runs anomaly detection whenever new pricing lands and raises
// alerts for anomalies that match a rule. A per-(SKU, region) counter in
// the cache throttles alert storms.
type Worker struct {
	bus      domain.EventBus
	cache    domain.Cache
	detector *variance.Detector
	engine   *alerts.Engine
	cfg      domain.WorkerConfig

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates an anomaly worker.
func NewWorker(bus domain.EventBus, cache domain.Cache, detector *variance.Detector, engine *alerts.Engine, cfg domain.WorkerConfig) *Worker {
	if cfg.MaxAlertsPerWindow <= 0 {
		cfg.MaxAlertsPerWindow = 10
	}
	if cfg.AlertWindow <= 0 {
		cfg.AlertWindow = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		cache:    cache,
		detector: detector,
		engine:   engine,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes the worker to pricing observation events.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicPricingObserved, w.handlePricingObserved)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicPricingObserved, err)
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("anomaly worker started",
		"topic", domain.TopicPricingObserved,
		"max_alerts_per_window", w.cfg.MaxAlertsPerWindow,
		"alert_window", w.cfg.AlertWindow,
	)
	return nil
}

// handlePricingObserved re-detects anomalies for the affected SKU and
// publishes an alert for each flagged observation that matches a rule.
func (w *Worker) handlePricingObserved(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var event domain.PricingObservedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse pricing observed event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	slog.Debug("reprocessing anomalies",
		"sku_id", event.SKUID,
		"region", event.Region,
	)

	anomalies, err := w.detector.DetectRegionalAnomalies(ctx, event.SKUID, "")
	if err != nil {
		slog.Error("anomaly detection failed",
			"sku_id", event.SKUID,
			"error", err,
		)
		return err
	}

	published := 0
	for i := range anomalies {
		n, err := w.ProcessAnomaly(ctx, &anomalies[i])
		if err != nil {
			slog.Error("failed to process anomaly",
				"sku_id", anomalies[i].SKUID,
				"region", anomalies[i].Region,
				"error", err,
			)
			continue
		}
		published += n
	}

	slog.Info("pricing event processed",
		"sku_id", event.SKUID,
		"anomalies", len(anomalies),
		"alerts_published", published,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// ProcessAnomaly evaluates alert rules against one anomaly and publishes
// an event per matching rule, subject to the rate window. Returns the
// number of alerts published.
func (w *Worker) ProcessAnomaly(ctx context.Context, anomaly *domain.VarianceResult) (int, error) {
	matches, err := w.engine.Evaluate(ctx, anomaly)
	if err != nil {
		return 0, fmt.Errorf("rule evaluation failed: %w", err)
	}

	published := 0
	for _, match := range matches {
		if match.EvalError != "" {
			slog.Warn("alert rule evaluation error",
				"rule_id", match.RuleID,
				"error", match.EvalError,
			)
			continue
		}

		allowed, err := w.allowAlert(ctx, anomaly)
		if err != nil {
			slog.Warn("alert throttle check failed, publishing anyway",
				"rule_id", match.RuleID,
				"error", err,
			)
		} else if !allowed {
			slog.Debug("alert throttled",
				"rule_id", match.RuleID,
				"sku_id", anomaly.SKUID,
				"region", anomaly.Region,
			)
			continue
		}

		event := domain.AnomalyDetectedEvent{
			RuleID:   match.RuleID,
			RuleName: match.RuleName,
			Severity: match.Severity,
			Anomaly:  *anomaly,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return published, fmt.Errorf("failed to marshal alert: %w", err)
		}

		if err := w.bus.Publish(ctx, domain.TopicAnomalyDetected, payload); err != nil {
			slog.Error("failed to publish alert",
				"rule_id", match.RuleID,
				"error", err,
			)
			continue
		}
		published++
	}

	return published, nil
}

// allowAlert enforces the per-(SKU, region) alert cap within the window.
func (w *Worker) allowAlert(ctx context.Context, anomaly *domain.VarianceResult) (bool, error) {
	if w.cache == nil {
		return true, nil
	}

	key := "alerts:" + anomaly.SKUID + ":" + anomaly.Region
	count, err := w.cache.IncrementCounter(ctx, key, w.cfg.AlertWindow)
	if err != nil {
		return true, err
	}
	return count <= int64(w.cfg.MaxAlertsPerWindow), nil
}

// Stop gracefully stops the worker.
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

	slog.Info("anomaly worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	LoadedRules       int      `json:"loadedRules"`
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
		LoadedRules:       w.engine.RulesCount(),
	}
}
