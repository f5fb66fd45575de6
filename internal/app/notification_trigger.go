// internal/app/notification_trigger.go
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pool_maintenance_service/internal/domain/maintenance"
	"pool_maintenance_service/internal/domain/notification"
	"pool_maintenance_service/internal/domain/parameter"
)

const defaultTriggerTimeout = 5 * time.Second

// Threshold raises Topic when a parameter is measured strictly above Above.
type Threshold struct {
	Parameter string // normalised name
	Above     float64
	Topic     notification.Topic
}

// DefaultThresholds is the alert table used when a definition carries no alert of its own.
func DefaultThresholds() []Threshold {
	return []Threshold{
		{Parameter: "alkalinity", Above: 120, Topic: "alkalinity-high"},
		{Parameter: "cyanuric-acid", Above: 50, Topic: "cyanuric-high"},
		{Parameter: "salt", Above: 6, Topic: "salt-high"},
	}
}

// Notifier pushes a newly raised notification to a human, e.g. over Telegram.
type Notifier interface {
	Notify(ctx context.Context, n *notification.Notification) error
}

// NotificationTrigger opens a notification when a measurement crosses its threshold.
// At most one notification per (client, topic) is open at a time; repeated crossings are absorbed.
type NotificationTrigger struct {
	repo       notification.Repository
	notifier   Notifier
	thresholds map[string]Threshold
	metrics    Metrics
	logger     *logrus.Entry
	timeout    time.Duration
	now        func() time.Time
	dispatches sync.WaitGroup
}

func NewNotificationTrigger(
	repo notification.Repository,
	notifier Notifier,
	thresholds []Threshold,
	metrics Metrics,
	logger *logrus.Entry,
	timeout time.Duration,
) *NotificationTrigger {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if timeout <= 0 {
		timeout = defaultTriggerTimeout
	}
	byName := make(map[string]Threshold, len(thresholds))
	for _, th := range thresholds {
		byName[parameter.NormalizeName(th.Parameter)] = th
	}
	return &NotificationTrigger{
		repo:       repo,
		notifier:   notifier,
		thresholds: byName,
		metrics:    metrics,
		logger:     logger,
		timeout:    timeout,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// thresholdFor prefers the definition's own alert over the default table.
func (t *NotificationTrigger) thresholdFor(name string, def *parameter.Definition) (Threshold, bool) {
	if def != nil && def.AlertAbove.Valid {
		topic := notification.Topic(parameter.NormalizeName(name) + "-high")
		if def.AlertTopic.Valid && def.AlertTopic.String != "" {
			topic = notification.Topic(def.AlertTopic.String)
		}
		return Threshold{Parameter: parameter.NormalizeName(name), Above: def.AlertAbove.Float64, Topic: topic}, true
	}
	th, ok := t.thresholds[parameter.NormalizeName(name)]
	return th, ok
}

// Evaluate never returns an error: failures are logged and the measurement stands.
func (t *NotificationTrigger) Evaluate(ctx context.Context, rec *maintenance.Record, inst *maintenance.Instance, def *parameter.Definition) {
	log := t.logger.WithFields(logrus.Fields{"company_id": rec.CompanyID, "client_id": rec.ClientID, "parameter": inst.ParameterName})
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Recovered from panic in notification trigger: %v", r)
		}
	}()

	if !inst.Measured() {
		return
	}
	th, ok := t.thresholdFor(inst.ParameterName, def)
	if !ok || inst.CurrentValue.Float64 <= th.Above {
		return
	}

	// The request may already be gone; the alert still belongs to the committed measurement.
	detached := context.WithoutCancel(ctx)
	ctx, cancel := context.WithTimeout(detached, t.timeout)
	defer cancel()

	n := &notification.Notification{
		CompanyID: rec.CompanyID,
		ClientID:  rec.ClientID,
		Topic:     th.Topic,
		Subject:   fmt.Sprintf("%s above %.2f", inst.ParameterName, th.Above),
		Message: fmt.Sprintf("%s measured %.2f on maintenance record %d (limit %.2f)",
			inst.ParameterName, inst.CurrentValue.Float64, rec.ID, th.Above),
		Status:    notification.StatusPending,
		CreatedAt: t.now(),
	}
	created, err := t.repo.CreateIfNoneOpen(ctx, n)
	if err != nil {
		log.WithError(err).Error("Failed to raise notification")
		return
	}
	if !created {
		log.WithField("topic", th.Topic).Debug("Notification already open for topic, skipping")
		return
	}

	t.metrics.NotificationRaised(th.Topic)
	log.WithFields(logrus.Fields{"topic": th.Topic, "notification_id": n.ID}).Info("Notification raised")

	if t.notifier == nil {
		return
	}
	t.dispatches.Add(1)
	go t.dispatch(detached, n, log)
}

// dispatch sends the alert off the caller's goroutine.
func (t *NotificationTrigger) dispatch(ctx context.Context, n *notification.Notification, log *logrus.Entry) {
	defer t.dispatches.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Recovered from panic in notification dispatch: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if err := t.notifier.Notify(ctx, n); err != nil {
		log.WithError(err).Warn("Failed to dispatch notification alert")
	}
}

// Wait blocks until every alert dispatch started so far has finished.
func (t *NotificationTrigger) Wait() {
	t.dispatches.Wait()
}
