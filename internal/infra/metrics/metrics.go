// Package metrics exposes workflow counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pool_maintenance_service/internal/app"
	"pool_maintenance_service/internal/domain/maintenance"
	"pool_maintenance_service/internal/domain/notification"
)

const namespace = "pool_maintenance"

var _ app.Metrics = (*Prometheus)(nil)

// Prometheus implements app.Metrics on its own registry.
type Prometheus struct {
	registry      *prometheus.Registry
	cyclesOpened  *prometheus.CounterVec
	measurements  *prometheus.CounterVec
	statusChanges *prometheus.CounterVec
	recordsClosed *prometheus.CounterVec
	resets        *prometheus.CounterVec
	resetRecords  prometheus.Counter
	notifications *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		cyclesOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_opened_total",
			Help: "OpenCycle calls, by whether a new record was created.",
		}, []string{"created"}),
		measurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "measurements_total",
			Help: "Recorded measurements by parameter.",
		}, []string{"parameter"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "parameter_status_changes_total",
			Help: "Parameter status transitions by target status and actor.",
		}, []string{"status", "actor"}),
		recordsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "records_closed_total",
			Help: "Maintenance records closed by terminal status.",
		}, []string{"status"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "resets_total",
			Help: "Company resets by outcome.",
		}, []string{"outcome"}),
		resetRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reset_records_created_total",
			Help: "Successor records opened by resets.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_raised_total",
			Help: "Notifications raised by topic.",
		}, []string{"topic"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cyclesOpened, m.measurements, m.statusChanges, m.recordsClosed,
		m.resets, m.resetRecords, m.notifications,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Prometheus) CycleOpened(created bool) {
	m.cyclesOpened.WithLabelValues(strconv.FormatBool(created)).Inc()
}

func (m *Prometheus) MeasurementRecorded(parameter string) {
	m.measurements.WithLabelValues(parameter).Inc()
}

func (m *Prometheus) ParameterStatusChanged(status maintenance.InstanceStatus, actor maintenance.Actor) {
	m.statusChanges.WithLabelValues(string(status), string(actor)).Inc()
}

func (m *Prometheus) RecordClosed(status maintenance.RecordStatus) {
	m.recordsClosed.WithLabelValues(string(status)).Inc()
}

func (m *Prometheus) ResetFinished(success bool, recordsCreated int) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.resets.WithLabelValues(outcome).Inc()
	m.resetRecords.Add(float64(recordsCreated))
}

func (m *Prometheus) NotificationRaised(topic notification.Topic) {
	m.notifications.WithLabelValues(string(topic)).Inc()
}
