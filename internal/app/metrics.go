package app

import (
	"pool_maintenance_service/internal/domain/maintenance"
	"pool_maintenance_service/internal/domain/notification"
)

// Metrics receives workflow events. The Prometheus implementation lives in infra/metrics.
type Metrics interface {
	CycleOpened(created bool)
	MeasurementRecorded(parameter string)
	ParameterStatusChanged(status maintenance.InstanceStatus, actor maintenance.Actor)
	RecordClosed(status maintenance.RecordStatus)
	ResetFinished(success bool, recordsCreated int)
	NotificationRaised(topic notification.Topic)
}

// NopMetrics discards every event.
type NopMetrics struct{}

func (NopMetrics) CycleOpened(bool) {}
func (NopMetrics) MeasurementRecorded(string) {}
func (NopMetrics) ParameterStatusChanged(maintenance.InstanceStatus, maintenance.Actor) {}
func (NopMetrics) RecordClosed(maintenance.RecordStatus) {}
func (NopMetrics) ResetFinished(bool, int) {}
func (NopMetrics) NotificationRaised(notification.Topic) {}
