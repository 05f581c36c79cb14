// Package audit is the pipeline's view of the audit-log subsystem.
// Appending is fire-and-forget: a sink must never block and its
// failures never propagate into the pipeline.
package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Event is one meaningful pipeline transition. Metadata carries enough
// context to diagnose (document id, job id, attempt count, error class)
// and never credentials or key material.
type Event struct {
	TenantID  string
	ActorID   string
	Action    string
	EntityID  string
	Severity  Severity
	Metadata  map[string]string
	Timestamp time.Time
}

type Sink interface {
	Append(ctx context.Context, event Event)
}

// LogSink writes events to the process log. The default sink for the
// demo binary and tests.
type LogSink struct{}

var logger = logrus.WithField("component", "cpe.audit")

func (LogSink) Append(_ context.Context, event Event) {
	entry := logger.WithFields(logrus.Fields{
		"tenant":   event.TenantID,
		"actor":    event.ActorID,
		"action":   event.Action,
		"entity":   event.EntityID,
		"severity": event.Severity,
	})
	for k, v := range event.Metadata {
		entry = entry.WithField(k, v)
	}
	switch event.Severity {
	case SeverityCritical:
		entry.Error("audit event")
	case SeverityWarning:
		entry.Warn("audit event")
	default:
		entry.Info("audit event")
	}
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Append(context.Context, Event) {}

// Emit appends through sink, absorbing panics so a broken sink can
// never take the pipeline down with it.
func Emit(ctx context.Context, sink Sink, event Event) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("audit sink panicked: %v", r)
		}
	}()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	sink.Append(ctx, event)
}
