package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	events []Event
}

func (s *captureSink) Append(_ context.Context, event Event) {

	s.events = append(s.events, event)
}

type panicSink struct{}

func (panicSink) Append(context.Context, Event) {

	panic("sink is broken")
}

func TestEmit(t *testing.T) {

	sink := &captureSink{}
	Emit(context.Background(), sink, Event{
		TenantID: "tenant-1",
		Action:   "document_signed",
		Severity: SeverityInfo,
	})

	require.Len(t, sink.events, 1)
	assert.Equal(t, "document_signed", sink.events[0].Action)
	assert.False(t, sink.events[0].Timestamp.IsZero())
}

func TestEmit_keepsExplicitTimestamp(t *testing.T) {

	ts := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	sink := &captureSink{}
	Emit(context.Background(), sink, Event{Action: "document_voided", Timestamp: ts})

	require.Len(t, sink.events, 1)
	assert.Equal(t, ts, sink.events[0].Timestamp)
}

func TestEmit_nilSink(t *testing.T) {

	assert.NotPanics(t, func() {
		Emit(context.Background(), nil, Event{Action: "document_signed"})
	})
}

func TestEmit_absorbsSinkPanic(t *testing.T) {

	assert.NotPanics(t, func() {
		Emit(context.Background(), panicSink{}, Event{Action: "document_signed"})
	})
}
