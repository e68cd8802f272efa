// Package model defines the data shapes that flow through the matcher:
// the incoming Event, and the ProcessedEvent tree the Matcher produces.
package model

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/danielsvitols/tornado/internal/value"
)

// Event is the immutable input to Matcher.Process.
type Event struct {
	TraceID   string
	Type      string
	CreatedMs int64
	Payload   value.Value // always a Map (possibly empty)
}

// NewEvent builds an Event, generating a trace ID deterministically from the
// event's own content when one is not supplied (spec: "trace_id is optional
// (generated if absent)").
func NewEvent(traceID, eventType string, createdMs int64, payload value.Value) Event {
	if traceID == "" {
		traceID = GenerateTraceID(eventType, createdMs, payload)
	}
	return Event{TraceID: traceID, Type: eventType, CreatedMs: createdMs, Payload: payload}
}

// GenerateTraceID derives a stable, collision-resistant trace identifier
// from event content when the caller did not supply one. It intentionally
// does not depend on wall-clock/random state so that tests (and replays) are
// deterministic.
func GenerateTraceID(eventType string, createdMs int64, payload value.Value) string {
	h := xxhash.New()
	_, _ = h.WriteString(eventType)
	_, _ = fmt.Fprintf(h, ":%d:", createdMs)
	payloadJSON, err := value.ToJSON(payload)
	if err == nil {
		_, _ = h.Write(payloadJSON)
	}
	return fmt.Sprintf("auto-%016x", h.Sum64())
}
