package observability

import "time"

// EventEnvelope wraps events published to the message broker.
type EventEnvelope struct {
	EventType  string            `json:"event_type"`
	EventName  string            `json:"event_name"`
	OccurredAt string            `json:"occurred_at"`
	Headers    map[string]string `json:"headers,omitempty"`
	Payload    interface{}       `json:"payload"`
}

// NewEnvelope stamps an envelope with the current time.
func NewEnvelope(eventType, eventName string, payload interface{}, headers map[string]string) EventEnvelope {
	return EventEnvelope{
		EventType:  eventType,
		EventName:  eventName,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Headers:    headers,
		Payload:    payload,
	}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
