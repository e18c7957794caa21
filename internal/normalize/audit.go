package normalize

import (
	"strings"
	"time"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// AuditEvent is one entry of the detect-anomalies request payload.
type AuditEvent struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"eventType"`
	Actor     string    `json:"actor"`
	Status    string    `json:"status"`
	Resource  string    `json:"resource,omitempty"`
	SourceIP  string    `json:"sourceIp,omitempty"`
}

// Audit builds the anomaly-catalogue record for one audit event. The
// hour of day comes from the event's own timestamp, never the clock.
func Audit(in AuditEvent) domain.Record {
	rec := domain.Record{
		"id":         in.ID,
		"event_type": strings.ToLower(in.EventType),
		"actor":      in.Actor,
		"status":     strings.ToLower(in.Status),
		"resource":   strings.ToLower(in.Resource),
		"source_ip":  in.SourceIP,
	}

	if !in.Timestamp.IsZero() {
		rec["timestamp"] = in.Timestamp.UTC().Unix()
		rec["hour_of_day"] = in.Timestamp.UTC().Hour()
	}

	return rec
}

// AuditBatch normalizes a batch in input order.
func AuditBatch(events []AuditEvent) []domain.Record {
	records := make([]domain.Record, len(events))
	for i, ev := range events {
		records[i] = Audit(ev)
	}
	return records
}
