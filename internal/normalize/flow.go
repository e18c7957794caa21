package normalize

import (
	"strings"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// FlowInput is the classify-flow request payload.
type FlowInput struct {
	ID              string  `json:"id,omitempty"`
	SourceIP        string  `json:"sourceIp,omitempty"`
	DestinationIP   string  `json:"destinationIp,omitempty"`
	DestinationPort int     `json:"destinationPort"`
	Protocol        string  `json:"protocol"`
	Bytes           float64 `json:"bytes"`
	Packets         float64 `json:"packets"`
	Duration        float64 `json:"duration"` // seconds
	UniqueSources   int     `json:"uniqueSources,omitempty"`
}

// Flow builds the DDoS-catalogue record for one network flow. Rates are
// derived here exactly once; a zero duration counts the whole flow as
// one second so rates stay finite.
func Flow(in FlowInput) domain.Record {
	duration := in.Duration
	if duration <= 0 {
		duration = 1
	}

	rec := domain.Record{
		"id":               in.ID,
		"source_ip":        in.SourceIP,
		"destination_ip":   in.DestinationIP,
		"destination_port": in.DestinationPort,
		"protocol":         strings.ToLower(in.Protocol),
		"bytes":            in.Bytes,
		"packets":          in.Packets,
		"duration":         in.Duration,
		"byte_rate":        in.Bytes / duration,
		"packet_rate":      in.Packets / duration,
		"unique_sources":   in.UniqueSources,
	}

	if in.Packets > 0 {
		rec["bytes_per_packet"] = in.Bytes / in.Packets
	}

	return rec
}
