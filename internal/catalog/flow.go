package catalog

import (
	"fmt"
	"math"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// FlowCatalogueID identifies the network flow / DDoS catalogue.
const FlowCatalogueID = "flow-ddos"

// FlowBaseline is the fixed per-service traffic baseline used by the
// deviation signatures. Values are configuration, not learned state.
type FlowBaseline struct {
	ByteRateMean   float64
	ByteRateStd    float64
	PacketRateMean float64
	PacketRateStd  float64
}

// DefaultFlowBaseline reflects a mid-size egress link.
func DefaultFlowBaseline() FlowBaseline {
	return FlowBaseline{
		ByteRateMean:   2_000_000, // 2 MB/s
		ByteRateStd:    1_500_000,
		PacketRateMean: 4_000,
		PacketRateStd:  3_000,
	}
}

const (
	floodPacketRate  = 50_000 // packets/s
	exfilByteRate    = 100_000_000
	dnsTunnelPayload = 512 // bytes/packet on port 53
	deviationSigmas  = 3.0
	fanInSourceCount = 1000
)

var suspiciousPorts = map[int]string{
	1337:  "elite",
	4444:  "metasploit default",
	5554:  "sasser backdoor",
	6667:  "irc botnet c2",
	31337: "back orifice",
}

// FlowCatalogue builds the network flow catalogue. The DNS-tunneling
// signature is declared before the size-based exfiltration one; within
// their shared group that order decides which threat type wins.
func FlowCatalogue() *domain.Catalogue {
	baseline := DefaultFlowBaseline()

	return &domain.Catalogue{
		ID:         FlowCatalogueID,
		Version:    "3.1.0",
		Thresholds: domain.DefaultThresholds(),
		AlertFloor: 60,
		Signatures: []domain.Signature{
			{
				ID:          "dns_tunneling",
				Category:    "dns_tunneling",
				Severity:    domain.SeverityHigh,
				Weight:      40,
				Group:       "exfiltration",
				Description: "DNS flow carries {bytes_per_packet} bytes/packet, far above query size",
				Remediation: "Inspect DNS payloads for tunneled data and cap query volume per client",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					port, _ := r.Int("destination_port")
					if port != 53 {
						return domain.Evidence{}, false
					}
					bpp, _ := r.Float("bytes_per_packet")
					byteRate, _ := r.Float("byte_rate")
					if bpp <= dnsTunnelPayload && byteRate <= 1_000_000 {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "oversized DNS flow",
						Fields: map[string]string{
							"bytes_per_packet": fmt.Sprintf("%.0f", bpp),
							"byte_rate":        fmt.Sprintf("%.0f", byteRate),
						},
					}, true
				},
			},
			{
				ID:          "data_exfiltration",
				Category:    "data_exfiltration",
				Severity:    domain.SeverityHigh,
				Weight:      35,
				Group:       "exfiltration",
				Description: "Outbound byte rate {byte_rate} B/s exceeds exfiltration threshold",
				Remediation: "Quarantine the source host and review egress volume",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					byteRate, ok := r.Float("byte_rate")
					if !ok || byteRate <= exfilByteRate {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "bulk data transfer",
						Fields:  map[string]string{"byte_rate": fmt.Sprintf("%.0f", byteRate)},
					}, true
				},
			},
			{
				ID:          "syn_flood",
				Category:    "syn_flood",
				Severity:    domain.SeverityHigh,
				Weight:      35,
				Group:       "flood",
				Description: "TCP flow at {packet_rate} packets/s with tiny payloads",
				Remediation: "Enable SYN cookies and rate-limit new connections from the source",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					if r.String("protocol") != "tcp" {
						return domain.Evidence{}, false
					}
					pps, _ := r.Float("packet_rate")
					bpp, _ := r.Float("bytes_per_packet")
					if pps <= floodPacketRate || bpp >= 120 {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "SYN flood profile",
						Fields:  map[string]string{"packet_rate": fmt.Sprintf("%.0f", pps)},
					}, true
				},
			},
			{
				ID:          "udp_flood",
				Category:    "udp_flood",
				Severity:    domain.SeverityHigh,
				Weight:      35,
				Group:       "flood",
				Description: "UDP flow at {packet_rate} packets/s",
				Remediation: "Rate-limit UDP from the source and verify the service is not an amplifier",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					if r.String("protocol") != "udp" {
						return domain.Evidence{}, false
					}
					pps, _ := r.Float("packet_rate")
					if pps <= floodPacketRate {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "UDP flood profile",
						Fields:  map[string]string{"packet_rate": fmt.Sprintf("%.0f", pps)},
					}, true
				},
			},
			{
				ID:          "source_fanin",
				Category:    "distributed_source",
				Severity:    domain.SeverityHigh,
				Weight:      30,
				Description: "{count} distinct sources hitting one destination",
				Remediation: "Engage upstream filtering; single-host mitigation will not hold",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					n, ok := r.Int("unique_sources")
					if !ok || n <= fanInSourceCount {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "distributed fan-in",
						Fields:  map[string]string{"count": fmt.Sprintf("%d", n)},
					}, true
				},
			},
			{
				ID:          "suspicious_port",
				Category:    "suspicious_port",
				Severity:    domain.SeverityMedium,
				Weight:      15,
				Description: "Destination port {port} is a known C2/backdoor port ({service})",
				Remediation: "Block the port at the perimeter unless explicitly required",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					port, ok := r.Int("destination_port")
					if !ok {
						return domain.Evidence{}, false
					}
					svc, bad := suspiciousPorts[port]
					if !bad {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "suspicious destination port",
						Fields: map[string]string{
							"port":    fmt.Sprintf("%d", port),
							"service": svc,
						},
					}, true
				},
			},
			{
				ID:          "byte_rate_deviation",
				Category:    "baseline_deviation",
				Severity:    domain.SeverityMedium,
				Weight:      20,
				Description: "Byte rate deviates {sigmas} sigma from baseline",
				Remediation: "Compare against the link's expected traffic profile",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					rate, ok := r.Float("byte_rate")
					if !ok || baseline.ByteRateStd == 0 {
						return domain.Evidence{}, false
					}
					sigmas := math.Abs(rate-baseline.ByteRateMean) / baseline.ByteRateStd
					if sigmas <= deviationSigmas {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "byte rate outside baseline",
						Fields:  map[string]string{"sigmas": fmt.Sprintf("%.1f", sigmas)},
					}, true
				},
			},
			{
				ID:          "packet_rate_deviation",
				Category:    "baseline_deviation",
				Severity:    domain.SeverityMedium,
				Weight:      20,
				Description: "Packet rate deviates {sigmas} sigma from baseline",
				Remediation: "Compare against the link's expected traffic profile",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					rate, ok := r.Float("packet_rate")
					if !ok || baseline.PacketRateStd == 0 {
						return domain.Evidence{}, false
					}
					sigmas := math.Abs(rate-baseline.PacketRateMean) / baseline.PacketRateStd
					if sigmas <= deviationSigmas {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "packet rate outside baseline",
						Fields:  map[string]string{"sigmas": fmt.Sprintf("%.1f", sigmas)},
					}, true
				},
			},
		},
	}
}

/// FlowThreatType names the dominant threat: the category of the first
// non-suppressed HIGH-or-worse match in declaration order. Empty when
// the flow carries no such match.
func FlowThreatType(cat *domain.Catalogue, traces []domain.MatchTrace) string {
	rank := make(map[string]int, len(cat.Signatures))
	for i := range cat.Signatures {
		rank[cat.Signatures[i].ID] = cat.Signatures[i].Severity.Rank()
	}
	for _, m := range traces {
		if m.Suppressed {
			continue
		}
		if rank[m.SignatureID] >= domain.SeverityHigh.Rank() {
			return m.Category
		}
	}
	return ""
}
