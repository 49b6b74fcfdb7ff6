// Package sink writes verdicts to the alert and benign log streams and other destinations.
package sink

import (
	"fmt"

	"NetSentry/internal/model"

	json "github.com/goccy/go-json"
)

// TimestampLayout is the timestamp format at the start of every log line.
const TimestampLayout = "2006-01-02 15:04:05"

// Summary is the structured packet description embedded in log lines.
// Ports are only present when the packet had a TCP layer.
type Summary struct {
	SourceIP        string  `json:"Source IP"`
	DestinationIP   string  `json:"Destination IP"`
	Protocol        uint8   `json:"Protocol"`
	PacketLength    int     `json:"Packet Length"`
	SourcePort      *uint16 `json:"Source Port,omitempty"`
	DestinationPort *uint16 `json:"Destination Port,omitempty"`
}

// Summarize builds the packet summary for a record.
func Summarize(r *model.PacketRecord) Summary {
	s := Summary{
		SourceIP:      r.SrcIP,
		DestinationIP: r.DstIP,
		Protocol:      r.Protocol,
		PacketLength:  r.FwdBytes,
	}
	if r.HasTCP {
		src, dst := r.SrcPort, r.DstPort
		s.SourcePort = &src
		s.DestinationPort = &dst
	}
	return s
}

// FormatLine renders a verdict as a single log line without the trailing newline:
//
//	2024-05-01 10:00:00 - Malicious packet detected by ML model (confidence: 0.57): {...}
func FormatLine(v *model.Verdict) string {
	label := "Benign"
	if v.IsMalicious() {
		label = "Malicious"
	}
	summary, err := json.Marshal(Summarize(&v.Record))
	if err != nil {
		summary = []byte("{}")
	}
	return fmt.Sprintf("%s - %s packet detected by ML model (confidence: %.2f): %s",
		v.Timestamp.Format(TimestampLayout), label, v.Confidence, summary)
}
