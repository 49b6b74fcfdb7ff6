package model

import (
	"strconv"
	"time"
)

// ZeroAddress is reported for packets that carry no IP layer.
const ZeroAddress = "0.0.0.0"

// FeatureNames lists the classifier input columns in their fixed order.
var FeatureNames = []string{"id.orig_h", "id.resp_h", "proto", "id.orig_p", "id.resp_p", "orig_bytes", "resp_bytes"}

// PacketRecord holds the flow features extracted from a single packet.
type PacketRecord struct {
	Timestamp time.Time `json:"timestamp"`
	SrcIP     string    `json:"src_ip"`
	DstIP     string    `json:"dst_ip"`
	Protocol  uint8     `json:"protocol"`
	SrcPort   uint16    `json:"src_port"`
	DstPort   uint16    `json:"dst_port"`
	FwdBytes  int       `json:"fwd_bytes"`
	// RevBytes is always 0 for live traffic: a single packet carries no response volume.
	RevBytes int  `json:"rev_bytes"`
	HasTCP   bool `json:"has_tcp"`
}

// ProtocolString returns the protocol number in the form the categorical encoder expects.
func (r *PacketRecord) ProtocolString() string {
	return strconv.Itoa(int(r.Protocol))
}

// EncodedRecord is a PacketRecord with its categorical fields replaced by encoder codes.
type EncodedRecord struct {
	SrcIPCode int
	DstIPCode int
	ProtoCode int
	SrcPort   int
	DstPort   int
	FwdBytes  int
	RevBytes  int
}

// Features returns the record as a classifier input vector, ordered as FeatureNames.
func (e EncodedRecord) Features() []float64 {
	return []float64{
		float64(e.SrcIPCode),
		float64(e.DstIPCode),
		float64(e.ProtoCode),
		float64(e.SrcPort),
		float64(e.DstPort),
		float64(e.FwdBytes),
		float64(e.RevBytes),
	}
}

// VerdictKind is the binary outcome of a decision.
type VerdictKind string

const (
	Malicious VerdictKind = "MALICIOUS"
	Benign    VerdictKind = "BENIGN"
)

// VerdictSource tells which signal produced a verdict.
type VerdictSource string

const (
	SourceKnownBad VerdictSource = "known_bad"
	SourceModel    VerdictSource = "model"
)

// Verdict is the decision emitted for one packet.
type Verdict struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	Kind       VerdictKind   `json:"kind"`
	Confidence float64       `json:"confidence"`
	Source     VerdictSource `json:"source"`
	Record     PacketRecord  `json:"record"`
}

// IsMalicious reports whether the verdict is MALICIOUS.
func (v *Verdict) IsMalicious() bool {
	return v.Kind == Malicious
}

// Stats is a point-in-time copy of the pipeline counters.
type Stats struct {
	Processed        uint64 `json:"processed"`
	Malicious        uint64 `json:"malicious"`
	Benign           uint64 `json:"benign"`
	KnownBadHits     uint64 `json:"known_bad_hits"`
	ProcessingErrors uint64 `json:"processing_errors"`
	Dropped          uint64 `json:"dropped"`
	// TopSources lists the source addresses with the most malicious verdicts.
	TopSources []SourceCount `json:"top_malicious_sources,omitempty"`
}

// SourceCount is the number of malicious verdicts seen for one source address.
type SourceCount struct {
	IP    string `json:"ip"`
	Count uint64 `json:"count"`
}
