package encoder

import (
	"fmt"
	"strconv"
	"strings"

	"NetSentry/internal/model"
)

// Column names of the three categorical encoders.
const (
	SrcIPColumn = "id.orig_h"
	DstIPColumn = "id.resp_h"
	ProtoColumn = "proto"
)

var protocolNumbers = map[string]int{
	"icmp":   1,
	"igmp":   2,
	"tcp":    6,
	"udp":    17,
	"gre":    47,
	"esp":    50,
	"ah":     51,
	"icmpv6": 58,
	"sctp":   132,
}

// CanonicalProtocol normalises a protocol value to its IANA number when it can be
// recognised, so "TCP", "tcp", "6" and "6.0" share one code. Unrecognised names are
// lower-cased and kept as-is.
func CanonicalProtocol(v string) string {
	v = strings.TrimSpace(v)
	if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	lower := strings.ToLower(v)
	if n, ok := protocolNumbers[lower]; ok {
		return strconv.Itoa(n)
	}
	return lower
}

// Set bundles the source IP, destination IP and protocol encoders.
type Set struct {
	SrcIP *Encoder
	DstIP *Encoder
	Proto *Encoder
}

// FitSet fits all three encoders. Protocol values are canonicalised first.
func FitSet(srcIPs, dstIPs, protos []string) *Set {
	canon := make([]string, len(protos))
	for i, p := range protos {
		canon[i] = CanonicalProtocol(p)
	}
	return &Set{
		SrcIP: Fit(SrcIPColumn, srcIPs),
		DstIP: Fit(DstIPColumn, dstIPs),
		Proto: Fit(ProtoColumn, canon),
	}
}

// NamedProtocols returns the protocol classes that are not IANA numbers. Live packets
// always carry a number, so these classes (application names such as "dns" or "tlsv1.2"
// from dissector exports) never match at serving time.
func (s *Set) NamedProtocols() []string {
	var named []string
	for _, c := range s.Proto.Classes() {
		if _, err := strconv.Atoi(c); err != nil {
			named = append(named, c)
		}
	}
	return named
}

// EncodeProtocol canonicalises and encodes a protocol value.
func (s *Set) EncodeProtocol(v string) int {
	return s.Proto.Encode(CanonicalProtocol(v))
}

// EncodeRecord replaces the categorical fields of a record with their codes.
func (s *Set) EncodeRecord(r *model.PacketRecord) model.EncodedRecord {
	return model.EncodedRecord{
		SrcIPCode: s.SrcIP.Encode(r.SrcIP),
		DstIPCode: s.DstIP.Encode(r.DstIP),
		ProtoCode: s.EncodeProtocol(r.ProtocolString()),
		SrcPort:   int(r.SrcPort),
		DstPort:   int(r.DstPort),
		FwdBytes:  r.FwdBytes,
		RevBytes:  r.RevBytes,
	}
}

// Equal reports whether both sets hold the same mappings.
func (s *Set) Equal(other *Set) bool {
	return s.SrcIP.Equal(other.SrcIP) && s.DstIP.Equal(other.DstIP) && s.Proto.Equal(other.Proto)
}

// Save writes each encoder to its own file.
func (s *Set) Save(srcPath, dstPath, protoPath string) error {
	for _, item := range []struct {
		enc  *Encoder
		path string
	}{{s.SrcIP, srcPath}, {s.DstIP, dstPath}, {s.Proto, protoPath}} {
		if err := item.enc.Save(item.path); err != nil {
			return err
		}
	}
	return nil
}

// LoadSet reads the three encoders written by Save.
func LoadSet(srcPath, dstPath, protoPath string) (*Set, error) {
	src, err := Load(srcPath)
	if err != nil {
		return nil, fmt.Errorf("source IP encoder: %w", err)
	}
	dst, err := Load(dstPath)
	if err != nil {
		return nil, fmt.Errorf("destination IP encoder: %w", err)
	}
	proto, err := Load(protoPath)
	if err != nil {
		return nil, fmt.Errorf("protocol encoder: %w", err)
	}
	return &Set{SrcIP: src, DstIP: dst, Proto: proto}, nil
}
