// Package features turns captured packets into flow feature records.
package features

import (
	"NetSentry/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Extract converts one packet into a PacketRecord. It never fails: a packet without an
// IP layer reports the zero address and protocol 0, and a packet without a TCP layer
// reports ports 0. The result depends only on the packet, so extracting the same packet
// twice yields identical records.
func Extract(packet gopacket.Packet) model.PacketRecord {
	rec := model.PacketRecord{
		SrcIP:    model.ZeroAddress,
		DstIP:    model.ZeroAddress,
		FwdBytes: len(packet.Data()),
	}

	if meta := packet.Metadata(); meta != nil {
		rec.Timestamp = meta.Timestamp
		if meta.Length > 0 {
			rec.FwdBytes = meta.Length
		}
	}

	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		rec.SrcIP = ip.SrcIP.String()
		rec.DstIP = ip.DstIP.String()
		rec.Protocol = uint8(ip.Protocol)
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		rec.SrcIP = ip.SrcIP.String()
		rec.DstIP = ip.DstIP.String()
		rec.Protocol = uint8(ipv6Transport(packet, ip))
	}

	// Only TCP contributes ports; UDP and other transports keep the 0 default.
	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		rec.SrcPort = uint16(tcp.SrcPort)
		rec.DstPort = uint16(tcp.DstPort)
		rec.HasTCP = true
	}

	return rec
}

// ipv6Transport follows the extension header chain to the upper-layer protocol.
func ipv6Transport(packet gopacket.Packet, ip *layers.IPv6) layers.IPProtocol {
	next := ip.NextHeader
	for _, l := range packet.Layers() {
		switch ext := l.(type) {
		case *layers.IPv6HopByHop:
			next = ext.NextHeader
		case *layers.IPv6Routing:
			next = ext.NextHeader
		case *layers.IPv6Fragment:
			next = ext.NextHeader
		case *layers.IPv6Destination:
			next = ext.NextHeader
		}
	}
	return next
}

// Parse decodes a raw Ethernet frame and extracts its record.
func Parse(data []byte) model.PacketRecord {
	return Extract(gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default))
}

// HasIP reports whether the packet carries an IPv4 or IPv6 layer.
func HasIP(packet gopacket.Packet) bool {
	return packet.Layer(layers.LayerTypeIPv4) != nil || packet.Layer(layers.LayerTypeIPv6) != nil
}
