package persistent

import (
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"NetSentry/internal/config"
	"NetSentry/internal/features"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

func buildPacket(t *testing.T, srcPort uint16) gopacket.Packet {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: net.IP{10, 0, 0, 1}, DstIP: net.IP{10, 0, 0, 2}}
	tcp := &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: 80, ACK: true}
	tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp); err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	data := buf.Bytes()
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	md := packet.Metadata()
	md.Timestamp = time.Unix(1714557600, 0)
	md.CaptureLength = len(data)
	md.Length = len(data)
	return packet
}

func TestWorker_PcapArchive(t *testing.T) {
	cfg := config.ArchiveConfig{Path: t.TempDir(), Encoding: "pcap", ChannelBufferSize: 16}
	w, err := NewWorker(cfg, layers.LinkTypeEthernet)
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		p := buildPacket(t, uint16(40000+i))
		w.Enqueue(&PacketContainer{RawPacket: p, Record: features.Extract(p)})
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	f, err := os.Open(w.Path())
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	if err != nil {
		t.Fatalf("Archive is not a pcap file: %v", err)
	}
	count := 0
	for {
		data, _, err := r.ReadPacketData()
		if err != nil {
			break
		}
		rec := features.Extract(gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default))
		if rec.SrcPort != uint16(40000+count) {
			t.Errorf("Packet %d out of order: src port %d", count, rec.SrcPort)
		}
		count++
	}
	if count != 3 {
		t.Errorf("Expected 3 archived packets, got %d", count)
	}
}

func TestWorker_TextArchive(t *testing.T) {
	cfg := config.ArchiveConfig{Path: t.TempDir(), Encoding: "text", ChannelBufferSize: 16}
	w, err := NewWorker(cfg, layers.LinkTypeEthernet)
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}
	p := buildPacket(t, 4444)
	w.Enqueue(&PacketContainer{RawPacket: p, Record: features.Extract(p)})
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// A second Stop is a no-op.
	if err := w.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}

	data, err := os.ReadFile(w.Path())
	if err != nil {
		t.Fatalf("Failed to read archive: %v", err)
	}
	if !strings.Contains(string(data), "10.0.0.1:4444 -> 10.0.0.2:80, Proto: 6") {
		t.Errorf("Unexpected archive contents: %q", data)
	}
}

func TestNewWorker_UnknownEncoding(t *testing.T) {
	cfg := config.ArchiveConfig{Path: t.TempDir(), Encoding: "gob"}
	if _, err := NewWorker(cfg, layers.LinkTypeEthernet); err == nil {
		t.Error("Expected an error for an unsupported encoding")
	}
}
