package pcap

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"NetSentry/internal/config"
	"NetSentry/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// writeTestPcap writes one TCP packet, one UDP packet and one ARP frame.
func writeTestPcap(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create pcap: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(1600, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("Failed to write header: %v", err)
	}

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: net.IP{10, 0, 0, 1}, DstIP: net.IP{10, 0, 0, 2}}
	tcp := &layers.TCP{SrcPort: 4444, DstPort: 80, SYN: true}
	tcp.SetNetworkLayerForChecksum(ip)

	udpIP := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: net.IP{10, 0, 0, 3}, DstIP: net.IP{10, 0, 0, 4}}
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	udp.SetNetworkLayerForChecksum(udpIP)

	arpEth := *eth
	arpEth.EthernetType = layers.EthernetTypeARP
	arp := &layers.ARP{
		AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4,
		HwAddressSize: 6, ProtAddressSize: 4, Operation: layers.ARPRequest,
		SourceHwAddress: []byte{0, 1, 2, 3, 4, 5}, SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress: []byte{0, 0, 0, 0, 0, 0}, DstProtAddress: []byte{10, 0, 0, 2},
	}

	frames := [][]gopacket.SerializableLayer{
		{eth, ip, tcp},
		{eth, udpIP, udp, gopacket.Payload([]byte("query"))},
		{&arpEth, arp},
	}
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	for i, layersToWrite := range frames {
		buf := gopacket.NewSerializeBuffer()
		if err := gopacket.SerializeLayers(buf, opts, layersToWrite...); err != nil {
			t.Fatalf("Failed to serialize frame %d: %v", i, err)
		}
		data := buf.Bytes()
		ci := gopacket.CaptureInfo{Timestamp: time.Unix(1714557600, 0), CaptureLength: len(data), Length: len(data)}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("Failed to write frame %d: %v", i, err)
		}
	}
	return path
}

func TestReader_ReadPackets(t *testing.T) {
	reader, err := NewReader(writeTestPcap(t), "")
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	defer reader.Close()

	var got []model.PacketRecord
	n := reader.ReadPackets(context.Background(), func(rec model.PacketRecord) {
		got = append(got, rec)
	})

	// The ARP frame carries no IP layer and is skipped.
	if n != 2 || len(got) != 2 {
		t.Fatalf("Expected 2 records, got %d (%d delivered)", len(got), n)
	}
	if got[0].SrcIP != "10.0.0.1" || got[0].DstPort != 80 || got[0].Protocol != 6 {
		t.Errorf("Unexpected TCP record: %+v", got[0])
	}
	if got[1].Protocol != 17 || got[1].SrcPort != 0 || got[1].DstPort != 0 {
		t.Errorf("UDP record must carry protocol 17 and zero ports: %+v", got[1])
	}
}

func TestReader_BPFFilter(t *testing.T) {
	reader, err := NewReader(writeTestPcap(t), "tcp")
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	defer reader.Close()

	n := reader.ReadPackets(context.Background(), func(model.PacketRecord) {})
	if n != 1 {
		t.Errorf("Expected the tcp filter to pass 1 packet, got %d", n)
	}
}

func TestOpen_UnknownMode(t *testing.T) {
	if _, err := Open(config.CaptureConfig{Mode: "nats"}); err == nil {
		t.Error("Expected an error for a mode without a pcap source")
	}
}
