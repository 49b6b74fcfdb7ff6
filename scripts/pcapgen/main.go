// pcapgen writes a synthetic capture together with a labeled primary dataset describing
// the same packets, for exercising ns-train and ns-sentinel's pcap mode end to end.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Malicious packets come from a small set of hosts using a backdoor port.
var badHosts = []net.IP{{10, 66, 6, 1}, {10, 66, 6, 2}, {10, 66, 6, 3}}

const badPort = 4444

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	csvFile := flag.String("csv", "packetdataset.csv", "Output labeled dataset path; empty to skip")
	packetCount := flag.Int("c", 1000, "Number of packets to generate")
	badRatio := flag.Float64("bad", 0.1, "Fraction of malicious packets")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	var rows *csv.Writer
	if *csvFile != "" {
		cf, err := os.Create(*csvFile)
		if err != nil {
			log.Fatalf("Failed to create dataset file: %v", err)
		}
		defer cf.Close()
		rows = csv.NewWriter(cf)
		defer rows.Flush()
		rows.Write([]string{"No.", "Time", "Source", "Destination", "Protocol", "Length", "Source Port", "Destination Port", "bad_packet"})
	}

	rng := rand.New(rand.NewSource(*seed))
	start := time.Now()
	log.Printf("Generating %d packets into %s...", *packetCount, *outputFile)

	for i := 0; i < *packetCount; i++ {
		bad := rng.Float64() < *badRatio

		srcIP := net.IP{192, 168, byte(rng.Intn(4)), byte(rng.Intn(254) + 1)}
		dstIP := net.IP{byte(rng.Intn(223) + 1), byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(254) + 1)}
		srcPort := layers.TCPPort(rng.Intn(65535-1024) + 1024)
		dstPort := layers.TCPPort([]int{80, 443, 53, 22}[rng.Intn(4)])
		payloadSize := rng.Intn(1400) + 50
		if bad {
			srcIP = badHosts[rng.Intn(len(badHosts))]
			srcPort = badPort
			payloadSize = rng.Intn(200) + 10
		}

		ethLayer := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
			DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ipLayer := &layers.IPv4{
			SrcIP:    srcIP,
			DstIP:    dstIP,
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolTCP,
		}
		tcpLayer := &layers.TCP{
			SrcPort: srcPort,
			DstPort: dstPort,
			Seq:     rng.Uint32(),
			Ack:     rng.Uint32(),
			ACK:     true,
			PSH:     true,
			Window:  14600,
		}
		tcpLayer.SetNetworkLayerForChecksum(ipLayer)

		payload := make([]byte, payloadSize)
		rng.Read(payload)

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{
			ComputeChecksums: true,
			FixLengths:       true,
		}
		if err := gopacket.SerializeLayers(buf, opts, ethLayer, ipLayer, tcpLayer, gopacket.Payload(payload)); err != nil {
			log.Fatalf("Failed to serialize layers: %v", err)
		}

		ts := start.Add(time.Duration(i) * time.Millisecond)
		ci := gopacket.CaptureInfo{
			Timestamp:     ts,
			CaptureLength: len(buf.Bytes()),
			Length:        len(buf.Bytes()),
		}
		if err := pcapWriter.WritePacket(ci, buf.Bytes()); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}

		if rows != nil {
			label := "0"
			if bad {
				label = "1"
			}
			rows.Write([]string{
				strconv.Itoa(i + 1),
				fmt.Sprintf("%.6f", ts.Sub(start).Seconds()),
				srcIP.String(),
				dstIP.String(),
				"TCP",
				strconv.Itoa(len(buf.Bytes())),
				strconv.Itoa(int(srcPort)),
				strconv.Itoa(int(dstPort)),
				label,
			})
		}
	}

	log.Printf("Successfully generated %d packets into %s.", *packetCount, *outputFile)
}
