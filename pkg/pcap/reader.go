// Package pcap opens live interfaces or capture files and feeds extracted packet
// records to a consumer.
package pcap

import (
	"context"
	"fmt"

	"NetSentry/internal/config"
	"NetSentry/internal/features"
	"NetSentry/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	zlog "github.com/rs/zerolog/log"
)

// Reader reads packets from a pcap handle.
type Reader struct {
	handle *pcap.Handle
	source string
}

// Open opens the capture source selected by cfg.Mode ("live" or "pcap") and applies
// the configured BPF filter.
func Open(cfg config.CaptureConfig) (*Reader, error) {
	switch cfg.Mode {
	case "live":
		return OpenLive(cfg.Interface, cfg.SnapshotLen, cfg.Promiscuous, cfg.BPFFilter)
	case "pcap":
		return NewReader(cfg.PcapFile, cfg.BPFFilter)
	default:
		return nil, fmt.Errorf("capture mode '%s' has no pcap source", cfg.Mode)
	}
}

// OpenLive starts a live capture on iface.
func OpenLive(iface string, snapshotLen int32, promiscuous bool, filter string) (*Reader, error) {
	if iface == "" {
		return nil, fmt.Errorf("live capture requires an interface")
	}
	handle, err := pcap.OpenLive(iface, snapshotLen, promiscuous, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("error opening device %s: %w", iface, err)
	}
	return newReader(handle, iface, filter)
}

// NewReader creates a new pcap reader for the given file path.
func NewReader(filePath, filter string) (*Reader, error) {
	handle, err := pcap.OpenOffline(filePath)
	if err != nil {
		return nil, err
	}
	return newReader(handle, filePath, filter)
}

func newReader(handle *pcap.Handle, source, filter string) (*Reader, error) {
	if filter != "" {
		if err := handle.SetBPFFilter(filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("invalid BPF filter '%s': %w", filter, err)
		}
	}
	return &Reader{handle: handle, source: source}, nil
}

// LinkType reports the link layer of the underlying handle.
func (r *Reader) LinkType() layers.LinkType {
	return r.handle.LinkType()
}

// Close closes the pcap handle.
func (r *Reader) Close() {
	r.handle.Close()
}

// ReadPackets extracts a record from every IP packet and passes it to out, until the
// source is exhausted or ctx is cancelled. Packets without an IP layer are skipped.
// It returns the number of records delivered.
func (r *Reader) ReadPackets(ctx context.Context, out func(model.PacketRecord)) int {
	return r.ForEachPacket(ctx, func(_ gopacket.Packet, rec model.PacketRecord) {
		out(rec)
	})
}

// ForEachPacket is like ReadPackets but hands the raw packet to fn alongside its record.
func (r *Reader) ForEachPacket(ctx context.Context, fn func(gopacket.Packet, model.PacketRecord)) int {
	packetSource := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	packets := packetSource.Packets()

	delivered, skipped := 0, 0
	for {
		select {
		case <-ctx.Done():
			zlog.Info().Str("source", r.source).Int("delivered", delivered).Msg("Capture cancelled")
			return delivered
		case packet, ok := <-packets:
			if !ok {
				zlog.Info().Str("source", r.source).Int("delivered", delivered).Int("skipped", skipped).Msg("Capture source exhausted")
				return delivered
			}
			if !features.HasIP(packet) {
				skipped++
				continue
			}
			fn(packet, features.Extract(packet))
			delivered++
		}
	}
}
