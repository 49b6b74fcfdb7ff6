// Package persistent archives captured packets to disk next to the probe.
package persistent

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"NetSentry/internal/config"
	"NetSentry/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	zlog "github.com/rs/zerolog/log"
)

// PacketContainer holds both the raw packet and its extracted record.
type PacketContainer struct {
	RawPacket gopacket.Packet
	Record    model.PacketRecord
}

// Worker writes archived packets from a single goroutine so the file keeps capture order.
type Worker struct {
	packetChan chan *PacketContainer
	done       chan struct{}
	file       *os.File
	stopOnce   sync.Once
	written    atomic.Int64
	dropped    atomic.Int64
}

// NewWorker creates the archive file and starts the writer goroutine.
func NewWorker(cfg config.ArchiveConfig, linkType layers.LinkType) (*Worker, error) {
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	bufferSize := cfg.ChannelBufferSize
	if bufferSize <= 0 {
		bufferSize = 10000
	}

	ext := ".log"
	if cfg.Encoding == "pcap" {
		ext = ".pcap"
	}
	fileName := time.Now().Format("2006-01-02_15-04-05") + ext
	file, err := os.OpenFile(filepath.Join(cfg.Path, fileName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}

	w := &Worker{
		packetChan: make(chan *PacketContainer, bufferSize),
		done:       make(chan struct{}),
		file:       file,
	}

	var run func()
	switch cfg.Encoding {
	case "pcap":
		pcapWriter := pcapgo.NewWriter(file)
		if err := pcapWriter.WriteFileHeader(65536, linkType); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write pcap header: %w", err)
		}
		run = func() { w.runPcap(pcapWriter) }
	case "text":
		run = func() { w.runText(file) }
	default:
		file.Close()
		return nil, fmt.Errorf("unknown archive encoding '%s'", cfg.Encoding)
	}

	go func() {
		defer close(w.done)
		run()
	}()

	zlog.Info().Str("encoding", cfg.Encoding).Str("file", file.Name()).Msg("Packet archive started")
	return w, nil
}

// Path returns the archive file path.
func (w *Worker) Path() string {
	return w.file.Name()
}

func (w *Worker) runPcap(pcapWriter *pcapgo.Writer) {
	for container := range w.packetChan {
		if err := pcapWriter.WritePacket(container.RawPacket.Metadata().CaptureInfo, container.RawPacket.Data()); err != nil {
			zlog.Error().Err(err).Msg("Archive (pcap): error writing packet")
			continue
		}
		w.written.Add(1)
	}
}

func (w *Worker) runText(out io.Writer) {
	writer := bufio.NewWriter(out)
	for container := range w.packetChan {
		rec := container.Record
		line := fmt.Sprintf("%s - %s:%d -> %s:%d, Proto: %d, Len: %d\n",
			rec.Timestamp.Format("2006-01-02 15:04:05.000"),
			rec.SrcIP, rec.SrcPort,
			rec.DstIP, rec.DstPort,
			rec.Protocol,
			rec.FwdBytes,
		)
		if _, err := writer.WriteString(line); err != nil {
			zlog.Error().Err(err).Msg("Archive (text): error writing packet")
			continue
		}
		w.written.Add(1)
	}
	if err := writer.Flush(); err != nil {
		zlog.Error().Err(err).Msg("Archive (text): flush failed")
	}
}

// Enqueue hands a packet to the writer. A full buffer drops the packet.
func (w *Worker) Enqueue(container *PacketContainer) {
	select {
	case w.packetChan <- container:
	default:
		w.dropped.Add(1)
	}
}

// Stop drains the queue and closes the archive file. Enqueue must not be called afterwards.
func (w *Worker) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.packetChan)
		<-w.done
		err = w.file.Close()
		zlog.Info().Int64("written", w.written.Load()).Int64("dropped", w.dropped.Load()).Msg("Packet archive closed")
	})
	return err
}

// Written reports the number of packets written so far.
func (w *Worker) Written() int64 {
	return w.written.Load()
}
