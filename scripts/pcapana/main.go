package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"NetSentry/internal/model"
	"NetSentry/pkg/pcap"
)

func main() {
	limit := flag.Int("n", 5, "Number of records to print, 0 for all")
	filter := flag.String("filter", "ip", "BPF filter")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./scripts/pcapana [-n 5] [-filter ip] <path_to_pcap_file>")
		return
	}

	reader, err := pcap.NewReader(flag.Arg(0), *filter)
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	i := 0
	reader.ReadPackets(ctx, func(rec model.PacketRecord) {
		if *limit > 0 && i >= *limit {
			cancel()
			return
		}
		i++
		fmt.Printf("[%s] %s:%d -> %s:%d proto=%d len=%d tcp=%v\n",
			rec.Timestamp.Format("15:04:05.000"),
			rec.SrcIP, rec.SrcPort,
			rec.DstIP, rec.DstPort,
			rec.Protocol, rec.FwdBytes, rec.HasTCP,
		)
	})
}
