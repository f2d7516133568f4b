// Command replay streams recorded tracker traffic from a PCAP capture to a
// UDP destination, respecting the original packet timing. Point the main
// server's -source at udp://:<port> and replay a capture against it.
//
// Uses the pure-Go pcap reader so no libpcap is required.
//
// Usage:
//
//	go run ./cmd/tools/replay [flags]
//
// Flags:
//
//	-pcap      Path to the capture file (required)
//	-dest      UDP destination address (default: 127.0.0.1:4242)
//	-port      Only replay packets captured on this UDP port (0 = all)
//	-speed     Replay speed multiplier (1.0 = real-time)
//	-loop      Loop playback when reaching end of capture
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

func main() {
	pcapFile := flag.String("pcap", "", "Path to the capture file (required)")
	dest := flag.String("dest", "127.0.0.1:4242", "UDP destination address")
	port := flag.Int("port", 0, "Only replay packets captured on this UDP port (0 = all)")
	speed := flag.Float64("speed", 1.0, "Replay speed multiplier")
	loop := flag.Bool("loop", false, "Loop playback when reaching end of capture")
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("Error: -pcap flag is required")
	}
	if *speed <= 0 {
		*speed = 1.0
	}

	addr, err := net.ResolveUDPAddr("udp", *dest)
	if err != nil {
		log.Fatalf("Failed to resolve destination %s: %v", *dest, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		log.Fatalf("Failed to dial %s: %v", *dest, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Replaying %s to %s (speed: %.1fx)", *pcapFile, *dest, *speed)

	for {
		sent, err := replayOnce(ctx, *pcapFile, conn, *port, *speed)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("Replay stopped (%d packets sent)", sent)
				return
			}
			log.Fatalf("Replay failed: %v", err)
		}
		log.Printf("Replay complete: %d packets sent", sent)
		if !*loop {
			return
		}
	}
}

// replayOnce plays the capture through a single time, pacing packets by
// their original inter-arrival gaps scaled by the speed multiplier.
func replayOnce(ctx context.Context, pcapFile string, conn *net.UDPConn, port int, speed float64) (int, error) {
	f, err := os.Open(pcapFile)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return 0, err
	}

	sent := 0
	var lastCapture time.Time
	for {
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		default:
		}

		data, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, err
		}

		packet := gopacket.NewPacket(data, r.LinkType(), gopacket.Default)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if port != 0 && int(udp.DstPort) != port {
			continue
		}

		// Pace by capture timestamps so the receiver sees original cadence.
		if !lastCapture.IsZero() {
			delay := ci.Timestamp.Sub(lastCapture)
			scaled := time.Duration(float64(delay) / speed)
			if scaled > 0 {
				select {
				case <-ctx.Done():
					return sent, ctx.Err()
				case <-time.After(scaled):
				}
			}
		}
		lastCapture = ci.Timestamp

		if _, err := conn.Write(udp.Payload); err != nil {
			return sent, err
		}
		sent++

		if sent%10000 == 0 {
			log.Printf("Replay progress: %d packets sent", sent)
		}
	}
}
