// aapdump is a debugging tool for the AAP protocol implementation.
//
// It opens a direct L2CAP connection to a device on PSM 4097, runs the
// initialization sequence, and prints every decoded frame. Useful for
// verifying the codec against a real device without running the daemon.
//
// Usage:
//
//	go run ./cmd/aapdump 90:62:3F:59:00:2F
//
// The device must already be paired and connected through BlueZ. Press
// Ctrl+C to stop and disconnect.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"librepods/internal/aap"
	"librepods/internal/l2cap"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: aapdump <MAC_ADDRESS>")
		fmt.Println()
		fmt.Println("Example: aapdump 90:62:3F:59:00:2F")
		os.Exit(1)
	}
	address := os.Args[1]

	conn := l2cap.New()
	conn.SetDebug(true)
	conn.SetDataFunc(printFrame)

	done := make(chan struct{})
	conn.SetStateFunc(func(state l2cap.State, err error) {
		if state == l2cap.StateDisconnected {
			close(done)
		}
	})

	log.Println("1. Opening L2CAP connection (PSM 4097)...")
	if err := conn.Connect(address); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Disconnect()

	log.Println("2. Sending initialization sequence...")
	if err := conn.SendInitSequence(); err != nil {
		log.Fatalf("Initialization failed: %v", err)
	}

	log.Println("3. Listening for frames. Press Ctrl+C to stop.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-done:
		log.Println("Connection lost")
	}
}

func printFrame(data []byte) {
	pkt, err := aap.Parse(data)
	if err != nil {
		if !errors.Is(err, aap.ErrUnknownOpcode) {
			log.Printf("Parse error: %v", err)
		}
		return
	}

	switch p := pkt.(type) {
	case aap.Battery:
		log.Printf("Battery: L=%d%% (%s) R=%d%% (%s) Case=%d%% (%s)",
			p.Battery.Left.Level, p.Battery.Left.Status,
			p.Battery.Right.Level, p.Battery.Right.Status,
			p.Battery.Case.Level, p.Battery.Case.Status)
	case aap.EarDetection:
		log.Printf("Ear detection: primary=%v secondary=%v", p.PrimaryInEar, p.SecondaryInEar)
	case aap.NoiseControl:
		log.Printf("Noise control: %s", p.Mode)
	case aap.ConvAwareness:
		log.Printf("Conversational awareness: %v", p.Enabled)
	case aap.AdaptiveLevel:
		log.Printf("Adaptive level: %d", p.Level)
	case aap.ListeningModes:
		log.Printf("Listening modes: off=%v transparency=%v anc=%v adaptive=%v",
			p.Modes.Off, p.Modes.Transparency, p.Modes.ANC, p.Modes.Adaptive)
	case aap.CADetection:
		log.Printf("CA detection: volume_level=%d", p.VolumeLevel)
	case aap.Metadata:
		log.Printf("Metadata: device=%q model=%q manufacturer=%q",
			p.DeviceName, p.ModelNumber, p.Manufacturer)
	}
}
