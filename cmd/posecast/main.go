// Command posecast streams body-pose skeleton frames from a provider to a
// network consumer, enriching each frame with calibration data, static
// metadata and seat-occupancy results.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/posecast/posecast/internal/api"
	"github.com/posecast/posecast/internal/capture"
	"github.com/posecast/posecast/internal/provider"
	"github.com/posecast/posecast/internal/recorder"
	"github.com/posecast/posecast/internal/seating"
	"github.com/posecast/posecast/internal/transport"
)

var (
	providerKind  = flag.String("provider", "serial", "Skeleton provider: serial or replay")
	serialPort    = flag.String("serial-port", "/dev/ttyUSB0", "Serial device for the serial provider")
	serialBaud    = flag.Int("serial-baud", 115200, "Baud rate for the serial provider")
	replayFile    = flag.String("replay-file", "", "pcap capture for the replay provider")
	replayPort    = flag.Int("replay-port", 9100, "UDP port filter for the replay provider")
	replayLoop    = flag.Bool("replay-loop", false, "Loop replay playback at end of file")
	transportKind = flag.String("transport", "ws", "Frame transport: ws or udp")
	endpoint      = flag.String("endpoint", "0.0.0.0:9000/pose", "WebSocket host:port[/path] or UDP host:port")
	interval      = flag.Duration("interval", time.Second/30, "Frame interval")
	calibration   = flag.String("calibration", "", "Optional calibration JSON file")
	metadataFile  = flag.String("metadata", "", "Optional static metadata JSON file")
	seatingConfig = flag.String("seating-config", "", "Optional seating layout JSON file")
	recordDB      = flag.String("record-db", "", "Optional SQLite file for the frame/occupancy log")
	adminListen   = flag.String("admin-listen", "", "Optional admin API listen address, e.g. :8080")
)

func main() {
	flag.Parse()

	loop, rec, err := buildLoop()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	if rec != nil {
		defer rec.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := loop.Start(ctx); err != nil {
		log.Fatalf("failed to start capture: %v", err)
	}

	var wg sync.WaitGroup

	// capture loop goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil {
			log.Printf("capture loop terminated: %v", err)
		}
	}()

	// optional admin API goroutine
	if *adminListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runAdminServer(ctx, loop, rec)
		}()
	}

	<-ctx.Done()
	if err := loop.Stop(); err != nil {
		log.Printf("stop request failed: %v", err)
	}
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

func buildLoop() (*capture.Loop, *recorder.Recorder, error) {
	var prov capture.Provider
	switch *providerKind {
	case "serial":
		prov = provider.NewSerialProvider(provider.SerialConfig{
			Path:     *serialPort,
			BaudRate: *serialBaud,
		})
	case "replay":
		prov = provider.NewReplayProvider(provider.ReplayConfig{
			Path:    *replayFile,
			UDPPort: *replayPort,
			Loop:    *replayLoop,
		})
	default:
		log.Fatalf("unsupported provider %q", *providerKind)
	}

	var tr transport.Transport
	var err error
	switch *transportKind {
	case "ws":
		tr, err = transport.NewWSServerTransport(*endpoint)
	case "udp":
		tr, err = transport.NewUDPTransport(*endpoint)
	default:
		log.Fatalf("unsupported transport %q", *transportKind)
	}
	if err != nil {
		return nil, nil, err
	}

	var layout *seating.Layout
	if *seatingConfig != "" {
		layout, err = seating.LoadFile(*seatingConfig)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("loaded seating layout with %d seats from %s", layout.Len(), *seatingConfig)
	}

	var rec *recorder.Recorder
	var observer capture.Observer
	if *recordDB != "" {
		rec, err = recorder.Open(*recordDB)
		if err != nil {
			return nil, nil, err
		}
		observer = rec
		log.Printf("recording frames to %s (session %s)", *recordDB, rec.SessionID())
	}

	loop, err := capture.NewLoop(capture.Config{
		Provider:        prov,
		Transport:       tr,
		Interval:        *interval,
		CalibrationFile: *calibration,
		Metadata:        capture.LoadMetadataFile(*metadataFile),
		Layout:          layout,
		Observer:        observer,
	})
	if err != nil {
		return nil, nil, err
	}
	return loop, rec, nil
}

func runAdminServer(ctx context.Context, loop *capture.Loop, rec *recorder.Recorder) {
	mux := http.NewServeMux()
	apiMux := api.NewServer(loop, rec).ServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", apiMux))

	server := &http.Server{
		Addr:    *adminListen,
		Handler: mux,
	}

	go func() {
		log.Printf("admin API listening on %s", *adminListen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("admin server shutdown error: %v", err)
	}
}
