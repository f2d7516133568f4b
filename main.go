package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gazekit/gazeboard/internal/api"
	"github.com/gazekit/gazeboard/internal/config"
	"github.com/gazekit/gazeboard/internal/db"
	"github.com/gazekit/gazeboard/internal/gaze"
	"github.com/gazekit/gazeboard/internal/monitor"
	"github.com/gazekit/gazeboard/internal/render"
	"github.com/gazekit/gazeboard/internal/surface"
	"github.com/gazekit/gazeboard/internal/trackermux"
	"github.com/gazekit/gazeboard/internal/version"
)

var (
	//go:embed static/*
	staticFiles embed.FS

	devMode     = flag.Bool("dev", false, "Run in dev mode (replay fixtures.txt instead of a live tracker)")
	listen      = flag.String("listen", ":8080", "Listen address")
	dbFile      = flag.String("db", "gaze.db", "Path to the sqlite database")
	configPath  = flag.String("config", "", "Path to a tuning config JSON (default: built-in defaults)")
	source      = flag.String("source", "/dev/ttyUSB0", "Tracker source: serial device path or udp://listen[,command] address")
	width       = flag.Int("width", 1920, "Screen width in pixels")
	height      = flag.Int("height", 1080, "Screen height in pixels")
	dpiX        = flag.Float64("dpix", 96, "Screen horizontal DPI (for tracker registration)")
	dpiY        = flag.Float64("dpiy", 96, "Screen vertical DPI (for tracker registration)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// newTrackerMux builds the mux for the configured source. Dev mode replays
// fixtures.txt; udp:// sources listen for datagrams (with an optional
// comma-separated command address); anything else is a serial device path.
func newTrackerMux(tuning *config.TuningConfig) (trackermux.TrackerMuxInterface, error) {
	if *devMode {
		data, err := os.ReadFile("fixtures.txt")
		if err != nil {
			return nil, fmt.Errorf("failed to open fixtures file: %w", err)
		}
		return trackermux.NewMockTrackerMux(data, tuning.GetStreamRateHz()), nil
	}

	if addr, ok := strings.CutPrefix(*source, "udp://"); ok {
		listenAddr, commandAddr, _ := strings.Cut(addr, ",")
		return trackermux.NewUDPTrackerMux(listenAddr, commandAddr)
	}

	return trackermux.NewSerialTrackerMux(*source, trackermux.PortOptions{})
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	log.Printf("gazeboard %s", version.String())

	var tuning *config.TuningConfig
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	} else {
		tuning = config.MustLoadDefaultConfig()
	}
	if err := tuning.Validate(); err != nil {
		log.Fatalf("Invalid tuning config: %v", err)
	}

	m, err := newTrackerMux(tuning)
	if err != nil {
		log.Fatalf("Failed to create tracker source: %v", err)
	}
	defer m.Close()

	screen, err := gaze.NewSurface(*width, *height)
	if err != nil {
		log.Fatalf("Invalid screen size: %v", err)
	}

	session, err := gaze.NewSession(gaze.SessionConfig{
		Surface:        screen,
		WindowSize:     tuning.GetWindowSize(),
		ClampToSurface: tuning.GetClampToSurface(),
	})
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	log.Printf("Session %s: %dx%d surface, window=%d", session.ID, screen.Width, screen.Height, tuning.GetWindowSize())

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.StartSession(session.ID, screen, tuning.GetWindowSize()); err != nil {
		log.Fatalf("Failed to record session: %v", err)
	}
	defer func() {
		if err := database.EndSession(session.ID); err != nil {
			log.Printf("Failed to close session record: %v", err)
		}
	}()

	// Tell the tracker about the physical screen so it can map gaze onto
	// it, then start the stream. Read-only feeds (UDP without a command
	// address) can't take commands; that's fine for replayed data.
	offset := tuning.GetEdgeOffsetMM()
	geom, err := surface.NewGeometry(surface.Geometry{
		WidthPx: screen.Width, HeightPx: screen.Height,
		DPIX: *dpiX, DPIY: *dpiY,
		MarkerSizeMM:   tuning.GetMarkerSizeMM(),
		MarkerBorderMM: tuning.GetMarkerBorderMM(),
		EdgeOffsetsMM:  surface.EdgeOffsetsMM{{offset, offset}, {offset, offset}},
	})
	if err != nil {
		log.Fatalf("Invalid screen geometry: %v", err)
	}
	widthMM, heightMM := geom.SizeMM()
	log.Printf("Screen: %.0fx%.0fmm at %.0f DPI, %d registration markers", widthMM, heightMM, geom.DPI(), len(geom.MarkerLayout()))

	if err := m.SendCommand(geom.RegistrationCommand()); err != nil {
		log.Printf("Screen registration not sent (source is read-only?): %v", err)
	}
	if err := m.Initialize(tuning.GetStreamRateHz()); err != nil {
		log.Printf("Tracker initialization not sent (source is read-only?): %v", err)
	}

	publisher := render.NewPublisher(render.Config{FPS: tuning.GetRenderFPS()}, session)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the tracker link
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor tracker link: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to the gaze stream and feed the smoothing session,
	// persisting accepted samples in batches
	wg.Add(1)
	go func() {
		defer wg.Done()
		ingestLoop(ctx, m, session, database, tuning.GetTraceBatchSize())
	}()

	if err := publisher.Start(ctx); err != nil {
		log.Fatalf("Failed to start render publisher: %v", err)
	}
	defer publisher.Stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or
		// behind the reverse proxy)
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Fatalf("failed to attach admin routes: %v", err)
		}
		m.AttachAdminRoutes(mux)
		monitor.NewWebServer(database, session, publisher).AttachRoutes(mux)

		apiMux := api.NewServer(m, database, session, tuning).ServeMux()
		mux.Handle("/api/", apiMux)

		mux.HandleFunc("/ws/marker", publisher.ServeWS)

		// read static files from the embedded filesystem in production or
		// from the local ./static in dev for easier iteration without
		// restarting the server
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			staticHandler = http.FileServer(http.FS(staticFiles))
		}
		mux.Handle("/", staticHandler)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("HTTP server listening on %s", *listen)

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// ingestLoop consumes the tracker stream: parse, smooth, persist. Malformed
// records are logged and skipped; tracking-loss records count as drops
// inside the session. Accepted points are written to the database in
// batches, flushed on a timer so a quiet stream still lands.
func ingestLoop(ctx context.Context, m trackermux.TrackerMuxInterface, session *gaze.Session, database *db.DB, batchSize int) {
	id, c := m.Subscribe()
	defer m.Unsubscribe(id)

	batch := make([]db.TracePoint, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := database.RecordPoints(session.ID, batch); err != nil {
			log.Printf("failed to record trace batch: %v", err)
		}
		batch = batch[:0]
	}
	defer flush()

	flushTicker := time.NewTicker(time.Second)
	defer flushTicker.Stop()

	for {
		select {
		case line := <-c:
			sample, err := trackermux.ParseSample(line)
			if err != nil {
				log.Printf("skipping malformed record %q: %v", line, err)
				continue
			}
			raw, smoothed, ok := session.OnSample(sample.Timestamp, sample.X, sample.Y)
			if !ok {
				continue
			}
			batch = append(batch, db.TracePoint{
				TrackerTS: sample.Timestamp,
				RawX:      raw.X, RawY: raw.Y,
				SmoothX: smoothed.X, SmoothY: smoothed.Y,
			})
			if len(batch) >= batchSize {
				flush()
			}
		case <-flushTicker.C:
			flush()
		case <-ctx.Done():
			log.Printf("ingest routine terminated")
			return
		}
	}
}
