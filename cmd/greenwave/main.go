package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/greenwave-ems/greenwave/internal/config"
	"github.com/greenwave-ems/greenwave/internal/recorder"
	"github.com/greenwave-ems/greenwave/internal/server"
	"github.com/greenwave-ems/greenwave/internal/sim"
	"github.com/greenwave-ems/greenwave/internal/store"
)

func main() {
	log.Println("Starting Greenwave simulator service...")

	// Load .env first so it can point at the config file and database.
	_ = godotenv.Load(".env")

	configPath := os.Getenv("GREENWAVE_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded: tick=%v, segment=%v, driver=%s",
		cfg.TickInterval(), cfg.SegmentTime(), cfg.Database.Driver)

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	hub := server.NewHub()
	rec := recorder.New(st, cfg.Simulator.PositionStride)
	ctrl := sim.New(sim.MultiListener{rec, hub})
	ctrl.SetSegmentTime(cfg.SegmentTime())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One tick loop for the lifetime of the process. Tick is a no-op
	// while no drive is running, so start/reset never spawn timers.
	// Timing is re-read from the watched config each cycle, so edits to
	// tick_millis and segment_millis apply without a restart.
	go func() {
		interval := cfg.TickInterval()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cur := config.GetCurrent()
				if d := cur.TickInterval(); d > 0 && d != interval {
					interval = d
					ticker.Reset(interval)
					log.Printf("Tick interval changed to %v", interval)
				}
				ctrl.SetSegmentTime(cur.SegmentTime())
				ctrl.Tick(interval)
			case <-ctx.Done():
				log.Println("Tick loop stopped")
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.New(ctrl, st, hub).Router(cfg.Server.AllowedOrigins),
	}

	go func() {
		log.Printf("API server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Goodbye!")
}

// openStore selects the drive-history backend from config.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return store.OpenPostgres(cfg.Database.URL)
	default:
		if dir := filepath.Dir(cfg.Database.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		return store.OpenSQLite(cfg.Database.Path)
	}
}
