// Package node runs the poisync sync node.
package node

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"poisync/internal/engine"
	"poisync/internal/peers"
	"poisync/internal/rpc"
	"poisync/internal/store"
	"poisync/internal/sysinfo"
	"poisync/internal/transport"
	"poisync/internal/wire"
	"poisync/pkg/config"
	"poisync/pkg/logger"
)

// tickInterval is the driver cadence for the engine's periodic work. The
// engine applies its own protocol timers on top.
const tickInterval = 250 * time.Millisecond

// Run starts the sync node.
func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.Init(cfg.Sync.LogLevel)

	id, err := sysinfo.Collect(cfg.Device.Interface)
	if err != nil {
		return fmt.Errorf("detecting device identity: %w", err)
	}

	syncMode, err := wire.ParseSyncMode(cfg.Sync.Mode)
	if err != nil {
		return fmt.Errorf("parsing sync mode: %w", err)
	}

	log.Info().
		Str("endpoint", id.Endpoint.String()).
		Str("name", cfg.Device.Name).
		Str("mode", syncMode.String()).
		Bool("auto_pair", cfg.Sync.AutoPair).
		Msg("Device identity")

	// Ensure database and socket directories exist
	for _, p := range []string{cfg.Sync.DBPath, cfg.Sync.RPCSocket} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return fmt.Errorf("creating directory for %s: %w", p, err)
		}
	}

	db, err := store.New(cfg.Sync.DBPath, log)
	if err != nil {
		return fmt.Errorf("opening pair store: %w", err)
	}
	defer db.Close()

	tr, err := transport.NewUDP(cfg.Device.Interface, cfg.Net.Group, cfg.Net.Port, id.Endpoint, log)
	if err != nil {
		return fmt.Errorf("opening transport: %w", err)
	}
	defer tr.Close()

	eng := engine.New(engine.Config{
		Endpoint: id.Endpoint,
		Name:     cfg.Device.Name,
		AutoPair: cfg.Sync.AutoPair,
		SyncMode: syncMode,
	}, tr, callbacks(db, log), log)

	restorePairings(eng, db, log)

	tr.Start(eng.HandleDatagram)

	if err := rpc.StartServer(cfg.Sync.RPCSocket, eng, log); err != nil {
		return fmt.Errorf("starting RPC server: %w", err)
	}

	log.Info().
		Str("group", cfg.Net.Group).
		Int("port", cfg.Net.Port).
		Msg("Sync node started")

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			eng.Tick()
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("Shutting down")
			os.Remove(cfg.Sync.RPCSocket)
			return nil
		}
	}
}

// callbacks wires engine notifications into logging and the pair store.
// On a poi device these drive the rendering engine; the node reports them
// and keeps the persisted pairing set current.
func callbacks(db *store.Store, log zerolog.Logger) engine.Callbacks {
	return engine.Callbacks{
		ModeChange: func(mode, index uint8) {
			log.Info().Uint8("mode", mode).Uint8("index", index).Msg("Applying mode from peer")
		},
		Pattern: func(p wire.PatternPayload) {
			log.Info().Uint8("index", p.Index).Uint8("type", p.Type).Msg("Applying pattern from peer")
		},
		Brightness: func(b uint8) {
			log.Info().Uint8("brightness", b).Msg("Applying brightness from peer")
		},
		FrameRate: func(d uint8) {
			log.Info().Uint8("frame_delay", d).Msg("Applying frame rate from peer")
		},
		SyncTime: func(offset int32) {
			log.Debug().Int32("offset_ms", offset).Msg("Clock offset updated")
		},
		PeerUpdate: func(p peers.Peer) {
			switch p.State {
			case peers.StatePaired:
				if err := db.Put(p.Endpoint, p.Name); err != nil {
					log.Error().Err(err).Msg("Failed to persist pairing")
				}
			case peers.StateNone:
				if err := db.Delete(p.Endpoint); err != nil {
					log.Error().Err(err).Msg("Failed to remove persisted pairing")
				}
			}
		},
	}
}

// restorePairings reinstates peers paired in a previous run. They start
// offline until their first heartbeat arrives.
func restorePairings(eng *engine.Engine, db *store.Store, log zerolog.Logger) {
	records, err := db.All()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load persisted pairings")
		return
	}
	for _, rec := range records {
		ep, err := wire.ParseEndpoint(rec.Endpoint)
		if err != nil {
			log.Warn().Str("endpoint", rec.Endpoint).Msg("Skipping corrupt persisted pairing")
			continue
		}
		if eng.RestorePeer(ep, rec.Name) {
			log.Info().
				Str("peer", rec.Name).
				Str("endpoint", rec.Endpoint).
				Msg("Pairing restored")
		}
	}
}
