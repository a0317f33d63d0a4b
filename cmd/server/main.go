package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/inamate/whiteboard/internal/collab"
	"github.com/inamate/whiteboard/internal/config"
	"github.com/inamate/whiteboard/internal/discovery"
	"github.com/inamate/whiteboard/internal/export"
	mw "github.com/inamate/whiteboard/internal/middleware"
	"github.com/inamate/whiteboard/internal/room"
	"github.com/inamate/whiteboard/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.Level()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots, hubOpts, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("open stores", "error", err)
		os.Exit(1)
	}
	defer closeStores()

	hubOpts = append(hubOpts,
		collab.WithReplayLimit(cfg.ReplayLimit),
		collab.WithGrace(cfg.RoomGrace),
	)
	hub := collab.NewHub(hubOpts...)
	go hub.Run(ctx)

	roomHandler := room.NewHandler(room.NewService(snapshots, hub))
	exportHandler := export.NewHandler(snapshots, nil)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Relay: the room comes from the path or from join-room.
	r.HandleFunc("/ws/room/{roomId}", hub.ServeWS(cfg.Origins()))
	r.HandleFunc("/ws", hub.ServeWS(cfg.Origins()))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms/{roomId}", roomHandler.Get).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/presence", hub.ServePresence).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/snapshot", roomHandler.GetSnapshot).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/snapshot", roomHandler.PutSnapshot).Methods("PUT", "OPTIONS")
	api.HandleFunc("/rooms/{roomId}/snapshot.png", exportHandler.ExportPNG).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/snapshot.pdf", exportHandler.ExportPDF).Methods("GET")

	if cfg.MDNSEnabled {
		mdnsServer, err := discovery.Advertise(cfg.Port, cfg.MDNSInstance, "path=/ws/room")
		if err != nil {
			slog.Warn("mdns advertise failed", "error", err)
		} else {
			defer mdnsServer.Shutdown()
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
		cancel()
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStores picks the snapshot store from the configured backends:
// Postgres behind a Redis cache, either one alone, or memory.
func openStores(ctx context.Context, cfg *config.Config) (store.Store, []collab.Option, func(), error) {
	var (
		primary store.Store
		opts    []collab.Option
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DatabaseURL != "" {
		pool, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		closers = append(closers, pool.Close)
		pg, err := store.NewPostgres(ctx, pool)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		primary = pg
		slog.Info("snapshots in postgres")
	}

	if cfg.RedisURL != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		closers = append(closers, func() { rdb.Close() })
		opts = append(opts, collab.WithReplayCache(store.NewReplayCache(rdb, cfg.ReplayLimit, cfg.ReplayTTL)))

		if primary == nil {
			primary = store.NewRedis(rdb, 0)
			slog.Info("snapshots in redis")
		} else {
			primary = store.NewCached(primary, store.NewRedis(rdb, cfg.ReplayTTL), slog.Default())
			slog.Info("snapshot cache in redis")
		}
	}

	if primary == nil {
		primary = store.NewMemory()
		slog.Warn("no DATABASE_URL or REDIS_URL, snapshots are kept in memory")
	}
	return primary, opts, closeAll, nil
}
