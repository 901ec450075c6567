package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kitchencraft.ai/internal/catalogs"
	"kitchencraft.ai/internal/config"
	"kitchencraft.ai/internal/kitchen"
	"kitchencraft.ai/internal/persistence/indexdb"
	persistlog "kitchencraft.ai/internal/persistence/log"
	"kitchencraft.ai/internal/persistence/snapshot"
	"kitchencraft.ai/internal/recipegen"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/kitchen.yaml", "kitchen config path (empty for defaults)")
		envFile    = flag.String("env", ".env", "dotenv file loaded before the environment is read (missing is fine)")
		addr       = flag.String("addr", "", "http listen address (overrides server.addr)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides storage.data_dir)")
		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	if p := strings.TrimSpace(*envFile); p != "" {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load %s: %v", p, err)
		}
	}

	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	_ = os.MkdirAll(cfg.Storage.DataDir, 0o755)

	var cats *catalogs.Catalogs
	if cfg.Storage.CatalogDir != "" {
		cats, err = catalogs.Load(cfg.Storage.CatalogDir)
	} else {
		cats, err = catalogs.Default()
	}
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	k, err := kitchen.New(kitchen.Config{
		ID:                 cfg.KitchenID,
		TickRateHz:         cfg.TickRateHz,
		SnapshotEveryTicks: cfg.SnapshotEveryTicks,
		Capacities:         cfg.KindCapacities(),
	}, logger)
	if err != nil {
		logger.Fatalf("kitchen: %v", err)
	}
	k.SetCatalogDigest(cats.Digest())

	snapDir := filepath.Join(cfg.Storage.DataDir, "snapshots")
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(snapDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.KitchenID != "" && snap.Header.KitchenID != cfg.KitchenID {
			logger.Fatalf("snapshot kitchen id mismatch: config=%s snap=%s", cfg.KitchenID, snap.Header.KitchenID)
		}
		if err := k.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), k.CurrentTick())
	}

	var idx *indexdb.SQLiteIndex
	if !cfg.Storage.DisableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(cfg.Storage.DataDir, "index", "kitchen.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
		k.SetIndex(idx)
	} else {
		logger.Printf("index disabled (storage.disable_db)")
	}

	if !cfg.Storage.DisableLog {
		cookLog := persistlog.NewCookLogger(cfg.Storage.DataDir)
		defer cookLog.Close()
		k.SetEventLogger(cookLog)
	}

	if cfg.AI.APIKey == "" {
		logger.Printf("%s not set; recipe requests will fail", config.EnvAPIKey)
	}
	llm := recipegen.NewClient(cfg.AI.Endpoint, cfg.AI.APIKey, logger,
		recipegen.WithTemperature(cfg.AI.Temperature),
		recipegen.WithMaxOutputTokens(cfg.AI.MaxOutputTokens),
		recipegen.WithConnectTimeout(time.Duration(cfg.AI.ConnectTimeoutSeconds)*time.Second),
	)
	gen := recipegen.NewGenerator(llm, cats, logger, recipegen.GeneratorOptions{
		Workers:  cfg.AI.Workers,
		Timeout:  time.Duration(cfg.AI.RequestTimeoutSeconds) * time.Second,
		CacheTTL: time.Duration(cfg.AI.CacheTTLSeconds) * time.Second,
	})

	ctx, cancel := signalContext()
	defer cancel()

	snaps := &snapshotWriter{dir: snapDir, logger: logger}
	if idx != nil {
		snaps.index = idx
	}

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	k.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				_, _ = snaps.Write(snap)
			}
		}
	}()

	kitchenDone := make(chan struct{})
	go func() {
		defer close(kitchenDone)
		if err := k.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("kitchen stopped: %v", err)
		}
	}()

	rt := &runtime{
		cfg:     cfg,
		kitchen: k,
		gen:     gen,
		cats:    cats,
		snaps:   snaps,
		logger:  logger,

		enableAdmin: envBool("KC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		enablePprof: envBool("KC_ENABLE_PPROF_HTTP", false),
	}
	if idx != nil {
		rt.index = idx
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           rt.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("kitchen=%s listening on %s", cfg.KitchenID, cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The loop has stopped; export the final state directly.
	<-kitchenDone
	if _, err := snaps.Write(k.FinalSnapshot()); err != nil {
		logger.Printf("final snapshot: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
