package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"cargohold.ai/internal/persistence/indexdb"
	persistlog "cargohold.ai/internal/persistence/log"
	"cargohold.ai/internal/persistence/snapshot"
	"cargohold.ai/internal/sim/tuning"
	"cargohold.ai/internal/sim/world"
)

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if err := os.MkdirAll(cfg.snapshotDir(), 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg serverConfig, logger *log.Logger) error {
	snapshotToLoad := strings.TrimSpace(cfg.SnapshotPath)
	if snapshotToLoad == "" && cfg.LoadLatestSnapshot {
		p, err := snapshot.Latest(cfg.snapshotDir())
		if err != nil {
			return err
		}
		snapshotToLoad = p
	}

	tune, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		if snapshotToLoad == "" || !errors.Is(err, os.ErrNotExist) {
			return err
		}
		// The snapshot carries the parameters that matter for a resume.
		logger.Printf("tuning not found (%s); using defaults", cfg.TuningPath)
		tune = tuning.Defaults()
	}

	w, layout, err := buildWorld(cfg, tune, snapshotToLoad, logger)
	if err != nil {
		return err
	}

	var idx *indexdb.SQLiteIndex
	if !cfg.DisableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(cfg.worldDir(), "index", "world.sqlite"))
		if err != nil {
			return err
		}
		defer idx.Close()
		if err := idx.UpsertConfigs(tune, layout); err != nil {
			logger.Printf("index: upsert configs: %v", err)
		}
	}

	tickLog := persistlog.NewTickLogger(cfg.worldDir())
	auditLog := persistlog.NewAuditLogger(cfg.worldDir())
	defer tickLog.Close()
	defer auditLog.Close()
	w.SetTickLogger(fanoutTickLogger{tickLog, idx})
	w.SetAuditLogger(fanoutAuditLogger{auditLog, idx})

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(cfg, w, idx, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := w.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		writeSnapshots(gctx, cfg.snapshotDir(), snapCh, idx, logger)
		return nil
	})
	g.Go(func() error {
		logger.Printf("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildWorld creates a fresh world from tuning and layout, or resumes one from a snapshot.
func buildWorld(cfg serverConfig, tune tuning.Tuning, snapshotPath string, logger *log.Logger) (*world.World, world.Layout, error) {
	w, err := world.New(world.ConfigFromTuning(cfg.WorldID, tune))
	if err != nil {
		return nil, world.Layout{}, err
	}
	layout, layoutErr := world.LoadLayout(cfg.LayoutPath)

	if snapshotPath != "" {
		snap, err := snapshot.ReadSnapshot(snapshotPath)
		if err != nil {
			return nil, world.Layout{}, err
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != cfg.WorldID {
			return nil, world.Layout{}, errors.New("snapshot world id mismatch: flag=" + cfg.WorldID + " snap=" + snap.Header.WorldID)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			return nil, world.Layout{}, err
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotPath), w.CurrentTick())
		return w, layout, nil
	}

	if layoutErr != nil {
		return nil, world.Layout{}, layoutErr
	}
	if err := w.ApplyLayout(layout); err != nil {
		return nil, world.Layout{}, err
	}
	logger.Printf("fresh world=%s objects=%d belts=%d switches=%d", cfg.WorldID, len(layout.Objects), len(layout.Belts), len(layout.Switches))
	return w, layout, nil
}

func writeSnapshots(ctx context.Context, dir string, ch <-chan snapshot.SnapshotV1, idx *indexdb.SQLiteIndex, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			path := filepath.Join(dir, snapshot.FileName(snap.Header.Tick))
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			if idx != nil {
				idx.RecordSnapshot(path, snap)
				idx.RecordSnapshotState(snap)
			}
		}
	}
}

type fanoutTickLogger struct {
	log *persistlog.TickLogger
	idx *indexdb.SQLiteIndex
}

func (f fanoutTickLogger) WriteTick(entry world.TickLogEntry) error {
	err := f.log.WriteTick(entry)
	_ = f.idx.WriteTick(entry)
	return err
}

type fanoutAuditLogger struct {
	log *persistlog.AuditLogger
	idx *indexdb.SQLiteIndex
}

func (f fanoutAuditLogger) WriteAudit(entry world.AuditEntry) error {
	err := f.log.WriteAudit(entry)
	_ = f.idx.WriteAudit(entry)
	return err
}
