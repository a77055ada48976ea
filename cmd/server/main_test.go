package main

import (
	"path/filepath"
	"testing"

	"cargohold.ai/internal/persistence/snapshot"
	"cargohold.ai/internal/sim/tuning"
)

func testConfig(t *testing.T) serverConfig {
	t.Helper()
	return serverConfig{
		WorldID:    "hold_1",
		DataDir:    t.TempDir(),
		TuningPath: filepath.Join("..", "..", "configs", "tuning.yaml"),
		LayoutPath: filepath.Join("..", "..", "configs", "layout.yaml"),
	}
}

func TestBuildWorld_FreshThenResume(t *testing.T) {
	cfg := testConfig(t)
	tune, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		t.Fatalf("tuning: %v", err)
	}

	w, layout, err := buildWorld(cfg, tune, "", quietLogger())
	if err != nil {
		t.Fatalf("fresh: %v", err)
	}
	if len(layout.Switches) == 0 {
		t.Fatalf("layout has no switches")
	}
	for i := 0; i < 5; i++ {
		w.StepOnce(nil, nil, nil)
	}
	snap := w.ExportSnapshot(w.CurrentTick() - 1)
	path := filepath.Join(cfg.snapshotDir(), snapshot.FileName(snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	latest, err := snapshot.Latest(cfg.snapshotDir())
	if err != nil || latest != path {
		t.Fatalf("latest=%q err=%v", latest, err)
	}
	w2, _, err := buildWorld(cfg, tune, latest, quietLogger())
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if w2.CurrentTick() != w.CurrentTick() {
		t.Fatalf("resumed tick=%d want %d", w2.CurrentTick(), w.CurrentTick())
	}
	_, d1 := w.StepOnce(nil, nil, nil)
	_, d2 := w2.StepOnce(nil, nil, nil)
	if d1 != d2 {
		t.Fatalf("digest diverged after resume")
	}
}

func TestBuildWorld_SnapshotWorldMismatch(t *testing.T) {
	cfg := testConfig(t)
	tune := tuning.Defaults()
	w, _, err := buildWorld(cfg, tune, "", quietLogger())
	if err != nil {
		t.Fatalf("fresh: %v", err)
	}
	w.StepOnce(nil, nil, nil)
	snap := w.ExportSnapshot(0)
	snap.Header.WorldID = "other"
	path := filepath.Join(t.TempDir(), snapshot.FileName(0))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := buildWorld(cfg, tune, path, quietLogger()); err == nil {
		t.Fatalf("expected world id mismatch")
	}
}
