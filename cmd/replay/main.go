package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	persistlog "cargohold.ai/internal/persistence/log"
	"cargohold.ai/internal/persistence/snapshot"
	"cargohold.ai/internal/sim/tuning"
	"cargohold.ai/internal/sim/world"
)

var errStop = errors.New("stop")

func main() {
	var (
		worldDir  = flag.String("world_dir", "./data/worlds/hold_1", "world data directory (events/ and snapshots/)")
		worldID   = flag.String("world", "hold_1", "world id for a fresh start")
		snapPath  = flag.String("snapshot", "", "path to .snap.zst to start from (default: fresh world from configs)")
		configDir = flag.String("configs", "./configs", "config directory (tuning.yaml, layout.yaml)")
		fromTick  = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick    = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[replay] ", log.LstdFlags|log.Lmicroseconds)

	w, err := startWorld(*worldID, *snapPath, *configDir)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	start := w.CurrentTick()
	checked, err := replay(w, filepath.Join(*worldDir, persistlog.EventsPrefix), *fromTick, *toTick)
	if err != nil {
		logger.Fatalf("replay: %v", err)
	}
	logger.Printf("replay ok: checked=%d ticks (start tick=%d, end tick=%d)", checked, start, w.CurrentTick())
}

// startWorld resumes from a snapshot or builds the initial world from tuning and layout.
func startWorld(worldID, snapPath, configDir string) (*world.World, error) {
	if snapPath != "" {
		snap, err := snapshot.ReadSnapshot(snapPath)
		if err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		w, err := world.New(world.ConfigFromTuning(snap.Header.WorldID, tuning.Defaults()))
		if err != nil {
			return nil, err
		}
		if err := w.ImportSnapshot(snap); err != nil {
			return nil, fmt.Errorf("import snapshot: %w", err)
		}
		return w, nil
	}

	tune, err := tuning.Load(filepath.Join(configDir, "tuning.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load tuning: %w", err)
	}
	layout, err := world.LoadLayout(filepath.Join(configDir, "layout.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load layout: %w", err)
	}
	w, err := world.New(world.ConfigFromTuning(worldID, tune))
	if err != nil {
		return nil, err
	}
	if err := w.ApplyLayout(layout); err != nil {
		return nil, err
	}
	return w, nil
}

// replay steps w through every logged tick at or after its current tick and compares
// digests from verifyFrom on. It returns the number of ticks verified.
func replay(w *world.World, eventsDir string, verifyFrom, toTick uint64) (uint64, error) {
	startTick := w.CurrentTick()
	if verifyFrom == 0 {
		verifyFrom = startTick
	}

	var checked uint64
	err := persistlog.ReadTicks(eventsDir, func(entry world.TickLogEntry) error {
		if entry.Tick < startTick {
			return nil
		}
		if toTick != 0 && entry.Tick > toTick {
			return errStop
		}
		if entry.Tick != w.CurrentTick() {
			return fmt.Errorf("tick gap: want=%d got=%d", w.CurrentTick(), entry.Tick)
		}

		joins := make([]world.JoinRequest, 0, len(entry.Joins))
		for _, j := range entry.Joins {
			joins = append(joins, world.JoinRequest{Name: j.Name})
		}
		acts := make([]world.ActionEnvelope, 0, len(entry.Actions))
		for _, ra := range entry.Actions {
			acts = append(acts, world.ActionEnvelope{PlayerID: ra.PlayerID, Act: ra.Act})
		}

		tick, digest := w.StepOnce(joins, entry.Leaves, acts)
		if tick != entry.Tick {
			return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d", tick, entry.Tick)
		}
		if tick >= verifyFrom {
			checked++
			if digest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
			}
		}
		return nil
	})
	if errors.Is(err, errStop) {
		err = nil
	}
	return checked, err
}
