package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "cargohold.ai/internal/persistence/log"
	"cargohold.ai/internal/persistence/snapshot"
	"cargohold.ai/internal/sim/conveyor"
	"cargohold.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "rollback":
			rollbackCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

type auditFilter struct {
	SinceTick uint64
	ToTick    uint64 // 0 means unbounded
	Action    string
	Actor     string
	ObjectID  string
}

func (f auditFilter) match(e world.AuditEntry) bool {
	if e.Tick < f.SinceTick || (f.ToTick != 0 && e.Tick > f.ToTick) {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	return f.ObjectID == "" || e.ObjectID == f.ObjectID
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "hold_1", "world id")
	var f auditFilter
	fs.Uint64Var(&f.SinceTick, "since_tick", 0, "first tick (inclusive)")
	fs.Uint64Var(&f.ToTick, "to_tick", 0, "last tick (inclusive, optional)")
	fs.StringVar(&f.Action, "action", "", "action filter (e.g. SWITCH_STATE, ARM)")
	fs.StringVar(&f.Actor, "actor", "", "actor filter (player id or WORLD)")
	fs.StringVar(&f.ObjectID, "object", "", "object id filter")
	_ = fs.Parse(args)

	recs, err := readAudit(filepath.Join(*dataDir, "worlds", *worldID), f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	for _, r := range recs {
		printJSON(r.Entry)
	}
}

func rollbackCmd(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path to rollback from (optional; defaults to latest)")
	object := fs.String("object", "", "only roll back this switch (optional)")
	sinceTick := fs.Uint64("since_tick", 0, "rollback switch changes since tick (inclusive)")
	outPath := fs.String("out", "", "output snapshot path (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" {
		p, err := snapshot.Latest(filepath.Join(worldDir, "snapshots"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "latest snapshot:", err)
			os.Exit(1)
		}
		snapshotToLoad = p
	}
	if snapshotToLoad == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(snapshotToLoad)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	recs, err := readAudit(worldDir, auditFilter{
		SinceTick: *sinceTick,
		ToTick:    snap.Header.Tick,
		Action:    "SWITCH_STATE",
		ObjectID:  *object,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("no matching audit entries; nothing to rollback")
		return
	}

	applied, skipped := applyRollback(&snap, recs)

	if strings.TrimSpace(*outPath) == "" {
		*outPath = filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.rollback.snap.zst", snap.Header.Tick))
	}
	if err := snapshot.WriteSnapshot(*outPath, snap); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("rollback ok: snapshot=%s tick=%d since=%d entries=%d applied=%d skipped=%d out=%s\n",
		filepath.Base(snapshotToLoad), snap.Header.Tick, *sinceTick, len(recs), applied, skipped, *outPath)
}

type auditRec struct {
	Seq   uint64
	Entry world.AuditEntry
}

// readAudit returns matching entries newest first; entries of one tick keep reverse log order.
func readAudit(worldDir string, f auditFilter) ([]auditRec, error) {
	dir := filepath.Join(worldDir, persistlog.AuditPrefix)
	files, err := persistlog.ListFiles(dir, persistlog.AuditPrefix)
	if err != nil {
		return nil, err
	}

	out := make([]auditRec, 0, 256)
	var seq uint64
	for _, path := range files {
		err := persistlog.ReadLines(path, func(e world.AuditEntry) error {
			seq++
			if f.match(e) {
				out = append(out, auditRec{Seq: seq, Entry: e})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Entry.Tick != out[j].Entry.Tick {
			return out[i].Entry.Tick > out[j].Entry.Tick
		}
		return out[i].Seq > out[j].Seq
	})
	return out, nil
}

// applyRollback undoes switch state changes newest first, leaving each switch in the state it
// had before the earliest undone change. Undone switches restart their redrive phase.
func applyRollback(snap *snapshot.SnapshotV1, recs []auditRec) (applied, skipped int) {
	if snap == nil || len(recs) == 0 {
		return 0, 0
	}
	switches := map[string]*snapshot.SwitchV1{}
	for i := range snap.Switches {
		switches[snap.Switches[i].ID] = &snap.Switches[i]
	}

	for _, r := range recs {
		sw := switches[r.Entry.ObjectID]
		from, err := conveyor.ParseSwitchState(r.Entry.From)
		if sw == nil || err != nil {
			skipped++
			continue
		}
		sw.State = int(from)
		if from != conveyor.Off {
			sw.PrevMove = int(from)
		} else if to, err := conveyor.ParseSwitchState(r.Entry.To); err == nil && to != conveyor.Off {
			// A toggle out of Off moves opposite to the remembered direction.
			sw.PrevMove = int(opposite(to))
		}
		sw.NextRedrive = 0
		applied++
	}
	return applied, skipped
}

func opposite(s conveyor.SwitchState) conveyor.SwitchState {
	if s == conveyor.Forward {
		return conveyor.Backward
	}
	return conveyor.Forward
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
