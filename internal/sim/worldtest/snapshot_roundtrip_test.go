package worldtest

import (
	"path/filepath"
	"testing"

	"cargohold.ai/internal/persistence/snapshot"
	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/mathx"
	world "cargohold.ai/internal/sim/world"
)

// busyHarness leaves a running switch, a half-moved belt, an armed explosive and an
// unfinished unwrap in the world.
func busyHarness(t *testing.T) *Harness {
	t.Helper()
	h := NewLayoutHarness(t, "crew")
	p2 := h.Join("saboteur")

	toggleSwitch(h, "switch_1")

	h.SetPlayerPosFor(p2, mathx.Vec2i{X: -1, Y: 1})
	h.StepFor(p2, []protocol.ControlReq{{ID: "pick", Type: protocol.ControlPickup, Target: "c4_1"}}, nil)
	h.StepFor(p2, []protocol.ControlReq{{ID: "harm", Type: protocol.ControlIntent, Intent: "HARM"}}, nil)
	h.StepFor(p2, nil, []protocol.InteractReq{{ID: "attach", Kind: "POSITIONAL_HAND_APPLY", Target: "locker_1"}})
	h.StepNoopN(30)
	h.StepFor(p2, nil, []protocol.InteractReq{{ID: "arm", Kind: "HAND_APPLY", Target: "c4_1"}})
	if got := h.Object("c4_1").State; got != "ARMED" {
		t.Fatalf("setup: c4 state %q", got)
	}

	h.SetPlayerPos(mathx.Vec2i{X: 0, Y: 1})
	h.Control(intentHarm())
	if code := h.Interact(protocol.InteractReq{Kind: "HAND_APPLY", Target: "package_2"}); code != "" {
		t.Fatalf("setup: unwrap code=%s", code)
	}
	h.StepNoopN(3)
	return h
}

func TestSnapshotExportImport_RoundTripDigest(t *testing.T) {
	h := busyHarness(t)

	snapTick, snap := h.Snapshot()
	d1 := h.W.DebugStateDigest(snapTick)

	w2, err := world.New(DefaultConfig())
	if err != nil {
		t.Fatalf("world2: %v", err)
	}
	if err := w2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if got, want := w2.CurrentTick(), snapTick+1; got != want {
		t.Fatalf("tick after import: got %d want %d", got, want)
	}
	if d2 := w2.DebugStateDigest(snapTick); d1 != d2 {
		t.Fatalf("digest mismatch after import: %s vs %s", d1, d2)
	}
}

func TestSnapshotImport_ContinuesIdentically(t *testing.T) {
	h := busyHarness(t)
	_, snap := h.Snapshot()

	w2, err := world.New(DefaultConfig())
	if err != nil {
		t.Fatalf("world2: %v", err)
	}
	if err := w2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}

	// Long enough for the unwrap to finish, belts to carry and the charge to go off.
	for i := 0; i < 120; i++ {
		t1, d1 := h.W.StepOnce(nil, nil, nil)
		t2, d2 := w2.StepOnce(nil, nil, nil)
		if t1 != t2 {
			t.Fatalf("tick mismatch: %d vs %d", t1, t2)
		}
		if d1 != d2 {
			t.Fatalf("diverged at tick %d", t1)
		}
	}
	h.drainAllStates()
	if h.Exists("c4_1") || h.Exists("package_2") {
		t.Fatalf("timers did not run: c4=%v package=%v", h.Exists("c4_1"), h.Exists("package_2"))
	}
	if _, ok := w2.DebugObject("c4_1"); ok {
		t.Fatalf("imported charge did not detonate")
	}
}

func TestSnapshotFile_RoundTrip(t *testing.T) {
	h := busyHarness(t)
	snapTick, snap := h.Snapshot()

	path := filepath.Join(t.TempDir(), snapshot.FileName(snapTick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	w2, err := world.New(DefaultConfig())
	if err != nil {
		t.Fatalf("world2: %v", err)
	}
	if err := w2.ImportSnapshot(got); err != nil {
		t.Fatalf("import: %v", err)
	}
	if d1, d2 := h.W.DebugStateDigest(snapTick), w2.DebugStateDigest(snapTick); d1 != d2 {
		t.Fatalf("digest mismatch through file: %s vs %s", d1, d2)
	}
}

func TestSnapshotImport_ResumeTokenAttach(t *testing.T) {
	h := NewLayoutHarness(t, "crew")
	_, snap := h.Snapshot()

	w2, err := world.New(DefaultConfig())
	if err != nil {
		t.Fatalf("world2: %v", err)
	}
	if err := w2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	var token string
	for _, p := range snap.Players {
		if p.ID == h.DefaultPlayerID {
			token = p.ResumeToken
		}
	}
	if token == "" {
		t.Fatalf("snapshot lost the resume token")
	}
	if _, ok := w2.DebugAttach(token); !ok {
		t.Fatalf("attach with persisted token failed")
	}
	if _, ok := w2.DebugAttach(token); ok {
		t.Fatalf("token should rotate after a successful attach")
	}
}
