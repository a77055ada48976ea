package worldtest

import (
	"testing"

	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/mathx"
	world "cargohold.ai/internal/sim/world"
)

func TestUnwrap_InWorldLeavesContentOnTile(t *testing.T) {
	h := NewLayoutHarness(t, "crew")
	h.SetPlayerPos(mathx.Vec2i{X: 1, Y: 0})

	if code := h.Interact(protocol.InteractReq{Kind: "HAND_APPLY", Target: "package_1"}); code != protocol.ErrNotEligible {
		t.Fatalf("help intent: expected %s, got %s", protocol.ErrNotEligible, code)
	}
	if code := h.Control(intentHarm()); code != "" {
		t.Fatalf("intent: code=%s", code)
	}

	ref := h.NextRef()
	if code := h.Interact(protocol.InteractReq{ID: ref, Kind: "HAND_APPLY", Target: "package_1"}); code != "" {
		t.Fatalf("unwrap: code=%s", code)
	}
	if len(h.W.DebugObjectsOfKind("crate")) != 0 {
		t.Fatalf("content generated before unwrap finished")
	}
	h.StepNoopN(10)

	events := h.TakeEvents()
	if ok, found := progressResult(events, ref); !found || !ok {
		t.Fatalf("progress result: ok=%v found=%v", ok, found)
	}
	if !hasEvent(events, "SOUND", func(e protocol.Event) bool { return e["sound"] == "PAPER_TEAR" }) {
		t.Fatalf("missing tear sound")
	}
	if h.Exists("package_1") {
		t.Fatalf("package not removed")
	}
	crates := h.W.DebugObjectsOfKind("crate")
	if len(crates) != 1 {
		t.Fatalf("crates: %v", crates)
	}
	requirePos(t, h.Object(crates[0]), [2]int{2, 0})
	if _, ok := objectInState(h.LastState(), crates[0]); !ok {
		t.Fatalf("content not visible in STATE")
	}
}

func TestUnwrap_InInventoryHandsContentOver(t *testing.T) {
	h := NewLayoutHarness(t, "crew")
	h.SetPlayerPos(mathx.Vec2i{X: 0, Y: 1})

	if code := h.Interact(protocol.InteractReq{Kind: "INVENTORY_APPLY", Target: "package_2"}); code != protocol.ErrInvalidTarget {
		t.Fatalf("not held: expected %s, got %s", protocol.ErrInvalidTarget, code)
	}
	if code := h.Control(protocol.ControlReq{Type: protocol.ControlPickup, Target: "package_2"}); code != "" {
		t.Fatalf("pickup: code=%s", code)
	}
	h.Control(intentHarm())

	ref := h.NextRef()
	if code := h.Interact(protocol.InteractReq{ID: ref, Kind: "INVENTORY_APPLY", Target: "package_2"}); code != "" {
		t.Fatalf("unwrap: code=%s", code)
	}
	st := h.StepNoopN(10)
	if ok, found := progressResult(h.TakeEvents(), ref); !found || !ok {
		t.Fatalf("progress result: ok=%v found=%v", ok, found)
	}

	held := st.Self.Slots["right_hand"]
	if held == "" || held == "package_2" {
		t.Fatalf("hand after unwrap: %q", held)
	}
	if got := h.Object(held).Kind; got != "toy_ball" {
		t.Fatalf("content kind: %q", got)
	}
	if h.Exists("package_2") {
		t.Fatalf("package not removed")
	}
}

func TestUnwrap_InventoryApplyWithOtherItemNotEligible(t *testing.T) {
	h := NewLayoutHarness(t, "crew")
	h.SetPlayerPos(mathx.Vec2i{X: 0, Y: 1})
	h.Control(protocol.ControlReq{Type: protocol.ControlPickup, Target: "package_2"})
	h.Control(protocol.ControlReq{Type: protocol.ControlSwapHand})
	h.Control(protocol.ControlReq{Type: protocol.ControlPickup, Target: "wrench_1"})
	h.Control(intentHarm())

	// The package is in the other hand, the wrench is used on it.
	if code := h.Interact(protocol.InteractReq{Kind: "INVENTORY_APPLY", Target: "package_2"}); code != protocol.ErrNotEligible {
		t.Fatalf("expected %s, got %s", protocol.ErrNotEligible, code)
	}
}

func TestUnwrap_EmptyPackage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wrapping.DefaultContents = nil
	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	if err := w.ApplyLayout(world.Layout{Objects: []world.LayoutObject{
		{ID: "pkg", Kind: "wrapped_package", Pos: [2]int{1, 0}, PackageType: "BOX"},
	}}); err != nil {
		t.Fatalf("ApplyLayout: %v", err)
	}
	h := NewHarnessWithWorld(t, w, "crew")
	h.Control(intentHarm())

	if code := h.Interact(protocol.InteractReq{Kind: "HAND_APPLY", Target: "pkg"}); code != "" {
		t.Fatalf("unwrap: code=%s", code)
	}
	h.StepNoopN(10)
	if !hasText(h.TakeEvents(), "EXAMINE", "The package is empty.") {
		t.Fatalf("missing empty examine")
	}
}
