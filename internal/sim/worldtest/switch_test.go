package worldtest

import (
	"testing"

	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/mathx"
)

func toggleSwitch(h *Harness, id string) string {
	return h.Interact(protocol.InteractReq{Kind: "HAND_APPLY", Target: id})
}

func TestSwitch_HandApplyAlternatesDirection(t *testing.T) {
	h := NewLayoutHarness(t, "crew")

	if got := h.Object("switch_1").State; got != "OFF" {
		t.Fatalf("initial state: got %q want OFF", got)
	}

	want := []string{"FORWARD", "OFF", "BACKWARD", "OFF", "FORWARD"}
	for i, w := range want {
		if code := toggleSwitch(h, "switch_1"); code != "" {
			t.Fatalf("toggle %d: code=%s", i, code)
		}
		if got := h.Object("switch_1").State; got != w {
			t.Fatalf("toggle %d: got %q want %q", i, got, w)
		}
		if got := h.Object("switch_1").Sprite; (w == "OFF") != (got == 0) {
			t.Fatalf("toggle %d: sprite %d does not match %s", i, got, w)
		}
	}
}

func TestSwitch_BeltsMirrorSwitchState(t *testing.T) {
	h := NewLayoutHarness(t, "crew")

	if code := toggleSwitch(h, "switch_1"); code != "" {
		t.Fatalf("toggle: code=%s", code)
	}
	for _, id := range []string{"belt_1", "belt_2", "belt_3", "belt_4", "belt_5"} {
		if got := h.Object(id).State; got != "FORWARD" {
			t.Fatalf("%s: got %q want FORWARD", id, got)
		}
	}
	st := h.LastState()
	if o, ok := objectInState(st, "belt_5"); !ok || o.State != "FORWARD" {
		t.Fatalf("STATE belt_5: %+v ok=%v", o, ok)
	}
}

func TestSwitch_BeltsCarryObjectsOneTilePerStep(t *testing.T) {
	h := NewLayoutHarness(t, "crew")

	toggleSwitch(h, "switch_1")
	// 0.5 tiles per drive, one redrive every 5 ticks: the first tile takes 5 ticks.
	h.StepNoopN(4)
	requirePos(t, h.Object("package_1"), [2]int{2, 0})
	h.StepNoop()
	requirePos(t, h.Object("package_1"), [2]int{3, 0})

	h.StepNoopN(10)
	requirePos(t, h.Object("package_1"), [2]int{4, 0})

	// Off stops the belt and resets its progress.
	toggleSwitch(h, "switch_1")
	h.StepNoopN(20)
	requirePos(t, h.Object("package_1"), [2]int{4, 0})

	// Next run goes the other way.
	toggleSwitch(h, "switch_1")
	if got := h.Object("switch_1").State; got != "BACKWARD" {
		t.Fatalf("state: got %q want BACKWARD", got)
	}
	h.StepNoopN(5)
	requirePos(t, h.Object("package_1"), [2]int{3, 0})
}

func TestSwitch_BeltRunsObjectsOffTheEnd(t *testing.T) {
	h := NewLayoutHarness(t, "crew")

	toggleSwitch(h, "switch_1")
	h.StepNoopN(60)
	requirePos(t, h.Object("package_1"), [2]int{7, 0})
}

func TestSwitch_OutOfReachRejected(t *testing.T) {
	h := NewLayoutHarness(t, "crew")
	h.SetPlayerPos(mathx.Vec2i{X: -1, Y: -1})

	if code := toggleSwitch(h, "switch_1"); code != protocol.ErrNotEligible {
		t.Fatalf("expected %s, got %s", protocol.ErrNotEligible, code)
	}
	if got := h.Object("switch_1").State; got != "OFF" {
		t.Fatalf("state changed: %q", got)
	}
}

func TestSwitch_AiActivate(t *testing.T) {
	h := NewLayoutHarness(t, "ai")
	h.SetPlayerPos(mathx.Vec2i{X: 30, Y: 30})

	code := h.Interact(protocol.InteractReq{Kind: "AI_ACTIVATE", Target: "switch_1", ClickType: "SHIFT"})
	if code != protocol.ErrNotEligible {
		t.Fatalf("shift click: expected %s, got %s", protocol.ErrNotEligible, code)
	}
	if got := h.Object("switch_1").State; got != "OFF" {
		t.Fatalf("shift click changed state: %q", got)
	}

	if code := h.Interact(protocol.InteractReq{Kind: "AI_ACTIVATE", Target: "switch_1", ClickType: "NORMAL"}); code != "" {
		t.Fatalf("normal click: code=%s", code)
	}
	if got := h.Object("switch_1").State; got != "FORWARD" {
		t.Fatalf("normal click: got %q want FORWARD", got)
	}
}

func TestSwitch_UnknownTargetAndKind(t *testing.T) {
	h := NewLayoutHarness(t, "crew")

	if code := h.Interact(protocol.InteractReq{Kind: "HAND_APPLY", Target: "nope"}); code != protocol.ErrInvalidTarget {
		t.Fatalf("unknown target: got %s", code)
	}
	if code := h.Interact(protocol.InteractReq{Kind: "LICK", Target: "switch_1"}); code != protocol.ErrBadRequest {
		t.Fatalf("unknown kind: got %s", code)
	}
	// No handler for right clicking a switch.
	if code := h.Interact(protocol.InteractReq{Kind: "RIGHT_CLICK", Target: "switch_1"}); code != protocol.ErrInvalidTarget {
		t.Fatalf("no handler: got %s", code)
	}
}

func TestSwitch_DeconstructWithWrench(t *testing.T) {
	h := NewLayoutHarness(t, "crew")

	toggleSwitch(h, "switch_1")
	if code := h.Control(protocol.ControlReq{Type: protocol.ControlPickup, Target: "wrench_1"}); code != "" {
		t.Fatalf("pickup wrench: code=%s", code)
	}
	_ = h.TakeEvents()

	ref := h.NextRef()
	if code := h.Interact(protocol.InteractReq{ID: ref, Kind: "HAND_APPLY", Target: "switch_1"}); code != "" {
		t.Fatalf("deconstruct: code=%s", code)
	}
	if !hasText(h.TakeEvents(), "ACTION_MSG", "You start deconstructing the conveyor belt switch...") {
		t.Fatalf("missing start message")
	}
	st := h.LastState()
	if st.Self.Progress == nil || st.Self.Progress.Kind != "DECONSTRUCT" {
		t.Fatalf("expected DECONSTRUCT progress, got %+v", st.Self.Progress)
	}
	if got := h.Object("switch_1").State; got != "FORWARD" {
		t.Fatalf("switch should keep running while deconstructing, got %q", got)
	}

	// Busy players cannot start other interactions.
	if code := toggleSwitch(h, "switch_1"); code != protocol.ErrBusy {
		t.Fatalf("expected %s while busy, got %s", protocol.ErrBusy, code)
	}

	h.StepNoopN(18)
	if !h.Exists("switch_1") {
		t.Fatalf("switch removed too early")
	}
	h.StepNoop()
	if h.Exists("switch_1") {
		t.Fatalf("switch not removed after deconstruction")
	}
	events := h.TakeEvents()
	if ok, found := progressResult(events, ref); !found || !ok {
		t.Fatalf("progress result: ok=%v found=%v", ok, found)
	}
	if !hasText(events, "ACTION_MSG", "You deconstruct the conveyor belt switch.") {
		t.Fatalf("missing finish message")
	}
	if h.LastState().Self.Progress != nil {
		t.Fatalf("progress not cleared")
	}

	scraps := h.W.DebugObjectsOfKind("METAL")
	if len(scraps) != 1 {
		t.Fatalf("scrap objects: %v", scraps)
	}
	_, snap := h.Snapshot()
	scrap, ok := snapObject(snap, scraps[0])
	if !ok || scrap.Count != 5 || scrap.Pos != [2]int{1, 1} {
		t.Fatalf("scrap: %+v ok=%v", scrap, ok)
	}
	for _, id := range []string{"belt_1", "belt_5"} {
		if got := h.Object(id).State; got != "OFF" {
			t.Fatalf("%s after deconstruct: %q", id, got)
		}
	}

	// Orphaned belts no longer move anything.
	pos := h.Object("package_1").Pos
	h.StepNoopN(20)
	requirePos(t, h.Object("package_1"), pos)
}

func TestSwitch_DeconstructInterruptedByMove(t *testing.T) {
	h := NewLayoutHarness(t, "crew")
	h.Control(protocol.ControlReq{Type: protocol.ControlPickup, Target: "wrench_1"})

	ref := h.NextRef()
	if code := h.Interact(protocol.InteractReq{ID: ref, Kind: "HAND_APPLY", Target: "switch_1"}); code != "" {
		t.Fatalf("deconstruct: code=%s", code)
	}
	h.StepNoopN(5)
	if code := h.Control(protocol.ControlReq{Type: protocol.ControlMove, Dir: [2]int{1, 0}}); code != "" {
		t.Fatalf("move: code=%s", code)
	}
	ok, found := progressResult(h.TakeEvents(), ref)
	if !found || ok {
		t.Fatalf("expected failed progress result, ok=%v found=%v", ok, found)
	}
	h.StepNoopN(30)
	if !h.Exists("switch_1") {
		t.Fatalf("switch removed despite interruption")
	}
}

func TestSwitch_WrongToolNotEligible(t *testing.T) {
	h := NewLayoutHarness(t, "crew")
	h.SetPlayerPos(mathx.Vec2i{X: 1, Y: 2})
	h.Control(protocol.ControlReq{Type: protocol.ControlPickup, Target: "multitool_1"})

	if code := toggleSwitch(h, "switch_1"); code != protocol.ErrNotEligible {
		t.Fatalf("expected %s, got %s", protocol.ErrNotEligible, code)
	}
}

func TestSwitch_DeconstructAuditsOneStateChange(t *testing.T) {
	h := NewLayoutHarness(t, "crew")
	rec := &auditRecorder{}
	h.W.SetAuditLogger(rec)

	toggleSwitch(h, "switch_1")
	if code := h.Control(protocol.ControlReq{Type: protocol.ControlPickup, Target: "wrench_1"}); code != "" {
		t.Fatalf("pickup wrench: code=%s", code)
	}
	if code := h.Interact(protocol.InteractReq{Kind: "HAND_APPLY", Target: "switch_1"}); code != "" {
		t.Fatalf("deconstruct: code=%s", code)
	}
	h.StepNoopN(20)
	if h.Exists("switch_1") {
		t.Fatalf("switch not removed")
	}

	changes := rec.of("SWITCH_STATE", "switch_1")
	if len(changes) != 2 {
		t.Fatalf("state audits: %+v", changes)
	}
	if changes[0].From != "OFF" || changes[0].To != "FORWARD" {
		t.Fatalf("first change: %+v", changes[0])
	}
	if changes[1].From != "FORWARD" || changes[1].To != "OFF" || changes[1].Actor != h.DefaultPlayerID {
		t.Fatalf("second change: %+v", changes[1])
	}
	if got := rec.of("DECONSTRUCT", "switch_1"); len(got) != 1 {
		t.Fatalf("deconstruct audits: %+v", got)
	}
}
