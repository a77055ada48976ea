package worldtest

import (
	"testing"

	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/mathx"
	world "cargohold.ai/internal/sim/world"
)

func pickup(t *testing.T, h *Harness, id string) {
	t.Helper()
	if code := h.Control(protocol.ControlReq{Type: protocol.ControlPickup, Target: id}); code != "" {
		t.Fatalf("pickup %s: code=%s", id, code)
	}
}

// attachC4 sticks the held c4_1 onto target and waits for the timed action.
func attachC4(t *testing.T, h *Harness, target string, pos *[2]int) {
	t.Helper()
	ref := h.NextRef()
	code := h.Interact(protocol.InteractReq{ID: ref, Kind: "POSITIONAL_HAND_APPLY", Target: target, TargetPos: pos})
	if code != "" {
		t.Fatalf("attach: code=%s", code)
	}
	h.StepNoopN(30)
	if ok, found := progressResult(h.TakeEvents(), ref); !found || !ok {
		t.Fatalf("attach progress: ok=%v found=%v", ok, found)
	}
}

func TestExplosive_AttachLinkArmAndSignal(t *testing.T) {
	h := NewLayoutHarness(t, "saboteur")
	h.SetPlayerPos(mathx.Vec2i{X: -1, Y: 1})
	pickup(t, h, "c4_1")

	code := h.Interact(protocol.InteractReq{Kind: "POSITIONAL_HAND_APPLY", Target: "locker_1"})
	if code != protocol.ErrNotEligible {
		t.Fatalf("help intent: expected %s, got %s", protocol.ErrNotEligible, code)
	}
	if !hasText(h.TakeEvents(), "EXAMINE", "You must be on harm intent to attach the C-4.") {
		t.Fatalf("missing intent examine")
	}

	h.Control(intentHarm())
	attachC4(t, h, "locker_1", nil)

	c4 := h.Object("c4_1")
	if c4.Holder != "" || c4.Pos != [2]int{-2, 2} {
		t.Fatalf("c4 after attach: %+v", c4)
	}
	if c4.State != "ATTACHED" || c4.Scale != 0.6 {
		t.Fatalf("c4 attach state: %+v", c4)
	}
	if len(c4.Options) != 1 || c4.Options[0] != "Deattach" {
		t.Fatalf("options: %v", c4.Options)
	}
	if code := h.Control(protocol.ControlReq{Type: protocol.ControlPickup, Target: "c4_1"}); code != protocol.ErrNotEligible {
		t.Fatalf("attached pickup: expected %s, got %s", protocol.ErrNotEligible, code)
	}

	pickup(t, h, "signaler_1")
	if code := h.Interact(protocol.InteractReq{Kind: "HAND_APPLY", Target: "c4_1"}); code != "" {
		t.Fatalf("link emitter: code=%s", code)
	}
	if !hasText(h.TakeEvents(), "EXAMINE", "You link the remote signaling device to the C-4.") {
		t.Fatalf("missing link examine")
	}

	h.Control(protocol.ControlReq{Type: protocol.ControlSwapHand})
	if code := h.Interact(protocol.InteractReq{Kind: "HAND_APPLY", Target: "c4_1"}); code != "" {
		t.Fatalf("arm: code=%s", code)
	}
	events := h.TakeEvents()
	if !hasText(events, "EXAMINE", "You arm the C-4.") {
		t.Fatalf("missing arm examine")
	}
	if !hasEvent(events, "SOUND", func(e protocol.Event) bool { return e["sound"] == "TIMER_BEEP" }) {
		t.Fatalf("missing beep")
	}
	c4 = h.Object("c4_1")
	if c4.State != "ARMED" || c4.HoverTip != "It appears to be armed!" || len(c4.Hints) != 0 {
		t.Fatalf("armed c4: %+v", c4)
	}

	h.Control(protocol.ControlReq{Type: protocol.ControlSwapHand})
	if code := h.Interact(protocol.InteractReq{Kind: "HAND_ACTIVATE"}); code != "" {
		t.Fatalf("signal: code=%s", code)
	}
	if h.Exists("c4_1") {
		t.Fatalf("c4 survived the signal")
	}
	if !hasEvent(h.TakeEvents(), "EXPLOSION", func(e protocol.Event) bool { return e["source"] == "c4_1" }) {
		t.Fatalf("missing explosion")
	}
	if !h.Exists("signaler_1") {
		t.Fatalf("emitter should survive")
	}
}

func TestExplosive_TimerDetonation(t *testing.T) {
	h := NewLayoutHarness(t, "saboteur")
	pickup(t, h, "c4_1")
	h.Control(intentHarm())
	attachC4(t, h, "", &[2]int{1, -1})

	c4 := h.Object("c4_1")
	if c4.Pos != [2]int{1, -1} || c4.State != "ATTACHED" {
		t.Fatalf("floor attach: %+v", c4)
	}

	if code := h.Interact(protocol.InteractReq{Kind: "HAND_APPLY", Target: "c4_1"}); code != "" {
		t.Fatalf("arm: code=%s", code)
	}
	h.StepNoopN(99)
	if !h.Exists("c4_1") {
		t.Fatalf("detonated early")
	}
	h.StepNoop()
	if h.Exists("c4_1") {
		t.Fatalf("timer did not detonate")
	}
	if !hasEvent(h.TakeEvents(), "EXPLOSION", nil) {
		t.Fatalf("missing explosion")
	}
}

func TestExplosive_BadSpotKeepsItInHand(t *testing.T) {
	h := NewLayoutHarness(t, "saboteur")
	pickup(t, h, "c4_1")
	h.Control(intentHarm())

	attachC4(t, h, "wrench_1", nil)
	if got := h.Object("c4_1").Holder; got != h.DefaultPlayerID {
		t.Fatalf("c4 left the hand: holder=%q", got)
	}
	if !hasText(h.TakeEvents(), "EXAMINE", "The wrench isn't a good spot to arm the explosive on..") {
		t.Fatalf("missing bad spot examine")
	}
}

func TestExplosive_ArmedInHandCannotAttach(t *testing.T) {
	h := NewLayoutHarness(t, "saboteur")
	pickup(t, h, "c4_1")
	h.Control(intentHarm())

	if code := h.Interact(protocol.InteractReq{Kind: "HAND_ACTIVATE"}); code != "" {
		t.Fatalf("arm in hand: code=%s", code)
	}
	_ = h.TakeEvents()
	code := h.Interact(protocol.InteractReq{Kind: "POSITIONAL_HAND_APPLY", TargetPos: &[2]int{1, -1}})
	if code != protocol.ErrNotEligible {
		t.Fatalf("expected %s, got %s", protocol.ErrNotEligible, code)
	}
	if !hasText(h.TakeEvents(), "EXAMINE", "The C-4 is already armed!") {
		t.Fatalf("missing armed examine")
	}
}

func TestExplosive_Deattach(t *testing.T) {
	h := NewLayoutHarness(t, "saboteur")
	h.SetPlayerPos(mathx.Vec2i{X: -1, Y: 1})
	pickup(t, h, "c4_1")
	h.Control(intentHarm())
	attachC4(t, h, "locker_1", nil)

	if code := h.Interact(protocol.InteractReq{Kind: "RIGHT_CLICK", Target: "c4_1", Option: "Examine"}); code != protocol.ErrNotEligible {
		t.Fatalf("other option: expected %s, got %s", protocol.ErrNotEligible, code)
	}
	if code := h.Interact(protocol.InteractReq{Kind: "RIGHT_CLICK", Target: "c4_1", Option: "Deattach"}); code != "" {
		t.Fatalf("deattach: code=%s", code)
	}
	c4 := h.Object("c4_1")
	if c4.State != "" || c4.Scale != 1 || len(c4.Options) != 0 {
		t.Fatalf("deattached c4: %+v", c4)
	}
	pickup(t, h, "c4_1")
}

func TestExplosive_RidesMovingTarget(t *testing.T) {
	w, err := world.New(DefaultConfig())
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	err = w.ApplyLayout(world.Layout{
		Belts: []world.LayoutBelt{
			{ID: "b1", Pos: [2]int{1, 0}, Dir: [2]int{1, 0}},
			{ID: "b2", Pos: [2]int{2, 0}, Dir: [2]int{1, 0}},
		},
		Switches: []world.LayoutSwitch{{ID: "s", Pos: [2]int{0, 1}, Belts: []string{"b1", "b2"}}},
		Objects: []world.LayoutObject{
			{ID: "locker", Kind: "locker", Pos: [2]int{1, 0}},
			{ID: "c4_1", Kind: "explosive", Pos: [2]int{0, 0}},
		},
	})
	if err != nil {
		t.Fatalf("ApplyLayout: %v", err)
	}
	h := NewHarnessWithWorld(t, w, "saboteur")
	pickup(t, h, "c4_1")
	h.Control(intentHarm())
	attachC4(t, h, "locker", nil)
	requirePos(t, h.Object("c4_1"), [2]int{1, 0})

	toggleSwitch(h, "s")
	h.StepNoopN(5)
	requirePos(t, h.Object("locker"), [2]int{2, 0})
	requirePos(t, h.Object("c4_1"), [2]int{2, 0})
}

func TestExplosive_AttachToPlayerFollowsThem(t *testing.T) {
	w, err := world.New(DefaultConfig())
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	err = w.ApplyLayout(world.Layout{
		Objects: []world.LayoutObject{{ID: "c4_1", Kind: "explosive", Pos: [2]int{0, 0}}},
	})
	if err != nil {
		t.Fatalf("ApplyLayout: %v", err)
	}
	h := NewHarnessWithWorld(t, w, "saboteur")
	victim := h.Join("victim")
	h.SetPlayerPos(mathx.Vec2i{})
	h.SetPlayerPosFor(victim, mathx.Vec2i{X: 1, Y: 0})
	pickup(t, h, "c4_1")
	h.Control(intentHarm())

	self := protocol.InteractReq{Kind: "POSITIONAL_HAND_APPLY", Target: h.DefaultPlayerID}
	if code := h.Interact(self); code != protocol.ErrNotEligible {
		t.Fatalf("attach to self: expected %s, got %s", protocol.ErrNotEligible, code)
	}

	attachC4(t, h, victim, nil)
	c4 := h.Object("c4_1")
	if c4.Holder != "" || c4.Pos != [2]int{1, 0} || c4.State != "ATTACHED" {
		t.Fatalf("c4 on player: %+v", c4)
	}

	h.SetPlayerPosFor(victim, mathx.Vec2i{X: 3, Y: 2})
	h.StepNoopN(2)
	requirePos(t, h.Object("c4_1"), [2]int{3, 2})
}
