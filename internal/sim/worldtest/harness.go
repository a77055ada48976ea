package worldtest

import (
	"encoding/json"
	"strconv"
	"testing"

	"cargohold.ai/internal/persistence/snapshot"
	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/mathx"
	"cargohold.ai/internal/sim/tuning"
	world "cargohold.ai/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Join() issues JoinRequest via StepOnce()
// - Step()/StepFor() issues ACT via StepOnce()
// - Per-player Out channels carry STATE JSON
// - ExportSnapshot/Debug* helpers provide deterministic preconditions
//
// Events from every STATE since the last TakeEvents are kept, so results of timed actions
// can be checked after stepping past them.
type Harness struct {
	T *testing.T
	W *world.World

	DefaultPlayerID string

	sessions map[string]*session
	order    []string
	seq      int
}

type session struct {
	PlayerID  string
	Out       chan []byte
	lastState protocol.StateMsg
	events    []protocol.Event
}

// DefaultConfig is the world config built from default tuning.
func DefaultConfig() world.WorldConfig {
	return world.ConfigFromTuning("test", tuning.Defaults())
}

func NewHarness(t *testing.T, cfg world.WorldConfig, playerName string) *Harness {
	t.Helper()

	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w, playerName)
}

// NewHarnessWithWorld is like NewHarness, but uses an already-constructed world instance.
// This is useful for layouts and snapshot imports that must happen before the first join.
func NewHarnessWithWorld(t *testing.T, w *world.World, playerName string) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}

	h := &Harness{
		T:        t,
		W:        w,
		sessions: map[string]*session{},
	}
	h.DefaultPlayerID = h.Join(playerName)
	return h
}

// NewLayoutHarness builds a world from the repo's starting layout.
func NewLayoutHarness(t *testing.T, playerName string) *Harness {
	t.Helper()
	w, err := world.New(DefaultConfig())
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	l, err := world.LoadLayout("../../../configs/layout.yaml")
	if err != nil {
		t.Fatalf("LoadLayout: %v", err)
	}
	if err := w.ApplyLayout(l); err != nil {
		t.Fatalf("ApplyLayout: %v", err)
	}
	return NewHarnessWithWorld(t, w, playerName)
}

func (h *Harness) Join(playerName string) string {
	h.T.Helper()

	out := make(chan []byte, 16)
	resp := make(chan world.JoinResponse, 1)
	_, _ = h.W.StepOnce([]world.JoinRequest{{
		Name: playerName,
		Out:  out,
		Resp: resp,
	}}, nil, nil)
	jr := <-resp
	if jr.Welcome.PlayerID == "" {
		h.T.Fatalf("join returned empty player id")
	}
	s := &session{PlayerID: jr.Welcome.PlayerID, Out: out}
	h.sessions[s.PlayerID] = s
	h.order = append(h.order, s.PlayerID)
	h.drainAllStates()
	h.TakeEventsFor(s.PlayerID)
	return s.PlayerID
}

func (h *Harness) LastState() protocol.StateMsg {
	return h.LastStateFor(h.DefaultPlayerID)
}

func (h *Harness) LastStateFor(playerID string) protocol.StateMsg {
	h.T.Helper()
	return h.session(playerID).lastState
}

// TakeEvents returns and forgets the events collected for the default player.
func (h *Harness) TakeEvents() []protocol.Event {
	return h.TakeEventsFor(h.DefaultPlayerID)
}

func (h *Harness) TakeEventsFor(playerID string) []protocol.Event {
	h.T.Helper()
	s := h.session(playerID)
	out := s.events
	s.events = nil
	return out
}

// NextRef returns a fresh request id.
func (h *Harness) NextRef() string {
	h.seq++
	return "r" + strconv.Itoa(h.seq)
}

func (h *Harness) Step(controls []protocol.ControlReq, interactions []protocol.InteractReq) protocol.StateMsg {
	return h.StepFor(h.DefaultPlayerID, controls, interactions)
}

func (h *Harness) StepFor(playerID string, controls []protocol.ControlReq, interactions []protocol.InteractReq) protocol.StateMsg {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, nil, []world.ActionEnvelope{h.envelope(playerID, h.W.CurrentTick(), controls, interactions)})
	h.drainAllStates()
	return h.LastStateFor(playerID)
}

// StepAt sends an ACT stamped with tick instead of the current one.
func (h *Harness) StepAt(tick uint64, controls []protocol.ControlReq, interactions []protocol.InteractReq) protocol.StateMsg {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, nil, []world.ActionEnvelope{h.envelope(h.DefaultPlayerID, tick, controls, interactions)})
	h.drainAllStates()
	return h.LastState()
}

func (h *Harness) StepMulti(actions []world.ActionEnvelope) {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, nil, actions)
	h.drainAllStates()
}

func (h *Harness) StepNoop() protocol.StateMsg {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, nil, nil)
	h.drainAllStates()
	return h.LastState()
}

func (h *Harness) StepNoopN(n int) protocol.StateMsg {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.StepNoop()
	}
	return h.LastState()
}

// Interact sends a single interaction and returns its ACTION_RESULT code ("" on success).
func (h *Harness) Interact(in protocol.InteractReq) string {
	h.T.Helper()
	if in.ID == "" {
		in.ID = h.NextRef()
	}
	h.Step(nil, []protocol.InteractReq{in})
	return actionResultCode(h.session(h.DefaultPlayerID).events, in.ID)
}

// Control sends a single control and returns its ACTION_RESULT code ("" on success).
func (h *Harness) Control(c protocol.ControlReq) string {
	h.T.Helper()
	if c.ID == "" {
		c.ID = h.NextRef()
	}
	h.Step([]protocol.ControlReq{c}, nil)
	return actionResultCode(h.session(h.DefaultPlayerID).events, c.ID)
}

func (h *Harness) Snapshot() (tick uint64, snap snapshot.SnapshotV1) {
	h.T.Helper()
	// Keep tick stable: export at currentTick-1 then import would restore to currentTick.
	cur := h.W.CurrentTick()
	if cur == 0 {
		return 0, h.W.ExportSnapshot(0)
	}
	tick = cur - 1
	return tick, h.W.ExportSnapshot(tick)
}

func (h *Harness) SetPlayerPos(pos mathx.Vec2i) {
	h.SetPlayerPosFor(h.DefaultPlayerID, pos)
}

func (h *Harness) SetPlayerPosFor(playerID string, pos mathx.Vec2i) {
	h.T.Helper()
	if ok := h.W.DebugSetPlayerPos(playerID, pos); !ok {
		h.T.Fatalf("DebugSetPlayerPos returned false")
	}
}

func (h *Harness) Give(objectID string) {
	h.GiveTo(h.DefaultPlayerID, objectID)
}

func (h *Harness) GiveTo(playerID, objectID string) {
	h.T.Helper()
	if ok := h.W.DebugGive(playerID, objectID); !ok {
		h.T.Fatalf("DebugGive(%s, %s) returned false", playerID, objectID)
	}
}

func (h *Harness) Object(id string) protocol.ObjectObs {
	h.T.Helper()
	o, ok := h.W.DebugObject(id)
	if !ok {
		h.T.Fatalf("object %q not found", id)
	}
	return o
}

func (h *Harness) Exists(id string) bool {
	_, ok := h.W.DebugObject(id)
	return ok
}

func (h *Harness) session(playerID string) *session {
	h.T.Helper()
	s := h.sessions[playerID]
	if s == nil {
		h.T.Fatalf("unknown player id: %q", playerID)
	}
	return s
}

func (h *Harness) envelope(playerID string, tick uint64, controls []protocol.ControlReq, interactions []protocol.InteractReq) world.ActionEnvelope {
	return world.ActionEnvelope{
		PlayerID: playerID,
		Act: protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			Tick:            tick,
			PlayerID:        playerID,
			Controls:        controls,
			Interactions:    interactions,
		},
	}
}

func (h *Harness) drainAllStates() {
	h.T.Helper()
	for _, id := range h.order {
		h.drainOneState(h.sessions[id])
	}
}

func (h *Harness) drainOneState(s *session) {
	h.T.Helper()
	for {
		select {
		case b := <-s.Out:
			var st protocol.StateMsg
			if err := json.Unmarshal(b, &st); err != nil {
				h.T.Fatalf("unmarshal STATE: %v", err)
			}
			s.lastState = st
			s.events = append(s.events, st.Events...)
			continue
		default:
		}
		return
	}
}

// actionResultCode finds the ACTION_RESULT for ref; "" means ok and E_INTERNAL means missing.
func actionResultCode(events []protocol.Event, ref string) string {
	for _, e := range events {
		if typ, _ := e["type"].(string); typ != "ACTION_RESULT" {
			continue
		}
		if got, _ := e["ref"].(string); got != ref {
			continue
		}
		if ok, _ := e["ok"].(bool); ok {
			return ""
		}
		if code, _ := e["code"].(string); code != "" {
			return code
		}
		return protocol.ErrInternal
	}
	return protocol.ErrInternal
}
