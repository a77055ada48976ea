package world

import (
	"cargohold.ai/internal/sim/cargo"
	"cargohold.ai/internal/sim/conveyor"
	"cargohold.ai/internal/sim/explosive"
	"cargohold.ai/internal/sim/mathx"
)

// simEnv is the world as seen by components. It is only used on the world loop goroutine.
type simEnv struct {
	w *World
}

var (
	_ conveyor.Mover = simEnv{}
	_ cargo.Env      = simEnv{}
	_ explosive.Env  = simEnv{}
)

func (w *World) env() simEnv { return simEnv{w: w} }

func (e simEnv) Name(id string) string {
	if o := e.w.objects[id]; o != nil {
		return o.Name
	}
	if p := e.w.players[id]; p != nil {
		return p.Name
	}
	return "floor"
}

func (e simEnv) PerformerName(playerID string) string {
	if p := e.w.players[playerID]; p != nil {
		return p.Name
	}
	return "Someone"
}

func (e simEnv) Exists(id string) bool { return e.w.objects[id] != nil }

// ObjectPos also resolves player ids, so explosives can ride on players.
func (e simEnv) ObjectPos(id string) (mathx.Vec2i, bool) {
	if o := e.w.objects[id]; o != nil {
		return e.w.objectPos(o), true
	}
	if p := e.w.players[id]; p != nil {
		return p.Pos, true
	}
	return mathx.Vec2i{}, false
}

func (e simEnv) SlotOf(id string) (holder, slot string, ok bool) {
	o := e.w.objects[id]
	if o == nil || !o.held() {
		return "", "", false
	}
	return o.Holder, o.Slot, true
}

func (e simEnv) HasPhysics(id string) bool {
	if o := e.w.objects[id]; o != nil {
		return o.Physics
	}
	return e.w.players[id] != nil
}

func (e simEnv) IsSignalEmitter(id string) bool {
	o := e.w.objects[id]
	return o != nil && o.Emitter
}

func (e simEnv) AttachBlockedAt(pos mathx.Vec2i) bool {
	for _, o := range e.w.objectsAt(pos) {
		if o.Door || o.canPickup() {
			return true
		}
	}
	return false
}

func (e simEnv) SpawnHidden(kind string, pos mathx.Vec2i) string {
	o := e.w.spawnObject("", kind, pos)
	o.Visible = false
	return o.ID
}

func (e simEnv) Despawn(id string) { e.w.despawn(id) }

func (e simEnv) SetVisible(id string, visible bool) {
	if o := e.w.objects[id]; o != nil {
		o.Visible = visible
	}
}

func (e simEnv) PlaceAt(id string, pos mathx.Vec2i) {
	if o := e.w.objects[id]; o != nil {
		e.w.releaseFromSlot(o)
		o.Pos = pos
	}
}

func (e simEnv) PutInSlot(holder, slot, id string) bool {
	return e.w.putInSlot(e.w.players[holder], slot, e.w.objects[id])
}

func (e simEnv) Drop(id string, pos mathx.Vec2i) {
	if o := e.w.objects[id]; o != nil {
		e.w.dropFromSlot(o, pos)
	}
}

func (e simEnv) Teleport(id string, pos mathx.Vec2i) {
	if o := e.w.objects[id]; o != nil && !o.held() {
		o.Pos = pos
	}
}

func (e simEnv) PlaySound(sound string, pos mathx.Vec2i) { e.w.playSound(sound, pos) }

func (e simEnv) Examine(playerID, text string) { e.w.examine(playerID, text) }

func (e simEnv) ActionMessage(playerID, selfText, othersText string) {
	e.w.actionMessage(playerID, selfText, othersText)
}

func (e simEnv) Explode(id string, pos mathx.Vec2i, strength int) {
	e.w.audit("WORLD", "DETONATE", e.w.objects[id], "", "", "")
	e.w.broadcastExplosion(id, pos, strength)
}

// MovableAt lists objects a belt can carry: loose, visible, pushable and not already carried
// this tick.
func (e simEnv) MovableAt(pos mathx.Vec2i) []string {
	var out []string
	for _, o := range e.w.objectsAt(pos) {
		if o.Belt != nil || o.Switch != nil || !o.canPush() || e.w.beltMoved[o.ID] {
			continue
		}
		out = append(out, o.ID)
	}
	return out
}

func (e simEnv) MoveObject(id string, to mathx.Vec2i) bool {
	o := e.w.objects[id]
	if o == nil || o.held() || e.w.beltMoved[id] || e.w.doorAt(to) {
		return false
	}
	o.Pos = to
	e.w.beltMoved[id] = true
	return true
}
