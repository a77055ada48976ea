package world

import (
	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/mathx"
)

// Debug helpers are for tests and must only be called while the world loop is not running.

func (w *World) DebugSetPlayerPos(playerID string, pos mathx.Vec2i) bool {
	p := w.players[playerID]
	if p == nil {
		return false
	}
	p.Pos = pos
	return true
}

// DebugGive puts an existing object into the player's active hand.
func (w *World) DebugGive(playerID, objectID string) bool {
	p := w.players[playerID]
	o := w.objects[objectID]
	if p == nil || o == nil {
		return false
	}
	return w.putInSlot(p, p.ActiveHand, o)
}

func (w *World) DebugSpawn(id, kind string, pos mathx.Vec2i) string {
	return w.spawnObject(id, kind, pos).ID
}

// DebugObject returns the client view of an object regardless of range.
func (w *World) DebugObject(id string) (protocol.ObjectObs, bool) {
	o := w.objects[id]
	if o == nil {
		return protocol.ObjectObs{}, false
	}
	return w.objectObs(o), true
}

func (w *World) DebugObjectsOfKind(kind string) []string {
	var out []string
	for _, o := range w.sortedObjects() {
		if o.Kind == kind {
			out = append(out, o.ID)
		}
	}
	return out
}

func (w *World) DebugClearPlayerEvents(playerID string) bool {
	p := w.players[playerID]
	if p == nil {
		return false
	}
	p.Events = nil
	return true
}

func (w *World) DebugStateDigest(nowTick uint64) string {
	return w.stateDigest(nowTick)
}

// DebugAttach resumes a session by token as the world loop would.
func (w *World) DebugAttach(token string) (protocol.WelcomeMsg, bool) {
	resp := make(chan JoinResponse, 1)
	w.handleAttach(AttachRequest{ResumeToken: token, Out: make(chan []byte, 1), Resp: resp})
	r := <-resp
	return r.Welcome, r.Welcome.PlayerID != ""
}
