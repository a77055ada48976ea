package worldtest

import (
	"testing"

	"cargohold.ai/internal/persistence/snapshot"
	"cargohold.ai/internal/protocol"
	world "cargohold.ai/internal/sim/world"
)

func hasEvent(events []protocol.Event, typ string, match func(protocol.Event) bool) bool {
	for _, e := range events {
		if t, _ := e["type"].(string); t != typ {
			continue
		}
		if match == nil || match(e) {
			return true
		}
	}
	return false
}

func hasText(events []protocol.Event, typ, text string) bool {
	return hasEvent(events, typ, func(e protocol.Event) bool {
		s, _ := e["text"].(string)
		return s == text
	})
}

func progressResult(events []protocol.Event, ref string) (ok bool, found bool) {
	for _, e := range events {
		if t, _ := e["type"].(string); t != "PROGRESS_RESULT" {
			continue
		}
		if got, _ := e["ref"].(string); got != ref {
			continue
		}
		ok, _ = e["ok"].(bool)
		return ok, true
	}
	return false, false
}

func objectInState(st protocol.StateMsg, id string) (protocol.ObjectObs, bool) {
	for _, o := range st.Objects {
		if o.ID == id {
			return o, true
		}
	}
	return protocol.ObjectObs{}, false
}

func snapObject(snap snapshot.SnapshotV1, id string) (snapshot.ObjectV1, bool) {
	for _, o := range snap.Objects {
		if o.ID == id {
			return o, true
		}
	}
	return snapshot.ObjectV1{}, false
}

func requirePos(t *testing.T, o protocol.ObjectObs, want [2]int) {
	t.Helper()
	if o.Pos != want {
		t.Fatalf("%s pos: got %v want %v", o.ID, o.Pos, want)
	}
}

func intentHarm() protocol.ControlReq {
	return protocol.ControlReq{Type: protocol.ControlIntent, Intent: "HARM"}
}

type auditRecorder struct {
	entries []world.AuditEntry
}

func (r *auditRecorder) WriteAudit(e world.AuditEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *auditRecorder) of(action, objectID string) []world.AuditEntry {
	var out []world.AuditEntry
	for _, e := range r.entries {
		if e.Action == action && e.ObjectID == objectID {
			out = append(out, e)
		}
	}
	return out
}

func snapBelt(snap snapshot.SnapshotV1, id string) (snapshot.BeltV1, bool) {
	for _, b := range snap.Belts {
		if b.ID == id {
			return b, true
		}
	}
	return snapshot.BeltV1{}, false
}
