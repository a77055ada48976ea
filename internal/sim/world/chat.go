package world

import (
	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/mathx"
)

// examine sends a message only the performer sees.
func (w *World) examine(playerID, text string) {
	p := w.players[playerID]
	if p == nil || text == "" {
		return
	}
	p.AddEvent(protocol.Event{
		"t":    w.now,
		"type": "EXAMINE",
		"text": text,
	})
}

// actionMessage tells the performer selfText and everyone within chat range othersText.
func (w *World) actionMessage(playerID, selfText, othersText string) {
	from := w.players[playerID]
	if from == nil {
		return
	}
	for _, p := range w.sortedPlayers() {
		text := othersText
		if p.ID == from.ID {
			text = selfText
		} else if mathx.Chebyshev(p.Pos, from.Pos) > w.cfg.ChatRange {
			continue
		}
		if text == "" {
			continue
		}
		p.AddEvent(protocol.Event{
			"t":    w.now,
			"type": "ACTION_MSG",
			"from": from.ID,
			"text": text,
		})
	}
}

func (w *World) playSound(sound string, pos mathx.Vec2i) {
	for _, p := range w.sortedPlayers() {
		if mathx.Chebyshev(p.Pos, pos) > w.cfg.ChatRange {
			continue
		}
		p.AddEvent(protocol.Event{
			"t":     w.now,
			"type":  "SOUND",
			"sound": sound,
			"pos":   pos.ToArray(),
		})
	}
}

func (w *World) broadcastExplosion(source string, pos mathx.Vec2i, strength int) {
	for _, p := range w.sortedPlayers() {
		p.AddEvent(protocol.Event{
			"t":        w.now,
			"type":     "EXPLOSION",
			"source":   source,
			"pos":      pos.ToArray(),
			"strength": strength,
		})
	}
}

func (w *World) audit(actor, action string, o *Object, from, to, reason string) {
	if w.auditLogger == nil || o == nil {
		return
	}
	if actor == "" {
		actor = "WORLD"
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{
		Tick:     w.now,
		Actor:    actor,
		Action:   action,
		ObjectID: o.ID,
		Pos:      w.objectPos(o).ToArray(),
		From:     from,
		To:       to,
		Reason:   reason,
	})
}
