package world

import (
	"sort"

	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/interact"
	"cargohold.ai/internal/sim/mathx"
)

// Progress kinds.
const (
	ProgressDeconstruct = "DECONSTRUCT"
	ProgressUnwrap      = "UNWRAP"
	ProgressAttach      = "ATTACH"
)

// Progress is a timed action a player has to stand still for. At most one per player.
type Progress struct {
	Kind     string
	Req      interact.Request
	StartPos mathx.Vec2i
	DoneTick uint64
}

func progressKey(playerID string) string { return "progress:" + playerID }

func (w *World) startProgress(p *Player, kind string, req interact.Request, ticks int) bool {
	if p == nil || p.Progress != nil {
		return false
	}
	if ticks < 1 {
		ticks = 1
	}
	p.Progress = &Progress{
		Kind:     kind,
		Req:      req,
		StartPos: p.Pos,
		DoneTick: w.now + uint64(ticks),
	}
	w.scheduleProgress(p.ID, ticks)
	return true
}

func (w *World) scheduleProgress(playerID string, ticks int) {
	w.sched.Add(progressKey(playerID), ticks, func(nowTick uint64) { w.finishProgress(playerID, nowTick) })
}

func (w *World) cancelProgress(p *Player, reason string) {
	pr := p.Progress
	if pr == nil {
		return
	}
	p.Progress = nil
	w.sched.Remove(progressKey(p.ID))
	p.AddEvent(progressResult(w.now, pr, false, protocol.ErrBlocked, reason))
}

func (w *World) finishProgress(playerID string, nowTick uint64) {
	w.sched.Remove(progressKey(playerID))
	p := w.players[playerID]
	if p == nil || p.Progress == nil {
		return
	}
	pr := p.Progress
	p.Progress = nil

	if reason := w.progressInterrupted(p, pr); reason != "" {
		p.AddEvent(progressResult(nowTick, pr, false, protocol.ErrBlocked, reason))
		return
	}
	w.completeProgress(p, pr)
	p.AddEvent(progressResult(nowTick, pr, true, "", ""))
}

func (w *World) progressInterrupted(p *Player, pr *Progress) string {
	if p.Pos != pr.StartPos {
		return "moved"
	}
	if t := pr.Req.Target; t != "" && w.objects[t] == nil && w.players[t] == nil {
		return "target gone"
	}
	if h := pr.Req.HandObject; h != "" {
		if o := w.objects[h]; o == nil || o.Holder != p.ID {
			return "tool gone"
		}
	}
	return ""
}

func (w *World) completeProgress(p *Player, pr *Progress) {
	switch pr.Kind {
	case ProgressDeconstruct:
		w.finishDeconstruct(p, w.objects[pr.Req.Target])
	case ProgressUnwrap:
		w.finishUnwrap(p, w.objects[pr.Req.Target])
	case ProgressAttach:
		w.finishAttach(p, pr.Req)
	}
}

// restoreProgress re-registers persisted progress actions.
func (w *World) restoreProgress(nowTick uint64) {
	ids := make([]string, 0, len(w.players))
	for id, p := range w.players {
		if p.Progress != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		pr := w.players[id].Progress
		remaining := 1
		if pr.DoneTick > nowTick {
			remaining = int(pr.DoneTick - nowTick)
		}
		w.scheduleProgress(id, remaining)
	}
}

func progressResult(tick uint64, pr *Progress, ok bool, code, message string) protocol.Event {
	e := protocol.Event{
		"t":    tick,
		"type": "PROGRESS_RESULT",
		"ref":  pr.Req.ID,
		"kind": pr.Kind,
		"ok":   ok,
	}
	if code != "" {
		e["code"] = code
	}
	if message != "" {
		e["message"] = message
	}
	return e
}
