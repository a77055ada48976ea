package world

import (
	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/interact"
	"cargohold.ai/internal/sim/mathx"
)

func (w *World) applyControl(p *Player, c protocol.ControlReq, nowTick uint64) {
	switch c.Type {
	case protocol.ControlMove:
		w.controlMove(p, c, nowTick)
	case protocol.ControlIntent:
		in := interact.Intent(c.Intent)
		if !in.Valid() {
			p.AddEvent(actionResult(nowTick, c.ID, false, protocol.ErrBadRequest, "bad intent"))
			return
		}
		p.Intent = in
		p.AddEvent(actionResult(nowTick, c.ID, true, "", ""))
	case protocol.ControlPickup:
		w.controlPickup(p, c, nowTick)
	case protocol.ControlDrop:
		hand := p.HandObject()
		o := w.objects[hand]
		if o == nil {
			p.AddEvent(actionResult(nowTick, c.ID, false, protocol.ErrInvalidTarget, "hand empty"))
			return
		}
		w.dropFromSlot(o, p.Pos)
		p.AddEvent(actionResult(nowTick, c.ID, true, "", ""))
	case protocol.ControlSwapHand:
		p.ActiveHand = p.otherHand()
		p.AddEvent(actionResult(nowTick, c.ID, true, "", ""))
	case protocol.ControlCancel:
		if p.Progress == nil {
			p.AddEvent(actionResult(nowTick, c.ID, false, protocol.ErrInvalidTarget, "nothing to cancel"))
			return
		}
		w.cancelProgress(p, "canceled")
		p.AddEvent(actionResult(nowTick, c.ID, true, "", ""))
	default:
		p.AddEvent(actionResult(nowTick, c.ID, false, protocol.ErrBadRequest, "unknown control type"))
	}
}

func (w *World) controlMove(p *Player, c protocol.ControlReq, nowTick uint64) {
	d := mathx.Vec2i{X: clampUnit(c.Dir[0]), Y: clampUnit(c.Dir[1])}
	if d.IsZero() {
		p.AddEvent(actionResult(nowTick, c.ID, false, protocol.ErrBadRequest, "zero move"))
		return
	}
	to := p.Pos.Add(d)
	if w.doorAt(to) {
		p.AddEvent(actionResult(nowTick, c.ID, false, protocol.ErrBlocked, "door in the way"))
		return
	}
	if p.Progress != nil {
		w.cancelProgress(p, "moved")
	}
	p.Pos = to
	for _, id := range p.Slots {
		if o := w.objects[id]; o != nil {
			o.Pos = to
		}
	}
	p.AddEvent(actionResult(nowTick, c.ID, true, "", ""))
}

func (w *World) controlPickup(p *Player, c protocol.ControlReq, nowTick uint64) {
	o := w.objects[c.Target]
	if o == nil || !o.Visible {
		p.AddEvent(actionResult(nowTick, c.ID, false, protocol.ErrInvalidTarget, "no such object"))
		return
	}
	if o.held() || !o.canPickup() {
		p.AddEvent(actionResult(nowTick, c.ID, false, protocol.ErrNotEligible, "cannot pick that up"))
		return
	}
	if mathx.Chebyshev(p.Pos, o.Pos) > w.cfg.InteractRange {
		p.AddEvent(actionResult(nowTick, c.ID, false, protocol.ErrBlocked, "too far"))
		return
	}
	if p.HandObject() != "" {
		p.AddEvent(actionResult(nowTick, c.ID, false, protocol.ErrBlocked, "hand full"))
		return
	}
	w.putInSlot(p, p.ActiveHand, o)
	p.AddEvent(actionResult(nowTick, c.ID, true, "", ""))
}

func clampUnit(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
