package world

import (
	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/interact"
	"cargohold.ai/internal/sim/mathx"
)

func (w *World) registerInteractions() {
	t := w.interactions

	t.Register(interact.HandApply, KindSwitch, interact.Handler{Will: w.switchWillHandApply, Perform: w.switchHandApply})
	t.Register(interact.AiActivate, KindSwitch, interact.Handler{Will: switchWillAiActivate, Perform: w.switchToggle})
	t.Register(interact.MultitoolLink, KindSwitch, interact.Handler{Will: w.switchWillLink, Perform: w.switchLink})

	t.Register(interact.HandApply, KindPackage, interact.Handler{Will: w.packageWillHandApply, Perform: w.packageStartUnwrap})
	t.Register(interact.InventoryApply, KindPackage, interact.Handler{Will: w.packageWillInventoryApply, Perform: w.packageStartUnwrap})

	t.Register(interact.PositionalHandApply, KindExplosive, interact.Handler{Will: w.explosiveWillAttach, Perform: w.explosiveStartAttach})
	t.Register(interact.HandApply, KindExplosive, interact.Handler{Will: w.explosiveWillHandApply, Perform: w.explosiveHandApply})
	t.Register(interact.HandActivate, KindExplosive, interact.Handler{Perform: w.explosiveHandActivate})
	t.Register(interact.RightClick, KindExplosive, interact.Handler{Will: w.explosiveWillRightClick, Perform: w.explosiveDeattach})

	t.Register(interact.HandActivate, KindEmitter, interact.Handler{Perform: w.emitterActivate})
}

func (w *World) applyInteraction(p *Player, in protocol.InteractReq, nowTick uint64) {
	kind := interact.Kind(in.Kind)
	if !kind.Valid() {
		p.AddEvent(actionResult(nowTick, in.ID, false, protocol.ErrBadRequest, "unknown interaction kind"))
		return
	}
	// Timed actions are exclusive; the player has to finish or cancel first.
	if p.Progress != nil {
		p.AddEvent(actionResult(nowTick, in.ID, false, protocol.ErrBusy, "busy with "+p.Progress.Kind))
		return
	}
	req, code, msg := w.buildRequest(p, kind, in)
	if code != "" {
		p.AddEvent(actionResult(nowTick, in.ID, false, code, msg))
		return
	}

	switch w.interactions.Dispatch(req) {
	case interact.Performed:
		p.AddEvent(actionResult(nowTick, in.ID, true, "", ""))
	case interact.NotEligible:
		p.AddEvent(actionResult(nowTick, in.ID, false, protocol.ErrNotEligible, ""))
	default:
		p.AddEvent(actionResult(nowTick, in.ID, false, protocol.ErrInvalidTarget, "nothing happens"))
	}
}

// buildRequest fills a request from the player's server-side state. A non-empty code rejects it.
func (w *World) buildRequest(p *Player, kind interact.Kind, in protocol.InteractReq) (interact.Request, string, string) {
	click := interact.ClickType(in.ClickType)
	if click == "" {
		click = interact.ClickNormal
	}
	req := interact.Request{
		ID:         in.ID,
		Kind:       kind,
		Performer:  p.ID,
		Target:     in.Target,
		HandObject: p.HandObject(),
		Intent:     p.Intent,
		ClickType:  click,
		Option:     in.Option,
		Masters:    in.Masters,
	}

	var target *Object
	var targetPlayer *Player
	if in.Target != "" {
		target = w.objects[in.Target]
		if target == nil && kind == interact.PositionalHandApply {
			targetPlayer = w.players[in.Target]
		}
		if target == nil && targetPlayer == nil {
			return req, protocol.ErrInvalidTarget, "no such object"
		}
	}

	switch kind {
	case interact.InventoryApply:
		if target == nil || target.Holder != p.ID {
			return req, protocol.ErrInvalidTarget, "not in your inventory"
		}
		if h := p.HandObject(); h != target.ID {
			req.UsedObject = h
		}
	case interact.PositionalHandApply:
		if in.TargetPos == nil && target == nil && targetPlayer == nil {
			return req, protocol.ErrBadRequest, "missing target position"
		}
	case interact.HandApply, interact.AiActivate, interact.RightClick, interact.MultitoolLink:
		if target == nil {
			return req, protocol.ErrInvalidTarget, "missing target"
		}
	}

	switch {
	case in.TargetPos != nil:
		req.TargetPos = mathx.FromArray(*in.TargetPos)
	case target != nil:
		req.TargetPos = w.objectPos(target)
	case targetPlayer != nil:
		req.TargetPos = targetPlayer.Pos
	default:
		req.TargetPos = p.Pos
	}
	return req, "", ""
}

// canReach is the default check every handler runs behind: a performer must be present and the
// target within reach. AI activation works at any range.
func (w *World) canReach(req interact.Request) bool {
	p := w.players[req.Performer]
	if p == nil {
		return false
	}
	if req.Kind == interact.AiActivate {
		return true
	}
	if req.Kind == interact.HandActivate {
		o := w.objects[req.HandObject]
		return o != nil && o.Holder == p.ID
	}
	if req.Kind == interact.PositionalHandApply {
		if mathx.Chebyshev(p.Pos, req.TargetPos) > w.cfg.InteractRange {
			return false
		}
	}
	if req.Target == "" {
		return req.Kind == interact.PositionalHandApply
	}
	o := w.objects[req.Target]
	if o == nil {
		// Players are only valid targets for positional applies, already range checked.
		return req.Kind == interact.PositionalHandApply && w.players[req.Target] != nil
	}
	if o.Holder == p.ID {
		return true
	}
	return !o.held() && mathx.Chebyshev(p.Pos, o.Pos) <= w.cfg.InteractRange
}
