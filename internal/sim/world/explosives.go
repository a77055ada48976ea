package world

import (
	"fmt"

	"cargohold.ai/internal/sim/explosive"
	"cargohold.ai/internal/sim/interact"
)

func (w *World) explosiveOf(id string) *explosive.Explosive {
	if o := w.objects[id]; o != nil {
		return o.Explosive
	}
	return nil
}

func (w *World) explosiveWillAttach(req interact.Request) bool {
	ex := w.explosiveOf(req.HandObject)
	if ex == nil || req.Target == req.Performer {
		return false
	}
	return ex.WillAttach(w.env(), req)
}

func (w *World) explosiveStartAttach(req interact.Request) {
	w.startProgress(w.players[req.Performer], ProgressAttach, req, w.cfg.Explosive.AttachProgressTicks)
}

func (w *World) finishAttach(p *Player, req interact.Request) {
	ex := w.explosiveOf(req.HandObject)
	if ex == nil {
		return
	}
	if ex.Attach(w.env(), req) {
		w.audit(p.ID, "ATTACH", w.objects[ex.ID], "", req.Target, "")
	}
}

func (w *World) explosiveWillHandApply(req interact.Request) bool {
	ex := w.explosiveOf(req.Target)
	return ex != nil && ex.WillHandApply(w.env(), req)
}

func (w *World) explosiveHandApply(req interact.Request) {
	ex := w.explosiveOf(req.Target)
	wasArmed, prevEmitter := ex.Armed, ex.Emitter
	ex.PerformHandApply(w.env(), req, w.now)
	w.auditExplosiveChange(req.Performer, ex, wasArmed, prevEmitter)
}

func (w *World) explosiveHandActivate(req interact.Request) {
	ex := w.explosiveOf(req.HandObject)
	wasArmed, prevEmitter := ex.Armed, ex.Emitter
	ex.PerformHandActivate(w.env(), req, w.now)
	w.auditExplosiveChange(req.Performer, ex, wasArmed, prevEmitter)
}

func (w *World) auditExplosiveChange(actor string, ex *explosive.Explosive, wasArmed bool, prevEmitter string) {
	o := w.objects[ex.ID]
	if !wasArmed && ex.Armed {
		w.audit(actor, "ARM", o, "", fmt.Sprintf("detonate_at=%d", ex.DetonateAt), "")
	}
	if ex.Emitter != prevEmitter {
		w.audit(actor, "LINK_EMITTER", o, prevEmitter, ex.Emitter, "")
	}
}

func (w *World) explosiveWillRightClick(req interact.Request) bool {
	ex := w.explosiveOf(req.Target)
	return ex != nil && ex.WillRightClick(req)
}

func (w *World) explosiveDeattach(req interact.Request) {
	ex := w.explosiveOf(req.Target)
	from := ex.AttachedTo
	ex.Deattach()
	w.audit(req.Performer, "DETACH", w.objects[ex.ID], from, "", "")
}

// emitterActivate sends the emitter's signal to every explosive linked to it.
func (w *World) emitterActivate(req interact.Request) {
	em := w.objects[req.HandObject]
	if em == nil {
		return
	}
	w.examine(req.Performer, fmt.Sprintf("You press the button on the %s.", em.Name))
	env := w.env()
	for _, o := range w.sortedObjects() {
		if o.Explosive == nil || w.objects[o.ID] == nil {
			continue
		}
		o.Explosive.SignalReceived(env, em.ID)
	}
}
