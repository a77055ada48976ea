package world

import (
	"fmt"

	"cargohold.ai/internal/sim/conveyor"
	"cargohold.ai/internal/sim/interact"
	"cargohold.ai/internal/sim/mathx"
)

func (w *World) spawnSwitch(id string, pos mathx.Vec2i, speed float64) *Object {
	o := w.spawnObject(id, KindSwitch, pos)
	if speed <= 0 {
		speed = w.cfg.Conveyor.BeltSpeed
	}
	o.Switch = conveyor.NewSwitch(conveyor.SwitchConfig{
		ID:                o.ID,
		Speed:             speed,
		RedriveEveryTicks: w.cfg.Conveyor.RedriveEveryTicks,
	}, w.sched)
	w.watchSwitch(o.Switch)
	o.Switch.Start()
	return o
}

func (w *World) watchSwitch(sw *conveyor.Switch) {
	sw.OnStateChange(func(sw *conveyor.Switch, from, to conveyor.SwitchState) {
		if from == to {
			return
		}
		w.audit(w.actor, "SWITCH_STATE", w.objects[sw.ID()], from.String(), to.String(), "")
	})
}

func (w *World) spawnBelt(id string, pos, dir mathx.Vec2i) *Object {
	o := w.spawnObject(id, KindBelt, pos)
	o.Belt = conveyor.NewBelt(o.ID, pos, dir, w.env())
	o.Belt.UpdateState()
	return o
}

// autoLinkBelts joins every unlinked belt to the switch of an adjacent linked belt.
// Linking spreads along a chain, so it repeats until nothing changes.
func (w *World) autoLinkBelts() int {
	linked := 0
	for {
		changed := false
		for _, o := range w.sortedObjects() {
			if o.Belt == nil || o.Belt.Switch() != nil {
				continue
			}
			sw := conveyor.NeighborSwitch(o.Belt.Pos(), w.beltAt, w.cfg.Conveyor.NetworkMaxNodes)
			if sw == nil {
				continue
			}
			sw.RegisterActuators(o.Belt)
			o.Belt.UpdateState()
			linked++
			changed = true
		}
		if !changed {
			return linked
		}
	}
}

func (w *World) switchWillHandApply(req interact.Request) bool {
	if req.HandObject == "" {
		return true
	}
	tool := w.objects[req.HandObject]
	return tool != nil && tool.Tool == ToolWrench
}

func (w *World) switchHandApply(req interact.Request) {
	if req.HandObject == "" {
		w.switchToggle(req)
		return
	}
	p := w.players[req.Performer]
	if !w.startProgress(p, ProgressDeconstruct, req, w.cfg.Switch.DeconstructProgressTicks) {
		return
	}
	w.actionMessage(p.ID,
		"You start deconstructing the conveyor belt switch...",
		fmt.Sprintf("%s starts deconstructing the conveyor belt switch...", p.Name))
}

func switchWillAiActivate(req interact.Request) bool {
	return req.ClickType == interact.ClickNormal
}

func (w *World) switchToggle(req interact.Request) {
	o := w.objects[req.Target]
	if o == nil || o.Switch == nil {
		return
	}
	w.withActor(req.Performer, o.Switch.Toggle)
}

func (w *World) switchWillLink(req interact.Request) bool {
	if len(req.Masters) == 0 {
		return false
	}
	for _, id := range req.Masters {
		o := w.objects[id]
		if o == nil || o.Belt == nil {
			return false
		}
	}
	tool := w.objects[req.HandObject]
	return tool != nil && tool.Tool == ToolMultitool
}

func (w *World) switchLink(req interact.Request) {
	o := w.objects[req.Target]
	if o == nil || o.Switch == nil {
		return
	}
	belts := make([]conveyor.Actuator, 0, len(req.Masters))
	var moved []*conveyor.Belt
	for _, id := range req.Masters {
		b := w.objects[id].Belt
		// A belt belongs to one switch at a time and drops the old switch's motion.
		if prev := b.Switch(); prev != o.Switch {
			if prev != nil {
				prev.RemoveActuator(b)
			}
			b.Unlink()
			moved = append(moved, b)
		}
		belts = append(belts, b)
	}
	o.Switch.RegisterActuators(belts...)
	// Moved belts take the new switch's rate now; the next redrive moves them.
	for _, b := range moved {
		b.RestoreMotion(o.Switch.Rate(), 0)
	}
	for _, a := range belts {
		a.UpdateState()
	}
	w.audit(req.Performer, "SWITCH_LINK", o, "", fmt.Sprint(o.Switch.ActuatorIDs()), "")
}

func (w *World) finishDeconstruct(p *Player, o *Object) {
	if o == nil || o.Switch == nil {
		return
	}
	pos := o.Pos
	for _, a := range o.Switch.Actuators() {
		if b, ok := a.(*conveyor.Belt); ok {
			b.Unlink()
		}
	}
	w.withActor(p.ID, o.Switch.Deconstruct)

	scrap := w.spawnObject("", w.cfg.Switch.DeconstructScrap, pos)
	scrap.Count = w.cfg.Switch.DeconstructScrapCount
	w.audit(p.ID, "DECONSTRUCT", o, "", scrap.ID, "")
	w.despawn(o.ID)

	w.actionMessage(p.ID,
		"You deconstruct the conveyor belt switch.",
		fmt.Sprintf("%s deconstructs the conveyor belt switch.", p.Name))
}

// withActor attributes audits raised inside fn to actor.
func (w *World) withActor(actor string, fn func()) {
	prev := w.actor
	w.actor = actor
	defer func() { w.actor = prev }()
	fn()
}
