package world

import (
	"fmt"

	"cargohold.ai/internal/persistence/snapshot"
	"cargohold.ai/internal/sim/cargo"
	"cargohold.ai/internal/sim/conveyor"
	"cargohold.ai/internal/sim/explosive"
	"cargohold.ai/internal/sim/interact"
	"cargohold.ai/internal/sim/mathx"
	"cargohold.ai/internal/sim/sched"
)

// ImportSnapshot replaces the world state with s. The next step runs tick s.Header.Tick+1.
// It must be called before the world loop starts.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != 1 {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if s.TickRate > 0 {
		w.cfg.TickRateHz = s.TickRate
	}
	w.cfg.InteractRange = s.InteractRange
	w.cfg.ChatRange = s.ChatRange
	if s.SnapshotEveryTicks > 0 {
		w.cfg.SnapshotEveryTicks = s.SnapshotEveryTicks
	}

	nowTick := s.Header.Tick + 1
	w.sched = sched.New()
	w.sched.SetNow(nowTick)
	w.objects = map[string]*Object{}
	w.players = map[string]*Player{}
	w.clients = map[string]*clientState{}
	w.now = nowTick

	for _, ov := range s.Objects {
		w.objects[ov.ID] = &Object{
			ID:         ov.ID,
			Kind:       ov.Kind,
			Name:       ov.Name,
			Pos:        mathx.FromArray(ov.Pos),
			Visible:    ov.Visible,
			Holder:     ov.Holder,
			Slot:       ov.Slot,
			Count:      ov.Count,
			Scale:      ov.Scale,
			Pickupable: ov.Pickupable,
			Pushable:   ov.Pushable,
			Physics:    ov.Physics,
			Door:       ov.Door,
			Emitter:    ov.Emitter,
			Tool:       ov.Tool,
		}
	}

	for _, pv := range s.Players {
		p := &Player{
			ID:          pv.ID,
			Name:        pv.Name,
			Pos:         mathx.FromArray(pv.Pos),
			Intent:      interact.Intent(pv.Intent),
			ActiveHand:  pv.ActiveHand,
			Slots:       map[string]string{},
			ResumeToken: pv.ResumeToken,
		}
		for k, v := range pv.Slots {
			p.Slots[k] = v
		}
		if pr := pv.Progress; pr != nil {
			p.Progress = &Progress{
				Kind: pr.Kind,
				Req: interact.Request{
					ID:         pr.Ref,
					Kind:       interact.Kind(pr.ReqKind),
					Performer:  pv.ID,
					Target:     pr.Target,
					HandObject: pr.HandObject,
					UsedObject: pr.UsedObject,
					TargetPos:  mathx.FromArray(pr.TargetPos),
					Intent:     interact.Intent(pr.Intent),
					Masters:    append([]string(nil), pr.Masters...),
				},
				StartPos: mathx.FromArray(pr.StartPos),
				DoneTick: pr.DoneTick,
			}
		}
		w.players[pv.ID] = p
	}

	for _, bv := range s.Belts {
		o := w.objects[bv.ID]
		if o == nil {
			return fmt.Errorf("snapshot: belt %q has no object", bv.ID)
		}
		o.Belt = conveyor.NewBelt(o.ID, o.Pos, mathx.FromArray(bv.Dir), w.env())
		o.Belt.RestoreMotion(bv.Rate, bv.Progress)
	}

	for _, sv := range s.Switches {
		o := w.objects[sv.ID]
		if o == nil {
			return fmt.Errorf("snapshot: switch %q has no object", sv.ID)
		}
		sw := conveyor.NewSwitch(conveyor.SwitchConfig{ID: o.ID, Speed: sv.Speed, RedriveEveryTicks: sv.RedriveEveryTicks}, w.sched)
		o.Switch = sw
		belts := make([]conveyor.Actuator, 0, len(sv.Belts))
		for _, id := range sv.Belts {
			bo := w.objects[id]
			if bo == nil || bo.Belt == nil {
				return fmt.Errorf("snapshot: switch %q references unknown belt %q", sv.ID, id)
			}
			belts = append(belts, bo.Belt)
		}
		sw.RegisterActuators(belts...)
		state, prev := conveyor.SwitchState(sv.State), conveyor.SwitchState(sv.PrevMove)
		if !state.Valid() {
			return fmt.Errorf("snapshot: switch %q has invalid state %d", sv.ID, sv.State)
		}
		sw.Restore(state, prev, sv.NextRedrive)
		w.watchSwitch(sw)
	}

	for _, pv := range s.Packages {
		o := w.objects[pv.ID]
		if o == nil {
			return fmt.Errorf("snapshot: package %q has no object", pv.ID)
		}
		o.Package = &cargo.Package{
			ID:             o.ID,
			Type:           cargo.PackageType(pv.Type),
			Sprite:         pv.Sprite,
			Size:           cargo.Size(pv.Size),
			ContentID:      pv.ContentID,
			DefaultContent: pv.DefaultContent,
		}
	}

	env := w.env()
	for _, ev := range s.Explosives {
		o := w.objects[ev.ID]
		if o == nil {
			return fmt.Errorf("snapshot: explosive %q has no object", ev.ID)
		}
		ex := explosive.New(o.ID, w.explosiveConfig(), w.sched)
		ex.Armed = ev.Armed
		ex.OnObject = ev.OnObject
		ex.AttachedTo = ev.AttachedTo
		ex.Emitter = ev.Emitter
		ex.Scale = ev.Scale
		ex.CanPickup = ev.CanPickup
		ex.Pushable = ev.Pushable
		ex.DetonateAt = ev.DetonateAt
		o.Explosive = ex
		ex.Restore(env, nowTick)
	}

	w.restoreProgress(nowTick)

	w.tick.Store(nowTick)
	w.nextPlayerNum.Store(s.Counters.NextPlayer)
	w.nextObjectNum.Store(s.Counters.NextObject)
	return nil
}
