package world

import (
	"cargohold.ai/internal/persistence/snapshot"
)

func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: 1,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		TickRate:           w.cfg.TickRateHz,
		InteractRange:      w.cfg.InteractRange,
		ChatRange:          w.cfg.ChatRange,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		Counters: snapshot.CountersV1{
			NextPlayer: w.nextPlayerNum.Load(),
			NextObject: w.nextObjectNum.Load(),
		},
	}

	for _, o := range w.sortedObjects() {
		snap.Objects = append(snap.Objects, snapshot.ObjectV1{
			ID:         o.ID,
			Kind:       o.Kind,
			Name:       o.Name,
			Pos:        o.Pos.ToArray(),
			Visible:    o.Visible,
			Holder:     o.Holder,
			Slot:       o.Slot,
			Count:      o.Count,
			Scale:      o.Scale,
			Pickupable: o.Pickupable,
			Pushable:   o.Pushable,
			Physics:    o.Physics,
			Door:       o.Door,
			Emitter:    o.Emitter,
			Tool:       o.Tool,
		})
		if sw := o.Switch; sw != nil {
			snap.Switches = append(snap.Switches, snapshot.SwitchV1{
				ID:                o.ID,
				State:             int(sw.State()),
				PrevMove:          int(sw.PrevMoveState()),
				Speed:             sw.Speed(),
				RedriveEveryTicks: sw.RedriveEveryTicks(),
				NextRedrive:       sw.NextRedrive(),
				Belts:             sw.ActuatorIDs(),
			})
		}
		if b := o.Belt; b != nil {
			snap.Belts = append(snap.Belts, snapshot.BeltV1{
				ID:       o.ID,
				Dir:      b.Dir().ToArray(),
				Rate:     b.Rate(),
				Progress: b.Progress(),
			})
		}
		if pkg := o.Package; pkg != nil {
			snap.Packages = append(snap.Packages, snapshot.PackageV1{
				ID:             o.ID,
				Type:           int(pkg.Type),
				Sprite:         pkg.Sprite,
				Size:           int(pkg.Size),
				ContentID:      pkg.ContentID,
				DefaultContent: pkg.DefaultContent,
			})
		}
		if ex := o.Explosive; ex != nil {
			snap.Explosives = append(snap.Explosives, snapshot.ExplosiveV1{
				ID:         o.ID,
				Armed:      ex.Armed,
				OnObject:   ex.OnObject,
				AttachedTo: ex.AttachedTo,
				Emitter:    ex.Emitter,
				Scale:      ex.Scale,
				CanPickup:  ex.CanPickup,
				Pushable:   ex.Pushable,
				DetonateAt: ex.DetonateAt,
			})
		}
	}

	for _, p := range w.sortedPlayers() {
		slots := make(map[string]string, len(p.Slots))
		for k, v := range p.Slots {
			slots[k] = v
		}
		pv := snapshot.PlayerV1{
			ID:          p.ID,
			Name:        p.Name,
			Pos:         p.Pos.ToArray(),
			Intent:      string(p.Intent),
			ActiveHand:  p.ActiveHand,
			Slots:       slots,
			ResumeToken: p.ResumeToken,
		}
		if pr := p.Progress; pr != nil {
			pv.Progress = &snapshot.ProgressV1{
				Kind:       pr.Kind,
				Ref:        pr.Req.ID,
				ReqKind:    string(pr.Req.Kind),
				Target:     pr.Req.Target,
				HandObject: pr.Req.HandObject,
				UsedObject: pr.Req.UsedObject,
				TargetPos:  pr.Req.TargetPos.ToArray(),
				Intent:     string(pr.Req.Intent),
				StartPos:   pr.StartPos.ToArray(),
				DoneTick:   pr.DoneTick,
				Masters:    append([]string(nil), pr.Req.Masters...),
			}
		}
		snap.Players = append(snap.Players, pv)
	}
	return snap
}
