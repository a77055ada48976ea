package world

import (
	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/mathx"
)

// buildState assembles the per-player STATE message and drains the player's events.
func (w *World) buildState(p *Player, nowTick uint64) protocol.StateMsg {
	slots := make(map[string]string, len(p.Slots))
	for k, v := range p.Slots {
		slots[k] = v
	}
	self := protocol.SelfObs{
		Pos:        p.Pos.ToArray(),
		Intent:     string(p.Intent),
		ActiveHand: p.ActiveHand,
		Slots:      slots,
	}
	if pr := p.Progress; pr != nil {
		remaining := 0
		if pr.DoneTick > nowTick {
			remaining = int(pr.DoneTick - nowTick)
		}
		self.Progress = &protocol.ProgressObs{Kind: pr.Kind, Target: pr.Req.Target, RemainingTicks: remaining}
	}

	objects := make([]protocol.ObjectObs, 0, len(w.objects))
	for _, o := range w.sortedObjects() {
		if !o.Visible {
			continue
		}
		pos := w.objectPos(o)
		if o.Holder != p.ID && mathx.Chebyshev(pos, p.Pos) > w.cfg.ChatRange {
			continue
		}
		objects = append(objects, w.objectObs(o))
	}

	players := make([]protocol.PlayerObs, 0, len(w.players))
	for _, other := range w.sortedPlayers() {
		if other.ID != p.ID && mathx.Chebyshev(other.Pos, p.Pos) > w.cfg.ChatRange {
			continue
		}
		players = append(players, protocol.PlayerObs{ID: other.ID, Name: other.Name, Pos: other.Pos.ToArray()})
	}

	events := p.TakeEvents()
	if events == nil {
		events = []protocol.Event{}
	}
	return protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		PlayerID:        p.ID,
		Self:            self,
		Objects:         objects,
		Players:         players,
		Events:          events,
	}
}

func (w *World) objectObs(o *Object) protocol.ObjectObs {
	obs := protocol.ObjectObs{
		ID:     o.ID,
		Kind:   o.Kind,
		Name:   o.Name,
		Pos:    w.objectPos(o).ToArray(),
		Holder: o.Holder,
		Slot:   o.Slot,
		State:  o.stateLabel(),
		Sprite: o.sprite(),
		Scale:  o.scale(),
	}
	if ex := o.Explosive; ex != nil {
		obs.HoverTip = ex.HoverTip()
		obs.Hints = ex.InteractionHints()
		obs.Options = ex.RightClickOptions()
	}
	return obs
}
