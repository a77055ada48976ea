package world

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/interact"
	"cargohold.ai/internal/sim/mathx"
)

const (
	SlotLeftHand  = "left_hand"
	SlotRightHand = "right_hand"
)

type Player struct {
	ID          string
	Name        string
	Pos         mathx.Vec2i
	Intent      interact.Intent
	ActiveHand  string
	Slots       map[string]string
	ResumeToken string

	Progress *Progress

	Events []protocol.Event
}

func (p *Player) AddEvent(e protocol.Event) {
	p.Events = append(p.Events, e)
}

func (p *Player) TakeEvents() []protocol.Event {
	ev := p.Events
	p.Events = nil
	return ev
}

// HandObject is the object in the active hand, or "".
func (p *Player) HandObject() string { return p.Slots[p.ActiveHand] }

func (p *Player) otherHand() string {
	if p.ActiveHand == SlotLeftHand {
		return SlotRightHand
	}
	return SlotLeftHand
}

func newResumeToken() string {
	return "resume_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (w *World) joinPlayer(name string, out chan []byte) JoinResponse {
	if name == "" {
		name = "crewmember"
	}
	n := w.nextPlayerNum.Add(1)
	id := fmt.Sprintf("P%d", n)

	p := &Player{
		ID:         id,
		Name:       name,
		Pos:        mathx.Vec2i{},
		Intent:     interact.IntentHelp,
		ActiveHand: SlotRightHand,
		Slots:      map[string]string{},
	}
	w.players[id] = p
	if out != nil {
		w.clients[id] = &clientState{Out: out}
	}
	p.ResumeToken = newResumeToken()
	return JoinResponse{Welcome: w.welcome(p)}
}

func (w *World) welcome(p *Player) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		PlayerID:        p.ID,
		ResumeToken:     p.ResumeToken,
		WorldParams: protocol.WorldParams{
			TickRateHz:    w.cfg.TickRateHz,
			InteractRange: w.cfg.InteractRange,
			ChatRange:     w.cfg.ChatRange,
		},
	}
}

func (w *World) handleAttach(req AttachRequest) {
	token := strings.TrimSpace(req.ResumeToken)
	if token == "" || req.Out == nil {
		if req.Resp != nil {
			req.Resp <- JoinResponse{}
		}
		return
	}

	var p *Player
	for _, pp := range w.sortedPlayers() {
		if pp.ResumeToken == token {
			p = pp
			break
		}
	}
	if p == nil {
		if req.Resp != nil {
			req.Resp <- JoinResponse{}
		}
		return
	}

	// Attach client (does not affect simulation determinism).
	w.clients[p.ID] = &clientState{Out: req.Out}

	// Rotate token on successful resume.
	p.ResumeToken = newResumeToken()
	if req.Resp != nil {
		req.Resp <- JoinResponse{Welcome: w.welcome(p)}
	}
}

func (w *World) handleLeave(playerID string) {
	delete(w.clients, playerID)
}

func (w *World) sortedPlayers() []*Player {
	out := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// putInSlot places an object into a player's slot, taking it out of the world.
func (w *World) putInSlot(p *Player, slot string, o *Object) bool {
	if p == nil || o == nil || slot == "" {
		return false
	}
	if cur := p.Slots[slot]; cur != "" && cur != o.ID {
		return false
	}
	w.releaseFromSlot(o)
	p.Slots[slot] = o.ID
	o.Holder = p.ID
	o.Slot = slot
	o.Pos = p.Pos
	return true
}

// dropFromSlot puts a held object on pos.
func (w *World) dropFromSlot(o *Object, pos mathx.Vec2i) {
	w.releaseFromSlot(o)
	o.Pos = pos
	o.Visible = true
}
