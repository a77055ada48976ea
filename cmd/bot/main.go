package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/mathx"
	"cargohold.ai/internal/sim/world"
)

func main() {
	var (
		url         = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name        = flag.String("name", "bot", "player name")
		token       = flag.String("resume", "", "resume token from an earlier WELCOME (optional)")
		toggleEvery = flag.Uint64("toggle_every", 100, "toggle the nearest switch every N ticks")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		ResumeToken:     *token,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	b := &bot{toggleEvery: *toggleEvery, switches: map[string]string{}}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME player_id=%s tick_rate=%d resume_token=%s", w.PlayerID, w.WorldParams.TickRateHz, w.ResumeToken)

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			for _, line := range b.observe(&st) {
				logger.Print(line)
			}
			if act := b.decide(&st); act != nil {
				_ = conn.WriteJSON(act)
			}
		}
	}
}

// bot toggles the nearest conveyor switch on a fixed cadence and walks toward it when it is
// out of reach.
type bot struct {
	toggleEvery uint64
	switches    map[string]string
}

// observe reports switch state changes and messages addressed to the bot.
func (b *bot) observe(st *protocol.StateMsg) []string {
	var out []string
	for _, o := range st.Objects {
		if o.Kind != world.KindSwitch {
			continue
		}
		if prev, ok := b.switches[o.ID]; ok && prev != o.State {
			out = append(out, fmt.Sprintf("tick=%d %s: %s -> %s", st.Tick, o.ID, prev, o.State))
		}
		b.switches[o.ID] = o.State
	}
	for _, ev := range st.Events {
		if ev["type"] == "EXAMINE" || ev["type"] == "ACTION_MSG" {
			out = append(out, fmt.Sprintf("tick=%d %v: %v", st.Tick, ev["type"], ev["text"]))
		}
	}
	return out
}

func (b *bot) decide(st *protocol.StateMsg) *protocol.ActMsg {
	if b.toggleEvery == 0 || st.Tick%b.toggleEvery != 0 || st.Self.Progress != nil {
		return nil
	}
	target, ok := nearestSwitch(st)
	if !ok {
		return nil
	}
	act := &protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            st.Tick,
		PlayerID:        st.PlayerID,
	}
	self, pos := mathx.FromArray(st.Self.Pos), mathx.FromArray(target.Pos)
	if mathx.Chebyshev(self, pos) > 1 {
		step := stepToward(self, pos)
		act.Controls = []protocol.ControlReq{{ID: fmt.Sprintf("mv_%d", st.Tick), Type: protocol.ControlMove, Dir: [2]int{step.X, step.Y}}}
		return act
	}
	act.Interactions = []protocol.InteractReq{{ID: fmt.Sprintf("toggle_%d", st.Tick), Kind: "HAND_APPLY", Target: target.ID}}
	return act
}

func nearestSwitch(st *protocol.StateMsg) (protocol.ObjectObs, bool) {
	self := mathx.FromArray(st.Self.Pos)
	var (
		best  protocol.ObjectObs
		found bool
		bestD int
	)
	for _, o := range st.Objects {
		if o.Kind != world.KindSwitch {
			continue
		}
		d := mathx.Chebyshev(self, mathx.FromArray(o.Pos))
		if !found || d < bestD || (d == bestD && o.ID < best.ID) {
			best, bestD, found = o, d, true
		}
	}
	return best, found
}

func stepToward(from, to mathx.Vec2i) mathx.Vec2i {
	return mathx.Vec2i{X: sign(to.X - from.X), Y: sign(to.Y - from.Y)}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
