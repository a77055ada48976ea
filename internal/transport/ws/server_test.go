package ws

import (
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/world"
)

type fakeWorld struct {
	inbox  chan world.ActionEnvelope
	join   chan world.JoinRequest
	attach chan world.AttachRequest
	leave  chan string
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		inbox:  make(chan world.ActionEnvelope, 8),
		join:   make(chan world.JoinRequest, 8),
		attach: make(chan world.AttachRequest, 8),
		leave:  make(chan string, 8),
	}
}

func (f *fakeWorld) Inbox() chan<- world.ActionEnvelope { return f.inbox }
func (f *fakeWorld) Join() chan<- world.JoinRequest     { return f.join }
func (f *fakeWorld) Attach() chan<- world.AttachRequest { return f.attach }
func (f *fakeWorld) Leave() chan<- string               { return f.leave }

func startServer(t *testing.T, fw *fakeWorld) string {
	t.Helper()
	srv := NewServer(fw, log.New(io.Discard, "", 0))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitJoin(t *testing.T, fw *fakeWorld) world.JoinRequest {
	t.Helper()
	select {
	case req := <-fw.join:
		return req
	case <-time.After(5 * time.Second):
		t.Fatalf("no join request")
	}
	return world.JoinRequest{}
}

func welcome(id string) world.JoinResponse {
	return world.JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        id,
		ResumeToken:     "resume_x",
	}}
}

func TestServer_HelloJoinActLeave(t *testing.T) {
	fw := newFakeWorld()
	conn := dial(t, startServer(t, fw))

	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, PlayerName: " dock "}); err != nil {
		t.Fatalf("hello: %v", err)
	}
	req := waitJoin(t, fw)
	if req.Name != "dock" {
		t.Fatalf("join name=%q", req.Name)
	}
	req.Resp <- welcome("P1")

	var w protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&w); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if w.PlayerID != "P1" || w.Type != protocol.TypeWelcome {
		t.Fatalf("welcome: %+v", w)
	}

	// A stale protocol version is ignored; a spoofed player id is overwritten.
	_ = conn.WriteJSON(protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: "0.1", Tick: 1})
	_ = conn.WriteJSON(protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, Tick: 2, PlayerID: "P7"})
	select {
	case env := <-fw.inbox:
		if env.PlayerID != "P1" || env.Act.PlayerID != "P1" || env.Act.Tick != 2 {
			t.Fatalf("envelope: %+v", env)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no action")
	}

	req.Out <- []byte(`{"type":"STATE","tick":3}`)
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if !strings.Contains(string(msg), `"STATE"`) {
		t.Fatalf("state: %s", msg)
	}

	_ = conn.Close()
	select {
	case id := <-fw.leave:
		if id != "P1" {
			t.Fatalf("leave id=%q", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no leave")
	}
}

func TestServer_UnknownResumeTokenFallsBackToJoin(t *testing.T) {
	fw := newFakeWorld()
	conn := dial(t, startServer(t, fw))

	_ = conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ResumeToken: "resume_gone"})
	select {
	case req := <-fw.attach:
		if req.ResumeToken != "resume_gone" {
			t.Fatalf("token=%q", req.ResumeToken)
		}
		req.Resp <- world.JoinResponse{}
	case <-time.After(5 * time.Second):
		t.Fatalf("no attach request")
	}
	req := waitJoin(t, fw)
	if req.Name != defaultName {
		t.Fatalf("join name=%q", req.Name)
	}
	req.Resp <- welcome("P2")

	var w protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&w); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if w.PlayerID != "P2" {
		t.Fatalf("player=%q", w.PlayerID)
	}
}

func TestServer_RejectsNonHello(t *testing.T) {
	fw := newFakeWorld()
	conn := dial(t, startServer(t, fw))

	_ = conn.WriteJSON(protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	if !asCloseError(err, &ce) || ce.Code != websocket.ClosePolicyViolation || ce.Text != "expected HELLO" {
		t.Fatalf("err=%v", err)
	}
	if len(fw.join) != 0 {
		t.Fatalf("unexpected join")
	}
}

func TestDecodeHello(t *testing.T) {
	cases := []struct {
		name   string
		msg    string
		reason string
	}{
		{"ok", `{"type":"HELLO","protocol_version":"1.0","player_name":"a"}`, ""},
		{"wrong type", `{"type":"ACT","protocol_version":"1.0"}`, "expected HELLO"},
		{"bad version", `{"type":"HELLO","protocol_version":"0.9"}`, "bad protocol_version"},
		{"garbage", `{`, "expected HELLO"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, reason := decodeHello([]byte(tc.msg))
			if reason != tc.reason {
				t.Fatalf("reason=%q want %q", reason, tc.reason)
			}
		})
	}
}

func asCloseError(err error, out **websocket.CloseError) bool {
	ce, ok := err.(*websocket.CloseError)
	if ok {
		*out = ce
	}
	return ok
}
