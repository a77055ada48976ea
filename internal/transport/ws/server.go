// Package ws carries the player protocol over websockets: a HELLO/WELCOME handshake, then
// ACT messages in and STATE messages out.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"cargohold.ai/internal/protocol"
	"cargohold.ai/internal/sim/world"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	readTimeout      = 60 * time.Second
	outQueue         = 8
	defaultName      = "player"
)

// World is the part of the simulation a connection talks to.
type World interface {
	Inbox() chan<- world.ActionEnvelope
	Join() chan<- world.JoinRequest
	Attach() chan<- world.AttachRequest
	Leave() chan<- string
}

type Server struct {
	world World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		playerID, out := s.handshake(ctx, conn)
		if playerID == "" {
			return
		}
		s.log.Printf("player %s connected from %s", playerID, r.RemoteAddr)

		go s.writeLoop(ctx, cancel, conn, out)
		s.readLoop(ctx, conn, playerID)
		cancel()

		select {
		case s.world.Leave() <- playerID:
		case <-time.After(handshakeTimeout):
			s.log.Printf("player %s: leave dropped", playerID)
		}
		s.log.Printf("player %s disconnected", playerID)
	}
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-out:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cancel()
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, playerID string) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		act, ok := decodeAct(msg)
		if !ok {
			continue
		}
		act.PlayerID = playerID
		select {
		case s.world.Inbox() <- world.ActionEnvelope{PlayerID: playerID, Act: act}:
		case <-ctx.Done():
			return
		}
	}
}

// decodeAct accepts only well-formed ACT messages of the current protocol version.
func decodeAct(msg []byte) (protocol.ActMsg, bool) {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeAct {
		return protocol.ActMsg{}, false
	}
	var act protocol.ActMsg
	if err := json.Unmarshal(msg, &act); err != nil {
		return protocol.ActMsg{}, false
	}
	if act.ProtocolVersion != protocol.Version {
		return protocol.ActMsg{}, false
	}
	return act, true
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (playerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}
	hello, reason := decodeHello(msg)
	if reason != "" {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
			time.Now().Add(time.Second))
		return "", nil
	}

	out = make(chan []byte, outQueue)

	var resp world.JoinResponse
	if tok := strings.TrimSpace(hello.ResumeToken); tok != "" {
		respCh := make(chan world.JoinResponse, 1)
		if !send(ctx, s.world.Attach(), world.AttachRequest{ResumeToken: tok, Out: out, Resp: respCh}) {
			return "", nil
		}
		if resp, err = recv(ctx, respCh); err != nil {
			return "", nil
		}
	}
	if resp.Welcome.PlayerID == "" {
		respCh := make(chan world.JoinResponse, 1)
		if !send(ctx, s.world.Join(), world.JoinRequest{Name: hello.PlayerName, Out: out, Resp: respCh}) {
			return "", nil
		}
		if resp, err = recv(ctx, respCh); err != nil {
			return "", nil
		}
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		return "", nil
	}
	return resp.Welcome.PlayerID, out
}

// decodeHello returns the HELLO message or a close reason.
func decodeHello(msg []byte) (protocol.HelloMsg, string) {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		return protocol.HelloMsg{}, "expected HELLO"
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return protocol.HelloMsg{}, "bad HELLO"
	}
	if hello.ProtocolVersion != protocol.Version {
		return protocol.HelloMsg{}, "bad protocol_version"
	}
	hello.PlayerName = strings.TrimSpace(hello.PlayerName)
	if hello.PlayerName == "" {
		hello.PlayerName = defaultName
	}
	return hello, ""
}

func send[T any](ctx context.Context, ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

func recv[T any](ctx context.Context, ch <-chan T) (T, error) {
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
