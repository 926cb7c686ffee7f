package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/vovakirdan/roomchat-server/internal/config"
	"github.com/vovakirdan/roomchat-server/internal/core"
	"github.com/vovakirdan/roomchat-server/internal/proto"
)

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()
	registry := core.NewRegistry(&logger)
	dispatcher := core.NewDispatcher(registry, &logger)

	server := NewServer(registry, dispatcher, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		DeliveryBuffer:    16,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

type testOutbound struct {
	MsgType string          `json:"msg_type"`
	Data    json.RawMessage `json:"data"`
}

func readOutbound(t *testing.T, ctx context.Context, conn *websocket.Conn, wantType string) testOutbound {
	t.Helper()

	var out testOutbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	if wantType != "" && out.MsgType != wantType {
		t.Fatalf("unexpected outbound type: got %q want %q", out.MsgType, wantType)
	}
	return out
}

func sendInbound(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{MsgType: msgType, Data: payload}); err != nil {
		t.Fatalf("write inbound: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketChatScenario(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// C1 connects: history starts empty.
	c1 := dialWS(t, ctx, ts)
	all := readOutbound(t, ctx, c1, proto.OutboundTypeAllMessages)
	var entries []proto.ChatBody
	if err := json.Unmarshal(all.Data, &entries); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty history, got %+v", entries)
	}

	sendInbound(t, ctx, c1, proto.InboundTypeRegisterName, "alice")
	readOutbound(t, ctx, c1, proto.OutboundTypeNameRegistered)

	// C2 connects and collides with alice, then retries as bob.
	c2 := dialWS(t, ctx, ts)
	readOutbound(t, ctx, c2, proto.OutboundTypeAllMessages)

	sendInbound(t, ctx, c2, proto.InboundTypeRegisterName, "alice")
	readOutbound(t, ctx, c2, proto.OutboundTypeNameTaken)

	sendInbound(t, ctx, c2, proto.InboundTypeRegisterName, "bob")
	readOutbound(t, ctx, c2, proto.OutboundTypeNameRegistered)

	joined := readOutbound(t, ctx, c1, proto.OutboundTypeJoined)
	var notice string
	if err := json.Unmarshal(joined.Data, &notice); err != nil {
		t.Fatalf("unmarshal notice: %v", err)
	}
	if notice != "bob joined." {
		t.Fatalf("unexpected notice: %q", notice)
	}

	// Alice chats: both clients receive the message through the same path.
	sendInbound(t, ctx, c1, proto.InboundTypeChat, proto.ChatBody{Name: "alice", Message: "hi"})
	for _, conn := range []*websocket.Conn{c1, c2} {
		msg := readOutbound(t, ctx, conn, proto.OutboundTypeNewMessage)
		var body proto.ChatBody
		if err := json.Unmarshal(msg.Data, &body); err != nil {
			t.Fatalf("unmarshal message: %v", err)
		}
		if body.Name != "alice" || body.Message != "hi" {
			t.Fatalf("unexpected message: %+v", body)
		}
	}

	// A later arrival gets exactly that one entry replayed.
	c3 := dialWS(t, ctx, ts)
	all3 := readOutbound(t, ctx, c3, proto.OutboundTypeAllMessages)
	var replay []proto.ChatBody
	if err := json.Unmarshal(all3.Data, &replay); err != nil {
		t.Fatalf("unmarshal replay: %v", err)
	}
	if len(replay) != 1 || replay[0].Name != "alice" || replay[0].Message != "hi" {
		t.Fatalf("unexpected replay: %+v", replay)
	}
}

func TestWebSocketMalformedFramesAreNotFatal(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	readOutbound(t, ctx, conn, proto.OutboundTypeAllMessages)

	// Not JSON at all.
	if err := conn.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	// Valid envelope, malformed chat payload (string instead of object).
	sendInbound(t, ctx, conn, proto.InboundTypeChat, "oops")
	// Unknown message type.
	sendInbound(t, ctx, conn, "Dance", "")

	// The session survived all three: registration still works.
	sendInbound(t, ctx, conn, proto.InboundTypeRegisterName, "carol")
	readOutbound(t, ctx, conn, proto.OutboundTypeNameRegistered)
}

func TestWebSocketDisconnectFreesName(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c1 := dialWS(t, ctx, ts)
	readOutbound(t, ctx, c1, proto.OutboundTypeAllMessages)
	sendInbound(t, ctx, c1, proto.InboundTypeRegisterName, "alice")
	readOutbound(t, ctx, c1, proto.OutboundTypeNameRegistered)

	c1.Close(websocket.StatusNormalClosure, "bye")

	// The server needs a moment to observe the close and deregister.
	deadline := time.Now().Add(5 * time.Second)
	for {
		c2 := dialWS(t, ctx, ts)
		readOutbound(t, ctx, c2, proto.OutboundTypeAllMessages)
		sendInbound(t, ctx, c2, proto.InboundTypeRegisterName, "alice")
		out := readOutbound(t, ctx, c2, "")
		c2.Close(websocket.StatusNormalClosure, "done")
		if out.MsgType == proto.OutboundTypeNameRegistered {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("name never freed after disconnect, last reply %q", out.MsgType)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
