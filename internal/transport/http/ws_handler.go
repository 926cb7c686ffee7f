package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/vovakirdan/roomchat-server/internal/core"
	"github.com/vovakirdan/roomchat-server/internal/proto"
	"github.com/vovakirdan/roomchat-server/internal/utils"
)

const probeTimeout = 5 * time.Second

// WSHandler upgrades HTTP connections and runs one chat session per
// connection: a read loop feeding the dispatcher and a write loop draining
// the session's delivery channel, torn down together when either stops.
type WSHandler struct {
	registry       *core.Registry
	dispatcher     *core.Dispatcher
	deliveryBuffer int
	log            *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(registry *core.Registry, dispatcher *core.Dispatcher, deliveryBuffer int, logger *zerolog.Logger) stdhttp.Handler {
	if deliveryBuffer <= 0 {
		deliveryBuffer = 16
	}
	return &WSHandler{
		registry:       registry,
		dispatcher:     dispatcher,
		deliveryBuffer: deliveryBuffer,
		log:            logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	// Liveness probe before any protocol traffic. A peer that cannot answer
	// a ping never gets registered.
	probeCtx, cancelProbe := context.WithTimeout(ctx, probeTimeout)
	err = conn.Ping(probeCtx)
	cancelProbe()
	if err != nil {
		h.log.Warn().Err(err).Msg("liveness probe failed")
		return
	}

	id := utils.NewID()

	history := h.registry.SnapshotHistory(core.DefaultRoom)
	snapshot := core.Envelope{Kind: core.EnvelopeAllMessages, Entries: history}
	if err := wsjson.Write(ctx, conn, outboundFromEnvelope(snapshot)); err != nil {
		h.log.Warn().Err(err).Str("session_id", id).Msg("failed to replay history")
		return
	}

	delivery := make(chan core.Envelope, h.deliveryBuffer)
	h.registry.RegisterSession(id, delivery)
	defer h.registry.RemoveSession(id)

	h.log.Info().Str("session_id", id).Str("remote", r.RemoteAddr).Msg("session established")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, id, delivery)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, id, delivery)
	}()

	// First exit wins; the sibling is cancelled and joined before the
	// connection is released.
	err = <-errCh
	cancel()
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("session_id", id).Msg("ws connection closed with error")
		}
	}

	h.log.Info().Str("session_id", id).Msg("session closed")
	conn.Close(status, reason)
}

// readLoop consumes frames in arrival order. Malformed frames are dropped;
// read errors and close frames end the session.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, id string, delivery chan<- core.Envelope) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			h.log.Debug().Str("session_id", id).Int("frame_type", int(typ)).Msg("ignoring non-text frame")
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Warn().Err(err).Str("session_id", id).Msg("malformed inbound frame dropped")
			continue
		}

		cmd, err := commandFromInbound(inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("session_id", id).Msg("undecodable inbound payload dropped")
			continue
		}

		for _, reply := range h.dispatcher.Dispatch(id, *cmd) {
			select {
			case delivery <- reply:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// writeLoop drains the delivery channel in FIFO order onto the wire.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, id string, delivery <-chan core.Envelope) error {
	for {
		select {
		case env := <-delivery:
			if err := wsjson.Write(ctx, conn, outboundFromEnvelope(env)); err != nil {
				h.log.Warn().Err(err).Str("session_id", id).Msg("write ws envelope")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
