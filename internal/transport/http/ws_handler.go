package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/teamflow/teamflow-cli/internal/auth"
	"github.com/teamflow/teamflow-cli/internal/core"
	"github.com/teamflow/teamflow-cli/internal/proto"
	"github.com/teamflow/teamflow-cli/internal/store"
)

var errDropped = errors.New("connection dropped by server")

// WSOptions tunes realtime behaviour.
type WSOptions struct {
	// EchoToSender also delivers relayed messages back to the connection that sent them.
	EchoToSender bool
	// SendRateLimit caps send-message frames per connection per minute; 0 disables it.
	SendRateLimit int
	// MaxMessageBytes caps inbound frame size.
	MaxMessageBytes int64
}

// WSHandler upgrades HTTP connections and bridges them to the hub.
type WSHandler struct {
	hub   *Hub
	auth  *auth.Service
	store wsStore
	opts  WSOptions
	log   *zerolog.Logger
}

type wsStore interface {
	store.ProjectStore
	store.MessageStore
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *Hub, authService *auth.Service, st wsStore, opts WSOptions, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, auth: authService, store: st, opts: opts, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		token = r.URL.Query().Get("token")
	}
	claims, err := h.auth.ValidateToken(token)
	if token == "" || err != nil {
		h.log.Debug().Err(err).Msg("ws handshake rejected")
		stdhttp.Error(w, `{"error":"invalid token"}`, stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	client := newWSClient(uuid.NewString(), claims.UserID(), claims.Name)
	h.hub.register(client)
	defer h.hub.unregister(client)

	h.log.Debug().Str("client_id", client.id).Int64("user_id", client.userID).Msg("ws connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel()
	<-errCh

	if errors.Is(err, errDropped) {
		h.log.Debug().Str("client_id", client.id).Msg("ws connection dropped")
		_ = conn.CloseNow()
		return
	}

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			status = websocket.StatusInternalError
			reason = "internal error"
			h.log.Warn().Err(err).Str("client_id", client.id).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *wsClient) error {
	limiter := newRateLimiter(h.opts.SendRateLimit)
	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return err
		}

		if perr := h.handleFrame(ctx, client, frame, limiter); perr != nil {
			h.reply(client, proto.EventError, perr)
		}
	}
}

func (h *WSHandler) handleFrame(ctx context.Context, client *wsClient, frame proto.Frame, limiter *rateLimiter) *proto.Error {
	switch frame.Event {
	case proto.EventJoinProject:
		var join proto.JoinData
		if err := json.Unmarshal(frame.Data, &join); err != nil || join.ProjectID == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Message: "projectId is required"}
		}
		if perr := h.checkMember(ctx, client, join.ProjectID); perr != nil {
			return perr
		}
		if h.hub.join(client, join.ProjectID) {
			h.log.Debug().Str("client_id", client.id).Str("project_id", join.ProjectID).Msg("joined project room")
		}
		return nil

	case proto.EventLeaveProject:
		var leave proto.JoinData
		if err := json.Unmarshal(frame.Data, &leave); err != nil || leave.ProjectID == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Message: "projectId is required"}
		}
		h.hub.leave(client, leave.ProjectID)
		return nil

	case proto.EventSendMessage:
		var send proto.SendMessageData
		if err := json.Unmarshal(frame.Data, &send); err != nil || send.ProjectID == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Message: "projectId is required"}
		}
		if !h.hub.inRoom(client, send.ProjectID) {
			return &proto.Error{Code: core.ErrCodeNotInRoom, Message: "join the project before sending"}
		}
		if !limiter.allow() {
			return &proto.Error{Code: core.ErrCodeRateLimited, Message: "too many messages"}
		}

		msg, perr := h.storedMessage(ctx, client, send)
		if perr != nil {
			return perr
		}
		out, err := proto.NewFrame(proto.EventNewMessage, msg)
		if err != nil {
			return &proto.Error{Code: core.ErrCodeBadRequest, Message: "invalid message"}
		}
		skip := client
		if h.opts.EchoToSender {
			skip = nil
		}
		n := h.hub.Broadcast(send.ProjectID, out, skip)
		h.log.Debug().Str("project_id", send.ProjectID).Str("message_id", msg.ID).Int("recipients", n).Msg("relayed message")
		return nil

	default:
		return &proto.Error{Code: core.ErrCodeBadRequest, Message: "unknown event " + frame.Event}
	}
}

// storedMessage resolves a relay request to the persisted row. Only the
// sender of a message saved in that project may relay it.
func (h *WSHandler) storedMessage(ctx context.Context, client *wsClient, send proto.SendMessageData) (proto.Message, *proto.Error) {
	invalid := &proto.Error{Code: core.ErrCodeBadRequest, Message: "message is not yours to relay"}
	id, ok := parseID(send.Message.ID)
	if !ok {
		return proto.Message{}, invalid
	}
	stored, err := h.store.GetMessage(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.log.Error().Err(err).Str("message_id", send.Message.ID).Msg("failed to load relayed message")
		}
		return proto.Message{}, invalid
	}
	if stored.SenderID != client.userID || stored.ProjectID == nil || formatID(*stored.ProjectID) != send.ProjectID {
		h.log.Warn().Int64("user_id", client.userID).Str("message_id", send.Message.ID).Msg("rejected relay of foreign message")
		return proto.Message{}, invalid
	}
	return messageToProto(stored), nil
}

func (h *WSHandler) checkMember(ctx context.Context, client *wsClient, room string) *proto.Error {
	projectID, ok := parseID(room)
	if !ok {
		return &proto.Error{Code: core.ErrCodeNotFound, Message: "project not found"}
	}
	member, err := h.store.IsMember(ctx, projectID, client.userID)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", room).Msg("failed to check membership")
		return &proto.Error{Code: core.ErrCodeBadRequest, Message: "membership check failed"}
	}
	if !member {
		return &proto.Error{Code: core.ErrCodeUnauthorized, Message: "not a member of this project"}
	}
	return nil
}

// reply queues a frame for client only.
func (h *WSHandler) reply(client *wsClient, event string, data any) {
	frame, err := proto.NewFrame(event, data)
	if err != nil {
		return
	}
	select {
	case client.send <- frame:
	default:
		client.disconnect()
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *wsClient) error {
	for {
		select {
		case frame := <-client.send:
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				h.log.Warn().Err(err).Str("client_id", client.id).Msg("write ws frame")
				return err
			}
		case <-client.drop:
			return errDropped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
