package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/teamflow/teamflow-cli/internal/store"
)

// MessageHandlers provides HTTP handlers for project and direct messages.
type MessageHandlers struct {
	store        store.Store
	historyLimit int
	log          *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
// historyLimit caps how many messages a history fetch returns; 0 means all.
func NewMessageHandlers(st store.Store, historyLimit int, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store:        st,
		historyLimit: historyLimit,
		log:          logger,
	}
}

// SendMessageRequest represents a message post body.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func bindContent(c *gin.Context) (string, bool) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return "", false
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content is required"})
		return "", false
	}
	return content, true
}

// ListProjectMessages returns a project's history, oldest first.
// GET /api/projects/:id/messages
func (h *MessageHandlers) ListProjectMessages(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	projectID, ok := requireMember(c, h.store, h.log, uid)
	if !ok {
		return
	}

	messages, err := h.store.ListProjectMessages(c.Request.Context(), projectID, h.historyLimit)
	if err != nil {
		h.log.Error().Err(err).Int64("project_id", projectID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, messagesToProto(messages))
}

// SendProjectMessage persists a project message. Room members learn about it
// when the sender relays it over the realtime channel.
// POST /api/projects/:id/messages
func (h *MessageHandlers) SendProjectMessage(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	projectID, ok := requireMember(c, h.store, h.log, uid)
	if !ok {
		return
	}
	content, ok := bindContent(c)
	if !ok {
		return
	}

	msg, err := h.store.SaveProjectMessage(c.Request.Context(), projectID, uid, content)
	if err != nil {
		h.log.Error().Err(err).Int64("project_id", projectID).Msg("failed to save message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Debug().Int64("message_id", msg.ID).Int64("project_id", projectID).Msg("project message saved")
	c.JSON(http.StatusCreated, messageToProto(msg))
}

// requirePeer resolves the :userId path parameter to an existing user.
func (h *MessageHandlers) requirePeer(c *gin.Context) (*store.User, bool) {
	peerID, ok := parseID(c.Param("userId"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return nil, false
	}
	peer, err := h.store.GetUserByID(c.Request.Context(), peerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return nil, false
		}
		h.log.Error().Err(err).Int64("peer_id", peerID).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return nil, false
	}
	return peer, true
}

// ListDirectMessages returns the thread with a peer and marks it read.
// GET /api/messages/direct/:userId
func (h *MessageHandlers) ListDirectMessages(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	peer, ok := h.requirePeer(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	messages, err := h.store.ListDirectMessages(ctx, uid, peer.ID, h.historyLimit)
	if err != nil {
		h.log.Error().Err(err).Int64("peer_id", peer.ID).Msg("failed to list direct messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if err := h.store.MarkDirectRead(ctx, uid, peer.ID); err != nil {
		h.log.Warn().Err(err).Int64("peer_id", peer.ID).Msg("failed to mark thread read")
	}
	c.JSON(http.StatusOK, messagesToProto(messages))
}

// SendDirectMessage persists a direct message and notifies the recipient.
// POST /api/messages/direct/:userId
func (h *MessageHandlers) SendDirectMessage(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	peer, ok := h.requirePeer(c)
	if !ok {
		return
	}
	content, ok := bindContent(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	msg, err := h.store.SaveDirectMessage(ctx, uid, peer.ID, content)
	if err != nil {
		h.log.Error().Err(err).Int64("peer_id", peer.ID).Msg("failed to save direct message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if peer.ID != uid {
		if _, err := h.store.CreateNotification(ctx, peer.ID, "message", fmt.Sprintf("New message from %s", msg.SenderName)); err != nil {
			h.log.Warn().Err(err).Int64("user_id", peer.ID).Msg("failed to create notification")
		}
	}

	c.JSON(http.StatusCreated, messageToProto(msg))
}

// ListConversations summarises the user's direct threads.
// GET /api/messages/conversations
func (h *MessageHandlers) ListConversations(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}

	convs, err := h.store.ListConversations(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list conversations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ConversationResponse, 0, len(convs))
	for _, conv := range convs {
		response = append(response, conversationToResponse(conv))
	}
	c.JSON(http.StatusOK, response)
}

