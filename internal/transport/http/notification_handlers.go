package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/teamflow/teamflow-cli/internal/store"
)

// FeedHandlers provides HTTP handlers for notifications and file uploads.
type FeedHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewFeedHandlers creates a new feed handlers instance.
func NewFeedHandlers(st store.Store, logger *zerolog.Logger) *FeedHandlers {
	return &FeedHandlers{
		store: st,
		log:   logger,
	}
}

// ListNotifications returns the user's notification feed, newest first.
// GET /api/notifications
func (h *FeedHandlers) ListNotifications(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}

	items, err := h.store.ListNotifications(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list notifications")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		response = append(response, notificationToResponse(n))
	}
	c.JSON(http.StatusOK, response)
}

// UploadFile records a multipart upload in form field "file". Only metadata is kept.
// POST /api/projects/:id/files
func (h *FeedHandlers) UploadFile(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	projectID, ok := requireMember(c, h.store, h.log, uid)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		h.log.Debug().Err(err).Msg("invalid upload")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file is required"})
		return
	}

	file := &store.File{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      header.Filename,
		Size:      header.Size,
	}
	if err := h.store.SaveFile(c.Request.Context(), file); err != nil {
		h.log.Error().Err(err).Int64("project_id", projectID).Msg("failed to save file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("file_id", file.ID).Int64("size", file.Size).Msg("file uploaded")
	c.JSON(http.StatusCreated, fileToResponse(file))
}
