package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/teamflow/teamflow-cli/internal/proto"
	"github.com/teamflow/teamflow-cli/internal/store"
)

// ProjectHandlers provides HTTP handlers for projects and their tasks.
type ProjectHandlers struct {
	store store.Store
	hub   *Hub
	log   *zerolog.Logger
}

// NewProjectHandlers creates a new project handlers instance.
func NewProjectHandlers(st store.Store, hub *Hub, logger *zerolog.Logger) *ProjectHandlers {
	return &ProjectHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// CreateTaskRequest represents the create task request body.
type CreateTaskRequest struct {
	Title      string `json:"title" binding:"required,min=1,max=200"`
	AssigneeID string `json:"assigneeId"`
}

// requireMember resolves the :id path parameter to a project the user belongs to.
// It writes the error response itself on failure.
func requireMember(c *gin.Context, st store.ProjectStore, logger *zerolog.Logger, uid int64) (int64, bool) {
	projectID, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "project not found"})
		return 0, false
	}

	ctx := c.Request.Context()
	if _, err := st.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "project not found"})
			return 0, false
		}
		logger.Error().Err(err).Int64("project_id", projectID).Msg("failed to load project")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return 0, false
	}

	member, err := st.IsMember(ctx, projectID, uid)
	if err != nil {
		logger.Error().Err(err).Int64("project_id", projectID).Msg("failed to check membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return 0, false
	}
	if !member {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this project"})
		return 0, false
	}
	return projectID, true
}

// ListProjects lists the projects of the authenticated user.
// GET /api/projects
func (h *ProjectHandlers) ListProjects(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}

	projects, err := h.store.ListUserProjects(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list projects")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		response = append(response, projectToResponse(p))
	}
	c.JSON(http.StatusOK, response)
}

// ListTasks lists a project's tasks.
// GET /api/projects/:id/tasks
func (h *ProjectHandlers) ListTasks(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	projectID, ok := requireMember(c, h.store, h.log, uid)
	if !ok {
		return
	}

	tasks, err := h.store.ListTasks(c.Request.Context(), projectID)
	if err != nil {
		h.log.Error().Err(err).Int64("project_id", projectID).Msg("failed to list tasks")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]proto.Task, 0, len(tasks))
	for _, t := range tasks {
		response = append(response, taskToProto(t))
	}
	c.JSON(http.StatusOK, response)
}

// CreateTask creates a task, pushes new-task to the project room and notifies
// the other members.
// POST /api/projects/:id/tasks
func (h *ProjectHandlers) CreateTask(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	projectID, ok := requireMember(c, h.store, h.log, uid)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var assignee *int64
	if req.AssigneeID != "" {
		id, ok := parseID(req.AssigneeID)
		if !ok {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid assignee"})
			return
		}
		assignee = &id
	}

	ctx := c.Request.Context()
	task, err := h.store.CreateTask(ctx, projectID, strings.TrimSpace(req.Title), assignee)
	if err != nil {
		h.log.Error().Err(err).Int64("project_id", projectID).Msg("failed to create task")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	payload := taskToProto(task)
	if frame, err := proto.NewFrame(proto.EventNewTask, payload); err == nil {
		h.hub.Broadcast(payload.ProjectID, frame, nil)
	}

	members, err := h.store.ListMembers(ctx, projectID)
	if err != nil {
		h.log.Warn().Err(err).Int64("project_id", projectID).Msg("failed to list members for notification")
	}
	for _, member := range members {
		if member == uid {
			continue
		}
		if _, err := h.store.CreateNotification(ctx, member, "task", fmt.Sprintf("New task: %s", task.Title)); err != nil {
			h.log.Warn().Err(err).Int64("user_id", member).Msg("failed to create notification")
		}
	}

	h.log.Info().Int64("task_id", task.ID).Int64("project_id", projectID).Msg("task created")
	c.JSON(http.StatusCreated, payload)
}
