package http

import (
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/teamflow/teamflow-cli/internal/auth"
	"github.com/teamflow/teamflow-cli/internal/store"
)

// Options configures the router.
type Options struct {
	WS WSOptions
	// HistoryLimit caps how many messages a history fetch returns; 0 means all.
	HistoryLimit int
}

// NewRouter serves /ws on a plain mux and everything else through gin.
// The websocket upgrade hijacks the connection, which gin's writer refuses
// once the 101 status is out.
func NewRouter(hub *Hub, authService *auth.Service, st store.Store, opts Options, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, authService, st, opts.WS, logger))
	mux.Handle("/", newRESTRouter(hub, authService, st, opts, logger))
	return mux
}

func newRESTRouter(hub *Hub, authService *auth.Service, st store.Store, opts Options, logger *zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	authHandlers := NewAuthHandlers(authService, st, logger)
	projectHandlers := NewProjectHandlers(st, hub, logger)
	messageHandlers := NewMessageHandlers(st, opts.HistoryLimit, logger)
	feedHandlers := NewFeedHandlers(st, logger)

	api := router.Group("/api")
	api.POST("/auth/register", authHandlers.Register)
	api.POST("/auth/login", authHandlers.Login)

	protected := api.Group("")
	protected.Use(AuthMiddleware(authService, logger))
	protected.GET("/users/me", authHandlers.Me)

	protected.GET("/projects", projectHandlers.ListProjects)
	protected.GET("/projects/:id/tasks", projectHandlers.ListTasks)
	protected.POST("/projects/:id/tasks", projectHandlers.CreateTask)
	protected.GET("/projects/:id/messages", messageHandlers.ListProjectMessages)
	protected.POST("/projects/:id/messages", messageHandlers.SendProjectMessage)
	protected.POST("/projects/:id/files", feedHandlers.UploadFile)

	protected.GET("/messages/direct/:userId", messageHandlers.ListDirectMessages)
	protected.POST("/messages/direct/:userId", messageHandlers.SendDirectMessage)
	protected.GET("/messages/conversations", messageHandlers.ListConversations)

	protected.GET("/notifications", feedHandlers.ListNotifications)

	return router
}

// NewServer wraps handler in an HTTP server listening on addr.
func NewServer(addr string, handler stdhttp.Handler, readHeaderTimeout time.Duration) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	_, _ = fmt.Fprint(c.Writer, "ok")
}
