package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/chanderlud/audio-chat/av"
	"github.com/chanderlud/audio-chat/contact"
	"github.com/chanderlud/audio-chat/file"
	"github.com/chanderlud/audio-chat/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// ShutdownTimeout bounds a graceful HTTP shutdown.
const ShutdownTimeout = 5 * time.Second

// Controller is the client surface the routes drive.
type Controller interface {
	Status() av.Status
	Contacts() []*contact.Contact
	AddContact(nickname, host string, port uint16, secret string) (*contact.Contact, error)
	RemoveContact(nickname string) error
	InitiateCall(ctx context.Context, nickname string) error
	EndCall() error
	AudioTest() error
	SendMessage(text []byte) error
	SendFile(ctx context.Context, path string) (*file.Transfer, error)
	Transfers() []*file.Transfer
	StartScreenshare(ctx context.Context) error
	EndScreenshare() error
	SetMuted(muted bool)
	SetDeafened(deafened bool)
}

// Server is the local HTTP surface.
type Server struct {
	ctrl   Controller
	hub    *Hub
	router *gin.Engine
}

// NewServer builds the router. reg may be nil to omit /metrics.
func NewServer(ctrl Controller, hub *Hub, reg *prometheus.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		ctrl:   ctrl,
		hub:    hub,
		router: gin.New(),
	}
	s.router.Use(loggingMiddleware(), gin.Recovery())
	s.setupRoutes(reg)
	return s
}

func (s *Server) setupRoutes(reg *prometheus.Registry) {
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/events", gin.WrapF(s.hub.ServeWS))
	s.router.GET("/transfers", s.handleTransfers)

	contacts := s.router.Group("/contacts")
	{
		contacts.GET("", s.handleListContacts)
		contacts.POST("", s.handleAddContact)
		contacts.DELETE("/:nickname", s.handleRemoveContact)
	}

	call := s.router.Group("/call")
	{
		call.POST("/test", s.handleAudioTest)
		call.POST("/answer", s.handleAnswer)
		call.POST("/messages", s.handleSendMessage)
		call.POST("/files", s.handleSendFile)
		call.POST("/screenshare", s.handleStartScreenshare)
		call.DELETE("/screenshare", s.handleEndScreenshare)
		call.PUT("/mute", s.handleMute)
		call.PUT("/deafen", s.handleDeafen)
		call.POST("/:nickname", s.handleCall)
		call.DELETE("", s.handleEndCall)
	}

	if reg != nil {
		s.router.GET("/metrics", gin.WrapH(metrics.Handler(reg)))
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve answers requests on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"function": "Server.Serve",
			"addr":     ln.Addr().String(),
		}).Info("API server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ListenAndServe binds addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logrus.WithFields(logrus.Fields{
			"function": "api",
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("Request handled")
	}
}
