package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MimeLyc/seabridge/internal/config"
	"github.com/MimeLyc/seabridge/internal/jobs"
	"github.com/MimeLyc/seabridge/internal/service"
	"github.com/MimeLyc/seabridge/pkg/log"
)

const requestIDHeader = "X-Request-ID"

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type Server struct {
	svc      *service.Service
	settings runtimeSettingsStore

	maxUploadBytes int64
	streamInterval time.Duration

	engine *gin.Engine
	server *http.Server
}

type Option func(*Server)

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

// WithMaxUploadBytes bounds multipart job uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithStreamInterval sets how often job event streams emit.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

func NewServer(svc *service.Service, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		svc:            svc,
		maxUploadBytes: jobs.DefaultMaxDocumentBytes,
		streamInterval: time.Second,
		engine:         gin.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.engine.Use(gin.Recovery(), requestID(), accessLog())

	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api")
	api.POST("/translate", s.handleTranslate)
	api.POST("/documents/translate", s.handleTranslateDocument)
	api.POST("/sms/segments", s.handleSmsSegments)

	api.GET("/jobs", s.handleListJobs)
	api.POST("/jobs", s.handleStartJob)
	api.GET("/jobs/:id", s.handleJobStatus)
	api.GET("/jobs/:id/events", s.handleJobEvents)
	api.DELETE("/jobs/:id/polling", s.handleStopPolling)
	api.GET("/jobs/:id/download", s.handleDownload)

	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings", s.handleUpdateSettings)
}

// requestID tags every request with an id, reusing the caller's when set.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("%s %s %d %s request_id=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.GetString("request_id"))
	}
}
