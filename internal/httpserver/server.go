// Package httpserver exposes the chat and lead routes over gin for
// deployments that run as a long-lived process instead of on Lambda.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"leadgen-agent/handler"
	"leadgen-agent/internal/logging"
	"leadgen-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type Config struct {
	Addr           string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	Development    bool
}

type Server struct {
	engine  *gin.Engine
	srv     *http.Server
	limiter *IPRateLimiter
	chat    handler.ChatUseCase
	leads   handler.LeadUseCase
	log     *slog.Logger
}

func New(cfg Config, chat handler.ChatUseCase, leads handler.LeadUseCase, log *slog.Logger) (*Server, error) {
	if chat == nil || leads == nil {
		return nil, errors.New("httpserver: use cases must not be nil")
	}
	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 1
	}

	s := &Server{
		engine:  gin.New(),
		limiter: NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, log),
		chat:    chat,
		leads:   leads,
		log:     logging.OrDefault(log),
	}
	s.engine.Use(gin.Recovery(), s.correlation(), s.requestLogger())
	s.engine.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, handler.StatusResponse{Status: "ok"})
	})
	api := s.engine.Group("/api", s.limiter.RateLimit())
	api.POST("/chat", s.handleChat)
	api.POST("/estimate", s.handleEstimate)
	api.POST("/call-conversion", s.handleCall)

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go s.pruneLimiters(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) pruneLimiters(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.prune()
		}
	}
}

func (s *Server) handleChat(c *gin.Context) {
	var req handler.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, invalidJSON())
		return
	}
	out, err := s.chat.Chat(c.Request.Context(), handler.ChatInputFrom(req))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.ChatResponse{Reply: out.Reply, SessionID: out.SessionID, IsHighValue: out.IsHighValue})
}

func (s *Server) handleEstimate(c *gin.Context) {
	var req handler.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, invalidJSON())
		return
	}
	out, err := s.leads.SubmitEstimate(c.Request.Context(), handler.EstimateInputFrom(req))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, handler.EstimateResponse{Status: "received", LeadID: out.LeadID})
}

func (s *Server) handleCall(c *gin.Context) {
	var req handler.CallRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, invalidJSON())
			return
		}
	}
	s.leads.RecordCall(c.Request.Context(), req.Page)
	c.JSON(http.StatusAccepted, handler.StatusResponse{Status: "recorded"})
}

func (s *Server) writeError(c *gin.Context, err error) {
	status, body := handler.ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context(), s.log).Error("request failed", "err", err)
	}
	c.JSON(status, body)
}

func (s *Server) correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(correlationHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(correlationHeader, id)
		c.Request = c.Request.WithContext(logging.WithCorrelationID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.FromContext(c.Request.Context(), s.log).Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", correlationHeader},
		ExposeHeaders: []string{correlationHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func invalidJSON() handler.ErrorResponse {
	return handler.ErrorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_json"}
}
