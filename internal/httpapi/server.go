// Package httpapi exposes a deployed stack over an admin HTTP surface.
//
// Ownership boundary:
// - routing, bearer auth on mutating routes, and error-to-status mapping
//
// - journaling receipts, reports and env events after each committed call
//
// The simulated msg.sender of every mutating call is the "caller" field of
// the request body. The bearer token gates the API itself.
package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/spikectl/internal/auth"
	"github.com/danmuck/spikectl/internal/chain"
	"github.com/danmuck/spikectl/internal/deploy"
	"github.com/danmuck/spikectl/internal/journal"
	"github.com/danmuck/spikectl/internal/observability"
	"github.com/danmuck/spikectl/internal/spiker"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Journal is the persistence surface the server writes through.
type Journal interface {
	RecordSpike(ctx context.Context, receipt spiker.SpikeReceipt) (string, error)
	RecordSettlement(ctx context.Context, report spiker.SettlementReport, at time.Time) (string, error)
	RecordEvents(ctx context.Context, events []chain.Event) (int, error)
	ListSpikes(ctx context.Context, limit int) ([]journal.SpikeEntry, error)
	ListSettlements(ctx context.Context, limit int) ([]journal.SettlementEntry, error)
}

type Config struct {
	Name        string
	Addr        string
	CorsOrigins []string
	Auth        auth.Validator
	Journal     Journal
	Logger      zerolog.Logger
}

type Server struct {
	name     string
	addr     string
	stack    *deploy.Stack
	auth     auth.Validator
	journal  Journal
	logger   zerolog.Logger
	router   *gin.Engine
	appeared time.Time

	cursorMu sync.Mutex
	cursor   int
}

func New(stack *deploy.Stack, cfg Config) *Server {
	observability.RegisterMetrics()
	if cfg.Name == "" {
		cfg.Name = "spikectl"
	}
	if cfg.Auth == nil {
		cfg.Auth = auth.StaticToken{}
	}
	logger := cfg.Logger.With().Str("component", "httpapi").Logger()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		name:     cfg.Name,
		addr:     cfg.Addr,
		stack:    stack,
		auth:     cfg.Auth,
		journal:  cfg.Journal,
		logger:   logger,
		router:   r,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve blocks until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("admin api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.name,
		})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   s.stack != nil,
			"service": s.name,
			"journal": s.journal != nil,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/pool", s.handlePool)
	r.GET("/notes/:owner", s.handleNotes)
	r.GET("/journal/spikes", s.handleListSpikes)
	r.GET("/journal/settlements", s.handleListSettlements)

	admin := r.Group("/", s.requireToken())
	admin.POST("/controller/propose", s.handlePropose)
	admin.POST("/controller/accept", s.handleAccept)
	admin.POST("/spike", s.handleSpike)
	admin.POST("/settle", s.handleSettle)
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.CheckHeader(s.auth, c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// syncEvents journals every env event since the last sync.
func (s *Server) syncEvents(ctx context.Context) {
	if s.journal == nil {
		return
	}
	s.cursorMu.Lock()
	defer s.cursorMu.Unlock()
	events, next := s.stack.Env.EventsSince(s.cursor)
	if _, err := s.journal.RecordEvents(ctx, events); err != nil {
		s.logger.Error().Err(err).Int("events", len(events)).Msg("journal events failed")
		return
	}
	s.cursor = next
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
