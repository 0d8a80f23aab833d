package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/realtime"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/service"
)

// Limiter is a per-key request budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Limit() int
	Window() time.Duration
}

type Dependencies struct {
	Logger  *zap.Logger
	Addr    string
	Engine  *service.Engine
	Devices *service.DeliveryRegistry

	// WS serves GET /v1/ws. Nil disables the route.
	WS *realtime.WSHandler

	// Limiter is optional; nil disables rate limiting.
	Limiter Limiter

	// Ready backs GET /healthz. Nil always reports ok.
	Ready func(ctx context.Context) error
}

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	router     *gin.Engine
	engine     *service.Engine
	devices    *service.DeliveryRegistry
	ws         *realtime.WSHandler
	ready      func(ctx context.Context) error
}

func NewServer(d Dependencies) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		logger:  logger,
		router:  router,
		engine:  d.Engine,
		devices: d.Devices,
		ws:      d.WS,
		ready:   d.Ready,
	}

	router.GET("/healthz", s.handleHealth)

	v1 := router.Group("/v1", requireActor())
	if d.Limiter != nil {
		v1.Use(rateLimit(d.Limiter, logger))
	}

	visitors := v1.Group("/visitors")
	visitors.POST("", s.handleCreateVisitor)
	visitors.POST("/guest-pass", s.handleCreatePass)
	visitors.POST("/redeem", s.handleRedeem)
	visitors.GET("/lookup", s.handleLookup)
	visitors.GET("/pending", s.handlePending)
	visitors.GET("/pending-count", s.handlePendingCount)
	visitors.DELETE("/denied", s.handlePurgeDenied)
	visitors.GET("/:id", s.handleGetVisitor)
	visitors.GET("/:id/history", s.handleHistory)
	visitors.POST("/:id/respond", s.handleRespond)
	visitors.POST("/:id/guard-respond", s.handleGuardRespond)

	visits := v1.Group("/visits")
	visits.POST("/checkin", s.handleCheckIn)
	visits.POST("/checkout", s.handleCheckOut)
	visits.GET("/:request_id", s.handleGetVisit)

	v1.GET("/societies/:id/expected-visitors", s.handleExpected)

	v1.POST("/devices", s.handleRegisterDevice)
	v1.DELETE("/devices", s.handleUnregisterDevice)
	v1.GET("/devices", s.handleListDevices)
	v1.GET("/notifications", s.handleNotifications)

	if d.WS != nil {
		// Browsers cannot set headers on a WebSocket upgrade, so the socket
		// also accepts the actor as query parameters.
		router.GET("/v1/ws", requireActorOrQuery(), s.handleWS)
	}

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.ready != nil {
		if err := s.ready(c.Request.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeError(c, http.StatusServiceUnavailable, "unavailable", "database unreachable")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleWS(c *gin.Context) {
	s.ws.Serve(c.Writer, c.Request, actorFrom(c))
}
