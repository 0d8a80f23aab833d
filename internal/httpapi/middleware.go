package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
	actorKey        = "actor"
)

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if a, ok := c.Get(actorKey); ok {
			fields = append(fields, zap.String("actor", a.(types.Actor).ID))
		}
		if len(c.Errors) > 0 {
			logger.Error("request failed", append(fields, zap.String("error", c.Errors.String()))...)
			return
		}
		logger.Info("request", fields...)
	}
}

// requireActor trusts the identity headers set by the authenticating proxy
// in front of this server.
func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerActorID))
		role := types.Role(strings.TrimSpace(c.GetHeader(headerActorRole)))
		setActor(c, id, role)
	}
}

func requireActorOrQuery() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerActorID))
		role := types.Role(strings.TrimSpace(c.GetHeader(headerActorRole)))
		if id == "" {
			id = strings.TrimSpace(c.Query("actor_id"))
			role = types.Role(strings.TrimSpace(c.Query("actor_role")))
		}
		setActor(c, id, role)
	}
}

func setActor(c *gin.Context, id string, role types.Role) {
	if id == "" || !role.Valid() || role == types.RoleSystem {
		writeError(c, http.StatusUnauthorized, "unauthenticated", "actor id and role are required")
		c.Abort()
		return
	}
	c.Set(actorKey, types.Actor{ID: id, Role: role})
	c.Next()
}

func actorFrom(c *gin.Context) types.Actor {
	a, _ := c.Get(actorKey)
	actor, _ := a.(types.Actor)
	return actor
}

// rateLimit keys the budget by actor, falling back to the client address.
func rateLimit(l Limiter, logger *zap.Logger) gin.HandlerFunc {
	limit := strconv.Itoa(l.Limit())
	window := l.Window().String()
	return func(c *gin.Context) {
		key := actorFrom(c).ID
		if key == "" {
			key = c.ClientIP()
		}
		allowed, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			// Fail open.
			logger.Error("rate limiter unavailable", zap.Error(err), zap.String("key", key))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Duration", window)

		if !allowed {
			logger.Warn("rate limit exceeded", zap.String("key", key))
			writeError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
