package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by the patient store and the event broker
type Pinger interface {
	Ping(ctx context.Context) error
}

type check struct {
	name   string
	pinger Pinger
}

type Handler struct {
	checks []check
}

// NewHandler reports ready while the database answers pings
func NewHandler(store Pinger) *Handler {
	return &Handler{
		checks: []check{{name: "database", pinger: store}},
	}
}

// WithCheck adds a dependency that must also answer pings, checked in order
func (h *Handler) WithCheck(name string, p Pinger) *Handler {
	h.checks = append(h.checks, check{name: name, pinger: p})
	return h
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	for _, chk := range h.checks {
		if err := chk.pinger.Ping(ctx); err != nil {
			zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("check", chk.name).Msg("Readiness check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "DOWN",
				"reason": chk.name + " connection failed",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
