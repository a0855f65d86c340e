package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ethics-review/internal/application/service"
	domainwf "github.com/garyjia/ethics-review/internal/domain/workflow"
)

const (
	actorHeader = "X-User-ID"
	actorKey    = "actor_user_id"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services       Services
	sweepThreshold time.Duration
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, sweepThreshold time.Duration, logger Logger) *Handlers {
	return &Handlers{
		services:       services,
		sweepThreshold: sweepThreshold,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// Version is reported by the health check
var Version = "dev"

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
		},
	})
}

// requireActor rejects API requests that do not name the acting user
func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(actorHeader))
		if actor == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing " + actorHeader + " header",
			})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// requireOverrideRole limits a route to holders of the override role
func (h *Handlers) requireOverrideRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := h.services.Users.GetRole(c.Request.Context(), c.GetString(actorKey))
		if err != nil {
			h.fail(c, err)
			c.Abort()
			return
		}
		override := h.services.Roles.Override()
		if override == "" || domainwf.NewRole(role) != override {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{
				Success: false,
				Error:   "administrator role required",
			})
			return
		}
		c.Next()
	}
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domainwf.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domainwf.ErrConflict), errors.Is(err, domainwf.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domainwf.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domainwf.ErrInvalidDecision),
		errors.Is(err, domainwf.ErrInvalidTemplate),
		errors.Is(err, service.ErrInvalidThreshold):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes an error response. Internal errors are logged and hidden.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		msg = "internal error"
	}
	c.JSON(status, Response{Success: false, Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

// durationQuery parses an optional Go duration such as "72h"
func durationQuery(c *gin.Context, key string, fallback time.Duration) (time.Duration, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		badRequest(c, "invalid "+key)
		return 0, false
	}
	return d, true
}
