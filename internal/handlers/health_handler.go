package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/config"
)

const serviceName = "alkhidmat-transaction-bot"

type HealthHandler struct {
	cfg *config.Config
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{cfg: cfg}
}

// Check reports configuration state without touching the database, so
// it stays fast and never fails while dependencies are down.
func (h *HealthHandler) Check(c *gin.Context) {
	status := "ok"
	missing := h.cfg.MissingSecrets()
	if missing == nil {
		missing = []string{}
	}
	if len(missing) > 0 {
		status = "misconfigured"
	}

	database := "configured"
	if h.cfg.DatabaseURL == "" {
		database = "not_configured"
		if status == "ok" {
			status = "degraded"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"service":      serviceName,
		"configured":   len(missing) == 0,
		"missing_vars": missing,
		"database":     database,
	})
}
