package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/config"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/sheetsync"
)

type SyncHandler struct {
	cfg        *config.Config
	reconciler *sheetsync.Reconciler
	log        zerolog.Logger
}

// NewSyncHandler wires the manual sync trigger. The reconciler may be
// nil when no sheet source is configured; triggers then report the
// missing credentials instead of failing.
func NewSyncHandler(cfg *config.Config, reconciler *sheetsync.Reconciler, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{cfg: cfg, reconciler: reconciler, log: log}
}

// Trigger runs a sheet sync on demand. Manual triggers bypass the
// interval guard unless force=false is passed explicitly. Source and
// credential failures come back as non-fatal messages; only storage
// failures turn into server errors.
func (h *SyncHandler) Trigger(c *gin.Context) {
	if h.reconciler == nil {
		c.JSON(http.StatusOK, gin.H{
			"synced":  false,
			"message": fmt.Sprintf("Service account file not found at %s", h.cfg.ServiceAccountFile),
		})
		return
	}

	force := c.DefaultQuery("force", "true") != "false"

	synced, msg, err := h.reconciler.Sync(c.Request.Context(), force)
	if err != nil {
		var srcErr *sheetsync.SourceUnavailableError
		if errors.As(err, &srcErr) {
			h.log.Warn().Err(srcErr.Err).Msg("sheet source unreachable")
			c.JSON(http.StatusOK, gin.H{"synced": false, "message": srcErr.Error()})
			return
		}
		h.log.Error().Err(err).Msg("manual sheet sync failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": synced, "message": msg})
}
