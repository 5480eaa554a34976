package handler

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/config"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/ingest"
)

type WebhookHandler struct {
	cfg *config.Config
	svc *ingest.Service
	log zerolog.Logger
}

func NewWebhookHandler(cfg *config.Config, svc *ingest.Service, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, svc: svc, log: log}
}

// BankAlert receives transaction alerts from the bank. The IP allow
// list is the only check that produces a non-200 response; everything
// past it is answered with the bank's acknowledgement envelope.
func (h *WebhookHandler) BankAlert(c *gin.Context) {
	if !h.cfg.IPCheckDisabled() {
		ip := clientIP(c)
		if ip == "" || !h.cfg.IPAllowed(ip) {
			h.log.Warn().Str("ip", ip).Msg("bank alert blocked by IP allow list")
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied. IP address not whitelisted."})
			return
		}
	}

	var alert ingest.Alert
	if err := c.ShouldBindJSON(&alert); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"statusCode": "01",
			"statusDesc": "fail",
			"id":         "",
			"stan":       "",
		})
		return
	}

	resp := h.svc.Handle(c.GetHeader("Authorization"), &alert)
	c.JSON(http.StatusOK, resp)
}

// clientIP prefers proxy headers because the service runs behind a
// reverse proxy in production.
func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if real := c.GetHeader("X-Real-Ip"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(c.Request.RemoteAddr)
	}
	return host
}
