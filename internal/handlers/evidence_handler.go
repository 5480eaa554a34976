package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/verification"
)

type EvidenceHandler struct {
	svc *verification.Service
	log zerolog.Logger
}

func NewEvidenceHandler(svc *verification.Service, log zerolog.Logger) *EvidenceHandler {
	return &EvidenceHandler{svc: svc, log: log}
}

// Upload stores a donation evidence file ahead of verification. A
// donation id that already has evidence gets a soft error so the
// uploading system does not retry the delivery.
func (h *EvidenceHandler) Upload(c *gin.Context) {
	donationID := c.PostForm("donation_id")
	if donationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "donation_id required"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	rec, err := h.svc.StoreInboxEvidence(donationID, header.Filename, file)
	if errors.Is(err, verification.ErrDuplicateDonation) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "error",
			"message": fmt.Sprintf("donation_id '%s' already exists", donationID),
		})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("donation_id", donationID).Msg("evidence upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"message":       "File uploaded successfully",
		"screenshot_id": rec.ID,
		"file_path":     rec.StoragePath,
	})
}
