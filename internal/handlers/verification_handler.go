package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/repository"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/matching"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/verification"
)

type VerificationHandler struct {
	svc *verification.Service
	log zerolog.Logger
}

func NewVerificationHandler(svc *verification.Service, log zerolog.Logger) *VerificationHandler {
	return &VerificationHandler{svc: svc, log: log}
}

// Verify takes a multipart form with a "slip" JSON field holding the
// extracted slip data and an optional "screenshot" file, matches the
// slip against the ledger and records the outcome.
func (h *VerificationHandler) Verify(c *gin.Context) {
	slipJSON := c.PostForm("slip")
	if slipJSON == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slip field required"})
		return
	}

	var slip matching.Slip
	if err := json.Unmarshal([]byte(slipJSON), &slip); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slip payload"})
		return
	}

	record, _, err := h.svc.Verify(&slip)
	if err != nil {
		h.log.Error().Err(err).Msg("slip verification failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"status":        record.Status,
		"checks_passed": record.ChecksPassed,
		"checks_failed": record.ChecksFailed,
		"verification":  record,
	}

	if file, header, err := c.Request.FormFile("screenshot"); err == nil {
		defer file.Close()
		evidence, evErr := h.svc.AttachEvidence(record.ID, record.Status, header.Filename, file)
		if evErr != nil {
			h.log.Error().Err(evErr).Msg("evidence storage failed")
			resp["evidence_error"] = evErr.Error()
		} else {
			resp["evidence"] = evidence
		}
	}

	c.JSON(http.StatusOK, resp)
}

// List returns stored verification results, newest first.
func (h *VerificationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	results, err := h.svc.List(repository.ListFilter{
		Status:    c.Query("status"),
		DonorName: c.Query("donor"),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
		Limit:     limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": results, "count": len(results)})
}
