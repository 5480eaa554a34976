package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/repository"
)

type TransactionHandler struct {
	repo *repository.BankTransactionRepository
}

func NewTransactionHandler(repo *repository.BankTransactionRepository) *TransactionHandler {
	return &TransactionHandler{repo: repo}
}

// Search lists ledger rows filtered by amount, date and description.
func (h *TransactionHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	filter := repository.SearchFilter{
		Description: c.Query("description_contains"),
		Date:        c.Query("date"),
		DateFrom:    c.Query("date_from"),
		DateTo:      c.Query("date_to"),
		Limit:       limit,
	}

	for _, p := range []struct {
		name string
		dest **decimal.Decimal
	}{
		{"amount", &filter.Amount},
		{"min_amount", &filter.MinAmount},
		{"max_amount", &filter.MaxAmount},
	} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + p.name})
			return
		}
		*p.dest = &d
	}

	txs, err := h.repo.Search(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": txs, "count": len(txs)})
}
