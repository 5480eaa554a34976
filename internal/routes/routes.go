package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/config"
	handler "github.com/raoumer8387/alkhidmat-transaction-bot/internal/handlers"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/jobs"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/repository"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/ingest"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/matching"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/sheetsync"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/verification"
)

// RegisterRoutes wires repositories, services and handlers onto the
// engine. The reconciler may be nil when no sheet source is configured;
// sync triggers then report the missing credentials.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config, queue jobs.Queue, reconciler *sheetsync.Reconciler, log zerolog.Logger) {
	txRepo := repository.NewBankTransactionRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)

	ingestSvc := ingest.NewService(cfg, txRepo, queue, log)
	engine := matching.NewEngine(cfg.OrganizationName, cfg.ReceiverLast4)
	verifySvc := verification.NewService(engine, txRepo, verificationRepo, evidenceRepo, cfg.UploadsDir, log)

	webhookHandler := handler.NewWebhookHandler(cfg, ingestSvc, log)
	verifyHandler := handler.NewVerificationHandler(verifySvc, log)
	txHandler := handler.NewTransactionHandler(txRepo)
	evidenceHandler := handler.NewEvidenceHandler(verifySvc, log)
	healthHandler := handler.NewHealthHandler(cfg)

	r.GET("/health", healthHandler.Check)

	api := r.Group("/api")
	api.POST("/bank-alert", webhookHandler.BankAlert)
	api.POST("/verifications", verifyHandler.Verify)
	api.GET("/verifications", verifyHandler.List)
	api.GET("/transactions", txHandler.Search)
	api.POST("/evidence", evidenceHandler.Upload)

	syncHandler := handler.NewSyncHandler(cfg, reconciler, log)
	api.POST("/sync", syncHandler.Trigger)
}
