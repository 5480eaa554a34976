package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/config"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/db"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/jobs"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/logger"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/models"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/repository"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/routes"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/sheetsync"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/sheets"
)

func main() {
	log := logger.New()

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, relying on system env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}
	if missing := cfg.MissingSecrets(); len(missing) > 0 {
		log.Warn().Strs("missing", missing).Msg("webhook secrets unset, alerts will be rejected")
	}

	conn, err := db.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to database")
	}

	if err := conn.AutoMigrate(
		&models.BankTransaction{},
		&models.VerificationResult{},
		&models.EvidenceRecord{},
		&models.SyncState{},
	); err != nil {
		log.Fatal().Err(err).Msg("running migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue := jobs.NewInMemoryQueue(256, log)
	queue.Start(ctx, 4)

	reconciler := buildReconciler(ctx, cfg, conn, log)
	if reconciler != nil && cfg.SyncIntervalMinutes > 0 {
		interval := time.Duration(cfg.SyncIntervalMinutes) * time.Minute
		syncJob := jobs.NewRecurring("sheet-sync", interval, func(jobCtx context.Context) {
			if _, msg, err := reconciler.Sync(jobCtx, false); err != nil {
				log.Error().Err(err).Msg("scheduled sheet sync failed")
			} else if msg != "" {
				log.Info().Msg(msg)
			}
		}, log)
		go syncJob.Run(ctx)
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.DashboardOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, conn, cfg, queue, reconciler, log)

	srv := &http.Server{Addr: ":8080", Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Str("addr", srv.Addr).Msg("server started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	queue.Wait()
}

// buildReconciler returns nil when the Google service account file is
// absent, leaving the webhook-only mode functional.
func buildReconciler(ctx context.Context, cfg *config.Config, conn *gorm.DB, log zerolog.Logger) *sheetsync.Reconciler {
	if _, err := os.Stat(cfg.ServiceAccountFile); err != nil {
		log.Warn().Str("file", cfg.ServiceAccountFile).Msg("service account file missing, sheet sync disabled")
		return nil
	}

	source, err := sheets.NewClient(ctx, cfg.ServiceAccountFile, cfg.SheetID, cfg.WorksheetName)
	if err != nil {
		log.Error().Err(err).Msg("sheets client init failed, sheet sync disabled")
		return nil
	}

	interval := time.Duration(cfg.SyncIntervalMinutes) * time.Minute
	return sheetsync.NewReconciler(
		source,
		repository.NewBankTransactionRepository(conn),
		repository.NewSyncStateRepository(conn),
		interval,
		log,
	)
}
