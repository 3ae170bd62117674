package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"welfare-receipts-backend/config"
	"welfare-receipts-backend/middleware"
	"welfare-receipts-backend/token"
	"welfare-receipts-backend/utils"
	"welfare-receipts-backend/websocket"

	// Repositories
	paymentRepositories "welfare-receipts-backend/payments/repositories"
	receiptRepositories "welfare-receipts-backend/receipts/repositories"
	reconciliationRepositories "welfare-receipts-backend/reconciliation/repositories"
	uploadRepositories "welfare-receipts-backend/uploads/repositories"

	// Services
	paymentServices "welfare-receipts-backend/payments/services"
	receiptServices "welfare-receipts-backend/receipts/services"
	reconciliationServices "welfare-receipts-backend/reconciliation/services"
	uploadServices "welfare-receipts-backend/uploads/services"

	// Controllers and routes
	paymentControllers "welfare-receipts-backend/payments/controllers"
	paymentRoutes "welfare-receipts-backend/payments/routes"
	receiptControllers "welfare-receipts-backend/receipts/controllers"
	receiptRoutes "welfare-receipts-backend/receipts/routes"
	reconciliationControllers "welfare-receipts-backend/reconciliation/controllers"
	reconciliationRoutes "welfare-receipts-backend/reconciliation/routes"
	uploadControllers "welfare-receipts-backend/uploads/controllers"
	uploadRoutes "welfare-receipts-backend/uploads/routes"

	// bleve
	bleveControllers "welfare-receipts-backend/bleve/controllers"
	bleveRepositories "welfare-receipts-backend/bleve/repositories"
	bleveRoutes "welfare-receipts-backend/bleve/routes"
	bleveServices "welfare-receipts-backend/bleve/services"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	config.InitLogger()
	defer config.Logger.Sync()

	if err := config.LoadEnv(); err != nil {
		config.Logger.Fatal("Error loading .env file", zap.Error(err))
	}
	if err := utils.InitializeDateLocation(); err != nil {
		config.Logger.Fatal("Failed to initialize date location", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := config.ConfigureDatabase()
	port := config.GetEnvOrDefault("PORT", "8080")

	// Redis backs the batch guard and token revocation; nil disables both.
	redisClient := config.InitRedisServer(ctx)
	locker := utils.NewRedisBatchLocker(redisClient)

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     config.RedisAddress(),
		Password: config.GetEnv("REDIS_PASSWORD"),
		DB:       0,
	}
	asynqClient := asynq.NewClient(asynqRedisOpt)
	defer asynqClient.Close()

	tokenMaker, err := token.NewPasetoMaker(config.GetEnv("TOKEN_SYMMETRIC_KEY"))
	if err != nil {
		config.Logger.Fatal("Cannot create token maker", zap.Error(err))
	}

	indexPath := config.GetEnv("BLEVE_INDEX_PATH")
	if indexPath == "" {
		indexPath = "./bleve_data"
		config.Logger.Warn("BLEVE_INDEX_PATH not set, using default: ./bleve_data")
	}

	utils.InitializeMailer()
	mailer := utils.SMTPMailer{}

	reportStorage, err := newReportStorage(ctx)
	if err != nil {
		config.Logger.Fatal("Failed to initialize report storage", zap.Error(err))
	}

	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Search index
	bleveIndexingService := bleveServices.NewIndexingService(config.Logger, indexPath)
	defer bleveIndexingService.Close()
	bleveRepo := bleveRepositories.NewBleveRepository(bleveIndexingService)

	// Repositories
	uploadRepo := uploadRepositories.NewUploadRepository(db)
	paymentRepo := paymentRepositories.NewWorkerPaymentRepository(db)
	workerReceiptRepo := paymentRepositories.NewWorkerReceiptRepository(db)
	employerReceiptRepo := receiptRepositories.NewEmployerReceiptRepository(db)
	boardReceiptRepo := receiptRepositories.NewBoardReceiptRepository(db)
	anomalyRepo := reconciliationRepositories.NewAnomalyRepository(db)

	// Services
	anomalyRecorder := reconciliationServices.NewAnomalyRecorder(anomalyRepo, asynqClient)
	batchTracker := uploadServices.NewBatchTracker(uploadRepo, reportStorage)
	validationService := uploadServices.NewValidationService(
		uploadRepo,
		locker,
		uploadServices.NewExcelValidationReporter(reportStorage, mailer),
		wsHub,
	)
	aggregator := paymentServices.NewReceiptAggregator(
		db, uploadRepo, paymentRepo, workerReceiptRepo, locker, anomalyRecorder, bleveRepo, wsHub,
	)
	boardFlow := receiptServices.NewBoardReceiptService(
		boardReceiptRepo, employerReceiptRepo, workerReceiptRepo, paymentRepo, anomalyRecorder, bleveRepo, wsHub,
	)
	employerFlow := receiptServices.NewEmployerReceiptService(
		workerReceiptRepo, paymentRepo, employerReceiptRepo, boardFlow, anomalyRecorder, bleveRepo, wsHub,
	)
	documents := receiptServices.NewReceiptDocumentService(boardReceiptRepo, employerReceiptRepo, workerReceiptRepo)

	repairsPerSecond, err := strconv.ParseFloat(config.GetEnvOrDefault("RECONCILIATION_REPAIRS_PER_SECOND", "5"), 64)
	if err != nil {
		config.Logger.Warn("Invalid RECONCILIATION_REPAIRS_PER_SECOND, using 5", zap.Error(err))
		repairsPerSecond = 5
	}
	reconciliation := reconciliationServices.NewReconciliationService(
		anomalyRepo, anomalyRecorder, uploadRepo, paymentRepo, workerReceiptRepo,
		employerReceiptRepo, boardReceiptRepo, employerFlow, boardFlow, repairsPerSecond,
	)

	// Background linkage repair
	asynqServer := asynq.NewServer(asynqRedisOpt, asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{"default": 1},
		Logger:      config.Logger.Sugar(),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(reconciliationServices.TypeLinkageRepair, reconciliation.HandleLinkageRepairTask)
	go func() {
		if err := asynqServer.Run(mux); err != nil {
			config.Logger.Error("Asynq server stopped", zap.Error(err))
		}
	}()
	defer asynqServer.Shutdown()

	scheduler, err := reconciliationServices.StartReconciliationScheduler(
		reconciliation,
		config.GetEnvOrDefault("RECONCILIATION_CRON", reconciliationServices.DefaultReconciliationSchedule),
	)
	if err != nil {
		config.Logger.Fatal("Failed to start reconciliation scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	if local, ok := reportStorage.(*utils.LocalFileStorage); ok {
		cleanup, err := utils.RunScheduledReportCleanup(local.LocalPath(uploadServices.ReportFolder), utils.DefaultReportTTL)
		if err != nil {
			config.Logger.Fatal("Failed to start report cleanup", zap.Error(err))
		}
		defer cleanup.Stop()
	}

	go func() {
		if err := bleveRepo.IndexExistingReceipts(ctx, db); err != nil {
			config.Logger.Error("Receipt re-index failed", zap.Error(err))
		}
	}()

	// HTTP
	app := fiber.New(fiber.Config{BodyLimit: 16 * 1024 * 1024})
	middleware.InitCors(app)

	wsHandler := websocket.NewWsHandler(wsHub, tokenMaker)
	app.Get("/ws", wsHandler.HandleWebSocket)

	api := app.Group("/api/v1", middleware.ProtectedRoute(&middleware.AppContext{
		PasetoMaker: tokenMaker,
		Ctx:         ctx,
		RedisClient: redisClient,
	}))

	uploadRoutes.UploadRouterInit(api, uploadControllers.NewUploadController(uploadRepo, batchTracker, validationService, aggregator))
	paymentRoutes.PaymentRouterInit(api, paymentControllers.NewPaymentController(paymentRepo, workerReceiptRepo))
	receiptRoutes.ReceiptRouterInit(api, receiptControllers.NewReceiptController(
		employerReceiptRepo, boardReceiptRepo, employerFlow, boardFlow, documents,
	))
	reconciliationRoutes.ReconciliationRouterInit(api, reconciliationControllers.NewReconciliationController(anomalyRepo, reconciliation))
	bleveRoutes.InitBleveRoutes(api, bleveControllers.NewSearchController(bleveRepo))

	go func() {
		<-ctx.Done()
		config.Logger.Info("Shutting down server")
		if err := app.Shutdown(); err != nil {
			config.Logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	config.Logger.Info("Server starting", zap.String("port", port))
	if err := app.Listen(":" + port); err != nil {
		config.Logger.Fatal("Server failed", zap.String("port", port), zap.Error(err))
	}
}

// newReportStorage picks where rejected-record reports are written: REPORT_STORAGE=s3
// uses REPORT_BUCKET, anything else the local ./reports folder.
func newReportStorage(ctx context.Context) (utils.FileStorage, error) {
	if strings.EqualFold(config.GetEnv("REPORT_STORAGE"), "s3") {
		return utils.NewS3FileStorage(ctx, config.GetEnv("REPORT_BUCKET"))
	}
	return utils.NewLocalFileStorage("./reports"), nil
}
