package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shamar-morrison/showseek-backend/internal/api"
	"github.com/shamar-morrison/showseek-backend/internal/billing"
	"github.com/shamar-morrison/showseek-backend/internal/config"
	"github.com/shamar-morrison/showseek-backend/internal/core"
	"github.com/shamar-morrison/showseek-backend/internal/db"
	"github.com/shamar-morrison/showseek-backend/internal/middleware"
)

func main() {
	// --- 1. Initialize Logger (Zap) ---
	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Zap logger initialized successfully.")

	// --- 2. Load Application Configuration ---
	// .env is for local development; in deployment, the environment is the
	// source of truth and a missing file is fine.
	if err := godotenv.Load(); err == nil {
		zapLogger.Info("Loaded environment from .env file.")
	}
	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load application configuration", zap.Error(err))
	}
	zapLogger.Info("Application configuration loaded successfully.")

	// --- 3. Initialize Firebase Admin SDK (Firestore and Auth clients) ---
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()
	if err := db.InitFirestore(initCtx, appConfig); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firestore and Firebase Admin SDK", zap.Error(err))
	}
	zapLogger.Info("Firebase Admin SDK (Firestore, Auth) initialized successfully.")

	firestoreClient := db.GetFirestoreClient()
	firebaseAuthClient := db.GetFirebaseAuthClient()
	if firestoreClient == nil || firebaseAuthClient == nil {
		zapLogger.Fatal("CRITICAL_ERROR: Firestore or Firebase Auth client is nil after initialization. Application cannot start.")
	}

	// --- 4. Resolve the Play Developer API client ---
	// Credential problems are operator-facing configuration errors; failing
	// fast here beats surfacing them on every validation call.
	playClient, err := billing.ResolveClient(initCtx, appConfig.PlayServiceAccountJSON, appConfig.AndroidPackageName)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to resolve Play Developer API client", zap.Error(err))
	}
	zapLogger.Info("Play Developer API client resolved successfully.")

	// --- 5. Initialize Repositories ---
	entitlementRepo := db.NewFirestoreEntitlementRepository(firestoreClient)
	webhookStore := db.NewFirestoreWebhookStore(firestoreClient)
	auditRepo := db.NewFirestoreAuditRepository(firestoreClient)
	zapLogger.Info("Repositories initialized successfully.")

	// --- 6. Initialize Core Services ---
	auditService := core.NewAuditService(auditRepo)
	verifier := core.NewPurchaseVerifier(playClient, core.VerifierConfig{
		MonthlyBasePlanID:   appConfig.SubscriptionMonthlyBasePlan,
		YearlyBasePlanID:    appConfig.SubscriptionYearlyBasePlan,
		MonthlyTrialOfferID: appConfig.MonthlyTrialOfferID,
	}, zapLogger)
	entitlementService := core.NewEntitlementService(entitlementRepo, verifier, auditService, zapLogger, appConfig.LifetimeProductID)
	webhookService := core.NewWebhookService(webhookStore, auditService, zapLogger, core.WebhookConfig{
		LifetimeProductID: appConfig.LifetimeProductID,
		MonthlyBasePlanID: appConfig.SubscriptionMonthlyBasePlan,
		YearlyBasePlanID:  appConfig.SubscriptionYearlyBasePlan,
	})
	zapLogger.Info("Core services initialized successfully.")

	// --- 7. Setup Gin HTTP Engine ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()

	// --- 8. Apply Global Middleware (order matters) ---
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	if appConfig.ClientURL != "" {
		router.Use(middleware.CORSMiddleware(appConfig))
		zapLogger.Info("CORS Middleware enabled", zap.String("clientURL", appConfig.ClientURL))
	} else {
		zapLogger.Warn("CORS Middleware SKIPPED: CLIENT_URL is not configured.")
	}

	// --- 9. Setup API Routes ---
	authMW := middleware.NewAuthMiddleware(firebaseAuthClient)
	api.SetupRoutes(router, appConfig, zapLogger, authMW.VerifyToken(), entitlementService, webhookService)

	// --- 10. Configure and Start HTTP Server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 11. Graceful Shutdown Handling ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Fatal("Server forced to shutdown due to error during graceful shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exiting gracefully.")
}
