package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/VisionsOfficial/consent-manager/internal/config"
	"github.com/VisionsOfficial/consent-manager/internal/dao"
	"github.com/VisionsOfficial/consent-manager/internal/database"
	"github.com/VisionsOfficial/consent-manager/internal/exchangeclient"
	"github.com/VisionsOfficial/consent-manager/internal/router"
	"github.com/VisionsOfficial/consent-manager/internal/service"
)

// Version information (set by build script)
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	logger.WithFields(logrus.Fields{
		"version":    version,
		"build_date": buildDate,
	}).Info("Starting Consent Manager...")

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	logger.WithField("log_level", logger.GetLevel().String()).Info("Configuration loaded successfully")

	db, err := database.Initialize(&cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		logger.WithError(err).Fatal("Database health check failed")
	}

	logger.Info("Database connection established successfully")

	consentDAO := dao.NewConsentDAO(db)
	eventDAO := dao.NewConsentEventDAO(db)
	noticeDAO := dao.NewPrivacyNoticeDAO(db)
	participantDAO := dao.NewParticipantDAO(db)

	client := exchangeclient.NewClient(&cfg.Exchange, logger)
	defer client.Close()

	consentService := service.NewConsentService(consentDAO, eventDAO, noticeDAO, db, logger)
	tokenService := service.NewTokenService(consentDAO, &cfg.Token, logger)
	exchangeService := service.NewExchangeService(consentDAO, participantDAO, tokenService, client, logger)
	noticeService := service.NewPrivacyNoticeService(noticeDAO, db, logger)

	// The orchestrator delivers revocation notices; wired after construction
	// since it also reads consents.
	consentService.SetRevocationNotifier(exchangeService)

	logger.Info("Services initialized successfully")

	ginRouter := router.SetupRouter(cfg, db, consentService, tokenService, exchangeService, noticeService)

	serverAddr := cfg.Server.GetServerAddress()
	server := &http.Server{
		Addr:           serverAddr,
		Handler:        ginRouter,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	go func() {
		logger.WithField("addr", serverAddr).Info("Starting HTTP server...")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited gracefully")
}
