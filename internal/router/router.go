package router

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/VisionsOfficial/consent-manager/internal/config"
	"github.com/VisionsOfficial/consent-manager/internal/database"
	"github.com/VisionsOfficial/consent-manager/internal/handlers"
	"github.com/VisionsOfficial/consent-manager/internal/service"
	"github.com/VisionsOfficial/consent-manager/internal/utils"
	pkgutils "github.com/VisionsOfficial/consent-manager/pkg/utils"
)

// SetupRouter configures all API routes
func SetupRouter(
	cfg *config.Config,
	db *database.DB,
	consentService *service.ConsentService,
	tokenService *service.TokenService,
	exchangeService *service.ExchangeService,
	noticeService *service.PrivacyNoticeService,
) *gin.Engine {
	router := gin.Default()

	router.Use(contextMiddleware())
	if cfg.CORS.Enabled {
		router.Use(corsMiddleware(&cfg.CORS))
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	consentHandler := handlers.NewConsentHandler(consentService, tokenService, exchangeService)
	noticeHandler := handlers.NewPrivacyNoticeHandler(noticeService)

	v1 := router.Group("/api/v1")
	{
		consents := v1.Group("/consents")
		{
			consents.POST("", consentHandler.CreateConsent)
			consents.GET("", consentHandler.ListConsents)
			consents.POST("/expire-sweep", consentHandler.ExpireSweep)
			consents.GET("/:consentId", consentHandler.GetConsent)
			consents.DELETE("/:consentId", consentHandler.RevokeConsent)
			consents.POST("/:consentId/grant", consentHandler.GrantConsent)
			consents.POST("/:consentId/refuse", consentHandler.RefuseConsent)
			consents.POST("/:consentId/re-confirm", consentHandler.ReConfirmConsent)
			consents.POST("/:consentId/terminate", consentHandler.TerminateConsent)
			consents.POST("/:consentId/token", consentHandler.IssueToken)
			consents.POST("/:consentId/validate", consentHandler.ValidateToken)
			consents.POST("/:consentId/data-exchange", consentHandler.TriggerExchange)
			consents.POST("/:consentId/resume", consentHandler.ResumeExchange)
			consents.GET("/:consentId/redirect", consentHandler.GetRedirectTarget)
		}

		notices := v1.Group("/privacy-notices")
		{
			notices.POST("", noticeHandler.CreatePrivacyNotice)
			notices.GET("", noticeHandler.ListPrivacyNotices)
			notices.GET("/:noticeId", noticeHandler.GetPrivacyNotice)
			notices.PUT("/:noticeId", noticeHandler.SupersedePrivacyNotice)
			notices.DELETE("/:noticeId", noticeHandler.ArchivePrivacyNotice)
		}
	}

	return router
}

// contextMiddleware extracts caller identity and correlation headers into the
// request context. Authentication happens upstream; the headers are trusted.
func contextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader("x-user-id"); userID != "" {
			utils.SetContextValue(c, "userID", userID)
		}
		if participantID := c.GetHeader("x-participant-id"); participantID != "" {
			utils.SetContextValue(c, "participantID", participantID)
		}

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = pkgutils.GenerateCorrelationID()
		}
		utils.SetContextValue(c, "correlationID", correlationID)
		// Outbound connector calls read the correlation ID from the
		// request context.
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), "correlationID", correlationID))
		c.Header("X-Correlation-ID", correlationID)

		c.Next()
	}
}

func corsMiddleware(cfg *config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{"Content-Type", "X-Correlation-ID", "x-user-id", "x-participant-id"}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := ""
		for _, o := range allowedOrigins {
			if o == "*" || o == origin {
				allowed = o
				break
			}
		}

		if allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			c.Header("Access-Control-Allow-Methods", strings.Join(allowedMethods, ", "))
			c.Header("Access-Control-Allow-Headers", strings.Join(allowedHeaders, ", "))
			if cfg.AllowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			if cfg.MaxAge > 0 {
				c.Header("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
