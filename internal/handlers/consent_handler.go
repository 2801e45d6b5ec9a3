package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/VisionsOfficial/consent-manager/internal/models"
	"github.com/VisionsOfficial/consent-manager/internal/service"
	"github.com/VisionsOfficial/consent-manager/internal/utils"
)

// ConsentHandler handles HTTP requests for the consent lifecycle, the
// verification token and the data-exchange orchestration.
type ConsentHandler struct {
	consentService  *service.ConsentService
	tokenService    *service.TokenService
	exchangeService *service.ExchangeService
}

// NewConsentHandler creates a new ConsentHandler instance
func NewConsentHandler(
	consentService *service.ConsentService,
	tokenService *service.TokenService,
	exchangeService *service.ExchangeService,
) *ConsentHandler {
	return &ConsentHandler{
		consentService:  consentService,
		tokenService:    tokenService,
		exchangeService: exchangeService,
	}
}

// CreateConsent handles POST /api/v1/consents
func (h *ConsentHandler) CreateConsent(c *gin.Context) {
	var request models.ConsentCreateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendBadRequestError(c, "Invalid request body", err.Error())
		return
	}

	response, err := h.consentService.Give(c.Request.Context(), &request, h.actionBy(c))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendCreatedResponse(c, response)
}

// GetConsent handles GET /api/v1/consents/:consentId
func (h *ConsentHandler) GetConsent(c *gin.Context) {
	consentID := c.Param("consentId")

	// A user-scoped call only sees consents it is the subject of.
	if userID := utils.GetUserIDFromContext(c); userID != "" {
		response, err := h.consentService.GetForUser(c.Request.Context(), consentID, userID)
		if err != nil {
			utils.SendServiceError(c, err)
			return
		}
		utils.SendOKResponse(c, response)
		return
	}

	response, err := h.consentService.Get(c.Request.Context(), consentID)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendOKResponse(c, response)
}

// ListConsents handles GET /api/v1/consents. The scope comes from the caller:
// a user header lists the user's consents, otherwise the query parameters
// drive a paginated search.
func (h *ConsentHandler) ListConsents(c *gin.Context) {
	ctx := c.Request.Context()

	if userID := utils.GetUserIDFromContext(c); userID != "" && len(c.Request.URL.Query()) == 0 {
		responses, err := h.consentService.ListForUser(ctx, userID)
		if err != nil {
			utils.SendServiceError(c, err)
			return
		}
		utils.SendOKResponse(c, responses)
		return
	}

	params := models.ConsentSearchParams{
		UserID:       c.Query("userId"),
		DataProvider: c.Query("dataProvider"),
		DataConsumer: c.Query("dataConsumer"),
		Contract:     c.Query("contract"),
		Statuses:     c.QueryArray("status"),
	}
	if limit := c.Query("limit"); limit != "" {
		params.Limit, _ = strconv.Atoi(limit)
	}
	if offset := c.Query("offset"); offset != "" {
		params.Offset, _ = strconv.Atoi(offset)
	}

	response, err := h.consentService.Search(ctx, &params)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendOKResponse(c, response)
}

// GrantConsent handles POST /api/v1/consents/:consentId/grant
func (h *ConsentHandler) GrantConsent(c *gin.Context) {
	response, err := h.consentService.Grant(c.Request.Context(), c.Param("consentId"), h.actionBy(c))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, response)
}

// RefuseConsent handles POST /api/v1/consents/:consentId/refuse
func (h *ConsentHandler) RefuseConsent(c *gin.Context) {
	response, err := h.consentService.Refuse(c.Request.Context(), c.Param("consentId"), h.actionBy(c))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, response)
}

// RevokeConsent handles DELETE /api/v1/consents/:consentId
func (h *ConsentHandler) RevokeConsent(c *gin.Context) {
	response, err := h.consentService.Revoke(c.Request.Context(), c.Param("consentId"), h.actionBy(c))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, response)
}

// ReConfirmConsent handles POST /api/v1/consents/:consentId/re-confirm
func (h *ConsentHandler) ReConfirmConsent(c *gin.Context) {
	var request models.ReConfirmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			utils.SendBadRequestError(c, "Invalid request body", err.Error())
			return
		}
	}

	response, err := h.consentService.ReConfirm(c.Request.Context(), c.Param("consentId"), request.TermsChanged, h.actionBy(c))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, response)
}

// TerminateConsent handles POST /api/v1/consents/:consentId/terminate
func (h *ConsentHandler) TerminateConsent(c *gin.Context) {
	response, err := h.consentService.Terminate(c.Request.Context(), c.Param("consentId"), h.actionBy(c))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, response)
}

// IssueToken handles POST /api/v1/consents/:consentId/token
func (h *ConsentHandler) IssueToken(c *gin.Context) {
	response, err := h.tokenService.Issue(c.Request.Context(), c.Param("consentId"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendCreatedResponse(c, response)
}

// ValidateToken handles POST /api/v1/consents/:consentId/validate
func (h *ConsentHandler) ValidateToken(c *gin.Context) {
	var request models.VerifyTokenRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendBadRequestError(c, "Invalid request body", err.Error())
		return
	}

	response, err := h.tokenService.Verify(c.Request.Context(), c.Param("consentId"), request.Token)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, response)
}

// TriggerExchange handles POST /api/v1/consents/:consentId/data-exchange
func (h *ConsentHandler) TriggerExchange(c *gin.Context) {
	outcome, err := h.exchangeService.Trigger(c.Request.Context(), c.Param("consentId"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, outcome)
}

// ResumeExchange handles POST /api/v1/consents/:consentId/resume
func (h *ConsentHandler) ResumeExchange(c *gin.Context) {
	outcome, err := h.exchangeService.Resume(c.Request.Context(), c.Param("consentId"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, outcome)
}

// GetRedirectTarget handles GET /api/v1/consents/:consentId/redirect
func (h *ConsentHandler) GetRedirectTarget(c *gin.Context) {
	response, err := h.exchangeService.RedirectTarget(c.Request.Context(), c.Param("consentId"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, response)
}

// ExpireSweep handles POST /api/v1/consents/expire-sweep
func (h *ConsentHandler) ExpireSweep(c *gin.Context) {
	count, err := h.consentService.ExpireSweep(c.Request.Context())
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, gin.H{"expired": count})
}

// actionBy identifies the actor recorded on lifecycle events: the user when
// present, otherwise the calling participant.
func (h *ConsentHandler) actionBy(c *gin.Context) string {
	if userID := utils.GetUserIDFromContext(c); userID != "" {
		return userID
	}
	return utils.GetParticipantIDFromContext(c)
}
