package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/VisionsOfficial/consent-manager/internal/models"
	"github.com/VisionsOfficial/consent-manager/internal/service"
	"github.com/VisionsOfficial/consent-manager/internal/utils"
)

// PrivacyNoticeHandler handles HTTP requests for privacy notices
type PrivacyNoticeHandler struct {
	noticeService *service.PrivacyNoticeService
}

// NewPrivacyNoticeHandler creates a new PrivacyNoticeHandler instance
func NewPrivacyNoticeHandler(noticeService *service.PrivacyNoticeService) *PrivacyNoticeHandler {
	return &PrivacyNoticeHandler{noticeService: noticeService}
}

// CreatePrivacyNotice handles POST /api/v1/privacy-notices
func (h *PrivacyNoticeHandler) CreatePrivacyNotice(c *gin.Context) {
	var request models.PrivacyNoticeCreateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendBadRequestError(c, "Invalid request body", err.Error())
		return
	}

	notice, err := h.noticeService.Create(c.Request.Context(), &request)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendCreatedResponse(c, notice)
}

// GetPrivacyNotice handles GET /api/v1/privacy-notices/:noticeId
func (h *PrivacyNoticeHandler) GetPrivacyNotice(c *gin.Context) {
	notice, err := h.noticeService.Get(c.Request.Context(), c.Param("noticeId"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, notice)
}

// ListPrivacyNotices handles GET /api/v1/privacy-notices. Scoped either by
// contract or by provider/consumer pair.
func (h *PrivacyNoticeHandler) ListPrivacyNotices(c *gin.Context) {
	ctx := c.Request.Context()

	if contract := c.Query("contract"); contract != "" {
		notices, err := h.noticeService.ListByContract(ctx, contract)
		if err != nil {
			utils.SendServiceError(c, err)
			return
		}
		utils.SendOKResponse(c, notices)
		return
	}

	notices, err := h.noticeService.ListByParticipantPair(ctx, c.Query("dataProvider"), c.Query("dataConsumer"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, notices)
}

// SupersedePrivacyNotice handles PUT /api/v1/privacy-notices/:noticeId
func (h *PrivacyNoticeHandler) SupersedePrivacyNotice(c *gin.Context) {
	var request models.PrivacyNoticeCreateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendBadRequestError(c, "Invalid request body", err.Error())
		return
	}

	notice, err := h.noticeService.Supersede(c.Request.Context(), c.Param("noticeId"), &request)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendCreatedResponse(c, notice)
}

// ArchivePrivacyNotice handles DELETE /api/v1/privacy-notices/:noticeId
func (h *PrivacyNoticeHandler) ArchivePrivacyNotice(c *gin.Context) {
	if err := h.noticeService.Archive(c.Request.Context(), c.Param("noticeId")); err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendNoContentResponse(c)
}
