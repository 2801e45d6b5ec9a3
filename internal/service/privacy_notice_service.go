package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/VisionsOfficial/consent-manager/internal/dao"
	"github.com/VisionsOfficial/consent-manager/internal/database"
	"github.com/VisionsOfficial/consent-manager/internal/models"
	"github.com/VisionsOfficial/consent-manager/internal/svcerror"
	"github.com/VisionsOfficial/consent-manager/pkg/utils"
)

// PrivacyNoticeService manages the privacy notices consents reference.
// Notices are immutable once referenced: updating terms means superseding the
// notice with a new one and archiving the old, so the audit trail of what a
// user actually accepted is preserved.
type PrivacyNoticeService struct {
	noticeDAO *dao.PrivacyNoticeDAO
	db        *database.DB
	logger    *logrus.Logger
}

// NewPrivacyNoticeService creates a new privacy notice service instance
func NewPrivacyNoticeService(noticeDAO *dao.PrivacyNoticeDAO, db *database.DB, logger *logrus.Logger) *PrivacyNoticeService {
	return &PrivacyNoticeService{
		noticeDAO: noticeDAO,
		db:        db,
		logger:    logger,
	}
}

// Create registers a new privacy notice
func (s *PrivacyNoticeService) Create(ctx context.Context, request *models.PrivacyNoticeCreateRequest) (*models.PrivacyNotice, error) {
	notice, err := s.buildNotice(request)
	if err != nil {
		return nil, err
	}

	if err := s.noticeDAO.Create(ctx, notice); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"notice_id":     notice.NoticeID,
		"data_provider": notice.DataProvider,
		"data_consumer": notice.DataConsumer,
	}).Info("Privacy notice registered")

	return notice, nil
}

// Get resolves a notice by its reference. Archived notices resolve too, so
// consents given against a superseded notice keep a readable audit trail.
func (s *PrivacyNoticeService) Get(ctx context.Context, noticeID string) (*models.PrivacyNotice, error) {
	if err := utils.ValidateRequired("notice ID", noticeID); err != nil {
		return nil, svcerror.Validation("%s", err.Error())
	}

	notice, err := s.noticeDAO.GetByID(ctx, noticeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, svcerror.NotFound("privacy notice not found: %s", noticeID)
		}
		return nil, err
	}
	return notice, nil
}

// ListByParticipantPair lists the active notices for a provider/consumer pair
func (s *PrivacyNoticeService) ListByParticipantPair(ctx context.Context, dataProvider, dataConsumer string) ([]models.PrivacyNotice, error) {
	if err := utils.ValidateIdentifier("dataProvider", dataProvider); err != nil {
		return nil, svcerror.Validation("%s", err.Error())
	}
	if err := utils.ValidateIdentifier("dataConsumer", dataConsumer); err != nil {
		return nil, svcerror.Validation("%s", err.Error())
	}
	return s.noticeDAO.ListByParticipantPair(ctx, dataProvider, dataConsumer)
}

// ListByContract lists the active notices attached to a contract
func (s *PrivacyNoticeService) ListByContract(ctx context.Context, contract string) ([]models.PrivacyNotice, error) {
	if err := utils.ValidateRequired("contract", contract); err != nil {
		return nil, svcerror.Validation("%s", err.Error())
	}
	return s.noticeDAO.ListByContract(ctx, contract)
}

// Supersede replaces an active notice: the new notice is created and the old
// one archived in a single transaction. Superseding an already archived
// notice fails with a conflict, since a concurrent supersede won.
func (s *PrivacyNoticeService) Supersede(ctx context.Context, noticeID string, request *models.PrivacyNoticeCreateRequest) (*models.PrivacyNotice, error) {
	previous, err := s.Get(ctx, noticeID)
	if err != nil {
		return nil, err
	}
	if previous.IsArchived() {
		return nil, svcerror.InvalidState("privacy notice %s is already archived", noticeID)
	}

	notice, err := s.buildNotice(request)
	if err != nil {
		return nil, err
	}

	err = s.db.WithTransaction(ctx, func(tx *database.Transaction) error {
		if err := s.noticeDAO.CreateWithTx(ctx, tx, notice); err != nil {
			return err
		}

		archived, err := s.noticeDAO.ArchiveWithTx(ctx, tx, noticeID, utils.GetCurrentTimeMillis())
		if err != nil {
			return err
		}
		if !archived {
			return svcerror.Conflict("privacy notice %s was archived concurrently", noticeID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"notice_id":  notice.NoticeID,
		"supersedes": noticeID,
	}).Info("Privacy notice superseded")

	return notice, nil
}

// Archive freezes a notice without a replacement
func (s *PrivacyNoticeService) Archive(ctx context.Context, noticeID string) error {
	if _, err := s.Get(ctx, noticeID); err != nil {
		return err
	}

	return s.db.WithTransaction(ctx, func(tx *database.Transaction) error {
		archived, err := s.noticeDAO.ArchiveWithTx(ctx, tx, noticeID, utils.GetCurrentTimeMillis())
		if err != nil {
			return err
		}
		if !archived {
			return svcerror.InvalidState("privacy notice %s is already archived", noticeID)
		}
		return nil
	})
}

func (s *PrivacyNoticeService) buildNotice(request *models.PrivacyNoticeCreateRequest) (*models.PrivacyNotice, error) {
	if err := utils.ValidateRequired("title", request.Title); err != nil {
		return nil, svcerror.Validation("%s", err.Error())
	}
	if err := utils.ValidateIdentifier("dataProvider", request.DataProvider); err != nil {
		return nil, svcerror.Validation("%s", err.Error())
	}
	if err := utils.ValidateIdentifier("dataConsumer", request.DataConsumer); err != nil {
		return nil, svcerror.Validation("%s", err.Error())
	}
	if len(request.Purposes) == 0 {
		return nil, svcerror.Validation("purposes must not be empty")
	}

	controllerDetails, err := models.MarshalJSONColumn(request.ControllerDetails)
	if err != nil {
		return nil, err
	}
	purposes, err := models.MarshalJSONColumn(request.Purposes)
	if err != nil {
		return nil, err
	}
	categories, err := models.MarshalJSONColumn(request.CategoriesOfData)
	if err != nil {
		return nil, err
	}
	data, err := models.MarshalJSONColumn(request.Data)
	if err != nil {
		return nil, err
	}
	recipients, err := models.MarshalJSONColumn(request.Recipients)
	if err != nil {
		return nil, err
	}
	rights, err := models.MarshalJSONColumn(request.PiiPrincipalRights)
	if err != nil {
		return nil, err
	}

	now := utils.GetCurrentTimeMillis()
	lastUpdated := request.LastUpdated
	if lastUpdated == "" {
		lastUpdated = utils.FormatTime(utils.MillisToTime(now))
	}

	notice := &models.PrivacyNotice{
		NoticeID:              utils.GenerateNoticeID(),
		Title:                 request.Title,
		LastUpdated:           lastUpdated,
		DataProvider:          request.DataProvider,
		DataConsumer:          request.DataConsumer,
		ControllerDetails:     controllerDetails,
		Purposes:              purposes,
		CategoriesOfData:      categories,
		DataResources:         data,
		Recipients:            recipients,
		RetentionPeriod:       request.RetentionPeriod,
		PiiPrincipalRights:    rights,
		WithdrawalOfConsent:   request.WithdrawalOfConsent,
		ComplaintRights:       request.ComplaintRights,
		ProvisionRequirements: request.ProvisionRequirements,
		SchemaVersion:         "0.1.0",
		CreatedTime:           now,
		UpdatedTime:           now,
	}

	if request.Contract != "" {
		notice.Contract = &request.Contract
	}
	if request.JSONLD != "" {
		notice.JSONLD = &request.JSONLD
	}
	if request.InternationalTransfers != nil {
		if notice.InternationalTransfers, err = models.MarshalJSONColumn(request.InternationalTransfers); err != nil {
			return nil, err
		}
	}
	if request.AutomatedDecisionMaking != nil {
		if notice.AutomatedDecisionMaking, err = models.MarshalJSONColumn(request.AutomatedDecisionMaking); err != nil {
			return nil, err
		}
	}

	return notice, nil
}
