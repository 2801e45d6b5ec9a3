package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/VisionsOfficial/consent-manager/internal/dao"
	"github.com/VisionsOfficial/consent-manager/internal/database"
	"github.com/VisionsOfficial/consent-manager/internal/models"
	"github.com/VisionsOfficial/consent-manager/internal/svcerror"
	"github.com/VisionsOfficial/consent-manager/pkg/utils"
)

// RevocationNotifier is implemented by the exchange orchestrator to inform
// the counter-participant of a revocation. Notification is best-effort and
// never blocks or fails the transition.
type RevocationNotifier interface {
	NotifyRevocation(ctx context.Context, consent *models.Consent)
}

// ConsentService owns the consent lifecycle state machine. It holds no
// durable state of its own: every transition is a read-modify-write over the
// record store, conditioned on the previously-read status so that concurrent
// transitions on the same consent serialize through the store.
//
// Transition graph:
//
//	pending -> granted | refused | terminated
//	granted -> revoked | terminated | expired | pending (re-confirm with changed terms)
//	refused, revoked, terminated, expired are terminal
type ConsentService struct {
	consentDAO *dao.ConsentDAO
	eventDAO   *dao.ConsentEventDAO
	noticeDAO  *dao.PrivacyNoticeDAO
	db         *database.DB
	logger     *logrus.Logger
	notifier   RevocationNotifier
}

// NewConsentService creates a new consent service instance
func NewConsentService(
	consentDAO *dao.ConsentDAO,
	eventDAO *dao.ConsentEventDAO,
	noticeDAO *dao.PrivacyNoticeDAO,
	db *database.DB,
	logger *logrus.Logger,
) *ConsentService {
	return &ConsentService{
		consentDAO: consentDAO,
		eventDAO:   eventDAO,
		noticeDAO:  noticeDAO,
		db:         db,
		logger:     logger,
	}
}

// SetRevocationNotifier wires the orchestrator in after construction, since
// the orchestrator itself depends on this service.
func (s *ConsentService) SetRevocationNotifier(n RevocationNotifier) {
	s.notifier = n
}

// Give validates a fully-populated consent intent and writes the record. The
// record is granted immediately with a given event unless the intent requires
// a separate confirmation step, in which case it is written as pending and
// granted later via Grant.
func (s *ConsentService) Give(ctx context.Context, request *models.ConsentCreateRequest, actionBy string) (*models.ConsentResponse, error) {
	if err := s.validateCreateRequest(request); err != nil {
		return nil, err
	}

	// The privacy notice reference must resolve; archived notices stay
	// resolvable so that re-given consents keep their audit trail.
	if _, err := s.noticeDAO.GetByID(ctx, request.PrivacyNoticeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, svcerror.NotFound("privacy notice not found: %s", request.PrivacyNoticeID)
		}
		return nil, fmt.Errorf("failed to resolve privacy notice: %w", err)
	}

	consent, err := s.buildConsent(request)
	if err != nil {
		return nil, err
	}

	status := models.StatusGranted
	if request.PendingConfirmation {
		status = models.StatusPending
	}
	consent.Status = string(status)

	err = s.db.WithTransaction(ctx, func(tx *database.Transaction) error {
		if err := s.consentDAO.CreateWithTx(ctx, tx, consent); err != nil {
			return err
		}

		if status == models.StatusGranted {
			return s.stampEvent(ctx, tx, consent, models.EventStateGiven, models.EventTypeExplicit, nil, actionBy)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"consent_id":    consent.ConsentID,
		"status":        consent.Status,
		"data_provider": consent.DataProvider,
		"data_consumer": consent.DataConsumer,
	}).Info("Consent recorded")

	return s.buildConsentResponse(ctx, consent, false)
}

// Grant completes a pending consent after its external confirmation step
// (e.g. email validation) and stamps the given event.
func (s *ConsentService) Grant(ctx context.Context, consentID, actionBy string) (*models.ConsentResponse, error) {
	consent, err := s.transition(ctx, consentID,
		[]models.ConsentStatus{models.StatusPending},
		models.StatusGranted, models.EventStateGiven, models.EventTypeExplicit, actionBy)
	if err != nil {
		return nil, err
	}
	return s.buildConsentResponse(ctx, consent, false)
}

// Refuse declines a pending consent. Allowed only from pending.
func (s *ConsentService) Refuse(ctx context.Context, consentID, actionBy string) (*models.ConsentResponse, error) {
	consent, err := s.transition(ctx, consentID,
		[]models.ConsentStatus{models.StatusPending},
		models.StatusRefused, models.EventStateRefused, models.EventTypeExplicit, actionBy)
	if err != nil {
		return nil, err
	}
	return s.buildConsentResponse(ctx, consent, false)
}

// Revoke withdraws a granted consent (subject-initiated). The bound token is
// cleared in the same write; the counter-participant is notified best-effort
// after the transition commits.
func (s *ConsentService) Revoke(ctx context.Context, consentID, actionBy string) (*models.ConsentResponse, error) {
	consent, err := s.transition(ctx, consentID,
		[]models.ConsentStatus{models.StatusGranted},
		models.StatusRevoked, models.EventStateRevoked, models.EventTypeExplicit, actionBy)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		notified := *consent
		go s.notifier.NotifyRevocation(context.Background(), &notified)
	}

	return s.buildConsentResponse(ctx, consent, false)
}

// ReConfirm re-stamps the grant of a granted consent. When the terms changed
// materially it instead re-opens the record for re-acceptance, moving it back
// to pending and dropping any live token.
func (s *ConsentService) ReConfirm(ctx context.Context, consentID string, termsChanged bool, actionBy string) (*models.ConsentResponse, error) {
	if termsChanged {
		consent, err := s.transition(ctx, consentID,
			[]models.ConsentStatus{models.StatusGranted},
			models.StatusPending, models.EventStateReConfirmed, models.EventTypeExplicit, actionBy)
		if err != nil {
			return nil, err
		}
		return s.buildConsentResponse(ctx, consent, false)
	}

	// No status change: stamp the re-confirmation event only.
	var consent *models.Consent
	err := s.db.WithTransaction(ctx, func(tx *database.Transaction) error {
		var err error
		consent, err = s.getForUpdate(ctx, tx, consentID)
		if err != nil {
			return err
		}

		if models.ConsentStatus(consent.Status) != models.StatusGranted {
			return svcerror.InvalidState("cannot re-confirm consent in status %q", consent.Status)
		}

		previous := consent.Status
		return s.stampEvent(ctx, tx, consent, models.EventStateReConfirmed, models.EventTypeExplicit, &previous, actionBy)
	})
	if err != nil {
		return nil, err
	}

	return s.buildConsentResponse(ctx, consent, false)
}

// Terminate ends a consent at contract level: the whole data-sharing
// contract ended, as opposed to a unilateral withdrawal. Allowed from
// granted or pending. The contract system that triggered termination already
// knows, so no counter-participant notification is sent.
func (s *ConsentService) Terminate(ctx context.Context, consentID, actionBy string) (*models.ConsentResponse, error) {
	consent, err := s.transition(ctx, consentID,
		[]models.ConsentStatus{models.StatusGranted, models.StatusPending},
		models.StatusTerminated, models.EventStateTerminated, models.EventTypeExplicit, actionBy)
	if err != nil {
		return nil, err
	}
	return s.buildConsentResponse(ctx, consent, false)
}

// Expire marks a granted consent expired. System-triggered only.
func (s *ConsentService) Expire(ctx context.Context, consentID string) (*models.ConsentResponse, error) {
	consent, err := s.transition(ctx, consentID,
		[]models.ConsentStatus{models.StatusGranted},
		models.StatusExpired, models.EventStateExpired, models.EventTypeSystem, "system")
	if err != nil {
		return nil, err
	}
	return s.buildConsentResponse(ctx, consent, false)
}

// ExpireSweep expires every granted consent whose retention period elapsed.
// Returns the number of records expired.
func (s *ConsentService) ExpireSweep(ctx context.Context) (int, error) {
	candidates, err := s.consentDAO.ListExpiryCandidates(ctx)
	if err != nil {
		return 0, err
	}

	now := utils.GetCurrentTimeMillis()
	expired := 0
	for i := range candidates {
		c := &candidates[i]
		if c.RetentionPeriod == nil {
			continue
		}
		deadline, ok := utils.RetentionDeadline(c.CreatedTime, *c.RetentionPeriod)
		if !ok || now < deadline {
			continue
		}

		if _, err := s.Expire(ctx, c.ConsentID); err != nil {
			// A conflict means another actor already moved the record on;
			// the sweep just continues.
			if svcerror.IsKind(err, svcerror.KindConflict) || svcerror.IsKind(err, svcerror.KindInvalidState) {
				continue
			}
			s.logger.WithError(err).WithField("consent_id", c.ConsentID).Error("Failed to expire consent")
			continue
		}
		expired++
	}

	if expired > 0 {
		s.logger.WithField("count", expired).Info("Expired consents past retention period")
	}
	return expired, nil
}

// Get retrieves a consent with its event history
func (s *ConsentService) Get(ctx context.Context, consentID string) (*models.ConsentResponse, error) {
	if err := utils.ValidateConsentID(consentID); err != nil {
		return nil, svcerror.Validation("%s", err.Error())
	}

	consent, err := s.getByID(ctx, consentID)
	if err != nil {
		return nil, err
	}

	return s.buildConsentResponse(ctx, consent, true)
}

// GetForUser retrieves a consent only if the given user is its subject.
func (s *ConsentService) GetForUser(ctx context.Context, consentID, userID string) (*models.ConsentResponse, error) {
	consent, err := s.getByID(ctx, consentID)
	if err != nil {
		return nil, err
	}

	if !consentBelongsToUser(consent, userID) {
		return nil, svcerror.NotFound("consent not found: %s", consentID)
	}

	return s.buildConsentResponse(ctx, consent, true)
}

// ListForUser lists all consents where the user is the data subject
func (s *ConsentService) ListForUser(ctx context.Context, userID string) ([]models.ConsentResponse, error) {
	if err := utils.ValidateIdentifier("user ID", userID); err != nil {
		return nil, svcerror.Validation("%s", err.Error())
	}

	consents, err := s.consentDAO.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.buildConsentResponses(ctx, consents)
}

// ListByParticipantPair lists consents between a provider and a consumer
func (s *ConsentService) ListByParticipantPair(ctx context.Context, dataProvider, dataConsumer string) ([]models.ConsentResponse, error) {
	consents, err := s.consentDAO.ListByParticipantPair(ctx, dataProvider, dataConsumer)
	if err != nil {
		return nil, err
	}
	return s.buildConsentResponses(ctx, consents)
}

// Search searches consents with pagination
func (s *ConsentService) Search(ctx context.Context, params *models.ConsentSearchParams) (*models.ConsentSearchResponse, error) {
	params.Limit = utils.ValidateLimit(params.Limit)
	params.Offset = utils.ValidateOffset(params.Offset)

	consents, total, err := s.consentDAO.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	responses, err := s.buildConsentResponses(ctx, consents)
	if err != nil {
		return nil, err
	}

	return &models.ConsentSearchResponse{
		Data: responses,
		Metadata: models.ConsentSearchMetadata{
			Total:  total,
			Limit:  params.Limit,
			Offset: params.Offset,
		},
	}, nil
}

// transition applies one legal state-machine edge: read the record, check the
// edge is allowed from the current status, write the new status conditioned
// on the status that was read, and stamp the event — all in one transaction.
// An illegal edge leaves the record untouched.
func (s *ConsentService) transition(ctx context.Context, consentID string, allowedFrom []models.ConsentStatus, to models.ConsentStatus, eventState, eventType, actionBy string) (*models.Consent, error) {
	if err := utils.ValidateConsentID(consentID); err != nil {
		return nil, svcerror.Validation("%s", err.Error())
	}

	var consent *models.Consent
	err := s.db.WithTransaction(ctx, func(tx *database.Transaction) error {
		var err error
		consent, err = s.getForUpdate(ctx, tx, consentID)
		if err != nil {
			return err
		}

		current := models.ConsentStatus(consent.Status)
		allowed := false
		for _, from := range allowedFrom {
			if current == from {
				allowed = true
				break
			}
		}
		if !allowed {
			return svcerror.InvalidState("cannot move consent from %q to %q", consent.Status, to)
		}

		now := utils.GetCurrentTimeMillis()
		applied, err := s.consentDAO.UpdateStatusGuardedWithTx(ctx, tx, consentID, string(current), string(to), now)
		if err != nil {
			return err
		}
		if !applied {
			return svcerror.Conflict("consent %s was modified concurrently", consentID)
		}

		previous := consent.Status
		consent.Status = string(to)
		consent.UpdatedTime = now
		consent.Token = nil
		consent.TokenExpiresAt = nil

		return s.stampEvent(ctx, tx, consent, eventState, eventType, &previous, actionBy)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"consent_id": consentID,
		"status":     consent.Status,
		"event":      eventState,
	}).Info("Consent transition applied")

	return consent, nil
}

func (s *ConsentService) stampEvent(ctx context.Context, tx *database.Transaction, consent *models.Consent, eventState, eventType string, previousStatus *string, actionBy string) error {
	event := &models.ConsentEvent{
		EventID:          utils.GenerateEventID(),
		ConsentID:        consent.ConsentID,
		EventState:       eventState,
		EventType:        eventType,
		EventTime:        utils.GetCurrentTimeMillis(),
		ValidityDuration: models.EventValidityImmediate,
		PreviousStatus:   previousStatus,
		CurrentStatus:    consent.Status,
	}
	if actionBy != "" {
		event.ActionBy = &actionBy
	}
	return s.eventDAO.CreateWithTx(ctx, tx, event)
}

func (s *ConsentService) getByID(ctx context.Context, consentID string) (*models.Consent, error) {
	consent, err := s.consentDAO.GetByID(ctx, consentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, svcerror.NotFound("consent not found: %s", consentID)
		}
		return nil, err
	}
	return consent, nil
}

func (s *ConsentService) getForUpdate(ctx context.Context, tx *database.Transaction, consentID string) (*models.Consent, error) {
	consent, err := s.consentDAO.GetByIDWithTx(ctx, tx, consentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, svcerror.NotFound("consent not found: %s", consentID)
		}
		return nil, err
	}
	return consent, nil
}

func (s *ConsentService) validateCreateRequest(request *models.ConsentCreateRequest) error {
	if err := utils.ValidateIdentifier("providerUserIdentifier", request.ProviderUserIdentifier); err != nil {
		return svcerror.Validation("%s", err.Error())
	}
	if err := utils.ValidateIdentifier("consumerUserIdentifier", request.ConsumerUserIdentifier); err != nil {
		return svcerror.Validation("%s", err.Error())
	}
	if err := utils.ValidateIdentifier("dataProvider", request.DataProvider); err != nil {
		return svcerror.Validation("%s", err.Error())
	}
	if err := utils.ValidateIdentifier("dataConsumer", request.DataConsumer); err != nil {
		return svcerror.Validation("%s", err.Error())
	}
	if len(request.Purposes) == 0 {
		return svcerror.Validation("purposes must not be empty")
	}
	for i, p := range request.Purposes {
		if p.Purpose == "" {
			return svcerror.Validation("purposes[%d].purpose is required", i)
		}
	}
	if err := utils.ValidateRequired("privacyNotice", request.PrivacyNoticeID); err != nil {
		return svcerror.Validation("%s", err.Error())
	}
	return nil
}

func (s *ConsentService) buildConsent(request *models.ConsentCreateRequest) (*models.Consent, error) {
	purposes, err := models.MarshalJSONColumn(request.Purposes)
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

	now := utils.GetCurrentTimeMillis()
	consent := &models.Consent{
		ConsentID:              utils.GenerateConsentID(),
		ProviderUserIdentifier: request.ProviderUserIdentifier,
		ConsumerUserIdentifier: request.ConsumerUserIdentifier,
		DataProvider:           request.DataProvider,
		DataConsumer:           request.DataConsumer,
		Purposes:               purposes,
		DataResources:          data,
		Recipients:             recipients,
		PrivacyNoticeID:        request.PrivacyNoticeID,
		SchemaVersion:          "0.1.0",
		CreatedTime:            now,
		UpdatedTime:            now,
	}

	if request.UserID != "" {
		consent.UserID = &request.UserID
	}
	if request.Contract != "" {
		consent.Contract = &request.Contract
	}
	if request.WithdrawalMethod != "" {
		consent.WithdrawalMethod = &request.WithdrawalMethod
	}
	if request.RetentionPeriod != "" {
		consent.RetentionPeriod = &request.RetentionPeriod
	}
	if request.JSONLD != "" {
		consent.JSONLD = &request.JSONLD
	}

	if len(request.ProcessingLocations) > 0 {
		if consent.ProcessingLocations, err = models.MarshalJSONColumn(request.ProcessingLocations); err != nil {
			return nil, err
		}
	}
	if len(request.StorageLocations) > 0 {
		if consent.StorageLocations, err = models.MarshalJSONColumn(request.StorageLocations); err != nil {
			return nil, err
		}
	}
	if len(request.RecipientThirdParties) > 0 {
		if consent.RecipientThirdParties, err = models.MarshalJSONColumn(request.RecipientThirdParties); err != nil {
			return nil, err
		}
	}
	if len(request.PiiPrincipalRights) > 0 {
		if consent.PiiPrincipalRights, err = models.MarshalJSONColumn(request.PiiPrincipalRights); err != nil {
			return nil, err
		}
	}

	return consent, nil
}

func (s *ConsentService) buildConsentResponse(ctx context.Context, consent *models.Consent, withEvents bool) (*models.ConsentResponse, error) {
	response := &models.ConsentResponse{
		ConsentID:              consent.ConsentID,
		UserID:                 consent.UserID,
		ProviderUserIdentifier: consent.ProviderUserIdentifier,
		ConsumerUserIdentifier: consent.ConsumerUserIdentifier,
		DataProvider:           consent.DataProvider,
		DataConsumer:           consent.DataConsumer,
		Contract:               consent.Contract,
		Status:                 consent.Status,
		PrivacyNoticeID:        consent.PrivacyNoticeID,
		WithdrawalMethod:       consent.WithdrawalMethod,
		RetentionPeriod:        consent.RetentionPeriod,
		JSONLD:                 consent.JSONLD,
		SchemaVersion:          consent.SchemaVersion,
		CreatedTime:            consent.CreatedTime,
		UpdatedTime:            consent.UpdatedTime,
	}

	var err error
	if response.Purposes, err = consent.DecodedPurposes(); err != nil {
		s.logger.WithError(err).WithField("consent_id", consent.ConsentID).Warn("Failed to decode purposes")
	}
	if response.Data, err = consent.DecodedDataResources(); err != nil {
		s.logger.WithError(err).WithField("consent_id", consent.ConsentID).Warn("Failed to decode data resources")
	}
	decodeJSONColumn(consent.Recipients, &response.Recipients)
	decodeJSONColumn(consent.ProcessingLocations, &response.ProcessingLocations)
	decodeJSONColumn(consent.StorageLocations, &response.StorageLocations)
	decodeJSONColumn(consent.RecipientThirdParties, &response.RecipientThirdParties)
	decodeJSONColumn(consent.PiiPrincipalRights, &response.PiiPrincipalRights)

	if withEvents {
		events, err := s.eventDAO.ListByConsentID(ctx, consent.ConsentID)
		if err != nil {
			s.logger.WithError(err).WithField("consent_id", consent.ConsentID).Warn("Failed to load consent events")
		} else {
			response.Events = events
		}
	}

	return response, nil
}

func (s *ConsentService) buildConsentResponses(ctx context.Context, consents []models.Consent) ([]models.ConsentResponse, error) {
	responses := make([]models.ConsentResponse, 0, len(consents))
	for i := range consents {
		response, err := s.buildConsentResponse(ctx, &consents[i], false)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *response)
	}
	return responses, nil
}

func decodeJSONColumn(column models.JSON, target interface{}) {
	if len(column) == 0 {
		return
	}
	_ = json.Unmarshal(column, target)
}

func consentBelongsToUser(consent *models.Consent, userID string) bool {
	if consent.UserID != nil && *consent.UserID == userID {
		return true
	}
	return consent.ProviderUserIdentifier == userID || consent.ConsumerUserIdentifier == userID
}
