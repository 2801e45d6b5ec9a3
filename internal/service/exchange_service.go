package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/VisionsOfficial/consent-manager/internal/dao"
	"github.com/VisionsOfficial/consent-manager/internal/exchangeclient"
	"github.com/VisionsOfficial/consent-manager/internal/models"
	"github.com/VisionsOfficial/consent-manager/internal/svcerror"
	"github.com/VisionsOfficial/consent-manager/pkg/utils"
)

// ExchangeService orchestrates the data exchange for a granted consent: it
// issues (or reuses) the verification token, resolves the provider's export
// connector from the participant directory, posts the exchange request and
// interprets the remote outcome.
//
// Outcome interpretation:
//
//	2xx              exchange fulfilled, token cleared, consent stays granted
//	4xx              counter-participant declined; retriable after the cause
//	                 is addressed, the token binding is left in place
//	network/timeout  no remote outcome; consent stays granted with the token
//	5xx              bound, so a retry can resume with the same token
type ExchangeService struct {
	consentDAO     *dao.ConsentDAO
	participantDAO *dao.ParticipantDAO
	tokenService   *TokenService
	client         *exchangeclient.Client
	logger         *logrus.Logger
}

// NewExchangeService creates a new exchange service instance
func NewExchangeService(
	consentDAO *dao.ConsentDAO,
	participantDAO *dao.ParticipantDAO,
	tokenService *TokenService,
	client *exchangeclient.Client,
	logger *logrus.Logger,
) *ExchangeService {
	return &ExchangeService{
		consentDAO:     consentDAO,
		participantDAO: participantDAO,
		tokenService:   tokenService,
		client:         client,
		logger:         logger,
	}
}

// Trigger starts a data exchange for a granted consent with a freshly issued
// token. Any previously live token is superseded by the issue.
func (s *ExchangeService) Trigger(ctx context.Context, consentID string) (*models.ExchangeOutcome, error) {
	consent, err := s.getGranted(ctx, consentID)
	if err != nil {
		return nil, err
	}

	tokenResponse, err := s.tokenService.Issue(ctx, consentID)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, consent, tokenResponse.Token)
}

// Resume retries an exchange after a transient failure. When the consent
// still holds a live token the retry presents that same token; otherwise a
// fresh one is issued first.
func (s *ExchangeService) Resume(ctx context.Context, consentID string) (*models.ExchangeOutcome, error) {
	consent, err := s.getGranted(ctx, consentID)
	if err != nil {
		return nil, err
	}

	if consent.HasLiveToken(utils.GetCurrentTimeMillis()) {
		return s.execute(ctx, consent, *consent.Token)
	}

	tokenResponse, err := s.tokenService.Issue(ctx, consentID)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, consent, tokenResponse.Token)
}

// RedirectTarget resolves the consumer participant's dataspace endpoint for
// interactive confirmation flows.
func (s *ExchangeService) RedirectTarget(ctx context.Context, consentID string) (*models.RedirectTargetResponse, error) {
	consent, err := s.getByID(ctx, consentID)
	if err != nil {
		return nil, err
	}

	consumer, err := s.resolveParticipant(ctx, consent.DataConsumer)
	if err != nil {
		return nil, err
	}

	if consumer.DataspaceEndpoint == nil || *consumer.DataspaceEndpoint == "" {
		return nil, svcerror.Precondition("participant %s declares no dataspace endpoint", consent.DataConsumer)
	}

	return &models.RedirectTargetResponse{
		ConsentID: consentID,
		URI:       fmt.Sprintf("%s?consentId=%s", *consumer.DataspaceEndpoint, consentID),
	}, nil
}

// NotifyRevocation informs the data consumer's connector that the consent
// ended. Best-effort: failures are logged and swallowed, the revocation
// itself already committed.
func (s *ExchangeService) NotifyRevocation(ctx context.Context, consent *models.Consent) {
	consumer, err := s.resolveParticipant(ctx, consent.DataConsumer)
	if err != nil {
		s.logger.WithError(err).WithField("consent_id", consent.ConsentID).Warn("Cannot resolve consumer for revocation notice")
		return
	}

	if consumer.ConsentImportEndpoint == nil || *consumer.ConsentImportEndpoint == "" {
		s.logger.WithFields(logrus.Fields{
			"consent_id":  consent.ConsentID,
			"participant": consent.DataConsumer,
		}).Warn("Consumer declares no consent import endpoint, revocation notice skipped")
		return
	}

	notice := &exchangeclient.RevocationNotice{
		ConsentID: consent.ConsentID,
		Status:    consent.Status,
		EventTime: utils.GetCurrentTimeMillis(),
	}

	result, err := s.client.PostRevocation(ctx, *consumer.ConsentImportEndpoint, notice)
	if err != nil {
		s.logger.WithError(err).WithField("consent_id", consent.ConsentID).Warn("Revocation notice delivery failed")
		return
	}
	if !result.Succeeded() {
		s.logger.WithFields(logrus.Fields{
			"consent_id":  consent.ConsentID,
			"status_code": result.StatusCode,
		}).Warn("Revocation notice not acknowledged")
	}
}

// execute posts the exchange to the provider's export connector and
// interprets the remote outcome. The token is cleared only on fulfillment.
func (s *ExchangeService) execute(ctx context.Context, consent *models.Consent, token string) (*models.ExchangeOutcome, error) {
	provider, err := s.resolveParticipant(ctx, consent.DataProvider)
	if err != nil {
		return nil, err
	}
	if provider.DataExportEndpoint == nil || *provider.DataExportEndpoint == "" {
		return nil, svcerror.Precondition("participant %s declares no data export endpoint", consent.DataProvider)
	}

	data, err := consent.DecodedDataResources()
	if err != nil {
		return nil, err
	}

	request := &exchangeclient.ExchangeRequest{
		ConsentID:              consent.ConsentID,
		Token:                  token,
		DataProvider:           consent.DataProvider,
		DataConsumer:           consent.DataConsumer,
		ProviderUserIdentifier: consent.ProviderUserIdentifier,
		ConsumerUserIdentifier: consent.ConsumerUserIdentifier,
		Data:                   data,
	}

	if consumer, err := s.resolveParticipant(ctx, consent.DataConsumer); err == nil {
		if consumer.DataImportEndpoint != nil {
			request.DataImportEndpoint = *consumer.DataImportEndpoint
		}
	}

	result, err := s.client.PostExchange(ctx, *provider.DataExportEndpoint, request)
	if err != nil {
		// No remote outcome. The consent stays granted with the token
		// bound so the exchange can be resumed.
		return nil, svcerror.Transient("exchange did not produce a remote outcome", err)
	}

	now := utils.GetCurrentTimeMillis()

	switch {
	case result.Succeeded():
		if err := s.tokenService.ClearAfterExchange(ctx, consent.ConsentID, token); err != nil {
			s.logger.WithError(err).WithField("consent_id", consent.ConsentID).Error("Failed to clear token after fulfilled exchange")
		}
		s.logger.WithFields(logrus.Fields{
			"consent_id":  consent.ConsentID,
			"status_code": result.StatusCode,
		}).Info("Data exchange fulfilled")
		return &models.ExchangeOutcome{
			ConsentID:    consent.ConsentID,
			Fulfilled:    true,
			RemoteStatus: result.StatusCode,
			CompletedAt:  now,
		}, nil

	case result.Rejected():
		s.logger.WithFields(logrus.Fields{
			"consent_id":  consent.ConsentID,
			"status_code": result.StatusCode,
		}).Warn("Counter-participant rejected exchange")
		return nil, svcerror.RemoteRejected("counter-participant rejected the exchange with status %d", result.StatusCode)

	default:
		return nil, svcerror.Transient(
			fmt.Sprintf("counter-participant returned status %d", result.StatusCode), nil)
	}
}

func (s *ExchangeService) getGranted(ctx context.Context, consentID string) (*models.Consent, error) {
	consent, err := s.getByID(ctx, consentID)
	if err != nil {
		return nil, err
	}
	if models.ConsentStatus(consent.Status) != models.StatusGranted {
		return nil, svcerror.Precondition("cannot exchange on consent in status %q", consent.Status)
	}
	return consent, nil
}

func (s *ExchangeService) getByID(ctx context.Context, consentID string) (*models.Consent, error) {
	if err := utils.ValidateConsentID(consentID); err != nil {
		return nil, svcerror.Validation("%s", err.Error())
	}

	consent, err := s.consentDAO.GetByID(ctx, consentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, svcerror.NotFound("consent not found: %s", consentID)
		}
		return nil, err
	}
	return consent, nil
}

func (s *ExchangeService) resolveParticipant(ctx context.Context, identifier string) (*models.Participant, error) {
	participant, err := s.participantDAO.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, svcerror.NotFound("participant not found: %s", identifier)
		}
		return nil, err
	}
	return participant, nil
}
