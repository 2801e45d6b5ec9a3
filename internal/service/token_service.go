package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/VisionsOfficial/consent-manager/internal/config"
	"github.com/VisionsOfficial/consent-manager/internal/dao"
	"github.com/VisionsOfficial/consent-manager/internal/models"
	"github.com/VisionsOfficial/consent-manager/internal/svcerror"
	"github.com/VisionsOfficial/consent-manager/pkg/utils"
)

// TokenService issues and verifies the single-use verification token bound to
// a granted consent. At most one token is live per consent at any time:
// issuing again overwrites the previous binding, so only the most recently
// issued token verifies. Verification is a non-consuming probe; the token is
// cleared by the orchestrator after the exchange is fulfilled, or by any
// transition out of granted.
type TokenService struct {
	consentDAO *dao.ConsentDAO
	cfg        *config.TokenConfig
	logger     *logrus.Logger
}

// NewTokenService creates a new token service instance
func NewTokenService(consentDAO *dao.ConsentDAO, cfg *config.TokenConfig, logger *logrus.Logger) *TokenService {
	return &TokenService{
		consentDAO: consentDAO,
		cfg:        cfg,
		logger:     logger,
	}
}

// Issue binds a fresh token to a granted consent with a fixed expiry of
// now + TTL. A prior live token is invalidated by the overwrite. Issuing on
// a consent that is not granted fails the precondition.
func (s *TokenService) Issue(ctx context.Context, consentID string) (*models.TokenResponse, error) {
	if err := utils.ValidateConsentID(consentID); err != nil {
		return nil, svcerror.Validation("%s", err.Error())
	}

	consent, err := s.getByID(ctx, consentID)
	if err != nil {
		return nil, err
	}

	if models.ConsentStatus(consent.Status) != models.StatusGranted {
		return nil, svcerror.Precondition("cannot issue token for consent in status %q", consent.Status)
	}

	token := utils.GenerateToken()
	now := utils.GetCurrentTimeMillis()
	expiresAt := now + s.cfg.TTL.Milliseconds()

	applied, err := s.consentDAO.SetTokenGuarded(ctx, consentID, token, expiresAt, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		// The consent left granted between the read and the write.
		return nil, svcerror.Precondition("consent %s is no longer granted", consentID)
	}

	s.logger.WithFields(logrus.Fields{
		"consent_id": consentID,
		"expires_at": expiresAt,
	}).Info("Verification token issued")

	return &models.TokenResponse{
		ConsentID: consentID,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks a presented token against the consent's current binding.
// The probe does not consume the token; repeated verification of the same
// live token keeps succeeding until it is cleared or expires.
func (s *TokenService) Verify(ctx context.Context, consentID, token string) (*models.VerifyTokenResponse, error) {
	if err := utils.ValidateConsentID(consentID); err != nil {
		return nil, svcerror.Validation("%s", err.Error())
	}
	if token == "" {
		return nil, svcerror.Validation("token is required")
	}

	consent, err := s.getByID(ctx, consentID)
	if err != nil {
		return nil, err
	}

	now := utils.GetCurrentTimeMillis()
	verified := models.ConsentStatus(consent.Status) == models.StatusGranted &&
		consent.HasLiveToken(now) &&
		*consent.Token == token

	return &models.VerifyTokenResponse{
		ConsentID: consentID,
		Verified:  verified,
	}, nil
}

// ClearAfterExchange drops the token binding once the exchange it was issued
// for has been fulfilled. The clear is conditioned on the token value so a
// concurrently re-issued token survives.
func (s *TokenService) ClearAfterExchange(ctx context.Context, consentID, token string) error {
	return s.consentDAO.ClearTokenIfMatch(ctx, consentID, token, utils.GetCurrentTimeMillis())
}

func (s *TokenService) getByID(ctx context.Context, consentID string) (*models.Consent, error) {
	consent, err := s.consentDAO.GetByID(ctx, consentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, svcerror.NotFound("consent not found: %s", consentID)
		}
		return nil, err
	}
	return consent, nil
}
