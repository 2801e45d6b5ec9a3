package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VisionsOfficial/consent-manager/internal/config"
	"github.com/VisionsOfficial/consent-manager/internal/dao"
	"github.com/VisionsOfficial/consent-manager/internal/database"
	"github.com/VisionsOfficial/consent-manager/internal/models"
	"github.com/VisionsOfficial/consent-manager/internal/svcerror"
	"github.com/VisionsOfficial/consent-manager/pkg/utils"
)

func newTokenService(db *database.DB) *TokenService {
	return NewTokenService(
		dao.NewConsentDAO(db),
		&config.TokenConfig{TTL: 5 * time.Minute},
		testLogger(),
	)
}

// TestIssue_BindsFreshToken tests that issue binds an opaque token with TTL expiry
func TestIssue_BindsFreshToken(t *testing.T) {
	db, mock := newMockDB(t)
	service := newTokenService(db)

	consent := testConsent(models.StatusGranted)

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectExec("UPDATE CM_CONSENT").
		WillReturnResult(sqlmock.NewResult(0, 1))

	before := utils.GetCurrentTimeMillis()
	resp, err := service.Issue(context.Background(), consent.ConsentID)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Token, "TKN-"))
	assert.GreaterOrEqual(t, resp.ExpiresAt, before+(5*time.Minute).Milliseconds())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestIssue_RequiresGrantedStatus tests that issue fails on a non-granted record
func TestIssue_RequiresGrantedStatus(t *testing.T) {
	db, mock := newMockDB(t)
	service := newTokenService(db)

	consent := testConsent(models.StatusPending)

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))

	resp, err := service.Issue(context.Background(), consent.ConsentID)

	assert.Nil(t, resp)
	assert.True(t, svcerror.IsKind(err, svcerror.KindPrecondition))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestIssue_RevokedConcurrently tests the race where the consent leaves
// granted between the read and the guarded write
func TestIssue_RevokedConcurrently(t *testing.T) {
	db, mock := newMockDB(t)
	service := newTokenService(db)

	consent := testConsent(models.StatusGranted)

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectExec("UPDATE CM_CONSENT").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := service.Issue(context.Background(), consent.ConsentID)

	assert.True(t, svcerror.IsKind(err, svcerror.KindPrecondition))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestVerify_MatchingLiveToken tests that a live bound token verifies and the
// probe does not consume it
func TestVerify_MatchingLiveToken(t *testing.T) {
	db, mock := newMockDB(t)
	service := newTokenService(db)

	consent := testConsent(models.StatusGranted)
	consent.Token = stringPtr("TKN-live")
	consent.TokenExpiresAt = int64Ptr(utils.GetCurrentTimeMillis() + 300000)

	// Two probes, both against an unchanged binding.
	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))

	first, err := service.Verify(context.Background(), consent.ConsentID, "TKN-live")
	require.NoError(t, err)
	assert.True(t, first.Verified)

	second, err := service.Verify(context.Background(), consent.ConsentID, "TKN-live")
	require.NoError(t, err)
	assert.True(t, second.Verified)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestVerify_ExpiredToken tests that an expired binding never verifies
func TestVerify_ExpiredToken(t *testing.T) {
	db, mock := newMockDB(t)
	service := newTokenService(db)

	consent := testConsent(models.StatusGranted)
	consent.Token = stringPtr("TKN-stale")
	consent.TokenExpiresAt = int64Ptr(utils.GetCurrentTimeMillis() - 1000)

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))

	resp, err := service.Verify(context.Background(), consent.ConsentID, "TKN-stale")

	require.NoError(t, err)
	assert.False(t, resp.Verified)
}

// TestVerify_MismatchedToken tests that a superseded token no longer verifies
func TestVerify_MismatchedToken(t *testing.T) {
	db, mock := newMockDB(t)
	service := newTokenService(db)

	consent := testConsent(models.StatusGranted)
	consent.Token = stringPtr("TKN-current")
	consent.TokenExpiresAt = int64Ptr(utils.GetCurrentTimeMillis() + 300000)

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))

	resp, err := service.Verify(context.Background(), consent.ConsentID, "TKN-previous")

	require.NoError(t, err)
	assert.False(t, resp.Verified)
}

// TestVerify_RevokedConsentClearsBinding tests that a revoked record never
// verifies even when a token value is still presented
func TestVerify_RevokedConsentClearsBinding(t *testing.T) {
	db, mock := newMockDB(t)
	service := newTokenService(db)

	// A terminal transition clears the token columns in the same write.
	consent := testConsent(models.StatusRevoked)

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))

	resp, err := service.Verify(context.Background(), consent.ConsentID, "TKN-was-live")

	require.NoError(t, err)
	assert.False(t, resp.Verified)
}

// TestVerify_RequiresToken tests input validation on the probe
func TestVerify_RequiresToken(t *testing.T) {
	service := &TokenService{logger: testLogger()}

	_, err := service.Verify(context.Background(), "CONSENT-1", "")

	assert.True(t, svcerror.IsKind(err, svcerror.KindValidation))
}
