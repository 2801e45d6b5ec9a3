package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VisionsOfficial/consent-manager/internal/config"
	"github.com/VisionsOfficial/consent-manager/internal/dao"
	"github.com/VisionsOfficial/consent-manager/internal/database"
	"github.com/VisionsOfficial/consent-manager/internal/exchangeclient"
	"github.com/VisionsOfficial/consent-manager/internal/models"
	"github.com/VisionsOfficial/consent-manager/internal/svcerror"
	"github.com/VisionsOfficial/consent-manager/pkg/utils"
)

func newExchangeService(db *database.DB) *ExchangeService {
	consentDAO := dao.NewConsentDAO(db)
	return NewExchangeService(
		consentDAO,
		dao.NewParticipantDAO(db),
		NewTokenService(consentDAO, &config.TokenConfig{TTL: 5 * time.Minute}, testLogger()),
		exchangeclient.NewClient(&config.ExchangeConfig{Timeout: 2 * time.Second}, testLogger()),
		testLogger(),
	)
}

func testProvider(exportEndpoint string) *models.Participant {
	return &models.Participant{
		ParticipantID:      "PART-provider",
		LegalName:          "Provider Org",
		Identifier:         "did:provider",
		SelfDescriptionURL: "https://provider.example/sd",
		DataExportEndpoint: &exportEndpoint,
	}
}

// expectConsumerUnknown scripts the optional consumer lookup for the import
// endpoint to resolve nothing.
func expectConsumerUnknown(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT (.+) FROM CM_PARTICIPANT").
		WillReturnError(sql.ErrNoRows)
}

// TestTrigger_FulfilledClearsToken tests the happy path: the provider
// connector accepts the exchange, the token is cleared, the consent stays
// granted
func TestTrigger_FulfilledClearsToken(t *testing.T) {
	var received exchangeclient.ExchangeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	db, mock := newMockDB(t)
	service := newExchangeService(db)

	consent := testConsent(models.StatusGranted)

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	// Token issue re-reads the record before the guarded bind.
	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectExec("UPDATE CM_CONSENT").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM CM_PARTICIPANT").
		WillReturnRows(participantRows(testProvider(server.URL)))
	expectConsumerUnknown(mock)
	mock.ExpectExec("UPDATE CM_CONSENT").
		WillReturnResult(sqlmock.NewResult(0, 1))

	outcome, err := service.Trigger(context.Background(), consent.ConsentID)

	require.NoError(t, err)
	assert.True(t, outcome.Fulfilled)
	assert.Equal(t, http.StatusOK, outcome.RemoteStatus)
	assert.Equal(t, consent.ConsentID, received.ConsentID)
	assert.NotEmpty(t, received.Token)
	assert.Equal(t, []string{"resource-1"}, received.Data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestTrigger_RemoteRejection tests that a 4xx remote outcome surfaces as a
// rejection and leaves the token bound for remediation
func TestTrigger_RemoteRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	db, mock := newMockDB(t)
	service := newExchangeService(db)

	consent := testConsent(models.StatusGranted)

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectExec("UPDATE CM_CONSENT").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM CM_PARTICIPANT").
		WillReturnRows(participantRows(testProvider(server.URL)))
	expectConsumerUnknown(mock)

	outcome, err := service.Trigger(context.Background(), consent.ConsentID)

	assert.Nil(t, outcome)
	assert.True(t, svcerror.IsKind(err, svcerror.KindRemoteRejected))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestTrigger_ServerErrorIsTransient tests that a 5xx remote outcome is
// retriable
func TestTrigger_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	db, mock := newMockDB(t)
	service := newExchangeService(db)

	consent := testConsent(models.StatusGranted)

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectExec("UPDATE CM_CONSENT").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM CM_PARTICIPANT").
		WillReturnRows(participantRows(testProvider(server.URL)))
	expectConsumerUnknown(mock)

	_, err := service.Trigger(context.Background(), consent.ConsentID)

	assert.True(t, svcerror.IsKind(err, svcerror.KindTransient))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestTrigger_NetworkFailureIsTransient tests that an unreachable connector
// produces no remote outcome and leaves the consent granted with its token
func TestTrigger_NetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	db, mock := newMockDB(t)
	service := newExchangeService(db)

	consent := testConsent(models.StatusGranted)

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectExec("UPDATE CM_CONSENT").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM CM_PARTICIPANT").
		WillReturnRows(participantRows(testProvider(endpoint)))
	expectConsumerUnknown(mock)

	_, err := service.Trigger(context.Background(), consent.ConsentID)

	assert.True(t, svcerror.IsKind(err, svcerror.KindTransient))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestTrigger_RequiresGrantedStatus tests that a revoked record cannot start
// an exchange
func TestTrigger_RequiresGrantedStatus(t *testing.T) {
	db, mock := newMockDB(t)
	service := newExchangeService(db)

	consent := testConsent(models.StatusRevoked)

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))

	_, err := service.Trigger(context.Background(), consent.ConsentID)

	assert.True(t, svcerror.IsKind(err, svcerror.KindPrecondition))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestResume_ReusesLiveToken tests that resume presents the still-live token
// instead of issuing a fresh one
func TestResume_ReusesLiveToken(t *testing.T) {
	var received exchangeclient.ExchangeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	db, mock := newMockDB(t)
	service := newExchangeService(db)

	consent := testConsent(models.StatusGranted)
	consent.Token = stringPtr("TKN-still-live")
	consent.TokenExpiresAt = int64Ptr(utils.GetCurrentTimeMillis() + 300000)

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectQuery("SELECT (.+) FROM CM_PARTICIPANT").
		WillReturnRows(participantRows(testProvider(server.URL)))
	expectConsumerUnknown(mock)
	mock.ExpectExec("UPDATE CM_CONSENT").
		WillReturnResult(sqlmock.NewResult(0, 1))

	outcome, err := service.Resume(context.Background(), consent.ConsentID)

	require.NoError(t, err)
	assert.True(t, outcome.Fulfilled)
	assert.Equal(t, "TKN-still-live", received.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestResume_IssuesFreshTokenWhenExpired tests that resume after expiry goes
// through a full re-issue
func TestResume_IssuesFreshTokenWhenExpired(t *testing.T) {
	var received exchangeclient.ExchangeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	db, mock := newMockDB(t)
	service := newExchangeService(db)

	consent := testConsent(models.StatusGranted)
	consent.Token = stringPtr("TKN-stale")
	consent.TokenExpiresAt = int64Ptr(utils.GetCurrentTimeMillis() - 1000)

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectExec("UPDATE CM_CONSENT").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM CM_PARTICIPANT").
		WillReturnRows(participantRows(testProvider(server.URL)))
	expectConsumerUnknown(mock)
	mock.ExpectExec("UPDATE CM_CONSENT").
		WillReturnResult(sqlmock.NewResult(0, 1))

	outcome, err := service.Resume(context.Background(), consent.ConsentID)

	require.NoError(t, err)
	assert.True(t, outcome.Fulfilled)
	assert.NotEqual(t, "TKN-stale", received.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRedirectTarget_ResolvesDataspaceEndpoint tests the interactive redirect
// lookup
func TestRedirectTarget_ResolvesDataspaceEndpoint(t *testing.T) {
	db, mock := newMockDB(t)
	service := newExchangeService(db)

	consent := testConsent(models.StatusGranted)
	consumer := &models.Participant{
		ParticipantID:      "PART-consumer",
		LegalName:          "Consumer Org",
		Identifier:         "did:consumer",
		SelfDescriptionURL: "https://consumer.example/sd",
		DataspaceEndpoint:  stringPtr("https://consumer.example/pdi"),
	}

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectQuery("SELECT (.+) FROM CM_PARTICIPANT").
		WillReturnRows(participantRows(consumer))

	resp, err := service.RedirectTarget(context.Background(), consent.ConsentID)

	require.NoError(t, err)
	assert.Equal(t, "https://consumer.example/pdi?consentId="+consent.ConsentID, resp.URI)
}

// TestRedirectTarget_MissingEndpoint tests the precondition on an undeclared
// dataspace endpoint
func TestRedirectTarget_MissingEndpoint(t *testing.T) {
	db, mock := newMockDB(t)
	service := newExchangeService(db)

	consent := testConsent(models.StatusGranted)
	consumer := &models.Participant{
		ParticipantID:      "PART-consumer",
		Identifier:         "did:consumer",
		SelfDescriptionURL: "https://consumer.example/sd",
	}

	mock.ExpectQuery("SELECT (.+) FROM CM_CONSENT WHERE CONSENT_ID").
		WillReturnRows(consentRows(consent))
	mock.ExpectQuery("SELECT (.+) FROM CM_PARTICIPANT").
		WillReturnRows(participantRows(consumer))

	_, err := service.RedirectTarget(context.Background(), consent.ConsentID)

	assert.True(t, svcerror.IsKind(err, svcerror.KindPrecondition))
}
