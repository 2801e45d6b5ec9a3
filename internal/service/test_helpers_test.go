package service

import (
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/VisionsOfficial/consent-manager/internal/database"
	"github.com/VisionsOfficial/consent-manager/internal/models"
	"github.com/VisionsOfficial/consent-manager/pkg/utils"
)

// newMockDB wires a sqlmock connection through the database wrapper so that
// services and DAOs run against scripted queries.
func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return database.Wrap(sqlx.NewDb(mockDB, "sqlmock"), logger), mock
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var consentColumnNames = []string{
	"CONSENT_ID", "USER_ID", "PROVIDER_USER_ID", "CONSUMER_USER_ID", "DATA_PROVIDER",
	"DATA_CONSUMER", "CONTRACT", "PURPOSES", "DATA_RESOURCES", "RECIPIENTS", "STATUS",
	"PRIVACY_NOTICE_ID", "WITHDRAWAL_METHOD", "RETENTION_PERIOD", "PROCESSING_LOCATIONS",
	"STORAGE_LOCATIONS", "RECIPIENT_THIRD_PARTIES", "PII_PRINCIPAL_RIGHTS", "TOKEN",
	"TOKEN_EXPIRES_AT", "JSONLD", "SCHEMA_VERSION", "CREATED_TIME", "UPDATED_TIME",
}

// testConsent builds a minimal consent record in the given status.
func testConsent(status models.ConsentStatus) *models.Consent {
	now := utils.GetCurrentTimeMillis()
	return &models.Consent{
		ConsentID:              "CONSENT-11111111-1111-1111-1111-111111111111",
		ProviderUserIdentifier: "user-at-provider",
		ConsumerUserIdentifier: "user-at-consumer",
		DataProvider:           "did:provider",
		DataConsumer:           "did:consumer",
		Purposes:               models.JSON(`[{"purpose":"marketing","legalBasis":"consent"}]`),
		DataResources:          models.JSON(`["resource-1"]`),
		Status:                 string(status),
		PrivacyNoticeID:        "NOTICE-1",
		SchemaVersion:          "0.1.0",
		CreatedTime:            now,
		UpdatedTime:            now,
	}
}

// consentRows scripts a single-row result for a consent read.
func consentRows(c *models.Consent) *sqlmock.Rows {
	return sqlmock.NewRows(consentColumnNames).AddRow(
		c.ConsentID,
		nullableString(c.UserID),
		c.ProviderUserIdentifier,
		c.ConsumerUserIdentifier,
		c.DataProvider,
		c.DataConsumer,
		nullableString(c.Contract),
		jsonValue(c.Purposes),
		jsonValue(c.DataResources),
		jsonValue(c.Recipients),
		c.Status,
		c.PrivacyNoticeID,
		nullableString(c.WithdrawalMethod),
		nullableString(c.RetentionPeriod),
		jsonValue(c.ProcessingLocations),
		jsonValue(c.StorageLocations),
		jsonValue(c.RecipientThirdParties),
		jsonValue(c.PiiPrincipalRights),
		nullableString(c.Token),
		nullableInt64(c.TokenExpiresAt),
		nullableString(c.JSONLD),
		c.SchemaVersion,
		c.CreatedTime,
		c.UpdatedTime,
	)
}

var participantColumnNames = []string{
	"PARTICIPANT_ID", "LEGAL_NAME", "IDENTIFIER", "SELF_DESCRIPTION_URL",
	"DATA_IMPORT_ENDPOINT", "DATA_EXPORT_ENDPOINT", "CONSENT_IMPORT_ENDPOINT",
	"CONSENT_EXPORT_ENDPOINT", "DATASPACE_ENDPOINT", "CREATED_TIME", "UPDATED_TIME",
}

func participantRows(p *models.Participant) *sqlmock.Rows {
	return sqlmock.NewRows(participantColumnNames).AddRow(
		p.ParticipantID,
		p.LegalName,
		p.Identifier,
		p.SelfDescriptionURL,
		nullableString(p.DataImportEndpoint),
		nullableString(p.DataExportEndpoint),
		nullableString(p.ConsentImportEndpoint),
		nullableString(p.ConsentExportEndpoint),
		nullableString(p.DataspaceEndpoint),
		p.CreatedTime,
		p.UpdatedTime,
	)
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func jsonValue(j models.JSON) interface{} {
	if len(j) == 0 {
		return nil
	}
	return []byte(j)
}

func stringPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }
