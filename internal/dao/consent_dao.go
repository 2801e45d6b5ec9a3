package dao

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/VisionsOfficial/consent-manager/internal/database"
	"github.com/VisionsOfficial/consent-manager/internal/models"
)

const consentColumns = `CONSENT_ID, USER_ID, PROVIDER_USER_ID, CONSUMER_USER_ID, DATA_PROVIDER,
	       DATA_CONSUMER, CONTRACT, PURPOSES, DATA_RESOURCES, RECIPIENTS, STATUS,
	       PRIVACY_NOTICE_ID, WITHDRAWAL_METHOD, RETENTION_PERIOD, PROCESSING_LOCATIONS,
	       STORAGE_LOCATIONS, RECIPIENT_THIRD_PARTIES, PII_PRINCIPAL_RIGHTS, TOKEN,
	       TOKEN_EXPIRES_AT, JSONLD, SCHEMA_VERSION, CREATED_TIME, UPDATED_TIME`

// ConsentDAO handles database operations for consent records.
//
// All shared mutable state of the service lives here; transitions on the same
// consent are linearized through the guarded UPDATE methods, which condition
// the write on the previously-read status and report zero affected rows when
// the read was stale.
type ConsentDAO struct {
	db *database.DB
}

// NewConsentDAO creates a new ConsentDAO instance
func NewConsentDAO(db *database.DB) *ConsentDAO {
	return &ConsentDAO{db: db}
}

// CreateWithTx inserts a new consent record using a transaction
func (dao *ConsentDAO) CreateWithTx(ctx context.Context, tx *database.Transaction, consent *models.Consent) error {
	query := `
		INSERT INTO CM_CONSENT (
			CONSENT_ID, USER_ID, PROVIDER_USER_ID, CONSUMER_USER_ID, DATA_PROVIDER,
			DATA_CONSUMER, CONTRACT, PURPOSES, DATA_RESOURCES, RECIPIENTS, STATUS,
			PRIVACY_NOTICE_ID, WITHDRAWAL_METHOD, RETENTION_PERIOD, PROCESSING_LOCATIONS,
			STORAGE_LOCATIONS, RECIPIENT_THIRD_PARTIES, PII_PRINCIPAL_RIGHTS,
			JSONLD, SCHEMA_VERSION, CREATED_TIME, UPDATED_TIME
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(
		ctx,
		query,
		consent.ConsentID,
		consent.UserID,
		consent.ProviderUserIdentifier,
		consent.ConsumerUserIdentifier,
		consent.DataProvider,
		consent.DataConsumer,
		consent.Contract,
		consent.Purposes,
		consent.DataResources,
		consent.Recipients,
		consent.Status,
		consent.PrivacyNoticeID,
		consent.WithdrawalMethod,
		consent.RetentionPeriod,
		consent.ProcessingLocations,
		consent.StorageLocations,
		consent.RecipientThirdParties,
		consent.PiiPrincipalRights,
		consent.JSONLD,
		consent.SchemaVersion,
		consent.CreatedTime,
		consent.UpdatedTime,
	)

	if err != nil {
		return fmt.Errorf("failed to create consent: %w", err)
	}

	return nil
}

// GetByID retrieves a consent record by ID
func (dao *ConsentDAO) GetByID(ctx context.Context, consentID string) (*models.Consent, error) {
	query := fmt.Sprintf(`SELECT %s FROM CM_CONSENT WHERE CONSENT_ID = ?`, consentColumns)

	var consent models.Consent
	err := dao.db.GetContext(ctx, &consent, query, consentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}

	return &consent, nil
}

// GetByIDWithTx retrieves a consent record by ID using a transaction
func (dao *ConsentDAO) GetByIDWithTx(ctx context.Context, tx *database.Transaction, consentID string) (*models.Consent, error) {
	query := fmt.Sprintf(`SELECT %s FROM CM_CONSENT WHERE CONSENT_ID = ?`, consentColumns)

	var consent models.Consent
	err := tx.GetContext(ctx, &consent, query, consentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}

	return &consent, nil
}

// UpdateStatusGuardedWithTx transitions a consent from expectedStatus to
// newStatus, clearing any bound token in the same write. The update is
// conditioned on the previously-read status; applied=false means the stored
// status no longer matches and the caller's read was stale.
func (dao *ConsentDAO) UpdateStatusGuardedWithTx(ctx context.Context, tx *database.Transaction, consentID, expectedStatus, newStatus string, updatedTime int64) (bool, error) {
	query := `
		UPDATE CM_CONSENT
		SET STATUS = ?, UPDATED_TIME = ?, TOKEN = NULL, TOKEN_EXPIRES_AT = NULL
		WHERE CONSENT_ID = ? AND STATUS = ?
	`

	result, err := tx.ExecContext(ctx, query, newStatus, updatedTime, consentID, expectedStatus)
	if err != nil {
		return false, fmt.Errorf("failed to update consent status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// SetTokenGuarded binds a verification token to a granted consent,
// overwriting any prior token. The guard on status enforces that a token is
// only ever attached to a granted record; concurrent issues serialize here
// and the last writer's token is authoritative.
func (dao *ConsentDAO) SetTokenGuarded(ctx context.Context, consentID, token string, expiresAt, updatedTime int64) (bool, error) {
	query := `
		UPDATE CM_CONSENT
		SET TOKEN = ?, TOKEN_EXPIRES_AT = ?, UPDATED_TIME = ?
		WHERE CONSENT_ID = ? AND STATUS = ?
	`

	result, err := dao.db.ExecContext(ctx, query, token, expiresAt, updatedTime, consentID, string(models.StatusGranted))
	if err != nil {
		return false, fmt.Errorf("failed to set consent token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ClearTokenIfMatch clears the bound token only when it still matches the
// given value, so a concurrently re-issued token is never clobbered.
func (dao *ConsentDAO) ClearTokenIfMatch(ctx context.Context, consentID, token string, updatedTime int64) error {
	query := `
		UPDATE CM_CONSENT
		SET TOKEN = NULL, TOKEN_EXPIRES_AT = NULL, UPDATED_TIME = ?
		WHERE CONSENT_ID = ? AND TOKEN = ?
	`

	_, err := dao.db.ExecContext(ctx, query, updatedTime, consentID, token)
	if err != nil {
		return fmt.Errorf("failed to clear consent token: %w", err)
	}

	return nil
}

// Search searches for consent records based on provided parameters
func (dao *ConsentDAO) Search(ctx context.Context, params *models.ConsentSearchParams) ([]models.Consent, int, error) {
	var conditions []string
	var args []interface{}

	if params.UserID != "" {
		conditions = append(conditions, "(USER_ID = ? OR PROVIDER_USER_ID = ? OR CONSUMER_USER_ID = ?)")
		args = append(args, params.UserID, params.UserID, params.UserID)
	}

	if params.DataProvider != "" {
		conditions = append(conditions, "DATA_PROVIDER = ?")
		args = append(args, params.DataProvider)
	}

	if params.DataConsumer != "" {
		conditions = append(conditions, "DATA_CONSUMER = ?")
		args = append(args, params.DataConsumer)
	}

	if params.Contract != "" {
		conditions = append(conditions, "CONTRACT = ?")
		args = append(args, params.Contract)
	}

	if len(params.Statuses) > 0 {
		placeholders := strings.Repeat("?,", len(params.Statuses)-1) + "?"
		conditions = append(conditions, fmt.Sprintf("STATUS IN (%s)", placeholders))
		for _, s := range params.Statuses {
			args = append(args, s)
		}
	}

	if params.FromTime != nil {
		conditions = append(conditions, "CREATED_TIME >= ?")
		args = append(args, *params.FromTime)
	}

	if params.ToTime != nil {
		conditions = append(conditions, "CREATED_TIME <= ?")
		args = append(args, *params.ToTime)
	}

	whereClause := "1=1"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM CM_CONSENT WHERE %s", whereClause)
	var total int
	err := dao.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count consents: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM CM_CONSENT
		WHERE %s
		ORDER BY CREATED_TIME DESC
		LIMIT ? OFFSET ?
	`, consentColumns, whereClause)

	args = append(args, limit, offset)

	var consents []models.Consent
	err = dao.db.SelectContext(ctx, &consents, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search consents: %w", err)
	}

	return consents, total, nil
}

// ListByUser retrieves all consent records where the given user is the data
// subject on either side of the exchange.
func (dao *ConsentDAO) ListByUser(ctx context.Context, userID string) ([]models.Consent, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM CM_CONSENT
		WHERE USER_ID = ? OR PROVIDER_USER_ID = ? OR CONSUMER_USER_ID = ?
		ORDER BY CREATED_TIME DESC
	`, consentColumns)

	var consents []models.Consent
	err := dao.db.SelectContext(ctx, &consents, query, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list consents by user: %w", err)
	}

	return consents, nil
}

// ListByParticipantPair retrieves consent records for a provider/consumer pair
func (dao *ConsentDAO) ListByParticipantPair(ctx context.Context, dataProvider, dataConsumer string) ([]models.Consent, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM CM_CONSENT
		WHERE DATA_PROVIDER = ? AND DATA_CONSUMER = ?
		ORDER BY CREATED_TIME DESC
	`, consentColumns)

	var consents []models.Consent
	err := dao.db.SelectContext(ctx, &consents, query, dataProvider, dataConsumer)
	if err != nil {
		return nil, fmt.Errorf("failed to list consents by participant pair: %w", err)
	}

	return consents, nil
}

// ListByContract retrieves consent records attached to a contract
func (dao *ConsentDAO) ListByContract(ctx context.Context, contract string) ([]models.Consent, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM CM_CONSENT
		WHERE CONTRACT = ?
		ORDER BY CREATED_TIME DESC
	`, consentColumns)

	var consents []models.Consent
	err := dao.db.SelectContext(ctx, &consents, query, contract)
	if err != nil {
		return nil, fmt.Errorf("failed to list consents by contract: %w", err)
	}

	return consents, nil
}

// ListExpiryCandidates retrieves granted consents that declare a retention
// period. The caller decides which have actually lapsed; retention periods
// are ISO 8601 durations and are interpreted in Go, not in SQL.
func (dao *ConsentDAO) ListExpiryCandidates(ctx context.Context) ([]models.Consent, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM CM_CONSENT
		WHERE STATUS = ? AND RETENTION_PERIOD IS NOT NULL
	`, consentColumns)

	var consents []models.Consent
	err := dao.db.SelectContext(ctx, &consents, query, string(models.StatusGranted))
	if err != nil {
		return nil, fmt.Errorf("failed to list expiry candidates: %w", err)
	}

	return consents, nil
}
