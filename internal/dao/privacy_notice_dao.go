package dao

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/VisionsOfficial/consent-manager/internal/database"
	"github.com/VisionsOfficial/consent-manager/internal/models"
)

const noticeColumns = `NOTICE_ID, CONTRACT, TITLE, LAST_UPDATED, DATA_PROVIDER, DATA_CONSUMER,
	       CONTROLLER_DETAILS, PURPOSES, CATEGORIES_OF_DATA, DATA_RESOURCES, RECIPIENTS,
	       INTERNATIONAL_TRANSFERS, RETENTION_PERIOD, PII_PRINCIPAL_RIGHTS,
	       WITHDRAWAL_OF_CONSENT, COMPLAINT_RIGHTS, PROVISION_REQUIREMENTS,
	       AUTOMATED_DECISION_MAKING, JSONLD, SCHEMA_VERSION, ARCHIVED_AT,
	       CREATED_TIME, UPDATED_TIME`

// PrivacyNoticeDAO handles database operations for privacy notices.
// Notices are never mutated in place; superseding inserts a new row and
// archives the previous one in a single transaction.
type PrivacyNoticeDAO struct {
	db *database.DB
}

// NewPrivacyNoticeDAO creates a new PrivacyNoticeDAO instance
func NewPrivacyNoticeDAO(db *database.DB) *PrivacyNoticeDAO {
	return &PrivacyNoticeDAO{db: db}
}

// Create inserts a new privacy notice
func (dao *PrivacyNoticeDAO) Create(ctx context.Context, notice *models.PrivacyNotice) error {
	return dao.create(ctx, dao.db, notice)
}

// CreateWithTx inserts a new privacy notice using a transaction
func (dao *PrivacyNoticeDAO) CreateWithTx(ctx context.Context, tx *database.Transaction, notice *models.PrivacyNotice) error {
	return dao.create(ctx, tx, notice)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (dao *PrivacyNoticeDAO) create(ctx context.Context, e execer, notice *models.PrivacyNotice) error {
	query := `
		INSERT INTO CM_PRIVACY_NOTICE (
			NOTICE_ID, CONTRACT, TITLE, LAST_UPDATED, DATA_PROVIDER, DATA_CONSUMER,
			CONTROLLER_DETAILS, PURPOSES, CATEGORIES_OF_DATA, DATA_RESOURCES, RECIPIENTS,
			INTERNATIONAL_TRANSFERS, RETENTION_PERIOD, PII_PRINCIPAL_RIGHTS,
			WITHDRAWAL_OF_CONSENT, COMPLAINT_RIGHTS, PROVISION_REQUIREMENTS,
			AUTOMATED_DECISION_MAKING, JSONLD, SCHEMA_VERSION, CREATED_TIME, UPDATED_TIME
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := e.ExecContext(
		ctx,
		query,
		notice.NoticeID,
		notice.Contract,
		notice.Title,
		notice.LastUpdated,
		notice.DataProvider,
		notice.DataConsumer,
		notice.ControllerDetails,
		notice.Purposes,
		notice.CategoriesOfData,
		notice.DataResources,
		notice.Recipients,
		notice.InternationalTransfers,
		notice.RetentionPeriod,
		notice.PiiPrincipalRights,
		notice.WithdrawalOfConsent,
		notice.ComplaintRights,
		notice.ProvisionRequirements,
		notice.AutomatedDecisionMaking,
		notice.JSONLD,
		notice.SchemaVersion,
		notice.CreatedTime,
		notice.UpdatedTime,
	)

	if err != nil {
		return fmt.Errorf("failed to create privacy notice: %w", err)
	}

	return nil
}

// GetByID retrieves a privacy notice by its reference
func (dao *PrivacyNoticeDAO) GetByID(ctx context.Context, noticeID string) (*models.PrivacyNotice, error) {
	query := fmt.Sprintf(`SELECT %s FROM CM_PRIVACY_NOTICE WHERE NOTICE_ID = ?`, noticeColumns)

	var notice models.PrivacyNotice
	err := dao.db.GetContext(ctx, &notice, query, noticeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get privacy notice: %w", err)
	}

	return &notice, nil
}

// ListByParticipantPair retrieves active (non-archived) notices for a
// provider/consumer pair
func (dao *PrivacyNoticeDAO) ListByParticipantPair(ctx context.Context, dataProvider, dataConsumer string) ([]models.PrivacyNotice, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM CM_PRIVACY_NOTICE
		WHERE DATA_PROVIDER = ? AND DATA_CONSUMER = ? AND ARCHIVED_AT IS NULL
		ORDER BY CREATED_TIME DESC
	`, noticeColumns)

	var notices []models.PrivacyNotice
	err := dao.db.SelectContext(ctx, &notices, query, dataProvider, dataConsumer)
	if err != nil {
		return nil, fmt.Errorf("failed to list privacy notices: %w", err)
	}

	return notices, nil
}

// ListByContract retrieves active (non-archived) notices for a contract
func (dao *PrivacyNoticeDAO) ListByContract(ctx context.Context, contract string) ([]models.PrivacyNotice, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM CM_PRIVACY_NOTICE
		WHERE CONTRACT = ? AND ARCHIVED_AT IS NULL
		ORDER BY CREATED_TIME DESC
	`, noticeColumns)

	var notices []models.PrivacyNotice
	err := dao.db.SelectContext(ctx, &notices, query, contract)
	if err != nil {
		return nil, fmt.Errorf("failed to list privacy notices by contract: %w", err)
	}

	return notices, nil
}

// ArchiveWithTx freezes a notice for audit. The guard on ARCHIVED_AT keeps
// the operation idempotent and an archived notice immutable.
func (dao *PrivacyNoticeDAO) ArchiveWithTx(ctx context.Context, tx *database.Transaction, noticeID string, archivedAt int64) (bool, error) {
	query := `
		UPDATE CM_PRIVACY_NOTICE
		SET ARCHIVED_AT = ?, UPDATED_TIME = ?
		WHERE NOTICE_ID = ? AND ARCHIVED_AT IS NULL
	`

	result, err := tx.ExecContext(ctx, query, archivedAt, archivedAt, noticeID)
	if err != nil {
		return false, fmt.Errorf("failed to archive privacy notice: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
