package dao

import (
	"context"
	"fmt"

	"github.com/VisionsOfficial/consent-manager/internal/database"
	"github.com/VisionsOfficial/consent-manager/internal/models"
)

// ConsentEventDAO handles database operations for consent lifecycle events.
// The event table is append-only; events are never updated or deleted.
type ConsentEventDAO struct {
	db *database.DB
}

// NewConsentEventDAO creates a new ConsentEventDAO instance
func NewConsentEventDAO(db *database.DB) *ConsentEventDAO {
	return &ConsentEventDAO{db: db}
}

// CreateWithTx inserts a new consent event using a transaction
func (dao *ConsentEventDAO) CreateWithTx(ctx context.Context, tx *database.Transaction, event *models.ConsentEvent) error {
	query := `
		INSERT INTO CM_CONSENT_EVENT (
			EVENT_ID, CONSENT_ID, EVENT_STATE, EVENT_TYPE, EVENT_TIME,
			VALIDITY_DURATION, PREVIOUS_STATUS, CURRENT_STATUS, ACTION_BY
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(
		ctx,
		query,
		event.EventID,
		event.ConsentID,
		event.EventState,
		event.EventType,
		event.EventTime,
		event.ValidityDuration,
		event.PreviousStatus,
		event.CurrentStatus,
		event.ActionBy,
	)

	if err != nil {
		return fmt.Errorf("failed to create consent event: %w", err)
	}

	return nil
}

// ListByConsentID retrieves all events for a consent, newest first
func (dao *ConsentEventDAO) ListByConsentID(ctx context.Context, consentID string) ([]models.ConsentEvent, error) {
	query := `
		SELECT EVENT_ID, CONSENT_ID, EVENT_STATE, EVENT_TYPE, EVENT_TIME,
		       VALIDITY_DURATION, PREVIOUS_STATUS, CURRENT_STATUS, ACTION_BY
		FROM CM_CONSENT_EVENT
		WHERE CONSENT_ID = ?
		ORDER BY EVENT_TIME DESC
	`

	var events []models.ConsentEvent
	err := dao.db.SelectContext(ctx, &events, query, consentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list consent events: %w", err)
	}

	return events, nil
}
