package dao

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/VisionsOfficial/consent-manager/internal/database"
	"github.com/VisionsOfficial/consent-manager/internal/models"
)

const participantColumns = `PARTICIPANT_ID, LEGAL_NAME, IDENTIFIER, SELF_DESCRIPTION_URL,
	       DATA_IMPORT_ENDPOINT, DATA_EXPORT_ENDPOINT, CONSENT_IMPORT_ENDPOINT,
	       CONSENT_EXPORT_ENDPOINT, DATASPACE_ENDPOINT, CREATED_TIME, UPDATED_TIME`

// ParticipantDAO resolves participant directory entries. The directory is
// read-only from this service's point of view; entries are synchronized from
// the catalog.
type ParticipantDAO struct {
	db *database.DB
}

// NewParticipantDAO creates a new ParticipantDAO instance
func NewParticipantDAO(db *database.DB) *ParticipantDAO {
	return &ParticipantDAO{db: db}
}

// GetByIdentifier resolves a participant by its stable identifier
// (DID or self-description URL).
func (dao *ParticipantDAO) GetByIdentifier(ctx context.Context, identifier string) (*models.Participant, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM CM_PARTICIPANT
		WHERE IDENTIFIER = ? OR SELF_DESCRIPTION_URL = ?
	`, participantColumns)

	var participant models.Participant
	err := dao.db.GetContext(ctx, &participant, query, identifier, identifier)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	return &participant, nil
}

// GetByID retrieves a participant by primary id
func (dao *ParticipantDAO) GetByID(ctx context.Context, participantID string) (*models.Participant, error) {
	query := fmt.Sprintf(`SELECT %s FROM CM_PARTICIPANT WHERE PARTICIPANT_ID = ?`, participantColumns)

	var participant models.Participant
	err := dao.db.GetContext(ctx, &participant, query, participantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	return &participant, nil
}
