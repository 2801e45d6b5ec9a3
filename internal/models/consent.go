package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConsentStatus is the lifecycle status of a consent record.
type ConsentStatus string

const (
	StatusPending    ConsentStatus = "pending"
	StatusGranted    ConsentStatus = "granted"
	StatusRefused    ConsentStatus = "refused"
	StatusRevoked    ConsentStatus = "revoked"
	StatusTerminated ConsentStatus = "terminated"
	StatusExpired    ConsentStatus = "expired"
)

// IsTerminal reports whether no outbound transition is defined for the status.
func (s ConsentStatus) IsTerminal() bool {
	switch s {
	case StatusRefused, StatusRevoked, StatusTerminated, StatusExpired:
		return true
	}
	return false
}

// Purpose is a single processing purpose with its legal basis. Purposes are
// immutable once the consent is granted.
type Purpose struct {
	Purpose    string `json:"purpose"`
	LegalBasis string `json:"legalBasis"`
}

// RecipientThirdParty describes a third party that may access the data.
type RecipientThirdParty struct {
	Name               string `json:"name,omitempty"`
	Location           string `json:"location,omitempty"`
	NatureOfDataAccess string `json:"natureOfDataAccess,omitempty"`
}

// Consent represents the CM_CONSENT table. providerUserIdentifier,
// consumerUserIdentifier and dataProvider are immutable after creation;
// purposes, data and recipients are immutable after the consent is granted.
type Consent struct {
	ConsentID              string  `db:"CONSENT_ID" json:"consentId"`
	UserID                 *string `db:"USER_ID" json:"userId,omitempty"`
	ProviderUserIdentifier string  `db:"PROVIDER_USER_ID" json:"providerUserIdentifier"`
	ConsumerUserIdentifier string  `db:"CONSUMER_USER_ID" json:"consumerUserIdentifier"`
	DataProvider           string  `db:"DATA_PROVIDER" json:"dataProvider"`
	DataConsumer           string  `db:"DATA_CONSUMER" json:"dataConsumer"`
	Contract               *string `db:"CONTRACT" json:"contract,omitempty"`
	Purposes               JSON    `db:"PURPOSES" json:"purposes"`
	DataResources          JSON    `db:"DATA_RESOURCES" json:"data"`
	Recipients             JSON    `db:"RECIPIENTS" json:"recipients"`
	Status                 string  `db:"STATUS" json:"status"`
	PrivacyNoticeID        string  `db:"PRIVACY_NOTICE_ID" json:"privacyNotice"`
	WithdrawalMethod       *string `db:"WITHDRAWAL_METHOD" json:"withdrawalMethod,omitempty"`
	RetentionPeriod        *string `db:"RETENTION_PERIOD" json:"retentionPeriod,omitempty"`
	ProcessingLocations    JSON    `db:"PROCESSING_LOCATIONS" json:"processingLocations,omitempty"`
	StorageLocations       JSON    `db:"STORAGE_LOCATIONS" json:"storageLocations,omitempty"`
	RecipientThirdParties  JSON    `db:"RECIPIENT_THIRD_PARTIES" json:"recipientThirdParties,omitempty"`
	PiiPrincipalRights     JSON    `db:"PII_PRINCIPAL_RIGHTS" json:"piiPrincipalRights,omitempty"`
	Token                  *string `db:"TOKEN" json:"-"`
	TokenExpiresAt         *int64  `db:"TOKEN_EXPIRES_AT" json:"-"`
	JSONLD                 *string `db:"JSONLD" json:"jsonld,omitempty"`
	SchemaVersion          string  `db:"SCHEMA_VERSION" json:"schema_version"`
	CreatedTime            int64   `db:"CREATED_TIME" json:"createdTime"`
	UpdatedTime            int64   `db:"UPDATED_TIME" json:"updatedTime"`
}

// GetCreatedTime returns the created time as a time.Time
func (c *Consent) GetCreatedTime() time.Time {
	return time.Unix(0, c.CreatedTime*int64(time.Millisecond))
}

// GetUpdatedTime returns the updated time as a time.Time
func (c *Consent) GetUpdatedTime() time.Time {
	return time.Unix(0, c.UpdatedTime*int64(time.Millisecond))
}

// HasLiveToken reports whether a verification token is bound and not expired
// at the given time (millis since epoch).
func (c *Consent) HasLiveToken(nowMillis int64) bool {
	return c.Token != nil && *c.Token != "" &&
		c.TokenExpiresAt != nil && nowMillis < *c.TokenExpiresAt
}

// DecodedPurposes decodes the purposes JSON column into typed purposes.
func (c *Consent) DecodedPurposes() ([]Purpose, error) {
	if len(c.Purposes) == 0 {
		return nil, nil
	}
	var purposes []Purpose
	if err := json.Unmarshal(c.Purposes, &purposes); err != nil {
		return nil, fmt.Errorf("failed to decode purposes: %w", err)
	}
	return purposes, nil
}

// DecodedDataResources decodes the data resource references column.
func (c *Consent) DecodedDataResources() ([]string, error) {
	if len(c.DataResources) == 0 {
		return nil, nil
	}
	var data []string
	if err := json.Unmarshal(c.DataResources, &data); err != nil {
		return nil, fmt.Errorf("failed to decode data resources: %w", err)
	}
	return data, nil
}

// Event states stamped by the consent state machine.
const (
	EventStateGiven       = "consent given"
	EventStateRefused     = "consent refused"
	EventStateRevoked     = "consent revoked"
	EventStateReConfirmed = "consent re-confirmed"
	EventStateTerminated  = "consent terminated"
	EventStateExpired     = "consent expired"
)

// Event types. User-driven transitions are explicit; expiry is system-driven.
const (
	EventTypeExplicit = "explicit"
	EventTypeSystem   = "system"
)

// EventValidityImmediate marks an event as taking effect immediately, with no
// grace window. Data contract attribute, not a timer.
const EventValidityImmediate = "0"

// ConsentEvent represents the CM_CONSENT_EVENT table. Events are append-only
// records stamped with the current time at the moment of the state transition.
type ConsentEvent struct {
	EventID          string  `db:"EVENT_ID" json:"eventId"`
	ConsentID        string  `db:"CONSENT_ID" json:"consentId"`
	EventState       string  `db:"EVENT_STATE" json:"eventState"`
	EventType        string  `db:"EVENT_TYPE" json:"eventType"`
	EventTime        int64   `db:"EVENT_TIME" json:"eventTime"`
	ValidityDuration string  `db:"VALIDITY_DURATION" json:"validityDuration"`
	PreviousStatus   *string `db:"PREVIOUS_STATUS" json:"previousStatus,omitempty"`
	CurrentStatus    string  `db:"CURRENT_STATUS" json:"currentStatus"`
	ActionBy         *string `db:"ACTION_BY" json:"actionBy,omitempty"`
}

// ConsentCreateRequest is the consent intent submitted to give a consent.
type ConsentCreateRequest struct {
	UserID                 string                `json:"userId,omitempty"`
	ProviderUserIdentifier string                `json:"providerUserIdentifier" binding:"required"`
	ConsumerUserIdentifier string                `json:"consumerUserIdentifier" binding:"required"`
	DataProvider           string                `json:"dataProvider" binding:"required"`
	DataConsumer           string                `json:"dataConsumer" binding:"required"`
	Contract               string                `json:"contract,omitempty"`
	Purposes               []Purpose             `json:"purposes" binding:"required"`
	Data                   []string              `json:"data"`
	Recipients             []string              `json:"recipients"`
	PrivacyNoticeID        string                `json:"privacyNotice" binding:"required"`
	WithdrawalMethod       string                `json:"withdrawalMethod,omitempty"`
	RetentionPeriod        string                `json:"retentionPeriod,omitempty"`
	ProcessingLocations    []string              `json:"processingLocations,omitempty"`
	StorageLocations       []string              `json:"storageLocations,omitempty"`
	RecipientThirdParties  []RecipientThirdParty `json:"recipientThirdParties,omitempty"`
	PiiPrincipalRights     []string              `json:"piiPrincipalRights,omitempty"`
	JSONLD                 string                `json:"jsonld,omitempty"`

	// PendingConfirmation creates the record in pending status instead of
	// granting immediately, for flows that finish through a separate
	// confirmation step (e.g. email validation).
	PendingConfirmation bool `json:"pendingConfirmation,omitempty"`
}

// ConsentResponse is the API view of a consent record with JSON columns
// decoded into typed values.
type ConsentResponse struct {
	ConsentID              string                `json:"consentId"`
	UserID                 *string               `json:"userId,omitempty"`
	ProviderUserIdentifier string                `json:"providerUserIdentifier"`
	ConsumerUserIdentifier string                `json:"consumerUserIdentifier"`
	DataProvider           string                `json:"dataProvider"`
	DataConsumer           string                `json:"dataConsumer"`
	Contract               *string               `json:"contract,omitempty"`
	Purposes               []Purpose             `json:"purposes"`
	Data                   []string              `json:"data"`
	Recipients             []string              `json:"recipients"`
	Status                 string                `json:"status"`
	PrivacyNoticeID        string                `json:"privacyNotice"`
	WithdrawalMethod       *string               `json:"withdrawalMethod,omitempty"`
	RetentionPeriod        *string               `json:"retentionPeriod,omitempty"`
	ProcessingLocations    []string              `json:"processingLocations,omitempty"`
	StorageLocations       []string              `json:"storageLocations,omitempty"`
	RecipientThirdParties  []RecipientThirdParty `json:"recipientThirdParties,omitempty"`
	PiiPrincipalRights     []string              `json:"piiPrincipalRights,omitempty"`
	JSONLD                 *string               `json:"jsonld,omitempty"`
	SchemaVersion          string                `json:"schema_version"`
	CreatedTime            int64                 `json:"createdTime"`
	UpdatedTime            int64                 `json:"updatedTime"`
	Events                 []ConsentEvent        `json:"events,omitempty"`
}

// ConsentSearchParams represents search parameters for consent queries
type ConsentSearchParams struct {
	UserID       string   `form:"userId"`
	DataProvider string   `form:"dataProvider"`
	DataConsumer string   `form:"dataConsumer"`
	Contract     string   `form:"contract"`
	Statuses     []string `form:"statuses"`
	FromTime     *int64   `form:"fromTime"`
	ToTime       *int64   `form:"toTime"`
	Limit        int      `form:"limit"`
	Offset       int      `form:"offset"`
}

// ConsentSearchResponse represents the paginated response for consent search
type ConsentSearchResponse struct {
	Data     []ConsentResponse     `json:"data"`
	Metadata ConsentSearchMetadata `json:"metadata"`
}

// ConsentSearchMetadata represents pagination metadata
type ConsentSearchMetadata struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ReConfirmRequest carries the re-confirmation flags.
type ReConfirmRequest struct {
	// TermsChanged re-opens the consent for re-acceptance when a prior
	// grant's terms changed materially.
	TermsChanged bool `json:"termsChanged,omitempty"`
}

// TokenResponse is returned when a verification token is issued.
type TokenResponse struct {
	ConsentID string `json:"consentId"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// VerifyTokenRequest carries a presented token for verification.
type VerifyTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyTokenResponse is the result of a token verification probe.
type VerifyTokenResponse struct {
	ConsentID string `json:"consentId"`
	Verified  bool   `json:"verified"`
}
