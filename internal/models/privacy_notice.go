package models

import (
	"encoding/json"
	"fmt"
)

// ControllerDetails identifies the PII controller behind a privacy notice.
type ControllerDetails struct {
	Name           string `json:"name"`
	Contact        string `json:"contact"`
	Representative string `json:"representative,omitempty"`
	DPO            *struct {
		Name    string `json:"name"`
		Contact string `json:"contact"`
	} `json:"dpo,omitempty"`
}

// InternationalTransfers documents transfers to third countries.
type InternationalTransfers struct {
	Countries  []string `json:"countries"`
	Safeguards string   `json:"safeguards"`
}

// AutomatedDecisionMaking documents profiling/automated decision logic.
type AutomatedDecisionMaking struct {
	Details string `json:"details"`
}

// PrivacyNotice represents the CM_PRIVACY_NOTICE table. A notice is never
// mutated in place: superseding creates a new row and archives the old one,
// preserving the audit trail of what a user actually consented to. Once
// archivedAt is set the notice is immutable.
type PrivacyNotice struct {
	NoticeID                string  `db:"NOTICE_ID" json:"noticeId"`
	Contract                *string `db:"CONTRACT" json:"contract,omitempty"`
	Title                   string  `db:"TITLE" json:"title"`
	LastUpdated             string  `db:"LAST_UPDATED" json:"lastUpdated"`
	DataProvider            string  `db:"DATA_PROVIDER" json:"dataProvider"`
	DataConsumer            string  `db:"DATA_CONSUMER" json:"dataConsumer"`
	ControllerDetails       JSON    `db:"CONTROLLER_DETAILS" json:"controllerDetails"`
	Purposes                JSON    `db:"PURPOSES" json:"purposes"`
	CategoriesOfData        JSON    `db:"CATEGORIES_OF_DATA" json:"categoriesOfData"`
	DataResources           JSON    `db:"DATA_RESOURCES" json:"data"`
	Recipients              JSON    `db:"RECIPIENTS" json:"recipients"`
	InternationalTransfers  JSON    `db:"INTERNATIONAL_TRANSFERS" json:"internationalTransfers,omitempty"`
	RetentionPeriod         string  `db:"RETENTION_PERIOD" json:"retentionPeriod"`
	PiiPrincipalRights      JSON    `db:"PII_PRINCIPAL_RIGHTS" json:"piiPrincipalRights"`
	WithdrawalOfConsent     string  `db:"WITHDRAWAL_OF_CONSENT" json:"withdrawalOfConsent"`
	ComplaintRights         string  `db:"COMPLAINT_RIGHTS" json:"complaintRights"`
	ProvisionRequirements   string  `db:"PROVISION_REQUIREMENTS" json:"provisionRequirements"`
	AutomatedDecisionMaking JSON    `db:"AUTOMATED_DECISION_MAKING" json:"automatedDecisionMaking,omitempty"`
	JSONLD                  *string `db:"JSONLD" json:"jsonld,omitempty"`
	SchemaVersion           string  `db:"SCHEMA_VERSION" json:"schema_version"`
	ArchivedAt              *int64  `db:"ARCHIVED_AT" json:"archivedAt,omitempty"`
	CreatedTime             int64   `db:"CREATED_TIME" json:"createdTime"`
	UpdatedTime             int64   `db:"UPDATED_TIME" json:"updatedTime"`
}

// IsArchived reports whether the notice is frozen for audit.
func (n *PrivacyNotice) IsArchived() bool {
	return n.ArchivedAt != nil
}

// DecodedPurposes decodes the purposes JSON column.
func (n *PrivacyNotice) DecodedPurposes() ([]Purpose, error) {
	if len(n.Purposes) == 0 {
		return nil, nil
	}
	var purposes []Purpose
	if err := json.Unmarshal(n.Purposes, &purposes); err != nil {
		return nil, fmt.Errorf("failed to decode notice purposes: %w", err)
	}
	return purposes, nil
}

// PrivacyNoticeCreateRequest is the payload to register a privacy notice.
type PrivacyNoticeCreateRequest struct {
	Contract                string                   `json:"contract,omitempty"`
	Title                   string                   `json:"title" binding:"required"`
	LastUpdated             string                   `json:"lastUpdated"`
	DataProvider            string                   `json:"dataProvider" binding:"required"`
	DataConsumer            string                   `json:"dataConsumer" binding:"required"`
	ControllerDetails       ControllerDetails        `json:"controllerDetails"`
	Purposes                []Purpose                `json:"purposes" binding:"required"`
	CategoriesOfData        []string                 `json:"categoriesOfData"`
	Data                    []string                 `json:"data"`
	Recipients              []string                 `json:"recipients"`
	InternationalTransfers  *InternationalTransfers  `json:"internationalTransfers,omitempty"`
	RetentionPeriod         string                   `json:"retentionPeriod"`
	PiiPrincipalRights      []string                 `json:"piiPrincipalRights"`
	WithdrawalOfConsent     string                   `json:"withdrawalOfConsent"`
	ComplaintRights         string                   `json:"complaintRights"`
	ProvisionRequirements   string                   `json:"provisionRequirements"`
	AutomatedDecisionMaking *AutomatedDecisionMaking `json:"automatedDecisionMaking,omitempty"`
	JSONLD                  string                   `json:"jsonld,omitempty"`
}
