package models

// Participant represents the CM_PARTICIPANT table: a directory entry for an
// organization-level actor in the data space. The orchestrator resolves the
// counter-participant's declared endpoints from here; the directory itself is
// maintained by the catalog, not by this service.
type Participant struct {
	ParticipantID         string  `db:"PARTICIPANT_ID" json:"participantId"`
	LegalName             string  `db:"LEGAL_NAME" json:"legalName"`
	Identifier            string  `db:"IDENTIFIER" json:"identifier"`
	SelfDescriptionURL    string  `db:"SELF_DESCRIPTION_URL" json:"selfDescriptionURL"`
	DataImportEndpoint    *string `db:"DATA_IMPORT_ENDPOINT" json:"dataImportEndpoint,omitempty"`
	DataExportEndpoint    *string `db:"DATA_EXPORT_ENDPOINT" json:"dataExportEndpoint,omitempty"`
	ConsentImportEndpoint *string `db:"CONSENT_IMPORT_ENDPOINT" json:"consentImportEndpoint,omitempty"`
	ConsentExportEndpoint *string `db:"CONSENT_EXPORT_ENDPOINT" json:"consentExportEndpoint,omitempty"`
	DataspaceEndpoint     *string `db:"DATASPACE_ENDPOINT" json:"dataspaceEndpoint,omitempty"`
	CreatedTime           int64   `db:"CREATED_TIME" json:"createdTime"`
	UpdatedTime           int64   `db:"UPDATED_TIME" json:"updatedTime"`
}

// ExchangeOutcome reports the result of a fulfilled data exchange. It is
// consent-level metadata: fulfillment does not change the consent status.
type ExchangeOutcome struct {
	ConsentID    string `json:"consentId"`
	Fulfilled    bool   `json:"fulfilled"`
	RemoteStatus int    `json:"remoteStatus"`
	CompletedAt  int64  `json:"completedAt"`
	Message      string `json:"message,omitempty"`
}

// RedirectTargetResponse resolves where the counter-participant should be
// redirected to continue an interactive confirmation step.
type RedirectTargetResponse struct {
	ConsentID string `json:"consentId"`
	URI       string `json:"uri"`
}
