package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON type for handling JSON columns in MySQL
type JSON json.RawMessage

// Scan implements the sql.Scanner interface for JSON
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		// The driver owns this buffer only until the next row is read;
		// the Scanner contract requires a copy.
		bytes = make([]byte, len(v))
		copy(bytes, v)
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSON: %T", value)
	}

	if !json.Valid(bytes) {
		return fmt.Errorf("invalid JSON data in column")
	}

	*j = JSON(bytes)
	return nil
}

// Value implements the driver.Valuer interface for JSON
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// MarshalJSON implements json.Marshaler
func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = JSON(data)
	return nil
}

// MarshalJSONColumn encodes a typed value into a JSON column. A nil or empty
// value encodes as NULL so that optional columns stay optional.
func MarshalJSONColumn(v interface{}) (JSON, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON column: %w", err)
	}
	return JSON(data), nil
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Common error codes returned by the API layer
const (
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeInvalidState   = "INVALID_STATE"
	ErrCodeConflict       = "CONFLICT"
	ErrCodePrecondition   = "PRECONDITION_FAILED"
	ErrCodeRemoteRejected = "REMOTE_REJECTED"
	ErrCodeTransient      = "UPSTREAM_UNAVAILABLE"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)
