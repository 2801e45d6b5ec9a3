package utils

import (
	"github.com/google/uuid"
)

// GenerateConsentID generates a unique consent ID
func GenerateConsentID() string {
	return "CONSENT-" + uuid.New().String()
}

// GenerateEventID generates a unique consent event ID
func GenerateEventID() string {
	return "EVENT-" + uuid.New().String()
}

// GenerateNoticeID generates a unique privacy notice ID
func GenerateNoticeID() string {
	return "NOTICE-" + uuid.New().String()
}

// GenerateToken generates an opaque single-use exchange token
func GenerateToken() string {
	return "TKN-" + uuid.New().String()
}

// GenerateCorrelationID generates a request correlation ID
func GenerateCorrelationID() string {
	return uuid.New().String()
}
