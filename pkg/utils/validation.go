package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateConsentID validates consent ID format
func ValidateConsentID(consentID string) error {
	if consentID == "" {
		return fmt.Errorf("consent ID cannot be empty")
	}
	if len(consentID) > 255 {
		return fmt.Errorf("consent ID too long (max 255 characters)")
	}
	return nil
}

// ValidateIdentifier validates an opaque participant or user identifier
func ValidateIdentifier(fieldName, identifier string) error {
	if strings.TrimSpace(identifier) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if len(identifier) > 512 {
		return fmt.Errorf("%s too long (max 512 characters)", fieldName)
	}
	return nil
}

// ValidateRequired validates that a field is not empty
func ValidateRequired(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateEndpointURL validates a participant endpoint URL
func ValidateEndpointURL(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint URL cannot be empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid endpoint URL: %s", endpoint)
	}
	return nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// ValidateOffset validates pagination offset
func ValidateOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// SanitizeString removes dangerous characters from user input
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.TrimSpace(input)
	return input
}
