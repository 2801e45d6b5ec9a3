package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValidateConsentID tests consent ID validation
func TestValidateConsentID(t *testing.T) {
	assert.NoError(t, ValidateConsentID("CONSENT-123"))
	assert.Error(t, ValidateConsentID(""))
	assert.Error(t, ValidateConsentID(strings.Repeat("x", 256)))
}

// TestValidateIdentifier tests opaque identifier validation
func TestValidateIdentifier(t *testing.T) {
	assert.NoError(t, ValidateIdentifier("dataProvider", "did:provider"))
	assert.Error(t, ValidateIdentifier("dataProvider", ""))
	assert.Error(t, ValidateIdentifier("dataProvider", "   "))

	err := ValidateIdentifier("dataConsumer", "")
	assert.Contains(t, err.Error(), "dataConsumer")
}

// TestValidateEndpointURL tests participant endpoint validation
func TestValidateEndpointURL(t *testing.T) {
	assert.NoError(t, ValidateEndpointURL("https://connector.example/export"))
	assert.Error(t, ValidateEndpointURL(""))
	assert.Error(t, ValidateEndpointURL("not-a-url"))
	assert.Error(t, ValidateEndpointURL("/relative/path"))
}

// TestValidateLimit tests pagination limit clamping
func TestValidateLimit(t *testing.T) {
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 20, ValidateLimit(-5))
	assert.Equal(t, 50, ValidateLimit(50))
	assert.Equal(t, 100, ValidateLimit(500))
}

// TestValidateOffset tests pagination offset clamping
func TestValidateOffset(t *testing.T) {
	assert.Equal(t, 0, ValidateOffset(-1))
	assert.Equal(t, 40, ValidateOffset(40))
}
