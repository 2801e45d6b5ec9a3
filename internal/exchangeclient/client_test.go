package exchangeclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VisionsOfficial/consent-manager/internal/config"
)

func newTestClient(timeout time.Duration) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(&config.ExchangeConfig{Timeout: timeout}, logger)
}

// TestPostExchange_SendsJSONPayload tests the request shape and success classification
func TestPostExchange_SendsJSONPayload(t *testing.T) {
	var received ExchangeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"accepted":true}`))
	}))
	defer server.Close()

	client := newTestClient(2 * time.Second)
	defer client.Close()

	result, err := client.PostExchange(context.Background(), server.URL, &ExchangeRequest{
		ConsentID: "CONSENT-1",
		Token:     "TKN-abc",
		Data:      []string{"resource-1"},
	})

	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.False(t, result.Rejected())
	assert.Equal(t, "CONSENT-1", received.ConsentID)
	assert.Equal(t, "TKN-abc", received.Token)
	assert.JSONEq(t, `{"accepted":true}`, string(result.Body))
}

// TestPostExchange_ClassifiesRejection tests the 4xx classification
func TestPostExchange_ClassifiesRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := newTestClient(2 * time.Second)
	defer client.Close()

	result, err := client.PostExchange(context.Background(), server.URL, &ExchangeRequest{ConsentID: "CONSENT-1"})

	require.NoError(t, err)
	assert.False(t, result.Succeeded())
	assert.True(t, result.Rejected())
}

// TestPostExchange_TimeoutReturnsError tests that a timeout produces no result
func TestPostExchange_TimeoutReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	client := newTestClient(50 * time.Millisecond)
	defer client.Close()

	result, err := client.PostExchange(context.Background(), server.URL, &ExchangeRequest{ConsentID: "CONSENT-1"})

	assert.Error(t, err)
	assert.Nil(t, result)
}

// TestPostRevocation_DeliversNotice tests the revocation notice path
func TestPostRevocation_DeliversNotice(t *testing.T) {
	var received RevocationNotice
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := newTestClient(2 * time.Second)
	defer client.Close()

	result, err := client.PostRevocation(context.Background(), server.URL, &RevocationNotice{
		ConsentID: "CONSENT-1",
		Status:    "revoked",
		EventTime: 1700000000000,
	})

	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, "revoked", received.Status)
}
