package exchangeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/VisionsOfficial/consent-manager/internal/config"
)

// Client performs outbound calls to counter-participant connectors. Calls are
// bounded by the configured timeout and never hold any lock while in flight.
type Client struct {
	httpClient *http.Client
	logger     *logrus.Logger
}

// ExchangeRequest is the payload posted to the counter-participant's
// data-exchange endpoint. The token proves the bearer may redeem exactly one
// granted consent.
type ExchangeRequest struct {
	ConsentID              string   `json:"consentId"`
	Token                  string   `json:"token"`
	DataProvider           string   `json:"dataProvider"`
	DataConsumer           string   `json:"dataConsumer"`
	ProviderUserIdentifier string   `json:"providerUserIdentifier"`
	ConsumerUserIdentifier string   `json:"consumerUserIdentifier"`
	Data                   []string `json:"data"`
	DataImportEndpoint     string   `json:"dataImportEndpoint,omitempty"`
}

// RevocationNotice informs the counter-participant that a consent ended.
type RevocationNotice struct {
	ConsentID string `json:"consentId"`
	Status    string `json:"status"`
	EventTime int64  `json:"eventTime"`
}

// Result captures the remote response for outcome interpretation.
type Result struct {
	StatusCode int
	Body       []byte
}

// Succeeded reports a 2xx remote outcome.
func (r *Result) Succeeded() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Rejected reports a 4xx remote outcome: the counter-participant declined
// (e.g. token invalid or data unavailable).
func (r *Result) Rejected() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

// NewClient creates a new exchange client instance
func NewClient(cfg *config.ExchangeConfig, logger *logrus.Logger) *Client {
	timeout := 30 * time.Second
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 100
	}
	maxIdlePerHost := cfg.MaxIdleConnsPerHost
	if maxIdlePerHost <= 0 {
		maxIdlePerHost = 10
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        maxIdle,
				MaxIdleConnsPerHost: maxIdlePerHost,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

// PostExchange posts an exchange request to the given connector endpoint.
// A non-nil error means the call never produced a remote outcome (network
// failure or timeout); any HTTP status is returned in the Result.
func (c *Client) PostExchange(ctx context.Context, endpoint string, request *ExchangeRequest) (*Result, error) {
	return c.post(ctx, endpoint, request, request.ConsentID)
}

// PostRevocation notifies the counter-participant of a revocation.
func (c *Client) PostRevocation(ctx context.Context, endpoint string, notice *RevocationNotice) (*Result, error) {
	return c.post(ctx, endpoint, notice, notice.ConsentID)
}

func (c *Client) post(ctx context.Context, endpoint string, payload interface{}, consentID string) (*Result, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if correlationID, ok := ctx.Value("correlationID").(string); ok {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	c.logger.WithFields(logrus.Fields{
		"url":       endpoint,
		"consentID": consentID,
	}).Debug("Calling counter-participant connector")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"url":      endpoint,
			"duration": duration,
		}).Error("Connector call failed")
		return nil, fmt.Errorf("connector call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read connector response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"statusCode": resp.StatusCode,
		"duration":   duration,
		"url":        endpoint,
	}).Debug("Connector response received")

	return &Result{StatusCode: resp.StatusCode, Body: body}, nil
}

// Close closes idle HTTP client connections
func (c *Client) Close() {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
}
