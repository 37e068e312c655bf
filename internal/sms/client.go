// Package sms sends outbound text messages through a Twilio-compatible
// messaging API.
package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrDelivery is returned when the provider rejects or fails a send. It is
// the one failure the caller is expected to surface upstream.
var ErrDelivery = errors.New("sms delivery failed")

const defaultTimeout = 10 * time.Second

// Client talks to the provider's Messages endpoint.
type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
}

// Message is the provider's acknowledgement of an accepted send.
type Message struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// New creates a Client against the given API base URL, typically
// https://api.twilio.com.
func New(baseURL, accountSID, authToken string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.With("subsystem", "sms"),
	}
}

// SetHTTPClient overrides the HTTP client. Intended for tests.
func (c *Client) SetHTTPClient(hc *http.Client) { c.httpClient = hc }

// Send submits one message and returns the provider's acknowledgement.
// Any transport or provider failure wraps ErrDelivery.
func (c *Client) Send(ctx context.Context, from, to, body string) (*Message, error) {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrDelivery, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("%w: provider error %d: %s", ErrDelivery, apiErr.Code, apiErr.Message)
		}
		return nil, fmt.Errorf("%w: unexpected status %d", ErrDelivery, resp.StatusCode)
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrDelivery, err)
	}

	c.logger.Info("message sent",
		"to", to,
		"sid", msg.SID,
		"status", msg.Status,
	)
	return &msg, nil
}
