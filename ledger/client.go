/*
Copyright 2024 Authflow Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package ledger is the HTTP client for the remote banking core. The core
// owns all financial state: account balances, card PIN verification, the
// wrong-attempt lockout policy and OTP issuance. This client only moves
// requests and relays the core's free-text failure messages upward for
// classification.
package ledger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/netbankhq/authflow/config"
	"github.com/netbankhq/authflow/internal/request"
	"github.com/netbankhq/authflow/model"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// APIError carries the banking core's free-text message and HTTP status
// for the error classifier. It is the only error type callers should
// inspect.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger: %s (status %d)", e.Message, e.Status)
}

// TransferReceipt is the authoritative result of a committed transfer.
type TransferReceipt struct {
	TransactionID      string          `json:"transaction_id"`
	FromAccountBalance decimal.Decimal `json:"from_account_balance"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client from the loaded configuration.
func NewClient() (*Client, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return NewClientWithOptions(cfg.Ledger.BaseUrl, cfg.Ledger.ApiKey,
		time.Duration(cfg.Ledger.TimeoutSec)*time.Second), nil
}

// NewClientWithOptions builds a client with explicit settings. Tests use
// this to point at a mocked transport.
func NewClientWithOptions(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload interface{}) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		buf, err := request.ToJsonReq(payload)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request payload")
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// apiError converts a non-2xx response into an *APIError carrying the
// core's message.
func apiError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	return &APIError{Status: resp.StatusCode, Message: request.ReadMessage(resp.Body)}
}

// transferPayload is the wire form of a transfer authorization. Remarks
// are deliberately absent: they are local-only. The PIN travels here and
// nowhere else; it is never logged or persisted.
type transferPayload struct {
	FromAccountID   string `json:"from_account_id"`
	ToAccountNumber string `json:"to_account_number"`
	Amount          string `json:"amount"`
	AtmPin          string `json:"atm_pin"`
	Reference       string `json:"reference"`
}

// Transfer executes a transfer gated by the card PIN. It is never retried
// automatically: a duplicate submission is a duplicate debit. The
// reference gives the core an idempotency handle instead.
func (c *Client) Transfer(ctx context.Context, req model.TransferRequest, pin, reference string) (*TransferReceipt, error) {
	payload := transferPayload{
		FromAccountID:   req.FromAccountID,
		ToAccountNumber: req.ToAccountNumber,
		Amount:          req.Amount.StringFixed(2),
		AtmPin:          pin,
		Reference:       reference,
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/transfers", payload)
	if err != nil {
		return nil, err
	}

	var receipt TransferReceipt
	resp, err := request.Call(c.httpClient, httpReq, &receipt)
	if err != nil {
		return nil, errors.Wrap(err, "calling ledger transfer")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp)
	}
	return &receipt, nil
}

// ListAccounts fetches the customer's accounts. The read is idempotent,
// so transient failures are retried with exponential backoff until the
// context or the policy gives up.
func (c *Client) ListAccounts(ctx context.Context, customerID string) ([]model.Account, error) {
	var accounts []model.Account

	operation := func() error {
		httpReq, err := c.newRequest(ctx, http.MethodGet, "/customers/"+customerID+"/accounts", nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		var payload struct {
			Accounts []model.Account `json:"accounts"`
		}
		resp, err := request.Call(c.httpClient, httpReq, &payload)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return apiError(resp)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(apiError(resp))
		}
		accounts = payload.Accounts
		return nil
	}

	policy := backoff.WithContext(newBackoffPolicy(), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, errors.Wrap(err, "listing accounts")
	}
	return accounts, nil
}

func newBackoffPolicy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second
	return b
}

// VerifyApplication submits the onboarding one-time code for an
// application. A nil return means the identity was verified.
func (c *Client) VerifyApplication(ctx context.Context, applicationID, code string) error {
	payload := map[string]string{"code": code}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/applications/"+applicationID+"/verify", payload)
	if err != nil {
		return err
	}

	resp, err := request.Call(c.httpClient, httpReq, nil)
	if err != nil {
		return errors.Wrap(err, "calling application verify")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	return nil
}

// ResendOtp asks the core to deliver a fresh one-time code for the
// application.
func (c *Client) ResendOtp(ctx context.Context, applicationID string) error {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/applications/"+applicationID+"/otp/resend", nil)
	if err != nil {
		return err
	}

	resp, err := request.Call(c.httpClient, httpReq, nil)
	if err != nil {
		return errors.Wrap(err, "calling otp resend")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	return nil
}
