// Package khalti is the HTTP client for the Khalti ePayment API. The gateway
// is the authority on payment status; nothing here writes local state.
package khalti

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrTimeout = errors.New("gateway request timed out")
	ErrStatus  = errors.New("gateway returned non-2xx status")
)

// StatusCompleted is the only lookup status that permits local writes.
const StatusCompleted = "Completed"

type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func New(baseURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secretKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type InitiateRequest struct {
	ReturnURL         string `json:"return_url"`
	WebsiteURL        string `json:"website_url"`
	Amount            int64  `json:"amount"`
	PurchaseOrderID   string `json:"purchase_order_id"`
	PurchaseOrderName string `json:"purchase_order_name"`
}

type InitiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
}

type LookupResponse struct {
	Pidx          string `json:"pidx"`
	TotalAmount   int64  `json:"total_amount"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Fee           int64  `json:"fee"`
	Refunded      bool   `json:"refunded"`
}

// InitiateCharge registers a charge with the gateway and returns the payment
// reference plus the redirect URL the payer completes the charge at.
func (c *Client) InitiateCharge(ctx context.Context, req InitiateRequest) (InitiateResponse, error) {
	const op = "khalti.InitiateCharge"

	var resp InitiateResponse
	if err := c.post(ctx, "/epayment/initiate/", req, &resp); err != nil {
		return InitiateResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	return resp, nil
}

// Lookup queries the authoritative status of a payment by its reference.
func (c *Client) Lookup(ctx context.Context, pidx string) (LookupResponse, error) {
	const op = "khalti.Lookup"

	var resp LookupResponse
	if err := c.post(ctx, "/epayment/lookup/", map[string]string{"pidx": pidx}, &resp); err != nil {
		return LookupResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return ErrTimeout
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}
