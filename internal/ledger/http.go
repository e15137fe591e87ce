package ledger

import (
	"context"
	"net/http"
	"time"

	crerrors "github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
)

// HTTPClient moves balances held by an external account service.
//
// The service is expected to expose POST /credits and POST /debits honouring
// the Idempotency-Key header (a replayed key answers 200 or 409), plus
// PUT and GET on /accounts/{user_id}.
type HTTPClient struct {
	client *resty.Client
}

type entryRequest struct {
	UserID   string `json:"user_id"`
	Amount   int64  `json:"amount"`
	Kind     string `json:"kind"`
	PacketID string `json:"red_packet_id,omitempty"`
}

type openAccountRequest struct {
	InitialBalance int64 `json:"initial_balance"`
}

type accountResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// NewHTTPClient creates a client for the account service at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &HTTPClient{client: client}
}

// Credit posts the entry to the account service.
func (c *HTTPClient) Credit(ctx context.Context, e Entry) error {
	code, body, err := c.post(ctx, "/credits", e)
	if err != nil {
		return err
	}
	return entryStatus(code, body, e)
}

// Debit charges the entry to the account service. It runs outside any local
// transaction; the caller voids it with a credit if its own work fails.
// Returns ErrInsufficientBalance when the service answers 402.
func (c *HTTPClient) Debit(ctx context.Context, e Entry) error {
	code, body, err := c.post(ctx, "/debits", e)
	if err != nil {
		return err
	}
	if code == http.StatusPaymentRequired {
		return crerrors.Wrapf(ErrInsufficientBalance, "user %s", e.UserID)
	}
	return entryStatus(code, body, e)
}

func (c *HTTPClient) post(ctx context.Context, path string, e Entry) (int, string, error) {
	if err := e.validate(); err != nil {
		return 0, "", err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", e.Key).
		SetBody(entryRequest{
			UserID:   e.UserID,
			Amount:   e.Amount,
			Kind:     string(e.Kind),
			PacketID: e.PacketID,
		}).
		Post(path)
	if err != nil {
		return 0, "", unavailable(err, "post "+path)
	}
	return resp.StatusCode(), resp.String(), nil
}

func entryStatus(code int, body string, e Entry) error {
	switch {
	case code == http.StatusOK, code == http.StatusCreated, code == http.StatusNoContent, code == http.StatusConflict:
		return nil
	case code == http.StatusNotFound:
		return crerrors.Wrapf(ErrInvalidAccount, "user %s", e.UserID)
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return crerrors.Wrapf(ErrInvalidEntry, "account service rejected %s: %s", e.Key, body)
	default:
		return unavailable(crerrors.Newf("account service status %d", code), "apply "+e.Key)
	}
}

// OpenAccount asks the account service to create userID's account. An
// existing account is left untouched.
func (c *HTTPClient) OpenAccount(ctx context.Context, userID string, initial int64) error {
	if userID == "" || initial < 0 {
		return crerrors.WithStack(ErrInvalidEntry)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("user_id", userID).
		SetBody(openAccountRequest{InitialBalance: initial}).
		Put("/accounts/{user_id}")
	if err != nil {
		return unavailable(err, "open account")
	}

	switch code := resp.StatusCode(); code {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent, http.StatusConflict:
		return nil
	default:
		return unavailable(crerrors.Newf("account service status %d", code), "open account")
	}
}

// Balance reads userID's balance from the account service.
func (c *HTTPClient) Balance(ctx context.Context, userID string) (int64, error) {
	var out accountResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("user_id", userID).
		SetResult(&out).
		Get("/accounts/{user_id}")
	if err != nil {
		return 0, unavailable(err, "get balance")
	}

	switch code := resp.StatusCode(); code {
	case http.StatusOK:
		return out.Balance, nil
	case http.StatusNotFound:
		return 0, crerrors.Wrapf(ErrInvalidAccount, "user %s", userID)
	default:
		return 0, unavailable(crerrors.Newf("account service status %d", code), "get balance")
	}
}
