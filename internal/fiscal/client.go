package fiscal

// client.go
// HTTP exchange with the fiscal registration gateway. Owns the bearer-token
// lifecycle: a missing token is requested lazily, a 401 triggers exactly one
// refresh and one resend, a second consecutive 401 is AuthError. Each call
// performs at most two round trips.

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ClientConfig holds gateway connection parameters.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification, matching the
	// gateway's historical certificate-chain accommodation.
	InsecureSkipVerify bool
	// HTTPClient, when set, is used instead of a per-client instance so the
	// connection pool is shared across registers.
	HTTPClient *http.Client
}

// Client talks to the registration gateway for one cash register.
type Client struct {
	cfg      ClientConfig
	settings RegisterSettings
	store    TokenStore
	http     *http.Client
}

func NewClient(cfg ClientConfig, settings RegisterSettings, store TokenStore) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if cfg.Timeout <= 0 {
			cfg.Timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
			},
		}
	}
	return &Client{
		cfg:      cfg,
		settings: settings,
		store:    store,
		http:     httpClient,
	}
}

// gatewayResponse is the decoded body of any gateway reply plus the HTTP
// status. A non-JSON or non-object body decodes to the zero value.
type gatewayResponse struct {
	HTTPCode int `json:"-"`

	UUID    string          `json:"uuid"`
	Status  string          `json:"status"`
	Token   string          `json:"token"`
	Error   *gatewayError   `json:"error"`
	Payload *receiptPayload `json:"payload"`
}

type gatewayError struct {
	Code json.Number `json:"code"`
	Text string      `json:"text"`
}

// receiptPayload carries the fiscal attributes of a completed registration.
type receiptPayload struct {
	ReceiptDatetime         string  `json:"receipt_datetime"`
	ECRRegistrationNumber   string  `json:"ecr_registration_number"`
	FiscalDocumentAttribute int64   `json:"fiscal_document_attribute"`
	FiscalDocumentNumber    int64   `json:"fiscal_document_number"`
	FiscalReceiptNumber     int64   `json:"fiscal_receipt_number"`
	FNNumber                string  `json:"fn_number"`
	ShiftNumber             int64   `json:"shift_number"`
	Total                   float64 `json:"total"`
}

// RegisterCheck registers a built payload under the given operation and
// classifies the reply. A 200 with a correlation UUID is success; a 200
// without one, or any other status, is a gateway error.
func (c *Client) RegisterCheck(ctx context.Context, operation Operation, query *CheckQuery) (*Outcome, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, http.MethodPost, c.registerURL(operation, token), query)
	if err != nil {
		return nil, err
	}

	if resp.HTTPCode == http.StatusUnauthorized {
		token, err = c.refreshToken(ctx)
		if err != nil {
			return nil, err
		}
		resp, err = c.send(ctx, http.MethodPost, c.registerURL(operation, token), query)
		if err != nil {
			return nil, err
		}
		if resp.HTTPCode == http.StatusUnauthorized {
			return nil, &AuthError{Err: fmt.Errorf("token rejected after refresh")}
		}
	}

	return interpretRegister(resp), nil
}

// CheckStatus polls the report endpoint for a previously registered check.
// A gateway status of "wait" is a non-terminal pending outcome.
func (c *Client) CheckStatus(ctx context.Context, uuid string) (*Outcome, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, http.MethodGet, c.reportURL(uuid, token), nil)
	if err != nil {
		return nil, err
	}

	if resp.HTTPCode == http.StatusUnauthorized {
		token, err = c.refreshToken(ctx)
		if err != nil {
			return nil, err
		}
		resp, err = c.send(ctx, http.MethodGet, c.reportURL(uuid, token), nil)
		if err != nil {
			return nil, err
		}
		if resp.HTTPCode == http.StatusUnauthorized {
			return nil, &AuthError{Err: fmt.Errorf("token rejected after refresh")}
		}
	}

	return interpretStatus(uuid, resp), nil
}

// ── Token lifecycle ──────────────────────────────────────────────────────────

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	token, err := c.store.Get(ctx, tokenKey(c.settings.GroupCode))
	if err != nil {
		return "", fmt.Errorf("fiscal: token store: %w", err)
	}
	if token != "" {
		return token, nil
	}
	return c.refreshToken(ctx)
}

// refreshToken exchanges the register's credentials for a fresh token and
// persists it. A failed exchange is terminal for the current call.
func (c *Client) refreshToken(ctx context.Context) (string, error) {
	body := map[string]string{
		"login": c.settings.Login,
		"pass":  c.settings.Password,
	}

	resp, err := c.send(ctx, http.MethodPost, c.cfg.BaseURL+"/getToken", body)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	if resp.Token == "" {
		return "", &AuthError{Err: fmt.Errorf("credential exchange returned no token (http %d)", resp.HTTPCode)}
	}

	if err := c.store.Set(ctx, tokenKey(c.settings.GroupCode), resp.Token); err != nil {
		return "", fmt.Errorf("fiscal: token store: %w", err)
	}
	return resp.Token, nil
}

// ── Transport ────────────────────────────────────────────────────────────────

// send performs one HTTP exchange. POST bodies are pretty-printed JSON with
// Unicode left unescaped; a malformed response body is downgraded to an empty
// object rather than surfaced.
func (c *Client) send(ctx context.Context, method, url string, body interface{}) (*gatewayResponse, error) {
	var reader io.Reader
	if method == http.MethodPost {
		encoded, err := encodeBody(body)
		if err != nil {
			return nil, fmt.Errorf("fiscal: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("fiscal: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fiscal: gateway unreachable: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("fiscal: read response: %w", err)
	}

	resp := &gatewayResponse{}
	if err := json.Unmarshal(raw, resp); err != nil {
		// Malformed body — treat as an empty object, keep the HTTP status.
		resp = &gatewayResponse{}
	}
	resp.HTTPCode = httpResp.StatusCode

	log.Debug().
		Str("method", method).
		Str("url", url).
		Int("http_code", resp.HTTPCode).
		Msg("fiscal: gateway exchange")

	return resp, nil
}

func encodeBody(body interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Client) registerURL(operation Operation, token string) string {
	return fmt.Sprintf("%s/%s/%s?token=%s", c.cfg.BaseURL, c.settings.GroupCode, operation, token)
}

func (c *Client) reportURL(uuid, token string) string {
	return fmt.Sprintf("%s/%s/report/%s?token=%s", c.cfg.BaseURL, c.settings.GroupCode, uuid, token)
}
