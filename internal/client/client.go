// Package client talks to the SamaraEnergo personal-account OData
// service: read endpoints for the account tree, invoice/payment PDFs,
// and the authenticated meter-reading submission.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vlsemenov/samaraenergo/internal/logging"
	"github.com/vlsemenov/samaraenergo/internal/odata"
	"github.com/vlsemenov/samaraenergo/internal/portal"
)

// DefaultBaseURL is the production OData service root.
const DefaultBaseURL = "https://lk.samaraenergo.ru/sap/opu/odata/sap/Z_ERP_UTILITIES_UMC_SRV_01"

const (
	headerCSRF      = "x-csrf-token"
	csrfFetch       = "Fetch"
	contentTypeJSON = "application/json"
)

// Expand paths for the Accounts navigation tree. Joined with commas into
// the $expand query parameter.
const (
	ExpandAddress     = "StandardAccountAddress"
	ExpandPayments    = "PaymentDocuments"
	ExpandInvoices    = "ContractAccounts/Invoices"
	ExpandConsumption = "ContractAccounts/Contracts/ContractConsumptionValues"
	ExpandRegisters   = "ContractAccounts/Contracts/Devices/RegistersToRead"
	ExpandReadings    = "ContractAccounts/Contracts/Devices/MeterReadingResults"
)

// Config holds client connection settings.
type Config struct {
	BaseURL  string // empty means DefaultBaseURL
	User     string
	Password string
	Language string        // sap-language, empty means RU
	Timeout  time.Duration // per-request timeout, 0 means 30s
	RateRPS  float64       // request rate cap, 0 disables limiting
}

// Client is safe for concurrent use: it keeps no per-call state beyond
// the shared cookie jar the CSRF handshake needs.
type Client struct {
	base     *url.URL
	user     string
	password string
	language string
	httpc    *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// New creates a portal client. The underlying http.Client owns a cookie
// jar: the provider binds CSRF tokens to the session, so the token probe
// and the submission POST must share cookies.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.User == "" || cfg.Password == "" {
		return nil, &portal.ArgumentError{Message: "portal user and password are required"}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("samaraenergo: invalid base URL: %w", err)
	}

	language := cfg.Language
	if language == "" {
		language = "RU"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateRPS), 1)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		base:     base,
		user:     cfg.User,
		password: cfg.Password,
		language: language,
		httpc:    &http.Client{Timeout: timeout, Jar: jar},
		limiter:  limiter,
		logger:   logger,
	}, nil
}

// Accounts fetches the personal accounts visible to the login, expanding
// the requested navigation paths inline.
func (c *Client) Accounts(ctx context.Context, expand ...string) ([]portal.Account, error) {
	body, err := c.get(ctx, "fetch accounts", "Accounts", expand...)
	if err != nil {
		return nil, err
	}
	return decodeList(body, portal.DecodeAccount)
}

// Invoices fetches all invoices of one account.
func (c *Client) Invoices(ctx context.Context, accountID string) ([]portal.Invoice, error) {
	body, err := c.get(ctx, "fetch invoices", accountPath(accountID, "Invoices"))
	if err != nil {
		return nil, err
	}
	return decodeList(body, portal.DecodeInvoice)
}

// Payments fetches the payment documents of one account.
func (c *Client) Payments(ctx context.Context, accountID string) ([]portal.PaymentDocument, error) {
	body, err := c.get(ctx, "fetch payments", accountPath(accountID, "PaymentDocuments"))
	if err != nil {
		return nil, err
	}
	return decodeList(body, portal.DecodePaymentDocument)
}

// InvoicePDF fetches the rendered PDF of one invoice.
func (c *Client) InvoicePDF(ctx context.Context, invoiceID string) ([]byte, error) {
	path := fmt.Sprintf("Invoices(InvoiceID='%s')/InvoicePDF/$value", invoiceID)
	return c.get(ctx, "fetch invoice pdf", path)
}

// PaymentPDF fetches the PDF confirming one payment.
func (c *Client) PaymentPDF(ctx context.Context, paymentID string) ([]byte, error) {
	path := fmt.Sprintf("OpbelPDFS(Adr='',Email='D',Invid='%s')/$value", paymentID)
	return c.get(ctx, "fetch payment pdf", path)
}

// SubmitReadings posts one to three register readings for a device and
// returns the confirmed reading the provider constructs. The CSRF probe
// always completes before the POST; a cancelled call means the result is
// unknown, not applied.
func (c *Client) SubmitReadings(ctx context.Context, deviceID string, at time.Time, values ...decimal.Decimal) (portal.MeterReading, error) {
	submission, err := portal.NewSubmission(deviceID, at, values...)
	if err != nil {
		return portal.MeterReading{}, err
	}
	payload, err := json.Marshal(submission)
	if err != nil {
		return portal.MeterReading{}, err
	}

	token, err := c.fetchCSRFToken(ctx)
	if err != nil {
		return portal.MeterReading{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("MeterReadingResults").String(), bytes.NewReader(payload))
	if err != nil {
		return portal.MeterReading{}, err
	}
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set(headerCSRF, token)

	body, err := c.do(req, "submit readings")
	if err != nil {
		return portal.MeterReading{}, err
	}

	record, err := odata.UnwrapSingle(body)
	if err != nil {
		return portal.MeterReading{}, err
	}
	return portal.DecodeMeterReading(record)
}

// fetchCSRFToken probes the service root for a fresh token. The provider
// requires the probe and the subsequent POST to share the session.
func (c *Client) fetchCSRFToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.endpoint("").String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(headerCSRF, csrfFetch)

	resp, err := c.roundTrip(req, "fetch csrf token")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	token := resp.Header.Get(headerCSRF)
	if token == "" {
		return "", &TransportError{Op: "fetch csrf token", StatusCode: resp.StatusCode, Body: "response carries no " + headerCSRF + " header"}
	}
	return token, nil
}

func (c *Client) get(ctx context.Context, op, path string, expand ...string) ([]byte, error) {
	u := c.endpoint(path)
	if len(expand) > 0 {
		q := u.Query()
		q.Set("$expand", strings.Join(expand, ","))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	// binary endpoints must not ask for JSON
	if !strings.HasSuffix(path, "$value") {
		req.Header.Set("Accept", contentTypeJSON)
	}
	return c.do(req, op)
}

// endpoint joins a path under the service root and applies the session
// query parameters every call carries.
func (c *Client) endpoint(path string) *url.URL {
	u := *c.base
	if path != "" {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/" + path
	}
	q := u.Query()
	q.Set("sap-user", c.user)
	q.Set("sap-password", c.password)
	q.Set("sap-language", c.language)
	u.RawQuery = q.Encode()
	return &u
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.roundTrip(req, op)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("samaraenergo: %s: read response: %w", op, err)
	}
	return body, nil
}

func (c *Client) roundTrip(req *http.Request, op string) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	reqLogger := logging.WithRequestID(c.logger, uuid.NewString())
	reqLogger.Debug("portal request",
		zap.String("op", op),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	)

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("samaraenergo: %s: %w", op, err)
	}

	reqLogger.Debug("portal response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

func accountPath(accountID, relation string) string {
	return fmt.Sprintf("Accounts('%s')/%s", accountID, relation)
}

func decodeList[T any](body []byte, decode func(json.RawMessage) (T, error)) ([]T, error) {
	records, err := odata.UnwrapList(body)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, record := range records {
		v, err := decode(record)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
