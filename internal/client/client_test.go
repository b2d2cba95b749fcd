package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vlsemenov/samaraenergo/internal/client"
)

func newTestClient(t *testing.T, handler http.Handler) (*client.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := client.New(client.Config{
		BaseURL:  server.URL,
		User:     "1000123456",
		Password: "secret",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, server
}

func TestAccountsRequestShape(t *testing.T) {
	var gotPath, gotExpand, gotUser, gotAccept string

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotExpand = r.URL.Query().Get("$expand")
		gotUser = r.URL.Query().Get("sap-user")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{"d": {"results": [{
			"AccountID": "1000123456",
			"FullName": "Иванов Иван Иванович",
			"StandardAccountAddress": {"__deferred": {}},
			"ContractAccounts": {"__deferred": {}},
			"PaymentDocuments": {"__deferred": {}}
		}]}}`))
	}))

	accounts, err := c.Accounts(context.Background(), client.ExpandInvoices, client.ExpandRegisters)
	if err != nil {
		t.Fatalf("Accounts failed: %v", err)
	}

	if gotPath != "/Accounts" {
		t.Errorf("Expected path /Accounts, got %q", gotPath)
	}
	if gotExpand != "ContractAccounts/Invoices,ContractAccounts/Contracts/Devices/RegistersToRead" {
		t.Errorf("Expected comma-joined expand paths, got %q", gotExpand)
	}
	if gotUser != "1000123456" {
		t.Errorf("Expected sap-user param, got %q", gotUser)
	}
	if gotAccept != "application/json" {
		t.Errorf("Expected Accept application/json, got %q", gotAccept)
	}
	if len(accounts) != 1 || accounts[0].AccountID != "1000123456" {
		t.Errorf("Expected one decoded account, got %+v", accounts)
	}
}

func TestTransportErrorCarriesStatusAndBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("sap gateway unavailable"))
	}))

	_, err := c.Invoices(context.Background(), "1000123456")

	var transportErr *client.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
	if transportErr.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", transportErr.StatusCode)
	}
	if transportErr.Body != "sap gateway unavailable" {
		t.Errorf("Expected body preserved, got %q", transportErr.Body)
	}
}

func TestInvoicePDFSkipsAcceptHeader(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake")
	var gotAccept string

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		w.Write(pdf)
	}))

	got, err := c.InvoicePDF(context.Background(), "INV-1")
	if err != nil {
		t.Fatalf("InvoicePDF failed: %v", err)
	}

	if gotAccept == "application/json" {
		t.Error("Expected binary endpoint to not request JSON")
	}
	if string(got) != string(pdf) {
		t.Errorf("Expected raw PDF bytes, got %q", got)
	}
}

func TestSubmitReadingsCSRFHandshake(t *testing.T) {
	const token = "token-abc123"
	var probeSeen bool
	var postToken, postContentType string
	var postBody []byte

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			if r.Header.Get("x-csrf-token") != "Fetch" {
				t.Errorf("Expected token probe header 'Fetch', got %q", r.Header.Get("x-csrf-token"))
			}
			probeSeen = true
			w.Header().Set("x-csrf-token", token)
			w.WriteHeader(http.StatusOK)

		case http.MethodPost:
			if !probeSeen {
				t.Error("Expected CSRF probe to complete before the POST")
			}
			postToken = r.Header.Get("x-csrf-token")
			postContentType = r.Header.Get("Content-Type")
			postBody, _ = io.ReadAll(r.Body)
			w.Write([]byte(`{"d": {
				"MeterReadingResultID": "77001",
				"RegisterID": "001",
				"ReadingResult": "15250.0",
				"ReadingDateTime": "/Date(1710460800000)/",
				"Zwarttxt": "День",
				"Text40": "Моб. личный кабинет",
				"Prkrasch": "X"
			}}`))

		default:
			t.Errorf("Unexpected method %s", r.Method)
		}
	}))

	confirmed, err := c.SubmitReadings(context.Background(), "D1", time.Time{}, decimal.NewFromInt(15250))
	if err != nil {
		t.Fatalf("SubmitReadings failed: %v", err)
	}

	if postToken != token {
		t.Errorf("Expected probe token echoed on POST, got %q", postToken)
	}
	if postContentType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", postContentType)
	}
	if !strings.Contains(string(postBody), `"RegisterID":"001"`) {
		t.Errorf("Expected primary register in payload, got %s", postBody)
	}

	if confirmed.MeterReadingResultID != "77001" {
		t.Errorf("Expected server-assigned id '77001', got %q", confirmed.MeterReadingResultID)
	}
	if !confirmed.Prkrasch {
		t.Error("Expected reading accepted for billing")
	}
}

func TestSubmitReadingsRejectsBadCountBeforeNetwork(t *testing.T) {
	var calls int
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	_, err := c.SubmitReadings(context.Background(), "D1", time.Time{})
	if err == nil {
		t.Fatal("Expected error for zero readings")
	}
	if calls != 0 {
		t.Errorf("Expected no network call, server saw %d", calls)
	}

	_, err = c.SubmitReadings(context.Background(), "D1", time.Time{},
		decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(3), decimal.NewFromInt(4))
	if err == nil {
		t.Fatal("Expected error for four readings")
	}
	if calls != 0 {
		t.Errorf("Expected no network call, server saw %d", calls)
	}
}

func TestSubmitReadingsProbeFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.SubmitReadings(context.Background(), "D1", time.Time{}, decimal.NewFromInt(1))

	var transportErr *client.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected TransportError from probe, got %v", err)
	}
	if transportErr.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", transportErr.StatusCode)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := client.New(client.Config{}, zap.NewNop())
	if err == nil {
		t.Error("Expected error for missing credentials")
	}
}

func TestDecodeErrorSurfacesEnvelopeKey(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected": true}`))
	}))

	_, err := c.Payments(context.Background(), "1000123456")
	if err == nil || !strings.Contains(err.Error(), `"d"`) {
		t.Errorf("Expected error naming the missing envelope key, got %v", err)
	}
}
