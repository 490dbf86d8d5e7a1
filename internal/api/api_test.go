// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/payflux/payflux/internal/auth"
	"github.com/payflux/payflux/internal/config"
	"github.com/payflux/payflux/internal/database"
	"github.com/payflux/payflux/internal/events"
	"github.com/payflux/payflux/internal/identity"
	"github.com/payflux/payflux/internal/models"
	"github.com/payflux/payflux/internal/notify"
)

// noopNotifier satisfies the processor's Notifier without a dispatcher.
type noopNotifier struct{}

func (noopNotifier) NotifyPending(context.Context, *models.Transaction) error   { return nil }
func (noopNotifier) NotifyFulfilled(context.Context, *models.Transaction) error { return nil }

// captureSender records synchronous sends from the notification
// endpoints.
type captureSender struct {
	mu   sync.Mutex
	sent []notify.Message
	fail bool
}

func (s *captureSender) Name() string { return "capture" }

func (s *captureSender) Send(_ context.Context, msg *notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("provider down")
	}
	s.sent = append(s.sent, *msg)
	return nil
}

func (s *captureSender) messages() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.Message, len(s.sent))
	copy(out, s.sent)
	return out
}

type testServer struct {
	srv    *httptest.Server
	db     *database.DB
	sender *captureSender
	cfg    *config.Config
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 3001, Timeout: 30 * time.Second},
		Database: config.DatabaseConfig{
			Path:      filepath.Join(t.TempDir(), "payflux-test.duckdb"),
			MaxMemory: "256MB",
			Threads:   2,
		},
		SMS:      config.SMSConfig{Provider: "log"},
		Security: config.SecurityConfig{AuthMode: "none", RateLimitReqs: 1000, RateLimitWindow: time.Minute, CORSOrigins: []string{"*"}},
	}
	for _, m := range mutate {
		m(cfg)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sender := &captureSender{}
	processor := events.NewProcessor(db, noopNotifier{})

	handler, err := NewHandler(cfg, db, processor, sender, identity.NewStubVerifier())
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	authenticator, err := auth.NewAuthenticator(&cfg.Security)
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}

	srv := httptest.NewServer(NewRouter(cfg, handler, authenticator))
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, db: db, sender: sender, cfg: cfg}
}

func (ts *testServer) postJSON(t *testing.T, path string, body interface{}) (*http.Response, models.APIResponse) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(ts.srv.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, decodeEnvelope(t, resp)
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, models.APIResponse) {
	t.Helper()

	resp, err := http.Get(ts.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, decodeEnvelope(t, resp)
}

func decodeEnvelope(t *testing.T, resp *http.Response) models.APIResponse {
	t.Helper()
	defer resp.Body.Close()

	var env models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response envelope: %v", err)
	}
	return env
}

func createdElement(requestID string) models.MatchedTransaction {
	return models.MatchedTransaction{
		Signature:   "sig-" + requestID,
		BlockTime:   1735689600,
		Instruction: "create_payment",
		RequestID:   requestID,
		Sender:      "8x7PmsUcvy2FkQzsA5WAzqCDSvFRgNQJcGeqELHzPa9Y",
		Amount:      50000,
		RecipientDetails: &models.RecipientDetails{
			AccountNumber: "0123456789",
			AccountName:   "Ada Obi",
			PhoneNumber:   "+2348012345678",
		},
	}
}

func TestWebhookCreatesTransaction(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, env := ts.postJSON(t, "/webhook", models.WebhookRequest{
		MatchedTransactions: []models.MatchedTransaction{createdElement("req-w1")},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%+v)", resp.StatusCode, env)
	}
	if env.Status != "success" {
		t.Errorf("envelope status = %q", env.Status)
	}

	// The transaction is now queryable with verbatim recipient details.
	resp, env = ts.get(t, "/api/transactions/req-w1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	data, _ := json.Marshal(env.Data)
	var tx models.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		t.Fatalf("decode transaction: %v", err)
	}
	if tx.ReceiverName != "Ada Obi" || tx.AmountNGN != 50000 || tx.Stage != models.StagePending {
		t.Errorf("stored transaction = %+v", tx)
	}
}

func TestWebhookPartialFailure(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, env := ts.postJSON(t, "/webhook", models.WebhookRequest{
		MatchedTransactions: []models.MatchedTransaction{
			createdElement("req-w2"),
			{Signature: "sig-ghost", Instruction: "fulfill_payment", RequestID: "ghost", MarketMaker: "mm"},
		},
	})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if env.Status != "error" || env.Error == nil || env.Error.Code != "PROCESSING_ERROR" {
		t.Errorf("envelope = %+v", env)
	}

	// Results list one entry per element in order.
	data, _ := json.Marshal(env.Data)
	var payload struct {
		Results []models.WebhookElementResult `json:"results"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(payload.Results) != 2 || payload.Results[0].Status != "processed" || payload.Results[1].Status != "failed" {
		t.Errorf("results = %+v", payload.Results)
	}

	// The earlier element's write survives the later failure.
	if resp, _ := ts.get(t, "/api/transactions/req-w2"); resp.StatusCode != http.StatusOK {
		t.Errorf("earlier element lost, status = %d", resp.StatusCode)
	}
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	body := models.WebhookRequest{MatchedTransactions: []models.MatchedTransaction{createdElement("req-w3")}}

	if resp, _ := ts.postJSON(t, "/webhook", body); resp.StatusCode != http.StatusOK {
		t.Fatalf("first delivery failed: %d", resp.StatusCode)
	}
	if resp, _ := ts.postJSON(t, "/webhook", body); resp.StatusCode != http.StatusOK {
		t.Fatalf("replay must succeed: %d", resp.StatusCode)
	}

	_, env := ts.get(t, "/api/transactions")
	data, _ := json.Marshal(env.Data)
	var txs []models.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("replay duplicated the transaction: %d rows", len(txs))
	}
}

func TestWebhookSignatureVerification(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Chain.WebhookSecret = "stream-secret"
	})

	payload, _ := json.Marshal(models.WebhookRequest{
		MatchedTransactions: []models.MatchedTransaction{createdElement("req-sig")},
	})

	// Unsigned request is rejected.
	resp, err := http.Post(ts.srv.URL+"/webhook", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unsigned: status = %d, want 401", resp.StatusCode)
	}

	// Correctly signed request is accepted.
	mac := hmac.New(sha256.New, []byte("stream-secret"))
	mac.Write(payload)
	req, _ := http.NewRequest(http.MethodPost, ts.srv.URL+"/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, hex.EncodeToString(mac.Sum(nil)))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("signed POST: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("signed: status = %d, want 200", resp.StatusCode)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, env := ts.get(t, "/api/transactions/missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestListTransactionsEmpty(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, env := ts.get(t, "/api/transactions")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	data, _ := json.Marshal(env.Data)
	var txs []models.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("expected empty list, got %d", len(txs))
	}
}

func TestVerifyNIN(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.postJSON(t, "/webhook", models.WebhookRequest{
		MatchedTransactions: []models.MatchedTransaction{createdElement("req-nin")},
	})

	// Malformed NIN is a validation error.
	resp, env := ts.postJSON(t, "/api/transactions/req-nin/verify-nin", map[string]string{"nin": "123"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short nin: status = %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v", env.Error)
	}

	// Unknown transaction is 404 even with a valid NIN.
	resp, _ = ts.postJSON(t, "/api/transactions/ghost/verify-nin", map[string]string{"nin": "12345678901"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown tx: status = %d, want 404", resp.StatusCode)
	}

	// Any 11-character NIN verifies; content is not inspected at the boundary.
	resp, env = ts.postJSON(t, "/api/transactions/req-nin/verify-nin", map[string]string{"nin": "A2345678901"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("11-char nin: status = %d (%+v)", resp.StatusCode, env)
	}

	_, env = ts.get(t, "/api/transactions/req-nin")
	data, _ := json.Marshal(env.Data)
	var tx models.Transaction
	_ = json.Unmarshal(data, &tx)
	if !tx.NINVerified || tx.Stage != models.StageVerified {
		t.Errorf("transaction after verification = %+v", tx)
	}
}

func TestConfirmReceipt(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.postJSON(t, "/webhook", models.WebhookRequest{
		MatchedTransactions: []models.MatchedTransaction{createdElement("req-rc")},
	})

	// Missing USSD code is a validation error.
	resp, _ := ts.postJSON(t, "/api/transactions/req-rc/confirm-receipt", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing code: status = %d, want 400", resp.StatusCode)
	}

	resp, env := ts.postJSON(t, "/api/transactions/req-rc/confirm-receipt", map[string]string{"ussdCode": "*737*1*5#"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%+v)", resp.StatusCode, env)
	}
	data, _ := json.Marshal(env.Data)
	var tx models.Transaction
	_ = json.Unmarshal(data, &tx)
	if !tx.ReceiptConfirmed || tx.USSDCode != "*737*1*5#" || tx.Stage != models.StageCompleted {
		t.Errorf("transaction after confirmation = %+v", tx)
	}
}

func TestNotificationTestEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, _ := ts.postJSON(t, "/api/notifications/test", map[string]string{
		"phoneNumber": "+2348012345678",
		"message":     "hello from ops",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	msgs := ts.sender.messages()
	if len(msgs) != 1 || msgs[0].To != "+2348012345678" || msgs[0].Body != "hello from ops" {
		t.Errorf("sent = %+v", msgs)
	}

	// Missing fields are a validation error.
	resp, _ = ts.postJSON(t, "/api/notifications/test", map[string]string{"phoneNumber": "+234"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing message: status = %d, want 400", resp.StatusCode)
	}
}

func TestNotificationTestProviderFailure(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.sender.fail = true

	resp, env := ts.postJSON(t, "/api/notifications/test", map[string]string{
		"phoneNumber": "+2348012345678",
		"message":     "x",
	})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "PROCESSING_ERROR" {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestNotificationResend(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.postJSON(t, "/webhook", models.WebhookRequest{
		MatchedTransactions: []models.MatchedTransaction{createdElement("req-rs")},
	})

	resp, _ := ts.postJSON(t, "/api/notifications/resend/req-rs", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	msgs := ts.sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	if want := "You have a pending payment of NGN 50000"; msgs[0].Body != want {
		t.Errorf("body = %q, want %q", msgs[0].Body, want)
	}

	// Unknown request is 404.
	resp, _ = ts.postJSON(t, "/api/notifications/resend/ghost", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown: status = %d, want 404", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	for _, path := range []string{"/api/health", "/api/health/live", "/api/health/ready"} {
		resp, env := ts.get(t, path)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status = %d", path, resp.StatusCode)
		}
		if env.Status != "success" {
			t.Errorf("%s: envelope = %+v", path, env)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("payflux_http_requests_total")) {
		t.Error("exposition missing relay metrics")
	}
}

func TestLoginDisabledInModeNone(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, _ := ts.postJSON(t, "/api/auth/login", map[string]string{"username": "admin", "password": "x"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestJWTGuardedOperatorAPI(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.AuthMode = "jwt"
		cfg.Security.JWTSecret = "0123456789abcdef0123456789abcdef"
		cfg.Security.SessionTimeout = time.Hour
		cfg.Security.AdminUsername = "admin"
		cfg.Security.AdminPassword = "correct-horse-battery"
	})

	// Unauthenticated operator call is rejected.
	resp, env := ts.get(t, "/api/transactions")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: status = %d, want 401", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "AUTHENTICATION_ERROR" {
		t.Errorf("error = %+v", env.Error)
	}

	// The webhook stays open for the stream provider.
	resp, _ = ts.postJSON(t, "/webhook", models.WebhookRequest{
		MatchedTransactions: []models.MatchedTransaction{createdElement("req-jwt")},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook with auth enabled: status = %d", resp.StatusCode)
	}

	// Bad credentials are rejected.
	resp, _ = ts.postJSON(t, "/api/auth/login", map[string]string{"username": "admin", "password": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: status = %d, want 401", resp.StatusCode)
	}

	// Good credentials return a token that unlocks the operator API.
	_, env = ts.postJSON(t, "/api/auth/login", map[string]string{"username": "admin", "password": "correct-horse-battery"})
	data, _ := json.Marshal(env.Data)
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("login response = %+v (%v)", env, err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+"/api/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authenticated GET: %v", err)
	}
	io.Copy(io.Discard, authed.Body)
	authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Errorf("authenticated: status = %d, want 200", authed.StatusCode)
	}
}
