package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/config"
	handler "github.com/raoumer8387/alkhidmat-transaction-bot/internal/handlers"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/jobs"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/models"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/repository"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/ingest"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/matching"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/sheetsync"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/verification"
)

func init() { gin.SetMode(gin.TestMode) }

type memLedger struct {
	byDocID map[string]*models.BankTransaction
	credits []models.BankTransaction
}

func newMemLedger() *memLedger { return &memLedger{byDocID: map[string]*models.BankTransaction{}} }

func (m *memLedger) InsertWebhookTransaction(tx *models.BankTransaction) (bool, error) {
	if _, ok := m.byDocID[*tx.DocID]; ok {
		return false, nil
	}
	m.byDocID[*tx.DocID] = tx
	return true, nil
}

func (m *memLedger) StanByDocID(docID string) (string, bool, error) {
	tx, ok := m.byDocID[docID]
	if !ok {
		return "", false, nil
	}
	return tx.Stan, true, nil
}

func (m *memLedger) SetStanByDocID(docID, stan string) error {
	if tx, ok := m.byDocID[docID]; ok {
		tx.Stan = stan
	}
	return nil
}

func (m *memLedger) ListCredits() ([]models.BankTransaction, error) { return m.credits, nil }

type syncQueue struct{}

func (syncQueue) Enqueue(task jobs.Task) bool {
	task.Run(context.Background())
	return true
}

func webhookConfig() *config.Config {
	return &config.Config{
		BearerToken:    "token",
		WebhookUser:    "bank",
		WebhookPass:    "pw",
		AllowedIPs:     []string{"203.0.113.9"},
		ChannelType:    "MBL",
		ChannelSubType: "CMS",
	}
}

func webhookRouter(cfg *config.Config, ledger *memLedger) *gin.Engine {
	svc := ingest.NewService(cfg, ledger, syncQueue{}, zerolog.Nop())
	h := handler.NewWebhookHandler(cfg, svc, zerolog.Nop())
	r := gin.New()
	r.POST("/api/bank-alert", h.BankAlert)
	return r
}

func alertBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"userID":              "bank",
		"password":            "pw",
		"channelType":         "MBL",
		"channelSubType":      "CMS",
		"transactionDateTime": "2025-10-02T18:08:54",
		"hostData": map[string]string{
			"id":          "FT-100",
			"messageData": "02-OCT-25,180854, Jane Smith, 29052, MTDOW,904446,0101, PNSC Branch, 5000.00",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestBankAlertBlockedIP(t *testing.T) {
	r := webhookRouter(webhookConfig(), newMemLedger())

	req := httptest.NewRequest(http.MethodPost, "/api/bank-alert", bytes.NewReader(alertBody(t)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestBankAlertAccepted(t *testing.T) {
	ledger := newMemLedger()
	r := webhookRouter(webhookConfig(), ledger)

	req := httptest.NewRequest(http.MethodPost, "/api/bank-alert", bytes.NewReader(alertBody(t)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp ingest.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.StatusCode != "00" || resp.ID != "FT-100" || resp.Stan == "" {
		t.Fatalf("envelope = %+v, want accepted", resp)
	}
	if _, ok := ledger.byDocID["FT-100"]; !ok {
		t.Error("record not stored")
	}
}

func TestBankAlertAuthFailureIsSoft(t *testing.T) {
	r := webhookRouter(webhookConfig(), newMemLedger())

	req := httptest.NewRequest(http.MethodPost, "/api/bank-alert", bytes.NewReader(alertBody(t)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer wrong")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for soft failure", w.Code)
	}
	var resp ingest.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != "01" || resp.StatusDesc != "fail" {
		t.Fatalf("envelope = %+v, want generic rejection", resp)
	}
}

func TestBankAlertMalformedBody(t *testing.T) {
	r := webhookRouter(webhookConfig(), newMemLedger())

	req := httptest.NewRequest(http.MethodPost, "/api/bank-alert", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"statusCode":"01"`) {
		t.Fatalf("body = %s, want rejection envelope", w.Body.String())
	}
}

func TestBankAlertWildcardDisablesIPCheck(t *testing.T) {
	cfg := webhookConfig()
	cfg.AllowedIPs = []string{"*"}
	r := webhookRouter(cfg, newMemLedger())

	req := httptest.NewRequest(http.MethodPost, "/api/bank-alert", bytes.NewReader(alertBody(t)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with wildcard allow list", w.Code)
	}
}

// fakes for the verification service

type memResults struct{ stored []*models.VerificationResult }

func (m *memResults) Upsert(v *models.VerificationResult) error {
	m.stored = append(m.stored, v)
	return nil
}

func (m *memResults) List(f repository.ListFilter) ([]models.VerificationResult, error) {
	out := make([]models.VerificationResult, 0, len(m.stored))
	for _, v := range m.stored {
		out = append(out, *v)
	}
	return out, nil
}

type memEvidence struct {
	byDonation map[string]*models.EvidenceRecord
}

func newMemEvidence() *memEvidence {
	return &memEvidence{byDonation: map[string]*models.EvidenceRecord{}}
}

func (m *memEvidence) UpsertForVerification(id uuid.UUID, path, status string) (*models.EvidenceRecord, error) {
	return &models.EvidenceRecord{ID: id, VerificationID: &id, StoragePath: path, Status: status}, nil
}

func (m *memEvidence) FindByDonationID(donationID string) (*models.EvidenceRecord, error) {
	return m.byDonation[donationID], nil
}

func (m *memEvidence) InsertInbox(donationID, path string) (*models.EvidenceRecord, error) {
	rec := &models.EvidenceRecord{DonationID: &donationID, StoragePath: path, Status: models.EvidenceNotVerified}
	m.byDonation[donationID] = rec
	return rec, nil
}

func verificationRouter(t *testing.T, ledger *memLedger, results *memResults, evidence *memEvidence) *gin.Engine {
	t.Helper()
	engine := matching.NewEngine("Al-Khidmat Welfare Society", "2664")
	svc := verification.NewService(engine, ledger, results, evidence, t.TempDir(), zerolog.Nop())
	vh := handler.NewVerificationHandler(svc, zerolog.Nop())
	eh := handler.NewEvidenceHandler(svc, zerolog.Nop())

	r := gin.New()
	r.POST("/api/verifications", vh.Verify)
	r.GET("/api/verifications", vh.List)
	r.POST("/api/evidence", eh.Upload)
	return r
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(fileContent)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf, mw.FormDataContentType()
}

func TestVerifyEndpoint(t *testing.T) {
	vd := "2025-10-02"
	doc := "D-1"
	credit := decimal.RequireFromString("5000.00")
	ledger := newMemLedger()
	ledger.credits = []models.BankTransaction{{
		ValueDate:   &vd,
		DocID:       &doc,
		Description: "Fund transfer from Jane Smith acct ...1234 STAN(998877)",
		Credit:      &credit,
		SheetRow:    9,
	}}
	results := &memResults{}
	r := verificationRouter(t, ledger, results, newMemEvidence())

	slip, _ := json.Marshal(map[string]any{
		"amount":                 "5000",
		"date":                   "02-Oct-25",
		"sender_name":            "Jane Smith",
		"sender_account_last4":   "1234",
		"receiver_name":          "Al-Khidmat Welfare Society",
		"receiver_account_last4": "2664",
		"transaction_id":         "998877",
	})
	body, contentType := multipartBody(t, map[string]string{"slip": string(slip)}, "screenshot", "slip.png", "png-bytes")

	req := httptest.NewRequest(http.MethodPost, "/api/verifications", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Status       string `json:"status"`
		ChecksPassed int    `json:"checks_passed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != models.StatusVerified || resp.ChecksPassed != 5 {
		t.Fatalf("response = %+v, want verified with 5 checks", resp)
	}
	if len(results.stored) != 1 {
		t.Fatalf("stored %d results, want 1", len(results.stored))
	}
}

func TestVerifyEndpointMissingSlip(t *testing.T) {
	r := verificationRouter(t, newMemLedger(), &memResults{}, newMemEvidence())
	body, contentType := multipartBody(t, map[string]string{}, "", "", "")

	req := httptest.NewRequest(http.MethodPost, "/api/verifications", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestEvidenceEndpointDuplicateDonation(t *testing.T) {
	r := verificationRouter(t, newMemLedger(), &memResults{}, newMemEvidence())

	send := func() *httptest.ResponseRecorder {
		body, contentType := multipartBody(t, map[string]string{"donation_id": "DON-7"}, "file", "slip.pdf", "pdf-bytes")
		req := httptest.NewRequest(http.MethodPost, "/api/evidence", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := send()
	if first.Code != http.StatusOK || !strings.Contains(first.Body.String(), `"status":"ok"`) {
		t.Fatalf("first upload: %d %s", first.Code, first.Body.String())
	}

	second := send()
	if second.Code != http.StatusOK {
		t.Fatalf("duplicate upload status = %d, want soft 200", second.Code)
	}
	if !strings.Contains(second.Body.String(), "already exists") {
		t.Fatalf("duplicate body = %s, want already-exists error", second.Body.String())
	}
}

// fakes for the sheet sync trigger

type stubSheetSource struct {
	rows []sheetsync.Row
	err  error
}

func (s *stubSheetSource) Fetch(context.Context) ([]sheetsync.Row, error) { return s.rows, s.err }

type stubSheetLedger struct {
	watermarkErr error
}

func (s *stubSheetLedger) BulkInsert([]models.BankTransaction) (int, error) { return 0, nil }
func (s *stubSheetLedger) MaxSheetRow() (int, error)                        { return 0, s.watermarkErr }

type stubSyncState struct{}

func (stubSyncState) LastSyncTime(string) (time.Time, error) { return time.Time{}, nil }
func (stubSyncState) SetSyncTime(string, time.Time) error    { return nil }

func syncRouter(reconciler *sheetsync.Reconciler) *gin.Engine {
	cfg := webhookConfig()
	cfg.ServiceAccountFile = "service_account.json"
	h := handler.NewSyncHandler(cfg, reconciler, zerolog.Nop())
	r := gin.New()
	r.POST("/api/sync", h.Trigger)
	return r
}

func TestSyncTriggerWithoutCredentials(t *testing.T) {
	r := syncRouter(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sync", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want soft 200 without credentials", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Service account file not found at service_account.json") {
		t.Fatalf("body = %s, want missing-credentials message", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"synced":false`) {
		t.Fatalf("body = %s, want synced false", w.Body.String())
	}
}

func TestSyncTriggerSourceFailureIsSoft(t *testing.T) {
	rec := sheetsync.NewReconciler(
		&stubSheetSource{err: errors.New("api quota exceeded")},
		&stubSheetLedger{}, stubSyncState{}, time.Minute, zerolog.Nop(),
	)
	r := syncRouter(rec)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sync", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want soft 200 on source failure", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Google Sheets API error") {
		t.Fatalf("body = %s, want source failure message", w.Body.String())
	}
}

func TestSyncTriggerStorageFailureIsServerError(t *testing.T) {
	rows := []sheetsync.Row{{Position: 6, Cells: map[string]string{"Doc No": "D-1", "Credit": "100"}}}
	rec := sheetsync.NewReconciler(
		&stubSheetSource{rows: rows},
		&stubSheetLedger{watermarkErr: errors.New("connection refused")},
		stubSyncState{}, time.Minute, zerolog.Nop(),
	)
	r := syncRouter(rec)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sync", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 on storage failure", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	cfg := webhookConfig()
	cfg.DatabaseURL = "postgres://localhost/donations"
	h := handler.NewHealthHandler(cfg)
	r := gin.New()
	r.GET("/health", h.Check)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Status     string   `json:"status"`
		Configured bool     `json:"configured"`
		Missing    []string `json:"missing_vars"`
		Database   string   `json:"database"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || !resp.Configured || resp.Database != "configured" {
		t.Fatalf("health = %+v", resp)
	}
}

func TestHealthEndpointMisconfigured(t *testing.T) {
	cfg := &config.Config{}
	h := handler.NewHealthHandler(cfg)
	r := gin.New()
	r.GET("/health", h.Check)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp struct {
		Status  string   `json:"status"`
		Missing []string `json:"missing_vars"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "misconfigured" || len(resp.Missing) != 3 {
		t.Fatalf("health = %+v, want misconfigured with 3 missing vars", resp)
	}
}
