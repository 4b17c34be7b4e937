package router

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	documenthandler "github.com/jwalitptl/osteo-api/internal/handler/document"
	eventhandler "github.com/jwalitptl/osteo-api/internal/handler/event"
	examhandler "github.com/jwalitptl/osteo-api/internal/handler/examination"
	"github.com/jwalitptl/osteo-api/internal/handler/health"
	invoicehandler "github.com/jwalitptl/osteo-api/internal/handler/invoice"
	patienthandler "github.com/jwalitptl/osteo-api/internal/handler/patient"
	"github.com/jwalitptl/osteo-api/internal/handler/prometheus"
	settingshandler "github.com/jwalitptl/osteo-api/internal/handler/settings"
	"github.com/jwalitptl/osteo-api/internal/middleware"
	"github.com/jwalitptl/osteo-api/internal/repository/memory"
	"github.com/jwalitptl/osteo-api/internal/service/document"
	"github.com/jwalitptl/osteo-api/internal/service/event"
	"github.com/jwalitptl/osteo-api/internal/service/examination"
	"github.com/jwalitptl/osteo-api/internal/service/invoice"
	"github.com/jwalitptl/osteo-api/internal/service/patient"
	"github.com/jwalitptl/osteo-api/internal/service/settings"
	"github.com/jwalitptl/osteo-api/internal/storage"
	"github.com/jwalitptl/osteo-api/pkg/auth"
	"github.com/jwalitptl/osteo-api/pkg/logger"
	"github.com/jwalitptl/osteo-api/pkg/metrics"
	"github.com/jwalitptl/osteo-api/pkg/validator"
)

const pdf = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"

type envelope struct {
	Status   string          `json:"status"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
	Errors   []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
	Warnings []string `json:"warnings"`
}

type testServer struct {
	engine *gin.Engine
	token  string
	ready  error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := &testServer{}
	store := memory.NewStore()
	files := storage.NewMemoryStore()
	v := validator.New()
	reg := promclient.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	log := logger.Nop()

	settingsSvc := settings.NewService(store, v, log, nil, time.Minute)
	tokens := auth.NewJWTService("test-secret")
	token, err := tokens.GenerateAccessToken(uuid.New(), time.Hour)
	require.NoError(t, err)
	srv.token = token

	healthH := health.NewHandler(map[string]health.Checker{
		"database": health.CheckFunc(func(context.Context) error { return srv.ready }),
	})

	r := NewRouter(RouterConfig{
		CORS:      middleware.DefaultCORSConfig(),
		Security:  middleware.DefaultSecurityConfig(),
		SizeLimit: middleware.DefaultSizeLimitConfig(),
		Timeout:   middleware.DefaultTimeoutConfig(),
	}, tokens, m, healthH, prometheus.New(reg),
		patienthandler.NewHandler(patient.NewService(store, files, v, m, log, nil)),
		examhandler.NewHandler(examination.NewService(store, v, m, log, nil)),
		invoicehandler.NewHandler(invoice.NewService(store, settingsSvc, v, m, log, nil)),
		documenthandler.NewHandler(document.NewService(store, files, v, m, log, nil)),
		settingshandler.NewHandler(settingsSvc),
		eventhandler.NewHandler(event.NewService(store, v, log, nil)),
	)
	r.Setup()
	srv.engine = r.Engine()
	return srv
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func decode(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

type idOnly struct {
	ID uuid.UUID `json:"id"`
}

func (s *testServer) createPatient(t *testing.T) uuid.UUID {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/v1/patients", map[string]interface{}{
		"family_name": "Durand",
		"first_name":  "Alice",
		"birth_date":  "1980-05-01T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p idOnly
	decode(t, env, &p)
	return p.ID
}

func TestHealthRoutesArePublic(t *testing.T) {
	srv := newTestServer(t)
	srv.token = ""

	w, _ := srv.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = srv.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = srv.do(t, http.MethodGet, "/health/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	srv := newTestServer(t)
	srv.ready = stderrors.New("connection refused")

	w, _ := srv.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestAPIRequiresBearerToken(t *testing.T) {
	srv := newTestServer(t)
	srv.token = ""

	w, env := srv.do(t, http.MethodGet, "/api/v1/patients", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "error", env.Status)

	srv.token = "not-a-token"
	w, _ = srv.do(t, http.MethodGet, "/api/v1/patients", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestErrorEnvelope(t *testing.T) {
	srv := newTestServer(t)

	w, env := srv.do(t, http.MethodGet, "/api/v1/patients/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "error", env.Status)

	w, _ = srv.do(t, http.MethodGet, "/api/v1/patients/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = srv.do(t, http.MethodPost, "/api/v1/patients", map[string]interface{}{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	fields := make([]string, 0, len(env.Errors))
	for _, e := range env.Errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "family_name")
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)
	w, _ := srv.do(t, http.MethodGet, "/api/v1/patients", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
}

func TestInvoiceLifecycle(t *testing.T) {
	srv := newTestServer(t)

	w, _ := srv.do(t, http.MethodPut, "/api/v1/settings/office", map[string]interface{}{
		"office_siret":           "12345678900011",
		"office_address_city":    "Lyon",
		"currency":               "EUR",
		"amount":                 "55",
		"invoice_start_sequence": "FA-0001",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	patientID := srv.createPatient(t)
	w, env := srv.do(t, http.MethodPost, "/api/v1/examinations", map[string]interface{}{
		"patient": patientID,
		"date":    "2024-03-04T09:00:00Z",
		"type":    1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var exam idOnly
	decode(t, env, &exam)

	w, env = srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/examinations/%s/invoice", exam.ID), map[string]interface{}{
		"paiment_mode": "CB",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var issued struct {
		ID     uuid.UUID `json:"id"`
		Number string    `json:"number"`
		Amount string    `json:"amount"`
	}
	decode(t, env, &issued)
	assert.Equal(t, "FA-0001", issued.Number)
	assert.Equal(t, "55", issued.Amount)

	w, env = srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/invoices/%s/cancel", issued.ID), map[string]interface{}{})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var credit struct {
		Number string `json:"number"`
		Type   string `json:"type"`
	}
	decode(t, env, &credit)
	assert.Equal(t, "creditnote", credit.Type)
	assert.Equal(t, "FA-0002", credit.Number)

	w, _ = srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/invoices/%s/cancel", issued.ID), map[string]interface{}{})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/examinations/%s/invoices", exam.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		LastInvoice  *struct{ Number string } `json:"last_invoice"`
		InvoicesList []struct{ Number string } `json:"invoices_list"`
	}
	decode(t, env, &view)
	require.NotNil(t, view.LastInvoice)
	assert.Equal(t, "FA-0002", view.LastInvoice.Number)
	require.Len(t, view.InvoicesList, 1)
	assert.Equal(t, "FA-0001", view.InvoicesList[0].Number)

	w, env = srv.do(t, http.MethodGet, "/api/v1/events?clazz=OfficeSettings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var events []struct {
		Comment string `json:"comment"`
	}
	decode(t, env, &events)
	assert.NotEmpty(t, events)
}

func TestDocumentUploadAndDownload(t *testing.T) {
	srv := newTestServer(t)
	patientID := srv.createPatient(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "X-ray"))
	require.NoError(t, mw.WriteField("attachment_type", "1"))
	part, err := mw.CreateFormFile("document_file", "xray.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte(pdf))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/patients/%s/documents", patientID), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, env := srv.send(t, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var pd struct {
		DocumentID uuid.UUID `json:"document_id"`
	}
	decode(t, env, &pd)

	w, _ = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/documents/%s/download", pd.DocumentID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, pdf, w.Body.String())

	w, env = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/patients/%s/documents?attachment_type=1", patientID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var docs []json.RawMessage
	decode(t, env, &docs)
	assert.Len(t, docs, 1)

	w, _ = srv.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/patients/%s", patientID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/documents/%s", pd.DocumentID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentUploadRequiresFile(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "empty"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, env := srv.send(t, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "document_file", env.Errors[0].Field)
}

func TestTherapeutSettingsKeepOmittedFlags(t *testing.T) {
	srv := newTestServer(t)

	type flags struct {
		Adeli             string  `json:"adeli"`
		Siret             *string `json:"siret"`
		StatsEnabled      bool    `json:"stats_enabled"`
		LastEventsEnabled bool    `json:"last_events_enabled"`
	}

	w, env := srv.do(t, http.MethodGet, "/api/v1/settings/therapeut", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var before flags
	decode(t, env, &before)
	assert.True(t, before.StatsEnabled)
	assert.True(t, before.LastEventsEnabled)

	w, env = srv.do(t, http.MethodPut, "/api/v1/settings/therapeut", map[string]interface{}{
		"adeli": "123",
		"siret": "",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var saved flags
	decode(t, env, &saved)
	assert.Equal(t, "123", saved.Adeli)
	assert.Nil(t, saved.Siret)
	assert.True(t, saved.StatsEnabled)
	assert.True(t, saved.LastEventsEnabled)

	w, _ = srv.do(t, http.MethodPut, "/api/v1/settings/therapeut", map[string]interface{}{
		"stats_enabled": false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, env = srv.do(t, http.MethodGet, "/api/v1/settings/therapeut", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var after flags
	decode(t, env, &after)
	assert.Equal(t, "123", after.Adeli)
	assert.False(t, after.StatsEnabled)
	assert.True(t, after.LastEventsEnabled)
}

func TestPaimentMeanEnabledByDefault(t *testing.T) {
	srv := newTestServer(t)

	type mean struct {
		ID     uuid.UUID `json:"id"`
		Code   string    `json:"code"`
		Text   string    `json:"text"`
		Enable bool      `json:"enable"`
	}

	w, env := srv.do(t, http.MethodPost, "/api/v1/paiment-means", map[string]interface{}{
		"code": "CB",
		"text": "Carte",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created mean
	decode(t, env, &created)
	assert.True(t, created.Enable)

	w, env = srv.do(t, http.MethodPost, "/api/v1/paiment-means", map[string]interface{}{
		"code":   "CHQ",
		"text":   "Cheque",
		"enable": false,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var disabled mean
	decode(t, env, &disabled)
	assert.False(t, disabled.Enable)

	w, env = srv.do(t, http.MethodPut, fmt.Sprintf("/api/v1/paiment-means/%s", disabled.ID), map[string]interface{}{
		"text": "Cheque bancaire",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated mean
	decode(t, env, &updated)
	assert.Equal(t, "CHQ", updated.Code)
	assert.Equal(t, "Cheque bancaire", updated.Text)
	assert.False(t, updated.Enable)

	w, env = srv.do(t, http.MethodGet, "/api/v1/paiment-means?enabled=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var enabled []mean
	decode(t, env, &enabled)
	require.Len(t, enabled, 1)
	assert.Equal(t, created.ID, enabled[0].ID)
}
