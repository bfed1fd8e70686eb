package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dealdesk/internal/closing"
	"github.com/sells-group/dealdesk/internal/desk"
	"github.com/sells-group/dealdesk/internal/resilience"
	"github.com/sells-group/dealdesk/internal/store"
)

const mapleJSON = `{
	"id": "p1",
	"name": "Maple St",
	"offer_price": "$300,000",
	"first_mortgage_payoff": 150000,
	"buyer_closing_credit": 3000,
	"home_warranty": 500,
	"admin_fee": 395,
	"annual_property_tax": 3650,
	"listing_commission_rate": 3,
	"buyer_commission_rate": 2.5,
	"first_half_taxes_paid": true,
	"in_contract_date": "2025-01-10",
	"closing_date": "2025-02-10",
	"inspection_days": 7,
	"loan_application_timeframe": "7",
	"loan_commitment_timeframe": "21",
	"deposit_policy": "Within 3 Days of Acceptance"
}`

func newTestServer(t *testing.T, cfg Config) (http.Handler, *Metrics) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	today, err := civil.ParseDate("2025-01-20")
	require.NoError(t, err)
	d := desk.New(st, closing.NewCalculator(closing.DefaultSchedule()),
		desk.WithClock(desk.FixedClock(today)),
		desk.WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
	)

	m := NewMetrics()
	return NewRouter(d, cfg, m), m
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, Config{CORSOrigins: []string{"*"}})

	rr := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])
}

func TestDeals_CreateGetPut(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	rr := do(t, h, http.MethodPost, "/deals", mapleJSON)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "/deals/p1", rr.Header().Get("Location"))

	rr = do(t, h, http.MethodGet, "/deals/p1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[map[string]any](t, rr)
	assert.Equal(t, "Maple St", got["name"])
	assert.InDelta(t, 300000, got["offer_price"], 0.001)

	rr = do(t, h, http.MethodPut, "/deals/p2", `{"id":"ignored","name":"Oak Ave"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "p2", decode[map[string]any](t, rr)["id"])

	rr = do(t, h, http.MethodGet, "/deals/ignored", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeals_CreateAssignsID(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	rr := do(t, h, http.MethodPost, "/deals", `{"name":"No Id"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id, _ := decode[map[string]any](t, rr)["id"].(string)
	assert.Len(t, id, 36)
}

func TestDeals_BadBody(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	rr := do(t, h, http.MethodPost, "/deals", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid request body", decode[errorBody](t, rr).Error)

	rr = do(t, h, http.MethodPost, "/estimate", `[]`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEstimate(t *testing.T) {
	h, _ := newTestServer(t, Config{})
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/deals", mapleJSON).Code)

	for _, path := range []string{"/deals/p1/estimate", "/deals/p1/estimate?refresh=true"} {
		rr := do(t, h, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rr.Code, path)
		b := decode[map[string]any](t, rr)
		assert.Equal(t, "125161", b["net_proceeds"], path)
		assert.Equal(t, "300000", b["selling_price"], path)
	}

	rr := do(t, h, http.MethodGet, "/deals/missing/estimate", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatement(t *testing.T) {
	h, _ := newTestServer(t, Config{})
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/deals", mapleJSON).Code)

	rr := do(t, h, http.MethodGet, "/deals/p1/statement.xlsx", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, xlsxContentType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "p1-closing-statement.xlsx")

	f, err := xlsx.OpenBinary(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Maple St", f.Sheets[0].Rows[0].Cells[0].String())

	rr = do(t, h, http.MethodGet, "/deals/missing/statement.xlsx", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestQuote(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	rr := do(t, h, http.MethodPost, "/estimate", `{}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "-1109", decode[map[string]any](t, rr)["net_proceeds"])
}

func TestMilestones(t *testing.T) {
	h, _ := newTestServer(t, Config{})
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/deals", mapleJSON).Code)

	rr := do(t, h, http.MethodGet, "/deals/p1/milestones", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var tl desk.Timeline
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tl))
	assert.Equal(t, "p1", tl.DealID)
	assert.Equal(t, "2025-01-17", tl.InspectionPeriod)
	require.Len(t, tl.Milestones, 8)
	assert.Equal(t, "2025-01-13", tl.Milestones[0].DueLabel)

	rr = do(t, h, http.MethodGet, "/deals/missing/milestones", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

type noticesBody struct {
	Today    string           `json:"today"`
	Overdue  []map[string]any `json:"overdue"`
	Upcoming []map[string]any `json:"upcoming"`
}

func TestNotices_AndCompletion(t *testing.T) {
	h, _ := newTestServer(t, Config{})
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/deals", mapleJSON).Code)

	rr := do(t, h, http.MethodGet, "/notices?ids=p1,missing", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[noticesBody](t, rr)
	assert.Equal(t, "2025-01-20", body.Today)
	require.Len(t, body.Overdue, 3)
	assert.Equal(t, "deposit-received", body.Overdue[0]["type"])
	assert.NotNil(t, body.Upcoming)

	rr = do(t, h, http.MethodPut, "/deals/p1/milestones/deposit-received/complete", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	body = decode[noticesBody](t, do(t, h, http.MethodGet, "/notices?ids=p1", ""))
	require.Len(t, body.Overdue, 2)
	assert.Equal(t, "home-inspection-scheduled", body.Overdue[0]["type"])

	rr = do(t, h, http.MethodDelete, "/deals/p1/milestones/deposit-received/complete", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	body = decode[noticesBody](t, do(t, h, http.MethodGet, "/notices", ""))
	assert.Len(t, body.Overdue, 3)
}

func TestSetCompleted_Errors(t *testing.T) {
	h, _ := newTestServer(t, Config{})
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/deals", mapleJSON).Code)

	rr := do(t, h, http.MethodPut, "/deals/p1/milestones/walkthrough/complete", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPut, "/deals/missing/milestones/clear-to-close/complete", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCompleteAll(t *testing.T) {
	h, _ := newTestServer(t, Config{})
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/deals", mapleJSON).Code)

	rr := do(t, h, http.MethodPost, "/deals/p1/milestones/complete", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 8, decode[map[string]int](t, rr)["completed"])

	body := decode[noticesBody](t, do(t, h, http.MethodGet, "/notices?ids=p1", ""))
	assert.Empty(t, body.Overdue)

	rr = do(t, h, http.MethodPost, "/deals/missing/milestones/complete", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRateLimit(t *testing.T) {
	h, _ := newTestServer(t, Config{RateLimit: 1, RateBurst: 1})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/notices", "").Code)
	rr := do(t, h, http.MethodGet, "/notices", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	// Health checks bypass the limiter.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestServer(t, Config{CORSOrigins: []string{"https://desk.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/deals", nil)
	req.Header.Set("Origin", "https://desk.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://desk.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, Config{})
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/deals", mapleJSON).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/deals/p1/estimate", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/notices", "").Code)

	rr := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	out := rr.Body.String()
	assert.Contains(t, out, `dealdesk_http_requests_total{code="200",method="GET",route="/deals/{id}/estimate"} 1`)
	assert.Contains(t, out, "dealdesk_estimates_total 1")
	assert.Contains(t, out, `dealdesk_notices_outstanding{status="overdue"} 3`)
}

func TestRecoverer(t *testing.T) {
	r := NewRouter(nil, Config{}, nil)

	// A nil desk panics inside the handler; the recoverer turns it into a 500.
	rr := do(t, r, http.MethodPost, "/estimate", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
