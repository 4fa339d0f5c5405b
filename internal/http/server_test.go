package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"finboard/internal/core"
	"finboard/internal/export"
	"finboard/internal/ledger"
	"finboard/internal/log"
	"finboard/internal/services"
)

type testEnv struct {
	srv     *Server
	records *services.RecordService
}

func newTestServer(t *testing.T, cfg Config) testEnv {
	t.Helper()
	logger := log.New(log.Config{Output: &bytes.Buffer{}, Component: log.ComponentHTTP})
	records := services.NewRecordService(ledger.New(core.SampleRecords()), nil, nil, logger)
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	srv, err := NewServer(cfg, records, logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testEnv{srv: srv, records: records}
}

func (e testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func htmxForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	return req
}

func TestPagesRender(t *testing.T) {
	env := newTestServer(t, Config{})

	tests := []struct {
		path string
		want []string
	}{
		{"/", []string{"Monthly reports", "Revenue (2024-01)", "1,400,000.00", "chart-profit", "chart-per-capita"}},
		{"/ui/summary", []string{"Profit (2024-01)", "625,000.00", "card--positive"}},
		{"/ui/reports-table", []string{"2023-08", "2024-01", `hx-delete="/records/6"`}},
		{"/entry", []string{"New monthly record", `name="expense_amount"`, "Personnel (non-salary)"}},
		{"/entry?month=2023-12", []string{"Edit 2023-12", `value="1800000"`}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			body := rr.Body.String()
			for _, w := range tt.want {
				if !strings.Contains(body, w) {
					t.Errorf("body missing %q", w)
				}
			}
		})
	}
}

func TestUnknownPathIs404(t *testing.T) {
	env := newTestServer(t, Config{})
	rr := env.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestDashboardDataFromOneVersion(t *testing.T) {
	env := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for m := 1; m <= 12; m++ {
			env.records.SaveRecord(context.Background(), core.MonthlyRecord{Month: fmt.Sprintf("2025-%02d", m), Headcount: 1})
		}
	}()

	for {
		data := env.srv.dashboardData(req)
		if !data.HasLatest || len(data.Reports) == 0 {
			t.Fatal("seeded dashboard has no latest report")
		}
		if last := data.Reports[len(data.Reports)-1]; last.Month != data.Latest.Month {
			t.Fatalf("cards show %s but table ends at %s", data.Latest.Month, last.Month)
		}
		select {
		case <-done:
			if data := env.srv.dashboardData(req); data.Latest.Month != "2025-12" || len(data.Reports) != 18 {
				t.Fatalf("final dashboard latest=%s reports=%d", data.Latest.Month, len(data.Reports))
			}
			return
		default:
		}
	}
}

func TestEmptyStateRenders(t *testing.T) {
	env := newTestServer(t, Config{})
	for _, r := range core.SampleRecords() {
		env.records.DeleteRecord(context.Background(), r.ID)
	}

	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "No monthly records yet.") || !strings.Contains(body, "No data yet.") {
		t.Fatalf("empty state missing: %s", body)
	}
}

func TestSaveRecordForm(t *testing.T) {
	env := newTestServer(t, Config{})

	rr := env.do(htmxForm("/records", url.Values{
		"month":            {"2024-03"},
		"revenue":          {"1000"},
		"laborCost":        {"400"},
		"headcount":        {"2"},
		"expense_category": {"operating"},
		"expense_amount":   {"100"},
	}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if trig := rr.Header().Get("HX-Trigger"); !strings.Contains(trig, "record:saved") || !strings.Contains(trig, "form:reset") {
		t.Fatalf("HX-Trigger = %s", trig)
	}

	latest, ok := env.records.Latest(context.Background())
	if !ok || latest.Month != "2024-03" {
		t.Fatalf("latest = %+v", latest)
	}
	want := map[string]string{
		"totalExpenses": "100", "totalCost": "500", "profit": "500", "avgRevenue": "500", "avgCost": "250",
	}
	got := map[string]string{
		"totalExpenses": latest.TotalExpenses.String(),
		"totalCost":     latest.TotalCost.String(),
		"profit":        latest.Profit.String(),
		"avgRevenue":    latest.AvgRevenue.String(),
		"avgCost":       latest.AvgCost.String(),
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %s, want %s", k, got[k], v)
		}
	}
}

func TestSaveRecordFormUpdateKeepsID(t *testing.T) {
	env := newTestServer(t, Config{})

	rr := env.do(htmxForm("/records", url.Values{
		"month": {"2023-12"}, "revenue": {"5"}, "laborCost": {"0"}, "headcount": {"1"},
	}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	rec, ok := env.records.GetRecordByMonth(context.Background(), "2023-12")
	if !ok || rec.ID != "5" || rec.Revenue.String() != "5" {
		t.Fatalf("record = %+v", rec)
	}
	if n := len(env.records.Reports(context.Background())); n != 6 {
		t.Fatalf("reports = %d, want 6", n)
	}
}

func TestSaveRecordFormValidation(t *testing.T) {
	env := newTestServer(t, Config{})
	before := env.records.Version()

	rr := env.do(htmxForm("/records", url.Values{
		"month": {"2024-3"}, "revenue": {"-1"}, "headcount": {"0"},
	}))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, field := range []string{"month", "revenue", "headcount"} {
		if !strings.Contains(body, field) {
			t.Errorf("body missing field %q: %s", field, body)
		}
	}
	if env.records.Version() != before {
		t.Fatal("invalid form reached the store")
	}
}

func TestSaveRecordFormWithoutHTMXRedirects(t *testing.T) {
	env := newTestServer(t, Config{})
	req := htmxForm("/records", url.Values{"month": {"2024-02"}, "headcount": {"1"}})
	req.Header.Del("HX-Request")

	rr := env.do(req)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestDeleteRecord(t *testing.T) {
	env := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodDelete, "/records/1", nil)
	req.Header.Set("HX-Request", "true")
	rr := env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"record:deleted":{"id":"1"}`) {
		t.Fatalf("HX-Trigger = %s", rr.Header().Get("HX-Trigger"))
	}
	if _, ok := env.records.GetRecordByMonth(context.Background(), "2023-08"); ok {
		t.Fatal("record still present")
	}

	// Unknown id is a no-op, not an error.
	version := env.records.Version()
	req = httptest.NewRequest(http.MethodPost, "/records/missing", nil)
	rr = env.do(req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status=%d", rr.Code)
	}
	if env.records.Version() != version {
		t.Fatal("unknown id changed the store")
	}
}

func TestAPIReportsSorted(t *testing.T) {
	env := newTestServer(t, Config{})
	env.records.SaveRecord(context.Background(), core.MonthlyRecord{Month: "2023-01", Headcount: 0})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var reports []core.MonthlyReport
	if err := json.Unmarshal(rr.Body.Bytes(), &reports); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(reports) != 7 || reports[0].Month != "2023-01" || reports[6].Month != "2024-01" {
		t.Fatalf("months = %v", monthsOf(reports))
	}
	if !reports[0].AvgRevenue.IsZero() || !reports[0].AvgCost.IsZero() {
		t.Fatalf("zero headcount averages = %s/%s", reports[0].AvgRevenue, reports[0].AvgCost)
	}
}

func monthsOf(reports []core.MonthlyReport) []string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.Month
	}
	return out
}

func TestAPIRecordByMonth(t *testing.T) {
	env := newTestServer(t, Config{})

	tests := []struct {
		query      string
		wantStatus int
	}{
		{"?month=2023-09", http.StatusOK},
		{"?month=2030-01", http.StatusNotFound},
		{"?month=2023-9", http.StatusBadRequest},
		{"", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/api/records"+tt.query, nil))
		if rr.Code != tt.wantStatus {
			t.Errorf("%q: status=%d, want %d", tt.query, rr.Code, tt.wantStatus)
		}
	}

	rr := env.do(httptest.NewRequest(http.MethodGet, "/api/records?month=2023-09", nil))
	var rec core.MonthlyRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ID != "2" || rec.Headcount != 11 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestAPISaveAndDelete(t *testing.T) {
	env := newTestServer(t, Config{})

	body := `{"month":"2024-02","revenue":"900","laborCost":"300","headcount":3,"expenses":[{"category":"marketing","amount":"60"}]}`
	rr := env.do(httptest.NewRequest(http.MethodPost, "/api/records", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", rr.Code, rr.Body.String())
	}
	var saved core.MonthlyRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if saved.ID == "" || saved.Month != "2024-02" {
		t.Fatalf("saved = %+v", saved)
	}

	rr = env.do(httptest.NewRequest(http.MethodPost, "/api/records", strings.NewReader(`{"month":"2024-02","headcount":0}`)))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid save status=%d", rr.Code)
	}
	var apiErr apiError
	if err := json.Unmarshal(rr.Body.Bytes(), &apiErr); err != nil || apiErr.Fields["headcount"] == "" {
		t.Fatalf("error body = %s", rr.Body.String())
	}

	rr = env.do(httptest.NewRequest(http.MethodPost, "/api/records", strings.NewReader(`not json`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed status=%d", rr.Code)
	}

	for _, want := range []bool{true, false} {
		rr = env.do(httptest.NewRequest(http.MethodDelete, "/api/records/"+saved.ID, nil))
		var res deleteResult
		if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode delete: %v", err)
		}
		if rr.Code != http.StatusOK || res.Deleted != want {
			t.Fatalf("delete status=%d deleted=%v, want %v", rr.Code, res.Deleted, want)
		}
	}
}

func TestAPIRejectsTinyNegativeAmounts(t *testing.T) {
	env := newTestServer(t, Config{})

	body := `{"month":"2024-05","revenue":"-1e-400","laborCost":"0","headcount":1,"expenses":[{"category":"operating","amount":"-1e-400"}]}`
	rr := env.do(httptest.NewRequest(http.MethodPost, "/api/records", strings.NewReader(body)))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var apiErr apiError
	if err := json.Unmarshal(rr.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{"revenue", "expenses[0].amount"} {
		if apiErr.Fields[field] != core.ErrNegativeAmount.Error() {
			t.Fatalf("fields[%q] = %q (all: %v)", field, apiErr.Fields[field], apiErr.Fields)
		}
	}
	if _, ok := env.records.GetRecordByMonth(context.Background(), "2024-05"); ok {
		t.Fatal("negative record reached the store")
	}
}

func TestAPICharts(t *testing.T) {
	env := newTestServer(t, Config{})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/api/charts", nil))
	var cd chartData
	if err := json.Unmarshal(rr.Body.Bytes(), &cd); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cd.Currency != "USD" || len(cd.Labels) != 6 || len(cd.Profit) != 6 {
		t.Fatalf("chart data = %+v", cd)
	}
	if cd.Labels[5] != "2024-01" || cd.Profit[5] != 625000 || cd.TotalCost[5] != 775000 {
		t.Fatalf("latest point = %s %v %v", cd.Labels[5], cd.Profit[5], cd.TotalCost[5])
	}
	if len(cd.Categories) != 3 || cd.Categories[1].Amount != 340000 || cd.Categories[2].Amount != 310000 {
		t.Fatalf("categories = %+v", cd.Categories)
	}
}

func TestXLSXDownloadCachedByVersion(t *testing.T) {
	env := newTestServer(t, Config{})

	get := func() *httptest.ResponseRecorder {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/reports.xlsx", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != export.ContentTypeXLSX {
			t.Fatalf("Content-Type = %q", ct)
		}
		return rr
	}

	rr := get()
	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	rows, err := f.GetRows(export.SheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("rows = %d, want header + 6", len(rows))
	}

	get()
	if st := env.srv.xlsxCache.Stats(); st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("cache stats after repeat = %+v", st)
	}

	env.records.SaveRecord(context.Background(), core.MonthlyRecord{Month: "2024-02", Headcount: 1})
	get()
	if st := env.srv.xlsxCache.Stats(); st.Misses != 2 {
		t.Fatalf("cache not invalidated by store change: %+v", st)
	}
}

func TestOpsEndpoints(t *testing.T) {
	env := newTestServer(t, Config{})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rr.Code, rr.Body.String())
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"in_memory"`) {
		t.Fatalf("readyz = %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	for _, want := range []string{"finboard_http_requests_total", "finboard_ledger_records 6", "finboard_xlsx_cache_hits_total"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestReadyzReportsBackendFailure(t *testing.T) {
	env := newTestServer(t, Config{Ready: func(context.Context) error { return errors.New("db down") }})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "db down") {
		t.Fatalf("readyz = %d %s", rr.Code, rr.Body.String())
	}
}

func TestMiddlewareStack(t *testing.T) {
	env := newTestServer(t, Config{RateLimitPerMin: 1, BlockSuspicious: true})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing CSP")
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/.env", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("suspicious request status=%d", rr.Code)
	}

	first := env.do(httptest.NewRequest(http.MethodDelete, "/api/records/none", nil))
	second := env.do(httptest.NewRequest(http.MethodDelete, "/api/records/none", nil))
	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Errorf("rate limit statuses = %d, %d", first.Code, second.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	env := newTestServer(t, Config{})
	rr := env.do(httptest.NewRequest(http.MethodGet, "/static/js/charts.js", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Header().Get("Cache-Control"), "max-age=3600") {
		t.Fatalf("static = %d %q", rr.Code, rr.Header().Get("Cache-Control"))
	}
}

func TestNewServerRejectsBadTrustedProxy(t *testing.T) {
	logger := log.New(log.Config{Output: &bytes.Buffer{}})
	records := services.NewRecordService(ledger.New(nil), nil, nil, logger)
	if _, err := NewServer(Config{TrustedProxies: []string{"10.0.0.1"}}, records, logger); err == nil {
		t.Fatal("expected error for a proxy without a mask")
	}
}
