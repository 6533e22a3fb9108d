package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/invoicepipe/invoicepipe/internal/config"
	"github.com/invoicepipe/invoicepipe/internal/store"
)

type fakeReports struct {
	customers []store.CustomerSales
	periods   []store.PeriodSales
	err       error

	gotLimit  int
	gotPeriod string
	gotStart  time.Time
	gotEnd    time.Time
}

func (f *fakeReports) TopCustomers(ctx context.Context, limit int) ([]store.CustomerSales, error) {
	f.gotLimit = limit
	return f.customers, f.err
}

func (f *fakeReports) SalesByPeriod(ctx context.Context, period string, start, end time.Time) ([]store.PeriodSales, error) {
	f.gotPeriod = period
	f.gotStart = start
	f.gotEnd = end
	return f.periods, f.err
}

func (f *fakeReports) Ping(ctx context.Context) error {
	return f.err
}

func newTestServer(reports Reports) *Server {
	cfg := &config.ServerConfig{
		Port:           8080,
		RequestTimeout: time.Minute,
	}
	return NewServer(reports, cfg)
}

func doGet(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleTopCustomers(t *testing.T) {
	reports := &fakeReports{
		customers: []store.CustomerSales{
			{Customer: "Acme Corp", Sales: 1200.50},
			{Customer: "Globex", Sales: 800},
		},
	}
	s := newTestServer(reports)

	rec := doGet(t, s, "/api/sales/customers?top=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if reports.gotLimit != 2 {
		t.Errorf("limit = %d, want 2", reports.gotLimit)
	}

	var body []store.CustomerSales
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 2 || body[0].Customer != "Acme Corp" {
		t.Errorf("body = %+v", body)
	}
}

func TestHandleTopCustomers_DefaultAndCap(t *testing.T) {
	reports := &fakeReports{}
	s := newTestServer(reports)

	doGet(t, s, "/api/sales/customers")
	if reports.gotLimit != defaultTopN {
		t.Errorf("default limit = %d, want %d", reports.gotLimit, defaultTopN)
	}

	doGet(t, s, "/api/sales/customers?top=100000")
	if reports.gotLimit != maxTopN {
		t.Errorf("capped limit = %d, want %d", reports.gotLimit, maxTopN)
	}

	doGet(t, s, "/api/sales/customers?top=nonsense")
	if reports.gotLimit != defaultTopN {
		t.Errorf("limit for bad input = %d, want %d", reports.gotLimit, defaultTopN)
	}
}

func TestHandleTopCustomers_EmptyIsArray(t *testing.T) {
	s := newTestServer(&fakeReports{})

	rec := doGet(t, s, "/api/sales/customers")
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestHandleSalesByPeriod(t *testing.T) {
	reports := &fakeReports{
		periods: []store.PeriodSales{{Period: "2024-01", Sales: 42}},
	}
	s := newTestServer(reports)

	rec := doGet(t, s, "/api/sales/time?period=weekly&start=2024-01-01&end=2024-03-31")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if reports.gotPeriod != "weekly" {
		t.Errorf("period = %q, want weekly", reports.gotPeriod)
	}
	if reports.gotStart.Format("2006-01-02") != "2024-01-01" {
		t.Errorf("start = %v", reports.gotStart)
	}
}

func TestHandleSalesByPeriod_Validation(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"bad period", "/api/sales/time?period=daily&start=2024-01-01&end=2024-02-01"},
		{"missing start", "/api/sales/time?end=2024-02-01"},
		{"malformed start", "/api/sales/time?start=January&end=2024-02-01"},
		{"missing end", "/api/sales/time?start=2024-01-01"},
		{"end before start", "/api/sales/time?start=2024-02-01&end=2024-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(t, newTestServer(&fakeReports{}), tt.url)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleSalesByPeriod_DefaultsToMonthly(t *testing.T) {
	reports := &fakeReports{}
	s := newTestServer(reports)

	doGet(t, s, "/api/sales/time?start=2024-01-01&end=2024-02-01")
	if reports.gotPeriod != "monthly" {
		t.Errorf("period = %q, want monthly", reports.gotPeriod)
	}
}

func TestQueryFailureDoesNotLeakInternals(t *testing.T) {
	reports := &fakeReports{err: errors.New("pq: connection reset at 10.0.0.3:5432")}
	s := newTestServer(reports)

	rec := doGet(t, s, "/api/sales/customers")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.3") {
		t.Errorf("body leaked internal error: %s", rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	rec := doGet(t, newTestServer(&fakeReports{}), "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	rec = doGet(t, newTestServer(&fakeReports{err: errors.New("down")}), "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
