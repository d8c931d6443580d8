package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"exchange-rates-client/internal/pipeline"
	"exchange-rates-client/internal/session"
	"exchange-rates-client/internal/transport"
)

// newStack wires the client the way the CLI does: session credentials on
// the main transport and a bearer-only transport for the CSRF request.
func newStack(t *testing.T, baseURL string) (*Client, *session.Manager) {
	t.Helper()
	ctx := context.Background()
	sess, err := session.NewManager(ctx, session.NewMemoryTokenStore(), zerolog.Nop())
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	inner := http.DefaultTransport
	csrfClient := &http.Client{Transport: transport.Wrap(inner, pipeline.Bearer(sess)), Timeout: time.Second}
	mainClient := &http.Client{
		Transport: pipeline.New(inner, sess, pipeline.Options{Retry: pipeline.DefaultRetryPolicy(), Logger: zerolog.Nop()}),
		Timeout:   time.Second,
	}

	client := NewClient(baseURL+"/api", mainClient, csrfClient, zerolog.Nop())
	sess.SetCSRFSource(client)
	return client, sess
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestLatestRatesDecodes(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ExchangeRates/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		query = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"data":[{"id":7,"sourceName":"NBU","fromCurrencyCode":"USD","toCurrencyCode":"UAH",
			"buyRate":41.25,"sellRate":"41.80","fetchedAt":"2025-03-01T10:15:00"}],
			"page":2,"pageSize":20,"totalCount":21,"totalPages":2}`)
	}))
	defer srv.Close()

	client, _ := newStack(t, srv.URL)
	page, err := client.LatestRates(context.Background(), 2, 20)
	if err != nil {
		t.Fatalf("LatestRates: %v", err)
	}

	if query != "page=2&pageSize=20" {
		t.Fatalf("query = %q", query)
	}
	if len(page.Data) != 1 || page.TotalCount != 21 || page.TotalPages != 2 {
		t.Fatalf("unexpected envelope: %+v", page)
	}
	row := page.Data[0]
	if !row.BuyRate.Equal(decimal.RequireFromString("41.25")) || !row.SellRate.Equal(decimal.RequireFromString("41.8")) {
		t.Fatalf("rates not decoded: buy %s sell %s", row.BuyRate, row.SellRate)
	}
	if row.FetchedAt.Hour() != 10 || row.FetchedAt.Minute() != 15 {
		t.Fatalf("zone-less timestamp not parsed: %v", row.FetchedAt)
	}
	if row.Pair() != "USD/UAH" {
		t.Fatalf("pair = %s", row.Pair())
	}
}

func TestFilterRatesSendsOnlyPresentFilters(t *testing.T) {
	var path, query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, query = r.URL.Path, r.URL.RawQuery
		writeJSON(w, RatePage{Page: 1, PageSize: 10})
	}))
	defer srv.Close()

	client, _ := newStack(t, srv.URL)
	if _, err := client.FilterRates(context.Background(), RateQuery{Page: 1, PageSize: 10, From: "EUR"}); err != nil {
		t.Fatalf("FilterRates: %v", err)
	}

	if path != "/api/ExchangeRates/filter" {
		t.Fatalf("path = %s", path)
	}
	if query != "from=EUR&page=1&pageSize=10" {
		t.Fatalf("query = %q", query)
	}
}

func TestLoginObtainsCSRFFirst(t *testing.T) {
	var order []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/auth/csrf-token":
			writeJSON(w, map[string]string{"csrfToken": "tok-1"})
		case "/api/auth/login":
			if r.Header.Get("X-CSRF-TOKEN") != "tok-1" {
				t.Errorf("csrf header = %q", r.Header.Get("X-CSRF-TOKEN"))
			}
			var creds Credentials
			_ = json.NewDecoder(r.Body).Decode(&creds)
			if creds.Username != "admin" || creds.Password != "secret" {
				t.Errorf("credentials = %+v", creds)
			}
			writeJSON(w, AuthResponse{Token: "jwt", Username: "admin", Email: "a@example.com", Role: RoleAdmin})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, _ := newStack(t, srv.URL)
	resp, err := client.Login(context.Background(), Credentials{Username: "admin", Password: "secret"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Token != "jwt" || resp.User().Role != RoleAdmin {
		t.Fatalf("unexpected response %+v", resp)
	}
	if strings.Join(order, ",") != "GET /api/auth/csrf-token,POST /api/auth/login" {
		t.Fatalf("request order = %v", order)
	}
}

func TestCSRFRejectionSurfacesAfterRetry(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/csrf-token":
			writeJSON(w, map[string]string{"csrfToken": "tok"})
		default:
			fetches.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, "The required antiforgery request token was not provided")
		}
	}))
	defer srv.Close()

	client, _ := newStack(t, srv.URL)
	_, err := client.FetchAll(context.Background())
	if !errors.Is(err, ErrCSRFRejected) {
		t.Fatalf("expected ErrCSRFRejected, got %v", err)
	}
	if fetches.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", fetches.Load())
	}
}

func TestConvertValidatesAmountLocally(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client, _ := newStack(t, srv.URL)
	for _, amount := range []string{"0", "-5"} {
		_, err := client.Convert(context.Background(), ConversionRequest{From: "USD", To: "UAH", Amount: decimal.RequireFromString(amount)})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if hits.Load() != 0 {
		t.Fatalf("no request should be sent, got %d", hits.Load())
	}
}

func TestConvertQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("amount") != "100.5" || q.Get("source") != "PrivatBank" || q.Has("type") {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"convertedAmount":4145.63,"exchangeRate":41.25,"sourceName":"PrivatBank",
			"fromCurrencyCode":"USD","toCurrencyCode":"UAH","rateDate":"2025-03-01T00:00:00Z"}`)
	}))
	defer srv.Close()

	client, _ := newStack(t, srv.URL)
	res, err := client.Convert(context.Background(), ConversionRequest{
		From: "USD", To: "UAH", Amount: decimal.RequireFromString("100.5"), Source: "PrivatBank",
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !res.ExchangeRate.Equal(decimal.RequireFromString("41.25")) {
		t.Fatalf("rate = %s", res.ExchangeRate)
	}
}

func TestHistoryPeriod(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = io.WriteString(w, `{"period":"week","count":2,"data":[
			{"date":"2025-03-01","source":"NBU","buy":41.1,"sell":41.5},
			{"date":"2025-03-02","source":"NBU","buy":41.2,"sell":41.6}]}`)
	}))
	defer srv.Close()

	client, _ := newStack(t, srv.URL)
	if _, err := client.History(context.Background(), HistoryQuery{Period: "year"}); err == nil {
		t.Fatal("unknown period must be rejected")
	}

	hist, err := client.History(context.Background(), HistoryQuery{Period: PeriodWeek, From: "USD", To: "UAH"})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if path != "/api/History/week" {
		t.Fatalf("path = %s", path)
	}
	if len(hist.Data) != 2 || hist.Data[1].Date.Day() != 2 {
		t.Fatalf("unexpected history %+v", hist)
	}
}

func TestSourceEndpoints(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/csrf-token" {
			writeJSON(w, map[string]string{"csrfToken": "tok"})
			return
		}
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPost && r.URL.Path == "/api/ApiSources" {
			var src Source
			_ = json.NewDecoder(r.Body).Decode(&src)
			src.ID = 3
			writeJSON(w, src)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, _ := newStack(t, srv.URL)
	ctx := context.Background()

	created, err := client.CreateSource(ctx, NewSource("NBU", "https://bank.gov.ua/rates"))
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	if created.ID != 3 || created.Format != "JSON" || created.UpdateIntervalMinutes != 60 || !created.IsActive {
		t.Fatalf("defaults lost: %+v", created)
	}
	if err := client.UpdateSource(ctx, 3, created); err != nil {
		t.Fatalf("UpdateSource: %v", err)
	}
	if err := client.ToggleSource(ctx, 3); err != nil {
		t.Fatalf("ToggleSource: %v", err)
	}
	if err := client.DeleteSource(ctx, 3); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}

	want := "POST /api/ApiSources,PUT /api/ApiSources/3,PATCH /api/ApiSources/3/toggle,DELETE /api/ApiSources/3"
	if got := strings.Join(calls, ","); got != want {
		t.Fatalf("calls = %s", got)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, _ := newStack(t, url)
	_, err := client.Currencies(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestParseHTTPError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
		kind    error
		message string
		fields  int
	}{
		{"validation problem", 400, `{"title":"One or more validation errors occurred.","errors":{"Url":["The Url field is required."]}}`, ErrValidation, "One or more validation errors occurred.", 1},
		{"plain message", 400, `{"message":"Username already exists"}`, ErrValidation, "Username already exists", 0},
		{"csrf", 400, `antiforgery token invalid`, ErrCSRFRejected, "antiforgery token invalid", 0},
		{"unauthorized", 401, ``, ErrUnauthorized, "", 0},
		{"forbidden", 403, `{"message":"Admins only"}`, ErrForbidden, "Admins only", 0},
		{"not found", 404, `"Source not found"`, ErrNotFound, "Source not found", 0},
		{"server", 500, `boom`, ErrUnexpectedStatus, "boom", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseHTTPError(http.MethodPost, "/ApiSources", tt.status, []byte(tt.payload))
			if !errors.Is(err, tt.kind) {
				t.Fatalf("kind = %v, want %v", err.Unwrap(), tt.kind)
			}
			if err.Message != tt.message {
				t.Fatalf("message = %q, want %q", err.Message, tt.message)
			}
			if len(err.Fields) != tt.fields {
				t.Fatalf("fields = %v", err.Fields)
			}
			var apiErr *APIError
			if !errors.As(error(err), &apiErr) || apiErr.Status != tt.status {
				t.Fatalf("errors.As failed for %v", err)
			}
		})
	}
}
