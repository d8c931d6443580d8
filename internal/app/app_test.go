package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchange-rates-client/internal/api"
	"exchange-rates-client/internal/auth"
	"exchange-rates-client/internal/config"
	"exchange-rates-client/internal/session"
)

type recorder struct {
	mu   sync.Mutex
	hits []string
}

func (r *recorder) record(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := req.Method + " " + req.URL.Path
	if req.URL.RawQuery != "" {
		entry += "?" + req.URL.RawQuery
	}
	r.hits = append(r.hits, entry)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.hits...)
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		API: config.APIConfig{
			BaseURL:        baseURL + "/api",
			RequestTimeout: 2 * time.Second,
			CSRFHeader:     "X-CSRF-TOKEN",
		},
		Rates:   config.RatesConfig{PageSize: 20},
		History: config.HistoryConfig{DefaultPeriod: "week", From: "USD", To: "UAH"},
		Watch:   config.WatchConfig{Interval: time.Minute, ThresholdPct: 0.5},
	}
}

func newTestApp(t *testing.T, handler http.HandlerFunc) (*App, *bytes.Buffer, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	sess, err := session.NewManager(context.Background(), session.NewMemoryTokenStore(), zerolog.Nop())
	require.NoError(t, err)

	out := &bytes.Buffer{}
	a := &App{
		Config: testConfig(srv.URL),
		Logger: zerolog.Nop(),
		Out:    out,
		Err:    io.Discard,
	}
	a.wire(sess, http.DefaultTransport, zerolog.Nop())
	return a, out, rec
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func ratesPage(r *http.Request, total int) map[string]any {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	return map[string]any{
		"data": []map[string]any{{
			"id": page, "sourceName": "NBU", "fromCurrencyCode": "USD", "toCurrencyCode": "UAH",
			"buyRate": 41.1, "sellRate": 41.6, "fetchedAt": "2025-03-01T10:00:00",
		}},
		"page": page, "pageSize": size, "totalCount": total,
	}
}

func TestListRatesClampsPage(t *testing.T) {
	a, out, rec := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ratesPage(r, 25))
	})

	err := a.ListRates(context.Background(), RatesOptions{Page: 9, PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"GET /api/ExchangeRates/latest?page=1&pageSize=10",
		"GET /api/ExchangeRates/latest?page=3&pageSize=10",
	}, rec.all())
	assert.Contains(t, out.String(), "page 3 of 3 (25 rates)")
	assert.Contains(t, out.String(), "USD/UAH")
}

func TestListRatesUsesFilterEndpoint(t *testing.T) {
	a, out, rec := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ratesPage(r, 1))
	})

	err := a.ListRates(context.Background(), RatesOptions{Page: 1, From: " usd "})
	require.NoError(t, err)

	hits := rec.all()
	require.Len(t, hits, 1)
	assert.Equal(t, "GET /api/ExchangeRates/filter?from=USD&page=1&pageSize=20", hits[0])
	assert.Contains(t, out.String(), "filtered by from=USD")
}

func historyHandler(buys ...float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := make([]map[string]any, 0, len(buys))
		start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		for i, b := range buys {
			data = append(data, map[string]any{
				"date":   start.Add(time.Duration(i) * 24 * time.Hour).Format("2006-01-02T15:04:05"),
				"source": "NBU",
				"buy":    b,
				"sell":   b + 0.5,
			})
		}
		writeJSON(w, map[string]any{"period": "week", "count": len(data), "data": data})
	}
}

func TestHistoryFlatWindowSkipsChart(t *testing.T) {
	a, out, rec := newTestApp(t, historyHandler(10, 10, 10))
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "history.csv")
	pngPath := filepath.Join(dir, "out", "history.png")

	err := a.History(context.Background(), HistoryOptions{CSVPath: csvPath, PNGPath: pngPath})
	require.NoError(t, err)

	assert.Equal(t, []string{"GET /api/History/week?from=USD&to=UAH"}, rec.all())
	assert.Contains(t, out.String(), "(stable)")
	assert.Contains(t, out.String(), "chart skipped")

	content, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "date,source,buy,sell,change,trend")

	_, err = os.Stat(pngPath)
	assert.True(t, os.IsNotExist(err), "no chart file for a flat window")
}

func TestHistoryRendersChart(t *testing.T) {
	a, out, _ := newTestApp(t, historyHandler(10, 10.05, 9.9))
	pngPath := filepath.Join(t.TempDir(), "history.png")

	err := a.History(context.Background(), HistoryOptions{Period: "month", From: "eur", To: "uah", PNGPath: pngPath})
	require.NoError(t, err)

	content, err := os.ReadFile(pngPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), content[:4])
	assert.Contains(t, out.String(), "up")
	assert.Contains(t, out.String(), "down")
}

func TestHistoryRejectsUnknownPeriod(t *testing.T) {
	a, _, rec := newTestApp(t, historyHandler())
	err := a.History(context.Background(), HistoryOptions{Period: "year"})
	require.Error(t, err)
	assert.Empty(t, rec.all())
}

func TestAdminCommandsRequireAdmin(t *testing.T) {
	a, _, rec := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/me" {
			writeJSON(w, map[string]any{"user": map[string]any{"username": "ann", "role": "User"}})
			return
		}
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})
	require.NoError(t, a.Session.SetToken(context.Background(), "opaque"))

	err := a.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrNotAdmin)
	assert.Equal(t, []string{"GET /api/auth/me"}, rec.all())
}

func TestFetchOneSourceAsAdmin(t *testing.T) {
	a, out, rec := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/me":
			writeJSON(w, map[string]any{"user": map[string]any{"username": "root", "role": "Admin"}})
		case "/api/auth/csrf-token":
			writeJSON(w, map[string]any{"csrfToken": "csrf-1"})
		case "/api/ExchangeRates/fetch/Privat Bank":
			assert.Equal(t, "csrf-1", r.Header.Get("X-CSRF-TOKEN"))
			writeJSON(w, map[string]any{"count": 12})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	require.NoError(t, a.Session.SetToken(context.Background(), "opaque"))

	require.NoError(t, a.Fetch(context.Background(), "Privat Bank"))
	assert.Equal(t, "fetched 12 rates from \"Privat Bank\"\n", out.String())
	assert.Len(t, rec.all(), 3)
}

func TestWhoAmIWithoutSession(t *testing.T) {
	a, out, rec := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})

	require.NoError(t, a.WhoAmI(context.Background()))
	assert.Equal(t, "not logged in\n", out.String())
	assert.Empty(t, rec.all())
}

func TestLoginThenWhoAmI(t *testing.T) {
	a, out, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/csrf-token":
			writeJSON(w, map[string]any{"csrfToken": "csrf-1"})
		case "/api/auth/login":
			writeJSON(w, map[string]any{"token": "opaque", "username": "ann", "email": "ann@example.com", "role": "Admin"})
		case "/api/auth/me":
			assert.Equal(t, "Bearer opaque", r.Header.Get("Authorization"))
			writeJSON(w, map[string]any{"user": map[string]any{"username": "ann", "email": "ann@example.com", "role": "Admin"}})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, LoginOptions{Username: "ann", Password: "secret"}))
	require.NoError(t, a.WhoAmI(ctx))

	assert.Contains(t, out.String(), "logged in as ann (Admin)")
	assert.Contains(t, out.String(), "ann@example.com")
}

func TestExpiredSessionPrintsNotice(t *testing.T) {
	a, _, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	var errOut bytes.Buffer
	a.Err = &errOut
	require.NoError(t, a.Session.SetToken(context.Background(), "stale"))

	err := a.ListRates(context.Background(), RatesOptions{Page: 1})
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Contains(t, errOut.String(), "session expired")
	_, ok := a.Session.Token()
	assert.False(t, ok)
}

func TestConvertRejectsInvalidAmountLocally(t *testing.T) {
	a, _, rec := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})

	for _, amount := range []string{"abc", "0", "-5"} {
		err := a.Convert(context.Background(), ConvertOptions{Amount: amount, From: "USD", To: "UAH"})
		assert.ErrorIs(t, err, api.ErrInvalidAmount, amount)
	}
	assert.Empty(t, rec.all())
}

func TestConvertPrintsResult(t *testing.T) {
	a, out, rec := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"convertedAmount": 4110.5, "exchangeRate": 41.105, "sourceName": "NBU",
			"fromCurrencyCode": "USD", "toCurrencyCode": "UAH", "rateDate": "2025-03-01T10:00:00",
		})
	})

	require.NoError(t, a.Convert(context.Background(), ConvertOptions{Amount: "100", From: "usd", To: "uah"}))
	assert.Equal(t, []string{"GET /api/Conversion?amount=100&from=USD&to=UAH"}, rec.all())
	assert.Contains(t, out.String(), "100 USD = 4110.50 UAH")
}

func mustDecimal(t *testing.T, v string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return d
}

func TestSimulateAlertThroughLogChannel(t *testing.T) {
	a, out, rec := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})

	opts := SimulateOptions{Source: "NBU", Pair: "usd/uah"}
	opts.Previous, opts.Current = mustDecimal(t, "40"), mustDecimal(t, "41")

	err := a.SimulateAlert(context.Background(), opts)
	require.Error(t, err, "alerting disabled")

	a.Config.Alerting.Enabled = true
	a.Config.Alerting.Channels = []string{"log"}
	require.NoError(t, a.SimulateAlert(context.Background(), opts))
	assert.Equal(t, "alert sent to log\n", out.String())

	out.Reset()
	opts.Current = mustDecimal(t, "40.01")
	require.NoError(t, a.SimulateAlert(context.Background(), opts))
	assert.Contains(t, out.String(), "no alert sent")
	assert.Empty(t, rec.all())
}

func TestShowArchiveNeedsDatabase(t *testing.T) {
	a, _, _ := newTestApp(t, func(http.ResponseWriter, *http.Request) {})
	err := a.ShowArchive(context.Background(), ArchiveOptions{Limit: 5})
	assert.EqualError(t, err, "database not configured; cannot show archive")
}

func TestWatchArchiveNeedsDatabase(t *testing.T) {
	a, _, _ := newTestApp(t, func(http.ResponseWriter, *http.Request) {})
	err := a.Watch(context.Background(), WatchOptions{Archive: true, Once: true})
	assert.EqualError(t, err, "database.dsn not configured; cannot archive")
}

func TestLatestNeedsCache(t *testing.T) {
	a, _, _ := newTestApp(t, func(http.ResponseWriter, *http.Request) {})
	err := a.Latest(context.Background(), "NBU", "USD/UAH")
	assert.EqualError(t, err, "cache.addr not configured; cannot read cached rates")
}

func TestWatchOnce(t *testing.T) {
	a, out, rec := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ratesPage(r, 1))
	})

	require.NoError(t, a.Watch(context.Background(), WatchOptions{Once: true}))
	assert.Equal(t, []string{"GET /api/ExchangeRates/latest?page=1&pageSize=20"}, rec.all())
	assert.Contains(t, out.String(), "rows=1 archived=0 cached=0 alerts=0")
}

func TestTestSourcePrettyPrints(t *testing.T) {
	a, out, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/me":
			writeJSON(w, map[string]any{"user": map[string]any{"username": "root", "role": "admin"}})
		case "/api/auth/csrf-token":
			writeJSON(w, map[string]any{"csrfToken": "csrf-1"})
		case "/api/ApiSources/test":
			var src api.Source
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&src))
			assert.Equal(t, "JSON", src.Format)
			assert.Equal(t, 60, src.UpdateIntervalMinutes)
			fmt.Fprint(w, `{"ok":true,"rates":2}`)
		}
	})
	require.NoError(t, a.Session.SetToken(context.Background(), "opaque"))

	require.NoError(t, a.TestSource(context.Background(), SourceOptions{Name: "Mono", URL: "https://example.com/rates"}))
	assert.Equal(t, "{\n  \"ok\": true,\n  \"rates\": 2\n}\n", out.String())
}
