package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func sampleNote() Notification {
	return Notification{
		ObservedAt:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		SourceName:   "PrivatBank",
		Pair:         "USD/UAH",
		PreviousBuy:  decimal.RequireFromString("41.00"),
		CurrentBuy:   decimal.RequireFromString("41.50"),
		ChangePct:    decimal.RequireFromString("1.2195"),
		ThresholdPct: decimal.RequireFromString("0.5"),
		Direction:    "up",
		Channels:     []string{"telegram"},
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNote()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id = %#v", received)
	}
	text := received["text"]
	for _, want := range []string{"PrivatBank", "USD/UAH", "41.0000 -> 41.5000", "1.220%"} {
		if !strings.Contains(text, want) {
			t.Fatalf("message %q lacks %q", text, want)
		}
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Notify(context.Background(), sampleNote())
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected ok=false error, got %v", err)
	}
}

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) Notify(context.Context, Notification) error {
	r.calls++
	return r.err
}

func TestRouter(t *testing.T) {
	boom := errors.New("boom")
	tg := &recordingNotifier{err: boom}
	logn := &recordingNotifier{}
	router := NewRouter(map[string]Notifier{"telegram": tg, "log": logn})

	note := sampleNote()
	note.Channels = []string{"telegram", "log", "sms"}
	err := router.Notify(context.Background(), note)

	if !errors.Is(err, boom) {
		t.Fatalf("telegram failure must surface, got %v", err)
	}
	if !strings.Contains(err.Error(), `unknown alert channel "sms"`) {
		t.Fatalf("unknown channel must surface, got %v", err)
	}
	if tg.calls != 1 || logn.calls != 1 {
		t.Fatalf("calls telegram=%d log=%d", tg.calls, logn.calls)
	}
}

func TestLogNotifier(t *testing.T) {
	if err := NewLogNotifier(testLogger()).Notify(context.Background(), sampleNote()); err != nil {
		t.Fatalf("log notifier never fails: %v", err)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
