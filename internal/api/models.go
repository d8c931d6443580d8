package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Roles the server assigns.
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

// Timestamp accepts the date formats the server emits, with or without a zone.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// UserInfo identifies the authenticated user.
type UserInfo struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Credentials is the login payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the sign-up payload.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and registration.
type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// User returns the identity part of the response.
func (r AuthResponse) User() UserInfo {
	return UserInfo{Username: r.Username, Email: r.Email, Role: r.Role}
}

type meResponse struct {
	User UserInfo `json:"user"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// Source defaults applied by NewSource.
const (
	DefaultSourceFormat          = "JSON"
	DefaultSourceIntervalMinutes = 60
)

// Source is a configured bank or API the server collects rates from.
type Source struct {
	ID                    int        `json:"id,omitempty"`
	Name                  string     `json:"name"`
	URL                   string     `json:"url"`
	Format                string     `json:"format"`
	UpdateIntervalMinutes int        `json:"updateIntervalMinutes"`
	IsActive              bool       `json:"isActive"`
	LastUpdateAt          *Timestamp `json:"lastUpdateAt,omitempty"`
}

// NewSource returns a source definition with the server's defaults.
func NewSource(name, url string) Source {
	return Source{
		Name:                  name,
		URL:                   url,
		Format:                DefaultSourceFormat,
		UpdateIntervalMinutes: DefaultSourceIntervalMinutes,
		IsActive:              true,
	}
}

// Currency is a reference currency.
type Currency struct {
	ID     int    `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Rate is one row of the rates table.
type Rate struct {
	ID                 int             `json:"id"`
	SourceName         string          `json:"sourceName"`
	FromCurrencyCode   string          `json:"fromCurrencyCode"`
	FromCurrencyName   string          `json:"fromCurrencyName,omitempty"`
	FromCurrencySymbol string          `json:"fromCurrencySymbol,omitempty"`
	ToCurrencyCode     string          `json:"toCurrencyCode"`
	ToCurrencyName     string          `json:"toCurrencyName,omitempty"`
	ToCurrencySymbol   string          `json:"toCurrencySymbol,omitempty"`
	BuyRate            decimal.Decimal `json:"buyRate"`
	SellRate           decimal.Decimal `json:"sellRate"`
	FetchedAt          Timestamp       `json:"fetchedAt"`
}

// Pair returns the currency pair as FROM/TO.
func (r Rate) Pair() string {
	return r.FromCurrencyCode + "/" + r.ToCurrencyCode
}

// RatePage is one page of rates with its envelope.
type RatePage struct {
	Data       []Rate `json:"data"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalCount int    `json:"totalCount"`
	TotalPages int    `json:"totalPages"`
}

// RateQuery selects a page of rates. Empty filters are absent.
type RateQuery struct {
	Page     int
	PageSize int
	Bank     string
	From     string
	To       string
}

// HasFilters reports whether any filter is present.
func (q RateQuery) HasFilters() bool {
	return q.Bank != "" || q.From != "" || q.To != ""
}

// FetchResult reports how many rates a manual fetch stored.
type FetchResult struct {
	Count int `json:"count"`
}

// ConversionRequest is the input of a conversion.
type ConversionRequest struct {
	From   string
	To     string
	Amount decimal.Decimal
	// Type optionally selects buy or sell.
	Type   string
	Source string
}

// ConversionResult is the server's conversion answer.
type ConversionResult struct {
	ConvertedAmount  decimal.Decimal `json:"convertedAmount"`
	ExchangeRate     decimal.Decimal `json:"exchangeRate"`
	SourceName       string          `json:"sourceName"`
	FromCurrencyCode string          `json:"fromCurrencyCode"`
	ToCurrencyCode   string          `json:"toCurrencyCode"`
	RateDate         Timestamp       `json:"rateDate"`
}

// HistoryPeriod is one of the windows the history endpoint serves.
type HistoryPeriod string

const (
	PeriodToday HistoryPeriod = "today"
	PeriodWeek  HistoryPeriod = "week"
	PeriodMonth HistoryPeriod = "month"
)

// ParsePeriod validates a period name.
func ParsePeriod(s string) (HistoryPeriod, error) {
	switch p := HistoryPeriod(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodToday, PeriodWeek, PeriodMonth:
		return p, nil
	}
	return "", fmt.Errorf("unknown history period %q (want today, week or month)", s)
}

// HistoryQuery selects a history window.
type HistoryQuery struct {
	Period HistoryPeriod
	From   string
	To     string
	Source string
}

// HistorySample is one time-ordered observation.
type HistorySample struct {
	Date   Timestamp       `json:"date"`
	Source string          `json:"source"`
	Buy    decimal.Decimal `json:"buy"`
	Sell   decimal.Decimal `json:"sell"`
}

// History is the history endpoint response.
type History struct {
	Period string          `json:"period"`
	Count  int             `json:"count"`
	Data   []HistorySample `json:"data"`
}

// LogEntry is one server log record.
type LogEntry struct {
	ID        int       `json:"id"`
	Timestamp Timestamp `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
}
