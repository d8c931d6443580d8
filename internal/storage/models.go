package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is one archived rate row as observed by the watcher.
type Snapshot struct {
	SourceName   string
	FromCurrency string
	ToCurrency   string
	BuyRate      decimal.Decimal
	SellRate     decimal.Decimal
	FetchedAt    time.Time
	ObservedAt   time.Time
	CreatedAt    time.Time
}

// Key identifies the series a snapshot belongs to.
func (s Snapshot) Key() string {
	return s.SourceName + ":" + s.FromCurrency + "/" + s.ToCurrency
}

// AlertRecord captures an emitted rate-move alert for auditing.
type AlertRecord struct {
	ID           int64
	ObservedAt   time.Time
	SourceName   string
	Pair         string
	PreviousBuy  decimal.Decimal
	CurrentBuy   decimal.Decimal
	ChangePct    decimal.Decimal
	ThresholdPct decimal.Decimal
	Direction    string
	Channels     []string
	CreatedAt    time.Time
}
