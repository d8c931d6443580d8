package trend

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"exchange-rates-client/internal/api"
)

func samples(buys ...string) []api.HistorySample {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]api.HistorySample, len(buys))
	for i, b := range buys {
		buy := decimal.RequireFromString(b)
		out[i] = api.HistorySample{
			Date:   api.Timestamp{Time: start.AddDate(0, 0, i)},
			Source: "NBU",
			Buy:    buy,
			Sell:   buy.Add(decimal.RequireFromString("0.5")),
		}
	}
	return out
}

func TestComputeFlatSeries(t *testing.T) {
	series := Compute(samples("10", "10", "10"))

	if !series.Flat {
		t.Fatal("constant series must be flat")
	}
	if series.Points[0].Change != nil || series.Points[0].Direction != DirectionNone {
		t.Fatalf("first point has no annotation, got %+v", series.Points[0])
	}
	for i := 1; i < 3; i++ {
		if series.Points[i].Direction != DirectionStable {
			t.Fatalf("point %d direction = %q, want stable", i, series.Points[i].Direction)
		}
	}
}

func TestComputeMovingSeries(t *testing.T) {
	series := Compute(samples("10", "10.05", "9.90"))

	if series.Flat {
		t.Fatal("spread 0.15 is not flat")
	}
	want := []Direction{DirectionNone, DirectionUp, DirectionDown}
	for i, p := range series.Points {
		if p.Direction != want[i] {
			t.Fatalf("point %d direction = %q, want %q", i, p.Direction, want[i])
		}
	}
	if !series.Points[1].Change.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("change = %s", series.Points[1].Change)
	}
	if !series.Points[2].Change.Equal(decimal.RequireFromString("-0.15")) {
		t.Fatalf("change = %s", series.Points[2].Change)
	}
	if !series.MinBuy.Equal(decimal.RequireFromString("9.9")) || !series.MaxBuy.Equal(decimal.RequireFromString("10.05")) {
		t.Fatalf("min/max = %s/%s", series.MinBuy, series.MaxBuy)
	}
	if !series.Spread.Equal(decimal.RequireFromString("0.15")) {
		t.Fatalf("spread = %s", series.Spread)
	}
}

func TestComputeThresholdEdges(t *testing.T) {
	series := Compute(samples("10", "10.00009", "10.00019"))
	if series.Points[1].Direction != DirectionStable {
		t.Fatalf("change below 0.0001 is stable, got %q", series.Points[1].Direction)
	}
	if series.Points[2].Direction != DirectionUp {
		t.Fatalf("change of exactly 0.0001 is movement, got %q", series.Points[2].Direction)
	}
	if !series.Flat {
		t.Fatal("spread below 0.01 is flat")
	}

	edge := Compute(samples("10", "10.01"))
	if edge.Flat {
		t.Fatal("spread of exactly 0.01 is not flat")
	}
}

func TestComputePreservesOrderAndDuplicates(t *testing.T) {
	in := samples("10", "11", "11", "10")
	series := Compute(in)
	if len(series.Points) != len(in) {
		t.Fatalf("points = %d, want %d", len(series.Points), len(in))
	}
	for i := range in {
		if !series.Points[i].Date.Equal(in[i].Date.Time) {
			t.Fatalf("order changed at %d", i)
		}
	}
}

func TestComputeEmpty(t *testing.T) {
	series := Compute(nil)
	if series.Flat || len(series.Points) != 0 {
		t.Fatalf("empty window: %+v", series)
	}
	if err := RenderPNG(&bytes.Buffer{}, series, ""); !errors.Is(err, ErrEmptySeries) {
		t.Fatalf("expected ErrEmptySeries, got %v", err)
	}
}

func TestRenderPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPNG(&buf, Compute(samples("10", "10", "10")), "USD/UAH"); !errors.Is(err, ErrFlatSeries) {
		t.Fatalf("flat window must not render, got %v", err)
	}

	if err := RenderPNG(&buf, Compute(samples("10", "10.05", "9.90")), "USD/UAH"); err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Fatal("output is not a PNG")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, Compute(samples("10", "10.05"))); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d", len(records))
	}
	if records[1][4] != "" || records[2][4] != "0.05" || records[2][5] != "up" {
		t.Fatalf("unexpected rows %v", records)
	}
}
