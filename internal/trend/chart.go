package trend

import (
	"errors"
	"io"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
)

var (
	// ErrFlatSeries is returned for windows whose spread is too small to chart.
	ErrFlatSeries = errors.New("trend: rate is stable over the window")
	// ErrEmptySeries is returned when there is nothing to chart.
	ErrEmptySeries = errors.New("trend: no samples")
)

// RenderPNG draws the buy and sell lines of the series.
func RenderPNG(w io.Writer, series Series, title string) error {
	if len(series.Points) == 0 {
		return ErrEmptySeries
	}
	if series.Flat {
		return ErrFlatSeries
	}

	x := make([]time.Time, len(series.Points))
	buy := make([]float64, len(series.Points))
	sell := make([]float64, len(series.Points))
	for i, p := range series.Points {
		x[i] = p.Date.Time
		buy[i] = p.Buy.InexactFloat64()
		sell[i] = p.Sell.InexactFloat64()
	}

	// go-chart refuses a zero-width x range
	if !x[len(x)-1].After(x[0]) {
		x = append(x, x[len(x)-1].Add(time.Hour))
		buy = append(buy, buy[len(buy)-1])
		sell = append(sell, sell[len(sell)-1])
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	graph := chart.Chart{
		Title:  title,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Rate",
			ValueFormatter: rateFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Buy",
				XValues: x,
				YValues: buy,
			},
			chart.TimeSeries{
				Name:    "Sell",
				XValues: x,
				YValues: sell,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}
