package trend

import (
	"encoding/csv"
	"io"
	"time"
)

// WriteCSV writes one row per point with its annotation.
func WriteCSV(w io.Writer, series Series) error {
	writer := csv.NewWriter(w)

	header := []string{"date", "source", "buy", "sell", "change", "trend"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range series.Points {
		change := ""
		if p.Change != nil {
			change = p.Change.String()
		}
		record := []string{
			p.Date.Format(time.RFC3339),
			p.Source,
			p.Buy.String(),
			p.Sell.String(),
			change,
			string(p.Direction),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
