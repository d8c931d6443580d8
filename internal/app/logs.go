package app

import (
	"context"
	"fmt"
	"strings"
)

// Logs prints the newest server log records.
func (a *App) Logs(ctx context.Context, count int, level string) error {
	if err := a.requireAdmin(ctx); err != nil {
		return err
	}

	entries, err := a.API.Logs(ctx, count, level)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.Out, "no log records found")
		return nil
	}

	writer := newTable(a.Out)
	fmt.Fprintln(writer, "Time (UTC)\tLevel\tSource\tMessage")
	for _, e := range entries {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			formatTime(e.Timestamp.Time),
			strings.ToUpper(e.Level),
			e.Source,
			sanitizeInline(e.Message),
		)
	}
	return writer.Flush()
}
