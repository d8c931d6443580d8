package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"exchange-rates-client/internal/api"
)

// SourceOptions describe a source for the add, update and test commands.
// Zero values fall back to the server defaults.
type SourceOptions struct {
	Name                  string
	URL                   string
	Format                string
	UpdateIntervalMinutes int
	Inactive              bool
}

func (o SourceOptions) source() api.Source {
	src := api.NewSource(o.Name, o.URL)
	if o.Format != "" {
		src.Format = o.Format
	}
	if o.UpdateIntervalMinutes > 0 {
		src.UpdateIntervalMinutes = o.UpdateIntervalMinutes
	}
	src.IsActive = !o.Inactive
	return src
}

// Sources prints every configured source. activeOnly restricts the list to
// the sources the server currently polls.
func (a *App) Sources(ctx context.Context, activeOnly bool) error {
	var (
		sources []api.Source
		err     error
	)
	if activeOnly {
		sources, err = a.API.ActiveSources(ctx)
	} else {
		if err = a.requireAdmin(ctx); err != nil {
			return err
		}
		sources, err = a.API.Sources(ctx)
	}
	if err != nil {
		return err
	}

	if len(sources) == 0 {
		fmt.Fprintln(a.Out, "no sources found")
		return nil
	}

	writer := newTable(a.Out)
	fmt.Fprintln(writer, "ID\tName\tFormat\tInterval\tActive\tLast update (UTC)\tURL")
	for _, s := range sources {
		last := "-"
		if s.LastUpdateAt != nil {
			last = formatTime(s.LastUpdateAt.Time)
		}
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%dm\t%t\t%s\t%s\n",
			s.ID,
			sanitizeInline(s.Name),
			s.Format,
			s.UpdateIntervalMinutes,
			s.IsActive,
			last,
			s.URL,
		)
	}
	return writer.Flush()
}

// AddSource creates a source.
func (a *App) AddSource(ctx context.Context, opts SourceOptions) error {
	if err := a.requireAdmin(ctx); err != nil {
		return err
	}

	created, err := a.API.CreateSource(ctx, opts.source())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "created source %s (id %d)\n", created.Name, created.ID)
	return nil
}

// UpdateSource replaces the definition of source id.
func (a *App) UpdateSource(ctx context.Context, id int, opts SourceOptions) error {
	if err := a.requireAdmin(ctx); err != nil {
		return err
	}

	src := opts.source()
	src.ID = id
	if err := a.API.UpdateSource(ctx, id, src); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "updated source %d\n", id)
	return nil
}

// DeleteSource removes source id.
func (a *App) DeleteSource(ctx context.Context, id int) error {
	if err := a.requireAdmin(ctx); err != nil {
		return err
	}
	if err := a.API.DeleteSource(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "deleted source %d\n", id)
	return nil
}

// ToggleSource flips the active flag of source id.
func (a *App) ToggleSource(ctx context.Context, id int) error {
	if err := a.requireAdmin(ctx); err != nil {
		return err
	}
	if err := a.API.ToggleSource(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "toggled source %d\n", id)
	return nil
}

// TestSource asks the server to fetch from a definition without saving it
// and prints whatever it answered.
func (a *App) TestSource(ctx context.Context, opts SourceOptions) error {
	if err := a.requireAdmin(ctx); err != nil {
		return err
	}

	raw, err := a.API.TestSource(ctx, opts.source())
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		fmt.Fprintln(a.Out, "source test succeeded")
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		_, err = a.Out.Write(append(raw, '\n'))
		return err
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(a.Out)
	return err
}

// Fetch triggers collection from every source, or from the named one.
func (a *App) Fetch(ctx context.Context, source string) error {
	if err := a.requireAdmin(ctx); err != nil {
		return err
	}

	var (
		res api.FetchResult
		err error
	)
	if source == "" {
		res, err = a.API.FetchAll(ctx)
	} else {
		res, err = a.API.FetchSource(ctx, source)
	}
	if err != nil {
		return err
	}

	target := "all sources"
	if source != "" {
		target = strconv.Quote(source)
	}
	fmt.Fprintf(a.Out, "fetched %d rates from %s\n", res.Count, target)
	return nil
}
