package rates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"exchange-rates-client/internal/api"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 20

// ErrPageOutOfRange is returned when the server answers with a page beyond
// the last one. The previous page stays displayed.
var ErrPageOutOfRange = errors.New("rates: page out of range")

// Backend is the part of the API client the store reads from.
type Backend interface {
	LatestRates(ctx context.Context, page, pageSize int) (api.RatePage, error)
	FilterRates(ctx context.Context, q api.RateQuery) (api.RatePage, error)
	FetchAll(ctx context.Context) (api.FetchResult, error)
	Currencies(ctx context.Context) ([]api.Currency, error)
	ActiveSources(ctx context.Context) ([]api.Source, error)
}

// Filters narrows the rates table. Empty fields are absent.
type Filters struct {
	Bank string
	From string
	To   string
}

// Any reports whether at least one filter is present.
func (f Filters) Any() bool {
	return f.Bank != "" || f.From != "" || f.To != ""
}

// Envelope describes where the loaded page sits in the full result.
type Envelope struct {
	Page       int
	PageSize   int
	TotalCount int
	TotalPages int
}

// State is a snapshot of the store.
type State struct {
	Page     int
	PageSize int
	Filters  Filters

	Rates    []api.Rate
	Envelope Envelope
	Loaded   bool
	Loading  bool
	Err      error
	Updated  time.Time

	Currencies []api.Currency
	Banks      []api.Source
}

// Store reconciles pagination, filtering and refresh against the rates API.
// Every fetch takes a generation number; a response whose generation is no
// longer current is dropped.
type Store struct {
	backend Backend
	logger  zerolog.Logger
	now     func() time.Time

	mu         sync.Mutex
	page       int
	pageSize   int
	filters    Filters
	rates      []api.Rate
	envelope   Envelope
	loaded     bool
	loading    int
	err        error
	updated    time.Time
	generation uint64
	currencies []api.Currency
	banks      []api.Source
}

// NewStore returns a store positioned on page 1 without filters.
func NewStore(backend Backend, pageSize int, logger zerolog.Logger) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Store{
		backend:  backend,
		logger:   logger.With().Str("component", "rates_store").Logger(),
		now:      time.Now,
		page:     1,
		pageSize: pageSize,
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		Page:       s.page,
		PageSize:   s.pageSize,
		Filters:    s.filters,
		Rates:      append([]api.Rate(nil), s.rates...),
		Envelope:   s.envelope,
		Loaded:     s.loaded,
		Loading:    s.loading > 0,
		Err:        s.err,
		Updated:    s.updated,
		Currencies: append([]api.Currency(nil), s.currencies...),
		Banks:      append([]api.Source(nil), s.banks...),
	}
}

// FetchRates loads the page selected by the current query. The filter
// endpoint is used iff a filter is present.
func (s *Store) FetchRates(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	q := api.RateQuery{
		Page:     s.page,
		PageSize: s.pageSize,
		Bank:     s.filters.Bank,
		From:     s.filters.From,
		To:       s.filters.To,
	}
	s.loading++
	s.err = nil
	s.mu.Unlock()

	var (
		page api.RatePage
		err  error
	)
	if q.HasFilters() {
		page, err = s.backend.FilterRates(ctx, q)
	} else {
		page, err = s.backend.LatestRates(ctx, q.Page, q.PageSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--

	if gen != s.generation {
		s.logger.Debug().
			Uint64("generation", gen).
			Uint64("current", s.generation).
			Msg("discarding stale rates response")
		return nil
	}

	if err != nil {
		s.err = err
		return fmt.Errorf("fetch rates page %d: %w", q.Page, err)
	}

	env, err := normaliseEnvelope(page, q)
	if err != nil {
		if env.TotalPages > 0 {
			s.page = env.TotalPages
		}
		s.err = err
		return err
	}

	s.rates = page.Data
	if s.rates == nil {
		s.rates = []api.Rate{}
	}
	s.envelope = env
	s.page = env.Page
	s.pageSize = env.PageSize
	s.loaded = true
	s.updated = s.now()
	return nil
}

// normaliseEnvelope fills gaps in the server envelope and recomputes the page
// count so that TotalPages == ceil(TotalCount/PageSize).
func normaliseEnvelope(page api.RatePage, q api.RateQuery) (Envelope, error) {
	env := Envelope{
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalCount: page.TotalCount,
	}
	if env.Page < 1 {
		env.Page = q.Page
	}
	if env.PageSize < 1 {
		env.PageSize = q.PageSize
	}
	if env.TotalCount < 0 {
		env.TotalCount = 0
	}
	env.TotalPages = (env.TotalCount + env.PageSize - 1) / env.PageSize

	if env.TotalCount > 0 && (env.Page-1)*env.PageSize >= env.TotalCount {
		return env, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, env.Page, env.TotalPages)
	}
	return env, nil
}

// SetPage moves to page n, clamped to the known page range, and fetches it.
// It returns the page actually requested.
func (s *Store) SetPage(ctx context.Context, n int) (int, error) {
	s.mu.Lock()
	last := 1
	if s.loaded && s.envelope.TotalPages > 0 {
		last = s.envelope.TotalPages
	}
	if n > last {
		n = last
	}
	if n < 1 {
		n = 1
	}
	s.page = n
	s.mu.Unlock()

	return n, s.FetchRates(ctx)
}

// SetFilters replaces all filters, returns to page 1 and fetches.
func (s *Store) SetFilters(ctx context.Context, f Filters) error {
	s.mu.Lock()
	s.filters = f
	s.page = 1
	s.mu.Unlock()

	return s.FetchRates(ctx)
}

// ClearFilters removes every filter, returns to page 1 and fetches.
func (s *Store) ClearFilters(ctx context.Context) error {
	return s.SetFilters(ctx, Filters{})
}

// RefreshRates asks the server to recompute rates, then reloads the current
// page whether or not the recompute succeeded.
func (s *Store) RefreshRates(ctx context.Context) (api.FetchResult, error) {
	res, recomputeErr := s.backend.FetchAll(ctx)
	if recomputeErr != nil {
		s.logger.Warn().Err(recomputeErr).Msg("rate recompute failed, reloading current page")
		recomputeErr = fmt.Errorf("recompute rates: %w", recomputeErr)
	}

	fetchErr := s.FetchRates(ctx)
	return res, errors.Join(recomputeErr, fetchErr)
}

// FetchCurrencies loads the reference currency list.
func (s *Store) FetchCurrencies(ctx context.Context) ([]api.Currency, error) {
	currencies, err := s.backend.Currencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch currencies: %w", err)
	}

	s.mu.Lock()
	s.currencies = currencies
	s.mu.Unlock()
	return currencies, nil
}

// FetchBanks loads the active sources offered as bank filters.
func (s *Store) FetchBanks(ctx context.Context) ([]api.Source, error) {
	banks, err := s.backend.ActiveSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch banks: %w", err)
	}

	s.mu.Lock()
	s.banks = banks
	s.mu.Unlock()
	return banks, nil
}

// Cancel makes every in-flight fetch stale. The requests themselves run to
// completion; their results are ignored.
func (s *Store) Cancel() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}
