// Package cache publishes the newest polled rates to Redis so that other
// processes can read them without calling the rates service.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"exchange-rates-client/internal/config"
	"exchange-rates-client/internal/storage"
)

const keyPrefix = "ratesctl:latest:"

// ErrMiss is returned by Latest when nothing is cached for the series.
var ErrMiss = errors.New("cache: no cached rate")

// Redis stores one key per source and pair holding its newest row.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// cachedRate is the JSON value stored under a latest key.
type cachedRate struct {
	Source     string          `json:"source"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Buy        decimal.Decimal `json:"buy"`
	Sell       decimal.Decimal `json:"sell"`
	FetchedAt  time.Time       `json:"fetchedAt"`
	ObservedAt time.Time       `json:"observedAt"`
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Redis{
		client: client,
		ttl:    cfg.TTL,
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// PublishLatest overwrites the latest key of every snapshot in one round trip.
func (r *Redis) PublishLatest(ctx context.Context, snapshots []storage.Snapshot) error {
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, snap := range snapshots {
			data, err := encode(snap)
			if err != nil {
				return err
			}
			pipe.Set(ctx, latestKey(snap.SourceName, snap.FromCurrency, snap.ToCurrency), data, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish latest rates: %w", err)
	}
	r.logger.Debug().Int("keys", len(snapshots)).Msg("latest rates published")
	return nil
}

// Latest reads the cached row of one source and pair.
func (r *Redis) Latest(ctx context.Context, source, from, to string) (storage.Snapshot, error) {
	data, err := r.client.Get(ctx, latestKey(source, from, to)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storage.Snapshot{}, ErrMiss
		}
		return storage.Snapshot{}, fmt.Errorf("read latest rate: %w", err)
	}
	return decode(data)
}

func latestKey(source, from, to string) string {
	return keyPrefix + source + ":" + strings.ToUpper(from) + "/" + strings.ToUpper(to)
}

func encode(snap storage.Snapshot) ([]byte, error) {
	return json.Marshal(cachedRate{
		Source:     snap.SourceName,
		From:       snap.FromCurrency,
		To:         snap.ToCurrency,
		Buy:        snap.BuyRate,
		Sell:       snap.SellRate,
		FetchedAt:  snap.FetchedAt,
		ObservedAt: snap.ObservedAt,
	})
}

func decode(data []byte) (storage.Snapshot, error) {
	var v cachedRate
	if err := json.Unmarshal(data, &v); err != nil {
		return storage.Snapshot{}, fmt.Errorf("decode cached rate: %w", err)
	}
	return storage.Snapshot{
		SourceName:   v.Source,
		FromCurrency: v.From,
		ToCurrency:   v.To,
		BuyRate:      v.Buy,
		SellRate:     v.Sell,
		FetchedAt:    v.FetchedAt,
		ObservedAt:   v.ObservedAt,
	}, nil
}
