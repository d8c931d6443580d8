package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: 5 * time.Minute, AlignToInterval: true}, zerolog.Nop())
	now := time.Date(2025, 3, 1, 10, 7, 30, 0, time.UTC)

	got := s.nextTick(now)
	want := time.Date(2025, 3, 1, 10, 10, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("next tick = %v, want %v", got, want)
	}

	onBoundary := time.Date(2025, 3, 1, 10, 10, 0, 0, time.UTC)
	if got := s.nextTick(onBoundary); !got.Equal(onBoundary.Add(5 * time.Minute)) {
		t.Fatalf("tick on a boundary must move to the next one, got %v", got)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s := New(Options{Interval: time.Minute}, zerolog.Nop())
	now := time.Date(2025, 3, 1, 10, 7, 30, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(now.Add(time.Minute)) {
		t.Fatalf("next tick = %v", got)
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond, Immediate: true}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	var ticks atomic.Int32
	err := s.Run(ctx, func(context.Context, time.Time) error {
		if ticks.Add(1) == 3 {
			cancel()
		}
		return errors.New("failing ticks do not stop the loop")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ticks.Load() != 3 {
		t.Fatalf("ticks = %d, want 3", ticks.Load())
	}
}

func TestRunHonoursStartupDelayCancel(t *testing.T) {
	s := New(Options{Interval: time.Minute, StartupDelay: time.Hour, Immediate: true}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	called := false
	err := s.Run(ctx, func(context.Context, time.Time) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) || called {
		t.Fatalf("err=%v called=%v", err, called)
	}
}
