package operation

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"
)

func TestFanOutBoundsConcurrencyAndKeepsOrder(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e"}
	delays := map[string]time.Duration{
		"a": 40 * time.Millisecond,
		"b": 5 * time.Millisecond,
		"c": 30 * time.Millisecond,
		"d": 1 * time.Millisecond,
		"e": 20 * time.Millisecond,
	}

	var inflight, peak atomic.Int64
	got, err := FanOut(context.Background(), keys, 2, func(_ context.Context, key string) (string, error) {
		cur := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(delays[key])
		return "note-" + key, nil
	})
	if err != nil {
		t.Fatalf("FanOut: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
	want := []string{"note-a", "note-b", "note-c", "note-d", "note-e"}
	if !slices.Equal(got, want) {
		t.Errorf("results = %v, want %v", got, want)
	}
}

func TestFanOutCollectsAllFailures(t *testing.T) {
	errB := errors.New("b failed")
	errD := errors.New("d failed")
	var calls atomic.Int64

	got, err := FanOut(context.Background(), []string{"a", "b", "c", "d"}, 3, func(_ context.Context, key string) (int, error) {
		calls.Add(1)
		switch key {
		case "b":
			return 0, errB
		case "d":
			return 0, errD
		}
		return len(key), nil
	})

	if calls.Load() != 4 {
		t.Errorf("children run = %d, want 4", calls.Load())
	}
	var fe *FanOutError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FanOutError, got %v", err)
	}
	if len(fe.Failures) != 2 || fe.Failures[0].Key != "b" || fe.Failures[1].Key != "d" {
		t.Fatalf("failures = %+v", fe.Failures)
	}
	if !errors.Is(err, errB) || !errors.Is(err, errD) {
		t.Error("child errors not reachable through Unwrap")
	}
	if got[0] != 1 || got[2] != 1 {
		t.Errorf("successful values lost: %v", got)
	}
}

func TestFanOutEmpty(t *testing.T) {
	got, err := FanOut(context.Background(), nil, 4, func(context.Context, string) (int, error) {
		t.Error("fn called for empty input")
		return 0, nil
	})
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestFanOutCanceledContextFailsChildren(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FanOut(ctx, []string{"a", "b"}, 1, func(ctx context.Context, _ string) (int, error) {
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
