package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPacer_New(t *testing.T) {
	p := NewPacer(10, 5, time.Second)
	if p.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", p.defaultBurst)
	}
	if p.Delay() != time.Second {
		t.Errorf("expected delay 1s, got %v", p.Delay())
	}

	p2 := NewPacer(0, -1, 0)
	if p2.defaultBurst != 1 {
		t.Errorf("expected default burst 1 for negative input, got %d", p2.defaultBurst)
	}
}

func TestPacer_UnlimitedWhenRateIsZero(t *testing.T) {
	p := NewPacer(0, 1, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	for i := 0; i < 100; i++ {
		if err := p.Wait(ctx, "openai"); err != nil {
			t.Fatalf("call %d should pass with no rate cap: %v", i, err)
		}
	}
}

func TestPacer_RateLimitPerKey(t *testing.T) {
	p := NewPacer(1, 1, 0)

	if err := p.Wait(context.Background(), "openai"); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	// The next token is a second away, past the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx, "openai"); err == nil {
		t.Error("expected wait to fail with exhausted tokens")
	}
	if err := p.Wait(ctx, "anthropic"); err != nil {
		t.Errorf("other provider should have its own bucket: %v", err)
	}
}

func TestPacer_Pause(t *testing.T) {
	p := NewPacer(0, 1, 50*time.Millisecond)

	start := time.Now()
	if err := p.Pause(context.Background()); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Errorf("expected delay >= 50ms, got %v", time.Since(start))
	}
}

func TestPacer_PauseCancelled(t *testing.T) {
	p := NewPacer(0, 1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Pause(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPacer_SetSleep(t *testing.T) {
	p := NewPacer(0, 1, 500*time.Millisecond)

	var slept []time.Duration
	p.SetSleep(func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	_ = p.Pause(context.Background())
	_ = p.Pause(context.Background())

	if len(slept) != 2 || slept[0] != 500*time.Millisecond {
		t.Errorf("unexpected sleeps: %v", slept)
	}
}
