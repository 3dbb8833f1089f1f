package mediagraph

import (
	"context"
	"testing"
	"time"
)

func TestBarrierReleasesAfterAllArrive(t *testing.T) {
	b := NewBarrier(4)
	done := make(chan error, 1)
	go func() {
		done <- b.Wait(context.Background())
	}()

	for i := 0; i < 3; i++ {
		select {
		case err := <-done:
			t.Fatalf("barrier released early after %d arrivals: %v", i, err)
		case <-time.After(5 * time.Millisecond):
		}
		b.Arrive()
	}
	b.Arrive()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("barrier did not release after all parties arrived")
	}
}

func TestBarrierWaitRespectsContext(t *testing.T) {
	b := NewBarrier(2)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := b.Wait(ctx); err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestBarrierExtraArrivalsAreSafe(t *testing.T) {
	b := NewBarrier(1)
	b.Arrive()
	b.Arrive() // must not panic on double-close
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
