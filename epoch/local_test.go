package epoch

import (
	"context"
	"testing"
	"time"
)

func TestLocalAdvanceAndCurrent(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if g, _ := s.Current(ctx, "a"); g != 0 {
		t.Fatalf("missing key should read 0, got %d", g)
	}
	for want := uint64(1); want <= 2; want++ {
		g, err := s.Advance(ctx, "a")
		if err != nil {
			t.Fatal(err)
		}
		if g != want {
			t.Fatalf("Advance: got %d want %d", g, want)
		}
	}
	if g, _ := s.Current(ctx, "a"); g != 2 {
		t.Fatalf("Current: got %d want 2", g)
	}
	if g, _ := s.Current(ctx, "b"); g != 0 {
		t.Fatalf("keys must be independent, got %d", g)
	}
}

func TestLocalPruneDropsOld(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Advance(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := s.Advance(ctx, "fresh"); err != nil {
		t.Fatal(err)
	}
	s.Prune(10 * time.Millisecond)

	if g, _ := s.Current(ctx, "old"); g != 0 {
		t.Fatalf("expected pruned -> 0, got %d", g)
	}
	if g, _ := s.Current(ctx, "fresh"); g != 1 {
		t.Fatalf("fresh key pruned, got %d", g)
	}
}

func TestLocalPruneLoopAndCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(5*time.Millisecond, 5*time.Millisecond)

	if _, err := s.Advance(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if g, _ := s.Current(ctx, "k"); g == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("prune loop never dropped the key")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
}
