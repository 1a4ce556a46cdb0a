package clock

import (
	"testing"
	"time"
)

func TestUTCNow(t *testing.T) {
	now := UTC.Now()
	if now.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", now.Location())
	}
	if time.Since(now) > time.Minute {
		t.Fatalf("system clock too far from wall clock: %v", now)
	}
}

func TestTestClockSetAndAdvance(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := NewTest(start)

	if got := clk.Now(); !got.Equal(start) {
		t.Fatalf("expected %v, got %v", start, got)
	}

	got := clk.Advance(90 * time.Second)
	want := start.Add(90 * time.Second)
	if !got.Equal(want) {
		t.Fatalf("advance returned %v, want %v", got, want)
	}
	if !clk.Now().Equal(want) {
		t.Fatalf("now after advance = %v, want %v", clk.Now(), want)
	}

	later := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	clk.Set(later)
	if !clk.Now().Equal(later) {
		t.Fatalf("now after set = %v, want %v", clk.Now(), later)
	}
}

func TestTestClockRepeatedReads(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := NewTest(start)
	for i := 0; i < 3; i++ {
		if !clk.Now().Equal(start) {
			t.Fatalf("test clock drifted on read %d", i)
		}
	}
}
