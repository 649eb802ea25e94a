package schema

import (
	"errors"
	"testing"
	"time"
)

func TestDayKeyHasNoZeroPadding(t *testing.T) {
	at := time.Date(2025, time.March, 7, 23, 59, 0, 0, time.Local)
	if got := DayKey(at); got != "2025-3-7" {
		t.Fatalf("DayKey = %q, want 2025-3-7", got)
	}
	day, err := ParseDayKey("2025-3-7")
	if err != nil {
		t.Fatalf("ParseDayKey error: %v", err)
	}
	if day.Day() != 7 || day.Month() != time.March {
		t.Fatalf("ParseDayKey = %v", day)
	}
	if _, err := ParseDayKey("2025/03/07"); err == nil {
		t.Fatalf("ParseDayKey accepted slash format")
	}
}

func TestDayKeyHasSingleSpelling(t *testing.T) {
	for _, key := range []string{"2025-03-07", "2025-3-07", " 2025-3-7"} {
		if _, err := ParseDayKey(key); err == nil {
			t.Fatalf("ParseDayKey(%q) accepted non-canonical key", key)
		}
		got, err := CanonicalDayKey(key)
		if err != nil {
			t.Fatalf("CanonicalDayKey(%q) error: %v", key, err)
		}
		if got != "2025-3-7" {
			t.Fatalf("CanonicalDayKey(%q) = %q, want 2025-3-7", key, got)
		}
	}

	padded := NewTaskSnapshot("2025-03-07", 1, 2)
	if err := padded.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("padded task key err=%v, want ErrInvalid", err)
	}
}

func TestMoodSampleValidate(t *testing.T) {
	at := time.Now()
	ok := NewMoodSample(at, 1, 10)
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid sample rejected: %v", err)
	}

	cases := []*MoodSample{
		NewMoodSample(at, 0, 5),
		NewMoodSample(at, 5, 11),
		{Anxiety: 5, Joy: 5, DateKey: DayKey(at)},
		{Date: at, Anxiety: 5, Joy: 5},
	}
	for i, c := range cases {
		if err := c.Validate(); !errors.Is(err, ErrInvalid) {
			t.Fatalf("case %d: err=%v, want ErrInvalid", i, err)
		}
	}
}

func TestTaskSnapshotCompletionRate(t *testing.T) {
	if got := CompletionRate(0, 0); got != 0 {
		t.Fatalf("rate(0,0) = %d, want 0", got)
	}
	if got := CompletionRate(1, 3); got != 33 {
		t.Fatalf("rate(1,3) = %d, want 33", got)
	}
	if got := CompletionRate(2, 3); got != 67 {
		t.Fatalf("rate(2,3) = %d, want 67", got)
	}

	snap := &TaskSnapshot{Date: "2025-1-2", Completed: 1, Total: 2, CompletionRate: 99}
	snap.Normalize()
	if snap.CompletionRate != 50 {
		t.Fatalf("normalized rate = %d, want 50", snap.CompletionRate)
	}
	if snap.DayStart.IsZero() {
		t.Fatalf("DayStart not populated")
	}

	bad := &TaskSnapshot{Date: "2025-1-2", Completed: 3, Total: 2}
	if err := bad.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("completed>total err=%v, want ErrInvalid", err)
	}
}

func TestStatsValueNilIsNull(t *testing.T) {
	var s *Stats
	v, err := s.Value()
	if err != nil || v != nil {
		t.Fatalf("nil Stats Value = %v, %v; want nil, nil", v, err)
	}

	var out Stats
	if err := out.Scan(`{"avgAnxiety":7,"avgJoy":3,"avgCompletionRate":40,"daysTracked":2}`); err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if out.AvgAnxiety != 7 || out.DaysTracked != 2 {
		t.Fatalf("Scan got %+v", out)
	}
}
