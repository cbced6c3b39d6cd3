package recurrence

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name     string
		due      time.Time
		pattern  Pattern
		interval int
		want     time.Time
	}{
		{"daily", date(2024, 1, 1), Daily, 3, date(2024, 1, 4)},
		{"weekly", date(2024, 1, 1), Weekly, 2, date(2024, 1, 15)},
		{"monthly", date(2024, 1, 15), Monthly, 1, date(2024, 2, 15)},
		{"monthly end of january rolls into march", date(2024, 1, 31), Monthly, 1, date(2024, 3, 2)},
		{"monthly end of january non-leap", date(2023, 1, 31), Monthly, 1, date(2023, 3, 3)},
		{"yearly from leap day", date(2024, 2, 29), Yearly, 1, date(2025, 3, 1)},
		{"zero interval acts as one", date(2024, 1, 1), Daily, 0, date(2024, 1, 2)},
		{"year boundary", date(2024, 12, 31), Daily, 1, date(2025, 1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.due, tt.pattern, tt.interval)
			if err != nil {
				t.Fatalf("NextOccurrence: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %s, want %s", got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

func TestNextOccurrenceUnknownPattern(t *testing.T) {
	if _, err := NextOccurrence(date(2024, 1, 1), "hourly", 1); err == nil {
		t.Fatal("expected error for unknown pattern")
	}
	if _, err := ParsePattern("fortnightly"); err == nil {
		t.Fatal("expected ParsePattern error")
	}
}

func TestShouldContinue(t *testing.T) {
	next := date(2024, 3, 2)
	if !ShouldContinue(next, nil) {
		t.Error("no end date: want true")
	}

	end := date(2024, 3, 2)
	if !ShouldContinue(next, &end) {
		t.Error("next == end: want true")
	}

	end = date(2024, 3, 1)
	if ShouldContinue(next, &end) {
		t.Error("next > end: want false")
	}

	end = date(2024, 12, 31)
	if !ShouldContinue(next, &end) {
		t.Error("next < end: want true")
	}
}
