package climatetools

import (
	"testing"
	"time"
)

func TestHydrologicalRange(t *testing.T) {
	dates := HydrologicalRange(2020)
	if len(dates) != 12 {
		t.Fatalf("got %d dates, want 12", len(dates))
	}

	first := time.Date(2019, time.September, 30, 0, 0, 0, 0, time.UTC)
	if !dates[0].Equal(first) {
		t.Errorf("first date is %v, want %v", dates[0], first)
	}
	last := time.Date(2020, time.August, 31, 0, 0, 0, 0, time.UTC)
	if !dates[11].Equal(last) {
		t.Errorf("last date is %v, want %v", dates[11], last)
	}

	for i, date := range dates {
		next := date.AddDate(0, 0, 1)
		if next.Day() != 1 {
			t.Errorf("date %d (%v) is not a month end", i, date)
		}
	}
}

func TestHydrologicalRangeYearBoundary(t *testing.T) {
	// December and January straddle the calendar year change.
	dates := HydrologicalRange(2001)
	dec := time.Date(2000, time.December, 31, 0, 0, 0, 0, time.UTC)
	if !dates[3].Equal(dec) {
		t.Errorf("fourth date is %v, want %v", dates[3], dec)
	}
	jan := time.Date(2001, time.January, 31, 0, 0, 0, 0, time.UTC)
	if !dates[4].Equal(jan) {
		t.Errorf("fifth date is %v, want %v", dates[4], jan)
	}
}
