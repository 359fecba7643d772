package climatetools

import "time"

// hydroMonths orders month abbreviations by hydrological year, September
// through August. Feature column suffixes follow this order.
var hydroMonths = [12]string{
	"sep", "oct", "nov", "dec", "jan", "feb",
	"mar", "apr", "may", "jun", "jul", "aug",
}

// HydrologicalRange returns the twelve month-end timestamps of the
// hydrological year ending in year: Sep 30 of year-1 through Aug 31 of
// year, at UTC midnight.
func HydrologicalRange(year int) []time.Time {
	dates := make([]time.Time, 0, 12)
	for m := 0; m < 12; m++ {
		// Day 0 of month M+1 normalizes to the last day of month M.
		dates = append(dates, time.Date(year-1, time.September+time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC))
	}
	return dates
}
