package metrics

import (
	"sync"
	"time"
)

// HolidayCache memoizes calculated holiday dates by year. Populated lazily,
// never invalidated: a past year's holiday date never changes. Injected into
// the aggregator instead of living in package state.
type HolidayCache struct {
	mu           sync.Mutex
	thanksgiving map[int]time.Time
}

func NewHolidayCache() *HolidayCache {
	return &HolidayCache{thanksgiving: make(map[int]time.Time)}
}

// ThanksgivingUS returns UTC midnight of US Thanksgiving (the 4th Thursday
// of November) for the given year.
func (c *HolidayCache) ThanksgivingUS(year int) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if day, ok := c.thanksgiving[year]; ok {
		return day
	}

	first := time.Date(year, time.November, 1, 0, 0, 0, 0, time.UTC)
	// Shift the 1st to the 4th Thursday of the month.
	date := (11-int(first.Weekday()))%7 + 22
	day := time.Date(year, time.November, date, 0, 0, 0, 0, time.UTC)
	c.thanksgiving[year] = day
	return day
}

// BlackFriday returns UTC midnight of Black Friday (Thanksgiving + 1 day).
func (c *HolidayCache) BlackFriday(year int) time.Time {
	return c.ThanksgivingUS(year).AddDate(0, 0, 1)
}

// DayDiff returns the number of full 24-hour days between anchor and value,
// negative when value precedes anchor. DST is deliberately ignored; all
// window math happens in UTC.
func DayDiff(anchor, value time.Time) int {
	diff := value.Sub(anchor)
	days := int(diff.Hours() / 24)
	if diff < 0 && diff.Truncate(24*time.Hour) != diff {
		days--
	}
	return days
}
