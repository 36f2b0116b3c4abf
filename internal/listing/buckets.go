package listing

import "time"

// CreatedSinceBound returns the inclusive lower bound for a creation-date
// bucket, anchored at now. Unknown buckets report ok=false.
func CreatedSinceBound(bucket string, now time.Time) (bound time.Time, ok bool) {
	y, m, d := now.Date()
	loc := now.Location()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch bucket {
	case SinceToday:
		return today, true
	case SinceThisWeek:
		// weeks start on Monday
		offset := (int(today.Weekday()) + 6) % 7
		return today.AddDate(0, 0, -offset), true
	case SinceThisMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), true
	case SinceThisYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc), true
	}
	return time.Time{}, false
}
