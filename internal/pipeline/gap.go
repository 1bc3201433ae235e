package pipeline

import "time"

// Gap returns the elapsed time between the persisted cursor and now. A
// missing or unparsable timestamp reports ok=false: a first run has no gap
// to catch up on.
func Gap(lastTimestamp string, now time.Time) (time.Duration, bool) {
	if lastTimestamp == "" {
		return 0, false
	}
	last, err := time.Parse(time.RFC3339, lastTimestamp)
	if err != nil {
		return 0, false
	}
	return now.Sub(last), true
}

// ShouldCatchUp decides whether a full historical backfill must run before
// live consumption resumes.
func ShouldCatchUp(lastTimestamp string, now time.Time, threshold time.Duration) bool {
	gap, ok := Gap(lastTimestamp, now)
	return ok && gap > threshold
}
