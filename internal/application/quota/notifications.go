package quota

import "sort"

// nextPercentThreshold returns the most severe (lowest) percentage
// threshold that remainingPercent has crossed and that has not fired yet.
// A threshold fires only once: lastLevel records the last fired level and
// only levels below it may fire again.
func nextPercentThreshold(remainingPercent float64, lastLevel *float64, thresholds []float64) (float64, bool) {
	if len(thresholds) == 0 {
		return 0, false
	}

	sorted := append([]float64(nil), thresholds...)
	sort.Float64s(sorted)

	for _, t := range sorted {
		if remainingPercent > t {
			continue
		}
		if lastLevel != nil && *lastLevel <= t {
			continue
		}
		return t, true
	}
	return 0, false
}

// nextDayThreshold is the day-based analogue for expiry warnings.
func nextDayThreshold(daysLeft int, lastDays *int, thresholds []int) (int, bool) {
	if len(thresholds) == 0 || daysLeft < 0 {
		return 0, false
	}

	sorted := append([]int(nil), thresholds...)
	sort.Ints(sorted)

	for _, t := range sorted {
		if daysLeft > t {
			continue
		}
		if lastDays != nil && *lastDays <= t {
			continue
		}
		return t, true
	}
	return 0, false
}
