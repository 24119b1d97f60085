package quota

// usageDelta computes the byte delta between the current counter and the
// last recorded baseline. Without a prior sample the contribution is zero
// and the caller records the baseline. A counter below the baseline means
// the router reset or rolled over; the current value is then the best
// available estimate of traffic since.
func usageDelta(current, last uint64, hasLast bool) uint64 {
	if !hasLast {
		return 0
	}
	if current >= last {
		return current - last
	}
	return current
}

// bytesToMB converts bytes to megabytes.
func bytesToMB(b uint64) float64 {
	return float64(b) / (1024 * 1024)
}
