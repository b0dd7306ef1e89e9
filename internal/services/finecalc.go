package services

import "time"

// ComputeFine maps (due date, return date, policy) to a fine amount. It is
// deterministic and side-effect-free: the same function backs both the
// committed calculation at return time and what-if previews, so the two can
// never disagree.
func ComputeFine(dueDate, returnDate time.Time, policy CirculationPolicy) float64 {
	overdueDays := daysBetween(dueDate, returnDate)
	if overdueDays < 0 {
		overdueDays = 0
	}
	chargeableDays := overdueDays - policy.GraceDays
	if chargeableDays < 0 {
		chargeableDays = 0
	}
	return float64(chargeableDays) * policy.DailyRate
}

// daysBetween counts whole 24-hour periods from from to to. Partial days do
// not accrue.
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}
