package services

import "time"

// CirculationPolicy is injected configuration: the engine never decides
// rates or windows on its own.
type CirculationPolicy struct {
	LoanPeriodDays int
	GraceDays      int
	DailyRate      float64
	FineCeiling    float64
	HoldWindowDays int
	ReconcileAfter time.Duration
	SweepInterval  time.Duration
}

func DefaultCirculationPolicy() CirculationPolicy {
	return CirculationPolicy{
		LoanPeriodDays: 14,
		GraceDays:      3,
		DailyRate:      0.50,
		FineCeiling:    10.00,
		HoldWindowDays: 7,
		ReconcileAfter: 15 * time.Minute,
		SweepInterval:  time.Hour,
	}
}

func (p CirculationPolicy) LoanPeriod() time.Duration {
	return time.Duration(p.LoanPeriodDays) * 24 * time.Hour
}

func (p CirculationPolicy) HoldWindow() time.Duration {
	return time.Duration(p.HoldWindowDays) * 24 * time.Hour
}
