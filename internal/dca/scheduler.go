package dca

import "time"

// IsDue reports whether a new cycle may be dispatched at now.
func IsDue(st State, cfg Config, now time.Time) bool {
	if st.Paused || st.Cancelled || st.CycleOpen() {
		return false
	}
	if st.TradesExecuted >= cfg.NumTrades {
		return false
	}
	return !now.Before(st.NextEligibleTime)
}
