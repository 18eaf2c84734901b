package bot

import "time"

// rateWindow is a sliding set of accepted-message timestamps, pruned lazily
// on each check. It is owned by exactly one session, so no locking here.
type rateWindow struct {
	max  int
	span time.Duration
	hits []time.Time
}

func newRateWindow(max int, span time.Duration) *rateWindow {
	return &rateWindow{max: max, span: span}
}

// allow reports whether one more message may be accepted at now, and records
// it when allowed. A rejected message is not recorded: throttled traffic
// does not extend the throttle.
func (w *rateWindow) allow(now time.Time) bool {
	cutoff := now.Add(-w.span)
	kept := w.hits[:0]
	for _, t := range w.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.hits = kept

	if len(w.hits) >= w.max {
		return false
	}
	w.hits = append(w.hits, now)
	return true
}
