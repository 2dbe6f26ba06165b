package schemacache

import (
	"math/rand/v2"
	"time"
)

// runJittered executes fn at a jittered interval around base until stopCh
// is closed. The actual interval is base plus a random amount up to 10%
// of base, so the refresher does not fire on an exact fixed period.
//
// Adapted from Resinat-Resin/internal/scanloop.Run, trimmed to this
// package's single caller (the periodic refresher) and parameterized by a
// single base interval instead of separate min/jitter durations.
func runJittered(stopCh <-chan struct{}, base time.Duration, fn func()) {
	if base <= 0 {
		base = time.Second
	}
	jitterRange := base / 10

	timer := time.NewTimer(nextInterval(base, jitterRange))
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
			fn()
			timer.Reset(nextInterval(base, jitterRange))
		}
	}
}

func nextInterval(base, jitterRange time.Duration) time.Duration {
	if jitterRange <= 0 {
		return base
	}
	return base + time.Duration(rand.Int64N(int64(jitterRange)))
}
