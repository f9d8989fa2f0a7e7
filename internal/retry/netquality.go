package retry

import (
	"sync"
	"time"

	"chatsync/internal/constants"
)

// LatencyScaler derives a delay multiplier from recently observed request
// latencies: slow networks stretch backoff delays, fast networks shorten them.
// The multiplier is clamped so scaling adjusts the backoff schedule without
// replacing it.
type LatencyScaler struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	filled  bool
}

func NewLatencyScaler() *LatencyScaler {
	return &LatencyScaler{
		samples: make([]time.Duration, constants.LatencyWindowSize),
	}
}

// Observe records one request latency into the sliding window.
func (s *LatencyScaler) Observe(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples[s.next] = latency
	s.next++
	if s.next == len(s.samples) {
		s.next = 0
		s.filled = true
	}
}

func (s *LatencyScaler) average() time.Duration {
	count := s.next
	if s.filled {
		count = len(s.samples)
	}
	if count == 0 {
		return constants.DefaultLatencyEstimate
	}

	var total time.Duration
	for i := 0; i < count; i++ {
		total += s.samples[i]
	}
	return total / time.Duration(count)
}

// Factor returns the current delay multiplier.
func (s *LatencyScaler) Factor() float64 {
	s.mu.Lock()
	avg := s.average()
	s.mu.Unlock()

	factor := float64(avg) / float64(constants.DefaultLatencyEstimate)
	if factor < constants.DelayScaleMin {
		factor = constants.DelayScaleMin
	}
	if factor > constants.DelayScaleMax {
		factor = constants.DelayScaleMax
	}
	return factor
}

// Scale implements DelayScaler.
func (s *LatencyScaler) Scale(d time.Duration) time.Duration {
	return time.Duration(float64(d) * s.Factor())
}
