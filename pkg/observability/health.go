package observability

import (
	"sort"
	"sync"
	"time"
)

// defaultHealthWindow bounds how far back health snapshots look.
const defaultHealthWindow = time.Hour

// DecisionHealth tracks recent decision outcomes in-process, independent of
// any metrics backend. TrackDecision feeds it; Snapshot answers "how is the
// pipeline doing right now" without a collector round-trip.
type DecisionHealth struct {
	mu     sync.Mutex
	window time.Duration
	clock  func() time.Time
	obs    []healthObservation
}

type healthObservation struct {
	verdict  string
	duration time.Duration
	at       time.Time
}

// HealthSnapshot reports decision outcomes over the tracking window.
type HealthSnapshot struct {
	Decisions    int            `json:"decisions"`
	ByVerdict    map[string]int `json:"by_verdict"`
	ApprovalRate float64        `json:"approval_rate"`
	P99Latency   time.Duration  `json:"p99_latency"`
	Window       time.Duration  `json:"window"`
}

func NewDecisionHealth() *DecisionHealth {
	return &DecisionHealth{
		window: defaultHealthWindow,
		clock:  time.Now,
	}
}

// WithClock overrides the clock for testing.
func (h *DecisionHealth) WithClock(clock func() time.Time) *DecisionHealth {
	h.clock = clock
	return h
}

// Record adds one decision outcome and prunes everything outside the window.
func (h *DecisionHealth) Record(verdict string, duration time.Duration) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clock()
	h.obs = append(h.obs, healthObservation{verdict: verdict, duration: duration, at: now})

	cutoff := now.Add(-h.window)
	keep := h.obs[:0]
	for _, o := range h.obs {
		if o.at.After(cutoff) {
			keep = append(keep, o)
		}
	}
	h.obs = keep
}

// Snapshot computes the current window's outcome summary.
func (h *DecisionHealth) Snapshot() HealthSnapshot {
	if h == nil {
		return HealthSnapshot{ByVerdict: map[string]int{}}
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.clock().Add(-h.window)
	byVerdict := make(map[string]int)
	var latencies []time.Duration
	approved := 0

	for _, o := range h.obs {
		if !o.at.After(cutoff) {
			continue
		}
		byVerdict[o.verdict]++
		latencies = append(latencies, o.duration)
		if o.verdict == "approved" || o.verdict == "executed" {
			approved++
		}
	}

	snap := HealthSnapshot{
		Decisions: len(latencies),
		ByVerdict: byVerdict,
		Window:    h.window,
	}
	if len(latencies) == 0 {
		return snap
	}

	snap.ApprovalRate = float64(approved) / float64(len(latencies))

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	idx := int(float64(len(latencies)) * 0.99)
	if idx >= len(latencies) {
		idx = len(latencies) - 1
	}
	snap.P99Latency = latencies[idx]
	return snap
}
