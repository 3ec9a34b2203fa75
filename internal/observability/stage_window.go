package observability

import (
	"maps"
	"math"
	"slices"
	"sync"
	"time"
)

// stageOrder is the order stages run within a turn. Snapshots list known
// stages this way and any others after them, by name.
var stageOrder = []string{StageRetrieve, StageHistory, StageComplete, StagePersist, StageTotal}

// stageTargets is the p95 latency budget of each turn stage in milliseconds.
var stageTargets = map[string]float64{
	StageRetrieve: 400,
	StageHistory:  50,
	StageComplete: 4000,
	StagePersist:  500,
	StageTotal:    5000,
}

// StageStats summarizes the recent latencies of one turn stage.
type StageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	MeanMS      float64 `json:"mean_ms"`
	MaxMS       float64 `json:"max_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
	// OverTarget counts samples slower than TargetP95MS.
	OverTarget int `json:"over_target,omitempty"`
}

// TurnStageSnapshot is served by the latency endpoint.
type TurnStageSnapshot struct {
	GeneratedAt time.Time         `json:"generated_at"`
	WindowSize  int               `json:"window_size"`
	Stages      []StageStats      `json:"stages"`
	Indicators  map[string]uint64 `json:"indicators,omitempty"`
}

// ring holds the latest samples of one stage.
type ring struct {
	buf  []float64
	head int
	size int
}

func (r *ring) push(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

func (r *ring) last() float64 {
	return r.buf[(r.head-1+len(r.buf))%len(r.buf)]
}

func (r *ring) sorted() []float64 {
	out := slices.Clone(r.buf[:r.size])
	slices.Sort(out)
	return out
}

// stageWindow keeps per-stage rings and counts turn indicators such as a
// degraded memory search.
type stageWindow struct {
	mu         sync.Mutex
	capacity   int
	rings      map[string]*ring
	indicators map[string]uint64
}

func newStageWindow(capacity int) *stageWindow {
	if capacity <= 0 {
		capacity = 256
	}
	return &stageWindow{
		capacity:   capacity,
		rings:      make(map[string]*ring),
		indicators: make(map[string]uint64),
	}
}

func (w *stageWindow) record(stage string, ms float64) {
	if stage == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.rings[stage]
	if !ok {
		r = &ring{buf: make([]float64, w.capacity)}
		w.rings[stage] = r
	}
	r.push(ms)
}

func (w *stageWindow) count(indicator string) {
	if indicator == "" {
		return
	}
	w.mu.Lock()
	w.indicators[indicator]++
	w.mu.Unlock()
}

func (w *stageWindow) snapshot(now time.Time) TurnStageSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	names := make([]string, 0, len(w.rings))
	for _, name := range stageOrder {
		if _, ok := w.rings[name]; ok {
			names = append(names, name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(w.rings)) {
		if _, known := stageTargets[name]; !known {
			names = append(names, name)
		}
	}

	stats := make([]StageStats, 0, len(names))
	for _, name := range names {
		stats = append(stats, summarize(name, w.rings[name]))
	}

	var indicators map[string]uint64
	if len(w.indicators) > 0 {
		indicators = maps.Clone(w.indicators)
	}
	return TurnStageSnapshot{
		GeneratedAt: now,
		WindowSize:  w.capacity,
		Stages:      stats,
		Indicators:  indicators,
	}
}

func summarize(stage string, r *ring) StageStats {
	samples := r.sorted()
	target := stageTargets[stage]

	var sum float64
	over := 0
	for _, v := range samples {
		sum += v
		if target > 0 && v > target {
			over++
		}
	}
	return StageStats{
		Stage:       stage,
		Samples:     len(samples),
		LastMS:      roundMS(r.last()),
		MeanMS:      roundMS(sum / float64(len(samples))),
		MaxMS:       roundMS(samples[len(samples)-1]),
		P50MS:       roundMS(nearestRank(samples, 0.50)),
		P95MS:       roundMS(nearestRank(samples, 0.95)),
		P99MS:       roundMS(nearestRank(samples, 0.99)),
		TargetP95MS: target,
		OverTarget:  over,
	}
}

// nearestRank returns the q-quantile of an ascending, non-empty slice.
func nearestRank(sorted []float64, q float64) float64 {
	i := int(math.Ceil(q*float64(len(sorted)))) - 1
	return sorted[max(0, min(i, len(sorted)-1))]
}

func roundMS(v float64) float64 {
	return math.Round(v*100) / 100
}
