package observability

import (
	"sync"
	"sync/atomic"
)

type StatsSnapshot struct {
	Searches          uint64            `json:"searches"`
	CacheHits         uint64            `json:"cache_hits"`
	CacheMisses       uint64            `json:"cache_misses"`
	PagesFetched      uint64            `json:"pages_fetched"`
	AICalls           uint64            `json:"ai_calls"`
	ErrorsTotal       uint64            `json:"errors_total"`
	SourceSecondsAvg  float64           `json:"source_seconds_avg"`
	SearchesByVert    map[string]uint64 `json:"searches_by_vertical"`
	SourceOutcomes    map[string]uint64 `json:"source_outcomes"`
	ErrorsByType      map[string]uint64 `json:"errors_by_type"`
	ErrorsByComponent map[string]uint64 `json:"errors_by_component"`
}

var (
	searches     uint64
	cacheHits    uint64
	cacheMisses  uint64
	pagesFetched uint64
	aiCalls      uint64
	errorsTotal  uint64

	sourceCount uint64
	sourceNanos uint64

	statsMu           sync.Mutex
	searchesByVert    = map[string]uint64{}
	sourceOutcomes    = map[string]uint64{}
	errorsByType      = map[string]uint64{}
	errorsByComponent = map[string]uint64{}
)

func IncSearch(vertical string) {
	atomic.AddUint64(&searches, 1)
	if vertical == "" {
		vertical = "unknown"
	}
	statsMu.Lock()
	searchesByVert[vertical]++
	statsMu.Unlock()
}

func IncCacheHit() {
	atomic.AddUint64(&cacheHits, 1)
}

func IncCacheMiss() {
	atomic.AddUint64(&cacheMisses, 1)
}

func IncPagesFetched(_ string) {
	atomic.AddUint64(&pagesFetched, 1)
}

func IncAICall(_ string) {
	atomic.AddUint64(&aiCalls, 1)
}

// ObserveSource records one source run. Outcomes are keyed "source:status".
func ObserveSource(source, status string, seconds float64) {
	if status == "" {
		status = "unknown"
	}
	statsMu.Lock()
	sourceOutcomes[source+":"+status]++
	statsMu.Unlock()
	if seconds <= 0 {
		return
	}
	atomic.AddUint64(&sourceCount, 1)
	atomic.AddUint64(&sourceNanos, uint64(seconds*1e9))
}

func IncError(errType, component string) {
	if errType == "" {
		errType = "unknown"
	}
	if component == "" {
		component = "unknown"
	}
	atomic.AddUint64(&errorsTotal, 1)
	statsMu.Lock()
	errorsByType[errType]++
	errorsByComponent[component]++
	statsMu.Unlock()
}

func Snapshot() StatsSnapshot {
	statsMu.Lock()
	vertCopy := copyMap(searchesByVert)
	outcomeCopy := copyMap(sourceOutcomes)
	errorsTypeCopy := copyMap(errorsByType)
	errorsComponentCopy := copyMap(errorsByComponent)
	statsMu.Unlock()

	count := atomic.LoadUint64(&sourceCount)
	avg := 0.0
	if count > 0 {
		avg = float64(atomic.LoadUint64(&sourceNanos)) / float64(count) / 1e9
	}

	return StatsSnapshot{
		Searches:          atomic.LoadUint64(&searches),
		CacheHits:         atomic.LoadUint64(&cacheHits),
		CacheMisses:       atomic.LoadUint64(&cacheMisses),
		PagesFetched:      atomic.LoadUint64(&pagesFetched),
		AICalls:           atomic.LoadUint64(&aiCalls),
		ErrorsTotal:       atomic.LoadUint64(&errorsTotal),
		SourceSecondsAvg:  avg,
		SearchesByVert:    vertCopy,
		SourceOutcomes:    outcomeCopy,
		ErrorsByType:      errorsTypeCopy,
		ErrorsByComponent: errorsComponentCopy,
	}
}

func copyMap(src map[string]uint64) map[string]uint64 {
	if len(src) == 0 {
		return map[string]uint64{}
	}
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
