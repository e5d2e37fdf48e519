package taillog

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minio/highwayhash"
)

// hotQueryKey seeds the query hash; the hash only buckets queries within one
// process, so the key is fixed.
var hotQueryKey = []byte("go-taillog/stats/hot-query-seed!")

const maxHotQueries = 1024

// Stats is a point-in-time snapshot of store statistics.
type Stats struct {
	Appends  uint64
	Gets     uint64
	Deletes  uint64
	Updates  uint64
	Searches uint64

	BytesAppended uint64

	AppendRate float64
	SearchRate float64

	NumKeys uint32
	Size    uint32
	Gap     uint64

	HotQueries []QueryStat
}

// QueryStat reports how often a search query (bucketed by hash) has been
// seen.
type QueryStat struct {
	Hash  uint64
	Count uint64
}

// StatsCollector collects and maintains statistics for the store.
type StatsCollector struct {
	appends  atomic.Uint64
	gets     atomic.Uint64
	deletes  atomic.Uint64
	updates  atomic.Uint64
	searches atomic.Uint64
	bytes    atomic.Uint64

	mu           sync.Mutex
	lastRateCalc time.Time
	lastAppends  uint64
	lastSearches uint64
	appendRate   float64
	searchRate   float64

	// Search queries bucketed by keyed 64-bit hash, so the collector never
	// retains query bytes.
	hotQueries map[uint64]*uint64
}

// NewStatsCollector creates a new statistics collector.
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		lastRateCalc: time.Now(),
		hotQueries:   make(map[uint64]*uint64),
	}
}

// RecordAppend records an append of n payload bytes.
func (sc *StatsCollector) RecordAppend(n int) {
	sc.appends.Add(1)
	sc.bytes.Add(uint64(n))
}

// RecordGet records a get operation.
func (sc *StatsCollector) RecordGet() { sc.gets.Add(1) }

// RecordDelete records a successful delete.
func (sc *StatsCollector) RecordDelete() { sc.deletes.Add(1) }

// RecordUpdate records an update operation.
func (sc *StatsCollector) RecordUpdate() { sc.updates.Add(1) }

// RecordSearch records a search and buckets the query into the hot-query
// table.
func (sc *StatsCollector) RecordSearch(query []byte) {
	sc.searches.Add(1)

	h := highwayhash.Sum64(query, hotQueryKey)
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if c, ok := sc.hotQueries[h]; ok {
		*c++
		return
	}
	if len(sc.hotQueries) < maxHotQueries {
		one := uint64(1)
		sc.hotQueries[h] = &one
	}
}

// Refresh recomputes the operation rates.
func (sc *StatsCollector) Refresh() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(sc.lastRateCalc).Seconds()
	if elapsed <= 0 {
		return
	}
	appends := sc.appends.Load()
	searches := sc.searches.Load()
	sc.appendRate = float64(appends-sc.lastAppends) / elapsed
	sc.searchRate = float64(searches-sc.lastSearches) / elapsed
	sc.lastAppends = appends
	sc.lastSearches = searches
	sc.lastRateCalc = now
}

// Snapshot builds a Stats value, folding in the store's tail-derived
// counters.
func (sc *StatsCollector) Snapshot(s *store) Stats {
	sc.mu.Lock()
	hot := make([]QueryStat, 0, len(sc.hotQueries))
	for h, c := range sc.hotQueries {
		hot = append(hot, QueryStat{Hash: h, Count: *c})
	}
	appendRate, searchRate := sc.appendRate, sc.searchRate
	sc.mu.Unlock()

	sort.Slice(hot, func(i, j int) bool { return hot[i].Count > hot[j].Count })
	if len(hot) > 10 {
		hot = hot[:10]
	}

	return Stats{
		Appends:       sc.appends.Load(),
		Gets:          sc.gets.Load(),
		Deletes:       sc.deletes.Load(),
		Updates:       sc.updates.Load(),
		Searches:      sc.searches.Load(),
		BytesAppended: sc.bytes.Load(),
		AppendRate:    appendRate,
		SearchRate:    searchRate,
		NumKeys:       s.NumKeys(),
		Size:          s.Size(),
		Gap:           s.Gap(),
		HotQueries:    hot,
	}
}
