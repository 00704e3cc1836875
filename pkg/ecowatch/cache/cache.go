package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/clock"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/metrics"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/record"
	"k8s.io/klog/v2"
)

// DefaultTTL is used when a non-positive TTL is given
const DefaultTTL = 300 * time.Second

// WindowCache keeps the readings of the last TTL in memory, ordered by
// timestamp and indexed by room. Expired readings are pruned lazily by the
// next insert; there is no background eviction.
//
// One mutex guards the ordered records and the room index together, so a
// caller never sees one without the other being up to date.
type WindowCache struct {
	mu      sync.Mutex
	records []record.Record            // sorted by Timestamp asc
	byRoom  map[string][]record.Record // same order as records
	ttl     time.Duration
	clock   clock.Clock
}

type pruneStats struct {
	evicted int
	cutoff  time.Time
	size    int
}

// New creates a cache retaining readings newer than now-ttl.
// A nil clock means wall-clock time.
func New(ttl time.Duration, clk clock.Clock) *WindowCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &WindowCache{
		byRoom: make(map[string][]record.Record),
		ttl:    ttl,
		clock:  clk,
	}
}

// InsertOne adds a single record, then prunes and reindexes.
// The record is placed by timestamp, so a late record keeps the order intact.
func (c *WindowCache) InsertOne(r record.Record) {
	stats := c.mutate(func() {
		// after any equal timestamps, matching a stable sort of an append
		i := sort.Search(len(c.records), func(i int) bool {
			return c.records[i].Timestamp.After(r.Timestamp)
		})
		c.records = append(c.records, record.Record{})
		copy(c.records[i+1:], c.records[i:])
		c.records[i] = r
	})
	c.observe(stats)
}

// InsertMany adds a batch whose timestamps may be out of order or older than
// what is cached, re-sorts everything, then prunes and reindexes.
func (c *WindowCache) InsertMany(rs []record.Record) {
	stats := c.mutate(func() {
		c.records = append(c.records, rs...)
		sort.SliceStable(c.records, func(i, j int) bool {
			return c.records[i].Timestamp.Before(c.records[j].Timestamp)
		})
	})
	c.observe(stats)
}

// GetByRoom returns a copy of the room's records in timestamp order.
// An unknown room yields an empty slice.
func (c *WindowCache) GetByRoom(room string) []record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket := c.byRoom[room]
	out := make([]record.Record, len(bucket))
	copy(out, bucket)
	return out
}

// GetByRange returns a copy of the records with start <= timestamp <= end.
func (c *WindowCache) GetByRange(start, end time.Time) []record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]record.Record, 0)
	// linear scan from the front; sorted, so stop at the first record past end
	for _, r := range c.records {
		if r.Timestamp.After(end) {
			break
		}
		if !r.Timestamp.Before(start) {
			out = append(out, r)
		}
	}
	return out
}

// GetAll returns a copy of every retained record in timestamp order
func (c *WindowCache) GetAll() []record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]record.Record, len(c.records))
	copy(out, c.records)
	return out
}

// Size returns the number of records retained as of the last insert
func (c *WindowCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Rooms returns the rooms that currently have records, sorted by name
func (c *WindowCache) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := make([]string, 0, len(c.byRoom))
	for room := range c.byRoom {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// TTL returns the retention horizon
func (c *WindowCache) TTL() time.Duration {
	return c.ttl
}

func (c *WindowCache) String() string {
	return fmt.Sprintf("WindowCache(records=%d, ttl=%s)", c.Size(), c.ttl)
}

// mutate runs insert, prune and reindex as one critical section.
func (c *WindowCache) mutate(insert func()) pruneStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	insert()
	stats := c.prune()
	c.rebuildIndex()
	stats.size = len(c.records)
	// under the lock, the gauge tracks the last committed size
	metrics.CacheRecords.Set(float64(stats.size))
	return stats
}

// prune drops records older than now-ttl from the front. Requires c.records sorted.
func (c *WindowCache) prune() pruneStats {
	cutoff := c.clock.Now().Add(-c.ttl)
	idx := 0
	for idx < len(c.records) && c.records[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		// copy so the evicted prefix does not pin the old backing array
		c.records = append([]record.Record(nil), c.records[idx:]...)
	}
	return pruneStats{evicted: idx, cutoff: cutoff}
}

func (c *WindowCache) rebuildIndex() {
	clear(c.byRoom)
	for _, r := range c.records {
		c.byRoom[r.Room] = append(c.byRoom[r.Room], r)
	}
}

// observe reports evictions of a mutation. Called without the lock held.
func (c *WindowCache) observe(stats pruneStats) {
	if stats.evicted > 0 {
		metrics.CacheEvicted.Add(float64(stats.evicted))
		klog.V(3).InfoS("Pruned expired records",
			"evicted", stats.evicted,
			"cutoff", stats.cutoff,
			"retained", stats.size)
	}
}
