package wavemodel

import (
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// cacheCapacity bounds the LRU well above the realistic hypocenter depth
// range (0-700km); eviction is a safety valve, not steady-state behavior.
const cacheCapacity = 256

// preseedDepths are built eagerly at cache construction per spec.md §4.1.
var preseedDepths = []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// Cache is the process-wide depth→WaveModel cache. Builds for a given depth
// are coalesced across concurrent callers via singleflight so only one
// build runs per depth at a time; callers arriving while it runs wait for
// that build and share its result.
type Cache struct {
	lru   *lru.Cache[int, *WaveModel]
	group singleflight.Group
}

// NewCache constructs the cache and eagerly builds the preseeded depths.
func NewCache() *Cache {
	l, err := lru.New[int, *WaveModel](cacheCapacity)
	if err != nil {
		// Only returns an error for a non-positive capacity, which is a
		// compile-time constant here.
		panic(err)
	}
	c := &Cache{lru: l}
	for _, d := range preseedDepths {
		c.lru.Add(d, Build(d))
	}
	return c
}

// Get returns the WaveModel for depth, building and caching it on demand.
func (c *Cache) Get(depth int) *WaveModel {
	if w, ok := c.lru.Get(depth); ok {
		return w
	}

	key := strconv.Itoa(depth)
	v, _, _ := c.group.Do(key, func() (any, error) {
		if w, ok := c.lru.Get(depth); ok {
			return w, nil
		}
		w := Build(depth)
		c.lru.Add(depth, w)
		return w, nil
	})
	return v.(*WaveModel)
}
