package db

import (
	"container/list"
	"database/sql"
	"sync"

	"github.com/Micos01/dir-analysis/internal/entry"
)

const dirCacheSize = 4096

type dirCacheEntry struct {
	key   string
	value entry.Dir
}

// dirCache is a small LRU of directory rows. Stores are immutable once
// finalized, so entries never go stale while the *sql.DB is open.
type dirCache struct {
	mu    sync.Mutex
	max   int
	ll    *list.List
	items map[string]*list.Element
}

func newDirCache(max int) *dirCache {
	return &dirCache{
		max:   max,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

func (c *dirCache) Get(key string) (entry.Dir, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(dirCacheEntry).value, true
	}
	return entry.Dir{}, false
}

func (c *dirCache) Set(key string, value entry.Dir) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value = dirCacheEntry{key: key, value: value}
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(dirCacheEntry{key: key, value: value})
	c.items[key] = el

	if c.ll.Len() > c.max {
		last := c.ll.Back()
		if last == nil {
			return
		}
		c.ll.Remove(last)
		delete(c.items, last.Value.(dirCacheEntry).key)
	}
}

func (c *dirCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

var dbDirCaches sync.Map // map[*sql.DB]*dirCache

func getDirCache(db *sql.DB) *dirCache {
	if db == nil {
		return nil
	}
	if existing, ok := dbDirCaches.Load(db); ok {
		return existing.(*dirCache)
	}
	cache := newDirCache(dirCacheSize)
	actual, _ := dbDirCaches.LoadOrStore(db, cache)
	return actual.(*dirCache)
}

// ReleaseCache drops the directory cache kept for db. Call it when the
// handle is closed.
func ReleaseCache(db *sql.DB) {
	dbDirCaches.Delete(db)
}
