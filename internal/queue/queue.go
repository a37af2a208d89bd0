// Package queue provides the unbounded multi-producer/multi-consumer candidate queue and the
// process-wide host:port dedup set used to admit scraped candidates exactly once to the checker
// pool.
package queue

import (
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// Candidate is a scraped, not-yet-validated proxy address together with the protocols its
// provider hinted it might support. An empty Protocols list means all protocols are candidates.
type Candidate struct {
	Host      string
	Port      uint16
	Protocols []string
}

// Key returns the host:port dedup key for this candidate.
func (c Candidate) Key() string {
	return c.Host + ":" + itoa(c.Port)
}

func itoa(p uint16) string {
	if p == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for p > 0 {
		i--
		buf[i] = byte('0' + p%10)
		p /= 10
	}
	return string(buf[i:])
}

// Queue is an unbounded FIFO of Candidate values protected by a condition variable, the same shape
// as a blocking MPMC channel but without a fixed capacity - new candidates are always accepted
// immediately by the provider runner, never blocking a scrape.
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []Candidate
	closed bool
}

// New constructs an empty Queue.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a candidate and wakes one waiting consumer.
func (q *Queue) Push(c Candidate) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, c)
	q.cond.Signal()
}

// Pop blocks until a candidate is available or the queue is closed, in which case ok is false.
func (q *Queue) Pop() (c Candidate, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Candidate{}, false
	}
	c = q.items[0]
	q.items = q.items[1:]
	return c, true
}

// Len returns the current number of queued candidates.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close unblocks all pending and future Pop calls.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Dedup is the process-wide host:port admission set. A single patrickmn/go-cache instance backs
// it so an optional TTL can bound long-running processes without an explicit eviction sweep -
// zero expiration (the default used here) means entries live for the process lifetime, matching
// the "no two candidates with identical (host, port) are ever handed to the checker" invariant.
type Dedup struct {
	cache *gocache.Cache
}

// NewDedup constructs a Dedup set with no expiration.
func NewDedup() *Dedup {
	return &Dedup{cache: gocache.New(gocache.NoExpiration, gocache.NoExpiration)}
}

// Admit returns true the first time it is called for a given key; every subsequent call for the
// same key returns false.
func (d *Dedup) Admit(key string) bool {
	// Add fails if the key is already present, checked and set under the cache's own lock, so
	// concurrent callers with the same key cannot both be admitted.
	return d.cache.Add(key, true, gocache.DefaultExpiration) == nil
}

// Len returns the number of distinct keys admitted so far.
func (d *Dedup) Len() int {
	return d.cache.ItemCount()
}
