// Package livepool implements the §4.9 live proxy pool used by serve mode: a max-heap of veteran
// SimpleProxy entries ordered by (error_rate asc, avg_response_time asc), a FIFO newcomer queue for
// entries still gathering statistics, and a bounded hand-off channel from the checker. It is
// structurally grounded on internal/bestserver's package shape - an opaque-entry manager behind a
// small mutex, doc.go-style package documentation - but its selection algorithm is the spec's own
// heap + newcomer-FIFO + hand-off design (§4.9), built on container/heap; see DESIGN.md for why
// this one component reaches for the standard library instead of a third-party collection.
package livepool

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/markdingo/proxybroker/internal/proxy"
)

// Thresholds bundles the admission/eviction constants §3 defines for the pool.
type Thresholds struct {
	MinReqProxy    int
	MaxErrorRate   float64
	MaxAvgRespTime time.Duration
	MinQueue       int
}

// DefaultThresholds are the spec's §3 defaults.
var DefaultThresholds = Thresholds{
	MinReqProxy:    5,
	MaxErrorRate:   0.5,
	MaxAvgRespTime: 8 * time.Second,
	MinQueue:       5,
}

// LiveProxies is the checker->pool hand-off channel, capacity 20 per §4.9/§5/§9 ("backup/server's
// proxy_pool.rs confirms the LIVE_PROXIES hand-off channel naming").
type LiveProxies chan *proxy.SimpleProxy

// NewLiveProxies constructs a hand-off channel at the spec's default capacity.
func NewLiveProxies() LiveProxies {
	return make(LiveProxies, 20)
}

// proxyHeap is a container/heap.Interface over SimpleProxy pointers ordered by proxy.Less, giving
// Pop the current lowest-error, fastest veteran - the spec's "max-heap keyed by the ordering"
// description, realized as a min-heap over that same ordering (smaller is "better").
type proxyHeap []*proxy.SimpleProxy

func (h proxyHeap) Len() int            { return len(h) }
func (h proxyHeap) Less(i, j int) bool  { return proxy.Less(h[i], h[j]) }
func (h proxyHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *proxyHeap) Push(x interface{}) { *h = append(*h, x.(*proxy.SimpleProxy)) }
func (h *proxyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Pool is the live proxy pool. Its critical sections are all O(1) or O(n) in pool size and never
// block on I/O, per §5's shared-mutable-state rules.
type Pool struct {
	thresholds Thresholds
	handoff    LiveProxies

	mu        sync.Mutex
	heap      proxyHeap
	newcomers []*proxy.SimpleProxy
}

// New constructs a Pool drawing overflow admissions from handoff.
func New(thresholds Thresholds, handoff LiveProxies) *Pool {
	return &Pool{thresholds: thresholds, handoff: handoff}
}

// Put implements §4.9's put: a proxy still gathering stats goes to the newcomer FIFO; a proxy that
// has exceeded the health thresholds is dropped; otherwise it is pushed into the veteran heap.
func (p *Pool) Put(sp *proxy.SimpleProxy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.put(sp)
}

func (p *Pool) put(sp *proxy.SimpleProxy) {
	if sp.RequestCount < p.thresholds.MinReqProxy {
		p.newcomers = append(p.newcomers, sp)
		return
	}
	if sp.ErrorRate() > p.thresholds.MaxErrorRate || sp.AvgRespTime() > p.thresholds.MaxAvgRespTime {
		return
	}
	heap.Push(&p.heap, sp)
}

// Get implements §4.9's get selection algorithm for the given client-facing scheme ("HTTP" or
// "HTTPS"). It waits up to waitCeiling on the hand-off channel when the pool is running low or has
// nothing matching - the bounded-wait resolution of the Open Question in §9 (the source's import
// could loop forever; this spec requires a finite wait, returning nil on expiry).
func (p *Pool) Get(scheme string, waitCeiling time.Duration) *proxy.SimpleProxy {
	p.mu.Lock()
	low := p.heap.Len()+len(p.newcomers) < p.thresholds.MinQueue
	p.mu.Unlock()

	if low {
		if sp := p.drainHandoff(scheme, waitCeiling); sp != nil {
			return sp
		}
	}

	p.mu.Lock()
	if len(p.newcomers) > 0 {
		sp := p.newcomers[0]
		p.newcomers = p.newcomers[1:]
		p.mu.Unlock()
		return sp
	}

	var scratch []*proxy.SimpleProxy
	var found *proxy.SimpleProxy
	for p.heap.Len() > 0 {
		sp := heap.Pop(&p.heap).(*proxy.SimpleProxy)
		if sp.ServesScheme(scheme) {
			found = sp
			break
		}
		scratch = append(scratch, sp)
	}
	for _, sp := range scratch {
		heap.Push(&p.heap, sp)
	}
	p.mu.Unlock()

	if found != nil {
		return found
	}
	return p.drainHandoff(scheme, waitCeiling)
}

// drainHandoff pulls entries off the checker hand-off channel until one matches scheme or
// waitCeiling elapses; non-matching entries are put back into the pool, per §4.9 step 1/3.
func (p *Pool) drainHandoff(scheme string, waitCeiling time.Duration) *proxy.SimpleProxy {
	deadline := time.NewTimer(waitCeiling)
	defer deadline.Stop()
	for {
		select {
		case sp, ok := <-p.handoff:
			if !ok {
				return nil
			}
			if sp.ServesScheme(scheme) {
				return sp
			}
			p.Put(sp)
		case <-deadline.C:
			return nil
		}
	}
}

// Remove implements §4.9's remove: an O(n) linear scan of both stores for (host, port).
func (p *Pool) Remove(host string, port uint16) *proxy.SimpleProxy {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := &proxy.SimpleProxy{Host: host, Port: port}
	for i, sp := range p.newcomers {
		if proxy.Equal(sp, target) {
			p.newcomers = append(p.newcomers[:i], p.newcomers[i+1:]...)
			return sp
		}
	}
	for i, sp := range p.heap {
		if proxy.Equal(sp, target) {
			removed := heap.Remove(&p.heap, i).(*proxy.SimpleProxy)
			return removed
		}
	}
	return nil
}

// Len returns the combined count of veteran and newcomer entries, used by Get's low-queue check
// and available for reporting.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heap.Len() + len(p.newcomers)
}

// Name implements the reporter interface.
func (p *Pool) Name() string {
	return "Live Pool"
}

// Report implements the reporter interface with a one-line snapshot of pool occupancy.
func (p *Pool) Report(resetCounters bool) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("veterans=%d newcomers=%d handoff=%d/%d",
		p.heap.Len(), len(p.newcomers), len(p.handoff), cap(p.handoff))
}
