package livepool

import (
	"testing"
	"time"

	"github.com/markdingo/proxybroker/internal/proxy"
)

func simple(host string, reqCount, errCount int, avgResp time.Duration, types ...proxy.TypeEntry) *proxy.SimpleProxy {
	return &proxy.SimpleProxy{
		Host:         host,
		Port:         80,
		Types:        types,
		RequestCount: reqCount,
		ErrorCount:   errCount,
		TotalRuntime: avgResp * time.Duration(max1(reqCount)),
		SampleCount:  max1(reqCount),
	}
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func TestPutNewcomerBelowThreshold(t *testing.T) {
	p := New(DefaultThresholds, NewLiveProxies())
	for i := 0; i < 10; i++ {
		p.Put(simple("1.1.1.1", 1, 0, time.Millisecond, proxy.TypeEntry{Protocol: proxy.HTTP}))
	}
	if p.Len() != 10 {
		t.Fatalf("expected 10 newcomers, got %d", p.Len())
	}
}

func TestPutVeteranEnteredAndUnhealthyDropped(t *testing.T) {
	p := New(DefaultThresholds, NewLiveProxies())
	healthy := simple("2.2.2.2", 10, 2, time.Second, proxy.TypeEntry{Protocol: proxy.HTTP})
	unhealthy := simple("3.3.3.3", 10, 6, time.Second, proxy.TypeEntry{Protocol: proxy.HTTP})

	p.Put(healthy)
	p.Put(unhealthy)

	if p.Len() != 1 {
		t.Fatalf("expected only the healthy veteran admitted, got pool len %d", p.Len())
	}
}

func TestGetPrefersNewcomersFIFO(t *testing.T) {
	p := New(DefaultThresholds, NewLiveProxies())
	first := simple("1.1.1.1", 1, 0, time.Millisecond, proxy.TypeEntry{Protocol: proxy.HTTP})
	second := simple("2.2.2.2", 1, 0, time.Millisecond, proxy.TypeEntry{Protocol: proxy.HTTP})
	p.Put(first)
	p.Put(second)

	// Pad the pool above MinQueue so Get doesn't fall through to the hand-off channel.
	for i := 0; i < DefaultThresholds.MinQueue; i++ {
		p.Put(simple("9.9.9.9", 10, 0, time.Millisecond, proxy.TypeEntry{Protocol: proxy.HTTP}))
	}

	got := p.Get("HTTP", 50*time.Millisecond)
	if got == nil || got.Host != "1.1.1.1" {
		t.Fatalf("expected FIFO newcomer first, got %+v", got)
	}
}

func TestGetFiltersByScheme(t *testing.T) {
	p := New(DefaultThresholds, NewLiveProxies())
	httpsOnly := simple("4.4.4.4", 10, 0, time.Millisecond, proxy.TypeEntry{Protocol: proxy.HTTPS})
	p.Put(httpsOnly)
	for i := 0; i < DefaultThresholds.MinQueue; i++ {
		p.Put(simple("9.9.9.9", 10, 0, time.Millisecond, proxy.TypeEntry{Protocol: proxy.HTTPS}))
	}

	got := p.Get("HTTP", 30*time.Millisecond)
	if got != nil {
		t.Fatalf("expected nil when no HTTP-scheme entry exists and hand-off is empty, got %+v", got)
	}
}

func TestGetDrainsHandoffWhenLow(t *testing.T) {
	handoff := NewLiveProxies()
	p := New(DefaultThresholds, handoff)
	sp := simple("5.5.5.5", 10, 0, time.Millisecond, proxy.TypeEntry{Protocol: proxy.HTTP})
	handoff <- sp

	got := p.Get("HTTP", 100*time.Millisecond)
	if got == nil || got.Host != "5.5.5.5" {
		t.Fatalf("expected hand-off entry when pool is below MinQueue, got %+v", got)
	}
}

func TestRemoveByHostPort(t *testing.T) {
	p := New(DefaultThresholds, NewLiveProxies())
	sp := simple("6.6.6.6", 10, 0, time.Millisecond, proxy.TypeEntry{Protocol: proxy.HTTP})
	p.Put(sp)

	removed := p.Remove("6.6.6.6", 80)
	if removed == nil {
		t.Fatal("expected Remove to find the entry")
	}
	if p.Len() != 0 {
		t.Fatalf("expected pool empty after remove, got %d", p.Len())
	}
	if p.Remove("6.6.6.6", 80) != nil {
		t.Fatal("expected second Remove to find nothing")
	}
}
