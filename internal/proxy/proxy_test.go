package proxy

import (
	"testing"
	"time"

	"github.com/markdingo/proxybroker/internal/errkind"
)

func TestErrorRateZeroWhenNoRequests(t *testing.T) {
	p := New("1.2.3.4", 8080, DefaultGeoData(), time.Second)
	if p.ErrorRate() != 0 {
		t.Fatalf("expected 0, got %v", p.ErrorRate())
	}
}

func TestErrorRateAndAvgRespTime(t *testing.T) {
	p := New("1.2.3.4", 8080, DefaultGeoData(), time.Second)
	p.IncRequest()
	p.IncRequest()
	p.Fail("HTTP", errkind.BadStatus, "403")
	p.Sample(100 * time.Millisecond)
	p.Sample(300 * time.Millisecond)

	if got := p.ErrorRate(); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := p.AvgResponseTime(); got != 200*time.Millisecond {
		t.Fatalf("expected 200ms, got %v", got)
	}
}

func TestSimpleProjectionOrdering(t *testing.T) {
	p1 := New("1.1.1.1", 80, DefaultGeoData(), time.Second)
	p1.IncRequest()
	p1.Sample(100 * time.Millisecond)

	p2 := New("2.2.2.2", 80, DefaultGeoData(), time.Second)
	p2.IncRequest()
	p2.Sample(500 * time.Millisecond)

	s1, s2 := p1.Simple(), p2.Simple()
	if !Less(s1, s2) {
		t.Fatal("expected faster proxy to sort first")
	}
}

func TestSchemeDerivation(t *testing.T) {
	s := &SimpleProxy{Types: []TypeEntry{{Protocol: SOCKS5}}}
	if !s.ServesScheme("HTTP") || !s.ServesScheme("HTTPS") {
		t.Fatal("expected SOCKS5 proxy to serve both schemes")
	}

	s2 := &SimpleProxy{Types: []TypeEntry{{Protocol: HTTP, Level: High}}}
	if !s2.ServesScheme("HTTP") || s2.ServesScheme("HTTPS") {
		t.Fatal("expected plain HTTP proxy to serve only HTTP scheme")
	}
}

func TestEqualByHostPort(t *testing.T) {
	a := &SimpleProxy{Host: "1.2.3.4", Port: 80}
	b := &SimpleProxy{Host: "1.2.3.4", Port: 80}
	c := &SimpleProxy{Host: "1.2.3.4", Port: 81}
	if !Equal(a, b) {
		t.Fatal("expected equal")
	}
	if Equal(a, c) {
		t.Fatal("expected not equal")
	}
}
