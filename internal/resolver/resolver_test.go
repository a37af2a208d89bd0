package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	r, err := New(Config{ResolvConfPath: "testdata/resolv.conf"})
	if err != nil || r == nil {
		t.Fatalf("New() failed unexpectedly: %v", err)
	}

	_, err = New(Config{ResolvConfPath: "testdata/does-not-exist"})
	if err == nil {
		t.Error("expected New() to fail with a non-existent resolv.conf")
	}
}

func TestIsIP(t *testing.T) {
	r, _ := New(Config{ResolvConfPath: "testdata/resolv.conf"})
	if !r.IsIP("1.2.3.4") {
		t.Error("expected 1.2.3.4 to parse as an IPv4 literal")
	}
	if r.IsIP("not-an-ip") {
		t.Error("expected not-an-ip to fail IsIP")
	}
	if r.IsIP("::1") {
		t.Error("expected an IPv6 literal to fail the IPv4-only IsIP check")
	}
}

func TestResolveShortCircuitsOnIPLiteral(t *testing.T) {
	r, _ := New(Config{ResolvConfPath: "testdata/resolv.conf"})
	if got := r.Resolve("5.6.7.8"); got != "5.6.7.8" {
		t.Errorf("expected Resolve of an IP literal to be a no-op, got %q", got)
	}
}

func TestGeoLookupSentinelWithoutDatabase(t *testing.T) {
	r, _ := New(Config{ResolvConfPath: "testdata/resolv.conf"})
	geo := r.GeoLookup("1.2.3.4")
	if geo.ISOCode != "--" || geo.CountryName != "Unknown" {
		t.Errorf("expected sentinel GeoData without a configured database, got %+v", geo)
	}
}

func TestExternalIPCachesAndFallsOverProbes(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("9.8.7.6\n"))
	}))
	defer good.Close()

	r, err := New(Config{
		ResolvConfPath:   "testdata/resolv.conf",
		Timeout:          time.Second,
		ExternalIPProbes: []string{bad.URL, good.URL},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ip, err := r.ExternalIP(context.Background())
	if err != nil {
		t.Fatalf("ExternalIP: %v", err)
	}
	if ip != "9.8.7.6" {
		t.Fatalf("expected 9.8.7.6, got %q", ip)
	}

	// Second call should hit the cache and not need either probe to still be up.
	bad.Close()
	good.Close()
	ip2, err := r.ExternalIP(context.Background())
	if err != nil || ip2 != ip {
		t.Fatalf("expected cached external IP %q, got %q err=%v", ip, ip2, err)
	}
}

func TestExternalIPAllProbesFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	r, err := New(Config{
		ResolvConfPath:   "testdata/resolv.conf",
		Timeout:          time.Second,
		ExternalIPProbes: []string{bad.URL},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.ExternalIP(context.Background()); err == nil {
		t.Fatal("expected ExternalIP to fail when every probe fails")
	}
}
