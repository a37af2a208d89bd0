package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/markdingo/proxybroker/internal/queue"
)

func TestExtractAdmitsValidCandidatesOnly(t *testing.T) {
	q := queue.New()
	dedup := queue.NewDedup()
	r := &Runner{queue: q, dedup: dedup}

	body := []byte("1.2.3.4:8080 junk 5.6.7.8:99999 more 9.9.9.9:80")
	p := &Provider{Name: "test"}
	n := r.extract(p, body)
	if n != 2 {
		t.Fatalf("expected 2 valid candidates admitted, got %d", n)
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 queued, got %d", q.Len())
	}
}

func TestExtractDedupsAcrossCalls(t *testing.T) {
	q := queue.New()
	dedup := queue.NewDedup()
	r := &Runner{queue: q, dedup: dedup}
	p := &Provider{Name: "test"}

	r.extract(p, []byte("1.2.3.4:8080"))
	r.extract(p, []byte("1.2.3.4:8080"))
	if q.Len() != 1 {
		t.Fatalf("expected dedup to admit the candidate only once, got %d", q.Len())
	}
}

func TestRunnerCrawlFollowsOneRedirectAndExtracts(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("1.2.3.4:8080"))
	}))
	defer final.Close()

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, final.URL, http.StatusFound)
	}))
	defer redirecting.Close()

	q := queue.New()
	dedup := queue.NewDedup()
	r, err := New(Config{
		Providers: []*Provider{{Name: "test", SeedURL: redirecting.URL}},
	}, q, dedup)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := r.crawl(ctx, r.providers[0])
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 candidate admitted after following redirect, got %d", n)
	}
}

func TestScanCandidatesIgnoresUnmatchedLines(t *testing.T) {
	body := []byte("1.2.3.4:8080\nnot a proxy line\n5.6.7.8:80\n")
	candidates := ScanCandidates(body, nil)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
}
