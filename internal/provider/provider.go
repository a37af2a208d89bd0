// Package provider implements the §4.4 provider runner: it fetches provider pages (and, for
// providers that declare discover_links, crawls one level deeper), extracts IP:port candidates with
// a regex, and admits them to the shared candidate queue. It is grounded on
// drsoft-oss-proxyrotator's pool.LoadFile bufio.Scanner-based candidate scan, generalized to scan
// HTTP response bodies as well as files, and tracks each provider's reliability with a second
// bestserver.NewLatency manager the way the teacher's resolver tracks external-IP probe servers.
package provider

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/markdingo/proxybroker/internal/bestserver"
	"github.com/markdingo/proxybroker/internal/queue"
)

const me = "provider"

// DiscoverLinksFunc extracts additional same-provider URLs worth crawling from a fetched page body.
// Providers that don't crawl leave this nil.
type DiscoverLinksFunc func(body []byte, origin string) []string

// Provider is a declarative provider record per §4.4.
type Provider struct {
	Name           string
	SeedURL        string
	Protocols      []string
	Pattern        *regexp.Regexp // must have named groups "ip" and "port"; defaults per §4.4 if nil
	MaxDepth       int
	DiscoverLinks  DiscoverLinksFunc
}

// DefaultPattern is §4.4's default {ip}:{port} extraction regex.
var DefaultPattern = regexp.MustCompile(`(?P<ip>(?:\d+\.?){4}):(?P<port>\d+)`)

// Runner fans out to every registered Provider on a fixed tick, bounded by a concurrency
// semaphore, and admits extracted candidates to queue/dedup exactly once each.
type Runner struct {
	providers   []*Provider
	client      *http.Client
	sem         *semaphore.Weighted
	tick        time.Duration
	queue       *queue.Queue
	dedup       *queue.Dedup
	reliability bestserver.Manager // tracks which providers have recently been fast/successful
}

// Config controls Runner construction.
type Config struct {
	Providers   []*Provider
	Client      *http.Client
	Concurrency int64 // default 2, per §4.4/§5
	Tick        time.Duration // default 60s, per §4.4
}

// New constructs a Runner. Each provider run's success and duration is recorded in a latency
// manager; runOnce does not consult it and launches the providers in their list order.
func New(cfg Config, q *queue.Queue, dedup *queue.Dedup) (*Runner, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 60 * time.Second
	}
	if cfg.Client == nil {
		// HTTP-client construction for scraping pages is an external collaborator per §1; this
		// default exists only so Run is usable without one. CheckRedirect returning
		// ErrUseLastResponse disables net/http's automatic redirect following so fetch's manual
		// single-redirect logic (§4.4 step 1 preamble) is what actually executes the follow.
		cfg.Client = &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	servers := make([]bestserver.Server, len(cfg.Providers))
	names := make([]string, len(cfg.Providers))
	for i, p := range cfg.Providers {
		names[i] = p.Name
	}
	for i, s := range bestserver.ServersFromNames(names) {
		servers[i] = s
	}
	var mgr bestserver.Manager
	if len(servers) > 0 {
		m, err := bestserver.NewLatency(bestserver.DefaultLatencyConfig, servers)
		if err != nil {
			return nil, err
		}
		mgr = m
	}

	return &Runner{
		providers:   cfg.Providers,
		client:      cfg.Client,
		sem:         semaphore.NewWeighted(cfg.Concurrency),
		tick:        cfg.Tick,
		queue:       q,
		dedup:       dedup,
		reliability: mgr,
	}, nil
}

// Run fans out every tick until ctx is cancelled. Each provider fetch is independent - a failure in
// one provider never aborts the loop, per §7's "provider errors yield zero candidates that cycle".
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	r.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range r.providers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer r.sem.Release(1)
			r.runProvider(ctx, p)
		}()
	}
	wg.Wait()
}

func (r *Runner) runProvider(ctx context.Context, p *Provider) {
	start := time.Now()
	_, err := r.crawl(ctx, p)
	if r.reliability != nil {
		for _, s := range r.reliability.Servers() {
			if s.Name() == p.Name {
				r.reliability.Result(s, err == nil, time.Now(), time.Since(start))
				break
			}
		}
	}
}

// crawl fetches p's seed URL, following at most one redirect, extracts candidates, and - if p
// declares DiscoverLinks and depth allows - crawls the discovered URLs one level deeper. It returns
// the number of candidates admitted.
func (r *Runner) crawl(ctx context.Context, p *Provider) (int, error) {
	seen := make(map[string]bool)
	admitted := 0

	var visit func(rawURL string, depth int) error
	visit = func(rawURL string, depth int) error {
		if seen[rawURL] {
			return nil
		}
		seen[rawURL] = true

		body, origin, err := r.fetch(ctx, rawURL)
		if err != nil {
			return err
		}

		admitted += r.extract(p, body)

		if depth < p.MaxDepth && p.DiscoverLinks != nil {
			for _, link := range p.DiscoverLinks(body, origin) {
				if !seen[link] {
					if err := visit(link, depth+1); err != nil {
						continue
					}
				}
			}
		}
		return nil
	}

	err := visit(p.SeedURL, 0)
	return admitted, err
}

// fetch GETs rawURL, following up to one HTTP redirect per Location header (§4.4 step 1 preamble),
// and returns the body along with the scheme://host origin used by DiscoverLinks.
func (r *Runner) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if loc := resp.Header.Get("Location"); loc != "" && resp.StatusCode >= 300 && resp.StatusCode < 400 {
		req2, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
		if err != nil {
			return nil, "", err
		}
		resp2, err := r.client.Do(req2)
		if err != nil {
			return nil, "", err
		}
		defer resp2.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp2.Body, 8<<20))
		if err != nil {
			return nil, "", err
		}
		return body, u.Scheme + "://" + u.Host, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, "", err
	}
	return body, u.Scheme + "://" + u.Host, nil
}

// extract applies p's pattern (or the default) to body and admits each valid candidate to the
// shared queue/dedup, per §4.4 step 2. Invalid ports are skipped.
func (r *Runner) extract(p *Provider, body []byte) int {
	pattern := p.Pattern
	if pattern == nil {
		pattern = DefaultPattern
	}
	ipIdx := pattern.SubexpIndex("ip")
	portIdx := pattern.SubexpIndex("port")
	if ipIdx < 0 || portIdx < 0 {
		return 0
	}

	admitted := 0
	for _, m := range pattern.FindAllStringSubmatch(string(body), -1) {
		host := m[ipIdx]
		portNum, err := strconv.Atoi(m[portIdx])
		if err != nil || portNum <= 0 || portNum > 65535 {
			continue
		}
		c := queue.Candidate{Host: host, Port: uint16(portNum), Protocols: p.Protocols}
		if r.dedup.Admit(c.Key()) {
			r.queue.Push(c)
			admitted++
		}
	}
	return admitted
}

// ScanCandidates scans plain-text "host:port" lines - the file-input format of §6 - reusing the
// same regex-driven extraction the provider runner uses for HTTP bodies.
func ScanCandidates(body []byte, pattern *regexp.Regexp) []queue.Candidate {
	if pattern == nil {
		pattern = DefaultPattern
	}
	ipIdx := pattern.SubexpIndex("ip")
	portIdx := pattern.SubexpIndex("port")
	if ipIdx < 0 || portIdx < 0 {
		return nil
	}

	var out []queue.Candidate
	for _, m := range pattern.FindAllStringSubmatch(string(body), -1) {
		portNum, err := strconv.Atoi(m[portIdx])
		if err != nil || portNum <= 0 || portNum > 65535 {
			continue
		}
		out = append(out, queue.Candidate{Host: m[ipIdx], Port: uint16(portNum)})
	}
	return out
}
