// Package judge initializes and health-checks the judge endpoints used to classify proxy
// anonymity: one bucket of working judges per scheme (HTTP, HTTPS, SMTP), probed once at startup
// and read-only thereafter.
package judge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/markdingo/proxybroker/internal/proxy"
)

const me = "judge"

// Scheme names one of the three judge transports.
type Scheme string

const (
	HTTPScheme  Scheme = "HTTP"
	HTTPSScheme Scheme = "HTTPS"
	SMTPScheme  Scheme = "SMTP"
)

// Judge is a single probed (or trivially-working, for SMTP) endpoint along with the via/proxy
// mark baseline captured when it was fetched directly, without a proxy in front of it.
type Judge struct {
	URL    string
	Scheme Scheme
	Host   string
	IP     string
	Marks  map[string]int
}

// Registry owns the per-scheme judge buckets and the disabled-protocol set.
type Registry struct {
	externalIP string
	client     *http.Client
	sem        *semaphore.Weighted

	mu       sync.RWMutex
	buckets  map[Scheme][]*Judge
	disabled map[proxy.Protocol]bool
	ready    chan struct{}
	rng      *rand.Rand
}

// NewRegistry constructs a Registry. externalIP is the address every HTTP/HTTPS judge response
// must echo back for that judge to be considered working. concurrency bounds how many judge
// probes run at once (default 20 per §4.5/§5).
func NewRegistry(externalIP string, client *http.Client, concurrency int64) *Registry {
	if concurrency <= 0 {
		concurrency = 20
	}
	return &Registry{
		externalIP: externalIP,
		client:     client,
		sem:        semaphore.NewWeighted(concurrency),
		buckets:    make(map[Scheme][]*Judge),
		disabled:   make(map[proxy.Protocol]bool),
		ready:      make(chan struct{}),
		rng:        rand.New(rand.NewSource(1)),
	}
}

// ExternalIP returns the external IP the registry was constructed with - the literal the checker's
// anonymity scoring looks for in a judge's response body.
func (r *Registry) ExternalIP() string {
	return r.externalIP
}

// SchemeFor maps a protocol to the judge scheme the checker needs to validate it, per §4.5's
// get_judge selection rule.
func SchemeFor(p proxy.Protocol) Scheme {
	switch p {
	case proxy.HTTPS:
		return HTTPSScheme
	case proxy.Connect25:
		return SMTPScheme
	default:
		return HTTPScheme
	}
}

// Init probes every seed judge for the schemes needed by the requested protocols. Any scheme that
// ends up with an empty bucket disables every requested protocol that depends on it; if every
// requested protocol ends up disabled, Init returns an error - the process must terminate per
// §4.5/§7.
func (r *Registry) Init(ctx context.Context, requested []proxy.Protocol, httpSeeds, smtpSeeds []string) error {
	needed := make(map[Scheme]bool)
	for _, p := range requested {
		needed[SchemeFor(p)] = true
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	probe := func(rawURL string, scheme Scheme) {
		defer wg.Done()
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer r.sem.Release(1)

		j, err := r.probeHTTP(ctx, rawURL, scheme)
		if err != nil {
			return
		}
		mu.Lock()
		r.buckets[scheme] = append(r.buckets[scheme], j)
		mu.Unlock()
	}

	if needed[HTTPScheme] {
		for _, seed := range httpSeeds {
			wg.Add(1)
			go probe(seed, HTTPScheme)
		}
	}
	if needed[HTTPSScheme] {
		for _, seed := range httpSeeds {
			wg.Add(1)
			go probe(httpsVariant(seed), HTTPSScheme)
		}
	}
	if needed[SMTPScheme] {
		for _, seed := range smtpSeeds {
			host := seed
			r.buckets[SMTPScheme] = append(r.buckets[SMTPScheme], &Judge{URL: seed, Scheme: SMTPScheme, Host: host})
		}
	}

	wg.Wait()
	close(r.ready)

	allDisabled := true
	for scheme := range needed {
		if len(r.buckets[scheme]) == 0 {
			r.disableScheme(scheme, requested)
		}
	}
	for _, p := range requested {
		if !r.disabled[p] {
			allDisabled = false
		}
	}
	if allDisabled {
		return fmt.Errorf("%s: no working judge available for any requested protocol", me)
	}
	return nil
}

// disableScheme marks every requested protocol that maps to scheme as disabled. The
// disabled-protocol set only grows, matching the §5 monotonicity invariant.
func (r *Registry) disableScheme(scheme Scheme, requested []proxy.Protocol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range requested {
		if SchemeFor(p) == scheme {
			r.disabled[p] = true
		}
	}
}

// IsDisabled reports whether a protocol has been disabled due to a missing judge scheme.
func (r *Registry) IsDisabled(p proxy.Protocol) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disabled[p]
}

// GetJudge returns a uniformly random working judge for the scheme protocol maps to, waiting up to
// waitCeiling for the startup probe to complete.
func (r *Registry) GetJudge(ctx context.Context, p proxy.Protocol, waitCeiling time.Duration) (*Judge, error) {
	select {
	case <-r.ready:
	case <-time.After(waitCeiling):
		return nil, fmt.Errorf("%s: timed out waiting for judge buckets to populate", me)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	scheme := SchemeFor(p)
	r.mu.RLock()
	defer r.mu.RUnlock()
	bucket := r.buckets[scheme]
	if len(bucket) == 0 {
		return nil, fmt.Errorf("%s: no working judge for scheme %s", me, scheme)
	}
	return bucket[r.rng.Intn(len(bucket))], nil
}

func httpsVariant(rawURL string) string {
	return "https://" + strings.TrimPrefix(strings.TrimPrefix(rawURL, "http://"), "https://")
}

// probeHTTP fetches rawURL directly (no proxy in front) and checks that the body contains the
// external IP literal, recording the via/proxy substring counts as the judge's baseline marks.
func (r *Registry) probeHTTP(ctx context.Context, rawURL string, scheme Scheme) (*Judge, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s returned status %d", me, rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(string(body))
	if !strings.Contains(lower, strings.ToLower(r.externalIP)) {
		return nil, errors.New(me + ": external IP not present in judge body")
	}

	marks := map[string]int{
		"via":   strings.Count(lower, "via"),
		"proxy": strings.Count(strings.ReplaceAll(lower, "proxy-rs", ""), "proxy"),
	}

	return &Judge{URL: rawURL, Scheme: scheme, Host: u.Hostname(), Marks: marks}, nil
}
