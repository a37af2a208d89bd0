package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/http2"

	"github.com/markdingo/proxybroker/internal/checker"
	"github.com/markdingo/proxybroker/internal/judge"
	"github.com/markdingo/proxybroker/internal/logging"
	"github.com/markdingo/proxybroker/internal/provider"
	"github.com/markdingo/proxybroker/internal/proxy"
	"github.com/markdingo/proxybroker/internal/queue"
	"github.com/markdingo/proxybroker/internal/resolver"
	"github.com/markdingo/proxybroker/internal/tlsutil"
)

// broker bundles the collaborators every subcommand needs: a resolver for hostname/geo/external-IP
// lookups, a judge registry for anonymity scoring, the candidate queue/dedup pair the provider
// runner feeds, and the provider runner itself. grab never builds a checker; find and serve do.
type broker struct {
	log      *logging.Logger
	resolver *resolver.Resolver
	registry *judge.Registry
	queue    *queue.Queue
	dedup    *queue.Dedup
	runner   *provider.Runner
}

// newHTTPClient builds the shared HTTP client used for judge probing and provider scraping,
// following trustydns-proxy/main.go's tlsutil+http2.ConfigureTransport construction.
func newHTTPClient(timeout time.Duration) (*http.Client, error) {
	tlsConfig, err := tlsutil.NewClientTLSConfig(true, nil, "", "")
	if err != nil {
		return nil, err
	}
	tr := &http.Transport{TLSClientConfig: tlsConfig}
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}
	return &http.Client{Timeout: timeout, Transport: tr}, nil
}

// buildBroker resolves the external IP, constructs and initializes the judge registry, and starts
// the provider runner feeding the shared queue. requested is the set of protocols the caller needs
// judges for (empty for grab, which never validates).
func buildBroker(ctx context.Context, cfg *config, requested []proxy.Protocol) (*broker, error) {
	log := logging.New(stderr, logging.ParseLevel(cfg.logLevel))

	res, err := resolver.New(resolver.Config{
		GeoIPPath:        cfg.geoIPPath,
		ResolvConfPath:   cfg.resolvConfPath,
		Timeout:          cfg.timeout,
		ExternalIPProbes: consts.ExternalIPProbes,
	})
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}

	extIP, err := res.ExternalIP(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot obtain external IP: %w", err)
	}
	log.Infof("external IP is %s", extIP)

	client, err := newHTTPClient(cfg.timeout)
	if err != nil {
		return nil, err
	}

	registry := judge.NewRegistry(extIP, client, int64(consts.DefaultJudgeConcurrency))
	if len(requested) > 0 {
		if err := registry.Init(ctx, requested, consts.JudgeSeeds, consts.SMTPJudgeSeeds); err != nil {
			return nil, err
		}
	}

	q := queue.New()
	dedup := queue.NewDedup()

	tick, _ := time.ParseDuration(consts.DefaultProviderTick)
	runner, err := provider.New(provider.Config{
		Providers:   defaultProviders(),
		Client:      client,
		Concurrency: int64(consts.DefaultProviderConcurrency),
		Tick:        tick,
	}, q, dedup)
	if err != nil {
		return nil, err
	}

	for _, path := range cfg.files.Args() {
		admitFile(path, q, dedup, log)
	}

	return &broker{log: log, resolver: res, registry: registry, queue: q, dedup: dedup, runner: runner}, nil
}

// admitFile reads a plain-text candidate file per §6's file input format and admits its
// candidates to the shared queue, the same one-shot file-seeding step find/serve support
// alongside provider scraping.
func admitFile(path string, q *queue.Queue, dedup *queue.Dedup, log *logging.Logger) {
	body, err := os.ReadFile(path)
	if err != nil {
		log.Warnf("cannot read candidate file %s: %v", path, err)
		return
	}
	for _, c := range provider.ScanCandidates(body, nil) {
		if dedup.Admit(c.Key()) {
			q.Push(c)
		}
	}
}

// newChecker constructs a Checker from the shared validation flags, used by both find and serve.
func newChecker(b *broker, cfg *config) *checker.Checker {
	return checker.New(b.registry, checker.Config{
		MaxTries:         cfg.maxTries,
		SupportCookies:   cfg.supportCookies,
		SupportReferer:   cfg.supportReferer,
		VerifyTLS:        cfg.verifyTLS,
		JudgeWaitCeiling: 15 * time.Second,
	})
}

// parseProtocols converts the --types flag values into proxy.Protocol. Every value is kept as
// given; no value is checked against the known protocol names.
func parseProtocols(values []string) []proxy.Protocol {
	var out []proxy.Protocol
	for _, v := range values {
		out = append(out, proxy.Protocol(v))
	}
	return out
}

func parseLevels(values []string) []proxy.Level {
	var out []proxy.Level
	for _, v := range values {
		out = append(out, proxy.Level(v))
	}
	return out
}
