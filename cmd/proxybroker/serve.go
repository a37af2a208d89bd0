package main

import (
	"context"
	"flag"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/markdingo/proxybroker/internal/checker"
	"github.com/markdingo/proxybroker/internal/gateway"
	"github.com/markdingo/proxybroker/internal/livepool"
	"github.com/markdingo/proxybroker/internal/osutil"
	"github.com/markdingo/proxybroker/internal/proxy"
	"github.com/markdingo/proxybroker/internal/queue"
	"github.com/markdingo/proxybroker/internal/reporter"
)

// runServe implements the serve subcommand: continuously validate discovered candidates, hand
// each newly-working proxy to the live pool, and run the forwarding gateway against that pool
// until a termination signal arrives.
func runServe(fs *flag.FlagSet) int {
	protocols := parseProtocols(cfg.types.Args())
	if len(protocols) == 0 {
		return fatal("serve requires at least one --types value")
	}
	levels := parseLevels(cfg.levels.Args())
	countries := cfg.countries.Args()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := buildBroker(ctx, cfg, protocols)
	if err != nil {
		return fatal(err)
	}
	chk := newChecker(b, cfg)

	handoff := livepool.NewLiveProxies()
	pool := livepool.New(livepool.DefaultThresholds, handoff)

	listenAddress := net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
	gw := gateway.New(gateway.Config{
		ListenAddress: listenAddress,
		DialTimeout:   cfg.timeout,
	}, pool)

	errorChan := make(chan error, 4)
	wg := &sync.WaitGroup{}

	// Unblock a Pop() call parked on an empty queue once ctx is cancelled, so runValidationLoop
	// exits promptly on shutdown instead of waiting on the next provider tick.
	go func() {
		<-ctx.Done()
		b.queue.Close()
	}()

	go b.runner.Run(ctx)
	go runValidationLoop(ctx, b, chk, protocols, levels, countries, handoff)

	b.log.Infof("serve: waiting for the pool to fill before listening on %s", listenAddress)
	if err := gw.Start(errorChan, wg); err != nil {
		return fatal(err)
	}
	b.log.Infof("serve: listening on %s", listenAddress)

	// Constrain only after the privileged listener is already bound, mirroring
	// trustydns-proxy/main.go's ordering for its HTTP listeners.
	if err := osutil.Constrain(cfg.setuidName, cfg.setgidName, cfg.chrootDir); err != nil {
		cancel()
		gw.Stop()
		return fatal(err)
	}
	b.log.Infof("constraints: %s", osutil.ConstraintReport())

	reporters := []reporter.Reporter{pool, gw}
	nextStatusIn := nextInterval(time.Now(), cfg.statusInterval)

Running:
	for {
		select {
		case s := <-stopChannel:
			b.log.Infof("signal %s, shutting down", s)
			break Running
		case err := <-errorChan:
			cancel()
			return fatal(err)
		case <-time.After(nextStatusIn):
			statusReport(b, "Status", true, reporters)
			nextStatusIn = nextInterval(time.Now(), cfg.statusInterval)
		}
	}

	cancel()
	gw.Stop()
	wg.Wait()
	statusReport(b, "Status", true, reporters)
	return 0
}

// nextInterval returns the duration until the next modulo boundary of interval, so status
// reports land on round clock ticks rather than drifting off the process start time.
func nextInterval(now time.Time, interval time.Duration) time.Duration {
	return now.Truncate(interval).Add(interval).Sub(now)
}

// statusReport logs one line per reporter, prefixed with its name, per §6's periodic status note.
func statusReport(b *broker, what string, resetCounters bool, reporters []reporter.Reporter) {
	b.log.Infof("%s uptime=%s", what, uptime())
	for _, r := range reporters {
		for _, line := range strings.Split(r.Report(resetCounters), "\n") {
			if len(line) > 0 {
				b.log.Infof("%s: %s", r.Name(), line)
			}
		}
	}
}

// runValidationLoop drains the candidate queue with bounded concurrency, validates each against
// the requested protocols/levels/countries, and hands newly-working proxies to the pool's
// checker->pool channel. When the channel is full, the send waits up to one second and then
// drops the result. The dedup set admits each host:port only once per process, so a dropped
// proxy is not validated again.
func runValidationLoop(ctx context.Context, b *broker, chk *checker.Checker, protocols []proxy.Protocol,
	levels []proxy.Level, countries []string, handoff livepool.LiveProxies) {
	sem := semaphore.NewWeighted(int64(cfg.maxConn))
	for {
		c, ok := b.queue.Pop()
		if !ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		go func(c queue.Candidate) {
			defer sem.Release(1)
			validateForPool(ctx, b, chk, c, protocols, levels, countries, handoff)
		}(c)
	}
}

func validateForPool(ctx context.Context, b *broker, chk *checker.Checker, c queue.Candidate,
	protocols []proxy.Protocol, levels []proxy.Level, countries []string, handoff livepool.LiveProxies) {
	ip := c.Host
	if !b.resolver.IsIP(ip) {
		ip = b.resolver.Resolve(c.Host)
		if ip == "" {
			return
		}
	}
	geo := b.resolver.GeoLookup(ip)

	p := proxy.New(c.Host, c.Port, geo, cfg.timeout)
	if !chk.CheckProxy(ctx, p, protocols, levels, countries) {
		return
	}

	select {
	case handoff <- p.Simple():
	case <-time.After(time.Second):
		b.log.Debugf("handoff channel full, dropping %s:%d this cycle", c.Host, c.Port)
	}
}
