package main

import (
	"context"
	"flag"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/markdingo/proxybroker/internal/checker"
	"github.com/markdingo/proxybroker/internal/output"
	"github.com/markdingo/proxybroker/internal/proxy"
	"github.com/markdingo/proxybroker/internal/queue"
)

// runFind implements the find subcommand: validate discovered candidates against the requested
// protocols/levels/countries and stream only the ones that pass, per §6's "validated listing" mode.
func runFind(fs *flag.FlagSet) int {
	protocols := parseProtocols(cfg.types.Args())
	if len(protocols) == 0 {
		return fatal("find requires at least one --types value")
	}
	levels := parseLevels(cfg.levels.Args())
	countries := cfg.countries.Args()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stopChannel
		cancel()
	}()

	b, err := buildBroker(ctx, cfg, protocols)
	if err != nil {
		return fatal(err)
	}
	chk := newChecker(b, cfg)

	// Unblock a Pop() call parked on an empty queue once ctx is cancelled, so shutdown doesn't
	// wait on the next provider tick.
	go func() {
		<-ctx.Done()
		b.queue.Close()
	}()

	sink, closeSink, err := openSink(cfg)
	if err != nil {
		return fatal(err)
	}
	defer closeSink()

	go b.runner.Run(ctx)

	sem := semaphore.NewWeighted(int64(cfg.maxConn))
	var wg sync.WaitGroup
	var emitted int64
	var sinkMu sync.Mutex

	for {
		if cfg.limit > 0 && atomic.LoadInt64(&emitted) >= int64(cfg.limit) {
			break
		}
		select {
		case <-ctx.Done():
			goto drain
		default:
		}

		c, ok := b.queue.Pop()
		if !ok {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(c queue.Candidate) {
			defer wg.Done()
			defer sem.Release(1)
			if cfg.limit > 0 && atomic.LoadInt64(&emitted) >= int64(cfg.limit) {
				return
			}
			validateAndEmit(ctx, b, chk, c, protocols, levels, countries, sink, &sinkMu, &emitted)
		}(c)
	}

drain:
	wg.Wait()
	b.log.Infof("find: emitted %d proxies", emitted)
	return 0
}

func validateAndEmit(ctx context.Context, b *broker, chk *checker.Checker, c queue.Candidate,
	protocols []proxy.Protocol, levels []proxy.Level, countries []string,
	sink output.Sink, sinkMu *sync.Mutex, emitted *int64) {

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

	sinkMu.Lock()
	defer sinkMu.Unlock()
	if err := sink.Write(p.Simple()); err == nil {
		atomic.AddInt64(emitted, 1)
	}
}
