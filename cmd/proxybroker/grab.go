package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/markdingo/proxybroker/internal/output"
	"github.com/markdingo/proxybroker/internal/proxy"
)

// runGrab implements the grab subcommand: stream discovered candidates, filtered by country, with
// no protocol validation - just resolution and geolocation, per §6's "streamed listing" mode.
func runGrab(fs *flag.FlagSet) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stopChannel
		cancel()
	}()

	b, err := buildBroker(ctx, cfg, nil)
	if err != nil {
		return fatal(err)
	}

	sink, closeSink, err := openSink(cfg)
	if err != nil {
		return fatal(err)
	}
	defer closeSink()

	// Unblock a Pop() call parked on an empty queue once ctx is cancelled, so shutdown doesn't
	// wait on the next provider tick.
	go func() {
		<-ctx.Done()
		b.queue.Close()
	}()

	go b.runner.Run(ctx)

	emitted := 0
	for cfg.limit == 0 || emitted < cfg.limit {
		select {
		case <-ctx.Done():
			b.log.Infof("grab: emitted %d candidates", emitted)
			return 0
		default:
		}

		c, ok := b.queue.Pop()
		if !ok {
			break
		}

		ip := c.Host
		if !b.resolver.IsIP(ip) {
			ip = b.resolver.Resolve(c.Host)
			if ip == "" {
				continue
			}
		}
		geo := b.resolver.GeoLookup(ip)
		if len(cfg.countries.Args()) > 0 && !containsFold(cfg.countries.Args(), geo.ISOCode) {
			continue
		}

		sp := &proxy.SimpleProxy{Host: c.Host, Port: c.Port, Geo: geo}
		if err := sink.Write(sp); err != nil {
			return fatal(err)
		}
		emitted++
	}

	b.log.Infof("grab: emitted %d candidates", emitted)
	return 0
}

// openSink resolves --format/--outfile into an output.Sink and a closer for its destination.
func openSink(cfg *config) (output.Sink, func(), error) {
	w := stdout
	closeFn := func() {}
	if len(cfg.outfile) > 0 {
		f, err := os.Create(cfg.outfile)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closeFn = func() { f.Close() }
	}
	sink := output.New(output.Format(cfg.format), w)
	return sink, func() { sink.Close(); closeFn() }, nil
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
