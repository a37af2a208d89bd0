// Package resolver provides candidate-hostname resolution, GeoIP lookup, and external-IP
// discovery - the three lookups the checker and provider runner need before a candidate can be
// validated or an anonymity baseline established.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/oschwald/geoip2-golang"
	gocache "github.com/patrickmn/go-cache"

	"github.com/markdingo/proxybroker/internal/bestserver"
	"github.com/markdingo/proxybroker/internal/proxy"
)

const me = "resolver"

// externalIPCacheKey is the single key under which the last-known external IP is cached; a short
// TTL lets a long-running serve process notice an address change without re-probing on every call.
const externalIPCacheKey = "external-ip"

// Config controls resolver construction. GeoIPPath may be empty, in which case GeoLookup always
// returns the sentinel GeoData - GeoIP database acquisition is explicitly out of scope.
type Config struct {
	GeoIPPath        string
	ResolvConfPath   string // defaults to /etc/resolv.conf
	Timeout          time.Duration
	ExternalIPProbes []string
	ExternalIPTTL    time.Duration
}

// Resolver bundles the DNS cache, GeoIP reader, and external-IP prober.
type Resolver struct {
	config Config

	dnsCache   *gocache.Cache
	extIPCache *gocache.Cache

	resolverConfig *dns.ClientConfig
	dnsClient      *dns.Client

	geoReader *geoip2.Reader

	httpClient   *http.Client
	extIPManager bestserver.Manager
}

// New constructs a Resolver. GeoIP lookups are disabled (sentinel GeoData only) if GeoIPPath is
// empty or fails to open - the spec treats the database as opaque configuration, not something the
// core downloads or validates.
func New(cfg Config) (*Resolver, error) {
	if cfg.ResolvConfPath == "" {
		cfg.ResolvConfPath = "/etc/resolv.conf"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.ExternalIPTTL <= 0 {
		cfg.ExternalIPTTL = time.Minute
	}

	r := &Resolver{
		config:     cfg,
		dnsCache:   gocache.New(gocache.NoExpiration, gocache.NoExpiration),
		extIPCache: gocache.New(cfg.ExternalIPTTL, 2*cfg.ExternalIPTTL),
		dnsClient:  &dns.Client{Timeout: cfg.Timeout},
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}

	rc, err := dns.ClientConfigFromFile(cfg.ResolvConfPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", me, err)
	}
	r.resolverConfig = rc

	if cfg.GeoIPPath != "" {
		reader, err := geoip2.Open(cfg.GeoIPPath)
		if err == nil {
			r.geoReader = reader
		}
	}

	probes := cfg.ExternalIPProbes
	servers := bestserver.ServersFromNames(probes)
	mgr, err := bestserver.NewTraditional(bestserver.TraditionalConfig{}, servers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", me, err)
	}
	r.extIPManager = mgr

	return r, nil
}

// Close releases the GeoIP reader, if one was opened.
func (r *Resolver) Close() error {
	if r.geoReader != nil {
		return r.geoReader.Close()
	}
	return nil
}

// IsIP reports whether host parses as an IPv4 literal.
func (r *Resolver) IsIP(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() != nil
}

// Resolve returns host's first A record as a dotted-quad string. A cache hit short-circuits DNS
// entirely; a lookup failure returns host unchanged so the caller can decide how to proceed.
func (r *Resolver) Resolve(host string) string {
	if r.IsIP(host) {
		return host
	}
	if v, found := r.dnsCache.Get(host); found {
		return v.(string)
	}

	ip, err := r.lookupA(host)
	if err != nil {
		return host
	}
	r.dnsCache.SetDefault(host, ip)
	return ip
}

func (r *Resolver) lookupA(host string) (string, error) {
	if len(r.resolverConfig.Servers) == 0 {
		return "", errors.New(me + ": no nameservers configured")
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	server := net.JoinHostPort(r.resolverConfig.Servers[0], r.resolverConfig.Port)
	reply, _, err := r.dnsClient.Exchange(m, server)
	if err != nil {
		return "", fmt.Errorf("%s: %w", me, err)
	}
	if reply.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("%s: rcode %d for %s", me, reply.Rcode, host)
	}
	for _, rr := range reply.Answer {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String(), nil
		}
	}
	return "", fmt.Errorf("%s: no A record for %s", me, host)
}

// GeoLookup returns geo data for ip, falling back to the sentinel unknown values when no GeoIP
// database is configured or the address is not found.
func (r *Resolver) GeoLookup(ip string) proxy.GeoData {
	if r.geoReader == nil {
		return proxy.DefaultGeoData()
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return proxy.DefaultGeoData()
	}
	record, err := r.geoReader.City(parsed)
	if err != nil || record == nil {
		return proxy.DefaultGeoData()
	}

	geo := proxy.DefaultGeoData()
	if record.Country.IsoCode != "" {
		geo.ISOCode = record.Country.IsoCode
	} else if record.Continent.Code != "" {
		geo.ISOCode = record.Continent.Code
	}
	if name, ok := record.Country.Names["en"]; ok && name != "" {
		geo.CountryName = name
	}
	if len(record.Subdivisions) > 0 {
		sub := record.Subdivisions[0]
		if sub.IsoCode != "" {
			geo.RegionISOCode = sub.IsoCode
		}
		if name, ok := sub.Names["en"]; ok && name != "" {
			geo.RegionName = name
		}
	}
	if name, ok := record.City.Names["en"]; ok && name != "" {
		geo.CityName = name
	}
	return geo
}

// ExternalIP iterates the fixed ordered probe list, using the traditional bestserver algorithm
// (res_send semantics - use the current best until it fails, then the next) until a valid IPv4
// address is returned. A cached, still-fresh value short-circuits the probe entirely. If every
// probe fails, ExternalIP returns an error - the caller treats this as fatal per §4.1.
func (r *Resolver) ExternalIP(ctx context.Context) (string, error) {
	if v, found := r.extIPCache.Get(externalIPCacheKey); found {
		return v.(string), nil
	}

	attempts := r.extIPManager.Len()
	for i := 0; i < attempts; i++ {
		srv, _ := r.extIPManager.Best()
		start := time.Now()
		ip, err := r.fetchIP(ctx, srv.Name())
		latency := time.Since(start)
		r.extIPManager.Result(srv, err == nil, time.Now(), latency)
		if err == nil {
			r.extIPCache.SetDefault(externalIPCacheKey, ip)
			return ip, nil
		}
	}

	return "", fmt.Errorf("%s: all %d external-ip probes failed", me, attempts)
}

func (r *Resolver) fetchIP(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %s returned status %d", me, url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	candidate := strings.TrimSpace(string(body))
	ip := net.ParseIP(candidate)
	if ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("%s: %s did not return a valid IPv4 address", me, url)
	}
	return ip.To4().String(), nil
}
