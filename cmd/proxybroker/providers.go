package main

import "github.com/markdingo/proxybroker/internal/provider"

// defaultProviders is the built-in seed list fed to the provider runner. Names and seed URLs are
// taken from the source this spec was distilled from (src/providers/*.rs) - free-proxy-list.net,
// ipaddress.com, proxyscan.io's per-protocol download endpoints, and proxyscrape.com's
// per-protocol API - kept as a small representative subset since acquiring and maintaining an
// exhaustive provider list is outside this engine's scope.
func defaultProviders() []*provider.Provider {
	allProtocols := []string{"HTTP", "CONNECT:80", "HTTPS", "CONNECT:25"}
	return []*provider.Provider{
		{
			Name:      "free-proxy-list.net",
			SeedURL:   "https://free-proxy-list.net/",
			Protocols: allProtocols,
		},
		{
			Name:      "ipaddress.com",
			SeedURL:   "https://www.ipaddress.com/proxy-list",
			Protocols: allProtocols,
		},
		{
			Name:      "proxyscan.io/http",
			SeedURL:   "https://www.proxyscan.io/download?type=http",
			Protocols: allProtocols,
		},
		{
			Name:      "proxyscan.io/socks4",
			SeedURL:   "https://www.proxyscan.io/download?type=socks4",
			Protocols: []string{"SOCKS4"},
		},
		{
			Name:      "proxyscan.io/socks5",
			SeedURL:   "https://www.proxyscan.io/download?type=socks5",
			Protocols: []string{"SOCKS5"},
		},
		{
			Name:      "proxyscrape.com/http",
			SeedURL:   "https://api.proxyscrape.com/?request=getproxies&proxytype=http",
			Protocols: allProtocols,
		},
		{
			Name:      "proxyscrape.com/socks4",
			SeedURL:   "https://api.proxyscrape.com/?request=getproxies&proxytype=socks4",
			Protocols: []string{"SOCKS4"},
		},
		{
			Name:      "proxyscrape.com/socks5",
			SeedURL:   "https://api.proxyscrape.com/?request=getproxies&proxytype=socks5",
			Protocols: []string{"SOCKS5"},
		},
	}
}
