package main

import (
	"flag"
	"time"

	"github.com/markdingo/proxybroker/internal/flagutil"
)

// config carries every flag value across all three subcommands. Only the fields relevant to the
// chosen subcommand are ever populated with non-zero values, the same single-struct-covers-everything
// shape trustydns-proxy/config.go uses for its one binary.
type config struct {
	help    bool
	version bool

	maxConn          int
	timeout          time.Duration
	logLevel         string
	skipVersionCheck bool
	gops             bool
	geoIPPath        string
	resolvConfPath   string

	cpuprofile, memprofile string

	countries flagutil.StringValue
	limit     int
	format    string
	outfile   string

	types          flagutil.StringValue
	files          flagutil.StringValue
	levels         flagutil.StringValue
	maxTries       int
	supportCookies bool
	supportReferer bool
	verifyTLS      bool

	host string
	port int

	setuidName     string
	setgidName     string
	chrootDir      string
	statusInterval time.Duration
}

// addGlobalFlags registers the flags common to all three subcommands, per §6's global flag list.
func addGlobalFlags(fs *flag.FlagSet, cfg *config) {
	fs.IntVar(&cfg.maxConn, "max-conn", 2000, "Global validation concurrency `ceiling`")
	fs.DurationVar(&cfg.timeout, "timeout", 8*time.Second, "Per-operation network `timeout`")
	fs.StringVar(&cfg.logLevel, "log", "info", "Log `level`: debug, info, warn, or error")
	fs.BoolVar(&cfg.skipVersionCheck, "skip-version-check", false,
		"Accepted for compatibility; this build never performs a network version check")
	fs.BoolVar(&cfg.gops, "gops", false, "Start github.com/google/gops agent")
	fs.StringVar(&cfg.geoIPPath, "geoip-db", "", "Path to a GeoIP2/GeoLite2 City `.mmdb` file")
	fs.StringVar(&cfg.resolvConfPath, "resolv-conf", "", "Path to resolv.conf used for candidate hostname resolution")
	fs.StringVar(&cfg.cpuprofile, "cpu-profile", "", "write cpu profile to `file`")
	fs.StringVar(&cfg.memprofile, "mem-profile", "", "write mem profile to `file`")
	fs.BoolVar(&cfg.help, "h", false, "Print usage message to Stdout then exit(0)")
	fs.BoolVar(&cfg.version, "version", false, "Print version and exit")
}

// addCountriesFlag registers --countries, shared by all three subcommands.
func addCountriesFlag(fs *flag.FlagSet, cfg *config) {
	fs.Var(&cfg.countries, "countries", "An ISO `country-code` to admit (repeatable); none means all")
}

// addListingFlags registers the output-related flags shared by grab and find.
func addListingFlags(fs *flag.FlagSet, cfg *config) {
	fs.IntVar(&cfg.limit, "limit", 0, "Stop after emitting this many proxies; 0 means unbounded")
	fs.StringVar(&cfg.format, "format", "default", "Output `format`: default, text, or json")
	fs.StringVar(&cfg.outfile, "outfile", "", "Write output to `file` instead of stdout")
}

// addValidationFlags registers the checker-related flags shared by find and serve.
func addValidationFlags(fs *flag.FlagSet, cfg *config) {
	fs.Var(&cfg.types, "types", "A `protocol` to validate (repeatable): HTTP, HTTPS, SOCKS4, SOCKS5, CONNECT:80, CONNECT:25")
	fs.Var(&cfg.files, "files", "A `file` of host:port candidates to admit in addition to provider scraping (repeatable)")
	fs.Var(&cfg.levels, "levels", "An anonymity `level` to admit (repeatable): Transparent, Anonymous, High")
	fs.IntVar(&cfg.maxTries, "max-tries", 1, "Per-protocol validation `attempts` against a single candidate")
	fs.BoolVar(&cfg.supportCookies, "support-cookies", false, "Require the judge response to echo the probe cookie")
	fs.BoolVar(&cfg.supportReferer, "support-referer", false, "Require the judge response to echo the probe referer")
	fs.BoolVar(&cfg.verifyTLS, "verify-tls", false, "Verify judge TLS certificates instead of skipping verification")
}

// addServeFlags registers the serve-only flags: the gateway's listen address and the privilege
// constraints applied once the listener is bound, mirroring trustydns-proxy's --setuid/--setgid/
// --chroot flags.
func addServeFlags(fs *flag.FlagSet, cfg *config) {
	fs.StringVar(&cfg.host, "host", "", "Gateway listen `address`")
	fs.IntVar(&cfg.port, "port", 8080, "Gateway listen `port`")
	fs.StringVar(&cfg.setuidName, "setuid", "", "Switch to this `user` once the listener is bound")
	fs.StringVar(&cfg.setgidName, "setgid", "", "Switch to this `group` once the listener is bound")
	fs.StringVar(&cfg.chrootDir, "chroot", "", "Chroot to this `directory` once the listener is bound")
	fs.DurationVar(&cfg.statusInterval, "status-interval", time.Minute, "Periodic status report `interval`")
}
