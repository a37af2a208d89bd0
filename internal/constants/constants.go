/*
Package constants provides common values used across all proxybroker packages. Usage is to call the
global Get() function which returns the Constants by value ensuring that any modifications made
(accidental or otherwise) will not affect other modules when they call Get().

Typically usage:

    consts := constants.Get()
    fmt.Println("I am", consts.ProgramName, "version", consts.Version)

The primary reason for making this a constructed struct rather than the more typical const () block
is so that it can be fed directly into templating packages for printing usage messages.
*/
package constants

// Constants contains the system-wide constants
type Constants struct {
	ProgramName string
	Version     string
	PackageName string
	PackageURL  string

	UserAgentPrefix string // "<name>/<version>" - "/" and a random 4 digit marker are appended per-request

	AcceptHeader          string
	AcceptEncodingHeader  string
	ContentTypeHeader     string
	ContentLengthHeader   string
	UserAgentHeader       string
	PragmaHeader          string
	CacheControlHeader    string
	CookieHeader          string
	RefererHeader          string
	HostHeader            string
	ConnectionHeader      string
	ProxyConnectionHeader string

	AcceptValue         string
	AcceptEncodingValue string
	PragmaValue         string
	CacheControlValue   string
	CookieValue         string
	RefererValue        string
	ConnectionCloseValue string
	KeepAliveValue      string

	HTTPPort    string // Default port for plain HTTP / CONNECT:80 probing
	HTTPSPort   string // Default port for HTTPS / CONNECT tunnels
	SMTPPort    string // Default port for CONNECT:25 probing

	JudgeSeeds    []string // HTTP/HTTPS judge seed URLs
	SMTPJudgeSeeds []string // SMTP judge seed "URLs" (host:port form)

	ExternalIPProbes []string // Ordered list of external-IP echo endpoints

	DefaultProviderPattern string // Default {ip}:{port} extraction regex

	DefaultMaxConn       int // Global validation concurrency ceiling
	DefaultProviderConcurrency int // Concurrent provider fetches
	DefaultJudgeConcurrency    int // Concurrent judge probes
	DefaultProviderTick  string // Provider fan-out tick period, parsed with time.ParseDuration
	DefaultTimeout       string // Per-operation network timeout, parsed with time.ParseDuration
	DefaultMaxTries      int // Per-protocol validation attempts

	MinReqProxy      int     // Pool: request count before a newcomer graduates to the heap
	MaxErrorRate     float64 // Pool: eviction threshold
	MaxAvgRespTime   string  // Pool: eviction threshold, parsed with time.ParseDuration
	MinQueue         int     // Pool: floor below which the hand-off channel is drained
	LiveProxiesCap   int     // Capacity of the checker->pool hand-off channel

	JudgeWaitCeiling string // Ceiling on get_judge's wait for a populated scheme bucket
}

var readOnlyConstants *Constants

// createReadOnlyConstants creates a read-only copy of the Constants which is copied whenever a
// caller asks for the constants set. The main reason for returning a struct is so that callers can
// inspect and/or use packages that introspect - particularly */template packages.
func createReadOnlyConstants() {
	readOnlyConstants = &Constants{
		ProgramName: "proxybroker",
		Version:     "v0.1.0",
		PackageName: "Proxy Broker",
		PackageURL:  "https://github.com/markdingo/proxybroker",

		UserAgentPrefix: "proxybroker/v0.1.0",

		AcceptHeader:          "Accept",
		AcceptEncodingHeader:  "Accept-Encoding",
		ContentTypeHeader:     "Content-Type",
		ContentLengthHeader:   "Content-Length",
		UserAgentHeader:       "User-Agent",
		PragmaHeader:          "Pragma",
		CacheControlHeader:    "Cache-Control",
		CookieHeader:          "Cookie",
		RefererHeader:         "Referer",
		HostHeader:            "Host",
		ConnectionHeader:      "Connection",
		ProxyConnectionHeader: "Proxy-Connection",

		AcceptValue:          "*/*",
		AcceptEncodingValue:  "gzip, deflate",
		PragmaValue:          "no-cache",
		CacheControlValue:    "no-cache",
		CookieValue:          "cookie=ok",
		RefererValue:         "https://google.com/",
		ConnectionCloseValue: "close",
		KeepAliveValue:       "keep-alive",

		HTTPPort:  "80",
		HTTPSPort: "443",
		SMTPPort:  "25",

		JudgeSeeds: []string{
			"http://httpheader.net/azenv.php",
			"http://httpbin.org/get?show_env",
			"http://proxy-listen.de/azenv.php",
			"http://azenv.net/",
			"http://mojeip.net.pl/asdfa/azenv.php",
			"http://proxyjudge.us/azenv.php",
			"http://proxyjudge.info/azenv.php",
			"http://pascal.hoez.free.fr/azenv.php",
		},
		SMTPJudgeSeeds: []string{
			"smtp.gmail.com:25",
			"aspmx.l.google.com:25",
		},

		ExternalIPProbes: []string{
			"https://wtfismyip.com/text",
			"https://api.ipify.org",
			"https://ipinfo.io/ip",
			"https://ipv4.icanhazip.com",
			"https://myexternalip.com/raw",
			"https://ifconfig.io/ip",
		},

		DefaultProviderPattern: `(?P<ip>(?:\d+\.?){4}):(?P<port>\d+)`,

		DefaultMaxConn:             2000,
		DefaultProviderConcurrency: 2,
		DefaultJudgeConcurrency:    20,
		DefaultProviderTick:        "60s",
		DefaultTimeout:             "8s",
		DefaultMaxTries:            1,

		MinReqProxy:    5,
		MaxErrorRate:   0.5,
		MaxAvgRespTime: "8s",
		MinQueue:       5,
		LiveProxiesCap: 20,

		JudgeWaitCeiling: "15s",
	}
}

func init() {
	createReadOnlyConstants()
}

// Get returns a copy of the Constant struct. Return by value so internal values cannot be
// inadvertently changed by callers.
func Get() Constants {
	return *readOnlyConstants
}
