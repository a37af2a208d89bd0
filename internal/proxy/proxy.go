// Package proxy defines the Proxy record: the host/port/stream/stats/geo bundle the checker
// validates, and the smaller SimpleProxy projection the live pool and gateway operate on once the
// checker has released the socket.
package proxy

import (
	"sync"
	"time"

	"github.com/markdingo/proxybroker/internal/errkind"
	"github.com/markdingo/proxybroker/internal/stream"
)

// Protocol names one of the six transports the checker can validate.
type Protocol string

const (
	HTTP       Protocol = "HTTP"
	HTTPS      Protocol = "HTTPS"
	SOCKS4     Protocol = "SOCKS4"
	SOCKS5     Protocol = "SOCKS5"
	Connect80  Protocol = "CONNECT:80"
	Connect25  Protocol = "CONNECT:25"
)

// CanonicalOrder is the order the checker attempts protocols in, per §4.7.
var CanonicalOrder = []Protocol{Connect80, Connect25, SOCKS5, SOCKS4, HTTPS, HTTP}

// Level is the anonymity classification of a working HTTP-family protocol entry. The zero value
// means "not applicable" (e.g. CONNECT/SOCKS entries never carry a level).
type Level string

const (
	NoLevel     Level = ""
	Transparent Level = "Transparent"
	Anonymous   Level = "Anonymous"
	High        Level = "High"
)

// TypeEntry is one confirmed (protocol, anonymity-level?) pair in a Proxy's ordered type list.
type TypeEntry struct {
	Protocol Protocol
	Level    Level
}

// LogEntry is one append-only record of a negotiation event.
type LogEntry struct {
	Protocol string
	Message  string
	Duration time.Duration
}

// GeoData carries geolocation fields with the spec's sentinel defaults.
type GeoData struct {
	ISOCode       string
	CountryName   string
	RegionISOCode string
	RegionName    string
	CityName      string
}

// DefaultGeoData returns the sentinel "unknown location" value.
func DefaultGeoData() GeoData {
	return GeoData{ISOCode: "--", CountryName: "Unknown", RegionISOCode: "--", RegionName: "Unknown", CityName: "Unknown"}
}

// Proxy owns a candidate's host, an optional active Stream, its geo data, and its accumulating
// validation stats. It implements stream.Sink so a Stream can report samples/errors back without
// this package importing the stream package's internals beyond the interface it already exposes.
type Proxy struct {
	Host string
	Port uint16
	Geo  GeoData

	mu sync.Mutex

	negotiatorProto string
	types           []TypeEntry
	runtimes        []time.Duration
	requestCount    int
	errorCounts     [errkind.Count]int
	log             []LogEntry

	stream *stream.Stream
}

// New constructs a Proxy with a fresh Closed Stream bound to it as the stream's stats sink.
func New(host string, port uint16, geo GeoData, timeout time.Duration) *Proxy {
	p := &Proxy{Host: host, Port: port, Geo: geo}
	p.stream = stream.New(p, timeout)
	return p
}

// Stream returns the owned Stream, which the negotiators and checker drive directly.
func (p *Proxy) Stream() *stream.Stream {
	return p.stream
}

// SetProto records which protocol is currently being attempted; it is surfaced back to the Stream
// via Proto() so I/O failures are tagged correctly in the log.
func (p *Proxy) SetProto(proto Protocol) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.negotiatorProto = string(proto)
}

// Proto implements stream.Sink.
func (p *Proxy) Proto() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.negotiatorProto
}

// Sample implements stream.Sink: every successful I/O appends a runtime sample.
func (p *Proxy) Sample(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runtimes = append(p.runtimes, d)
}

// Fail implements stream.Sink: every I/O failure increments the matching error counter and appends
// a log entry tagged with the protocol in play at the time.
func (p *Proxy) Fail(proto string, kind errkind.Kind, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorCounts[kind]++
	p.log = append(p.log, LogEntry{Protocol: proto, Message: msg})
}

// IncRequest increments the request counter. The checker calls this once per protocol validation
// attempt that reaches the point of sending a scored request.
func (p *Proxy) IncRequest() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestCount++
}

// AppendLog records a negotiation event with an explicit duration, for events (e.g. a full
// check_proto round trip) that aren't captured by a single Stream I/O call.
func (p *Proxy) AppendLog(protocol, message string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, LogEntry{Protocol: protocol, Message: message, Duration: d})
}

// AppendType records a confirmed (protocol, level) pair.
func (p *Proxy) AppendType(proto Protocol, level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, TypeEntry{Protocol: proto, Level: level})
}

// Types returns a copy of the confirmed type list.
func (p *Proxy) Types() []TypeEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TypeEntry{}, p.types...)
}

// ErrorCount returns the counter for one error kind.
func (p *Proxy) ErrorCount(k errkind.Kind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errorCounts[k]
}

// RequestCount returns the number of scored requests sent so far.
func (p *Proxy) RequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requestCount
}

// ErrorRate returns Σ error counts / request_count, or 0 when request_count is 0.
func (p *Proxy) ErrorRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requestCount == 0 {
		return 0
	}
	var sum int
	for _, c := range p.errorCounts {
		sum += c
	}
	return float64(sum) / float64(p.requestCount)
}

// AvgResponseTime returns the mean of all recorded runtime samples, or 0 when none were recorded.
func (p *Proxy) AvgResponseTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.runtimes) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range p.runtimes {
		sum += d
	}
	return sum / time.Duration(len(p.runtimes))
}

// Simple projects this Proxy into the smaller SimpleProxy the live pool and gateway operate on,
// once the checker is done with the socket and logs are no longer needed.
func (p *Proxy) Simple() *SimpleProxy {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errSum int
	for _, c := range p.errorCounts {
		errSum += c
	}
	var runtimeSum time.Duration
	for _, d := range p.runtimes {
		runtimeSum += d
	}
	return &SimpleProxy{
		Host:         p.Host,
		Port:         p.Port,
		Geo:          p.Geo,
		Types:        append([]TypeEntry{}, p.types...),
		RequestCount: p.requestCount,
		ErrorCount:   errSum,
		TotalRuntime: runtimeSum,
		SampleCount:  len(p.runtimes),
	}
}

// SimpleProxy is the projection of a Proxy used by the live pool: it omits the Stream and the
// negotiation log, carrying only the aggregates needed for ordering and health-gated admission.
type SimpleProxy struct {
	Host string
	Port uint16
	Geo  GeoData
	Types []TypeEntry

	RequestCount int
	ErrorCount   int
	TotalRuntime time.Duration
	SampleCount  int
}

// Key returns the host:port identity used for equality and pool removal.
func (s *SimpleProxy) Key() string {
	return s.Host + ":" + portString(s.Port)
}

// ErrorRate returns Σ error counts / request_count, or 0 when request_count is 0.
func (s *SimpleProxy) ErrorRate() float64 {
	if s.RequestCount == 0 {
		return 0
	}
	return float64(s.ErrorCount) / float64(s.RequestCount)
}

// AvgRespTime returns the mean of all recorded runtime samples, or 0 when none were recorded.
func (s *SimpleProxy) AvgRespTime() time.Duration {
	if s.SampleCount == 0 {
		return 0
	}
	return s.TotalRuntime / time.Duration(s.SampleCount)
}

// Less orders two SimpleProxy values (error_rate asc, avg_response_time asc) per §3 - lower-error,
// faster proxies rank earlier.
func Less(a, b *SimpleProxy) bool {
	ea, eb := a.ErrorRate(), b.ErrorRate()
	if ea != eb {
		return ea < eb
	}
	return a.AvgRespTime() < b.AvgRespTime()
}

// Equal compares proxy identity by (host, port), per §3.
func Equal(a, b *SimpleProxy) bool {
	return a.Host == b.Host && a.Port == b.Port
}

// hasAny reports whether s has confirmed any of the given protocols.
func (s *SimpleProxy) hasAny(protos ...Protocol) bool {
	for _, t := range s.Types {
		for _, want := range protos {
			if t.Protocol == want {
				return true
			}
		}
	}
	return false
}

// Schemes returns the client-facing schemes this proxy can serve, per §4.9: any of
// {HTTP, CONNECT:80, SOCKS4, SOCKS5} implies scheme HTTP; any of {HTTPS, SOCKS4, SOCKS5} implies
// scheme HTTPS. SOCKS proxies may therefore serve either scheme.
func (s *SimpleProxy) Schemes() []string {
	var schemes []string
	if s.hasAny(HTTP, Connect80, SOCKS4, SOCKS5) {
		schemes = append(schemes, "HTTP")
	}
	if s.hasAny(HTTPS, SOCKS4, SOCKS5) {
		schemes = append(schemes, "HTTPS")
	}
	return schemes
}

// ServesScheme reports whether this proxy can serve the given client-facing scheme.
func (s *SimpleProxy) ServesScheme(scheme string) bool {
	for _, sc := range s.Schemes() {
		if sc == scheme {
			return true
		}
	}
	return false
}

func portString(p uint16) string {
	if p == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for p > 0 {
		i--
		buf[i] = byte('0' + p%10)
		p /= 10
	}
	return string(buf[i:])
}
