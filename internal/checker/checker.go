// Package checker orchestrates validation of one candidate proxy across the protocols a caller
// expects it to support (§4.7), scoring each protocol's response (§4.8) and recording the outcome
// on the Proxy record. It is grounded on doh.remote.Resolve's build-request/send/score/record-stats
// shape in the teacher, generalized from "resolve a DNS query via a DoH server" to "validate a
// candidate proxy via a judge".
package checker

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/markdingo/proxybroker/internal/concurrencytracker"
	"github.com/markdingo/proxybroker/internal/constants"
	"github.com/markdingo/proxybroker/internal/errkind"
	"github.com/markdingo/proxybroker/internal/httpresp"
	"github.com/markdingo/proxybroker/internal/judge"
	"github.com/markdingo/proxybroker/internal/negotiate"
	"github.com/markdingo/proxybroker/internal/proxy"
)

const me = "checker"

// Config carries the per-operation tunables the checker needs from the CLI/broker context.
type Config struct {
	MaxTries        int
	SupportCookies  bool
	SupportReferer  bool
	VerifyTLS       bool
	JudgeWaitCeiling time.Duration
}

// Checker validates candidates against a shared Registry of working judges. Cct reports peak
// concurrent validations, the same concurrencytracker.Counter shape trustydns-proxy's server uses
// to report peak concurrent ServeDNS calls.
type Checker struct {
	registry *judge.Registry
	cfg      Config
	consts   constants.Constants
	cct      concurrencytracker.Counter

	mu  chanMu
	rng *rand.Rand
}

// chanMu guards the shared rand.Rand - math/rand.Rand is not safe for concurrent use and many
// checker goroutines mint request-version markers simultaneously.
type chanMu struct{ ch chan struct{} }

func newChanMu() chanMu {
	m := chanMu{ch: make(chan struct{}, 1)}
	m.ch <- struct{}{}
	return m
}

func (m chanMu) lock()   { <-m.ch }
func (m chanMu) unlock() { m.ch <- struct{}{} }

// New constructs a Checker bound to registry for judge selection.
func New(registry *judge.Registry, cfg Config) *Checker {
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = 1
	}
	if cfg.JudgeWaitCeiling <= 0 {
		cfg.JudgeWaitCeiling = 15 * time.Second
	}
	return &Checker{
		registry: registry,
		cfg:      cfg,
		consts:   constants.Get(),
		mu:       newChanMu(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// PeakConcurrency reports (and optionally resets) the peak number of concurrent CheckProxy calls.
func (c *Checker) PeakConcurrency(reset bool) int {
	return c.cct.Peak(reset)
}

// CheckProxy validates p against every protocol in expectedProtocols, per §4.7. It returns true
// iff at least one protocol's validation succeeded (logical OR, step 4).
func (c *Checker) CheckProxy(ctx context.Context, p *proxy.Proxy, expectedProtocols []proxy.Protocol, expectedLevels []proxy.Level, expectedCountries []string) bool {
	c.cct.Add()
	defer c.cct.Done()

	if len(expectedCountries) > 0 && !containsString(expectedCountries, p.Geo.ISOCode) {
		return false
	}

	wanted := make(map[proxy.Protocol]bool, len(expectedProtocols))
	for _, pr := range expectedProtocols {
		wanted[pr] = true
	}

	working := false
	for _, proto := range proxy.CanonicalOrder {
		if !wanted[proto] || c.registry.IsDisabled(proto) {
			continue
		}
		if c.tryProtocol(ctx, p, proto, expectedLevels) {
			working = true
		}
	}
	return working
}

// tryProtocol runs checkProto up to MaxTries times, succeeding as soon as one attempt succeeds.
func (c *Checker) tryProtocol(ctx context.Context, p *proxy.Proxy, proto proxy.Protocol, expectedLevels []proxy.Level) bool {
	for attempt := 0; attempt < c.cfg.MaxTries; attempt++ {
		if c.checkProto(ctx, p, proto, expectedLevels) {
			return true
		}
	}
	return false
}

// checkProto implements §4.7's per-protocol validation: select a judge, dial the candidate proxy
// itself (p.Host:p.Port - the judge is only ever the inner CONNECT/SOCKS target, never the socket
// endpoint), negotiate, and - unless the protocol is CONNECT:25, which records success with no
// anonymity level and returns immediately - build, send and score a judge request over the
// resulting tunnel.
func (c *Checker) checkProto(ctx context.Context, p *proxy.Proxy, proto proxy.Protocol, expectedLevels []proxy.Level) bool {
	p.SetProto(proto)

	j, err := c.registry.GetJudge(ctx, proto, c.cfg.JudgeWaitCeiling)
	if err != nil {
		return false
	}

	neg, err := negotiate.ByProtocol(proto)
	if err != nil {
		return false
	}

	// HTTPS is the one exception: its negotiator dials p.Host:p.Port itself before CONNECTing,
	// since the TLS handshake has to run over that same TCP connection once the CONNECT succeeds.
	if proto != proxy.HTTPS {
		if err := p.Stream().ConnectTCP(p.Host, p.Port); err != nil {
			p.Stream().Close()
			return false
		}
	}

	start := time.Now()
	result, err := neg.Negotiate(p, j.Host, judgePort(j), c.cfg.VerifyTLS)
	if err != nil {
		p.Stream().Close()
		return false
	}

	if proto == proxy.Connect25 {
		p.AppendType(proto, proxy.NoLevel)
		p.AppendLog(string(proto), "CONNECT:25 tunnel established", time.Since(start))
		p.Stream().Close()
		return true
	}

	ok := c.sendAndScore(p, proto, j, result, expectedLevels)
	p.Stream().Close()
	return ok
}

// sendAndScore builds the judge request per §4.7 step 5, sends it, parses the response, and scores
// it per §4.8. On a passing score it records the protocol's type entry (with an anonymity level
// when the negotiator called for one).
func (c *Checker) sendAndScore(p *proxy.Proxy, proto proxy.Protocol, j *judge.Judge, neg negotiate.Result, expectedLevels []proxy.Level) bool {
	rv := c.nextMarker()
	req := c.buildRequest(j, neg.UseFullPath, rv)

	p.IncRequest()
	if err := p.Stream().Send([]byte(req)); err != nil {
		return false
	}
	raw, err := p.Stream().RecvAll()
	if err != nil {
		return false
	}
	resp := httpresp.Parse(raw)

	if !isCorrect(resp, rv, c.cfg.SupportReferer, c.cfg.SupportCookies, c.consts.RefererValue, c.consts.CookieValue) {
		p.Fail(string(proto), errkind.ResponseNotCorrect, "judge response failed correctness scoring")
		return false
	}

	var level proxy.Level = proxy.NoLevel
	if neg.CheckAnonymity {
		level = anonymityLevel(resp, j.Marks, c.externalIP())
		if len(expectedLevels) > 0 && !levelWanted(expectedLevels, level) {
			return false
		}
	}

	p.AppendType(proto, level)
	return true
}

// externalIP exposes the registry's external IP to the scoring code; the registry was already
// constructed with it, and nothing else in this package needs to know it independently.
func (c *Checker) externalIP() string {
	return c.registry.ExternalIP()
}

func (c *Checker) nextMarker() string {
	c.mu.lock()
	defer c.mu.unlock()
	return fmt.Sprintf("%04d", c.rng.Intn(10000))
}

// buildRequest constructs the request line and full header block per §4.7 step 5. useFullPath
// selects absolute-form (GET http://host/path) vs origin-form (GET /path).
func (c *Checker) buildRequest(j *judge.Judge, useFullPath bool, rv string) string {
	method := http.MethodGet
	path := "/"
	var u string
	if useFullPath {
		u = "http://" + j.Host + path
	} else {
		u = path
	}

	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(u)
	b.WriteString(" HTTP/1.1\r\n")

	userAgent := c.consts.UserAgentPrefix + "/" + rv
	headers := [][2]string{
		{c.consts.UserAgentHeader, userAgent},
		{c.consts.AcceptHeader, c.consts.AcceptValue},
		{c.consts.AcceptEncodingHeader, c.consts.AcceptEncodingValue},
		{c.consts.PragmaHeader, c.consts.PragmaValue},
		{c.consts.CacheControlHeader, c.consts.CacheControlValue},
		{c.consts.CookieHeader, c.consts.CookieValue},
		{c.consts.RefererHeader, c.consts.RefererValue},
		{c.consts.HostHeader, j.Host},
		{c.consts.ConnectionHeader, c.consts.ConnectionCloseValue},
		{c.consts.ContentLengthHeader, "0"},
	}
	for _, h := range headers {
		b.WriteString(h[0])
		b.WriteString(": ")
		b.WriteString(h[1])
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return b.String()
}

func judgePort(j *judge.Judge) uint16 {
	switch j.Scheme {
	case judge.HTTPSScheme:
		return 443
	case judge.SMTPScheme:
		return 25
	default:
		return 80
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func levelWanted(levels []proxy.Level, level proxy.Level) bool {
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}
