// Package negotiate implements the per-protocol handshakes that transition a Proxy's Stream from
// a bare TCP connection into a tunnel (or, for plain HTTP, into a no-op pass-through) ready to
// carry a scored judge request. Each negotiator is grounded on the same one-file-per-implementation
// shape internal/resolver uses for its doh/local split: one small interface, one file per protocol.
package negotiate

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/markdingo/proxybroker/internal/errkind"
	"github.com/markdingo/proxybroker/internal/proxy"
)

const me = "negotiate"

// Result carries the three outcomes §4.6 requires a negotiator to report back to the checker.
type Result struct {
	UseFullPath    bool // absolute-form request line (GET http://host/path) vs origin-form
	CheckAnonymity bool // whether the judge response should be scored for anonymity
}

// Negotiator drives one proxy protocol's handshake against an already-TCP-connected Stream
// (HTTPS is the one exception: it connects its own tunnel before upgrading to TLS). judgeHost and
// judgePort name the judge the inner request/tunnel target is built for, per §4.6's "for
// CONNECT-style handshakes the target is the judge's host" rule.
type Negotiator interface {
	Protocol() proxy.Protocol
	Negotiate(p *proxy.Proxy, judgeHost string, judgePort uint16, verifyTLS bool) (Result, error)
}

// ByProtocol returns the stateless Negotiator singleton for one protocol.
func ByProtocol(proto proxy.Protocol) (Negotiator, error) {
	switch proto {
	case proxy.HTTP:
		return httpNegotiator{}, nil
	case proxy.Connect80:
		return connectNegotiator{proto: proxy.Connect80, port: 80}, nil
	case proxy.Connect25:
		return connectNegotiator{proto: proxy.Connect25, port: 25}, nil
	case proxy.HTTPS:
		return httpsNegotiator{}, nil
	case proxy.SOCKS4:
		return socks4Negotiator{}, nil
	case proxy.SOCKS5:
		return socks5Negotiator{}, nil
	}
	return nil, fmt.Errorf("%s: no negotiator for protocol %s", me, proto)
}

// dstIPv4 parses host as an IPv4 literal into the 4-byte form both SOCKS negotiators need to build
// their request packets. It does no DNS lookup: a DNS name (or any non-IPv4 host) returns an error.
func dstIPv4(host string) ([4]byte, error) {
	var out [4]byte
	ip := net.ParseIP(host)
	if ip == nil {
		return out, fmt.Errorf("%s: %q is not an IPv4 literal", me, host)
	}
	v4 := ip.To4()
	if v4 == nil {
		return out, fmt.Errorf("%s: %q is not an IPv4 address", me, host)
	}
	copy(out[:], v4)
	return out, nil
}

func portBE(port uint16) [2]byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], port)
	return b
}

func fail(p *proxy.Proxy, proto proxy.Protocol, kind errkind.Kind, msg string) error {
	p.Fail(string(proto), kind, msg)
	return fmt.Errorf("%s: %s: %s", me, proto, msg)
}
