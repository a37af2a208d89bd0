package negotiate

import (
	"fmt"

	"github.com/markdingo/proxybroker/internal/errkind"
	"github.com/markdingo/proxybroker/internal/proxy"
)

// httpsNegotiator connects its own tunnel (the one exception §4.6 calls out): it dials the
// candidate proxy itself (checkProto skips ConnectTCP for HTTPS precisely so this negotiator can do
// it), CONNECTs judgeHost:443 over that TCP connection, and on a 200 reply upgrades the same Stream
// to TLS with SNI=judgeHost. A non-200 CONNECT reply must leave the Stream untouched - no TLS
// upgrade is attempted - per the boundary behavior in §8.
type httpsNegotiator struct{}

func (httpsNegotiator) Protocol() proxy.Protocol { return proxy.HTTPS }

func (httpsNegotiator) Negotiate(p *proxy.Proxy, judgeHost string, judgePort uint16, verifyTLS bool) (Result, error) {
	if err := p.Stream().ConnectTCP(p.Host, p.Port); err != nil {
		return Result{}, err
	}

	target := judgeHost + ":443"
	req := "CONNECT " + target + " HTTP/1.1\r\n" +
		"Host: " + judgeHost + "\r\n" +
		"Connection: keep-alive\r\n\r\n"

	if err := p.Stream().Send([]byte(req)); err != nil {
		return Result{}, err
	}
	resp, err := p.Stream().RecvAll()
	if err != nil {
		return Result{}, err
	}
	status, ok := parseStatusLine(resp)
	if !ok {
		return Result{}, fail(p, proxy.HTTPS, errkind.InvalidData, "could not parse CONNECT response status line")
	}
	if status != 200 {
		return Result{}, fail(p, proxy.HTTPS, errkind.BadStatus, fmt.Sprintf("CONNECT to %s returned status %d", target, status))
	}

	if err := p.Stream().UpgradeTLS(judgeHost, verifyTLS); err != nil {
		return Result{}, err
	}
	return Result{UseFullPath: false, CheckAnonymity: false}, nil
}
