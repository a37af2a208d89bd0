package negotiate

import (
	"fmt"
	"strconv"

	"github.com/markdingo/proxybroker/internal/errkind"
	"github.com/markdingo/proxybroker/internal/proxy"
)

// connectNegotiator implements both CONNECT:80 and CONNECT:25 (§4.6): send a CONNECT request line
// for judgeHost:port, then require a 200 status in the response. Neither variant checks anonymity
// and neither changes the request-line form used afterwards (origin form, use_full_path=false) -
// CONNECT:25 never reaches a subsequent judge request at all, per §4.7 step 4.
type connectNegotiator struct {
	proto proxy.Protocol
	port  uint16
}

func (n connectNegotiator) Protocol() proxy.Protocol { return n.proto }

func (n connectNegotiator) Negotiate(p *proxy.Proxy, judgeHost string, judgePort uint16, verifyTLS bool) (Result, error) {
	target := judgeHost + ":" + strconv.Itoa(int(n.port))
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
		return Result{}, fail(p, n.proto, errkind.InvalidData, "could not parse CONNECT response status line")
	}
	if status != 200 {
		return Result{}, fail(p, n.proto, errkind.BadStatus, fmt.Sprintf("CONNECT to %s returned status %d", target, status))
	}
	return Result{UseFullPath: false, CheckAnonymity: false}, nil
}
