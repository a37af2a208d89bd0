package negotiate

import "github.com/markdingo/proxybroker/internal/proxy"

// httpNegotiator is the no-op handshake for a plain HTTP forward proxy: the Stream is already
// TCP-connected to the proxy and nothing further is required before the judge request is sent in
// absolute form (§4.6's use_full_path=true).
type httpNegotiator struct{}

func (httpNegotiator) Protocol() proxy.Protocol { return proxy.HTTP }

func (httpNegotiator) Negotiate(p *proxy.Proxy, judgeHost string, judgePort uint16, verifyTLS bool) (Result, error) {
	return Result{UseFullPath: true, CheckAnonymity: true}, nil
}
