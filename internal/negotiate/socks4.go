package negotiate

import (
	"github.com/markdingo/proxybroker/internal/errkind"
	"github.com/markdingo/proxybroker/internal/proxy"
)

// socks4Negotiator implements §4.6's 9-byte SOCKS4 request: [0x04, 0x01, dport_be, dst_ipv4, 0x00].
// It targets the judge so the subsequent origin-form request (use_full_path=false) reaches it
// through the tunnel.
type socks4Negotiator struct{}

func (socks4Negotiator) Protocol() proxy.Protocol { return proxy.SOCKS4 }

func (socks4Negotiator) Negotiate(p *proxy.Proxy, judgeHost string, judgePort uint16, verifyTLS bool) (Result, error) {
	dst, err := dstIPv4(judgeHost)
	if err != nil {
		return Result{}, fail(p, proxy.SOCKS4, errkind.InvalidData, err.Error())
	}
	port := portBE(judgePort)

	req := make([]byte, 0, 9)
	req = append(req, 0x04, 0x01)
	req = append(req, port[:]...)
	req = append(req, dst[:]...)
	req = append(req, 0x00)

	if err := p.Stream().Send(req); err != nil {
		return Result{}, err
	}
	resp, err := p.Stream().RecvExact(8)
	if err != nil {
		return Result{}, err
	}
	if resp[0] != 0 || resp[1] != 0x5A {
		return Result{}, fail(p, proxy.SOCKS4, errkind.BadStatus, "SOCKS4 request rejected")
	}
	return Result{UseFullPath: false, CheckAnonymity: false}, nil
}
