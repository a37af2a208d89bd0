package negotiate

import (
	"github.com/markdingo/proxybroker/internal/errkind"
	"github.com/markdingo/proxybroker/internal/proxy"
)

// socks5Negotiator implements §4.6's two-round SOCKS5 no-auth handshake: a method-selection
// round requiring [0x05, 0x00] back, then a CONNECT request round requiring a 10-byte reply whose
// first two bytes are [0x05, 0x00].
type socks5Negotiator struct{}

func (socks5Negotiator) Protocol() proxy.Protocol { return proxy.SOCKS5 }

func (socks5Negotiator) Negotiate(p *proxy.Proxy, judgeHost string, judgePort uint16, verifyTLS bool) (Result, error) {
	if err := p.Stream().Send([]byte{0x05, 0x01, 0x00}); err != nil {
		return Result{}, err
	}
	methodResp, err := p.Stream().RecvExact(2)
	if err != nil {
		return Result{}, err
	}
	if methodResp[0] != 0x05 || methodResp[1] != 0x00 {
		return Result{}, fail(p, proxy.SOCKS5, errkind.AuthRequired, "SOCKS5 method negotiation did not yield no-auth")
	}

	dst, err := dstIPv4(judgeHost)
	if err != nil {
		return Result{}, fail(p, proxy.SOCKS5, errkind.InvalidData, err.Error())
	}
	port := portBE(judgePort)

	req := make([]byte, 0, 10)
	req = append(req, 0x05, 0x01, 0x00, 0x01)
	req = append(req, dst[:]...)
	req = append(req, port[:]...)

	if err := p.Stream().Send(req); err != nil {
		return Result{}, err
	}
	connResp, err := p.Stream().RecvExact(10)
	if err != nil {
		return Result{}, err
	}
	if connResp[0] != 0x05 || connResp[1] != 0x00 {
		return Result{}, fail(p, proxy.SOCKS5, errkind.BadStatus, "SOCKS5 connect request rejected")
	}
	return Result{UseFullPath: false, CheckAnonymity: false}, nil
}
