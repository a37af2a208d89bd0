package gateway

import (
	"bufio"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/markdingo/proxybroker/internal/livepool"
	"github.com/markdingo/proxybroker/internal/proxy"
)

// upstreamProxy starts a TCP listener that reads one CONNECT request and replies 200, then echoes
// whatever it receives afterward - enough to exercise serveConnect's splice path.
func upstreamProxy(t *testing.T) (addr string, closeFn func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		req, err := http.ReadRequest(r)
		if err != nil {
			return
		}
		if req.Method == http.MethodConnect {
			conn.Write([]byte("HTTP/1.1 200 Connection established\r\n\r\n"))
			buf := make([]byte, 64)
			n, _ := conn.Read(buf)
			conn.Write(buf[:n])
		}
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

func TestServeConnectSplicesBytes(t *testing.T) {
	addr, closeFn := upstreamProxy(t)
	defer closeFn()
	host, portStr, _ := net.SplitHostPort(addr)
	var port uint16
	for _, c := range portStr {
		port = port*10 + uint16(c-'0')
	}

	pool := livepool.New(livepool.DefaultThresholds, livepool.NewLiveProxies())
	pool.Put(&proxy.SimpleProxy{
		Host:         host,
		Port:         port,
		RequestCount: 10,
		Types:        []proxy.TypeEntry{{Protocol: proxy.HTTPS}},
	})

	g := New(Config{DialTimeout: 2 * time.Second, PoolWait: time.Second}, pool)

	clientConn, serverConn := net.Pipe()

	go func() {
		clientConn.Write([]byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"))
		buf := make([]byte, 256)
		clientConn.Read(buf) // 200 Connection established
		clientConn.Write([]byte("ping"))
		buf2 := make([]byte, 64)
		clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n2, _ := clientConn.Read(buf2)
		if string(buf2[:n2]) != "ping" {
			t.Errorf("expected echoed ping, got %q", buf2[:n2])
		}
		clientConn.Close() // unblock the gateway's splice loop
	}()

	g.serve(&pipeConn{Conn: serverConn})
}

// pipeConn adapts net.Pipe's net.Conn (which has no RemoteAddr worth using) with a stable address
// string for the connection tracker.
type pipeConn struct {
	net.Conn
}

func (p *pipeConn) RemoteAddr() net.Addr { return pipeAddr{} }

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }
