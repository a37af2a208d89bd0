// Package gateway implements the §4.10 forward proxy listener serve mode exposes: it accepts
// client connections, parses each as an HTTP/1.1 message, picks a scheme-matching live pool entry,
// and either forwards a non-CONNECT request verbatim or splices a CONNECT tunnel bidirectionally.
// It is grounded on trustydns-proxy/server.go's accept-loop/stats/reporter shape - a Start method
// that records to an errorChan and a WaitGroup, a connectiontracker.Tracker driven off connection
// state transitions - generalized from HTTP ConnState callbacks (net/http drives those itself) to a
// small local set of http.ConnState values driven directly around Accept/Close of raw TCP conns.
package gateway

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/markdingo/proxybroker/internal/concurrencytracker"
	"github.com/markdingo/proxybroker/internal/connectiontracker"
	"github.com/markdingo/proxybroker/internal/livepool"
)

const me = "gateway"

// Config controls Gateway construction.
type Config struct {
	ListenAddress string
	DialTimeout   time.Duration
	PoolWait      time.Duration // how long Get may wait on the pool's hand-off channel
}

// Gateway is the live forwarding listener. Cct reports peak concurrent client connections, the
// same concurrencytracker.Counter shape the teacher's servers use for peak concurrent requests.
type Gateway struct {
	cfg     Config
	pool    *livepool.Pool
	connTrk *connectiontracker.Tracker
	cct     concurrencytracker.Counter

	mu       sync.Mutex
	listener net.Listener
}

// New constructs a Gateway that serves client connections from pool.
func New(cfg Config, pool *livepool.Pool) *Gateway {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 8 * time.Second
	}
	if cfg.PoolWait <= 0 {
		cfg.PoolWait = 15 * time.Second
	}
	return &Gateway{
		cfg:     cfg,
		pool:    pool,
		connTrk: connectiontracker.New(cfg.ListenAddress),
	}
}

// Start listens on cfg.ListenAddress and serves connections until ctx-equivalent Stop is called.
// Per §4.10, startup waits until the pool is non-empty before accepting.
func (g *Gateway) Start(errorChan chan error, wg *sync.WaitGroup) error {
	for g.pool.Len() == 0 {
		time.Sleep(50 * time.Millisecond)
	}

	ln, err := net.Listen("tcp", g.cfg.ListenAddress)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.listener = ln
	g.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				errorChan <- err
				return
			}
			g.connTrk.ConnState(conn.RemoteAddr().String(), time.Now(), http.StateNew)
			go g.serve(conn)
		}
	}()
	return nil
}

// Name implements the reporter interface.
func (g *Gateway) Name() string {
	return me
}

// Report implements the reporter interface, combining peak concurrent connections with the
// connection tracker's own per-state counters.
func (g *Gateway) Report(resetCounters bool) string {
	return fmt.Sprintf("peakConns=%d %s", g.cct.Peak(resetCounters), g.connTrk.Report(resetCounters))
}

// Stop closes the listener, unblocking Accept.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener != nil {
		return g.listener.Close()
	}
	return nil
}

// serve handles one accepted client connection end to end.
func (g *Gateway) serve(conn net.Conn) {
	g.cct.Add()
	defer g.cct.Done()
	key := conn.RemoteAddr().String()
	defer func() {
		conn.Close()
		g.connTrk.ConnState(key, time.Now(), http.StateClosed)
	}()
	g.connTrk.ConnState(key, time.Now(), http.StateActive)

	reader := bufio.NewReader(conn)
	req, err := http.ReadRequest(reader)
	if err != nil {
		return
	}

	if req.Method == http.MethodConnect {
		g.serveConnect(conn, req)
		return
	}
	g.serveForward(conn, req)
}

// serveForward implements §4.10's non-CONNECT mode: fetch an HTTP-scheme pool entry, dial it,
// forward the client's request verbatim, and relay the response back.
func (g *Gateway) serveForward(conn net.Conn, req *http.Request) {
	sp := g.pool.Get("HTTP", g.cfg.PoolWait)
	if sp == nil {
		writeBadGateway(conn)
		return
	}

	upstream, err := net.DialTimeout("tcp", net.JoinHostPort(sp.Host, strconv.Itoa(int(sp.Port))), g.cfg.DialTimeout)
	if err != nil {
		writeBadGateway(conn)
		return
	}
	defer upstream.Close()

	if err := req.Write(upstream); err != nil {
		writeBadGateway(conn)
		return
	}

	resp, err := http.ReadResponse(bufio.NewReader(upstream), req)
	if err != nil {
		writeBadGateway(conn)
		return
	}
	defer resp.Body.Close()

	if err := resp.Write(conn); err != nil {
		return
	}

	sp.RequestCount++
	g.pool.Put(sp)
}

// serveConnect implements §4.10's CONNECT mode: fetch an HTTPS-scheme pool entry, dial it, issue a
// CONNECT to the client's destination, and on a 200 reply splice the two connections bidirectionally
// until either side closes.
func (g *Gateway) serveConnect(conn net.Conn, req *http.Request) {
	sp := g.pool.Get("HTTPS", g.cfg.PoolWait)
	if sp == nil {
		writeBadGateway(conn)
		return
	}

	upstream, err := net.DialTimeout("tcp", net.JoinHostPort(sp.Host, strconv.Itoa(int(sp.Port))), g.cfg.DialTimeout)
	if err != nil {
		writeBadGateway(conn)
		return
	}
	defer upstream.Close()

	dst := req.Host
	connectReq := "CONNECT " + dst + " HTTP/1.1\r\n" +
		"Host: " + dst + "\r\n" +
		"Proxy-Connection: Keep-Alive\r\n\r\n"

	if _, err := upstream.Write([]byte(connectReq)); err != nil {
		writeBadGateway(conn)
		return
	}

	status, err := readConnectStatus(upstream)
	if err != nil || status != 200 {
		writeBadGateway(conn)
		return
	}

	if _, err := conn.Write([]byte("HTTP/1.1 200 Connection established\r\n\r\n")); err != nil {
		return
	}

	splice(conn, upstream)
	sp.RequestCount++
	g.pool.Put(sp)
}

// splice copies bytes bidirectionally between client and upstream until either side closes.
func splice(client, upstream net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(upstream, client)
		if c, ok := upstream.(interface{ CloseWrite() error }); ok {
			c.CloseWrite()
		}
	}()
	go func() {
		defer wg.Done()
		io.Copy(client, upstream)
		if c, ok := client.(interface{ CloseWrite() error }); ok {
			c.CloseWrite()
		}
	}()
	wg.Wait()
}

func readConnectStatus(conn net.Conn) (int, error) {
	conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func writeBadGateway(conn net.Conn) {
	conn.Write([]byte("HTTP/1.1 502 Bad Gateway\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"))
}
