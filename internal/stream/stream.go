// Package stream models a proxy's owned duplex connection as a sum type so that "no stream
// available" bugs - caused by carrying two optional sockets and switching on presence - cannot
// occur. At any instant a Stream is in exactly one of three states: Closed, TCP, or TLS-over-TCP.
package stream

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/markdingo/proxybroker/internal/errkind"
	"github.com/markdingo/proxybroker/internal/tlsutil"
)

const me = "stream"

// State names the current position of a Stream in its Closed -> TCP -> TLS lifecycle.
type State int

const (
	Closed State = iota
	TCP
	TLS
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case TCP:
		return "tcp"
	case TLS:
		return "tls"
	}
	return "unknown"
}

// Sink receives the side-effects of Stream I/O so the owning proxy record can accumulate runtime
// samples and error-kind counters without the stream package importing the proxy package back.
type Sink interface {
	Proto() string // the negotiator_proto currently being attempted, for log tagging
	Sample(d time.Duration)
	Fail(proto string, kind errkind.Kind, msg string)
}

// Stream is an owned TCP/TLS duplex. It is not safe for concurrent use - the spec requires a
// Proxy's Stream to be owned by one task at a time.
type Stream struct {
	state State
	tcp   net.Conn
	tls   *tls.Conn

	timeout time.Duration
	sink    Sink
}

// New constructs a Closed Stream bound to sink for error/sample reporting and timeout as the
// per-call deadline applied to every subsequent I/O operation.
func New(sink Sink, timeout time.Duration) *Stream {
	return &Stream{sink: sink, timeout: timeout}
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	return s.state
}

// conn returns whichever of tls/tcp is currently authoritative for I/O - TLS supersedes TCP once
// present, per the spec's Proxy invariant.
func (s *Stream) conn() net.Conn {
	if s.tls != nil {
		return s.tls
	}
	return s.tcp
}

// ConnectTCP dials host:port and transitions Closed -> TCP.
func (s *Stream) ConnectTCP(host string, port uint16) error {
	if s.state != Closed {
		return fmt.Errorf("%s: ConnectTCP called from state %s, not Closed", me, s.state)
	}
	d := net.Dialer{Timeout: s.timeout}
	addr := net.JoinHostPort(host, itoa(port))
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		s.sink.Fail(s.sink.Proto(), classifyDial(err), err.Error())
		return err
	}
	s.tcp = conn
	s.state = TCP
	return nil
}

// UpgradeTLS performs a TLS handshake over the existing TCP connection and transitions TCP -> TLS.
// verify false accepts invalid certificates and hostnames, matching the Checker's ability to probe
// proxies with self-signed or mismatched certificates.
func (s *Stream) UpgradeTLS(sniHost string, verify bool) error {
	if s.state != TCP {
		return fmt.Errorf("%s: UpgradeTLS called from state %s, not TCP", me, s.state)
	}
	cfg, err := tlsutil.NewClientTLSConfig(verify, nil, "", "")
	if err != nil {
		return fmt.Errorf("%s: %w", me, err)
	}
	cfg.ServerName = sniHost

	conn := tls.Client(s.tcp, cfg)
	conn.SetDeadline(time.Now().Add(s.timeout))
	if err := conn.Handshake(); err != nil {
		s.sink.Fail(s.sink.Proto(), errkind.ConnectionError, err.Error())
		return err
	}
	s.tls = conn
	s.state = TLS
	return nil
}

// Close tears down TLS first (if present), then TCP, then clears both and returns to Closed - the
// spec's resolved semantics for what was an ambiguous double-clear in the source.
func (s *Stream) Close() error {
	var err error
	if s.tls != nil {
		err = s.tls.Close()
		s.tls = nil
	}
	if s.tcp != nil {
		if cerr := s.tcp.Close(); err == nil {
			err = cerr
		}
		s.tcp = nil
	}
	s.state = Closed
	return err
}

// Send writes bytes under the stream's configured deadline.
func (s *Stream) Send(b []byte) error {
	conn := s.conn()
	if conn == nil {
		return fmt.Errorf("%s: Send called on Closed stream", me)
	}
	conn.SetWriteDeadline(time.Now().Add(s.timeout))
	start := time.Now()
	_, err := conn.Write(b)
	if err != nil {
		s.sink.Fail(s.sink.Proto(), errkind.SendError, err.Error())
		return err
	}
	s.sink.Sample(time.Since(start))
	return nil
}

// RecvExact fills exactly n bytes or fails - used by the SOCKS negotiators whose responses have a
// fixed, known length.
func (s *Stream) RecvExact(n int) ([]byte, error) {
	conn := s.conn()
	if conn == nil {
		return nil, fmt.Errorf("%s: RecvExact called on Closed stream", me)
	}
	conn.SetReadDeadline(time.Now().Add(s.timeout))
	buf := make([]byte, n)
	start := time.Now()
	_, err := io.ReadFull(conn, buf)
	if err != nil {
		s.sink.Fail(s.sink.Proto(), classifyRecv(err), err.Error())
		return nil, err
	}
	s.sink.Sample(time.Since(start))
	return buf, nil
}

// RecvAll reads until EOF or the deadline, concatenating everything seen - used for HTTP-style
// responses where proxies frequently mis-frame Content-Length.
func (s *Stream) RecvAll() ([]byte, error) {
	conn := s.conn()
	if conn == nil {
		return nil, fmt.Errorf("%s: RecvAll called on Closed stream", me)
	}
	conn.SetReadDeadline(time.Now().Add(s.timeout))
	start := time.Now()
	buf, err := io.ReadAll(conn)
	if err != nil && !errors.Is(err, io.EOF) {
		s.sink.Fail(s.sink.Proto(), classifyRecv(err), err.Error())
		return nil, err
	}
	s.sink.Sample(time.Since(start))
	return buf, nil
}

func classifyDial(err error) errkind.Kind {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errkind.ConnectionTimeout
	}
	return errkind.ConnectionError
}

func classifyRecv(err error) errkind.Kind {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errkind.RecvTimeout
	}
	return errkind.RecvError
}

func itoa(p uint16) string {
	return fmt.Sprintf("%d", p)
}
