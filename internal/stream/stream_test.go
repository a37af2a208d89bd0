package stream

import (
	"net"
	"testing"
	"time"

	"github.com/markdingo/proxybroker/internal/errkind"
)

type mockSink struct {
	samples int
	fails   []errkind.Kind
}

func (m *mockSink) Proto() string               { return "TEST" }
func (m *mockSink) Sample(d time.Duration)      { m.samples++ }
func (m *mockSink) Fail(proto string, k errkind.Kind, msg string) {
	m.fails = append(m.fails, k)
}

func TestConnectSendRecv(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		conn.Read(buf)
		conn.Write([]byte("world"))
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	var port uint16
	for _, c := range portStr {
		port = port*10 + uint16(c-'0')
	}

	sink := &mockSink{}
	s := New(sink, time.Second)
	if s.State() != Closed {
		t.Fatal("expected Closed initial state")
	}
	if err := s.ConnectTCP(host, port); err != nil {
		t.Fatalf("ConnectTCP: %v", err)
	}
	if s.State() != TCP {
		t.Fatalf("expected TCP state, got %s", s.State())
	}
	if err := s.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := s.RecvExact(5)
	if err != nil {
		t.Fatalf("RecvExact: %v", err)
	}
	if string(got) != "world" {
		t.Fatalf("expected %q, got %q", "world", got)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.State() != Closed {
		t.Fatal("expected Closed after Close")
	}
	if sink.samples == 0 {
		t.Fatal("expected at least one recorded sample")
	}
}

func TestRecvExactShortCloseFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte("ab"))
		conn.Close()
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	var port uint16
	for _, c := range portStr {
		port = port*10 + uint16(c-'0')
	}

	sink := &mockSink{}
	s := New(sink, time.Second)
	if err := s.ConnectTCP(host, port); err != nil {
		t.Fatalf("ConnectTCP: %v", err)
	}
	if _, err := s.RecvExact(10); err == nil {
		t.Fatal("expected RecvExact to fail on short close, not return partial success")
	}
}
