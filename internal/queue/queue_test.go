package queue

import (
	"testing"
)

func TestPushPop(t *testing.T) {
	q := New()
	q.Push(Candidate{Host: "1.2.3.4", Port: 8080})
	if q.Len() != 1 {
		t.Fatalf("expected len 1, got %d", q.Len())
	}
	c, ok := q.Pop()
	if !ok {
		t.Fatal("expected ok")
	}
	if c.Host != "1.2.3.4" || c.Port != 8080 {
		t.Fatalf("unexpected candidate: %+v", c)
	}
	if q.Len() != 0 {
		t.Fatalf("expected len 0, got %d", q.Len())
	}
}

func TestPopBlocksThenClose(t *testing.T) {
	q := New()
	done := make(chan bool)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()
	q.Close()
	if ok := <-done; ok {
		t.Fatal("expected Pop to return ok=false after Close")
	}
}

func TestCandidateKey(t *testing.T) {
	c := Candidate{Host: "10.0.0.1", Port: 3128}
	if c.Key() != "10.0.0.1:3128" {
		t.Fatalf("unexpected key %q", c.Key())
	}
}

func TestDedupAdmitsOnce(t *testing.T) {
	d := NewDedup()
	if !d.Admit("1.2.3.4:80") {
		t.Fatal("expected first admission to succeed")
	}
	if d.Admit("1.2.3.4:80") {
		t.Fatal("expected second admission of same key to fail")
	}
	if d.Len() != 1 {
		t.Fatalf("expected 1 distinct key, got %d", d.Len())
	}
}
