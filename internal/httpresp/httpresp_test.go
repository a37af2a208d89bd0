package httpresp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestParseBasic(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nVia: 1.1 proxy\r\n\r\nhello 1.2.3.4 world"
	resp := Parse([]byte(raw))
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if _, ok := resp.Headers["content-type"]; !ok {
		t.Fatal("expected lower-cased content-type header key")
	}
	if !strings.Contains(resp.Body, "1.2.3.4") {
		t.Fatalf("expected body to contain ip, got %q", resp.Body)
	}
	if !strings.Contains(resp.Raw, "Via") && !strings.Contains(resp.Raw, "via") {
		t.Fatalf("expected raw to preserve headers, got %q", resp.Raw)
	}
}

func TestParseGzipBody(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("decompressed body with 5.6.7.8"))
	gz.Close()

	raw := "HTTP/1.1 200 OK\r\nContent-Encoding: gzip\r\nContent-Length: " + itoa(buf.Len()) + "\r\n\r\n" + buf.String()
	resp := Parse([]byte(raw))
	if !strings.Contains(resp.Body, "5.6.7.8") {
		t.Fatalf("expected decompressed body, got %q", resp.Body)
	}
}

func TestParseMalformedFallsBackRaw(t *testing.T) {
	raw := "not an http response at all"
	resp := Parse([]byte(raw))
	if resp.Body != raw {
		t.Fatalf("expected raw fallback body %q, got %q", raw, resp.Body)
	}
}
