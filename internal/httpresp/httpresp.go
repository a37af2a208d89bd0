// Package httpresp parses the raw bytes a negotiator reads off a Stream into a structured HTTP/1
// response, decompressing gzip/deflate bodies when Content-Encoding calls for it.
package httpresp

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// Response is the parsed view of an HTTP/1 response used for scoring (§4.8) and anonymity
// classification.
type Response struct {
	Version    string
	StatusCode int
	Reason     string
	Headers    map[string][]string // lower-cased keys
	Body       string              // UTF-8 lossy, decompressed when possible
	Raw        string              // reconstructed header block + \r\n\r\n + body, for substring scoring
}

// Parse reads raw as an HTTP/1 response. It never returns an error for malformed or truncated
// input in the way net/http does for a live connection - proxies routinely mis-frame responses, so
// a best-effort Response with StatusCode 0 is returned rather than failing the caller's negotiation
// outright; the caller's scoring in §4.8 will simply fail to match.
func Parse(raw []byte) *Response {
	resp := &Response{Headers: make(map[string][]string)}

	httpResp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(raw)), nil)
	if err != nil || httpResp == nil {
		resp.Raw = toUTF8(raw)
		resp.Body = resp.Raw
		return resp
	}
	defer httpResp.Body.Close()

	resp.Version = httpResp.Proto
	resp.StatusCode = httpResp.StatusCode
	resp.Reason = strings.TrimSpace(strings.TrimPrefix(httpResp.Status, itoa(httpResp.StatusCode)))
	for k, v := range httpResp.Header {
		resp.Headers[strings.ToLower(k)] = v
	}

	bodyBytes, _ := io.ReadAll(httpResp.Body)
	bodyBytes = decompress(bodyBytes, httpResp.Header.Get("Content-Encoding"))
	resp.Body = toUTF8(bodyBytes)

	var headerBlock strings.Builder
	headerBlock.WriteString(httpResp.Proto)
	headerBlock.WriteByte(' ')
	headerBlock.WriteString(httpResp.Status)
	headerBlock.WriteString("\r\n")
	for k, vs := range httpResp.Header {
		for _, v := range vs {
			headerBlock.WriteString(k)
			headerBlock.WriteString(": ")
			headerBlock.WriteString(v)
			headerBlock.WriteString("\r\n")
		}
	}
	resp.Raw = headerBlock.String() + "\r\n" + resp.Body

	return resp
}

// decompress best-effort inflates gzip/deflate bodies; on failure it falls back to the raw bytes
// per §4.3 ("on decompression failure, fall back to the raw bytes as UTF-8 lossy").
func decompress(body []byte, encoding string) []byte {
	encoding = strings.ToLower(strings.TrimSpace(encoding))
	switch encoding {
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return body
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return body
		}
		return out
	case "deflate":
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return body
		}
		return out
	default:
		return body
	}
}

func toUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
