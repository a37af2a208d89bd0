// Package output implements the three proxy listing sinks §6 describes: default (human-readable),
// text (plain host:port), and json (streamed array). It exists only so grab/find are runnable end
// to end - §1 marks output formatting itself out of scope, so these sinks are deliberately minimal.
// The json sink's nested geo/types shape follows original_source/utils/serializer.rs, per
// SPEC_FULL.md §9.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/markdingo/proxybroker/internal/proxy"
)

// Format names one of the three supported output formats.
type Format string

const (
	Default Format = "default"
	Text    Format = "text"
	JSON    Format = "json"
)

// Sink streams validated proxies to an io.Writer as they arrive, then finalizes any trailing
// framing (only JSON needs this, for its closing bracket).
type Sink interface {
	Write(sp *proxy.SimpleProxy) error
	Close() error
}

// New constructs a Sink for the given format writing to w.
func New(format Format, w io.Writer) Sink {
	switch format {
	case Text:
		return &textSink{w: w}
	case JSON:
		return &jsonSink{w: w}
	default:
		return &defaultSink{w: w}
	}
}

type defaultSink struct{ w io.Writer }

// Write renders "<Proxy CC RESPs [type1[: level], ...] host:port>" per §6.
func (s *defaultSink) Write(sp *proxy.SimpleProxy) error {
	_, err := fmt.Fprintf(s.w, "<Proxy %s %.2fs %s %s:%d>\n",
		sp.Geo.ISOCode, sp.AvgRespTime().Seconds(), formatTypes(sp.Types), sp.Host, sp.Port)
	return err
}

func (s *defaultSink) Close() error { return nil }

func formatTypes(types []proxy.TypeEntry) string {
	out := "["
	for i, te := range types {
		if i > 0 {
			out += ", "
		}
		out += string(te.Protocol)
		if te.Level != proxy.NoLevel {
			out += ": " + string(te.Level)
		}
	}
	return out + "]"
}

type textSink struct{ w io.Writer }

// Write renders "host:port\n" per §6.
func (s *textSink) Write(sp *proxy.SimpleProxy) error {
	_, err := fmt.Fprintf(s.w, "%s:%d\n", sp.Host, sp.Port)
	return err
}

func (s *textSink) Close() error { return nil }

// jsonRecord mirrors original_source/utils/serializer.rs's nested geo/types shape.
type jsonRecord struct {
	Host string `json:"host"`
	Port uint16 `json:"port"`
	Geo  struct {
		Country struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"country"`
		Region struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"region"`
		City string `json:"city"`
	} `json:"geo"`
	Types []jsonType `json:"types"`

	AvgRespTime float64 `json:"avg_resp_time"`
	ErrorRate   float64 `json:"error_rate"`
}

type jsonType struct {
	ProxyType string  `json:"proxy_type"`
	Level     *string `json:"level"`
}

type jsonSink struct {
	w       io.Writer
	count   int
	started bool
}

// Write streams one element of the JSON array per call, per §6's "streamed JSON array".
func (s *jsonSink) Write(sp *proxy.SimpleProxy) error {
	if !s.started {
		if _, err := io.WriteString(s.w, "["); err != nil {
			return err
		}
		s.started = true
	}
	if s.count > 0 {
		if _, err := io.WriteString(s.w, ","); err != nil {
			return err
		}
	}
	s.count++

	rec := jsonRecord{Host: sp.Host, Port: sp.Port, AvgRespTime: sp.AvgRespTime().Seconds(), ErrorRate: sp.ErrorRate()}
	rec.Geo.Country.Code = sp.Geo.ISOCode
	rec.Geo.Country.Name = sp.Geo.CountryName
	rec.Geo.Region.Code = sp.Geo.RegionISOCode
	rec.Geo.Region.Name = sp.Geo.RegionName
	rec.Geo.City = sp.Geo.CityName
	for _, te := range sp.Types {
		jt := jsonType{ProxyType: string(te.Protocol)}
		if te.Level != proxy.NoLevel {
			level := string(te.Level)
			jt.Level = &level
		}
		rec.Types = append(rec.Types, jt)
	}

	enc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.w.Write(enc)
	return err
}

// Close writes the closing bracket of the JSON array, opening an empty "[]" if no element was ever
// written.
func (s *jsonSink) Close() error {
	if !s.started {
		if _, err := io.WriteString(s.w, "["); err != nil {
			return err
		}
	}
	_, err := io.WriteString(s.w, "]\n")
	return err
}
