package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/markdingo/proxybroker/internal/proxy"
)

func sample() *proxy.SimpleProxy {
	return &proxy.SimpleProxy{
		Host:         "1.2.3.4",
		Port:         8080,
		Geo:          proxy.GeoData{ISOCode: "US", CountryName: "United States", RegionISOCode: "CA", RegionName: "California", CityName: "Mountain View"},
		Types:        []proxy.TypeEntry{{Protocol: proxy.HTTP, Level: proxy.High}, {Protocol: proxy.SOCKS5}},
		RequestCount: 10,
		ErrorCount:   1,
		TotalRuntime: 0,
		SampleCount:  1,
	}
}

func TestDefaultSinkRendersTypesAndLevel(t *testing.T) {
	var buf bytes.Buffer
	s := New(Default, &buf)
	if err := s.Write(sample()); err != nil {
		t.Fatal(err)
	}
	s.Close()
	out := buf.String()
	if !strings.Contains(out, "1.2.3.4:8080") || !strings.Contains(out, "HTTP: High") || !strings.Contains(out, "US") {
		t.Fatalf("unexpected default output: %q", out)
	}
}

func TestTextSinkRendersHostPortOnly(t *testing.T) {
	var buf bytes.Buffer
	s := New(Text, &buf)
	s.Write(sample())
	s.Close()
	if buf.String() != "1.2.3.4:8080\n" {
		t.Fatalf("unexpected text output: %q", buf.String())
	}
}

func TestJSONSinkProducesValidArray(t *testing.T) {
	var buf bytes.Buffer
	s := New(JSON, &buf)
	s.Write(sample())
	s.Write(sample())
	s.Close()

	var records []jsonRecord
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("invalid JSON array: %v (%s)", err, buf.String())
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Geo.Country.Code != "US" || records[0].Types[0].ProxyType != "HTTP" {
		t.Fatalf("unexpected record shape: %+v", records[0])
	}
	if records[0].Types[0].Level == nil || *records[0].Types[0].Level != "High" {
		t.Fatalf("expected High level pointer, got %+v", records[0].Types[0])
	}
	if records[0].Types[1].Level != nil {
		t.Fatalf("expected nil level for SOCKS5 entry, got %v", *records[0].Types[1].Level)
	}
}

func TestJSONSinkEmptyProducesEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	s := New(JSON, &buf)
	s.Close()
	if buf.String() != "[]\n" {
		t.Fatalf("expected empty array, got %q", buf.String())
	}
}
