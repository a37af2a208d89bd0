package negotiate

import "strconv"

// parseStatusLine extracts the numeric status code from the first line of a raw HTTP response,
// e.g. "HTTP/1.1 200 Connection established". It is deliberately looser than httpresp.Parse - a
// CONNECT reply from a misbehaving proxy often isn't a well-formed full response, just a status
// line - so negotiators use this instead of pulling in the full response parser.
func parseStatusLine(raw []byte) (int, bool) {
	line := raw
	for i, b := range raw {
		if b == '\n' {
			line = raw[:i]
			break
		}
	}
	fields := splitFields(string(line))
	if len(fields) < 2 {
		return 0, false
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return code, true
}

func splitFields(s string) []string {
	var fields []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\r' {
			if start >= 0 {
				fields = append(fields, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, s[start:])
	}
	return fields
}
