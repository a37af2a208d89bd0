package checker

import (
	"regexp"
	"strings"

	"github.com/markdingo/proxybroker/internal/httpresp"
	"github.com/markdingo/proxybroker/internal/proxy"
)

// ipv4Pattern matches any dotted-quad substring - used both for the correctness check's "at least
// one IPv4-shaped substring" requirement and for anonymity classification's body scan.
var ipv4Pattern = regexp.MustCompile(`\d+\.\d+\.\d+\.\d+`)

// isCorrect implements §4.8's is_correct: every one of the five conditions must hold for a judge
// response to be trusted as a genuine, non-interstitial reply to this exact request.
func isCorrect(resp *httpresp.Response, rv string, supportReferer, supportCookies bool, refererValue, cookieValue string) bool {
	if resp.StatusCode != 200 {
		return false
	}
	lowerRaw := strings.ToLower(resp.Raw)
	if !strings.Contains(lowerRaw, strings.ToLower(rv)) {
		return false
	}
	if !ipv4Pattern.MatchString(resp.Raw) {
		return false
	}
	if supportReferer && !strings.Contains(lowerRaw, strings.ToLower(refererValue)) {
		return false
	}
	if supportCookies && !strings.Contains(lowerRaw, strings.ToLower(cookieValue)) {
		return false
	}
	return true
}

// anonymityLevel implements §4.8's anonymity_level classification. marks is the judge's baseline
// via/proxy substring counts captured when it was fetched directly, without a proxy in front.
func anonymityLevel(resp *httpresp.Response, marks map[string]int, externalIP string) proxy.Level {
	content := strings.ToLower(resp.Body)

	via := strings.Count(content, "via") > marks["via"]
	if !via {
		stripped := strings.ReplaceAll(content, "proxy-rs", "")
		via = strings.Count(stripped, "proxy") > marks["proxy"]
	}

	ips := ipv4Pattern.FindAllString(content, -1)
	for _, ip := range ips {
		if ip == externalIP {
			return proxy.Transparent
		}
	}
	if via {
		return proxy.Anonymous
	}
	return proxy.High
}
