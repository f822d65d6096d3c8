// Package report parses the summary the volt-test engine prints on its
// primary output once a test finishes.
package report

import (
	"regexp"
	"strconv"
	"strings"
)

// ResponseTime holds the latency summary exactly as printed by the engine.
// A nil field means the engine did not report it.
type ResponseTime struct {
	Min    *string `json:"min"`
	Max    *string `json:"max"`
	Avg    *string `json:"avg"`
	Median *string `json:"median"`
	P95    *string `json:"p95"`
	P99    *string `json:"p99"`
}

type Report struct {
	Raw               string       `json:"-"`
	Duration          string       `json:"duration"`
	TotalRequests     int          `json:"totalRequests"`
	SuccessRate       float64      `json:"successRate"`
	RequestsPerSecond float64      `json:"requestsPerSecond"`
	SuccessRequests   int          `json:"successRequests"`
	FailedRequests    int          `json:"failedRequests"`
	ResponseTime      ResponseTime `json:"responseTime"`
}

var (
	durationRx        = regexp.MustCompile(`Duration:\s+([\d.]+(?:ms|s|m|hr))`)
	totalRequestsRx   = regexp.MustCompile(`Total Reqs:\s+(\d+)`)
	successRateRx     = regexp.MustCompile(`Success Rate:\s+([\d.]+)%`)
	requestsPerSecRx  = regexp.MustCompile(`Req/sec:\s+([\d.]+)`)
	successRequestsRx = regexp.MustCompile(`Success Requests:\s+(\d+)`)
	failedRequestsRx  = regexp.MustCompile(`Failed Requests:\s+(\d+)`)

	minRx    = regexp.MustCompile(`Min:\s+([^\n]+)`)
	maxRx    = regexp.MustCompile(`Max:\s+([^\n]+)`)
	avgRx    = regexp.MustCompile(`Avg:\s+([^\n]+)`)
	medianRx = regexp.MustCompile(`Median:\s+([^\n]+)`)
	p95Rx    = regexp.MustCompile(`P95:\s+([^\n]+)`)
	p99Rx    = regexp.MustCompile(`P99:\s+([^\n]+)`)
)

const responseTimeMarker = "Response Time:"

// Parse extracts the metrics from raw. Missing metrics keep their zero value
// and Duration defaults to "0"; Parse never fails.
func Parse(raw string) Report {
	r := Report{Raw: raw, Duration: "0"}
	if raw == "" {
		return r
	}

	if m := match(durationRx, raw); m != "" {
		r.Duration = m
	}
	r.TotalRequests = atoi(match(totalRequestsRx, raw))
	r.SuccessRate = atof(match(successRateRx, raw))
	r.RequestsPerSecond = atof(match(requestsPerSecRx, raw))
	r.SuccessRequests = atoi(match(successRequestsRx, raw))
	r.FailedRequests = atoi(match(failedRequestsRx, raw))

	if strings.Contains(raw, responseTimeMarker) {
		r.ResponseTime = ResponseTime{
			Min:    latency(minRx, raw),
			Max:    latency(maxRx, raw),
			Avg:    latency(avgRx, raw),
			Median: latency(medianRx, raw),
			P95:    latency(p95Rx, raw),
			P99:    latency(p99Rx, raw),
		}
	}
	return r
}

func match(rx *regexp.Regexp, s string) string {
	m := rx.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

func latency(rx *regexp.Regexp, s string) *string {
	m := rx.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v := strings.TrimSpace(m[1])
	return &v
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// atof reads the leading decimal number of s, so "99.5.1" yields 99.5.
func atof(s string) float64 {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if j := strings.IndexByte(s[i+1:], '.'); j >= 0 {
			s = s[:i+1+j]
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
