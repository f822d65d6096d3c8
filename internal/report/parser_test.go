package report_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/volt-test/volt/internal/report"
)

const summary = `Test Metrics Summary:
===================
Duration:     10.5s
Total Reqs:   1500
Success Rate: 98.50%
Req/sec:      142.86
Success Requests: 1477
Failed Requests:  23

Response Time:
------------
Min:    12.3ms
Max:    1.2s
Avg:    85.4ms
Median: 70ms
P95:    250ms
P99:    800ms
`

func TestParse(t *testing.T) {
	t.Parallel()

	r := report.Parse(summary)
	require.Equal(t, summary, r.Raw)
	require.Equal(t, "10.5s", r.Duration)
	require.Equal(t, 1500, r.TotalRequests)
	require.InDelta(t, 98.5, r.SuccessRate, 1e-9)
	require.InDelta(t, 142.86, r.RequestsPerSecond, 1e-9)
	require.Equal(t, 1477, r.SuccessRequests)
	require.Equal(t, 23, r.FailedRequests)

	rt := r.ResponseTime
	require.NotNil(t, rt.Min)
	require.Equal(t, "12.3ms", *rt.Min)
	require.Equal(t, "1.2s", *rt.Max)
	require.Equal(t, "85.4ms", *rt.Avg)
	require.Equal(t, "70ms", *rt.Median)
	require.Equal(t, "250ms", *rt.P95)
	require.Equal(t, "800ms", *rt.P99)
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	r := report.Parse("")
	require.Equal(t, "0", r.Duration)
	require.Zero(t, r.TotalRequests)
	require.Zero(t, r.SuccessRate)
	require.Nil(t, r.ResponseTime.Min)
	require.Nil(t, r.ResponseTime.P99)
}

func TestParsePartial(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    string
		then     func(*testing.T, report.Report)
	}{
		{
			"no response time block",
			"Duration: 2m\nTotal Reqs: 10\nMin: 5ms\n",
			func(t *testing.T, r report.Report) {
				require.Equal(t, "2m", r.Duration)
				require.Equal(t, 10, r.TotalRequests)
				require.Nil(t, r.ResponseTime.Min)
			},
		},
		{
			"response time without percentiles",
			"Response Time:\nMin: 1ms\nMax: 9ms\n",
			func(t *testing.T, r report.Report) {
				require.Equal(t, "0", r.Duration)
				require.Equal(t, "1ms", *r.ResponseTime.Min)
				require.Equal(t, "9ms", *r.ResponseTime.Max)
				require.Nil(t, r.ResponseTime.P95)
			},
		},
		{
			"unknown duration unit",
			"Duration: 10d\nReq/sec: 1.5.2\n",
			func(t *testing.T, r report.Report) {
				require.Equal(t, "0", r.Duration)
				require.InDelta(t, 1.5, r.RequestsPerSecond, 1e-9)
			},
		},
		{
			"hours",
			"Duration:  1.5hr\n",
			func(t *testing.T, r report.Report) {
				require.Equal(t, "1.5hr", r.Duration)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			tc.then(t, report.Parse(tc.given))
		})
	}
}

func TestReportJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(report.Parse("Duration: 1s\n"))
	require.NoError(t, err)
	require.JSONEq(t, `{
		"duration": "1s",
		"totalRequests": 0,
		"successRate": 0,
		"requestsPerSecond": 0,
		"successRequests": 0,
		"failedRequests": 0,
		"responseTime": {"min": null, "max": null, "avg": null, "median": null, "p95": null, "p99": null}
	}`, string(b))
}
