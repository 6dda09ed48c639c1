package httpu

import (
	"net"
	"net/http"
	"time"

	"reduction.dev/pinot/telemetry"
)

// NewClient creates an http.Client with its own transport that reports request
// metrics under metricName. A zero timeout means no overall request timeout.
//
// Leaving the client `Transport` field nil results in reusing the
// http.DefaultTransport between clients. In tests this resulted in "new"
// connections that http.Server.Shutdown() could never close.
func NewClient(metricName string, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: telemetry.NewMetricsTransport(metricName, transport),
	}
}
