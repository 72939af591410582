package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/mailbot/core/netutil"
)

const (
	dialTimeout       = 5 * time.Second
	tlsHandshake      = 5 * time.Second
	idleConnTimeout   = 30 * time.Second
	keepAliveInterval = 30 * time.Second
	// headerSlack is what a call may take beyond the long-polling wait.
	headerSlack = 10 * time.Second
	// fileDownloadBudget covers a 20 MiB attachment on a slow link.
	fileDownloadBudget = 60 * time.Second
	retryAttempts      = 3
	retryBackoff       = 2 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. getUpdates
// holds the response for up to pollTimeout, so header and total timeouts are
// derived from it; file downloads share the client and need the larger
// budget.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	if pollTimeout < 0 {
		pollTimeout = 0
	}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshake,
		ResponseHeaderTimeout: pollTimeout + headerSlack,
		ExpectContinueTimeout: time.Second,
	}

	total := pollTimeout + headerSlack
	if total < fileDownloadBudget {
		total = fileDownloadBudget
	}
	return &http.Client{
		Timeout:   total,
		Transport: &retryTransport{base: base, maxRetries: retryAttempts, backoff: retryBackoff},
	}
}

// retryTransport replays requests that failed before any response arrived.
// Requests whose body cannot be rewound are attempted once.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.maxRetries; attempt++ {
		if !netutil.ShouldRetry(err) || (req.Body != nil && req.GetBody == nil) {
			break
		}
		if waitErr := t.wait(req, attempt); waitErr != nil {
			return nil, waitErr
		}

		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, bodyErr
			}
			retry.Body = body
		}
		resp, err = base.RoundTrip(retry)
	}
	return resp, err
}

// wait sleeps a linearly growing backoff unless the request is cancelled.
func (t *retryTransport) wait(req *http.Request, attempt int) error {
	delay := t.backoff * time.Duration(attempt)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}
