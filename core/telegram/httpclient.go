package telegram

import (
	"log/slog"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/m3rciful/lessonbot/core/logger"
	"github.com/m3rciful/lessonbot/core/telegram/netutil"
)

// ClientOptions tunes BuildHTTPClient.
type ClientOptions struct {
	// PollTimeout is how long getUpdates may hang. Response deadlines are
	// stretched past it so idle long polls do not time out.
	PollTimeout time.Duration
	// Retries of 0 selects 3; a negative value disables retries.
	Retries int
	Backoff time.Duration
}

// BuildHTTPClient returns an HTTP client for Bot API calls with transport
// level retries.
func BuildHTTPClient(opts ClientOptions) *http.Client {
	const slack = 10 * time.Second
	poll := max(opts.PollTimeout, 0)

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: poll + slack,
		ExpectContinueTimeout: time.Second,
	}

	retries := opts.Retries
	switch {
	case retries == 0:
		retries = 3
	case retries < 0:
		retries = 0
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	return &http.Client{
		Timeout:   poll + 3*slack,
		Transport: &retryTransport{base: transport, retries: retries, backoff: backoff},
	}
}

// retryTransport repeats failed round trips. Calls that change chat state
// are only repeated when the request never left the machine, so a lesson is
// never delivered twice.
type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

// apiMethod extracts the Bot API method from /bot<token>/<method> without
// exposing the token.
func apiMethod(req *http.Request) string {
	return path.Base(req.URL.Path)
}

func idempotent(method string) bool {
	m := strings.ToLower(method)
	return strings.HasPrefix(m, "get") || m == "setmycommands" || m == "deletewebhook" || m == "setwebhook"
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	method := apiMethod(req)
	canRepeat := netutil.ShouldRetry
	if !idempotent(method) {
		canRepeat = netutil.NotSent
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		r := req
		if attempt > 0 {
			if req.Body != nil && req.GetBody == nil {
				return nil, lastErr
			}
			r = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				r.Body = body
			}
		}

		resp, err := t.base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt >= t.retries || !canRepeat(err) {
			return nil, err
		}

		delay := t.backoff << attempt
		logger.Debug(req.Context(), logger.CompTG, "http.retry",
			slog.String("method", method),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			logger.Err(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}
