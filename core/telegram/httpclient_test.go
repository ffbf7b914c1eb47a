package telegram

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

type scriptedTransport struct {
	errs  []error
	calls int
}

func (s *scriptedTransport) RoundTrip(*http.Request) (*http.Response, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func newRequest(t *testing.T, method string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		"https://api.telegram.org/bot123:secret/"+method, strings.NewReader("chat_id=1"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return req
}

type deadlineErr struct{}

func (deadlineErr) Error() string   { return "deadline exceeded" }
func (deadlineErr) Timeout() bool   { return true }
func (deadlineErr) Temporary() bool { return true }

var (
	dialErr = &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	readErr = &net.OpError{Op: "read", Err: errors.New("broken")}
)

func TestRetryTransportRepeatsPolls(t *testing.T) {
	base := &scriptedTransport{errs: []error{readErr, dialErr}}
	rt := &retryTransport{base: base, retries: 3, backoff: time.Millisecond}
	resp, err := rt.RoundTrip(newRequest(t, "getUpdates"))
	if err == nil {
		resp.Body.Close()
	}
	// read errors are not transient unless they time out.
	if base.calls != 1 || err == nil {
		t.Fatalf("calls = %d err = %v", base.calls, err)
	}

	base = &scriptedTransport{errs: []error{dialErr, dialErr}}
	rt.base = base
	resp, err = rt.RoundTrip(newRequest(t, "getUpdates"))
	if err != nil || base.calls != 3 {
		t.Fatalf("calls = %d err = %v", base.calls, err)
	}
	resp.Body.Close()
}

func TestRetryTransportProtectsSends(t *testing.T) {
	base := &scriptedTransport{errs: []error{deadlineErr{}}}
	rt := &retryTransport{base: base, retries: 3, backoff: time.Millisecond}
	if _, err := rt.RoundTrip(newRequest(t, "sendAudio")); err == nil || base.calls != 1 {
		t.Fatalf("timed out send was repeated: calls = %d err = %v", base.calls, err)
	}

	base = &scriptedTransport{errs: []error{dialErr}}
	rt.base = base
	resp, err := rt.RoundTrip(newRequest(t, "sendAudio"))
	if err != nil || base.calls != 2 {
		t.Fatalf("calls = %d err = %v", base.calls, err)
	}
	resp.Body.Close()
}

func TestRetryTransportGivesUp(t *testing.T) {
	base := &scriptedTransport{errs: []error{dialErr, dialErr, dialErr}}
	rt := &retryTransport{base: base, retries: 2, backoff: time.Millisecond}
	if _, err := rt.RoundTrip(newRequest(t, "getMe")); !errors.Is(err, dialErr) || base.calls != 3 {
		t.Fatalf("calls = %d err = %v", base.calls, err)
	}
}

func TestBuildHTTPClientStretchesDeadlines(t *testing.T) {
	c := BuildHTTPClient(ClientOptions{PollTimeout: time.Minute})
	if c.Timeout <= time.Minute {
		t.Fatalf("client timeout %v does not cover the poll", c.Timeout)
	}
	rt := c.Transport.(*retryTransport)
	if rt.retries != 3 {
		t.Fatalf("retries = %d", rt.retries)
	}
	if tr := rt.base.(*http.Transport); tr.ResponseHeaderTimeout <= time.Minute {
		t.Fatalf("header timeout = %v", tr.ResponseHeaderTimeout)
	}
	if apiMethod(newRequest(t, "sendVoice")) != "sendVoice" {
		t.Fatal("method not extracted")
	}
}
