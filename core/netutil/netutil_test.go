package netutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), ""},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), ClassTimeout},
		{"net timeout", timeoutErr{}, ClassTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "smtp.invalid"}, ClassDNS},
		{"dns timeout", &net.DNSError{IsTimeout: true}, ClassTimeout},
		{"dial", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ClassDial},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, ClassReset},
		{"eof", fmt.Errorf("smtp: %w", io.ErrUnexpectedEOF), ClassReset},
		{"url wraps dial", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}, ClassDial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(timeoutErr{}))
	assert.True(t, ShouldRetry(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.True(t, ShouldRetry(&net.OpError{Op: "write", Err: syscall.EPIPE}))
	assert.False(t, ShouldRetry(&net.DNSError{Err: "no such host"}))
	assert.False(t, ShouldRetry(errors.New("400 bad request")))
	assert.False(t, ShouldRetry(nil))
}
