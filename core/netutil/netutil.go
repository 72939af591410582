// Package netutil classifies network failures seen by outbound clients
// (the Telegram API and SMTP).
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
)

// Failure classes returned by Classify.
const (
	ClassTimeout = "timeout"
	ClassDNS     = "dns"
	ClassDial    = "dial"
	ClassReset   = "reset"
	ClassTLS     = "tls"
)

// Classify names the network failure behind err, or returns "" when err is
// nil or not a recognised network failure.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return ClassTimeout
		}
		return ClassDNS
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return ClassReset
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return ClassDial
		}
		if opErr.Err != nil && !errors.Is(opErr.Err, err) {
			if class := Classify(opErr.Err); class != "" {
				return class
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
		if class := Classify(urlErr.Err); class != "" {
			return class
		}
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return ClassTLS
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return ClassTLS
	}
	return ""
}

// ShouldRetry reports whether a failure is transient: timeouts, refused or
// failed dials, and connections dropped mid-request.
func ShouldRetry(err error) bool {
	switch Classify(err) {
	case ClassTimeout, ClassDial, ClassReset:
		return true
	}
	return false
}
