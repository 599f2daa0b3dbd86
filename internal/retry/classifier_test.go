package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/outreach-backend/internal/provider"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Disposition
	}{
		{"nil", nil, Disposition{}},
		{"timeout code", &provider.TransportError{Message: "timed out", Code: "ETIMEDOUT"}, Disposition{Retryable: true}},
		{"connection reset", &provider.TransportError{Message: "reset", Code: "ECONNRESET"}, Disposition{Retryable: true}},
		{"server error", &provider.TransportError{Message: "bad gateway", Code: "502", Status: 502}, Disposition{Retryable: true}},
		{"smtp greylisting", &provider.TransportError{Message: "try later", Code: "451", Status: 451}, Disposition{Retryable: true}},
		{"http 429", &provider.TransportError{Message: "slow down", Code: "429", Status: 429}, Disposition{Retryable: true, RateLimited: true}},
		{"gateway rate code", &provider.TransportError{Message: "x", Code: "20429"}, Disposition{Retryable: true, RateLimited: true}},
		{"throttle language", &provider.TransportError{Message: "Message throttled by carrier", Code: "30022"}, Disposition{Retryable: true, RateLimited: true}},
		{"quota language", &provider.TransportError{Message: "Daily sending quota exceeded", Code: "550"}, Disposition{Retryable: true, RateLimited: true}},
		{"invalid number", &provider.TransportError{Message: "invalid To number", Code: "21211", Status: 400}, Disposition{}},
		{"mailbox unknown", &provider.TransportError{Message: "no such user", Code: "550"}, Disposition{}},
		{"plain rate limit error", errors.New("rate limit reached"), Disposition{Retryable: true, RateLimited: true}},
		{"plain error", errors.New("boom"), Disposition{}},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), Disposition{Retryable: true}},
		{"cancelled", context.Canceled, Disposition{}},
		{"net op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("no route")}, Disposition{Retryable: true}},
		{"unknown host code", &provider.TransportError{Message: "lookup failed", Code: "ENOTFOUND", Err: &net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "no such host", Name: "sms.invalid", IsNotFound: true}}}, Disposition{}},
		{"unknown host cause", &net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "no such host", Name: "sms.invalid", IsNotFound: true}}, Disposition{}},
		{"dns temporary failure", &provider.TransportError{Message: "lookup failed", Code: "EAI_AGAIN"}, Disposition{Retryable: true}},
		{"wrapped cause", &provider.TransportError{Message: "x", Err: context.DeadlineExceeded}, Disposition{Retryable: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestDisposition_Permanent(t *testing.T) {
	assert.True(t, Disposition{}.Permanent())
	assert.False(t, Disposition{Retryable: true}.Permanent())
}
