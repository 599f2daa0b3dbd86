// Package provider holds the per-channel transports that deliver one message to one address.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Adapter sends one message to one normalized address. subject is ignored by channels without one.
type Adapter interface {
	Send(ctx context.Context, address, subject, body string) error
}

// AdapterFunc lets a plain function act as an Adapter.
type AdapterFunc func(ctx context.Context, address, subject, body string) error

func (f AdapterFunc) Send(ctx context.Context, address, subject, body string) error {
	return f(ctx, address, subject, body)
}

// TransportError is a failed send. Code is provider specific and is what the retry classifier looks at.
type TransportError struct {
	Message string
	Code    string
	// Status is the HTTP status when an HTTP gateway answered. SMTP reply codes go in Code.
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (code %s)", e.Message, e.Code)
	}
	return e.Message
}

func (e *TransportError) Unwrap() error { return e.Err }

// networkCode maps a dial/read failure to an errno-like code.
func networkCode(err error) string {
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "ETIMEDOUT"
	case errors.As(err, &nerr) && nerr.Timeout():
		return "ETIMEDOUT"
	case errors.Is(err, syscall.ECONNRESET):
		return "ECONNRESET"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "ECONNREFUSED"
	case errors.Is(err, syscall.EPIPE):
		return "EPIPE"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTemporary {
			return "EAI_AGAIN"
		}
		return "ENOTFOUND"
	}
	return "ECONNECTION"
}

func networkError(err error) *TransportError {
	return &TransportError{Message: err.Error(), Code: networkCode(err), Err: err}
}
