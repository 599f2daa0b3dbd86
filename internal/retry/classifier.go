// internal/retry/classifier.go
package retry

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/unclebandit/outreach-backend/internal/provider"
)

// Disposition is what the dispatch engine does after one failed attempt.
// A rate-limited failure is always retryable as well.
type Disposition struct {
	Retryable   bool
	RateLimited bool
}

func (d Disposition) Permanent() bool { return !d.Retryable }

var rateLimitCodes = map[string]bool{
	"429":   true,
	"20429": true,
	"4.7.0": true,
}

var transientCodes = map[string]bool{
	"ETIMEDOUT":    true,
	"ECONNRESET":   true,
	"ECONNREFUSED": true,
	"ECONNECTION":  true,
	"EPIPE":        true,
	"EAI_AGAIN":    true,
	"ESOCKET":      true,
	"SMTP_TEMP":    true,
	"421":          true,
	"450":          true,
	"451":          true,
	"452":          true,
	"454":          true,
}

// permanentCodes are network failures that another attempt will not fix.
var permanentCodes = map[string]bool{
	"ENOTFOUND": true,
}

var rateLimitPhrases = []string{
	"rate limit",
	"too many",
	"throttl",
	"quota",
	"sending limit",
}

// Classify maps a send failure to a disposition. nil and context.Canceled are permanent.
func Classify(err error) Disposition {
	if err == nil || errors.Is(err, context.Canceled) {
		return Disposition{}
	}

	var te *provider.TransportError
	if errors.As(err, &te) {
		if rateLimited(te.Code, te.Status, te.Message) {
			return Disposition{Retryable: true, RateLimited: true}
		}
		if transientCodes[te.Code] || te.Status >= 500 {
			return Disposition{Retryable: true}
		}
		if te.Err == nil || permanentCodes[te.Code] {
			return Disposition{}
		}
		err = te.Err
	} else if rateLimited("", 0, err.Error()) {
		return Disposition{Retryable: true, RateLimited: true}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Disposition{Retryable: true}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return Disposition{Retryable: true}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return Disposition{}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Disposition{Retryable: true}
	}
	return Disposition{}
}

func rateLimited(code string, status int, msg string) bool {
	if status == 429 || rateLimitCodes[code] {
		return true
	}
	lower := strings.ToLower(msg)
	for _, p := range rateLimitPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
