package provider

import (
	"context"
	"errors"
	"net/textproto"
	"strconv"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPMailer sends plain-text mail through one SMTP relay.
type SMTPMailer struct {
	mu     sync.Mutex
	from   string
	client *mail.Client
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, err
	}
	return &SMTPMailer{from: cfg.From, client: client}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, address, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return &TransportError{Message: err.Error(), Code: "EENVELOPE", Err: err}
	}
	if err := msg.To(address); err != nil {
		return &TransportError{Message: err.Error(), Code: "EENVELOPE", Err: err}
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	// One SMTP session at a time; concurrent blasts share the relay.
	m.mu.Lock()
	err := m.client.DialAndSendWithContext(ctx, msg)
	m.mu.Unlock()
	if err != nil {
		return smtpError(err)
	}
	return nil
}

func smtpError(err error) *TransportError {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return &TransportError{Message: tpErr.Msg, Code: strconv.Itoa(tpErr.Code), Err: err}
	}
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		code := "SMTP_PERM"
		if sendErr.IsTemp() {
			code = "SMTP_TEMP"
		}
		return &TransportError{Message: sendErr.Error(), Code: code, Err: err}
	}
	return networkError(err)
}
