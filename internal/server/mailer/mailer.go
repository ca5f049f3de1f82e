// Package mailer delivers the verification and password reset emails.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/config"
	"github.com/wneessen/go-mail"
)

// DefaultSendTimeout bounds one delivery, including dial and the SMTP dialogue.
const DefaultSendTimeout = 10 * time.Second

// Sender delivers one HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// New returns an SMTPSender, or a LogSender when no SMTP host is configured.
func New(cfg *config.Config, logger logging.Logger) (Sender, error) {
	if cfg.SMTPHost == "" {
		return NewLogSender(logger), nil
	}
	return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
}

// smtpClient is the subset of *mail.Client used by SMTPSender.
type smtpClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPSender sends through an SMTP relay, using STARTTLS when the relay
// offers it and PLAIN auth when a user is set.
type SMTPSender struct {
	client  smtpClient
	from    string
	timeout time.Duration
}

func NewSMTPSender(host string, port int, user, password, from string) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(DefaultSendTimeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(user),
			mail.WithPassword(password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: from, timeout: DefaultSendTimeout}, nil
}

// Send returns once the relay accepted the message, or when ctx or the send
// timeout expires, whichever comes first.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return common.ExternalError("send email", err)
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return common.NewValidationError("email", "header contains a line break")
	}

	msg, err := s.buildMessage(to, subject, htmlBody)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.client.DialAndSendWithContext(ctx, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return common.ExternalError("send email", err)
		}
		return nil
	case <-ctx.Done():
		return common.ExternalError("send email", ctx.Err())
	}
}

func (s *SMTPSender) buildMessage(to, subject, htmlBody string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, common.NewValidationError("email", "invalid recipient address")
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	return msg, nil
}

// LogSender records that an email would have been sent. It is used in
// development when no SMTP relay is configured. The body carries single-use
// secrets and is never logged.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger.With("module", "mailer")}
}

func (s *LogSender) Send(ctx context.Context, to, subject, _ string) error {
	s.logger.Info(ctx, "email not delivered, no SMTP host configured", "to", to, "subject", subject)
	return nil
}
