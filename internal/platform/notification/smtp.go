package notification

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

// ErrDisabled is returned by SMTPSender when email delivery is switched off.
var ErrDisabled = errors.New("email delivery is disabled")

// SMTPConfig configures the gomail-backed sender.
type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// SSL selects implicit TLS (port 465). Otherwise the connection is
	// upgraded with STARTTLS when the server offers it.
	SSL     bool
	Timeout time.Duration
}

// SMTPSender composes messages with gomail and delivers them through an SMTP
// relay.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

// SendEmail dials, authenticates and sends msg. The connection carries a
// deadline of the configured timeout or the ctx deadline, whichever is
// sooner, and is closed when ctx is done, so no exchange outlives the call.
func (s *SMTPSender) SendEmail(ctx context.Context, msg Email) error {
	if !s.cfg.Enabled {
		return ErrDisabled
	}

	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(s.cfg.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	conn, err := s.dial(ctx, deadline)
	if err != nil {
		return s.sendError(ctx, msg.To, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	// gomail formats the failure with %v, so keep the transport error.
	var transportErr error
	send := gomail.SendFunc(func(from string, to []string, body io.WriterTo) error {
		transportErr = s.deliver(conn, from, to, body)
		return transportErr
	})
	if err := gomail.Send(send, m); err != nil {
		if transportErr == nil {
			transportErr = err
		}
		return s.sendError(ctx, msg.To, transportErr)
	}
	return nil
}

func (s *SMTPSender) sendError(ctx context.Context, to string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("smtp send to %s: %w", to, context.DeadlineExceeded)
	}
	return fmt.Errorf("smtp send to %s: %w", to, err)
}

func (s *SMTPSender) dial(ctx context.Context, deadline time.Time) (net.Conn, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	nd := &net.Dialer{Deadline: deadline}

	var (
		conn net.Conn
		err  error
	)
	if s.cfg.SSL {
		td := &tls.Dialer{NetDialer: nd, Config: &tls.Config{ServerName: s.cfg.Host}}
		conn, err = td.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = nd.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// deliver runs one SMTP transaction on conn. STARTTLS is used when offered
// on a plain connection; AUTH PLAIN when a username is configured.
func (s *SMTPSender) deliver(conn net.Conn, from string, to []string, body io.WriterTo) error {
	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Close()

	if !s.cfg.SSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
				return err
			}
		}
	}
	if s.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
				return err
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, addr := range to {
		if err := c.Rcpt(addr); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := body.WriteTo(w); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (s *SMTPSender) buildMessage(msg Email) (*gomail.Message, error) {
	from := strings.TrimSpace(s.cfg.From)
	if from == "" {
		return nil, errors.New("sender address is required")
	}
	to := strings.TrimSpace(msg.To)
	if _, err := mail.ParseAddress(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		return nil, errors.New("subject is required")
	}

	m := gomail.NewMessage()
	if s.cfg.FromName != "" {
		m.SetAddressHeader("From", from, s.cfg.FromName)
	} else {
		m.SetHeader("From", from)
	}
	if name := strings.TrimSpace(msg.ToName); name != "" {
		m.SetAddressHeader("To", to, name)
	} else {
		m.SetHeader("To", to)
	}
	m.SetHeader("Subject", subject)

	hasText := strings.TrimSpace(msg.TextBody) != ""
	hasHTML := strings.TrimSpace(msg.HTMLBody) != ""
	switch {
	case hasText && hasHTML:
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	case hasHTML:
		m.SetBody("text/html", msg.HTMLBody)
	case hasText:
		m.SetBody("text/plain", msg.TextBody)
	default:
		return nil, errors.New("message body is required")
	}
	return m, nil
}
