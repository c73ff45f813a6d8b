// Package mail provides Mailer implementations for 2FA code delivery: an
// SMTP mailer for real deployments and a log-based mock for development.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPConfig configures the outbound mail transport. Port 465 uses implicit
// TLS; any other port opens plain and upgrades with STARTTLS.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPMailer delivers verification codes over SMTP.
type SMTPMailer struct {
	config SMTPConfig
}

// NewSMTPMailer returns an [SMTPMailer] for the given transport config.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPMailer{config: cfg}
}

// SendTwoFactorCode mails the one-time code to email. The connection honors
// ctx cancellation up to dial time and the configured timeout after that.
func (m *SMTPMailer) SendTwoFactorCode(ctx context.Context, email, code string) error {
	addr := net.JoinHostPort(m.config.Host, strconv.Itoa(m.config.Port))

	client, err := m.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	defer client.Close()

	if m.config.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.config.Host}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	if m.config.Username != "" {
		auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.config.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(email); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(m.config.From, email, code)); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return client.Quit()
}

func (m *SMTPMailer) dial(ctx context.Context, addr string) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: m.config.Timeout}

	if m.config.Port == 465 {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: m.config.Host},
		}
		conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		conn.SetDeadline(time.Now().Add(m.config.Timeout))
		return smtp.NewClient(conn, m.config.Host)
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	conn.SetDeadline(time.Now().Add(m.config.Timeout))
	return smtp.NewClient(conn, m.config.Host)
}

const messageSubject = "KeuzeKompas Verification Code"

func buildMessage(from, to, code string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", messageSubject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Your verification code is: " + code + "\r\n")
	b.WriteString("\r\n")
	b.WriteString("This code expires in 5 minutes. If you did not attempt to log in, ignore this email.\r\n")
	return []byte(b.String())
}

// LogMailer is the development mock: instead of sending mail it writes the
// code to a logger. Never use it in production, the code ends up in plain
// text in the server log.
type LogMailer struct {
	logger *log.Logger
}

// NewLogMailer returns a [LogMailer]. A nil logger selects the standard
// logger.
func NewLogMailer(logger *log.Logger) *LogMailer {
	if logger == nil {
		logger = log.Default()
	}
	return &LogMailer{logger: logger}
}

// SendTwoFactorCode logs the code instead of delivering it.
func (m *LogMailer) SendTwoFactorCode(_ context.Context, email, code string) error {
	m.logger.Printf("[Mock Mail] To: %s, Code: %s", email, code)
	return nil
}
