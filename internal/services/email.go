package services

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
)

const smtpDialTimeout = 15 * time.Second

// EmailService delivers rendered messages over SMTP. It is the processor
// behind the task queue.
type EmailService struct {
	config *config.MailConfig
}

func NewEmailService(cfg *config.MailConfig) *EmailService {
	return &EmailService{config: cfg}
}

// Send delivers task. A disabled or unconfigured relay logs and succeeds.
func (s *EmailService) Send(ctx context.Context, task *EmailTask) error {
	if !s.config.Enabled || s.config.Host == "" {
		logger.Debug().Str("kind", task.Kind).Strs("to", task.To).Msg("[Email] mail disabled, skipping")
		return nil
	}
	to := validRecipients(task.To)
	if len(to) == 0 {
		logger.Warn().Str("kind", task.Kind).Strs("to", task.To).Msg("[Email] no valid recipients")
		return nil
	}

	from := s.config.From
	if from == "" {
		from = s.config.Username
	}
	envelope := from
	if parsed, err := mail.ParseAddress(from); err == nil {
		envelope = parsed.Address
	}

	message := buildMessage(from, to, task.Subject, task.HTML, time.Now())
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := s.deliver(ctx, addr, auth, envelope, to, message); err != nil {
		logger.Warn().Err(err).Str("kind", task.Kind).Strs("to", to).Msg("[Email] delivery failed")
		return err
	}

	logger.Info().Str("kind", task.Kind).Strs("to", to).Msg("[Email] sent")
	return nil
}

// buildMessage renders RFC 5322 headers. Non-ASCII subjects are Q-encoded.
func buildMessage(from string, to []string, subject, body string, now time.Time) string {
	domain := "localhost"
	if addr, err := mail.ParseAddress(from); err == nil {
		if at := strings.LastIndex(addr.Address, "@"); at >= 0 {
			domain = addr.Address[at+1:]
		}
	}
	var id [12]byte
	_, _ = rand.Read(id[:])

	headers := [][2]string{
		{"From", from},
		{"To", strings.Join(to, ", ")},
		{"Subject", mime.QEncoding.Encode("utf-8", subject)},
		{"Date", now.Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@%s>", hex.EncodeToString(id[:]), domain)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var message strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&message, "%s: %s\r\n", h[0], h[1])
	}
	message.WriteString("\r\n")
	message.WriteString(body)
	return message.String()
}

// validRecipients drops addresses that cannot be parsed.
func validRecipients(to []string) []string {
	out := make([]string, 0, len(to))
	for _, addr := range to {
		if parsed, err := mail.ParseAddress(addr); err == nil {
			out = append(out, parsed.Address)
		}
	}
	return out
}

// deliver uses implicit TLS on port 465, STARTTLS when use_tls is set, and
// plain SMTP otherwise.
func (s *EmailService) deliver(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, message string) error {
	dialer := &net.Dialer{Timeout: smtpDialTimeout}
	tlsConfig := &tls.Config{ServerName: s.config.Host}

	var conn net.Conn
	var err error
	if s.config.Port == 465 {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(2 * smtpDialTimeout))
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.config.Port != 465 && s.config.UseTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			return err
		}
	}

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}

	if _, err = w.Write([]byte(message)); err != nil {
		return err
	}

	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
