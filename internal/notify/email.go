package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig holds the outbound mail server configuration.
type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
	TLS      string // "none", "starttls", "tls"
}

// Valid returns true if the minimum required fields are set.
func (c SMTPConfig) Valid() bool {
	return c.Host != "" && c.Port != "" && c.From != ""
}

// EmailNotifier sends missed-call summary emails via SMTP.
type EmailNotifier struct {
	cfg    SMTPConfig
	logger *slog.Logger
	// dialFunc allows injecting a custom dialer for testing.
	dialFunc func(addr string, tlsConfig *tls.Config, tlsMode string) (smtpClient, error)
}

// smtpClient abstracts the methods used from *smtp.Client for testing.
type smtpClient interface {
	Hello(localName string) error
	Extension(ext string) (bool, string)
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// NewEmailNotifier creates an EmailNotifier over the given SMTP server.
func NewEmailNotifier(cfg SMTPConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:      cfg,
		logger:   logger.With("subsystem", "notify"),
		dialFunc: defaultDial,
	}
}

// NotifyMissedCall sends one summary email to the owner.
func (s *EmailNotifier) NotifyMissedCall(ctx context.Context, mc MissedCall) error {
	if !s.cfg.Valid() {
		return fmt.Errorf("smtp not configured")
	}
	if mc.OwnerEmail == "" {
		return fmt.Errorf("no recipient email address")
	}

	msg := buildMessage(s.cfg, mc)

	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	tlsConfig := &tls.Config{ServerName: s.cfg.Host}

	client, err := s.dialFunc(addr, tlsConfig, s.cfg.TLS)
	if err != nil {
		return fmt.Errorf("connecting to smtp server: %w", err)
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("smtp hello: %w", err)
	}

	// STARTTLS upgrade if requested and supported.
	if strings.EqualFold(s.cfg.TLS, "starttls") {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(mc.OwnerEmail); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}

	if err := client.Quit(); err != nil {
		s.logger.Warn("smtp quit error (non-fatal)", "error", err)
	}

	s.logger.Info("missed call email sent",
		"to", mc.OwnerEmail,
		"event_id", mc.EventID,
		"caller", mc.CallerNumber,
	)
	return nil
}

// defaultDial connects to the SMTP server using either plain TCP or implicit TLS.
func defaultDial(addr string, tlsConfig *tls.Config, tlsMode string) (smtpClient, error) {
	if strings.EqualFold(tlsMode, "tls") {
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: 10 * time.Second}, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, err
		}
		return smtp.NewClient(conn, tlsConfig.ServerName)
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	return smtp.NewClient(conn, host)
}

// buildMessage constructs the plain-text email bytes.
func buildMessage(cfg SMTPConfig, mc MissedCall) []byte {
	var buf bytes.Buffer

	subject := fmt.Sprintf("Missed call from %s", mc.CallerNumber)
	ts := mc.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	body := fmt.Sprintf(
		"%s missed a call.\n\n"+
			"From: %s\n"+
			"Date: %s\n"+
			"Outcome: %s\n\n"+
			"The caller was sent this text:\n%s\n",
		mc.TenantName,
		mc.CallerNumber,
		ts.Format("Mon, 02 Jan 2006 3:04 PM"),
		mc.Disposition,
		mc.ReplyBody,
	)

	fmt.Fprintf(&buf, "From: %s\r\n", cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", mc.OwnerEmail)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n")
	fmt.Fprintf(&buf, "\r\n")
	buf.WriteString(body)

	return buf.Bytes()
}
