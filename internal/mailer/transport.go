package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Transport is an open mail session. Close must be safe to call once on
// every exit path; the dispatcher guarantees it is called exactly once.
type Transport interface {
	// Verify checks the session is usable before composing anything.
	Verify(ctx context.Context) error
	// Send delivers msg and returns its Message-ID.
	Send(ctx context.Context, msg *Message) (string, error)
	Close() error
}

// SMTPConfig describes one SMTP session.
type SMTPConfig struct {
	Host string
	Port int
	// Auth builds the SASL client after the connection is up. Nil means no
	// authentication.
	Auth func(ctx context.Context) (sasl.Client, error)
	// InsecureSkipVerify disables certificate checks outside production.
	InsecureSkipVerify bool
	// Timeout bounds dialing and each command. Zero means 30s.
	Timeout time.Duration
}

// PlainAuth returns an Auth func for SASL PLAIN.
func PlainAuth(username, password string) func(context.Context) (sasl.Client, error) {
	return func(context.Context) (sasl.Client, error) {
		return sasl.NewPlainClient("", username, password), nil
	}
}

// SMTPTransport is a Transport backed by github.com/emersion/go-smtp.
type SMTPTransport struct {
	client    *smtp.Client
	conn      net.Conn
	closeOnce sync.Once
	closeErr  error
}

// DialSMTP connects to cfg.Host, negotiates TLS and authenticates. Port 465
// uses implicit TLS. Other ports read EHLO in plaintext and, when the
// server offers STARTTLS, redial with an upgraded session.
func DialSMTP(ctx context.Context, cfg SMTPConfig) (*SMTPTransport, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tlsConfig := &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // only outside production
		MinVersion:         tls.VersionTLS12,
	}
	dialer := &net.Dialer{Timeout: timeout}

	conn, err := dialConn(ctx, dialer, addr)
	if err != nil {
		return nil, err
	}

	var client *smtp.Client
	if cfg.Port == 465 {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, classify("tls handshake", err, ConnectionFailed)
		}
		conn = tlsConn
		client = smtp.NewClient(conn)
	} else {
		client = smtp.NewClient(conn)
		client.CommandTimeout = timeout
		if ok, _ := client.Extension("STARTTLS"); ok {
			client.Quit()
			client.Close()

			if conn, err = dialConn(ctx, dialer, addr); err != nil {
				return nil, err
			}
			if client, err = smtp.NewClientStartTLS(conn, tlsConfig); err != nil {
				conn.Close()
				return nil, classify("starttls", err, ConnectionFailed)
			}
		}
	}
	client.CommandTimeout = timeout
	client.SubmissionTimeout = timeout

	t := &SMTPTransport{client: client, conn: conn}

	if cfg.Auth != nil {
		sc, err := cfg.Auth(ctx)
		if err != nil {
			t.Close()
			return nil, classify("auth token", err, AuthenticationFailed)
		}
		if err := client.Auth(sc); err != nil {
			t.Close()
			return nil, classify("auth", err, AuthenticationFailed)
		}
	}

	return t, nil
}

func dialConn(ctx context.Context, dialer *net.Dialer, addr string) (net.Conn, error) {
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classify("dial "+addr, err, ConnectionFailed)
	}
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}
	return conn, nil
}

// Verify sends NOOP.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return classify("verify", err, ConnectionFailed)
	}
	if err := t.client.Noop(); err != nil {
		return classify("verify", err, ConnectionFailed)
	}
	return nil
}

// Send encodes msg and submits it in one MAIL/RCPT/DATA exchange.
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classify("send", err, Unknown)
	}
	if dl, ok := ctx.Deadline(); ok {
		t.conn.SetDeadline(dl)
	}

	raw, id, err := msg.Encode()
	if err != nil {
		return "", newError(Unknown, "compose", err)
	}

	if err := t.client.Mail(msg.FromAddress, nil); err != nil {
		return "", classify("mail from", err, Unknown)
	}
	if err := t.client.Rcpt(msg.To, nil); err != nil {
		return "", classify("rcpt to", err, EnvelopeInvalid)
	}
	w, err := t.client.Data()
	if err != nil {
		return "", classify("data", err, Unknown)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return "", classify("data write", err, ConnectionFailed)
	}
	if err := w.Close(); err != nil {
		return "", classify("data close", err, Unknown)
	}
	return id, nil
}

// Close ends the session with QUIT and releases the connection. Calls after
// the first return the first result.
func (t *SMTPTransport) Close() error {
	t.closeOnce.Do(func() {
		quitErr := t.client.Quit()
		closeErr := t.client.Close()
		if quitErr != nil && !errors.Is(quitErr, net.ErrClosed) {
			t.closeErr = fmt.Errorf("smtp quit: %w", quitErr)
			return
		}
		if closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			t.closeErr = fmt.Errorf("smtp close: %w", closeErr)
		}
	})
	return t.closeErr
}
