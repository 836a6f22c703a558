package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/emersion/go-smtp"
	"golang.org/x/oauth2"
)

// ErrorKind is the closed set of dispatch failures.
type ErrorKind int

const (
	Unknown ErrorKind = iota
	AuthenticationFailed
	ConnectionFailed
	Timeout
	EnvelopeInvalid
	ResourceUnavailable
	ConfigurationMissing
)

func (k ErrorKind) String() string {
	switch k {
	case AuthenticationFailed:
		return "authentication_failed"
	case ConnectionFailed:
		return "connection_failed"
	case Timeout:
		return "timeout"
	case EnvelopeInvalid:
		return "envelope_invalid"
	case ResourceUnavailable:
		return "resource_unavailable"
	case ConfigurationMissing:
		return "configuration_missing"
	default:
		return "unknown"
	}
}

// DispatchError is the only error type Dispatch returns.
type DispatchError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *DispatchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Is matches another *DispatchError of the same kind, so callers can write
// errors.Is(err, &mailer.DispatchError{Kind: mailer.Timeout}).
func (e *DispatchError) Is(target error) bool {
	t, ok := target.(*DispatchError)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of a dispatch error, or Unknown.
func KindOf(err error) ErrorKind {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	return Unknown
}

func newError(kind ErrorKind, op string, err error) *DispatchError {
	return &DispatchError{Kind: kind, Op: op, Err: err}
}

// SMTP reply codes grouped by meaning.
var (
	authCodes     = map[int]bool{454: true, 530: true, 534: true, 535: true}
	envelopeCodes = map[int]bool{501: true, 550: true, 553: true}
)

// classify wraps err in a *DispatchError. Errors it cannot place get
// fallback.
func classify(op string, err error, fallback ErrorKind) *DispatchError {
	if err == nil {
		return nil
	}

	var de *DispatchError
	if errors.As(err, &de) {
		return de
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return newError(Timeout, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(Timeout, op, err)
	}

	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		switch {
		case authCodes[smtpErr.Code]:
			return newError(AuthenticationFailed, op, err)
		case envelopeCodes[smtpErr.Code]:
			return newError(EnvelopeInvalid, op, err)
		case smtpErr.Code == 421:
			return newError(ConnectionFailed, op, err)
		}
		return newError(fallback, op, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.ErrorCode {
		case "invalid_grant", "invalid_client", "unauthorized_client":
			return newError(AuthenticationFailed, op, err)
		}
		return newError(ConnectionFailed, op, err)
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var certErr *tls.CertificateVerificationError
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr), errors.As(err, &certErr):
		return newError(ConnectionFailed, op, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return newError(ConnectionFailed, op, err)
	}

	return newError(fallback, op, err)
}

// ReplyCode returns the SMTP reply code carried by err, or 0.
func ReplyCode(err error) int {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		return smtpErr.Code
	}
	return 0
}
