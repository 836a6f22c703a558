package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/portpushpesh/portfolio-api/internal/config"
	"github.com/portpushpesh/portfolio-api/internal/httpkit"
	"github.com/portpushpesh/portfolio-api/internal/mailer"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type healthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type rootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

type sendRequest struct {
	Email string `json:"email" validate:"max=1024"`
}

type sendResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	httpkit.SetResponse(r, http.StatusOK, rootResponse{
		Message: "Welcome to Portfolio API",
		Version: Version,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httpkit.SetResponse(r, http.StatusOK, healthResponse{
		Status:    "OK",
		Message:   "Server is running",
		Timestamp: s.now().UTC().Format(timestampLayout),
	})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	httpkit.SetError(r, httpkit.ErrNotFound)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpkit.SetError(r, httpkit.ErrMethodNotAllowed)
}

func (s *Server) preflight(w http.ResponseWriter, r *http.Request) {
	httpkit.SetResponse(r, http.StatusOK, nil)
}

func (s *Server) sendResume(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !httpkit.JSON(r, &req) {
		return
	}

	email, err := mailer.Validate(req.Email)
	if err != nil {
		httpkit.SetError(r, s.dispatchError(err))
		return
	}

	httpkit.LogField(r, "recipient", mailer.Mask(email))

	res, err := s.dispatcher.Dispatch(r.Context(), email, s.cfg.Mail.Strategy)
	if err != nil {
		httpkit.LogField(r, "dispatch_error", mailer.KindOf(err).String())
		if code := mailer.ReplyCode(err); code != 0 {
			httpkit.LogField(r, "smtp_code", code)
		}
		httpkit.LogError(r, s.loggableError(err))
		httpkit.SetError(r, s.dispatchError(err))
		return
	}

	httpkit.LogField(r, "strategy", string(res.Strategy))
	httpkit.LogField(r, "message_id", res.MessageID)
	httpkit.SetResponse(r, http.StatusOK, sendResponse{
		Success:   true,
		Message:   res.UserMessage,
		MessageID: res.MessageID,
	})
}

// loggableError strips server reply text from dispatch errors in
// production, where it can echo the recipient address.
func (s *Server) loggableError(err error) error {
	if !s.cfg.IsProduction() {
		return err
	}
	kind := mailer.KindOf(err)
	if code := mailer.ReplyCode(err); code != 0 {
		return fmt.Errorf("dispatch failed: %s (smtp %d)", kind, code)
	}
	return fmt.Errorf("dispatch failed: %s", kind)
}

// dispatchError maps validation and dispatch failures onto client-facing
// errors. Only development responses carry the underlying error text.
func (s *Server) dispatchError(err error) *httpkit.APIError {
	var verr *mailer.ValidationError
	if errors.As(err, &verr) {
		return validationError(verr)
	}

	switch mailer.KindOf(err) {
	case mailer.EnvelopeInvalid:
		return httpkit.ErrBadRequest.WithCode("Invalid email",
			"The mail server rejected this email address", mailer.EnvelopeInvalid.String())
	case mailer.AuthenticationFailed, mailer.ConnectionFailed, mailer.Timeout, mailer.ConfigurationMissing:
		return httpkit.ErrServiceUnavailable.With("Email service is currently unavailable. Please try again later.")
	case mailer.ResourceUnavailable:
		return httpkit.ErrServiceUnavailable.With("Resume file not found. Please contact the site administrator.")
	}

	msg := "Failed to send resume. Please try again later."
	if s.cfg.Env == config.EnvDevelopment {
		msg += " (" + err.Error() + ")"
	}
	return httpkit.ErrInternal.With(msg)
}

func validationError(err *mailer.ValidationError) *httpkit.APIError {
	code := err.Kind.String()
	switch err.Kind {
	case mailer.EmailRequired:
		return httpkit.ErrBadRequest.WithCode("Email is required", "Please provide an email address", code)
	case mailer.TooLong:
		return httpkit.ErrBadRequest.WithCode("Invalid email", "Email address is too long", code)
	case mailer.InvalidCharacters:
		return httpkit.ErrBadRequest.WithCode("Invalid email format", "Email contains invalid characters", code)
	default:
		return httpkit.ErrBadRequest.WithCode("Invalid email format", "Please provide a valid email address", code)
	}
}

// downloadResume serves the resume for signed links, and for unsigned
// tokens outside production.
func (s *Server) downloadResume(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.now()

	var email string
	if token := q.Get("token"); token != "" {
		if s.cfg.IsProduction() {
			httpkit.SetError(r, httpkit.ErrForbidden.With("Unsigned download links are not accepted"))
			return
		}
		addr, err := mailer.ParseToken(token, s.cfg.Link.Expiry, now)
		if err != nil {
			httpkit.SetError(r, linkError(err))
			return
		}
		email = addr
	} else {
		if s.cfg.Link.Secret == "" {
			httpkit.SetError(r, httpkit.ErrNotFound)
			return
		}
		email = q.Get("email")
		if err := mailer.VerifyLink(s.cfg.Link.Secret, email, q.Get("expires"), q.Get("sig"), now); err != nil {
			httpkit.SetError(r, linkError(err))
			return
		}
	}

	httpkit.LogField(r, "recipient", mailer.Mask(email))

	path, info, err := s.resume.Locate()
	if err != nil {
		httpkit.LogError(r, err)
		httpkit.SetError(r, httpkit.ErrServiceUnavailable.With("Resume file not found. Please contact the site administrator."))
		return
	}
	f, err := os.Open(path)
	if err != nil {
		httpkit.LogError(r, err)
		httpkit.SetError(r, httpkit.ErrServiceUnavailable.With("Resume file not found. Please contact the site administrator."))
		return
	}
	defer f.Close()

	for key, values := range httpkit.Headers(r) {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="resume.pdf"`)

	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	http.ServeContent(ww, r, "resume.pdf", info.ModTime(), f)
	httpkit.Written(r, statusOf(ww))
}

func statusOf(ww middleware.WrapResponseWriter) int {
	if st := ww.Status(); st != 0 {
		return st
	}
	return http.StatusOK
}

func linkError(err error) *httpkit.APIError {
	switch {
	case errors.Is(err, mailer.ErrLinkSignature):
		return httpkit.ErrForbidden.With("Invalid download link")
	case errors.Is(err, mailer.ErrLinkExpired):
		return httpkit.ErrBadRequest.WithCode("Link expired", "This download link has expired. Please request a new one.", "link_expired")
	default:
		return httpkit.ErrBadRequest.WithCode("Invalid link", "This download link is malformed", "link_malformed")
	}
}
