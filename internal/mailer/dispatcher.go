// Package mailer validates recipients and delivers the resume by email over
// one of several strategies.
//
// A Dispatcher is built once from the loaded configuration and shared by all
// requests:
//
//	d, err := mailer.New(ctx, cfg, mailer.WithLogger(logger))
//	res, err := d.Dispatch(ctx, "jane@example.com", config.StrategyAuto)
//
// Every error Dispatch returns is a *DispatchError whose Kind tells the
// caller how to respond.
package mailer

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/portpushpesh/portfolio-api/internal/config"
)

// Dialer opens a transport session. transport is config.StrategySMTP or
// config.StrategyOAuth2.
type Dialer func(ctx context.Context, transport config.Strategy) (Transport, error)

// Result describes a delivered message.
type Result struct {
	Succeeded   bool
	MessageID   string
	UserMessage string
	Strategy    config.Strategy
	// DownloadURL is set for the link strategy. It is never sent to clients.
	DownloadURL string
}

// Dispatcher sends the resume. Safe for concurrent use.
type Dispatcher struct {
	cfg      *config.Config
	dial     Dialer
	resume   *ResumeSource
	linker   *Linker
	throttle *rate.Limiter
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDialer replaces the SMTP dialer.
func WithDialer(dial Dialer) Option {
	return func(d *Dispatcher) {
		d.dial = dial
	}
}

// WithLogger sets the logger for delivery events.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithResumeSource replaces the resume locator built from configuration.
func WithResumeSource(src *ResumeSource) Option {
	return func(d *Dispatcher) {
		d.resume = src
	}
}

// WithLinker replaces the link generator built from configuration.
func WithLinker(l *Linker) Option {
	return func(d *Dispatcher) {
		d.linker = l
	}
}

// New builds a Dispatcher from cfg. It presigns S3 links when S3
// credentials are configured.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.dial == nil {
		d.dial = d.dialSMTP
	}
	if d.resume == nil {
		d.resume = &ResumeSource{
			Paths:     cfg.Resume.Paths,
			PublicURL: cfg.Resume.PublicURL,
			Logger:    d.logger,
		}
	}
	if d.linker == nil {
		d.linker = &Linker{
			Secret:     cfg.Link.Secret,
			BaseURL:    cfg.Link.BaseURL,
			Expiry:     cfg.Link.Expiry,
			AllowToken: !cfg.IsProduction(),
		}
		if cfg.HasS3() {
			p, err := NewS3Presigner(ctx, S3Options{
				AccessKeyID:     cfg.S3.AccessKeyID,
				SecretAccessKey: cfg.S3.SecretAccessKey,
				Region:          cfg.S3.Region,
				Bucket:          cfg.S3.Bucket,
				Key:             cfg.S3.Key,
			})
			if err != nil {
				return nil, err
			}
			d.linker.Presigner = p
		}
	}
	if n := cfg.Mail.SendRatePerMinute; n > 0 {
		d.throttle = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
	return d, nil
}

// Dispatch delivers the resume to email using strategy. The transport
// session, once opened, is closed exactly once on every path.
func (d *Dispatcher) Dispatch(ctx context.Context, email string, strategy config.Strategy) (*Result, error) {
	to, err := Validate(email)
	if err != nil {
		return nil, newError(EnvelopeInvalid, "validate recipient", err)
	}

	strategy = d.cfg.Resolve(strategy)
	if err := d.cfg.RequireFor(strategy); err != nil {
		return nil, newError(ConfigurationMissing, "check configuration", err)
	}

	if t := d.cfg.Mail.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	if d.throttle != nil {
		if err := d.throttle.Wait(ctx); err != nil {
			return nil, newError(Timeout, "send throttle", err)
		}
	}

	transport := d.cfg.Transport(strategy)
	sess, err := d.dial(ctx, transport)
	if err != nil {
		return nil, classify("open session", err, ConnectionFailed)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			d.logger.Warn("mail session close failed", "transport", transport, "error", cerr)
		}
	}()

	if err := sess.Verify(ctx); err != nil {
		return nil, classify("verify session", err, ConnectionFailed)
	}

	msg, link, err := d.compose(ctx, to, strategy)
	if err != nil {
		return nil, err
	}

	id, err := sess.Send(ctx, msg)
	if err != nil {
		return nil, classify("send", err, Unknown)
	}

	d.logger.Info("resume sent",
		"to", Mask(to),
		"strategy", strategy,
		"transport", transport,
		"message_id", id)

	res := &Result{
		Succeeded:   true,
		MessageID:   id,
		UserMessage: SentMessage,
		Strategy:    strategy,
	}
	if strategy == config.StrategyLink {
		res.UserMessage = LinkSentMessage
		res.DownloadURL = link
	}
	return res, nil
}

// compose resolves the attachment or link for strategy and renders the
// message. It returns the download link for the link strategy.
func (d *Dispatcher) compose(ctx context.Context, to string, strategy config.Strategy) (*Message, string, error) {
	m := d.cfg.Mail
	data := contentData{
		SenderName:  m.SenderName,
		ExpiryHours: expiryHours(d.linker.Expiry),
	}
	msg := &Message{
		FromName:    m.SenderName,
		FromAddress: m.FromEmail,
		To:          to,
		Subject:     m.Subject,
	}

	var (
		link     string
		err      error
		textTmpl = attachmentTextTmpl
		htmlTmpl = attachmentHTMLTmpl
	)
	if strategy == config.StrategyLink {
		link, err = d.linker.Generate(ctx, to)
		if err != nil {
			return nil, "", classify("generate link", err, ResourceUnavailable)
		}
		data.DownloadURL = link
		textTmpl, htmlTmpl = linkTextTmpl, linkHTMLTmpl
	} else {
		msg.Attachment, err = d.resume.Load(ctx, strategy == config.StrategySMTP)
		if err != nil {
			return nil, "", classify("load resume", err, ResourceUnavailable)
		}
	}

	if msg.Text, err = renderText(m.Text, textTmpl, data); err != nil {
		return nil, "", newError(Unknown, "render text", err)
	}
	if msg.HTML, err = renderHTML(m.HTML, htmlTmpl, data); err != nil {
		return nil, "", newError(Unknown, "render html", err)
	}
	return msg, link, nil
}

func (d *Dispatcher) dialSMTP(ctx context.Context, transport config.Strategy) (Transport, error) {
	m := d.cfg.Mail
	cfg := SMTPConfig{
		Host:               m.SMTPHost,
		Port:               m.SMTPPort,
		Auth:               PlainAuth(m.SMTPUser, m.SMTPPass),
		InsecureSkipVerify: !d.cfg.IsProduction(),
		Timeout:            m.Timeout,
	}
	if transport == config.StrategyOAuth2 {
		oc := GoogleConfig(m.GoogleClientID, m.GoogleClientSecret, "")
		cfg.Host = GmailHost
		cfg.Port = GmailPort
		cfg.Auth = OAuth2Auth(oc, m.FromEmail, m.GoogleRefreshToken)
	}

	t, err := DialSMTP(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return t, nil
}
