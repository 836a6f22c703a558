package config

import (
	"fmt"
	"strings"
)

// Strategy selects how the resume reaches the recipient.
type Strategy string

const (
	// StrategyAuto resolves to OAuth2 when Google credentials exist, else SMTP.
	StrategyAuto Strategy = "auto"

	// StrategySMTP sends over SMTP with password auth and attaches the file,
	// falling back to the public resume URL.
	StrategySMTP Strategy = "smtp"

	// StrategyOAuth2 sends through Gmail with XOAUTH2 and attaches the file.
	StrategyOAuth2 Strategy = "oauth2"

	// StrategyAttachment attaches the local file over whichever transport is
	// configured and warns about oversized files.
	StrategyAttachment Strategy = "attachment"

	// StrategyLink mails a time-limited download link instead of the file.
	StrategyLink Strategy = "link"
)

// ParseStrategy parses a strategy name. The empty string means auto.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StrategyAuto, nil
	case StrategyAuto, StrategySMTP, StrategyOAuth2, StrategyAttachment, StrategyLink:
		return st, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// HasOAuth2 reports whether Google OAuth2 credentials are configured.
func (c *Config) HasOAuth2() bool {
	m := c.Mail
	return m.GoogleClientID != "" && m.GoogleClientSecret != "" && m.GoogleRefreshToken != ""
}

// HasSMTP reports whether SMTP password credentials are configured.
func (c *Config) HasSMTP() bool {
	m := c.Mail
	return m.SMTPHost != "" && m.SMTPUser != "" && m.SMTPPass != ""
}

// HasS3 reports whether presigned object-storage links are configured.
func (c *Config) HasS3() bool {
	return c.S3.AccessKeyID != "" && c.S3.Bucket != ""
}

// Resolve maps auto to a concrete strategy.
func (c *Config) Resolve(s Strategy) Strategy {
	if s == "" || s == StrategyAuto {
		if c.HasOAuth2() {
			return StrategyOAuth2
		}
		return StrategySMTP
	}
	return s
}

// Transport returns the transport used by strategy s: StrategyOAuth2 or
// StrategySMTP. OAuth2 is preferred when both are configured.
func (c *Config) Transport(s Strategy) Strategy {
	switch c.Resolve(s) {
	case StrategySMTP:
		return StrategySMTP
	case StrategyOAuth2:
		return StrategyOAuth2
	default:
		if c.HasOAuth2() {
			return StrategyOAuth2
		}
		return StrategySMTP
	}
}

// MissingError lists the settings a strategy needs but does not have.
type MissingError struct {
	Strategy Strategy
	Keys     []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("strategy %s is missing configuration: %s", e.Strategy, strings.Join(e.Keys, ", "))
}

// RequireFor reports the configuration strategy s is missing, or nil.
// This is the only place credential requirements are decided.
func (c *Config) RequireFor(s Strategy) error {
	s = c.Resolve(s)
	var missing []string
	need := func(val, key string) {
		if val == "" {
			missing = append(missing, key)
		}
	}

	m := c.Mail
	switch c.Transport(s) {
	case StrategyOAuth2:
		need(m.GoogleClientID, "GOOGLE_CLIENT_ID")
		need(m.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
		need(m.GoogleRefreshToken, "GOOGLE_REFRESH_TOKEN")
	default:
		need(m.SMTPHost, "SMTP_HOST")
		need(m.SMTPUser, "SMTP_USER")
		need(m.SMTPPass, "SMTP_PASS")
	}
	need(m.FromEmail, "FROM_EMAIL")

	if s == StrategyLink && c.IsProduction() && !c.HasS3() && c.Link.Secret == "" {
		missing = append(missing, "DOWNLOAD_SECRET")
	}

	if len(missing) > 0 {
		return &MissingError{Strategy: s, Keys: missing}
	}
	return nil
}
