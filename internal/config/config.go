// Package config loads the portfolio API configuration once at startup.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// YAML file, a .env file in the working directory, and the process
// environment. The result is validated and then shared read-only.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environments recognized by APP_ENV / NODE_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config is the complete service configuration.
type Config struct {
	Env          string `yaml:"env" validate:"oneof=development production test"`
	Port         string `yaml:"port" validate:"required,numeric"`
	LogLevel     string `yaml:"log_level" validate:"oneof=debug info warn error"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" validate:"gt=0"`

	// FrontendURL is an extra CORS origin, or "*" to allow every origin.
	FrontendURL string `yaml:"frontend_url"`

	Mail      MailConfig      `yaml:"mail"`
	Resume    ResumeConfig    `yaml:"resume"`
	Link      LinkConfig      `yaml:"link"`
	S3        S3Config        `yaml:"s3"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// MailConfig holds transport credentials and message content.
type MailConfig struct {
	Strategy Strategy `yaml:"strategy" validate:"oneof=auto smtp oauth2 attachment link"`

	SMTPHost string        `yaml:"smtp_host"`
	SMTPPort int           `yaml:"smtp_port" validate:"min=1,max=65535"`
	SMTPUser string        `yaml:"smtp_user"`
	SMTPPass string        `yaml:"smtp_pass"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`

	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	GoogleRefreshToken string `yaml:"google_refresh_token"`

	FromEmail  string `yaml:"from_email" validate:"omitempty,email"`
	SenderName string `yaml:"sender_name"`
	Subject    string `yaml:"subject"`
	Text       string `yaml:"text"`
	HTML       string `yaml:"html"`

	// SendRatePerMinute throttles outbound messages; 0 disables the throttle.
	SendRatePerMinute int `yaml:"send_rate_per_minute" validate:"gte=0"`
}

// ResumeConfig locates the resume file.
type ResumeConfig struct {
	Paths     []string `yaml:"paths" validate:"min=1,dive,required"`
	PublicURL string   `yaml:"public_url" validate:"omitempty,url"`
}

// LinkConfig configures signed download links.
type LinkConfig struct {
	Secret  string        `yaml:"secret"`
	BaseURL string        `yaml:"base_url" validate:"omitempty,url"`
	Expiry  time.Duration `yaml:"expiry" validate:"gt=0"`
}

// S3Config enables presigned object-storage links when AccessKeyID and
// Bucket are both set.
type S3Config struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
}

// RateLimitConfig configures both limiters and their store.
type RateLimitConfig struct {
	Max    int           `yaml:"max" validate:"gt=0"`
	Window time.Duration `yaml:"window" validate:"gt=0"`

	// APIMax and APIWindow bound every /api route; APIMax 0 disables.
	APIMax    int           `yaml:"api_max" validate:"gte=0"`
	APIWindow time.Duration `yaml:"api_window" validate:"gt=0"`

	Store         string `yaml:"store" validate:"oneof=memory redis"`
	RedisURL      string `yaml:"redis_url" validate:"required_if=Store redis"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" validate:"min=0,max=15"`
}

// DefaultResumePaths are tried in order when RESUME_PATHS is unset.
var DefaultResumePaths = []string{
	"assets/resume.pdf",
	"backend/assets/resume.pdf",
	"/tmp/resume.pdf",
}

// Default returns a config with defaults applied.
func Default() *Config {
	return &Config{
		Env:          EnvDevelopment,
		Port:         "5000",
		LogLevel:     "info",
		MaxBodyBytes: 10 << 10,
		Mail: MailConfig{
			Strategy:   StrategyAuto,
			SMTPPort:   587,
			Timeout:    30 * time.Second,
			SenderName: "Portfolio Owner",
			Subject:    "Your Requested Resume",
		},
		Resume: ResumeConfig{
			Paths: append([]string(nil), DefaultResumePaths...),
		},
		Link: LinkConfig{
			Expiry: 604800 * time.Second,
		},
		S3: S3Config{
			Region: "us-east-1",
			Key:    "resume.pdf",
		},
		RateLimit: RateLimitConfig{
			Max:       5,
			Window:    time.Hour,
			APIMax:    100,
			APIWindow: 15 * time.Minute,
			Store:     "memory",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the optional YAML file at path, then .env, then the
// environment, and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid configuration: %s failed %q", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if env := firstEnv("APP_ENV", "NODE_ENV"); env != "" {
		c.Env = strings.ToLower(env)
	}
	setString(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	c.LogLevel = strings.ToLower(c.LogLevel)
	setString(&c.FrontendURL, "FRONTEND_URL")

	m := &c.Mail
	if s := getEnv("RESUME_STRATEGY"); s != "" {
		m.Strategy = Strategy(strings.ToLower(s))
	}
	setString(&m.SMTPHost, "SMTP_HOST")
	setString(&m.SMTPUser, "SMTP_USER")
	setString(&m.SMTPPass, "SMTP_PASS")
	setString(&m.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&m.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&m.GoogleRefreshToken, "GOOGLE_REFRESH_TOKEN")
	setString(&m.FromEmail, "FROM_EMAIL")
	setString(&m.SenderName, "SENDER_NAME")
	setString(&m.Subject, "EMAIL_SUBJECT")
	setRaw(&m.Text, "EMAIL_TEXT")
	setRaw(&m.HTML, "EMAIL_HTML")

	setString(&c.Resume.PublicURL, "RESUME_PUBLIC_URL")
	if raw := getEnv("RESUME_PATHS"); raw != "" {
		c.Resume.Paths = splitList(raw)
	}

	setString(&c.Link.Secret, "DOWNLOAD_SECRET")
	setString(&c.Link.BaseURL, "DOWNLOAD_BASE_URL")
	c.Link.BaseURL = strings.TrimRight(c.Link.BaseURL, "/")

	setString(&c.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&c.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.S3.Region, "AWS_REGION")
	setString(&c.S3.Bucket, "AWS_S3_BUCKET")
	setString(&c.S3.Key, "AWS_S3_KEY")

	rl := &c.RateLimit
	setString(&rl.Store, "RATE_LIMIT_STORE")
	rl.Store = strings.ToLower(rl.Store)
	setString(&rl.RedisURL, "REDIS_URL")
	setString(&rl.RedisPassword, "REDIS_PASSWORD")

	return errors.Join(
		setInt64(&c.MaxBodyBytes, "MAX_BODY_BYTES"),
		setInt(&m.SMTPPort, "SMTP_PORT"),
		setInt(&m.SendRatePerMinute, "SEND_RATE_PER_MINUTE"),
		setDuration(&m.Timeout, "SMTP_TIMEOUT", time.Millisecond),
		setDuration(&c.Link.Expiry, "LINK_EXPIRY_SECONDS", time.Second),
		setInt(&rl.Max, "RATE_LIMIT_MAX"),
		setDuration(&rl.Window, "RATE_LIMIT_WINDOW", time.Millisecond),
		setInt(&rl.APIMax, "API_RATE_LIMIT_MAX"),
		setDuration(&rl.APIWindow, "API_RATE_LIMIT_WINDOW", time.Millisecond),
		setInt(&rl.RedisDB, "REDIS_DB"),
	)
}

// IsProduction reports whether the service runs in production mode, which
// enables strict TLS verification and hides error details from clients.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Origins returns the CORS allow-list.
func (c *Config) Origins() []string {
	origins := []string{
		"https://portpushpesh.netlify.app",
		"http://localhost:5173",
		"http://localhost:3000",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:3000",
	}
	if c.FrontendURL != "" {
		origins = append(origins, c.FrontendURL)
	}
	return origins
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := getEnv(k); v != "" {
			return v
		}
	}
	return ""
}

func setString(dst *string, key string) {
	if v := getEnv(key); v != "" {
		*dst = v
	}
}

// setRaw keeps surrounding whitespace, which matters for message bodies.
func setRaw(dst *string, key string) {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := getEnv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v := getEnv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

// setDuration accepts a Go duration ("1h", "90s") or a bare integer in unit.
func setDuration(dst *time.Duration, key string, unit time.Duration) error {
	v := getEnv(key)
	if v == "" {
		return nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = time.Duration(n) * unit
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
