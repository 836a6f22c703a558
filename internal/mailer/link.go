package mailer

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DownloadPath is the route signed links point at.
const DownloadPath = "/api/download-resume"

// Default base URLs when DOWNLOAD_BASE_URL is unset.
const (
	defaultSignedBaseURL = "https://your-domain.com"
	defaultTokenBaseURL  = "http://localhost:5000"
)

// Link verification failures.
var (
	ErrLinkMalformed = errors.New("download link is malformed")
	ErrLinkExpired   = errors.New("download link has expired")
	ErrLinkSignature = errors.New("download link signature is invalid")
)

// Presigner produces a time-limited object-storage URL for the resume.
type Presigner interface {
	PresignResume(ctx context.Context, expiry time.Duration) (string, error)
}

// Linker generates download links. Precedence: Presigner, then an HMAC
// signed URL when Secret is set, then an unsigned token when AllowToken is
// set.
type Linker struct {
	Presigner  Presigner
	Secret     string
	BaseURL    string
	Expiry     time.Duration
	AllowToken bool
	Now        func() time.Time
}

// ErrNoLinkMethod is wrapped when no link method is configured.
var ErrNoLinkMethod = errors.New("no download link method configured")

// Generate returns a download URL for email.
func (l *Linker) Generate(ctx context.Context, email string) (string, error) {
	switch {
	case l.Presigner != nil:
		u, err := l.Presigner.PresignResume(ctx, l.Expiry)
		if err != nil {
			return "", classify("presign resume", err, ResourceUnavailable)
		}
		return u, nil
	case l.Secret != "":
		expires := l.now().Add(l.Expiry).Unix()
		return SignedURL(l.base(defaultSignedBaseURL), l.Secret, email, expires), nil
	case l.AllowToken:
		return TokenURL(l.base(defaultTokenBaseURL), email, l.now()), nil
	default:
		return "", newError(ConfigurationMissing, "download link", ErrNoLinkMethod)
	}
}

func (l *Linker) base(fallback string) string {
	if l.BaseURL != "" {
		return strings.TrimRight(l.BaseURL, "/")
	}
	return fallback
}

func (l *Linker) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Sign returns hex(HMAC-SHA256(secret, "email:expires")).
func Sign(secret, email string, expires int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(email + ":" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedURL builds {base}/api/download-resume?email=..&expires=..&sig=..
func SignedURL(base, secret, email string, expires int64) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", Sign(secret, email, expires))
	return base + DownloadPath + "?" + q.Encode()
}

// VerifyLink checks a signed link's parameters. The signature comparison is
// constant time and a link is rejected once now is past its expiry.
func VerifyLink(secret, email, expires, sig string, now time.Time) error {
	if email == "" || expires == "" || sig == "" {
		return ErrLinkMalformed
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrLinkMalformed
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return ErrLinkMalformed
	}
	want, _ := hex.DecodeString(Sign(secret, email, exp))
	if !hmac.Equal(got, want) {
		return ErrLinkSignature
	}
	if now.Unix() > exp {
		return ErrLinkExpired
	}
	return nil
}

// TokenURL builds the unsigned development link. The token is
// base64("email:unixMillis") and carries no integrity protection.
func TokenURL(base, email string, issued time.Time) string {
	raw := email + ":" + strconv.FormatInt(issued.UnixMilli(), 10)
	token := base64.StdEncoding.EncodeToString([]byte(raw))
	return base + DownloadPath + "?token=" + url.QueryEscape(token)
}

// ParseToken decodes a development token and rejects it once maxAge has
// passed since issue.
func ParseToken(token string, maxAge time.Duration, now time.Time) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", ErrLinkMalformed
	}
	s := string(raw)
	i := strings.LastIndexByte(s, ':')
	if i <= 0 {
		return "", ErrLinkMalformed
	}
	ms, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return "", ErrLinkMalformed
	}
	if now.Sub(time.UnixMilli(ms)) > maxAge {
		return "", ErrLinkExpired
	}
	return s[:i], nil
}

// S3Options configures an S3Presigner.
type S3Options struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Key             string
}

// S3Presigner presigns GetObject requests for the resume object.
type S3Presigner struct {
	client *s3.PresignClient
	bucket string
	key    string
}

// NewS3Presigner builds a presigner with static credentials. No request is
// made until PresignResume, and presigning itself is offline.
func NewS3Presigner(ctx context.Context, opts S3Options) (*S3Presigner, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	key := opts.Key
	if key == "" {
		key = "resume.pdf"
	}
	return &S3Presigner{
		client: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		bucket: opts.Bucket,
		key:    key,
	}, nil
}

// PresignResume returns a GET URL valid for expiry.
func (p *S3Presigner) PresignResume(ctx context.Context, expiry time.Duration) (string, error) {
	req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(p.bucket),
		Key:                        aws.String(p.key),
		ResponseContentDisposition: aws.String(`attachment; filename="resume.pdf"`),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}
	return req.URL, nil
}
