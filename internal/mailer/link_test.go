package mailer

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
)

var linkNow = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

func TestSign(t *testing.T) {
	a := Sign("secret", "jane@example.com", 1700000000)
	if len(a) != 64 {
		t.Fatalf("signature length = %d, want 64 hex chars", len(a))
	}
	if a != Sign("secret", "jane@example.com", 1700000000) {
		t.Error("signature is not deterministic")
	}
	if a == Sign("other", "jane@example.com", 1700000000) {
		t.Error("signature ignores the secret")
	}
	if a == Sign("secret", "jane@example.com", 1700000001) {
		t.Error("signature ignores the expiry")
	}
}

func TestSignedURL_RoundTrip(t *testing.T) {
	expires := linkNow.Add(time.Hour).Unix()
	raw := SignedURL("https://api.example.com", "s3cr3t", "jane@example.com", expires)

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	if u.Path != DownloadPath {
		t.Errorf("path = %q", u.Path)
	}
	q := u.Query()
	if q.Get("email") != "jane@example.com" || q.Get("expires") != strconv.FormatInt(expires, 10) {
		t.Errorf("query = %v", q)
	}
	if err := VerifyLink("s3cr3t", q.Get("email"), q.Get("expires"), q.Get("sig"), linkNow); err != nil {
		t.Errorf("VerifyLink() error = %v", err)
	}
}

func TestVerifyLink(t *testing.T) {
	expires := linkNow.Add(time.Hour).Unix()
	exp := strconv.FormatInt(expires, 10)
	sig := Sign("s3cr3t", "jane@example.com", expires)

	tests := []struct {
		name    string
		secret  string
		email   string
		expires string
		sig     string
		now     time.Time
		want    error
	}{
		{name: "valid", secret: "s3cr3t", email: "jane@example.com", expires: exp, sig: sig, now: linkNow},
		{name: "valid at expiry second", secret: "s3cr3t", email: "jane@example.com", expires: exp, sig: sig, now: time.Unix(expires, 0)},
		{name: "expired", secret: "s3cr3t", email: "jane@example.com", expires: exp, sig: sig, now: time.Unix(expires+1, 0), want: ErrLinkExpired},
		{name: "wrong secret", secret: "other", email: "jane@example.com", expires: exp, sig: sig, now: linkNow, want: ErrLinkSignature},
		{name: "email swapped", secret: "s3cr3t", email: "mallory@example.com", expires: exp, sig: sig, now: linkNow, want: ErrLinkSignature},
		{name: "expiry extended", secret: "s3cr3t", email: "jane@example.com", expires: strconv.FormatInt(expires+86400, 10), sig: sig, now: linkNow, want: ErrLinkSignature},
		{name: "non-hex signature", secret: "s3cr3t", email: "jane@example.com", expires: exp, sig: "zz", now: linkNow, want: ErrLinkMalformed},
		{name: "non-numeric expiry", secret: "s3cr3t", email: "jane@example.com", expires: "soon", sig: sig, now: linkNow, want: ErrLinkMalformed},
		{name: "missing email", secret: "s3cr3t", expires: exp, sig: sig, now: linkNow, want: ErrLinkMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyLink(tt.secret, tt.email, tt.expires, tt.sig, tt.now)
			if !errors.Is(err, tt.want) {
				t.Errorf("VerifyLink() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTokenURL_ParseToken(t *testing.T) {
	raw := TokenURL("http://localhost:5000", "jane@example.com", linkNow)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	token := u.Query().Get("token")

	email, err := ParseToken(token, 24*time.Hour, linkNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if email != "jane@example.com" {
		t.Errorf("email = %q", email)
	}

	if _, err := ParseToken(token, 24*time.Hour, linkNow.Add(25*time.Hour)); !errors.Is(err, ErrLinkExpired) {
		t.Errorf("expected ErrLinkExpired, got %v", err)
	}
	if _, err := ParseToken("!!!", time.Hour, linkNow); !errors.Is(err, ErrLinkMalformed) {
		t.Errorf("expected ErrLinkMalformed, got %v", err)
	}
}

type stubPresigner struct {
	url    string
	err    error
	expiry time.Duration
}

func (p *stubPresigner) PresignResume(_ context.Context, expiry time.Duration) (string, error) {
	p.expiry = expiry
	return p.url, p.err
}

func TestLinker_Generate(t *testing.T) {
	clock := func() time.Time { return linkNow }

	t.Run("presigner wins", func(t *testing.T) {
		p := &stubPresigner{url: "https://bucket.s3.amazonaws.com/resume.pdf?X-Amz-Signature=abc"}
		l := &Linker{Presigner: p, Secret: "s3cr3t", AllowToken: true, Expiry: time.Hour, Now: clock}
		got, err := l.Generate(context.Background(), "jane@example.com")
		if err != nil {
			t.Fatal(err)
		}
		if got != p.url {
			t.Errorf("Generate() = %q", got)
		}
		if p.expiry != time.Hour {
			t.Errorf("presign expiry = %v", p.expiry)
		}
	})

	t.Run("hmac with default base", func(t *testing.T) {
		l := &Linker{Secret: "s3cr3t", AllowToken: true, Expiry: time.Hour, Now: clock}
		got, err := l.Generate(context.Background(), "jane@example.com")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(got, "https://your-domain.com"+DownloadPath+"?") {
			t.Errorf("Generate() = %q", got)
		}
		if !strings.Contains(got, "expires="+strconv.FormatInt(linkNow.Add(time.Hour).Unix(), 10)) {
			t.Errorf("expiry missing from %q", got)
		}
	})

	t.Run("token fallback", func(t *testing.T) {
		l := &Linker{BaseURL: "http://localhost:8080/", AllowToken: true, Expiry: time.Hour, Now: clock}
		got, err := l.Generate(context.Background(), "jane@example.com")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(got, "http://localhost:8080"+DownloadPath+"?token=") {
			t.Errorf("Generate() = %q", got)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		l := &Linker{Expiry: time.Hour, Now: clock}
		_, err := l.Generate(context.Background(), "jane@example.com")
		if KindOf(err) != ConfigurationMissing {
			t.Errorf("expected ConfigurationMissing, got %v", err)
		}
	})

	t.Run("presign failure", func(t *testing.T) {
		l := &Linker{Presigner: &stubPresigner{err: errors.New("no credentials")}, Expiry: time.Hour}
		_, err := l.Generate(context.Background(), "jane@example.com")
		if KindOf(err) != ResourceUnavailable {
			t.Errorf("expected ResourceUnavailable, got %v", err)
		}
	})
}

func TestS3Presigner(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", t.TempDir()+"/none")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", t.TempDir()+"/none")
	t.Setenv("AWS_PROFILE", "")

	p, err := NewS3Presigner(context.Background(), S3Options{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		Region:          "eu-west-1",
		Bucket:          "portfolio-assets",
	})
	if err != nil {
		t.Fatalf("NewS3Presigner() error = %v", err)
	}

	raw, err := p.PresignResume(context.Background(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("PresignResume() error = %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(u.Host, "portfolio-assets") && !strings.Contains(u.Path, "portfolio-assets") {
		t.Errorf("bucket missing from %q", raw)
	}
	if !strings.HasSuffix(u.Path, "/resume.pdf") {
		t.Errorf("path = %q, want default key resume.pdf", u.Path)
	}
	q := u.Query()
	if q.Get("X-Amz-Signature") == "" {
		t.Error("missing X-Amz-Signature")
	}
	if q.Get("X-Amz-Expires") != "604800" {
		t.Errorf("X-Amz-Expires = %q", q.Get("X-Amz-Expires"))
	}
}
