package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// AttachmentWarnBytes is the size above which mail providers start
// rejecting attachments.
const AttachmentWarnBytes = 10 << 20

// maxRemoteResume bounds a download from the public resume URL.
const maxRemoteResume = 25 << 20

// ErrResumeNotFound is wrapped when no candidate file exists.
var ErrResumeNotFound = errors.New("resume file not found")

// ResumeSource locates the resume file.
type ResumeSource struct {
	// Paths are tried in order; the first existing regular file wins.
	Paths []string
	// PublicURL is fetched when no path resolves and the caller allows it.
	PublicURL string
	// Client fetches PublicURL. Nil uses http.DefaultClient.
	Client *http.Client
	Logger *slog.Logger
}

// Locate returns the first existing candidate path.
func (s *ResumeSource) Locate() (string, os.FileInfo, error) {
	for _, p := range s.Paths {
		info, err := os.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			return p, info, nil
		}
	}
	return "", nil, ErrResumeNotFound
}

// Load reads the resume. When no path resolves and allowRemote is set, it
// downloads PublicURL instead. Files above AttachmentWarnBytes are returned
// with a warning logged.
func (s *ResumeSource) Load(ctx context.Context, allowRemote bool) (*Attachment, error) {
	path, info, err := s.Locate()
	if err == nil {
		if info.Size() > AttachmentWarnBytes {
			s.logger().Warn("resume attachment is large; providers may reject it",
				"path", path,
				"size_mb", fmt.Sprintf("%.2f", float64(info.Size())/(1<<20)))
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, newError(ResourceUnavailable, "read resume", err)
		}
		return &Attachment{
			Filename:    filepath.Base(path),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	}

	if allowRemote && s.PublicURL != "" {
		return s.fetch(ctx)
	}
	return nil, newError(ResourceUnavailable, "locate resume", err)
}

func (s *ResumeSource) fetch(ctx context.Context) (*Attachment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.PublicURL, http.NoBody)
	if err != nil {
		return nil, newError(ConfigurationMissing, "resume url", err)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, classify("fetch resume", err, ResourceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newError(ResourceUnavailable, "fetch resume", fmt.Errorf("unexpected status %s", resp.Status))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteResume+1))
	if err != nil {
		return nil, classify("fetch resume", err, ResourceUnavailable)
	}
	if len(data) > maxRemoteResume {
		return nil, newError(ResourceUnavailable, "fetch resume", errors.New("remote resume exceeds size limit"))
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/pdf"
	}
	return &Attachment{Filename: "resume.pdf", ContentType: ct, Data: data}, nil
}

func (s *ResumeSource) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
