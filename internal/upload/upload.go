// Package upload accepts user images either as uploaded files, stored
// through the backend's blob storage, or as links to images elsewhere.
// Results are reported through callbacks, never as returned errors.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/modernplatform/modern-platform/internal/backend"
	"github.com/modernplatform/modern-platform/pkg/logger"
	"github.com/modernplatform/modern-platform/pkg/metrics"
)

const (
	DefaultMaxSize int64 = 5 << 20
	// InvalidURLMessage is reported for any rejected image link.
	InvalidURLMessage = "Please enter a valid image URL"
	sniffLen          = 3072
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}

// File is one uploaded file. Size is the declared length of Body.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// Callbacks receive the outcome. Either may be nil.
type Callbacks struct {
	OnComplete func(publicURL string)
	OnError    func(message string)
}

func (c Callbacks) complete(u string) {
	if c.OnComplete != nil {
		c.OnComplete(u)
	}
}

func (c Callbacks) fail(msg string) {
	if c.OnError != nil {
		c.OnError(msg)
	}
}

type Uploader struct {
	Blobs    backend.Blobs
	Bucket   string
	MaxSize  int64
	Accepted []string
}

// New returns an uploader into bucket with the default limits.
func New(blobs backend.Blobs, bucket string) *Uploader {
	return &Uploader{Blobs: blobs, Bucket: bucket, MaxSize: DefaultMaxSize, Accepted: []string{"image/*"}}
}

// Limit is the effective maximum file size in bytes.
func (u *Uploader) Limit() int64 {
	if u.MaxSize <= 0 {
		return DefaultMaxSize
	}
	return u.MaxSize
}

func (u *Uploader) accepted() []string {
	if len(u.Accepted) == 0 {
		return []string{"image/*"}
	}
	return u.Accepted
}

// SizeMessage is the text reported for files over limit bytes.
func SizeMessage(limit int64) string {
	mb := float64(limit) / (1 << 20)
	if limit%(1<<20) == 0 {
		return fmt.Sprintf("File is larger than %dMB", limit>>20)
	}
	return fmt.Sprintf("File is larger than %.1fMB", mb)
}

// Accepts reports whether contentType matches one of the accepted patterns,
// which may end in "/*" or be "*/*".
func Accepts(accepted []string, contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, a := range accepted {
		a = strings.ToLower(strings.TrimSpace(a))
		switch {
		case a == "*/*" || a == "*":
			return true
		case strings.HasSuffix(a, "/*"):
			if strings.HasPrefix(ct, strings.TrimSuffix(a, "*")) {
				return true
			}
		case a == ct:
			return true
		}
	}
	return false
}

// AcceptFile checks size and type, then uploads f and reports its public URL.
func (u *Uploader) AcceptFile(ctx context.Context, f File, cb Callbacks) {
	if f.Size > u.Limit() {
		metrics.Uploads.WithLabelValues("file", "rejected").Inc()
		cb.fail(SizeMessage(u.Limit()))
		return
	}
	body, ct, err := contentType(f)
	if err != nil {
		metrics.Uploads.WithLabelValues("file", "error").Inc()
		cb.fail(err.Error())
		return
	}
	if !Accepts(u.accepted(), ct) {
		metrics.Uploads.WithLabelValues("file", "rejected").Inc()
		cb.fail(fmt.Sprintf("File type %s is not accepted", ct))
		return
	}

	name := uuid.NewString() + extension(f.Name, ct)
	stored, err := u.Blobs.Upload(ctx, u.Bucket, name, io.LimitReader(body, u.Limit()+1), f.Size, ct)
	if err != nil {
		logger.Warnf("upload %s to %s: %v", f.Name, u.Bucket, err)
		metrics.Uploads.WithLabelValues("file", "error").Inc()
		cb.fail(err.Error())
		return
	}
	metrics.Uploads.WithLabelValues("file", "ok").Inc()
	cb.complete(u.Blobs.PublicURL(u.Bucket, stored))
}

// contentType returns the declared type, or sniffs one when the declaration
// is missing or generic. The returned reader replays sniffed bytes.
func contentType(f File) (io.Reader, string, error) {
	declared := strings.TrimSpace(f.ContentType)
	if declared != "" && declared != "application/octet-stream" {
		return f.Body, declared, nil
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f.Body, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	ct := mimetype.Detect(head).String()
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return io.MultiReader(bytes.NewReader(head), f.Body), ct, nil
}

func extension(name, ct string) string {
	if ext := filepath.Ext(name); ext != "" {
		return strings.ToLower(ext)
	}
	if m := mimetype.Lookup(ct); m != nil {
		return m.Extension()
	}
	return ""
}

// AcceptURL validates a link to an image hosted elsewhere.
func (u *Uploader) AcceptURL(raw string, cb Callbacks) {
	if !u.validURL(raw) {
		metrics.Uploads.WithLabelValues("url", "rejected").Inc()
		cb.fail(InvalidURLMessage)
		return
	}
	metrics.Uploads.WithLabelValues("url", "ok").Inc()
	cb.complete(strings.TrimSpace(raw))
}

func (u *Uploader) validURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return false
	}
	for _, a := range u.accepted() {
		if a == "*/*" {
			return true
		}
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	for _, ok := range imageExtensions {
		if ext == ok {
			return true
		}
	}
	return false
}
