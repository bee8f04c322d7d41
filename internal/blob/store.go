// Package blob stores report audio and serves it at public URLs.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	ErrInvalidKey         = errors.New("invalid blob key")
	ErrUnsupportedType    = errors.New("unsupported content type")
	ErrInvalidDeviceID    = errors.New("invalid device id")
	deviceIDPattern       = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	audioExtensionsByType = map[string]string{
		"audio/webm":  "webm",
		"audio/ogg":   "ogg",
		"audio/mp4":   "m4a",
		"audio/mpeg":  "mp3",
		"audio/wav":   "wav",
		"audio/x-wav": "wav",
		"audio/aac":   "aac",
	}
	// preferred type first where extensions are shared
	audioTypes = []string{"audio/webm", "audio/ogg", "audio/mp4", "audio/mpeg", "audio/wav", "audio/aac"}
)

// Store keeps blobs by key.
type Store interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader) error
	PublicURL(key string) string
}

// AudioExtension maps an audio content type to a file extension.
func AudioExtension(contentType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	ext, ok := audioExtensionsByType[mediaType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, mediaType)
	}
	return ext, nil
}

// AudioContentType is the inverse of AudioExtension. ext may carry a
// leading dot.
func AudioContentType(ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, t := range audioTypes {
		if audioExtensionsByType[t] == ext {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: extension %q", ErrUnsupportedType, ext)
}

// AudioKey builds the storage key audio/<device>/<epoch_ms>.<ext>.
func AudioKey(deviceID string, at time.Time, contentType string) (string, error) {
	if !deviceIDPattern.MatchString(deviceID) {
		return "", ErrInvalidDeviceID
	}
	ext, err := AudioExtension(contentType)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("audio/%s/%d.%s", deviceID, at.UnixMilli(), ext), nil
}

// Local stores blobs under a directory and addresses them below baseURL.
type Local struct {
	dir     string
	baseURL string
}

func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob dir: %w", err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *Local) Dir() string { return l.dir }

func (l *Local) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || clean[1:] != key {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(l.dir, filepath.FromSlash(key)), nil
}

func (l *Local) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	dst, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("creating blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("storing blob: %w", err)
	}
	return nil
}

func (l *Local) PublicURL(key string) string {
	return l.baseURL + "/" + key
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
