// Package model turns a model source (local path, file://, http(s):// or
// gs:// URI) into a local file the engine can load.
package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

type Options struct {
	// CacheDir receives downloaded models as <CacheDir>/<sha256(source)>/<basename>.
	CacheDir string
	// SHA256 is the expected checksum of the model file. Empty skips verification.
	SHA256 string
	// HTTPToken is sent as a bearer token on http(s) downloads.
	HTTPToken string
	// Refresh forces a download even when a cached copy exists.
	Refresh bool

	HTTPClient *http.Client
	// OpenGCS opens a gs:// object for reading. Defaults to a
	// cloud.google.com/go/storage client using application default credentials.
	OpenGCS func(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	// Stdout receives download progress lines.
	Stdout io.Writer
}

// ErrAccessDenied reports a 401/403 from an http(s) source.
type ErrAccessDenied struct {
	Source string
	Msg    string
}

func (e *ErrAccessDenied) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("access denied for %s", e.Source)
}

// ErrChecksumMismatch reports a downloaded file whose SHA-256 differs from
// the expected one. The file is not kept.
type ErrChecksumMismatch struct {
	Source   string
	Expected string
	Actual   string
}

func (e *ErrChecksumMismatch) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s got %s", e.Source, e.Expected, e.Actual)
}

var shaHexPattern = regexp.MustCompile(`(?i)^[a-f0-9]{64}$`)

// Resolve returns a local path for source, downloading remote models into
// the cache directory first. Local paths are returned untouched; whether
// they exist is decided when the model is loaded.
func Resolve(ctx context.Context, source string, opts Options) (string, error) {
	if source == "" {
		return "", errors.New("model source is required")
	}

	if opts.SHA256 != "" && !isSHA256Hex(opts.SHA256) {
		return "", fmt.Errorf("invalid sha256 %q", opts.SHA256)
	}

	scheme, rest, ok := strings.Cut(source, "://")
	if !ok {
		return source, nil
	}

	switch strings.ToLower(scheme) {
	case "file":
		u, err := url.Parse(source)
		if err != nil {
			return "", fmt.Errorf("parse file uri: %w", err)
		}
		p := u.Path
		if u.Host != "" && u.Host != "localhost" {
			p = u.Host + u.Path
		}
		return filepath.FromSlash(p), nil
	case "http", "https":
		u, err := url.Parse(source)
		if err != nil {
			return "", fmt.Errorf("parse url: %w", err)
		}
		return fetch(ctx, source, path.Base(u.Path), opts, func(ctx context.Context) (io.ReadCloser, int64, error) {
			return openHTTP(ctx, source, opts)
		})
	case "gs":
		bucket, object, _ := strings.Cut(rest, "/")
		if bucket == "" || object == "" {
			return "", fmt.Errorf("gs uri %q must name a bucket and an object", source)
		}
		open := opts.OpenGCS
		if open == nil {
			open = openGCSObject
		}
		return fetch(ctx, source, path.Base(object), opts, func(ctx context.Context) (io.ReadCloser, int64, error) {
			r, err := open(ctx, bucket, object)
			return r, -1, err
		})
	default:
		return "", fmt.Errorf("unsupported model source scheme %q", scheme)
	}
}

// CachePath is where Resolve stores a download of source.
func CachePath(cacheDir, source, basename string) string {
	sum := sha256.Sum256([]byte(source))
	if basename == "" || basename == "." || basename == "/" {
		basename = "model.onnx"
	}
	return filepath.Join(cacheDir, hex.EncodeToString(sum[:]), basename)
}

type opener func(ctx context.Context) (io.ReadCloser, int64, error)

func fetch(ctx context.Context, source, basename string, opts Options, open opener) (string, error) {
	if opts.CacheDir == "" {
		return "", errors.New("cache dir is required for remote model sources")
	}

	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	expected := strings.ToLower(opts.SHA256)
	localPath := CachePath(opts.CacheDir, source, basename)

	if !opts.Refresh {
		ok, err := existingMatches(localPath, expected)
		if err != nil {
			return "", err
		}
		if ok {
			fmt.Fprintf(opts.Stdout, "using cached %s\n", localPath)
			return localPath, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	r, total, err := open(ctx)
	if err != nil {
		return "", err
	}
	defer r.Close()

	fmt.Fprintf(opts.Stdout, "download %s -> %s\n", source, localPath)
	actual, err := writeFile(ctx, r, total, localPath, expected, opts.Stdout)
	if err != nil {
		var mismatch *ErrChecksumMismatch
		if errors.As(err, &mismatch) {
			mismatch.Source = source
		}
		return "", err
	}

	fmt.Fprintf(opts.Stdout, "saved %s (sha256=%s)\n", localPath, actual)
	return localPath, nil
}

// existingMatches reports whether path holds a usable cached copy: any
// existing file when expected is empty, otherwise one with that checksum.
func existingMatches(path, expected string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat existing file: %w", err)
	}
	if fi.IsDir() {
		return false, fmt.Errorf("expected file at %s, found directory", path)
	}
	if expected == "" {
		return true, nil
	}
	actual, err := FileSHA256(path)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

func isSHA256Hex(v string) bool {
	return shaHexPattern.MatchString(v)
}

// FileSHA256 returns the hex SHA-256 of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
