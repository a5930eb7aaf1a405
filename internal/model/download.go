package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"k8s.io/klog/v2"
)

func openHTTP(ctx context.Context, source string, opts Options) (io.ReadCloser, int64, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 0}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	setAuth(req, opts.HTTPToken)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download request failed: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, 0, &ErrAccessDenied{
			Source: source,
			Msg:    fmt.Sprintf("access denied for %s; provide --fetch-http-token", source),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("download failed for %s: %s", source, resp.Status)
	}

	return resp.Body, resp.ContentLength, nil
}

func setAuth(req *http.Request, token string) {
	if token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// writeFile streams src into a temp file next to dest, verifies the
// checksum when expected is set and renames it into place.
func writeFile(ctx context.Context, src io.Reader, total int64, dest, expected string, stdout io.Writer) (string, error) {
	log := klog.FromContext(ctx)

	tempFile, err := os.CreateTemp(filepath.Dir(dest), "download")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	shouldDeleteTempFile := true
	defer func() {
		if shouldDeleteTempFile {
			if err := os.Remove(tempFile.Name()); err != nil && !os.IsNotExist(err) {
				log.Error(err, "removing temp file", "path", tempFile.Name())
			}
		}
	}()

	shouldCloseTempFile := true
	defer func() {
		if shouldCloseTempFile {
			if err := tempFile.Close(); err != nil {
				log.Error(err, "closing temp file", "path", tempFile.Name())
			}
		}
	}()

	h := sha256.New()
	mw := io.MultiWriter(tempFile, h)

	var written int64
	buf := make([]byte, 64*1024)
	lastPrint := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			wn, writeErr := mw.Write(buf[:n])
			if writeErr != nil {
				return "", fmt.Errorf("write temp file: %w", writeErr)
			}
			written += int64(wn)
			if time.Since(lastPrint) > 700*time.Millisecond {
				if total > 0 {
					pct := float64(written) * 100 / float64(total)
					fmt.Fprintf(stdout, "  progress: %.1f%% (%d/%d bytes)\n", pct, written, total)
				} else {
					fmt.Fprintf(stdout, "  progress: %d bytes\n", written)
				}
				lastPrint = time.Now()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("download read failed: %w", readErr)
		}
	}

	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	shouldCloseTempFile = false

	actual := hex.EncodeToString(h.Sum(nil))
	if expected != "" && actual != expected {
		return "", &ErrChecksumMismatch{Expected: expected, Actual: actual}
	}

	if err := os.Rename(tempFile.Name(), dest); err != nil {
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	shouldDeleteTempFile = false

	log.V(2).Info("wrote model file", "path", dest, "bytes", written)
	return actual, nil
}
