package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/codepush/version"
)

const (
	DefaultRetryDelay = 3 * time.Second

	bufferSize = 256 * 1024
)

var zipHeader = []byte{'P', 'K', 0x03, 0x04}

// ErrSizeMismatch is returned when fewer or more bytes arrive than announced
var ErrSizeMismatch = errors.New("received size does not match expected size")

// Progress is called after every chunk written to disk
type Progress func(total, received int64)

// Result describes a completed download
type Result struct {
	Size  int64
	IsZip bool
}

// DownloadToFile fetches url into dstFile. A failed attempt is retried once after retryDelay,
// a zero retryDelay disables the retry. A positive expectedSize must match the number of
// bytes received, otherwise the server's Content-Length is used when present.
func DownloadToFile(ctx context.Context, retryDelay time.Duration, url, dstFile string, expectedSize int64, progress Progress) (Result, error) {
	log.Debugf("starting download from %s", url)

	out, err := os.Create(dstFile)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create destination file %q: %w", dstFile, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			log.Warnf("error closing file %q: %v", dstFile, cerr)
		}
	}()

	var (
		res     Result
		attempt int
	)
	operation := func() error {
		attempt++
		if attempt > 1 {
			log.Warnf("retrying download of %s", url)
			if err := out.Truncate(0); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to truncate file on retry: %w", err))
			}
			if _, err := out.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to seek to beginning of file: %w", err))
			}
		}

		r, err := downloadToFileOnce(ctx, url, out, expectedSize, progress)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			log.Warnf("download attempt %d failed: %v", attempt, err)
			return err
		}
		res = r
		return nil
	}

	if err := backoff.Retry(operation, retryPolicy(ctx, retryDelay)); err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("download cancelled: %w", ctx.Err())
		}
		return Result{}, fmt.Errorf("download failed after %d attempt(s): %w", attempt, err)
	}

	if err := out.Sync(); err != nil {
		return Result{}, fmt.Errorf("sync %s: %w", dstFile, err)
	}

	log.Infof("successfully downloaded %d bytes to %s", res.Size, dstFile)
	return res, nil
}

func retryPolicy(ctx context.Context, retryDelay time.Duration) backoff.BackOff {
	if retryDelay <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(retryDelay), 1), ctx)
}

func downloadToFileOnce(ctx context.Context, url string, out *os.File, expectedSize int64, progress Progress) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
	}

	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return Result{}, backoff.Permanent(statusErr)
		}
		return Result{}, statusErr
	}

	total := expectedSize
	if total <= 0 {
		total = resp.ContentLength
	} else if resp.ContentLength > 0 && resp.ContentLength != total {
		return Result{}, fmt.Errorf("%w: server announced %d bytes, expected %d", ErrSizeMismatch, resp.ContentLength, total)
	}

	pw := &progressWriter{w: out, total: total, progress: progress}
	buf := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(pw, resp.Body, buf); err != nil {
		return Result{}, fmt.Errorf("failed to write response body to file: %w", err)
	}

	if total > 0 && pw.received != total {
		return Result{}, fmt.Errorf("%w: received %d of %d bytes", ErrSizeMismatch, pw.received, total)
	}

	return Result{Size: pw.received, IsZip: bytes.Equal(pw.header, zipHeader)}, nil
}

type progressWriter struct {
	w        io.Writer
	total    int64
	received int64
	header   []byte
	progress Progress
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if missing := len(zipHeader) - len(p.header); missing > 0 {
		if missing > n {
			missing = n
		}
		p.header = append(p.header, b[:missing]...)
	}
	p.received += int64(n)
	if p.progress != nil && n > 0 {
		p.progress(p.total, p.received)
	}
	return n, err
}
