// Package updater downloads application updates into the data directory.
//
// Only one download runs at a time: starting a new one cancels the previous
// call, which then reports ErrCancelled. Progress always describes the most
// recent download.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"

	"lan-gateway/gateway/internal/logging"
)

const (
	UpdatesDir      = "updates"
	DefaultFileName = "update.bin"

	userAgent = "lan-gateway-updater/1.0"
	chunkSize = 32 * 1024
)

var ErrCancelled = errors.New("download cancelled")

type Progress struct {
	Percent         int   `json:"percent"`
	BytesDownloaded int64 `json:"bytes_downloaded"`
	TotalBytes      int64 `json:"total_bytes"`
}

type Result struct {
	Success   bool   `json:"success"`
	LocalPath string `json:"local_path,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Downloader struct {
	client *resty.Client
	logger *log.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	gen      uint64
	progress Progress
}

func New(logger *log.Logger) *Downloader {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Downloader{
		client: resty.New().SetHeader("User-Agent", userAgent),
		logger: logger.With("component", "updater"),
	}
}

// Download fetches rawURL into <baseDir>/updates/<fileName>. An empty
// fileName is taken from the URL path.
func (d *Downloader) Download(ctx context.Context, rawURL, baseDir, fileName string) Result {
	ctx, cancel := context.WithCancel(ctx)

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.gen++
	gen := d.gen
	d.cancel = cancel
	d.progress = Progress{}
	d.mu.Unlock()
	defer d.release(gen, cancel)

	dest, err := d.fetch(ctx, gen, rawURL, baseDir, fileName)
	if err != nil {
		if ctx.Err() != nil {
			err = ErrCancelled
		}
		d.logger.Warn("download failed", "url", rawURL, "error", err)
		return Result{Error: err.Error()}
	}

	d.logger.Info("download finished", "url", rawURL, "path", dest)
	return Result{Success: true, LocalPath: dest}
}

// Progress returns a snapshot of the most recent download.
func (d *Downloader) Progress() Progress {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progress
}

// Cancel aborts the in-flight download, if any.
func (d *Downloader) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel == nil {
		return
	}
	d.cancel()
	d.cancel = nil
}

func (d *Downloader) release(gen uint64, cancel context.CancelFunc) {
	d.mu.Lock()
	if d.gen == gen {
		d.cancel = nil
	}
	d.mu.Unlock()
	cancel()
}

func (d *Downloader) setProgress(gen uint64, p Progress) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		return
	}
	d.progress = p
}

func (d *Downloader) fetch(ctx context.Context, gen uint64, rawURL, baseDir, fileName string) (string, error) {
	name, err := targetName(rawURL, fileName)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(baseDir, UpdatesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	dest := filepath.Join(dir, name)

	d.logger.Info("download started", "url", rawURL, "path", dest)
	resp, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	var total int64
	if resp.RawResponse != nil && resp.RawResponse.ContentLength > 0 {
		total = resp.RawResponse.ContentLength
	}

	tmp, err := os.CreateTemp(dir, name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	done, err := d.copyWithProgress(ctx, gen, tmp, body, total)
	if err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("replace file: %w", err)
	}

	d.setProgress(gen, Progress{Percent: 100, BytesDownloaded: done, TotalBytes: max(total, done)})
	return dest, nil
}

func (d *Downloader) copyWithProgress(ctx context.Context, gen uint64, dst io.Writer, src io.Reader, total int64) (int64, error) {
	buf := make([]byte, chunkSize)
	var done int64
	for {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return done, fmt.Errorf("write: %w", err)
			}
			done += int64(n)
			d.setProgress(gen, Progress{Percent: percent(done, total), BytesDownloaded: done, TotalBytes: total})
		}
		if errors.Is(rerr, io.EOF) {
			return done, nil
		}
		if rerr != nil {
			return done, fmt.Errorf("read: %w", rerr)
		}
	}
}

func percent(done, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(done) / float64(total) * 100))
	return min(p, 100)
}

func targetName(rawURL, fileName string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	name := strings.TrimSpace(fileName)
	if name == "" {
		name = path.Base(u.Path)
	}
	name = filepath.Base(filepath.FromSlash(name))
	switch name {
	case "", ".", "..", string(filepath.Separator):
		return DefaultFileName, nil
	}
	return name, nil
}
