// Package download streams HTTP resources to local files in fixed-size
// chunks, e.g. build artifacts pushed to render nodes.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrHTTPStatus is returned (wrapped, with the status code) when the server
// responds with a non-2xx status.
var ErrHTTPStatus = errors.New("download: unexpected HTTP status")

const defaultChunkSize = 8192

// Config holds downloader configuration.
type Config struct {
	HTTPClient *http.Client // default http.DefaultClient
	ChunkSize  int          // write granularity in bytes, default 8192
	Logger     *slog.Logger
	Tracer     trace.Tracer
}

func (c Config) withDefaults() Config {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer("stagehand/download")
	}
	return c
}

// Client downloads files over HTTP.
type Client struct {
	cfg Config
}

// NewClient creates a Client with the given configuration.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg.withDefaults()}
}

// Fetch GETs url and streams the response body to dest. A non-2xx response
// fails with ErrHTTPStatus; filesystem errors propagate unchanged. On
// success it returns dest and the number of bytes written.
func (c *Client) Fetch(ctx context.Context, url, dest string) (string, int64, error) {
	ctx, span := c.cfg.Tracer.Start(ctx, "download.fetch",
		trace.WithAttributes(
			attribute.String("url", url),
			attribute.String("dest", dest),
		))
	defer span.End()

	start := time.Now()

	written, err := c.fetch(ctx, url, dest)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", 0, err
	}

	span.SetAttributes(attribute.Int64("bytes", written))
	c.cfg.Logger.Info("download complete",
		"url", url,
		"dest", dest,
		"bytes", written,
		"elapsed", time.Since(start).Truncate(time.Millisecond),
	)
	return dest, written, nil
}

func (c *Client) fetch(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("download: building request for %s: %w", url, err)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download: fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: %d fetching %s", ErrHTTPStatus, resp.StatusCode, url)
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, c.cfg.ChunkSize)
	written, err := io.CopyBuffer(f, resp.Body, buf)
	if err != nil {
		_ = f.Close()
		return written, fmt.Errorf("download: writing %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return written, err
	}
	return written, nil
}
