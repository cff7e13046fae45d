// Package httpclient wraps net/http with the timeout, redirect, proxy,
// and progress-callback behavior the download engine needs from HEAD
// and ranged GET requests.
package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/tanq16/rangepull/internal/rangeutil"
)

// Config controls how a Client dials and authenticates against origins.
type Config struct {
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepAliveTimeout time.Duration
	ProxyURL         string
	ProxyUsername    string
	ProxyPassword    string
	UserAgent        string
	Headers          map[string]string
	MaxRedirects     int
	HighThreadMode   bool // tunes socket buffers for many concurrent chunk fetchers
	Insecure         bool // disables TLS peer verification; default is verify
}

const defaultBufferSize = 1024 * 1024 * 4 // 4MB read buffer per connection

func (c Config) withDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 300 * time.Second
	}
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = 90 * time.Second
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = 10
	}
	if c.UserAgent == "" {
		c.UserAgent = rangeutil.ToolUserAgent
	}
	return c
}

// Client issues HEAD/GET requests on behalf of the probe and fetchers.
type Client struct {
	http   *http.Client
	config Config
}

// New builds a Client from cfg, applying defaults for zero-valued fields.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()

	transport := &http.Transport{
		IdleConnTimeout:     cfg.KeepAliveTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		DisableCompression:  true,
		MaxConnsPerHost:     0,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.Insecure},
	}
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: cfg.KeepAliveTimeout,
	}
	if cfg.HighThreadMode {
		dialer.Control = func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				rangeutil.SetSocketOptions(fd, defaultBufferSize)
			})
		}
	}
	transport.DialContext = dialer.DialContext

	if cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.ProxyURL); err == nil {
			if cfg.ProxyUsername != "" {
				if cfg.ProxyPassword != "" {
					proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
				} else {
					proxyURL.User = url.User(cfg.ProxyUsername)
				}
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	client := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		},
	}
	return &Client{http: client, config: cfg}
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
}

// Response carries the subset of an HTTP response the probe cares about.
type Response struct {
	StatusCode         int
	ContentLength      int64 // -1 if absent
	ContentType        string
	AcceptRanges       string
	ContentDisposition string
	FinalURL           string
}

// Head issues a HEAD request and reports the effective URL after redirects.
func (c *Client) Head(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build HEAD request: %w", err)
	}
	c.applyHeaders(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()
	return &Response{
		StatusCode:         resp.StatusCode,
		ContentLength:      resp.ContentLength,
		ContentType:        resp.Header.Get("Content-Type"),
		AcceptRanges:       resp.Header.Get("Accept-Ranges"),
		ContentDisposition: resp.Header.Get("Content-Disposition"),
		FinalURL:           resp.Request.URL.String(),
	}, nil
}

// ProgressFunc receives the count of bytes written by the most recent
// read and returns true to continue, false to abort the transfer.
type ProgressFunc func(n int64) bool

// TransferOutcome summarizes a completed or aborted GET.
type TransferOutcome struct {
	StatusCode    int
	BytesWritten  int64
	Aborted       bool
	ContentRange  string
	FinalURL      string
}

// Get issues a GET, optionally with a byte Range header, streaming the
// body into sink and invoking progress after every read. If rangeHeader
// is empty, no Range header is sent.
func (c *Client) Get(ctx context.Context, rawURL, rangeHeader string, sink io.Writer, progress ProgressFunc) (*TransferOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build GET request: %w", err)
	}
	c.applyHeaders(req)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	req.Header.Set("Connection", "keep-alive")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	outcome := &TransferOutcome{
		StatusCode:   resp.StatusCode,
		ContentRange: resp.Header.Get("Content-Range"),
		FinalURL:     resp.Request.URL.String(),
	}
	if resp.StatusCode >= 400 {
		return outcome, &HTTPStatusError{Code: resp.StatusCode}
	}

	buffer := make([]byte, defaultBufferSize)
	for {
		select {
		case <-ctx.Done():
			outcome.Aborted = true
			return outcome, ctx.Err()
		default:
		}
		n, readErr := resp.Body.Read(buffer)
		if n > 0 {
			if _, writeErr := sink.Write(buffer[:n]); writeErr != nil {
				return outcome, &WriteError{Cause: writeErr}
			}
			outcome.BytesWritten += int64(n)
			if progress != nil && !progress(int64(n)) {
				outcome.Aborted = true
				return outcome, ErrAborted
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return outcome, nil
			}
			return outcome, classifyError(readErr)
		}
	}
}
