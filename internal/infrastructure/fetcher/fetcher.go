// Package fetcher downloads remote files for media imports.
package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	mediaapp "github.com/backoffice/saas/internal/application/media"
	"github.com/backoffice/saas/internal/domain/media"
	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

var _ mediaapp.Fetcher = (*HTTPFetcher)(nil)

var (
	ErrUnsupportedScheme = errors.New("only http and https urls can be imported")
	ErrBlockedAddress    = errors.New("url resolves to a private or local address")
	ErrTooManyRedirects  = errors.New("too many redirects")
	ErrTooLarge          = errors.New("remote file exceeds the maximum size")
	ErrEmptyBody         = errors.New("remote file is empty")
)

// Config tunes the fetcher
type Config struct {
	MaxSize         int64
	Timeout         time.Duration
	Retries         int
	MaxRedirects    int
	AllowPrivate    bool
	UserAgent       string
	InitialInterval time.Duration
}

// DefaultConfig matches the media defaults
func DefaultConfig() Config {
	return Config{
		MaxSize:         20 << 20,
		Timeout:         30 * time.Second,
		Retries:         3,
		MaxRedirects:    5,
		UserAgent:       "backoffice-media-fetcher/1.0",
		InitialInterval: 250 * time.Millisecond,
	}
}

// HTTPFetcher downloads over net/http and records per-phase timings
type HTTPFetcher struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a fetcher. Zero config fields take the defaults.
func New(cfg Config, logger *zap.Logger) *HTTPFetcher {
	def := DefaultConfig()
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = def.MaxSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = def.Retries
	}
	if cfg.MaxRedirects < 0 {
		cfg.MaxRedirects = def.MaxRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !cfg.AllowPrivate {
		dialer.Control = guardAddress
	}
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       60 * time.Second,
	}

	f := &HTTPFetcher{cfg: cfg, logger: logger}
	f.client = &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > cfg.MaxRedirects {
				return ErrTooManyRedirects
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return ErrUnsupportedScheme
			}
			return nil
		},
	}
	return f
}

// guardAddress runs after DNS resolution, on the address actually dialed
func guardAddress(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || isBlockedIP(ip) {
		return ErrBlockedAddress
	}
	return nil
}

func isBlockedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() || ip.IsUnspecified() || isCGNAT(ip)
}

var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

func isCGNAT(ip net.IP) bool {
	return ip.To4() != nil && cgnat.Contains(ip)
}

// Fetch implements media.Fetcher. Failures are *FetchError values
// carrying the diagnostics gathered so far.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*mediaapp.FetchedFile, error) {
	diag := media.FetchDiagnostics{URL: rawURL}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return nil, f.fail(diag, true, fmt.Errorf("invalid url: %q", rawURL))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, f.fail(diag, true, ErrUnsupportedScheme)
	}
	if u.User != nil {
		return nil, f.fail(diag, true, errors.New("urls with credentials are not accepted"))
	}

	start := time.Now()
	var file *mediaapp.FetchedFile
	operation := func() error {
		diag.Attempts++
		result, err := f.attempt(ctx, u, &diag)
		if err != nil {
			var fe *mediaapp.FetchError
			if errors.As(err, &fe) && fe.Permanent {
				return backoff.Permanent(err)
			}
			f.logger.Debug("Fetch attempt failed",
				zap.String("url", rawURL),
				zap.Int("attempt", diag.Attempts),
				zap.Error(err))
			return err
		}
		file = result
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = f.cfg.InitialInterval
	expBackoff.MaxInterval = 5 * time.Second
	expBackoff.Multiplier = 2.0
	expBackoff.MaxElapsedTime = f.cfg.Timeout
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(f.cfg.Retries-1)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		diag.TotalMs = millis(time.Since(start))
		var fe *mediaapp.FetchError
		if errors.As(err, &fe) {
			fe.Diagnostics = diag
			fe.Diagnostics.ErrorMessage = fe.Err.Error()
			return nil, fe
		}
		return nil, f.fail(diag, false, err)
	}
	diag.TotalMs = millis(time.Since(start))
	file.Diagnostics = diag

	f.logger.Info("Fetched remote file",
		zap.String("url", rawURL),
		zap.Int64("bytes", diag.Bytes),
		zap.Int("attempts", diag.Attempts),
		zap.Float64("total_ms", diag.TotalMs))
	return file, nil
}

func (f *HTTPFetcher) attempt(ctx context.Context, u *url.URL, diag *media.FetchDiagnostics) (*mediaapp.FetchedFile, error) {
	var (
		dnsStart, connStart, tlsStart, reqStart time.Time
		firstByte                               time.Time
	)
	trace := &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone: func(httptrace.DNSDoneInfo) {
			if !dnsStart.IsZero() {
				diag.DNSMs = millis(time.Since(dnsStart))
			}
		},
		ConnectStart: func(_, _ string) { connStart = time.Now() },
		ConnectDone: func(_, _ string, err error) {
			if err == nil && !connStart.IsZero() {
				diag.ConnectMs = millis(time.Since(connStart))
			}
		},
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			if !tlsStart.IsZero() {
				diag.TLSMs = millis(time.Since(tlsStart))
			}
		},
		GotConn: func(info httptrace.GotConnInfo) {
			diag.ReusedConn = info.Reused
			if addr, ok := info.Conn.RemoteAddr().(*net.TCPAddr); ok {
				diag.ResolvedIP = addr.IP.String()
			}
		},
		GotFirstResponseByte: func() {
			firstByte = time.Now()
			diag.FirstByteMs = millis(firstByte.Sub(reqStart))
		},
	}
	// phases of a previous attempt must not leak into this one
	diag.DNSMs, diag.ConnectMs, diag.TLSMs, diag.FirstByteMs, diag.DownloadMs = 0, 0, 0, 0, 0
	diag.Redirects = 0

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &mediaapp.FetchError{Permanent: true, Err: err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")

	reqStart = time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		permanent := errors.Is(err, ErrBlockedAddress) || errors.Is(err, ErrTooManyRedirects) || errors.Is(err, ErrUnsupportedScheme)
		return nil, &mediaapp.FetchError{Permanent: permanent, Err: err}
	}
	defer resp.Body.Close()

	diag.StatusCode = resp.StatusCode
	diag.FinalURL = resp.Request.URL.String()
	diag.ContentType = resp.Header.Get("Content-Type")
	for r := resp.Request; r.Response != nil; r = r.Response.Request {
		diag.Redirects++
	}

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &mediaapp.FetchError{
			Permanent: resp.StatusCode < 500 && resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests,
			Err:       fmt.Errorf("remote server answered %s", resp.Status),
		}
	}
	if resp.ContentLength > f.cfg.MaxSize {
		return nil, &mediaapp.FetchError{Permanent: true, Err: ErrTooLarge}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxSize+1))
	if !firstByte.IsZero() {
		diag.DownloadMs = millis(time.Since(firstByte))
	}
	diag.Bytes = int64(len(data))
	if err != nil {
		return nil, &mediaapp.FetchError{Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(data)) > f.cfg.MaxSize {
		return nil, &mediaapp.FetchError{Permanent: true, Err: ErrTooLarge}
	}
	if len(data) == 0 {
		return nil, &mediaapp.FetchError{Permanent: true, Err: ErrEmptyBody}
	}

	return &mediaapp.FetchedFile{
		Data:     data,
		FileName: fileName(resp, data),
	}, nil
}

func (f *HTTPFetcher) fail(diag media.FetchDiagnostics, permanent bool, err error) *mediaapp.FetchError {
	diag.ErrorMessage = err.Error()
	return &mediaapp.FetchError{Diagnostics: diag, Permanent: permanent, Err: err}
}

// fileName prefers Content-Disposition, then the last path segment, then
// "download" with an extension from the sniffed type.
func fileName(resp *http.Response, data []byte) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return path.Base(strings.ReplaceAll(name, `\`, "/"))
			}
		}
	}
	if base := path.Base(resp.Request.URL.Path); base != "" && base != "/" && base != "." {
		if name, err := url.PathUnescape(base); err == nil && strings.TrimSpace(name) != "" {
			return name
		}
	}
	return "download" + mimetype.Detect(data).Extension()
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
