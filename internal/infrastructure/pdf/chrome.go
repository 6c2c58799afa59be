// Package pdf renders invoices to HTML and, through headless Chrome, to PDF.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second

	a4WidthMM  = 210
	a4HeightMM = 297
	marginMM   = 12
)

var (
	ErrEmptyHTML     = errors.New("pdf: html content is empty")
	ErrRenderTimeout = errors.New("pdf: rendering timed out")
	ErrEmptyPDF      = errors.New("pdf: generated document is empty")
)

// ChromeConfig configures the Chrome renderer
type ChromeConfig struct {
	// RemoteURL is the devtools websocket of a running browser. When
	// empty a local Chrome is launched.
	RemoteURL string
	Timeout   time.Duration
	// NoSandbox is needed when running as root in a container
	NoSandbox bool
}

// ChromeRenderer prints HTML through the Chrome DevTools Protocol
type ChromeRenderer struct {
	timeout     time.Duration
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromeRenderer prepares the browser allocator. The browser itself is
// started on the first render.
func NewChromeRenderer(cfg ChromeConfig, logger *zap.Logger) *ChromeRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	r := &ChromeRenderer{timeout: cfg.Timeout, logger: logger}
	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return r
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r
}

// RenderPDF prints an A4 portrait document
func (r *ChromeRenderer) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyHTML
	}
	start := time.Now()

	browserCtx, cancelBrowser := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}))
	defer cancelBrowser()
	runCtx, cancel := context.WithTimeout(browserCtx, r.timeout)
	defer cancel()
	// propagate cancellation of the caller's request
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var data []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(mmToInches(a4WidthMM)).
				WithPaperHeight(mmToInches(a4HeightMM)).
				WithMarginTop(mmToInches(marginMM)).
				WithMarginBottom(mmToInches(marginMM)).
				WithMarginLeft(mmToInches(marginMM)).
				WithMarginRight(mmToInches(marginMM)).
				Do(ctx)
			data = out
			return err
		}),
	)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %v", ErrRenderTimeout, r.timeout)
		}
		r.logger.Error("Chrome rendering failed", zap.Error(err))
		return nil, fmt.Errorf("pdf: chrome execution failed: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPDF
	}
	r.logger.Info("PDF rendered",
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)))
	return data, nil
}

// Close shuts the browser down
func (r *ChromeRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}
