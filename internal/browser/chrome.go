package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jobharvest/harvester/internal/proxy"
)

// ChromeOptions configures the Chrome processes a ChromeLauncher starts.
type ChromeOptions struct {
	ExecPath        string
	Headless        bool
	PageLoadTimeout time.Duration
}

// ChromeLauncher starts one Chrome process per session.
type ChromeLauncher struct {
	opts   ChromeOptions
	proxy  *proxy.Manager
	logger *zap.Logger
}

// NewChromeLauncher creates a launcher using chromedp.
func NewChromeLauncher(opts ChromeOptions, pm *proxy.Manager, logger *zap.Logger) *ChromeLauncher {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 60 * time.Second
	}
	return &ChromeLauncher{opts: opts, proxy: pm, logger: logger}
}

// Launch starts the browser and opens a tab. The browser is really started
// here, so a missing binary or sandbox failure surfaces before any source runs.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	userAgent := l.proxy.GetUserAgent()
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}
	if p := l.proxy.GetProxy(); p != "" {
		opts = append(opts, chromedp.ProxyServer(p))
	}

	// The browser outlives the caller's context; Close releases it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(l.logger.Sugar().Debugf))

	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
	)
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	l.logger.Debug("browser session started", zap.String("user_agent", userAgent))
	return &chromeSession{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		timeout:     l.opts.PageLoadTimeout,
	}, nil
}

type chromeSession struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
}

// Navigate loads url and waits for the body. The navigation runs on the tab's
// own context so an external stop lets the current page finish loading.
func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.timeout)
	defer cancel()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if resp != nil && resp.Status >= 400 {
		return fmt.Errorf("navigate: received status code %d", resp.Status)
	}
	if err := chromedp.Run(runCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for body: %w", err)
	}
	return nil
}

func (s *chromeSession) HTML(_ context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.timeout)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.tabCtx)
	s.tabCancel()
	s.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
