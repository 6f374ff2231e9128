package pdf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// A4 with 2cm margins, in inches.
const (
	paperWidth  = 8.27
	paperHeight = 11.69
	marginInch  = 0.787
)

var (
	errChromeClosed = errors.New("chrome closed")
	errBrowserDied  = errors.New("browser exited during render")
)

// ChromeConfig selects the browser. RemoteURL wins over ExecPath.
type ChromeConfig struct {
	RemoteURL string
	ExecPath  string
	Timeout   time.Duration
}

// Chrome renders HTML to PDF in a shared headless browser, one tab per render.
// The browser is launched on first use and relaunched when it has died.
type Chrome struct {
	cfg     ChromeConfig
	timeout time.Duration
	log     *zap.Logger
	launch  func() (context.Context, context.CancelFunc, error)

	mu      sync.Mutex
	browser context.Context
	cancel  context.CancelFunc
	closed  bool
}

// NewChrome prepares the renderer. Nothing is started until Start or the
// first Render.
func NewChrome(cfg ChromeConfig, log *zap.Logger) *Chrome {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Chrome{cfg: cfg, timeout: timeout, log: log}
	c.launch = c.launchBrowser
	return c
}

// Start launches the browser now instead of on the first render.
func (c *Chrome) Start() error {
	_, err := c.session()
	return err
}

// Check implements middleware.HealthChecker. A dead browser is relaunched.
func (c *Chrome) Check(ctx context.Context) error {
	_, err := c.session()
	return err
}

// session returns the live browser context, launching one when needed.
func (c *Chrome) session() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errChromeClosed
	}
	if c.browser != nil && c.browser.Err() == nil {
		return c.browser, nil
	}
	if c.cancel != nil {
		c.log.Warn("chrome gone, relaunching")
		c.cancel()
		c.browser, c.cancel = nil, nil
	}

	browser, cancel, err := c.launch()
	if err != nil {
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	c.browser, c.cancel = browser, cancel
	c.log.Info("chrome ready", zap.Bool("remote", c.cfg.RemoteURL != ""))
	return browser, nil
}

func (c *Chrome) launchBrowser() (context.Context, context.CancelFunc, error) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if c.cfg.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), c.cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.NoSandbox,
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.DisableGPU,
		)
		if c.cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	browser, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			c.log.Sugar().Errorf("chromedp: "+format, args...)
		}),
	)
	cancel := func() {
		cancelBrowser()
		cancelAlloc()
	}
	// first Run launches the browser process
	if err := chromedp.Run(browser); err != nil {
		cancel()
		return nil, nil, err
	}
	return browser, cancel, nil
}

// Render implements delivery.Renderer.
func (c *Chrome) Render(ctx context.Context, html string) ([]byte, error) {
	browser, err := c.session()
	if err != nil {
		return nil, err
	}
	tab, cancelTab := chromedp.NewContext(browser)
	defer cancelTab()
	tab, cancelTimeout := context.WithTimeout(tab, c.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var out []byte
	err = chromedp.Run(tab,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithMarginTop(marginInch).
				WithMarginRight(marginInch).
				WithMarginBottom(marginInch).
				WithMarginLeft(marginInch).
				WithPrintBackground(true).
				Do(ctx)
			out = data
			return err
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if browser.Err() != nil {
			return nil, fmt.Errorf("print pdf: %w", errBrowserDied)
		}
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return out, nil
}

// Close shuts the browser down. Later renders fail.
func (c *Chrome) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
		c.browser, c.cancel = nil, nil
	}
}
