package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserScraper renders the page in headless Chrome before reading the
// container, for pages that build their content client-side.
type BrowserScraper struct {
	selector Selector
	timeout  time.Duration
	execPath string
}

// NewBrowserScraper creates a BrowserScraper. execPath may be empty to let
// chromedp locate Chrome.
func NewBrowserScraper(selector string, timeout time.Duration, execPath string) (*BrowserScraper, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserScraper{selector: sel, timeout: timeout, execPath: execPath}, nil
}

// Text implements Scraper.
func (s *BrowserScraper) Text(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	)
	if s.execPath != "" {
		opts = append(opts, chromedp.ExecPath(s.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancel := context.WithTimeout(browserCtx, s.timeout)
	defer cancel()

	css := s.selector.CSS()
	var text string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(css, chromedp.ByQuery),
		chromedp.Text(css, &text, chromedp.ByQuery),
	)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return "", fmt.Errorf("waiting for %s on %s: %w", css, url, ErrContentNotFound)
		}
		return "", fmt.Errorf("rendering %s: %w", url, err)
	}
	return normalize(text), nil
}
