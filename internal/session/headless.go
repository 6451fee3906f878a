package session

import (
	"context"
	"os"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/ayane-dev/musubi/internal/logger"
)

// HeadlessFetcher fetches pages through headless Chrome for hosts that only
// render their content behind JavaScript (Twitter profiles, most notably).
// It is deliberately stateless: one throwaway profile per fetch, so
// concurrent fetches never fight over a singleton browser lock.
type HeadlessFetcher struct {
	logger    logger.Logger
	noSandbox bool
	settle    time.Duration
}

// NewHeadlessFetcher builds a headless strategy. settle is how long to wait
// after navigation for client-side rendering to finish.
func NewHeadlessFetcher(log logger.Logger, noSandbox bool) *HeadlessFetcher {
	return &HeadlessFetcher{
		logger:    log,
		noSandbox: noSandbox,
		settle:    2 * time.Second,
	}
}

// Fetch renders a page and returns its final DOM as HTML. The status code
// is reported as 200 on success; headless navigation failures surface as
// errors rather than statuses.
func (h *HeadlessFetcher) Fetch(ctx context.Context, url string) (int, string, error) {
	profileDir, err := os.MkdirTemp("", "musubi-chrome-*")
	if err != nil {
		return 0, "", err
	}
	defer os.RemoveAll(profileDir)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("user-data-dir", profileDir),
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("window-size", "1920,1080"),
	)
	if h.noSandbox {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var html string
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(h.settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return 0, "", err
	}

	h.logger.Debug("Headless fetch of %s returned %d bytes", url, len(html))
	return 200, html, nil
}
