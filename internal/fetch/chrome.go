// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeRenderer renders pages in headless Chrome. With endpoint "local"
// it starts a browser process; any other value is a DevTools websocket
// URL of a remote browser.
type ChromeRenderer struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	settle   time.Duration
}

// NewChromeRenderer prepares a browser allocator. No browser starts until
// the first Render call.
func NewChromeRenderer(endpoint string) *ChromeRenderer {
	var (
		allocCtx context.Context
		cancel   context.CancelFunc
	)
	if endpoint == "local" {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(userAgent),
		)
		allocCtx, cancel = chromedp.NewExecAllocator(context.Background(), opts...)
	} else {
		allocCtx, cancel = chromedp.NewRemoteAllocator(context.Background(), endpoint)
	}
	return &ChromeRenderer{allocCtx: allocCtx, cancel: cancel, settle: 2 * time.Second}
}

// Render opens pageURL in a new tab and returns the document's outer HTML.
// The tab is closed when ctx ends.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	tabCtx, cancel := chromedp.NewContext(r.allocCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var out string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.settle),
		chromedp.OuterHTML("html", &out, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return out, nil
}

// Close shuts down the allocator and any browser it started.
func (r *ChromeRenderer) Close() {
	r.cancel()
}
