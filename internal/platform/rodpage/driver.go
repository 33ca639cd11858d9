// Package rodpage drives a Chromium browser with go-rod, optionally with
// the stealth patches applied to the page.
package rodpage

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/mj1618/user-routine/internal/observability"
	"github.com/mj1618/user-routine/internal/platform"
)

func init() {
	platform.Register("rod", open)
}

// Page is one rod page.
type Page struct {
	page *rod.Page
}

var (
	_ platform.Document      = (*Page)(nil)
	_ platform.Screenshotter = (*Page)(nil)
)

func open(ctx context.Context, opts platform.OpenOptions) (*platform.Provider, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("rod driver needs a URL")
	}
	logger := observability.GetLogger().Named("rod")

	l := launcher.New().
		Leakless(true).
		Headless(opts.Headless)
	if opts.UserDataDir != "" {
		l = l.UserDataDir(opts.UserDataDir)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect: %w", err)
	}
	closeAll := func() error {
		err := browser.Close()
		l.Cleanup()
		return err
	}

	var page *rod.Page
	if opts.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = closeAll()
		return nil, fmt.Errorf("create page: %w", err)
	}

	loadCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	p := page.Context(loadCtx)
	if err := p.Navigate(opts.URL); err != nil {
		_ = closeAll()
		return nil, fmt.Errorf("navigate to %s: %w", opts.URL, err)
	}
	if err := p.WaitLoad(); err != nil {
		_ = closeAll()
		return nil, fmt.Errorf("wait load: %w", err)
	}
	logger.Info("page loaded", zap.String("url", opts.URL), zap.Bool("stealth", opts.Stealth))

	doc := &Page{page: page}
	return &platform.Provider{
		Document:      doc,
		Screenshotter: doc,
		CloseFunc:     closeAll,
	}, nil
}

func (p *Page) Query(ctx context.Context, selector string) ([]platform.Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return wrap(els), nil
}

func (p *Page) Navigate(ctx context.Context, fragment string) error {
	_, err := p.page.Context(ctx).Eval(`(h) => { window.location.href = h; }`, fragment)
	return err
}

func (p *Page) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func wrap(els rod.Elements) []platform.Element {
	out := make([]platform.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{el: el})
	}
	return out
}
