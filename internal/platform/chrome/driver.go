// Package chrome drives a Chromium browser through the DevTools protocol
// with chromedp. Element handles are remote object ids, so every element
// operation is a function call on the page.
package chrome

import (
	"context"
	"fmt"
	"strconv"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mj1618/user-routine/internal/observability"
	"github.com/mj1618/user-routine/internal/platform"
)

func init() {
	platform.Register("chromedp", open)
}

// objectGroup holds every element handle the session hands out, so they can
// be dropped together.
const objectGroup = "user-routine"

// Session is one browser tab.
type Session struct {
	tab    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

var (
	_ platform.Document      = (*Session)(nil)
	_ platform.Releaser      = (*Session)(nil)
	_ platform.Screenshotter = (*Session)(nil)
)

func open(ctx context.Context, opts platform.OpenOptions) (*platform.Provider, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("chromedp driver needs a URL")
	}
	logger := observability.GetLogger().Named("chromedp")

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
	)
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	// The allocator outlives ctx: the browser stays up until Close.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tab, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(logger.Sugar().Errorf),
		chromedp.WithDebugf(logger.Sugar().Debugf),
	)
	s := &Session{
		tab: tab,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		logger: logger,
	}

	// The first Run allocates the browser and ties it to the context it is
	// given, so it must be the tab context itself.
	if err := chromedp.Run(tab); err != nil {
		s.cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	loadCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	if err := s.run(loadCtx, chromedp.Navigate(opts.URL)); err != nil {
		s.cancel()
		return nil, fmt.Errorf("navigate to %s: %w", opts.URL, err)
	}
	logger.Info("page loaded", zap.String("url", opts.URL), zap.Bool("headless", opts.Headless))

	return &platform.Provider{
		Document:      s,
		Screenshotter: s,
		CloseFunc:     s.Close,
	}, nil
}

// Close shuts the tab and the browser.
func (s *Session) Close() error {
	s.cancel()
	return nil
}

// run executes actions on the tab. Canceling ctx aborts the actions
// without closing the tab.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (s *Session) Query(ctx context.Context, selector string) ([]platform.Element, error) {
	var list *runtime.RemoteObject
	expr := "Array.from(document.querySelectorAll(" + strconv.Quote(selector) + "))"
	if err := s.run(ctx, chromedp.Evaluate(expr, &list, inGroup)); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return s.unpack(ctx, list)
}

func (s *Session) Navigate(ctx context.Context, fragment string) error {
	return s.run(ctx, chromedp.Evaluate("window.location.href = "+strconv.Quote(fragment), nil))
}

// Release frees every element handle in the page. Handles returned before
// the call must not be used afterwards.
func (s *Session) Release(ctx context.Context) error {
	return s.run(ctx, runtime.ReleaseObjectGroup(objectGroup))
}

func (s *Session) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// unpack turns a remote array of nodes into element handles and releases
// the array. The handles stay alive until Release.
func (s *Session) unpack(ctx context.Context, list *runtime.RemoteObject) ([]platform.Element, error) {
	if list == nil || list.ObjectID == "" {
		return nil, nil
	}
	defer func() {
		if err := s.run(ctx, runtime.ReleaseObject(list.ObjectID)); err != nil {
			s.logger.Debug("release object", zap.Error(err))
		}
	}()

	var n int
	if err := s.run(ctx, callOn(list.ObjectID, `function() { return this.length; }`, &n)); err != nil {
		return nil, err
	}
	out := make([]platform.Element, 0, n)
	for i := 0; i < n; i++ {
		var item *runtime.RemoteObject
		if err := s.run(ctx, callOn(list.ObjectID, `function(i) { return this[i]; }`, &item, i)); err != nil {
			return nil, err
		}
		out = append(out, &element{s: s, id: item.ObjectID})
	}
	return out, nil
}

func callOn(id runtime.RemoteObjectID, fn string, res any, args ...any) chromedp.Action {
	return chromedp.CallFunctionOn(fn, res,
		func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithObjectID(id).WithObjectGroup(objectGroup)
		},
		args...)
}

func inGroup(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithObjectGroup(objectGroup)
}
