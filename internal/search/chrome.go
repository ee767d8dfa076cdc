package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// blockedResourceTypes are request classes every search page drops: they cost
// latency and bandwidth and never carry result links.
var blockedResourceTypes = map[network.ResourceType]struct{}{
	network.ResourceTypeImage:      {},
	network.ResourceTypeFont:       {},
	network.ResourceTypeMedia:      {},
	network.ResourceTypeStylesheet: {},
}

// chromeBrowser owns the headless browser singleton. The browser process
// starts lazily on the first page spawn and is recreated after a disconnect.
type chromeBrowser struct {
	mu            sync.Mutex
	cfg           Config
	logger        *zap.Logger
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	onDisconnect  func()
}

func newChromeBrowser(cfg Config, logger *zap.Logger) *chromeBrowser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("lang", "nl-NL"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &chromeBrowser{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}
}

// ensure returns a live browser context, starting or restarting the browser
// process as needed.
func (b *chromeBrowser) ensure() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browserCtx != nil && b.browserCtx.Err() == nil {
		return b.browserCtx, nil
	}
	if b.browserCancel != nil {
		b.browserCancel()
	}
	browserCtx, cancel := chromedp.NewContext(b.allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	b.browserCtx = browserCtx
	b.browserCancel = cancel
	go func() {
		<-browserCtx.Done()
		b.logger.Warn("browser disconnected")
		if b.onDisconnect != nil {
			b.onDisconnect()
		}
	}()
	return browserCtx, nil
}

// newPage spawns a configured tab: spoofed user agent, fixed viewport,
// language headers, and interception that drops heavy resources.
func (b *chromeBrowser) newPage(_ context.Context) (browserPage, error) {
	browserCtx, err := b.ensure()
	if err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(browserCtx)

	actions := []chromedp.Action{
		fetch.Enable(),
		emulation.SetUserAgentOverride(b.cfg.UserAgent).
			WithAcceptLanguage("nl-NL,nl;q=0.9,en;q=0.8"),
		emulation.SetDeviceMetricsOverride(1366, 768, 1, false),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": "nl-NL,nl;q=0.9,en;q=0.8",
		}),
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("setup page: %w", err)
	}

	page := &chromePage{ctx: tabCtx, cancel: cancel}
	chromedp.ListenTarget(tabCtx, page.interceptRequest)
	return page, nil
}

func (b *chromeBrowser) close() {
	b.mu.Lock()
	if b.browserCancel != nil {
		b.browserCancel()
		b.browserCtx = nil
		b.browserCancel = nil
	}
	b.mu.Unlock()
	b.allocCancel()
}

// chromePage is one tab driven through chromedp.
type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *chromePage) Run(ctx context.Context, fn func(pageCtx context.Context) error) error {
	runCtx := p.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(p.ctx, deadline)
		defer cancel()
	}
	return fn(runCtx)
}

func (p *chromePage) Reset(_ context.Context) error {
	if err := chromedp.Run(p.ctx, chromedp.Navigate("about:blank")); err != nil {
		return fmt.Errorf("reset page: %w", err)
	}
	return nil
}

func (p *chromePage) Healthy() bool {
	return p.ctx.Err() == nil
}

func (p *chromePage) Close() {
	p.cancel()
}

// interceptRequest fails heavy resource loads and continues the rest.
func (p *chromePage) interceptRequest(ev any) {
	paused, ok := ev.(*fetch.EventRequestPaused)
	if !ok {
		return
	}
	go func() {
		c := chromedp.FromContext(p.ctx)
		if c == nil || c.Target == nil {
			return
		}
		execCtx := cdp.WithExecutor(p.ctx, c.Target)
		if _, blocked := blockedResourceTypes[paused.ResourceType]; blocked {
			_ = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
			return
		}
		_ = fetch.ContinueRequest(paused.RequestID).Do(execCtx)
	}()
}
