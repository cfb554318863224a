package sources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// hides the usual automation fingerprints before any page script runs
const stealthJS = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.navigator.chrome = { runtime: {} };
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
`

type ChromeConfig struct {
	Headless  bool
	ExecPath  string
	UserAgent string
}

// Chrome launches a fresh Chrome process per session via chromedp.
type Chrome struct {
	opts []chromedp.ExecAllocatorOption
}

func NewChrome(cfg ChromeConfig) *Chrome {
	ua := cfg.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(ua),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return &Chrome{opts: opts}
}

func (c *Chrome) Open(ctx context.Context) (Page, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	p := &chromePage{ctx: tabCtx, cancel: func() { cancelTab(); cancelAlloc() }}

	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthJS).Do(ctx)
		return err
	}))
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return p, nil
}

// chromePage runs every action on the tab context; the per-call ctx is only
// checked up front since the tab context already derives from the session's.
type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(p.ctx, actions...)
}

func (p *chromePage) eval(ctx context.Context, js string, out any) error {
	return p.run(ctx, chromedp.Evaluate(js, out))
}

func (p *chromePage) Navigate(ctx context.Context, u string) error {
	return p.run(ctx, chromedp.Navigate(u))
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	var u string
	err := p.run(ctx, chromedp.Location(&u))
	return u, err
}

func (p *chromePage) Hrefs(ctx context.Context, selector string) ([]string, error) {
	var out []string
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(e => e.href || "")`, jsString(selector))
	err := p.eval(ctx, js, &out)
	return out, err
}

func (p *chromePage) Click(ctx context.Context, selector string) (bool, error) {
	var ok bool
	js := fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  el.scrollIntoView();
  el.click();
  return true;
})()`, jsString(selector))
	err := p.eval(ctx, js, &ok)
	return ok, err
}

func (p *chromePage) ClickText(ctx context.Context, tag, text string) (bool, error) {
	var ok bool
	js := fmt.Sprintf(`(() => {
  const want = %s;
  for (const el of document.querySelectorAll(%s)) {
    if ((el.textContent || "").includes(want) || (el.getAttribute("aria-label") || "").includes(want)) {
      el.scrollIntoView();
      el.click();
      return true;
    }
  }
  return false;
})()`, jsString(text), jsString(tag))
	err := p.eval(ctx, js, &ok)
	return ok, err
}

func (p *chromePage) ScrollToBottom(ctx context.Context, selector string) (bool, error) {
	var ok bool
	js := `(() => { window.scrollTo(0, document.body.scrollHeight); return true; })()`
	if selector != "" {
		js = fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  el.scrollTop = el.scrollHeight;
  return true;
})()`, jsString(selector))
	}
	err := p.eval(ctx, js, &ok)
	return ok, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.eval(ctx, `document.documentElement.outerHTML`, &html)
	return html, err
}

// Close shuts the browser down and releases both contexts.
func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
