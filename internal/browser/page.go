package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/declaranet/declara-cli/internal/engine"
)

// Page implements engine.Page against one Chrome tab. Reads go straight
// through; mutating interactions wait on the rate limiter first.
type Page struct {
	tabCtx  context.Context
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ engine.Page = (*Page)(nil)

// run executes chromedp actions on the tab, honoring the caller's context
// for cancellation.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(p.tabCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// jsArg renders a Go string as a safe JS string literal.
func jsArg(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Navigate loads a URL in the portal tab and waits for the document to be
// ready.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating.", zap.String("url", url))
	return p.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	var n int
	script := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsArg(selector))
	if err := p.run(ctx, chromedp.Evaluate(script, &n)); err != nil {
		return 0, fmt.Errorf("counting %q: %w", selector, err)
	}
	return n, nil
}

func (p *Page) Visible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') return false;
		return el.getClientRects().length > 0;
	})()`, jsArg(selector))
	if err := p.run(ctx, chromedp.Evaluate(script, &visible)); err != nil {
		return false, fmt.Errorf("checking visibility of %q: %w", selector, err)
	}
	return visible, nil
}

func (p *Page) Enabled(ctx context.Context, selector string) (bool, error) {
	var enabled bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		if (el.disabled || el.readOnly) return false;
		return true;
	})()`, jsArg(selector))
	if err := p.run(ctx, chromedp.Evaluate(script, &enabled)); err != nil {
		return false, fmt.Errorf("checking enabled state of %q: %w", selector, err)
	}
	return enabled, nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := p.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	return nil
}

// Fill replaces the control's value and dispatches the input and change
// events the portal's framework listens on. chromedp.SetValue alone does not
// fire them, and the portal only recomputes dependent fields on change.
func (p *Page) Fill(ctx context.Context, selector, text string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.focus();
		el.value = %s;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		el.blur();
		return true;
	})()`, jsArg(selector), jsArg(text))
	var ok bool
	if err := p.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("filling %q: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("filling %q: node vanished", selector)
	}
	return nil
}

// SelectOption picks a dropdown option, matching the option value first and
// its visible label second.
func (p *Page) SelectOption(ctx context.Context, selector, option string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		const want = %s;
		let match = null;
		for (const opt of el.options) {
			if (opt.value === want) { match = opt; break; }
		}
		if (!match) {
			for (const opt of el.options) {
				if (opt.text.trim() === want) { match = opt; break; }
			}
		}
		if (!match) return false;
		el.value = match.value;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, jsArg(selector), jsArg(option))
	var ok bool
	if err := p.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("selecting option in %q: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("select %q has no option %q by value or label", selector, option)
	}
	return nil
}

func (p *Page) SetFiles(ctx context.Context, selector, path string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := p.run(ctx, chromedp.SetUploadFiles(selector, []string{path}, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("attaching file to %q: %w", selector, err)
	}
	return nil
}

func (p *Page) Value(ctx context.Context, selector string) (string, error) {
	var value string
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return el ? String(el.value ?? '') : '';
	})()`, jsArg(selector))
	if err := p.run(ctx, chromedp.Evaluate(script, &value)); err != nil {
		return "", fmt.Errorf("reading value of %q: %w", selector, err)
	}
	return value, nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	var text string
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return el ? (el.textContent || '').trim() : '';
	})()`, jsArg(selector))
	if err := p.run(ctx, chromedp.Evaluate(script, &text)); err != nil {
		return "", fmt.Errorf("reading text of %q: %w", selector, err)
	}
	return text, nil
}
