package renderer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Stabilization wait budgets. Each wait is individually time-boxed so a slow
// one cannot starve the others; an expired budget moves on to the next wait
// rather than failing the capture.
const (
	mutationDebounce = 300 * time.Millisecond
	scrollStepRatio  = 0.8
	scrollSettle     = 250 * time.Millisecond
	maxScrollSteps   = 30
	perImageWait     = 500 * time.Millisecond
	imageWaitFloor   = 3 * time.Second
	imageWaitCap     = 10 * time.Second
	animationWaitCap = 3 * time.Second
)

// stabilize runs the content-stabilization pass in fixed order: DOM mutation
// quiescence, lazy-load scrolling, image and background-image loads, then CSS
// animation settling.
func (c *Chrome) stabilize(ctx context.Context, req CaptureRequest, probe *Probe) error {
	if err := c.runBounded(ctx, c.stabilizeTimeout, "mutation quiescence",
		evalPromise(mutationSettleJS(mutationDebounce, c.stabilizeTimeout), nil)); err != nil {
		return err
	}

	if req.FullPage {
		if err := c.runBounded(ctx, c.stabilizeTimeout+time.Duration(maxScrollSteps)*scrollSettle,
			"lazy-load scroll", c.scrollThroughPage(req.Viewport.Height)); err != nil {
			return err
		}
	}

	imageBudget := imageWaitFloor + time.Duration(probe.ImageCount)*perImageWait
	if imageBudget > imageWaitCap {
		imageBudget = imageWaitCap
	}
	if err := c.runBounded(ctx, imageBudget, "image loads",
		evalPromise(imageSettleJS(imageBudget), nil)); err != nil {
		return err
	}
	if err := c.runBounded(ctx, imageBudget, "background-image loads",
		evalPromise(backgroundSettleJS(imageBudget), nil)); err != nil {
		return err
	}

	return c.runBounded(ctx, animationWaitCap+time.Second, "animation settle",
		c.awaitAnimations())
}

// runBounded executes action under its own deadline. Hitting that deadline is
// a logged no-op; only errors from the action itself (or the parent context)
// propagate.
func (c *Chrome) runBounded(ctx context.Context, d time.Duration, name string, action chromedp.Action) error {
	bctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := chromedp.Run(bctx, action)
	if err != nil && ctx.Err() == nil && errors.Is(bctx.Err(), context.DeadlineExceeded) {
		c.logger.Warn("stabilization wait timed out", "wait", name, "budget", d.String())
		return nil
	}
	return err
}

// scrollThroughPage steps down the page to trigger lazy-loaded content and
// returns to the top. The step cap bails out of infinitely growing pages.
func (c *Chrome) scrollThroughPage(viewportHeight int) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		step := float64(viewportHeight) * scrollStepRatio

		for i := 0; i < maxScrollSteps; i++ {
			var height, bottom float64
			if err := chromedp.Evaluate(`document.documentElement.scrollHeight`, &height).Do(ctx); err != nil {
				return err
			}
			if err := chromedp.Evaluate(`window.scrollY + window.innerHeight`, &bottom).Do(ctx); err != nil {
				return err
			}
			if bottom >= height {
				break
			}
			if i == maxScrollSteps-1 {
				c.logger.Warn("page keeps growing during scroll, bailing out", "height", height)
				break
			}

			if err := chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %.0f)`, step), nil).Do(ctx); err != nil {
				return err
			}
			if err := chromedp.Sleep(scrollSettle).Do(ctx); err != nil {
				return err
			}
		}

		return chromedp.Evaluate(`window.scrollTo(0, 0)`, nil).Do(ctx)
	}
}

// awaitAnimations reads the longest CSS animation/transition duration on the
// page and sleeps it out, capped.
func (c *Chrome) awaitAnimations() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		var longestMs float64
		if err := chromedp.Evaluate(longestAnimationJS, &longestMs).Do(ctx); err != nil {
			return err
		}

		wait := time.Duration(longestMs) * time.Millisecond
		if wait > animationWaitCap {
			wait = animationWaitCap
		}
		if wait <= 0 {
			return nil
		}
		return chromedp.Sleep(wait).Do(ctx)
	}
}

// evalPromise evaluates a promise-returning expression and waits for it.
func evalPromise(js string, res any) chromedp.EvaluateAction {
	return chromedp.Evaluate(js, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	})
}

// mutationSettleJS resolves once no DOM mutation has been observed for the
// debounce window, bounded by an overall cutoff.
func mutationSettleJS(debounce, bound time.Duration) string {
	return fmt.Sprintf(`new Promise((resolve) => {
	const debounce = %d, bound = %d;
	const observer = new MutationObserver(() => {
		clearTimeout(timer);
		timer = setTimeout(done, debounce);
	});
	function done() {
		clearTimeout(timer);
		clearTimeout(cutoff);
		observer.disconnect();
		resolve(true);
	}
	let timer = setTimeout(done, debounce);
	const cutoff = setTimeout(done, bound);
	observer.observe(document.documentElement, {childList: true, subtree: true, attributes: true, characterData: true});
})`, debounce.Milliseconds(), bound.Milliseconds())
}

// imageSettleJS resolves once every <img> has loaded or errored, each
// individually time-boxed.
func imageSettleJS(timeout time.Duration) string {
	return fmt.Sprintf(`Promise.all(Array.from(document.images).map((img) => {
	if (img.complete) return Promise.resolve(true);
	return new Promise((resolve) => {
		const t = setTimeout(resolve, %d);
		img.addEventListener('load', () => { clearTimeout(t); resolve(true); }, {once: true});
		img.addEventListener('error', () => { clearTimeout(t); resolve(true); }, {once: true});
	});
})).then(() => true)`, timeout.Milliseconds())
}

// backgroundSettleJS collects every CSS background-image URL in use and
// resolves once each has loaded or errored, individually time-boxed.
func backgroundSettleJS(timeout time.Duration) string {
	return fmt.Sprintf(`(() => {
	const urls = new Set();
	for (const el of document.querySelectorAll('*')) {
		const bg = getComputedStyle(el).backgroundImage;
		const m = bg && bg.match(/url\(["']?([^"')]+)["']?\)/);
		if (m) urls.add(m[1]);
	}
	return Promise.all(Array.from(urls).map((src) => new Promise((resolve) => {
		const img = new Image();
		const t = setTimeout(resolve, %d);
		img.onload = img.onerror = () => { clearTimeout(t); resolve(true); };
		img.src = src;
	}))).then(() => true);
})()`, timeout.Milliseconds())
}

// longestAnimationJS returns the longest declared CSS animation or transition
// duration on the page, in milliseconds.
const longestAnimationJS = `(() => {
	let longest = 0;
	for (const el of document.querySelectorAll('*')) {
		const style = getComputedStyle(el);
		const durations = style.animationDuration.split(',').concat(style.transitionDuration.split(','));
		for (const raw of durations) {
			const v = raw.trim();
			if (!v) continue;
			const ms = v.endsWith('ms') ? parseFloat(v) : parseFloat(v) * 1000;
			if (!isNaN(ms) && ms > longest) longest = ms;
		}
	}
	return longest;
})()`
