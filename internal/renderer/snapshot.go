package renderer

import (
	"context"
	"sort"

	"github.com/chromedp/chromedp"

	"github.com/pixelproof/design-diff-tool/internal/model"
)

// snapshot populates the DOM tree, color inventory, and font census of the
// capture. Extraction runs in the page and the JSON comes back already shaped
// like the model types.
func (c *Chrome) snapshot(ctx context.Context, capture *model.SiteCapture) error {
	var dom model.SiteElement
	if err := chromedp.Run(ctx, chromedp.Evaluate(domSnapshotJS, &dom)); err != nil {
		return err
	}
	capture.DOM = &dom

	if err := chromedp.Run(ctx, chromedp.Evaluate(colorsJS, &capture.Colors)); err != nil {
		return err
	}

	if err := chromedp.Run(ctx, chromedp.Evaluate(colorUsageJS, &capture.ColorUsages)); err != nil {
		return err
	}

	if err := chromedp.Run(ctx, chromedp.Evaluate(fontsJS, &capture.Fonts)); err != nil {
		return err
	}
	// Equal-count entries come back in page order; re-sort so the census is
	// stable across runs.
	sort.SliceStable(capture.Fonts, func(i, j int) bool {
		a, b := capture.Fonts[i], capture.Fonts[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Family != b.Family {
			return a.Family < b.Family
		}
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		return a.Weight < b.Weight
	})

	return nil
}

// domSnapshotJS walks the rendered tree from <body> and emits elements with
// their bounding boxes and the computed style subset used for comparison.
// Hidden elements and zero-area wrappers are kept, script/style nodes are not.
const domSnapshotJS = `(() => {
	const SKIP = new Set(['SCRIPT', 'STYLE', 'NOSCRIPT', 'TEMPLATE', 'META', 'LINK']);

	function ownText(el) {
		let text = '';
		for (const n of el.childNodes) {
			if (n.nodeType === Node.TEXT_NODE) text += n.textContent;
		}
		text = text.trim().replace(/\s+/g, ' ');
		return text.length > 100 ? text.slice(0, 100) : text;
	}

	function walk(el) {
		const rect = el.getBoundingClientRect();
		const cs = getComputedStyle(el);

		const node = {
			tag: el.tagName.toLowerCase(),
			id: el.id || undefined,
			classes: el.classList.length ? Array.from(el.classList) : undefined,
			bounds: {
				x: rect.x + window.scrollX,
				y: rect.y + window.scrollY,
				width: rect.width,
				height: rect.height,
			},
			computed_style: {
				color: cs.color,
				background_color: cs.backgroundColor,
				font_size: cs.fontSize,
				font_family: cs.fontFamily,
				font_weight: cs.fontWeight,
				line_height: cs.lineHeight,
				letter_spacing: cs.letterSpacing,
				margin: {top: cs.marginTop, right: cs.marginRight, bottom: cs.marginBottom, left: cs.marginLeft},
				padding: {top: cs.paddingTop, right: cs.paddingRight, bottom: cs.paddingBottom, left: cs.paddingLeft},
				border: {width: cs.borderWidth, style: cs.borderStyle, color: cs.borderColor, radius: cs.borderRadius},
				display: cs.display,
				position: cs.position,
				flex_direction: cs.flexDirection,
				justify_content: cs.justifyContent,
				align_items: cs.alignItems,
				gap: cs.gap,
			},
		};

		const text = ownText(el);
		if (text) node.text = text;

		const children = [];
		for (const child of el.children) {
			if (SKIP.has(child.tagName)) continue;
			children.push(walk(child));
		}
		if (children.length) node.children = children;

		return node;
	}

	return walk(document.body);
})()`

// colorsJS returns the distinct resolved colors in use, as lowercase hex,
// sorted. Fully transparent values are skipped.
const colorsJS = `(() => {
	function toHex(value) {
		const m = value.match(/rgba?\((\d+),\s*(\d+),\s*(\d+)(?:,\s*([\d.]+))?\)/);
		if (!m) return null;
		const a = m[4] === undefined ? 1 : parseFloat(m[4]);
		if (a === 0) return null;
		const hex = (n) => parseInt(n, 10).toString(16).padStart(2, '0');
		let out = '#' + hex(m[1]) + hex(m[2]) + hex(m[3]);
		if (a < 1) out += Math.round(a * 255).toString(16).padStart(2, '0');
		return out;
	}

	const colors = new Set();
	for (const el of document.querySelectorAll('body, body *')) {
		const cs = getComputedStyle(el);
		for (const value of [cs.color, cs.backgroundColor, cs.borderTopColor]) {
			const hx = toHex(value);
			if (hx) colors.add(hx);
		}
	}
	return Array.from(colors).sort();
})()`

// colorUsageJS maps each color to a small sample of the elements using it,
// with a CSS-path selector and the element position for report drill-down.
const colorUsageJS = `(() => {
	const MAX_ELEMENTS = 5;

	function toHex(value) {
		const m = value.match(/rgba?\((\d+),\s*(\d+),\s*(\d+)(?:,\s*([\d.]+))?\)/);
		if (!m) return null;
		const a = m[4] === undefined ? 1 : parseFloat(m[4]);
		if (a === 0) return null;
		const hex = (n) => parseInt(n, 10).toString(16).padStart(2, '0');
		let out = '#' + hex(m[1]) + hex(m[2]) + hex(m[3]);
		if (a < 1) out += Math.round(a * 255).toString(16).padStart(2, '0');
		return out;
	}

	function selectorFor(el) {
		if (el.id) return '#' + el.id;
		let sel = el.tagName.toLowerCase();
		if (el.classList.length) sel += '.' + Array.from(el.classList).slice(0, 2).join('.');
		return sel;
	}

	const usage = new Map();
	function record(color, type, el) {
		const key = color + '|' + type;
		if (!usage.has(key)) usage.set(key, {color: color, type: type, elements: []});
		const entry = usage.get(key);
		if (entry.elements.length >= MAX_ELEMENTS) return;
		const rect = el.getBoundingClientRect();
		entry.elements.push({
			selector: selectorFor(el),
			name: (el.getAttribute('aria-label') || el.getAttribute('name') || undefined),
			x: rect.x + window.scrollX,
			y: rect.y + window.scrollY,
		});
	}

	for (const el of document.querySelectorAll('body, body *')) {
		const cs = getComputedStyle(el);
		const text = toHex(cs.color);
		if (text) record(text, 'text', el);
		const bg = toHex(cs.backgroundColor);
		if (bg) record(bg, 'background', el);
		const border = toHex(cs.borderTopColor);
		if (border && cs.borderTopWidth !== '0px') record(border, 'border', el);
	}

	return Array.from(usage.values()).sort((a, b) =>
		a.color === b.color ? (a.type < b.type ? -1 : 1) : (a.color < b.color ? -1 : 1));
})()`

// fontsJS counts distinct family/size/weight combinations across elements
// that render their own text.
const fontsJS = `(() => {
	function hasOwnText(el) {
		for (const n of el.childNodes) {
			if (n.nodeType === Node.TEXT_NODE && n.textContent.trim()) return true;
		}
		return false;
	}

	const counts = new Map();
	for (const el of document.querySelectorAll('body, body *')) {
		if (!hasOwnText(el)) continue;
		const cs = getComputedStyle(el);
		const family = cs.fontFamily.split(',')[0].trim().replace(/^["']|["']$/g, '');
		const key = family + '|' + cs.fontSize + '|' + cs.fontWeight;
		if (!counts.has(key)) counts.set(key, {family: family, size: cs.fontSize, weight: cs.fontWeight, count: 0});
		counts.get(key).count++;
	}

	return Array.from(counts.values()).sort((a, b) => b.count - a.count);
})()`
