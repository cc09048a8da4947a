package chrome

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/recorder-dev/recorder-runner/pkg/core"
	"github.com/recorder-dev/recorder-runner/pkg/flow"
)

// ariaQueryJS resolves an element by its accessible name. The recorder
// emits aria/ selectors using the computed name, which for most elements
// is the aria-label attribute or the trimmed text content.
const ariaQueryJS = `(name) => {
	const matches = (el) => {
		const label = el.getAttribute && el.getAttribute('aria-label');
		if (label && label.trim() === name) return true;
		const text = (el.textContent || '').trim();
		if (text === name) return true;
		if (el.placeholder && el.placeholder.trim() === name) return true;
		if (el.alt && el.alt.trim() === name) return true;
		return false;
	};
	const walk = (root) => {
		for (const el of root.querySelectorAll('*')) {
			if (matches(el)) return el;
			if (el.shadowRoot) {
				const found = walk(el.shadowRoot);
				if (found) return found;
			}
		}
		return null;
	};
	return walk(this.shadowRoot || this);
}`

// pierceQueryJS runs a CSS query that descends into open shadow roots.
const pierceQueryJS = `(selector) => {
	const walk = (root) => {
		const found = root.querySelector(selector);
		if (found) return found;
		for (const el of root.querySelectorAll('*')) {
			if (el.shadowRoot) {
				const hit = walk(el.shadowRoot);
				if (hit) return hit;
			}
		}
		return null;
	};
	return walk(this.shadowRoot || this);
}`

// resolveElement tries each recorded fallback selector in order and returns
// the first element that resolves within the timeout. The returned string is
// the selector that matched.
func (d *Driver) resolveElement(page *rod.Page, selectors flow.Selectors, timeout time.Duration) (*rod.Element, string, error) {
	if selectors.IsEmpty() {
		return nil, "", core.ErrElementNotFound.WithMessage("step has no selectors")
	}

	deadline := time.Now().Add(timeout)
	var lastErr error

	for {
		for _, chain := range selectors {
			if len(chain) == 0 {
				continue
			}
			el, err := resolveChain(page, chain)
			if err == nil {
				return el, chain[len(chain)-1], nil
			}
			lastErr = err
		}

		if time.Now().After(deadline) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	err := core.ErrElementNotFound.WithDetails(map[string]interface{}{
		"selectors": describeAll(selectors),
		"timeout":   timeout.String(),
	})
	if lastErr != nil {
		err = err.WithCause(lastErr)
	}
	return nil, "", err
}

// resolveChain resolves one selector chain, descending into iframes and
// shadow roots between entries. It does not wait; the caller polls.
func resolveChain(page *rod.Page, chain []string) (*rod.Element, error) {
	scope := page.Sleeper(rod.NotFoundSleeper)

	var el *rod.Element
	for i, sel := range chain {
		found, err := resolveOne(scope, el, sel)
		if err != nil {
			return nil, err
		}

		if i < len(chain)-1 {
			// Descend: an iframe entry scopes the rest of the chain to the
			// frame's document, anything else to its shadow root.
			tag, err := elementTag(found)
			if err != nil {
				return nil, err
			}
			if tag == "iframe" || tag == "frame" {
				frame, err := found.Frame()
				if err != nil {
					return nil, err
				}
				scope = frame.Sleeper(rod.NotFoundSleeper)
				el = nil
				continue
			}
			el = found
			continue
		}
		el = found
	}
	return el, nil
}

// resolveOne resolves a single selector entry within a scope. When parent is
// non-nil the query runs inside it (shadow root descent), otherwise against
// the page scope.
func resolveOne(scope *rod.Page, parent *rod.Element, sel string) (*rod.Element, error) {
	kind, value := flow.SplitSelector(sel)

	switch kind {
	case flow.SelectorCSS:
		if parent != nil {
			return parent.Element(value)
		}
		return scope.Element(value)

	case flow.SelectorXPath:
		if parent != nil {
			return parent.ElementX(value)
		}
		return scope.ElementX(value)

	case flow.SelectorText:
		pattern := "/" + regexp.QuoteMeta(value) + "/"
		if parent != nil {
			return parent.ElementR("*", pattern)
		}
		return scope.ElementR("*", pattern)

	case flow.SelectorARIA:
		if parent != nil {
			return parent.ElementByJS(rod.Eval(ariaQueryJS, value))
		}
		return scope.ElementByJS(rod.Eval(ariaQueryJS, value))

	case flow.SelectorPierce:
		if parent != nil {
			return parent.ElementByJS(rod.Eval(pierceQueryJS, value))
		}
		return scope.ElementByJS(rod.Eval(pierceQueryJS, value))

	default:
		return nil, fmt.Errorf("unknown selector kind %q", kind)
	}
}

// countMatches counts elements matching the first resolvable selector chain.
// Multi-entry chains count within the innermost scope.
func countMatches(page *rod.Page, selectors flow.Selectors) (int, error) {
	scope := page.Sleeper(rod.NotFoundSleeper)

	for _, chain := range selectors {
		if len(chain) == 0 {
			continue
		}

		// Resolve everything but the last entry to find the counting scope.
		var parent *rod.Element
		if len(chain) > 1 {
			el, err := resolveChain(page, chain[:len(chain)-1])
			if err != nil {
				continue
			}
			tag, err := elementTag(el)
			if err != nil {
				continue
			}
			if tag == "iframe" || tag == "frame" {
				frame, err := el.Frame()
				if err != nil {
					continue
				}
				scope = frame.Sleeper(rod.NotFoundSleeper)
			} else {
				parent = el
			}
		}

		kind, value := flow.SplitSelector(chain[len(chain)-1])
		var els rod.Elements
		var err error
		switch kind {
		case flow.SelectorCSS, flow.SelectorPierce:
			if parent != nil {
				els, err = parent.Elements(value)
			} else {
				els, err = scope.Elements(value)
			}
		case flow.SelectorXPath:
			if parent != nil {
				els, err = parent.ElementsX(value)
			} else {
				els, err = scope.ElementsX(value)
			}
		default:
			// aria/text match at most one element
			el, resolveErr := resolveOne(scope, parent, chain[len(chain)-1])
			if resolveErr != nil {
				return 0, nil
			}
			if el != nil {
				return 1, nil
			}
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		return len(els), nil
	}

	return 0, nil
}

// countSatisfies evaluates a waitForElement count condition.
// Operator defaults to "==", count defaults to 1.
func countSatisfies(actual int, operator string, want int) bool {
	if operator == "" {
		operator = "=="
	}
	switch operator {
	case ">=":
		return actual >= want
	case "<=":
		return actual <= want
	default:
		return actual == want
	}
}

// buttonFromName maps a recorder button name to a rod mouse button.
func buttonFromName(name string) proto.InputMouseButton {
	switch name {
	case "auxiliary":
		return proto.InputMouseButtonMiddle
	case "secondary":
		return proto.InputMouseButtonRight
	case "back":
		return proto.InputMouseButtonBack
	case "forward":
		return proto.InputMouseButtonForward
	default:
		return proto.InputMouseButtonLeft
	}
}

// elementTag returns the lowercase tag name of an element.
func elementTag(el *rod.Element) (string, error) {
	obj, err := el.Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return "", err
	}
	return obj.Value.String(), nil
}

// elementInfo collects reporting details about a resolved element.
func elementInfo(el *rod.Element, selector string) *core.ElementInfo {
	info := &core.ElementInfo{Selector: selector}

	if tag, err := elementTag(el); err == nil {
		info.Tag = tag
	}
	if text, err := el.Text(); err == nil {
		text = strings.TrimSpace(text)
		if len(text) > 100 {
			text = text[:100]
		}
		info.Text = text
	}
	if visible, err := el.Visible(); err == nil {
		info.Visible = visible
	}
	if shape, err := el.Shape(); err == nil && len(shape.Quads) > 0 {
		q := shape.Quads[0]
		minX, minY := q[0], q[1]
		maxX, maxY := q[0], q[1]
		for i := 2; i < len(q); i += 2 {
			if q[i] < minX {
				minX = q[i]
			}
			if q[i] > maxX {
				maxX = q[i]
			}
			if q[i+1] < minY {
				minY = q[i+1]
			}
			if q[i+1] > maxY {
				maxY = q[i+1]
			}
		}
		info.Bounds = core.Bounds{
			X:      int(minX),
			Y:      int(minY),
			Width:  int(maxX - minX),
			Height: int(maxY - minY),
		}
	}

	return info
}

// describeAll flattens selectors for error details.
func describeAll(selectors flow.Selectors) []string {
	out := make([]string, 0, len(selectors))
	for _, chain := range selectors {
		out = append(out, strings.Join(chain, " >> "))
	}
	return out
}
