package chrome

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/recorder-dev/recorder-runner/pkg/core"
	"github.com/recorder-dev/recorder-runner/pkg/flow"
	"github.com/recorder-dev/recorder-runner/pkg/logger"
)

// Execute performs a single step against the current page.
func (d *Driver) Execute(step flow.Step, f *flow.Flow) *core.CommandResult {
	start := time.Now()

	page, err := d.currentPage()
	if err != nil {
		return fail(start, err, "")
	}

	logger.Debug("chrome execute: %s", step.Describe())

	switch s := step.(type) {
	case *flow.NavigateStep:
		return d.execNavigate(page, s, start)
	case *flow.SetViewportStep:
		return d.execSetViewport(page, s, start)
	case *flow.CloseStep:
		return d.execClose(page, start)
	case *flow.EmulateNetworkStep:
		return d.execEmulateNetwork(page, s, start)
	case *flow.ClickStep:
		return d.execClick(page, s, start)
	case *flow.DoubleClickStep:
		return d.execDoubleClick(page, s, start)
	case *flow.HoverStep:
		return d.execHover(page, s, start)
	case *flow.ScrollStep:
		return d.execScroll(page, s, start)
	case *flow.ChangeStep:
		return d.execChange(page, s, start)
	case *flow.KeyDownStep:
		return d.execKey(page, s.Key, true, start)
	case *flow.KeyUpStep:
		return d.execKey(page, s.Key, false, start)
	case *flow.WaitForElementStep:
		return d.execWaitForElement(page, s, start)
	case *flow.WaitForExpressionStep:
		return d.execWaitForExpression(page, s, start)
	case *flow.CustomStep:
		return fail(start, core.ErrUnsupportedStep.WithDetails(map[string]interface{}{
			"name": s.Name,
		}), fmt.Sprintf("custom step %q is not supported by the chrome driver", s.Name))
	default:
		return fail(start, core.ErrUnsupportedStep.WithDetails(map[string]interface{}{
			"type": string(step.Type()),
		}), "")
	}
}

func (d *Driver) execNavigate(page *rod.Page, s *flow.NavigateStep, start time.Time) *core.CommandResult {
	timeout := d.stepTimeout(s)
	bounded := page.Timeout(timeout)

	if err := bounded.Navigate(s.URL); err != nil {
		return fail(start, core.ErrNavigationFailed.WithCause(err), "")
	}
	if err := bounded.WaitLoad(); err != nil {
		return fail(start, core.ErrNavigationFailed.WithCause(err), "")
	}

	// Re-verify what the recorder asserted after this step
	for _, ev := range s.AssertedEvents {
		if ev.Type != "navigation" || ev.URL == "" {
			continue
		}
		info, err := page.Info()
		if err != nil {
			return fail(start, core.ErrBrowserGone.WithCause(err), "")
		}
		if !urlMatches(info.URL, ev.URL) {
			return fail(start, core.ErrAssertedEventFailed.WithDetails(map[string]interface{}{
				"expectedUrl": ev.URL,
				"actualUrl":   info.URL,
			}), fmt.Sprintf("expected navigation to %s, landed on %s", ev.URL, info.URL))
		}
	}

	return okf(start, "Navigated to %s", s.URL)
}

func (d *Driver) execSetViewport(page *rod.Page, s *flow.SetViewportStep, start time.Time) *core.CommandResult {
	scale := s.DeviceScaleFactor
	if scale == 0 {
		scale = 1
	}
	err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.Width,
		Height:            s.Height,
		DeviceScaleFactor: scale,
		Mobile:            s.IsMobile,
	})
	if err != nil {
		return fail(start, core.ErrBrowserGone.WithCause(err), "")
	}
	return okf(start, "Viewport set to %dx%d", s.Width, s.Height)
}

func (d *Driver) execClose(page *rod.Page, start time.Time) *core.CommandResult {
	if err := page.Close(); err != nil {
		return fail(start, core.ErrBrowserGone.WithCause(err), "")
	}
	d.markPageClosed()
	return ok(start, "Page closed")
}

func (d *Driver) execEmulateNetwork(page *rod.Page, s *flow.EmulateNetworkStep, start time.Time) *core.CommandResult {
	err := proto.NetworkEmulateNetworkConditions{
		Offline:            false,
		Latency:            s.Latency,
		DownloadThroughput: s.Download,
		UploadThroughput:   s.Upload,
	}.Call(page)
	if err != nil {
		return fail(start, core.ErrBrowserGone.WithCause(err), "")
	}
	return okf(start, "Network throttled: %.0f/%.0f bps, %.0fms latency", s.Download, s.Upload, s.Latency)
}

func (d *Driver) execClick(page *rod.Page, s *flow.ClickStep, start time.Time) *core.CommandResult {
	el, matched, err := d.resolveElement(page, s.Selectors, d.stepTimeout(s))
	if err != nil {
		return fail(start, err, "")
	}
	info := elementInfo(el, matched)

	if err := el.ScrollIntoView(); err != nil {
		return fail(start, core.ErrBrowserGone.WithCause(err), "")
	}

	button := buttonFromName(s.Button)
	if s.OffsetX != 0 || s.OffsetY != 0 {
		// The recording clicked a specific point inside the element
		if shape, shapeErr := el.Shape(); shapeErr == nil && len(shape.Quads) > 0 {
			q := shape.Quads[0]
			x := q[0] + s.OffsetX
			y := q[1] + s.OffsetY
			if moveErr := page.Mouse.MoveTo(proto.NewPoint(x, y)); moveErr == nil {
				if clickErr := page.Mouse.Click(button, 1); clickErr != nil {
					return fail(start, core.ErrBrowserGone.WithCause(clickErr), "")
				}
				result := okf(start, "Clicked %s", matched)
				result.Element = info
				return result
			}
		}
	}

	if err := el.Click(button, 1); err != nil {
		return fail(start, core.ErrBrowserGone.WithCause(err), "")
	}

	result := okf(start, "Clicked %s", matched)
	result.Element = info
	return result
}

func (d *Driver) execDoubleClick(page *rod.Page, s *flow.DoubleClickStep, start time.Time) *core.CommandResult {
	el, matched, err := d.resolveElement(page, s.Selectors, d.stepTimeout(s))
	if err != nil {
		return fail(start, err, "")
	}
	info := elementInfo(el, matched)

	if err := el.ScrollIntoView(); err != nil {
		return fail(start, core.ErrBrowserGone.WithCause(err), "")
	}
	if err := el.Click(proto.InputMouseButtonLeft, 2); err != nil {
		return fail(start, core.ErrBrowserGone.WithCause(err), "")
	}

	result := okf(start, "Double clicked %s", matched)
	result.Element = info
	return result
}

func (d *Driver) execHover(page *rod.Page, s *flow.HoverStep, start time.Time) *core.CommandResult {
	el, matched, err := d.resolveElement(page, s.Selectors, d.stepTimeout(s))
	if err != nil {
		return fail(start, err, "")
	}
	info := elementInfo(el, matched)

	if err := el.Hover(); err != nil {
		return fail(start, core.ErrBrowserGone.WithCause(err), "")
	}

	result := okf(start, "Hovered %s", matched)
	result.Element = info
	return result
}

func (d *Driver) execScroll(page *rod.Page, s *flow.ScrollStep, start time.Time) *core.CommandResult {
	if s.Selectors.IsEmpty() {
		if err := page.Mouse.Scroll(s.X, s.Y, 1); err != nil {
			return fail(start, core.ErrBrowserGone.WithCause(err), "")
		}
		return okf(start, "Scrolled page by %.0f,%.0f", s.X, s.Y)
	}

	el, matched, err := d.resolveElement(page, s.Selectors, d.stepTimeout(s))
	if err != nil {
		return fail(start, err, "")
	}

	_, err = el.Eval(`(x, y) => { this.scrollLeft = x; this.scrollTop = y; }`, s.X, s.Y)
	if err != nil {
		return fail(start, core.ErrBrowserGone.WithCause(err), "")
	}

	result := okf(start, "Scrolled %s to %.0f,%.0f", matched, s.X, s.Y)
	result.Element = elementInfo(el, matched)
	return result
}

func (d *Driver) execChange(page *rod.Page, s *flow.ChangeStep, start time.Time) *core.CommandResult {
	el, matched, err := d.resolveElement(page, s.Selectors, d.stepTimeout(s))
	if err != nil {
		return fail(start, err, "")
	}
	info := elementInfo(el, matched)

	tag, err := elementTag(el)
	if err != nil {
		return fail(start, core.ErrBrowserGone.WithCause(err), "")
	}

	if tag == "select" {
		if err := el.Select([]string{s.Value}, true, rod.SelectorTypeText); err != nil {
			return fail(start, core.ErrElementNotFound.WithMessage(
				fmt.Sprintf("option %q not found in select", s.Value)).WithCause(err), "")
		}
	} else {
		if err := el.Focus(); err != nil {
			return fail(start, core.ErrBrowserGone.WithCause(err), "")
		}
		// Replace existing content, not append
		el.SelectAllText()
		if err := el.Input(s.Value); err != nil {
			return fail(start, core.ErrBrowserGone.WithCause(err), "")
		}
	}

	result := okf(start, "Changed %s", matched)
	result.Element = info
	return result
}

func (d *Driver) execKey(page *rod.Page, key string, down bool, start time.Time) *core.CommandResult {
	k, err := keyFromName(key)
	if err != nil {
		return fail(start, core.ErrUnsupportedStep.WithMessage(err.Error()), "")
	}

	if down {
		err = page.Keyboard.Press(k)
	} else {
		err = page.Keyboard.Release(k)
	}
	if err != nil {
		return fail(start, core.ErrBrowserGone.WithCause(err), "")
	}

	action := "released"
	if down {
		action = "pressed"
	}
	return okf(start, "Key %s: %s", action, key)
}

func (d *Driver) execWaitForElement(page *rod.Page, s *flow.WaitForElementStep, start time.Time) *core.CommandResult {
	wantCount := s.Count
	if wantCount == 0 {
		wantCount = 1
	}

	timeout := d.stepTimeout(s)
	deadline := time.Now().Add(timeout)

	var lastCount int
	for {
		count, err := countMatches(page, s.Selectors)
		if err != nil {
			return fail(start, core.ErrBrowserGone.WithCause(err), "")
		}
		lastCount = count

		if countSatisfies(count, s.Operator, wantCount) {
			if met, result := d.checkElementConditions(page, s, start); !met {
				if result != nil {
					return result
				}
			} else {
				operator := s.Operator
				if operator == "" {
					operator = "=="
				}
				res := okf(start, "Element count %d %s %d", count, operator, wantCount)
				if el, matched, resolveErr := d.resolveElement(page, s.Selectors, time.Second); resolveErr == nil {
					res.Element = elementInfo(el, matched)
				}
				return res
			}
		}

		if time.Now().After(deadline) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	operator := s.Operator
	if operator == "" {
		operator = "=="
	}
	return fail(start, core.ErrWaitTimeout.WithDetails(map[string]interface{}{
		"operator":  operator,
		"want":      wantCount,
		"actual":    lastCount,
		"selectors": describeAll(s.Selectors),
	}), fmt.Sprintf("waited %s for count %s %d, last saw %d", timeout, operator, wantCount, lastCount))
}

// checkElementConditions verifies the optional visible/attributes/properties
// conditions of a waitForElement step against the first matching element.
// Returns met=false with a nil result to keep polling, or a failure result
// for unrecoverable errors.
func (d *Driver) checkElementConditions(page *rod.Page, s *flow.WaitForElementStep, start time.Time) (bool, *core.CommandResult) {
	if s.Visible == nil && len(s.Attributes) == 0 && len(s.Properties) == 0 {
		return true, nil
	}

	el, _, err := d.resolveElement(page, s.Selectors, time.Second)
	if err != nil {
		return false, nil
	}

	if s.Visible != nil {
		visible, err := el.Visible()
		if err != nil {
			return false, nil
		}
		if visible != *s.Visible {
			return false, nil
		}
	}

	for name, want := range s.Attributes {
		got, err := el.Attribute(name)
		if err != nil || got == nil || *got != want {
			return false, nil
		}
	}

	for name, want := range s.Properties {
		obj, err := el.Eval(`(name) => this[name]`, name)
		if err != nil {
			return false, nil
		}
		if obj.Value.String() != fmt.Sprintf("%v", want) {
			return false, nil
		}
	}

	return true, nil
}

func (d *Driver) execWaitForExpression(page *rod.Page, s *flow.WaitForExpressionStep, start time.Time) *core.CommandResult {
	timeout := d.stepTimeout(s)
	deadline := time.Now().Add(timeout)

	js := fmt.Sprintf(`() => !!(%s)`, s.Expression)

	for {
		obj, err := page.Eval(js)
		if err != nil {
			return fail(start, core.ErrExpressionFailed.WithDetails(map[string]interface{}{
				"expression": s.Expression,
			}).WithCause(err), "")
		}
		if obj.Value.Bool() {
			return ok(start, "Expression is truthy")
		}

		if time.Now().After(deadline) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fail(start, core.ErrWaitTimeout.WithDetails(map[string]interface{}{
		"expression": s.Expression,
	}), fmt.Sprintf("expression stayed falsy for %s: %s", timeout, s.Expression))
}

// urlMatches compares the current URL against an asserted one, tolerating
// a trailing slash difference.
func urlMatches(actual, expected string) bool {
	trim := func(u string) string { return strings.TrimSuffix(u, "/") }
	return trim(actual) == trim(expected)
}

// keyFromName maps a recorder key name to a rod input key. Single characters
// map directly; named keys follow the DOM UI Events key values.
func keyFromName(name string) (input.Key, error) {
	runes := []rune(name)
	if len(runes) == 1 {
		return input.Key(runes[0]), nil
	}

	switch name {
	case "Enter":
		return input.Enter, nil
	case "Tab":
		return input.Tab, nil
	case "Escape":
		return input.Escape, nil
	case "Backspace":
		return input.Backspace, nil
	case "Delete":
		return input.Delete, nil
	case "ArrowUp":
		return input.ArrowUp, nil
	case "ArrowDown":
		return input.ArrowDown, nil
	case "ArrowLeft":
		return input.ArrowLeft, nil
	case "ArrowRight":
		return input.ArrowRight, nil
	case "Home":
		return input.Home, nil
	case "End":
		return input.End, nil
	case "PageUp":
		return input.PageUp, nil
	case "PageDown":
		return input.PageDown, nil
	case "Shift":
		return input.ShiftLeft, nil
	case "Control":
		return input.ControlLeft, nil
	case "Alt":
		return input.AltLeft, nil
	case "Meta":
		return input.MetaLeft, nil
	case " ", "Space":
		return input.Space, nil
	default:
		return input.Key(0), fmt.Errorf("unknown key name %q", name)
	}
}
