// Package chrome implements the Driver interface on top of go-rod,
// driving a real Chrome or Chromium browser over the DevTools protocol.
package chrome

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/recorder-dev/recorder-runner/pkg/core"
	"github.com/recorder-dev/recorder-runner/pkg/flow"
	"github.com/recorder-dev/recorder-runner/pkg/logger"
)

// Config configures the chrome driver.
type Config struct {
	// ControlURL attaches to a running browser's DevTools endpoint instead
	// of launching one.
	ControlURL string
	// Bin is the browser binary path. Empty = auto-detect.
	Bin string
	// Headless runs the browser without a visible window.
	Headless bool
	// UserDataDir is the Chrome profile directory (for authenticated sessions).
	UserDataDir string
	// NoSandbox disables the Chrome sandbox (needed in some containers).
	NoSandbox bool
	// Viewport applied to every new page. 0 = browser default.
	ViewportWidth  int
	ViewportHeight int
	// DefaultTimeoutMs bounds element resolution and waits. 0 = 5000.
	DefaultTimeoutMs int
	// SlowMotion adds a delay before every browser action (debugging aid).
	SlowMotion time.Duration
}

const defaultTimeoutMs = 5000

// Driver drives a Chrome browser session. One Driver owns one browser and
// one page at a time; a new page is opened per flow by BeforeAllSteps.
type Driver struct {
	config   Config
	browser  *rod.Browser
	launcher *launcher.Launcher

	mu            sync.Mutex
	page          *rod.Page
	timeoutMs     int
	flowTimeoutMs int
	consoleLog    []core.LogEntry
	pageClosed    bool
}

// New launches or attaches to a browser.
func New(cfg Config) (*Driver, error) {
	if cfg.DefaultTimeoutMs <= 0 {
		cfg.DefaultTimeoutMs = defaultTimeoutMs
	}

	d := &Driver{
		config:    cfg,
		timeoutMs: cfg.DefaultTimeoutMs,
	}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		bin := cfg.Bin
		if bin == "" {
			if path, ok := launcher.LookPath(); ok {
				bin = path
			}
		}
		if bin == "" {
			return nil, core.ErrBrowserUnreachable.WithMessage("no Chrome or Chromium binary found")
		}

		l := launcher.New().Bin(bin).Headless(cfg.Headless)
		if cfg.UserDataDir != "" {
			l = l.UserDataDir(cfg.UserDataDir)
		}
		if cfg.NoSandbox {
			l = l.Set(flags.NoSandbox)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, core.ErrBrowserUnreachable.WithCause(err)
		}
		d.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if cfg.SlowMotion > 0 {
		browser = browser.SlowMotion(cfg.SlowMotion)
	}
	if err := browser.Connect(); err != nil {
		if d.launcher != nil {
			d.launcher.Cleanup()
		}
		return nil, core.ErrBrowserUnreachable.WithCause(err)
	}
	d.browser = browser

	logger.Info("chrome driver connected: %s", controlURL)
	return d, nil
}

// Close shuts down the page and browser.
func (d *Driver) Close() error {
	d.mu.Lock()
	page := d.page
	d.page = nil
	d.mu.Unlock()

	if page != nil {
		page.Close()
	}
	var err error
	if d.browser != nil {
		err = d.browser.Close()
	}
	if d.launcher != nil {
		d.launcher.Cleanup()
	}
	return err
}

// SetDefaultTimeout sets the default per-step wait timeout in milliseconds.
func (d *Driver) SetDefaultTimeout(ms int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ms > 0 {
		d.timeoutMs = ms
	}
}

// stepTimeout returns the wait timeout for a step. Precedence: per-step
// timeout, then the flow's timeout, then the configured default.
func (d *Driver) stepTimeout(step flow.Step) time.Duration {
	d.mu.Lock()
	ms := d.timeoutMs
	if d.flowTimeoutMs > 0 {
		ms = d.flowTimeoutMs
	}
	d.mu.Unlock()
	if t := step.Timeout(); t > 0 {
		ms = t
	}
	return time.Duration(ms) * time.Millisecond
}

// BeforeAllSteps opens a fresh page for the flow and starts console capture.
func (d *Driver) BeforeAllSteps(f *flow.Flow) error {
	page, err := d.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return core.ErrBrowserGone.WithCause(err)
	}

	if d.config.ViewportWidth > 0 && d.config.ViewportHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             d.config.ViewportWidth,
			Height:            d.config.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			page.Close()
			return core.ErrBrowserGone.WithCause(err)
		}
	}

	d.mu.Lock()
	d.page = page
	d.pageClosed = false
	d.consoleLog = nil
	d.flowTimeoutMs = f.TimeoutMs
	d.mu.Unlock()

	go page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		d.recordConsole(e)
	})()

	return nil
}

// AfterAllSteps closes the flow's page.
func (d *Driver) AfterAllSteps(f *flow.Flow) error {
	d.mu.Lock()
	page := d.page
	d.page = nil
	closed := d.pageClosed
	d.mu.Unlock()

	if page != nil && !closed {
		page.Close()
	}
	return nil
}

// currentPage returns the active page or an error when none is open.
func (d *Driver) currentPage() (*rod.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.page == nil || d.pageClosed {
		return nil, core.ErrBrowserGone.WithMessage("no page is open")
	}
	return d.page, nil
}

// Screenshot captures the current page as PNG.
func (d *Driver) Screenshot() ([]byte, error) {
	page, err := d.currentPage()
	if err != nil {
		return nil, err
	}
	return page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// DOMSnapshot captures the serialized page DOM.
func (d *Driver) DOMSnapshot() ([]byte, error) {
	page, err := d.currentPage()
	if err != nil {
		return nil, err
	}
	html, err := page.HTML()
	if err != nil {
		return nil, err
	}
	return []byte(html), nil
}

// GetBrowserInfo returns browser and session details.
func (d *Driver) GetBrowserInfo() *core.BrowserInfo {
	info := &core.BrowserInfo{
		Name:           "chrome",
		Headless:       d.config.Headless,
		ViewportWidth:  d.config.ViewportWidth,
		ViewportHeight: d.config.ViewportHeight,
		ControlURL:     d.config.ControlURL,
	}

	if d.browser != nil {
		if v, err := d.browser.Version(); err == nil {
			// Product is e.g. "Chrome/127.0.6533.88"
			if name, version, ok := strings.Cut(v.Product, "/"); ok {
				info.Name = strings.ToLower(name)
				info.Version = version
			} else {
				info.Version = v.Product
			}
			info.UserAgent = v.UserAgent
		}
	}

	return info
}

// ConsoleLog returns the console messages captured since the page opened.
func (d *Driver) ConsoleLog() []core.LogEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]core.LogEntry, len(d.consoleLog))
	copy(out, d.consoleLog)
	return out
}

// recordConsole appends a console API call to the captured log.
func (d *Driver) recordConsole(e *proto.RuntimeConsoleAPICalled) {
	parts := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		if !arg.Value.Nil() {
			parts = append(parts, arg.Value.String())
		} else if arg.Description != "" {
			parts = append(parts, arg.Description)
		}
	}

	level := string(e.Type)
	switch e.Type {
	case proto.RuntimeConsoleAPICalledTypeError:
		level = "error"
	case proto.RuntimeConsoleAPICalledTypeWarning:
		level = "warn"
	case proto.RuntimeConsoleAPICalledTypeDebug:
		level = "debug"
	default:
		level = "info"
	}

	d.mu.Lock()
	d.consoleLog = append(d.consoleLog, core.LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Source:    "page",
		Message:   strings.Join(parts, " "),
	})
	d.mu.Unlock()
}

// markPageClosed flags the page as closed by an explicit close step.
func (d *Driver) markPageClosed() {
	d.mu.Lock()
	d.pageClosed = true
	d.mu.Unlock()
}

// fail builds a failed CommandResult.
func fail(start time.Time, err error, msg string) *core.CommandResult {
	if msg == "" {
		msg = err.Error()
	}
	return &core.CommandResult{
		Success:  false,
		Error:    err,
		Duration: time.Since(start),
		Message:  msg,
	}
}

// ok builds a successful CommandResult.
func ok(start time.Time, msg string) *core.CommandResult {
	return &core.CommandResult{
		Success:  true,
		Duration: time.Since(start),
		Message:  msg,
	}
}

// okf builds a successful CommandResult with a formatted message.
func okf(start time.Time, format string, args ...interface{}) *core.CommandResult {
	return ok(start, fmt.Sprintf(format, args...))
}
