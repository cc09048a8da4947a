package core

import (
	"time"

	"github.com/recorder-dev/recorder-runner/pkg/flow"
)

// Driver defines the interface for executing recorded steps against a browser.
// Implementations: chrome (go-rod), mock.
// The runner handles flow logic; Driver just performs individual steps.
type Driver interface {
	// Execute performs a single step and returns the result
	Execute(step flow.Step, f *flow.Flow) *CommandResult

	// Screenshot captures the current page as PNG
	Screenshot() ([]byte, error)

	// DOMSnapshot captures the serialized page DOM
	DOMSnapshot() ([]byte, error)

	// GetBrowserInfo returns browser/session information
	GetBrowserInfo() *BrowserInfo

	// SetDefaultTimeout sets the default per-step wait timeout in milliseconds
	SetDefaultTimeout(ms int)
}

// Lifecycle hooks are independently optional capabilities. A driver implements
// whichever ones it needs; the runner invokes a hook only when present and
// treats an absent hook as a no-op.

// BeforeAllHook runs once before the first step of a flow.
type BeforeAllHook interface {
	BeforeAllSteps(f *flow.Flow) error
}

// BeforeEachHook runs before every step.
type BeforeEachHook interface {
	BeforeEachStep(step flow.Step, f *flow.Flow) error
}

// AfterEachHook runs after every successfully executed step.
type AfterEachHook interface {
	AfterEachStep(step flow.Step, f *flow.Flow) error
}

// AfterAllHook runs once after the last step of a flow completes.
type AfterAllHook interface {
	AfterAllSteps(f *flow.Flow) error
}

// ConsoleLogSource is implemented by drivers that capture page console
// output during a flow. The captured log is saved with the flow's artifacts.
type ConsoleLogSource interface {
	ConsoleLog() []LogEntry
}

// CommandResult represents the outcome of executing a single step
type CommandResult struct {
	// Core outcome
	Success  bool          `json:"success"`
	Error    error         `json:"-"`
	Duration time.Duration `json:"duration"`

	// Human-readable output
	Message string `json:"message,omitempty"`

	// Element information (for click, change, waitForElement, etc.)
	Element *ElementInfo `json:"element,omitempty"`

	// Generic data for step-specific results
	// Examples: evaluated expression value, final navigation URL
	Data interface{} `json:"data,omitempty"`

	// Debug information (internal details, not for reporting)
	Debug interface{} `json:"-"`
}

// ElementInfo represents information about a page element
type ElementInfo struct {
	Selector string            `json:"selector,omitempty"` // Selector that resolved the element
	Tag      string            `json:"tag,omitempty"`      // Lowercase tag name
	Text     string            `json:"text,omitempty"`
	Bounds   Bounds            `json:"bounds"`
	Visible  bool              `json:"visible"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

// Bounds represents element position and size in CSS pixels
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// BrowserInfo contains browser and session details
type BrowserInfo struct {
	Name           string `json:"name"`    // chrome, chromium
	Version        string `json:"version"` // e.g., "127.0.6533.88"
	Headless       bool   `json:"headless"`
	UserAgent      string `json:"userAgent,omitempty"`
	ViewportWidth  int    `json:"viewportWidth,omitempty"`
	ViewportHeight int    `json:"viewportHeight,omitempty"`
	ControlURL     string `json:"controlUrl,omitempty"` // DevTools websocket endpoint
}

// ExecutedBy indicates what component executed a step
type ExecutedBy string

// ExecutedBy values
const (
	ExecutedByDriver ExecutedBy = "driver" // Executed by the Driver (chrome, mock)
	ExecutedByRunner ExecutedBy = "runner" // Executed by the runner (customStep script, variables)
)

// LogEntry represents a single log message captured during execution
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`  // debug, info, warn, error
	Source    string    `json:"source"` // page, driver, runner
	Message   string    `json:"message"`
}
