// Package mock provides a mock driver for testing without a real browser.
package mock

import (
	"fmt"
	"sync"
	"time"

	"github.com/recorder-dev/recorder-runner/pkg/core"
	"github.com/recorder-dev/recorder-runner/pkg/flow"
)

// Driver is a mock implementation of core.Driver for testing. It journals
// every step and lifecycle hook invocation in order.
type Driver struct {
	// Configuration
	Config Config

	mu        sync.Mutex
	journal   []string
	stepCount int
	timeoutMs int
}

// Config configures mock driver behavior.
type Config struct {
	// FailOnStep makes step N fail (1-indexed). 0 = never fail.
	FailOnStep int
	// FailWith is the error returned by the failing step. Defaults to a
	// generic mock failure.
	FailWith error
	// StepDelay adds artificial delay per step
	StepDelay time.Duration
	// Headless is reported in browser info
	Headless bool
}

// New creates a new mock driver.
func New(cfg Config) *Driver {
	return &Driver{Config: cfg}
}

// Journal returns a copy of the recorded invocations in order.
func (d *Driver) Journal() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.journal))
	copy(out, d.journal)
	return out
}

func (d *Driver) record(entry string) {
	d.mu.Lock()
	d.journal = append(d.journal, entry)
	d.mu.Unlock()
}

// Execute simulates executing a step.
func (d *Driver) Execute(step flow.Step, f *flow.Flow) *core.CommandResult {
	d.mu.Lock()
	d.stepCount++
	count := d.stepCount
	d.mu.Unlock()

	d.record(fmt.Sprintf("execute:%s", step.Type()))
	start := time.Now()

	if d.Config.StepDelay > 0 {
		time.Sleep(d.Config.StepDelay)
	}

	if d.Config.FailOnStep > 0 && count == d.Config.FailOnStep {
		err := d.Config.FailWith
		if err == nil {
			err = fmt.Errorf("mock failure on step %d", count)
		}
		return &core.CommandResult{
			Success:  false,
			Duration: time.Since(start),
			Error:    err,
			Message:  fmt.Sprintf("Simulated failure on step %d (%s)", count, step.Type()),
		}
	}

	result := &core.CommandResult{
		Success:  true,
		Duration: time.Since(start),
		Message:  fmt.Sprintf("Mock executed: %s", step.Type()),
	}

	// Element info for steps that target elements
	if needsElement(step) {
		result.Element = &core.ElementInfo{
			Selector: "#mock-element",
			Tag:      "button",
			Text:     "Mock Element",
			Visible:  true,
			Bounds:   core.Bounds{X: 100, Y: 200, Width: 200, Height: 50},
		}
	}

	return result
}

// Screenshot returns a mock PNG image.
func (d *Driver) Screenshot() ([]byte, error) {
	d.record("screenshot")
	// Minimal valid PNG (1x1 transparent pixel)
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	}, nil
}

// DOMSnapshot returns a mock serialized DOM.
func (d *Driver) DOMSnapshot() ([]byte, error) {
	d.record("domSnapshot")
	return []byte(`<!DOCTYPE html>
<html>
<body>
  <button id="mock-element">Mock Element</button>
</body>
</html>`), nil
}

// GetBrowserInfo returns mock browser info.
func (d *Driver) GetBrowserInfo() *core.BrowserInfo {
	return &core.BrowserInfo{
		Name:           "mock",
		Version:        "1.0",
		Headless:       d.Config.Headless,
		ViewportWidth:  1280,
		ViewportHeight: 720,
	}
}

// SetDefaultTimeout records the default wait timeout.
func (d *Driver) SetDefaultTimeout(ms int) {
	d.mu.Lock()
	d.timeoutMs = ms
	d.mu.Unlock()
}

// DefaultTimeout returns the last timeout set via SetDefaultTimeout.
func (d *Driver) DefaultTimeout() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timeoutMs
}

// ConsoleLog returns a canned console entry so report wiring can be tested.
func (d *Driver) ConsoleLog() []core.LogEntry {
	return []core.LogEntry{
		{Timestamp: time.Now(), Level: "info", Source: "page", Message: "mock console output"},
	}
}

// BeforeAllSteps journals the flow-start hook.
func (d *Driver) BeforeAllSteps(f *flow.Flow) error {
	d.record("beforeAll")
	return nil
}

// AfterAllSteps journals the flow-end hook.
func (d *Driver) AfterAllSteps(f *flow.Flow) error {
	d.record("afterAll")
	return nil
}

// needsElement returns true if the step type typically returns element info.
func needsElement(step flow.Step) bool {
	switch step.Type() {
	case flow.StepClick, flow.StepDoubleClick, flow.StepHover,
		flow.StepChange, flow.StepWaitForElement:
		return true
	}
	return false
}
